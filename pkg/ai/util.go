package ai

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/kaptinlin/jsonrepair"
)

// DefaultEmbeddingDim is the vector length stored for every node.
const DefaultEmbeddingDim = 768

// EmbeddingTexts converts embedding inputs to strings. Blank inputs are
// rejected because they would embed to a meaningless vector.
func EmbeddingTexts(inputs [][]byte) ([]string, error) {
	out := make([]string, len(inputs))
	for i, in := range inputs {
		s := strings.TrimSpace(string(in))
		if s == "" {
			return nil, fmt.Errorf("empty embedding input at index %d", i)
		}
		out[i] = s
	}
	return out, nil
}

// FitDimension truncates or zero pads v to dim entries.
func FitDimension[T float32 | float64](v []T, dim int) []float32 {
	out := make([]float32, dim)
	for i := 0; i < dim && i < len(v); i++ {
		out[i] = float32(v[i])
	}
	return out
}

// AddMetrics accumulates m into total and recomputes the token rate.
func AddMetrics(total *ModelMetrics, m ModelMetrics) {
	total.InputTokens += m.InputTokens
	total.OutputTokens += m.OutputTokens
	total.TotalTokens += m.TotalTokens
	total.DurationMs += m.DurationMs

	if total.DurationMs > 0 {
		tokensPerSecond := (float64(total.TotalTokens) * 1000.0) / float64(total.DurationMs)
		total.TokenPerSecond = float32(math.Round(tokensPerSecond*100) / 100)
	}
}

func stripDuplicateLeadingBrace(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "{") {
		rest := strings.TrimSpace(s[1:])
		if strings.HasPrefix(rest, "{") {
			return rest
		}
	}
	return s
}

// GenerateSchema creates a JSON Schema from the given Go type.
// It uses reflection to inspect the type structure and generates
// a schema suitable for use with AI structured output.
func GenerateSchema(value any) any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	t := reflect.TypeOf(value)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	v := reflect.New(t).Interface()
	return reflector.Reflect(v)
}

// UnmarshalFlexible attempts to unmarshal JSON into the target with multiple fallback strategies.
// It first tries standard JSON unmarshaling, then handles double-encoded JSON strings,
// and finally attempts to repair malformed JSON before parsing.
//
// This is useful for parsing AI-generated JSON which may be malformed or wrapped in strings.
//
// Example:
//
//	var result MyStruct
//	// All of these inputs would work:
//	UnmarshalFlexible(`{"name": "test"}`, &result)           // standard JSON
//	UnmarshalFlexible(`"{\"name\": \"test\"}"`, &result)     // double-encoded
//	UnmarshalFlexible(`{name: "test"}`, &result)             // malformed (repaired)
func UnmarshalFlexible(input string, out any) error {
	input = strings.TrimSpace(input)

	if err := json.Unmarshal([]byte(input), out); err == nil {
		return nil
	}

	var asString string
	if err := json.Unmarshal([]byte(input), &asString); err == nil {
		asString = strings.TrimSpace(asString)
		if err := json.Unmarshal([]byte(asString), out); err == nil {
			return nil
		}
		input = asString
	}

	input = stripDuplicateLeadingBrace(input)
	repaired, err := jsonrepair.JSONRepair(input)
	if err != nil {
		return fmt.Errorf("json repair failed: %w (input: %s)", err, input)
	}

	if err := json.Unmarshal([]byte(repaired), out); err == nil {
		return nil
	}

	return fmt.Errorf(
		"unmarshal failed after repair: input=%s repaired=%s",
		input, repaired,
	)
}
