package coach

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/podgraph/backend/pkg/ai/aitest"
)

func TestGenerateRoutine(t *testing.T) {
	aiClient := &aitest.FakeClient{
		Structured: `{"weeklyTimetable": {
			"monday": [
				{"title": "Run", "category": "Health", "emoji": "🏃", "startTime": "0700", "endTime": "0745"},
				{"title": "Broken", "category": "Health", "emoji": "x", "startTime": "7am", "endTime": "0800"}
			],
			"friday": [{"title": "Read", "category": "Mind", "emoji": "📚", "startTime": "2100", "endTime": "2130"}]
		}}`,
	}

	got, err := GenerateRoutine(context.Background(), "I want to run a marathon", aiClient)
	if err != nil {
		t.Fatalf("GenerateRoutine() error = %v", err)
	}
	if len(got.WeeklyTimetable.Monday) != 1 || got.WeeklyTimetable.Monday[0].Title != "Run" {
		t.Fatalf("Monday = %+v", got.WeeklyTimetable.Monday)
	}
	if len(got.WeeklyTimetable.Friday) != 1 || got.WeeklyTimetable.Tuesday == nil {
		t.Fatalf("timetable = %+v", got.WeeklyTimetable)
	}
	if !strings.Contains(aiClient.Prompts[0], "I want to run a marathon") {
		t.Fatalf("prompt does not contain the request")
	}
}

func TestGenerateRoutineErrors(t *testing.T) {
	if _, err := GenerateRoutine(context.Background(), " ", &aitest.FakeClient{}); !errors.Is(err, ErrEmptyPrompt) {
		t.Fatalf("GenerateRoutine() error = %v, want ErrEmptyPrompt", err)
	}
	failing := &aitest.FakeClient{CompletionErr: errors.New("quota")}
	if _, err := GenerateRoutine(context.Background(), "goals", failing); !errors.Is(err, ErrGeneration) {
		t.Fatalf("GenerateRoutine() error = %v, want ErrGeneration", err)
	}
}

func TestRephraseGoals(t *testing.T) {
	aiClient := &aitest.FakeClient{Structured: `{"goals": [" I run every morning. ", "", "I read daily."]}`}

	got, err := RephraseGoals(context.Background(), `["run more", "read"]`, aiClient)
	if err != nil {
		t.Fatalf("RephraseGoals() error = %v", err)
	}
	want := []string{"I run every morning.", "I read daily."}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("RephraseGoals() = %v, want %v", got, want)
	}
	if !strings.Contains(aiClient.Prompts[0], "run more") {
		t.Fatalf("prompt does not contain the goals")
	}
}
