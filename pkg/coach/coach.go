// Package coach turns a person's goals into a weekly routine and
// affirmations using the chat model.
package coach

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/podgraph/backend/pkg/ai"
	"github.com/podgraph/backend/pkg/logger"
)

var (
	ErrEmptyPrompt = errors.New("prompt is required")
	ErrGeneration  = errors.New("failed to generate content")
)

var militaryTime = regexp.MustCompile(`^([01]\d|2[0-3])[0-5]\d$`)

type RoutineTask struct {
	Title     string `json:"title" jsonschema_description:"Short task title"`
	Category  string `json:"category" jsonschema_description:"Goal the task contributes to"`
	Emoji     string `json:"emoji" jsonschema_description:"Exactly one emoji"`
	StartTime string `json:"startTime" jsonschema_description:"Start in military time, e.g. 0730"`
	EndTime   string `json:"endTime" jsonschema_description:"End in military time, e.g. 0815"`
}

type WeeklyTimetable struct {
	Monday    []RoutineTask `json:"monday"`
	Tuesday   []RoutineTask `json:"tuesday"`
	Wednesday []RoutineTask `json:"wednesday"`
	Thursday  []RoutineTask `json:"thursday"`
	Friday    []RoutineTask `json:"friday"`
	Saturday  []RoutineTask `json:"saturday"`
	Sunday    []RoutineTask `json:"sunday"`
}

type Routine struct {
	WeeklyTimetable WeeklyTimetable `json:"weeklyTimetable"`
}

func (t *WeeklyTimetable) days() []*[]RoutineTask {
	return []*[]RoutineTask{&t.Monday, &t.Tuesday, &t.Wednesday, &t.Thursday, &t.Friday, &t.Saturday, &t.Sunday}
}

// GenerateRoutine asks the model for a weekly timetable for the person
// described in prompt. Tasks with a malformed time range are dropped.
func GenerateRoutine(ctx context.Context, prompt string, aiClient ai.GraphAIClient) (Routine, error) {
	if strings.TrimSpace(prompt) == "" {
		return Routine{}, ErrEmptyPrompt
	}

	var out Routine
	err := aiClient.GenerateCompletionWithFormat(
		ctx,
		"weekly_routine",
		"A weekly timetable of tasks",
		fmt.Sprintf(ai.RoutinePrompt, prompt),
		&out,
		ai.WithSystemPrompts(ai.RoutineSystemPrompt),
	)
	if err != nil {
		return Routine{}, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	dropped := 0
	for _, day := range out.WeeklyTimetable.days() {
		kept := make([]RoutineTask, 0, len(*day))
		for _, task := range *day {
			if !militaryTime.MatchString(task.StartTime) || !militaryTime.MatchString(task.EndTime) {
				dropped++
				continue
			}
			kept = append(kept, task)
		}
		*day = kept
	}
	if dropped > 0 {
		logger.Debug("[Coach] Dropped tasks with invalid times", "count", dropped)
	}

	return out, nil
}

type rephrasedGoals struct {
	Goals []string `json:"goals" jsonschema_description:"Goals as first person present tense statements"`
}

// RephraseGoals rewrites goals as first person statements of fact.
func RephraseGoals(ctx context.Context, goals string, aiClient ai.GraphAIClient) ([]string, error) {
	if strings.TrimSpace(goals) == "" {
		return nil, ErrEmptyPrompt
	}

	var out rephrasedGoals
	err := aiClient.GenerateCompletionWithFormat(
		ctx,
		"rephrased_goals",
		"Goals rewritten as affirmations",
		fmt.Sprintf(ai.RephraseGoalsPrompt, goals),
		&out,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	res := make([]string, 0, len(out.Goals))
	for _, g := range out.Goals {
		if g = strings.TrimSpace(g); g != "" {
			res = append(res, g)
		}
	}
	return res, nil
}
