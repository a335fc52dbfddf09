package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chriscow/voicerelay-go/pkg/tasks"
	"github.com/chriscow/voicerelay-go/pkg/transcript"
)

// Names of the built-in functions.
const (
	FuncBackground   = "get_background"
	FuncAvailability = "get_availability"
	FuncNotepad      = "write_notepad"
)

// DefaultBackground describes the floorplans when no background text is configured.
const DefaultBackground = "Here is some information about floorplans at White Rock. " +
	"The catalina has 2 bedrooms 1.5 bath. The wisteria has 4 bedrooms 2 bath. " +
	"The wisteria is available starting January 1st 2026 through January 1st 2027. " +
	"The catalina is available starting January 1st 2025 through January 1st 2026."

// Background returns a zero-argument function answering with fixed text.
func Background(name, text string) *Function {
	return &Function{
		Name:        name,
		Description: "Returns information about floorplans at White Rock",
		Handler: func(ctx context.Context, _ json.RawMessage) (string, error) {
			return text, nil
		},
	}
}

// DateRange is the date_range argument of the availability lookup.
type DateRange struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type availabilityArgs struct {
	Floorplan string          `json:"floorplan"`
	DateRange json.RawMessage `json:"date_range"`
}

// parseDateRange accepts the object form and, leniently, a plain string.
func parseDateRange(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", missing("date_range")
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			return "", missing("date_range")
		}
		return "for " + s, nil
	}

	var dr DateRange
	if err := json.Unmarshal(raw, &dr); err != nil {
		return "", fmt.Errorf("%w: date_range: %w", ErrInvalidArguments, err)
	}
	if dr.StartDate == "" {
		return "", missing("date_range.start_date")
	}
	if dr.EndDate == "" {
		return "", missing("date_range.end_date")
	}
	return "from " + dr.StartDate + " to " + dr.EndDate, nil
}

// Availability returns a function that asks the long-running task service about
// a floorplan. It blocks until the task completes or cfg.Timeout elapses.
func Availability(name string, svc tasks.Service, cfg tasks.PollConfig) *Function {
	return &Function{
		Name:        name,
		Description: "Get current availability for a specified floorplan",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"floorplan": map[string]any{
					"type":        "string",
					"description": "The name of the floorplan for which to fetch the availability.",
				},
				"date_range": map[string]any{
					"type":     "object",
					"required": []string{"start_date", "end_date"},
					"properties": map[string]any{
						"start_date": map[string]any{
							"type":        "string",
							"format":      "date",
							"description": "The start date for the availability check in YYYY-MM-DD format.",
						},
						"end_date": map[string]any{
							"type":        "string",
							"format":      "date",
							"description": "The end date for the availability check in YYYY-MM-DD format.",
						},
					},
				},
			},
			"required": []string{"floorplan", "date_range"},
		},
		Handler: func(ctx context.Context, raw json.RawMessage) (string, error) {
			var args availabilityArgs
			if err := decodeArgs(raw, &args); err != nil {
				return "", err
			}
			if strings.TrimSpace(args.Floorplan) == "" {
				return "", missing("floorplan")
			}
			dates, err := parseDateRange(args.DateRange)
			if err != nil {
				return "", err
			}

			query := fmt.Sprintf("Check availability for floorplan %s %s.", args.Floorplan, dates)
			return tasks.Await(ctx, svc, query, cfg)
		},
	}
}

type notepadArgs struct {
	Content string `json:"content"`
	Date    string `json:"date"`
}

// Notepad returns a function that appends a dated note to sink.
func Notepad(name string, sink *transcript.Sink) *Function {
	return &Function{
		Name:        name,
		Description: "Write the conversation notes to the notepad",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"content": map[string]any{
					"type":        "string",
					"description": "The content consists of my questions along with the answers you provide.",
				},
				"date": map[string]any{
					"type":        "string",
					"description": "the time, for example, 2024-10-29 16:19.",
				},
			},
			"required": []string{"content", "date"},
		},
		Handler: func(ctx context.Context, raw json.RawMessage) (string, error) {
			var args notepadArgs
			if err := decodeArgs(raw, &args); err != nil {
				return "", err
			}
			if strings.TrimSpace(args.Content) == "" {
				return "", missing("content")
			}
			if strings.TrimSpace(args.Date) == "" {
				return "", missing("date")
			}

			if err := sink.Append(args.Date + " " + args.Content); err != nil {
				return "", fmt.Errorf("write notepad: %w", err)
			}
			return "Tell the user the note was saved to the notepad.", nil
		},
	}
}

// Builtins configures the default table.
type Builtins struct {
	Background string
	Tasks      tasks.Service // nil leaves get_availability unregistered
	Poll       tasks.PollConfig
	Notepad    *transcript.Sink // nil leaves write_notepad unregistered
}

// NewBuiltinTable registers the built-in functions.
func NewBuiltinTable(b Builtins) *Table {
	t := NewTable()

	text := b.Background
	if text == "" {
		text = DefaultBackground
	}
	t.Register(Background(FuncBackground, text))

	if b.Tasks != nil {
		t.Register(Availability(FuncAvailability, b.Tasks, b.Poll))
	}
	if b.Notepad != nil {
		t.Register(Notepad(FuncNotepad, b.Notepad))
	}
	return t
}
