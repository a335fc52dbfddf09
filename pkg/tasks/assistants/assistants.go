// Package assistants implements the long-running task service on top of
// OpenAI Assistants threads and runs.
package assistants

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chriscow/voicerelay-go/pkg/tasks"
)

// Config configures a Service.
type Config struct {
	APIKey      string
	AssistantID string
	BaseURL     string // optional override, for proxies and tests
	OrgID       string
}

// Service submits each input as a new thread and runs the configured assistant on it.
// Task IDs have the form "<thread_id>/<run_id>".
type Service struct {
	client      *openai.Client
	assistantID string
}

// New creates an Assistants-backed task service.
func New(cfg Config) (*Service, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("assistants: API key is required")
	}
	if cfg.AssistantID == "" {
		return nil, fmt.Errorf("assistants: assistant ID is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.OrgID = cfg.OrgID

	return &Service{
		client:      openai.NewClientWithConfig(clientCfg),
		assistantID: cfg.AssistantID,
	}, nil
}

// Create starts a thread holding input and a run of the assistant on it.
func (s *Service) Create(ctx context.Context, input string) (string, error) {
	thread, err := s.client.CreateThread(ctx, openai.ThreadRequest{
		Messages: []openai.ThreadMessage{
			{Role: openai.ThreadMessageRoleUser, Content: input},
		},
	})
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}

	run, err := s.client.CreateRun(ctx, thread.ID, openai.RunRequest{AssistantID: s.assistantID})
	if err != nil {
		return "", fmt.Errorf("create run on %s: %w", thread.ID, err)
	}

	return thread.ID + "/" + run.ID, nil
}

// Poll maps the run status onto tasks.Status.
func (s *Service) Poll(ctx context.Context, taskID string) (tasks.Status, error) {
	threadID, runID, err := splitID(taskID)
	if err != nil {
		return tasks.StatusFailed, err
	}

	run, err := s.client.RetrieveRun(ctx, threadID, runID)
	if err != nil {
		return tasks.StatusFailed, fmt.Errorf("retrieve run %s: %w", runID, err)
	}
	return statusOf(run.Status), nil
}

// FetchResult returns the text of the newest message in the thread.
func (s *Service) FetchResult(ctx context.Context, taskID string) (string, error) {
	threadID, runID, err := splitID(taskID)
	if err != nil {
		return "", err
	}

	limit := 1
	order := "desc"
	list, err := s.client.ListMessage(ctx, threadID, &limit, &order, nil, nil, &runID)
	if err != nil {
		return "", fmt.Errorf("list messages on %s: %w", threadID, err)
	}
	for _, msg := range list.Messages {
		if text := messageText(msg); text != "" {
			return text, nil
		}
	}
	return "", fmt.Errorf("run %s produced no text", runID)
}

func statusOf(st openai.RunStatus) tasks.Status {
	switch st {
	case openai.RunStatusCompleted:
		return tasks.StatusCompleted
	case openai.RunStatusFailed, openai.RunStatusCancelled, openai.RunStatusCancelling,
		openai.RunStatusExpired, openai.RunStatusIncomplete, openai.RunStatusRequiresAction:
		// requires_action means the assistant wants tools we do not provide
		return tasks.StatusFailed
	default:
		return tasks.StatusPending
	}
}

func messageText(msg openai.Message) string {
	var parts []string
	for _, c := range msg.Content {
		if c.Type == "text" && c.Text != nil && c.Text.Value != "" {
			parts = append(parts, c.Text.Value)
		}
	}
	return strings.Join(parts, "\n")
}

func splitID(taskID string) (threadID, runID string, err error) {
	threadID, runID, ok := strings.Cut(taskID, "/")
	if !ok || threadID == "" || runID == "" {
		return "", "", fmt.Errorf("malformed task id %q", taskID)
	}
	return threadID, runID, nil
}

var _ tasks.Service = (*Service)(nil)
