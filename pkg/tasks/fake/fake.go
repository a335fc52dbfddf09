// Package fake provides a scripted task service for testing.
package fake

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chriscow/voicerelay-go/pkg/tasks"
)

// Service completes (or fails) every task after a fixed number of polls.
type Service struct {
	// PendingPolls is how many polls report pending before the terminal status.
	PendingPolls int
	// Final is the terminal status. The zero value (StatusPending) means completed.
	Final tasks.Status
	// Result is returned by FetchResult.
	Result string
	// CreateErr, when set, fails Create.
	CreateErr error
	// Hang makes Poll report pending forever.
	Hang bool

	mu     sync.Mutex
	inputs []string
	polls  map[string]int
}

// NewService returns a service whose tasks complete immediately with result.
func NewService(result string) *Service {
	return &Service{Final: tasks.StatusCompleted, Result: result}
}

func (s *Service) Create(ctx context.Context, input string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.CreateErr != nil {
		return "", s.CreateErr
	}
	s.inputs = append(s.inputs, input)
	if s.polls == nil {
		s.polls = make(map[string]int)
	}
	id := fmt.Sprintf("task_%d", len(s.inputs))
	s.polls[id] = 0
	return id, nil
}

func (s *Service) Poll(ctx context.Context, taskID string) (tasks.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.polls[taskID]
	if !ok {
		return tasks.StatusFailed, errors.New("fake: unknown task " + taskID)
	}
	s.polls[taskID] = n + 1
	if s.Hang || n < s.PendingPolls {
		return tasks.StatusPending, nil
	}
	if s.Final == tasks.StatusPending {
		return tasks.StatusCompleted, nil
	}
	return s.Final, nil
}

func (s *Service) FetchResult(ctx context.Context, taskID string) (string, error) {
	return s.Result, nil
}

// Inputs returns every submitted input, in order.
func (s *Service) Inputs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.inputs...)
}

// Polls returns how many times taskID was polled.
func (s *Service) Polls(taskID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls[taskID]
}

var _ tasks.Service = (*Service)(nil)
