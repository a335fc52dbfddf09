// Package tasks runs slow, poll-until-complete jobs against an external
// long-running task service, bounded by a timeout.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chriscow/voicerelay-go/pkg/relay"
)

// Status is the state of a submitted task.
type Status int

const (
	StatusPending Status = iota
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

var (
	// ErrTimeout is returned when a task does not finish within PollConfig.Timeout.
	ErrTimeout = errors.New("task timed out")
	// ErrTaskFailed is returned when a task reaches a non-success terminal state.
	ErrTaskFailed = errors.New("task failed")
)

// Service is the external task collaborator.
type Service interface {
	// Create submits input and returns the task ID.
	Create(ctx context.Context, input string) (string, error)
	// Poll reports the current status of a task.
	Poll(ctx context.Context, taskID string) (Status, error)
	// FetchResult returns the text produced by a completed task.
	FetchResult(ctx context.Context, taskID string) (string, error)
}

// PollConfig bounds Await.
type PollConfig struct {
	Interval time.Duration // between polls, DefaultPollInterval if zero
	Timeout  time.Duration // whole call, DefaultTimeout if zero
}

const (
	DefaultPollInterval = 2 * time.Second
	DefaultTimeout      = 30 * time.Second
)

func (c PollConfig) withDefaults() PollConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultPollInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Await submits input, polls on a fixed interval until the task is terminal,
// and returns its result. Every failure is recoverable for the caller: the
// error wraps ErrTimeout, ErrTaskFailed or the service error.
func Await(ctx context.Context, svc Service, input string, cfg PollConfig) (string, error) {
	cfg = cfg.withDefaults()

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	id, err := svc.Create(ctx, input)
	if err != nil {
		return "", classify(ctx, err, "create task")
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", classify(ctx, ctx.Err(), "await task "+id)
		case <-ticker.C:
		}

		status, err := svc.Poll(ctx, id)
		if err != nil {
			return "", classify(ctx, err, "poll task "+id)
		}

		switch status {
		case StatusPending:
			continue
		case StatusCompleted:
			result, err := svc.FetchResult(ctx, id)
			if err != nil {
				return "", classify(ctx, err, "fetch result "+id)
			}
			return result, nil
		default:
			return "", relay.NewRecoverableError(fmt.Errorf("%w: %s is %s", ErrTaskFailed, id, status), "await task")
		}
	}
}

// classify maps a deadline hit to ErrTimeout and keeps other causes as they are.
func classify(ctx context.Context, err error, op string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return relay.NewRecoverableError(fmt.Errorf("%w: %w", ErrTimeout, err), op)
	}
	return relay.NewRecoverableError(err, op)
}
