package session

import (
	"log/slog"
	"sync"
	"time"
)

// ShutdownHookTimeout bounds how long Shutdown waits for its hooks.
const ShutdownHookTimeout = 5 * time.Second

// Lifecycle runs teardown hooks exactly once, when the session ends.
type Lifecycle struct {
	mu       sync.Mutex
	hooks    []func(reason string)
	shutdown bool
	reason   string
	done     chan struct{}
	logger   *slog.Logger
}

// NewLifecycle returns a Lifecycle with no hooks.
func NewLifecycle(logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lifecycle{done: make(chan struct{}), logger: logger}
}

// OnShutdown registers a hook. Hooks run concurrently and handle their own
// errors. A hook registered after Shutdown runs immediately.
func (l *Lifecycle) OnShutdown(hook func(reason string)) {
	l.mu.Lock()
	if l.shutdown {
		reason := l.reason
		l.mu.Unlock()
		go l.call(hook, reason)
		return
	}
	l.hooks = append(l.hooks, hook)
	l.mu.Unlock()
}

// Shutdown runs every hook and waits up to ShutdownHookTimeout for them.
// Only the first call has any effect.
func (l *Lifecycle) Shutdown(reason string) {
	l.mu.Lock()
	if l.shutdown {
		l.mu.Unlock()
		return
	}
	l.shutdown = true
	l.reason = reason
	hooks := l.hooks
	l.hooks = nil
	l.mu.Unlock()

	l.logger.Info("session shutdown", slog.String("reason", reason))

	var wg sync.WaitGroup
	for _, hook := range hooks {
		wg.Add(1)
		go func(h func(string)) {
			defer wg.Done()
			l.call(h, reason)
		}(hook)
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(ShutdownHookTimeout):
		l.logger.Warn("shutdown hooks timed out", slog.Duration("timeout", ShutdownHookTimeout))
	}
	close(l.done)
}

// Done is closed once Shutdown has finished.
func (l *Lifecycle) Done() <-chan struct{} {
	return l.done
}

func (l *Lifecycle) call(hook func(string), reason string) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("shutdown hook panicked", slog.Any("panic", r))
		}
	}()
	hook(reason)
}
