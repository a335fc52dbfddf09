package session

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestLifecycle_ShutdownRunsHooksOnce(t *testing.T) {
	is := is.New(t)
	l := NewLifecycle(quietLogger())

	var calls atomic.Int32
	var mu sync.Mutex
	var reasons []string
	for i := 0; i < 3; i++ {
		l.OnShutdown(func(reason string) {
			calls.Add(1)
			mu.Lock()
			reasons = append(reasons, reason)
			mu.Unlock()
		})
	}

	l.Shutdown("transport lost")
	l.Shutdown("again") // no effect

	<-l.Done()
	is.Equal(calls.Load(), int32(3))
	for _, r := range reasons {
		is.Equal(r, "transport lost")
	}
}

func TestLifecycle_HookAfterShutdownRunsImmediately(t *testing.T) {
	is := is.New(t)
	l := NewLifecycle(quietLogger())
	l.Shutdown("done")

	got := make(chan string, 1)
	l.OnShutdown(func(reason string) { got <- reason })

	select {
	case r := <-got:
		is.Equal(r, "done")
	case <-time.After(time.Second):
		t.Fatal("late hook never ran")
	}
}

func TestLifecycle_PanickingHook(t *testing.T) {
	l := NewLifecycle(quietLogger())
	ran := make(chan struct{})
	l.OnShutdown(func(string) { panic("boom") })
	l.OnShutdown(func(string) { close(ran) })

	l.Shutdown("x") // must not panic

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("other hooks should still run")
	}
}

func TestConnectionStateString(t *testing.T) {
	tests := []struct {
		s    ConnectionState
		want string
	}{
		{Disconnected, "disconnected"},
		{Connecting, "connecting"},
		{Open, "open"},
		{Closed, "closed"},
		{ConnectionState(7), "connection_state(7)"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("ConnectionState(%d).String() = %q, want %q", int(tt.s), got, tt.want)
		}
	}
}
