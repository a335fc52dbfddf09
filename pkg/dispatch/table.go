// Package dispatch maps function names requested by the realtime service to
// local handlers whose textual result is spoken back into the conversation.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/chriscow/voicerelay-go/pkg/realtime"
	"github.com/chriscow/voicerelay-go/pkg/relay"
)

var (
	// ErrUnknownFunction is returned for names with no registered handler.
	ErrUnknownFunction = errors.New("unknown function")
	// ErrMissingArgument is returned when a required argument is absent or empty.
	ErrMissingArgument = errors.New("missing argument")
	// ErrInvalidArguments is returned when the arguments are not a JSON object.
	ErrInvalidArguments = errors.New("invalid arguments")
)

// Handler produces the text to speak back, or a failure reason.
// args is the raw JSON object sent by the service, possibly empty.
type Handler func(ctx context.Context, args json.RawMessage) (string, error)

// Function is a registered function with its declaration.
type Function struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON schema of the arguments
	Handler     Handler
}

// Tool returns the declaration sent in the session config.
func (f *Function) Tool() realtime.Tool {
	params := f.Parameters
	if params == nil {
		params = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return realtime.Tool{
		Type:        "function",
		Name:        f.Name,
		Description: f.Description,
		Parameters:  params,
	}
}

// Table maps function names to handlers. Safe for concurrent use.
type Table struct {
	mu    sync.RWMutex
	funcs map[string]*Function
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{funcs: make(map[string]*Function)}
}

// Register adds fn to the table.
// Panics if the name is empty, the handler is nil or the name is already registered.
func (t *Table) Register(fn *Function) {
	if fn.Name == "" {
		panic("function name cannot be empty")
	}
	if fn.Handler == nil {
		panic("function handler cannot be nil")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.funcs[fn.Name]; exists {
		panic(fmt.Sprintf("function %s already registered", fn.Name))
	}
	t.funcs[fn.Name] = fn
}

// Resolve looks up a function by name.
func (t *Table) Resolve(name string) (*Function, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fn, ok := t.funcs[name]
	return fn, ok
}

// List returns every registered function sorted by name.
func (t *Table) List() []*Function {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*Function, 0, len(t.funcs))
	for _, fn := range t.funcs {
		out = append(out, fn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Tools returns the declarations of every function, sorted by name.
func (t *Table) Tools() []realtime.Tool {
	fns := t.List()
	tools := make([]realtime.Tool, len(fns))
	for i, fn := range fns {
		tools[i] = fn.Tool()
	}
	return tools
}

// Invoke resolves call.Name and runs its handler. Failures are recoverable
// and wrap ErrUnknownFunction, ErrMissingArgument, ErrInvalidArguments or the
// handler's own error.
func (t *Table) Invoke(ctx context.Context, call realtime.FunctionCall) (string, error) {
	fn, ok := t.Resolve(call.Name)
	if !ok {
		return "", relay.NewRecoverableError(fmt.Errorf("%w: %q", ErrUnknownFunction, call.Name), "dispatch")
	}

	args := json.RawMessage(strings.TrimSpace(call.Arguments))
	if len(args) > 0 && !json.Valid(args) {
		return "", relay.NewRecoverableError(fmt.Errorf("%w: not JSON", ErrInvalidArguments), call.Name)
	}

	result, err := fn.Handler(ctx, args)
	if err != nil {
		if relay.IsRecoverable(err) || relay.IsFatal(err) {
			return "", fmt.Errorf("%s: %w", call.Name, err)
		}
		return "", relay.NewRecoverableError(err, call.Name)
	}
	return result, nil
}

// decodeArgs unmarshals args into v. Empty args leave v untouched.
func decodeArgs(args json.RawMessage, v any) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArguments, err)
	}
	return nil
}

func missing(name string) error {
	return fmt.Errorf("%w: %s", ErrMissingArgument, name)
}
