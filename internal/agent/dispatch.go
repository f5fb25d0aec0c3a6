package agent

import (
	"context"
	"strconv"
)

// Kind identifies one tool in a domain's closed tool set. Every Kind a
// domain declares to the model has a handler registered in its dispatcher,
// so the declaration schema and the handler table cannot drift apart.
type Kind string

// Handler executes one tool call. Handlers never return an error: faults are
// converted into a human-readable failure string prefixed with "✗", distinct
// from the "✓" success prefix.
type Handler func(ctx context.Context, args Args) string

// Dispatcher maps tool names to handlers for one capability domain.
type Dispatcher struct {
	handlers map[Kind]Handler
}

// NewDispatcher builds a Dispatcher over a fixed handler table.
func NewDispatcher(handlers map[Kind]Handler) *Dispatcher {
	return &Dispatcher{handlers: handlers}
}

// Dispatch routes a tool invocation to its handler and returns the result
// string. An unrecognized name returns "Unknown function: <name>"; it never
// panics or returns an error.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]any) string {
	h, ok := d.handlers[Kind(name)]
	if !ok {
		return "Unknown function: " + name
	}
	return h(ctx, Args(args))
}

// Args is the argument mapping of a tool call. Models deliver JSON-decoded
// values, so numbers arrive as float64.
type Args map[string]any

// String returns the string value for key, or "" when absent or not a string.
func (a Args) String(key string) string {
	s, _ := a[key].(string)
	return s
}

// Int returns the integer value for key. ok is false when the key is absent
// or the value is not an integral number.
func (a Args) Int(key string) (int64, bool) {
	switch v := a[key].(type) {
	case float64:
		n := int64(v)
		if float64(n) != v {
			return 0, false
		}
		return n, true
	case int:
		return int64(v), true
	case int64:
		return v, true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
