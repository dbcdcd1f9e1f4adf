package consumer

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
)

// Router fans an event out to every handler registered for its type. Events without handlers
// are acknowledged without work.
type Router struct {
	routes map[string][]Handler
}

// NewRouter constructs an empty Router.
func NewRouter() *Router {
	return &Router{routes: make(map[string][]Handler)}
}

// On registers h for each of the event types.
func (r *Router) On(h Handler, eventTypes ...string) *Router {
	for _, t := range eventTypes {
		r.routes[t] = append(r.routes[t], h)
	}
	return r
}

// Handle runs every handler for msg.EventType. All handlers run even when one fails.
func (r *Router) Handle(ctx context.Context, msg Message) error {
	var err error
	for _, h := range r.routes[msg.EventType] {
		if hErr := h.Handle(ctx, msg); hErr != nil {
			err = multierr.Append(err, fmt.Errorf("%T: %w", h, hErr))
		}
	}
	return err
}
