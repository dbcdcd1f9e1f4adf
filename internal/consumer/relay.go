package consumer

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"example.com/progression/internal/events"
)

// EventSource yields events buffered by the in-memory store.
type EventSource interface {
	DrainEvents() []events.Envelope
}

// LocalRelay delivers in-memory outbox events to a Handler when no Kafka cluster is available.
type LocalRelay struct {
	source   EventSource
	handler  Handler
	interval time.Duration
	logger   log.FieldLogger
	done     chan struct{}
}

// NewLocalRelay constructs a relay polling source every interval.
func NewLocalRelay(source EventSource, handler Handler, interval time.Duration) *LocalRelay {
	if interval <= 0 {
		interval = time.Second
	}
	return &LocalRelay{
		source:   source,
		handler:  handler,
		interval: interval,
		logger:   log.WithField("component", "local-relay"),
		done:     make(chan struct{}),
	}
}

// Run flushes the source every interval until ctx is cancelled, then flushes once more.
func (r *LocalRelay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer func() {
		ticker.Stop()
		close(r.done)
	}()

	for {
		select {
		case <-ctx.Done():
			r.Flush(context.WithoutCancel(ctx))
			return
		case <-ticker.C:
			r.Flush(ctx)
		}
	}
}

// Wait blocks until Run has returned.
func (r *LocalRelay) Wait() {
	<-r.done
}

// Flush delivers every pending event and returns how many were handled without error. Events
// whose handler fails are logged and dropped, matching a committed poison message.
func (r *LocalRelay) Flush(ctx context.Context) int {
	handled := 0
	// Unlocks emit follow-up events; keep draining until the source is empty.
	for {
		pending := r.source.DrainEvents()
		if len(pending) == 0 {
			return handled
		}
		for _, env := range pending {
			msg := FromEnvelope(env)
			started := time.Now()
			err := r.handler.Handle(ctx, msg)
			observeHandled(sourceRelay, msg, started, err)
			if err != nil {
				r.logger.Errorf("handler error (event_type=%s, user=%s): %s", msg.EventType, msg.UserID, err)
				continue
			}
			handled++
		}
	}
}
