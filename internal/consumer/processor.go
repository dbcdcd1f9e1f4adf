// Package consumer reacts to progression events read from Kafka or relayed from the in-memory outbox.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"example.com/progression/internal/events"
	"example.com/progression/internal/outbox"
)

// Reader exposes the minimal kafka.Reader interface needed by the processor.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler receives decoded events.
type Handler interface {
	Handle(context.Context, Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(context.Context, Message) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Message is a decoded progression event together with its Kafka coordinates.
type Message struct {
	Topic         string
	Partition     int
	Offset        int64
	Timestamp     time.Time
	EventType     string
	UserID        string
	DedupeKey     string
	SchemaSubject string
	SchemaID      int
	Payload       json.RawMessage
}

// Envelope converts the message back into the event it was published from.
func (m Message) Envelope() events.Envelope {
	meta := events.Catalog[m.EventType]
	topic := m.Topic
	if topic == "" {
		topic = meta.Topic
	}
	return events.Envelope{
		Type:          m.EventType,
		AggregateType: meta.AggregateType,
		UserID:        m.UserID,
		Topic:         topic,
		SchemaSubject: m.SchemaSubject,
		Payload:       m.Payload,
		DedupeKey:     m.DedupeKey,
		OccurredAt:    m.Timestamp,
	}
}

// FromEnvelope builds a Message for an event that never went through Kafka.
func FromEnvelope(env events.Envelope) Message {
	return Message{
		Topic:         env.Topic,
		Timestamp:     env.OccurredAt,
		EventType:     env.Type,
		UserID:        env.UserID,
		DedupeKey:     env.DedupeKey,
		SchemaSubject: env.SchemaSubject,
		Payload:       env.Payload,
	}
}

// Option configures optional behaviour for the Processor.
type Option func(*Processor)

// WithLogger overrides the logger used to report errors.
func WithLogger(logger log.FieldLogger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// Processor pulls messages from Kafka, decodes them, and dispatches to a Handler.
type Processor struct {
	reader  Reader
	handler Handler
	logger  log.FieldLogger
}

// NewProcessor constructs a Processor with the provided reader and handler.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:  reader,
		handler: handler,
		logger:  log.WithField("component", "consumer"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run fetches and handles messages until ctx is cancelled. A message is committed once its
// handlers succeed or when it cannot be decoded; failed messages stay uncommitted so the group
// redelivers them.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			p.logger.Errorf("fetch: %s", err)
			continue
		}

		if !p.handle(ctx, msg) {
			continue
		}
		if err := p.reader.CommitMessages(ctx, msg); err != nil {
			p.logger.WithField("offset", msg.Offset).Errorf("commit: %s", err)
		}
	}
}

// handle reports whether msg should be committed.
func (p *Processor) handle(ctx context.Context, msg kafka.Message) bool {
	event, err := decodeMessage(msg)
	if err != nil {
		p.logger.WithFields(log.Fields{
			"partition": msg.Partition,
			"offset":    msg.Offset,
		}).Warnf("skipping undecodable message: %s", err)
		recordUndecodable(msg.Topic)
		return true
	}

	started := time.Now()
	err = p.handler.Handle(ctx, event)
	observeHandled(sourceKafka, event, started, err)
	if err != nil {
		p.logger.WithFields(log.Fields{
			"event_type": event.EventType,
			"user_id":    event.UserID,
		}).Errorf("handler failed: %s", err)
		return false
	}
	return true
}

func decodeMessage(msg kafka.Message) (Message, error) {
	schemaID, body, err := outbox.DecodeWireFormat(msg.Value)
	if err != nil {
		return Message{}, err
	}

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	eventType := headers[outbox.HeaderEventType]
	if eventType == "" {
		return Message{}, errors.New("missing event_type header")
	}
	userID := headers[outbox.HeaderUserID]
	if userID == "" {
		userID = string(msg.Key)
	}

	return Message{
		Topic:         msg.Topic,
		Partition:     msg.Partition,
		Offset:        msg.Offset,
		Timestamp:     msg.Time,
		EventType:     eventType,
		UserID:        userID,
		DedupeKey:     headers[outbox.HeaderDedupeKey],
		SchemaSubject: headers[outbox.HeaderSchemaSubject],
		SchemaID:      schemaID,
		Payload:       json.RawMessage(append([]byte(nil), body...)),
	}, nil
}
