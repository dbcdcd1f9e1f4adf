// Package outbox delivers persisted progression events to Kafka.
package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

// Kafka headers set on every delivered event.
const (
	HeaderEventType     = "event_type"
	HeaderUserID        = "user_id"
	HeaderSchemaSubject = "schema_subject"
	HeaderDedupeKey     = "dedupe_key"
)

// claimLease is how long a claimed but unpublished row stays invisible to other dispatchers.
const claimLease = time.Minute

const claimBatch = `
UPDATE outbox
   SET claimed_at = NOW()
 WHERE event_id IN (
        SELECT event_id
          FROM outbox
         WHERE published_at IS NULL
           AND (claimed_at IS NULL OR claimed_at < NOW() - $2::interval)
         ORDER BY event_id
         LIMIT $1
         FOR UPDATE SKIP LOCKED)
RETURNING event_id, aggregate_type, aggregate_id, user_id, event_type, topic, schema_subject,
          partition_key, payload, COALESCE(dedupe_key, '')`

type messageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

type schemaRegistrar interface {
	EnsureSchema(context.Context, string, string) (int, error)
}

// Message is one claimed outbox row. Field order follows claimBatch's RETURNING list.
type Message struct {
	EventID       int64
	AggregateType string
	AggregateID   string
	UserID        string
	EventType     string
	Topic         string
	SchemaSubject string
	PartitionKey  string
	Payload       json.RawMessage
	DedupeKey     string
}

// Dispatcher claims unpublished outbox rows, publishes them with schema registry framing
// and marks them published. Failed batches are dead-lettered.
type Dispatcher struct {
	pool         *pgxpool.Pool
	producer     messageWriter
	registry     schemaRegistrar
	pollInterval time.Duration
	batchSize    int

	schemaMu  sync.Mutex
	schemaIDs map[string]int

	done chan struct{}
}

// NewDispatcher returns a Dispatcher polling every pollInterval for up to batchSize rows.
func NewDispatcher(pool *pgxpool.Pool, producer messageWriter, registry schemaRegistrar, pollInterval time.Duration, batchSize int) *Dispatcher {
	return &Dispatcher{
		pool:         pool,
		producer:     producer,
		registry:     registry,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		schemaIDs:    make(map[string]int),
		done:         make(chan struct{}),
	}
}

// Start polls until ctx is cancelled. Run it in its own goroutine and use Wait to join it.
func (d *Dispatcher) Start(ctx context.Context) {
	defer close(d.done)

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		if err := d.processBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Errorf("outbox: %s", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait blocks until Start has returned.
func (d *Dispatcher) Wait() {
	<-d.done
}

func (d *Dispatcher) processBatch(ctx context.Context) error {
	messages, err := d.claim(ctx)
	if err != nil {
		return fmt.Errorf("claim batch: %w", err)
	}
	if len(messages) == 0 {
		return nil
	}

	start := time.Now()
	defer func() { batchDuration.Observe(time.Since(start).Seconds()) }()

	if err := d.deliver(ctx, messages); err != nil {
		log.WithField("events", len(messages)).Warnf("outbox: delivery failed: %s", err)
		recordFailed(messages)
		return d.deadLetter(ctx, messages, err)
	}

	if _, err := d.pool.Exec(ctx, `UPDATE outbox SET published_at = NOW() WHERE event_id = ANY($1)`, eventIDs(messages)); err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	recordDelivered(messages)
	return nil
}

func (d *Dispatcher) claim(ctx context.Context) ([]Message, error) {
	rows, err := d.pool.Query(ctx, claimBatch, d.batchSize, claimLease)
	if err != nil {
		return nil, err
	}
	messages, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Message])
	if err != nil {
		return nil, err
	}
	// RETURNING order is unspecified; per-user ordering relies on event_id order.
	sort.Slice(messages, func(i, j int) bool { return messages[i].EventID < messages[j].EventID })
	return messages, nil
}

// deliver frames every message and writes them topic by topic in first-seen order.
func (d *Dispatcher) deliver(ctx context.Context, messages []Message) error {
	var topics []string
	byTopic := make(map[string][]kafka.Message)

	for _, msg := range messages {
		record, err := d.record(ctx, msg)
		if err != nil {
			return err
		}
		if _, seen := byTopic[msg.Topic]; !seen {
			topics = append(topics, msg.Topic)
		}
		byTopic[msg.Topic] = append(byTopic[msg.Topic], record)
	}

	for _, topic := range topics {
		if err := d.producer.WriteMessages(ctx, topic, byTopic[topic]...); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) record(ctx context.Context, msg Message) (kafka.Message, error) {
	schema, ok := schemaCatalog[msg.EventType]
	if !ok {
		return kafka.Message{}, fmt.Errorf("no schema metadata for event_type=%s", msg.EventType)
	}
	schemaID, err := d.schemaID(ctx, msg.SchemaSubject, schema)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(msg.PartitionKey),
		Value: encodeWireFormat(schemaID, msg.Payload),
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(msg.EventType)},
			{Key: HeaderUserID, Value: []byte(msg.UserID)},
			{Key: HeaderSchemaSubject, Value: []byte(msg.SchemaSubject)},
			{Key: HeaderDedupeKey, Value: []byte(msg.DedupeKey)},
		},
	}, nil
}

// schemaID registers schema under subject once per process.
func (d *Dispatcher) schemaID(ctx context.Context, subject, schema string) (int, error) {
	d.schemaMu.Lock()
	id, ok := d.schemaIDs[subject]
	d.schemaMu.Unlock()
	if ok {
		return id, nil
	}

	id, err := d.registry.EnsureSchema(ctx, subject, schema)
	if err != nil {
		return 0, err
	}
	d.schemaMu.Lock()
	d.schemaIDs[subject] = id
	d.schemaMu.Unlock()
	return id, nil
}

const wireHeaderLen = 5

// encodeWireFormat prefixes payload with the magic byte and big-endian schema id.
func encodeWireFormat(schemaID int, payload []byte) []byte {
	frame := make([]byte, wireHeaderLen, wireHeaderLen+len(payload))
	binary.BigEndian.PutUint32(frame[1:wireHeaderLen], uint32(schemaID))
	return append(frame, payload...)
}

// DecodeWireFormat splits a framed value into its schema id and JSON body.
func DecodeWireFormat(frame []byte) (int, []byte, error) {
	if len(frame) < wireHeaderLen || frame[0] != 0 {
		return 0, nil, errors.New("payload is not schema registry framed")
	}
	return int(binary.BigEndian.Uint32(frame[1:wireHeaderLen])), frame[wireHeaderLen:], nil
}
