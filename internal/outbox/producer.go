package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// ProducerOption configures the writers created by a KafkaProducer.
type ProducerOption func(*KafkaProducer)

// WithBatchTimeout bounds how long a writer waits to fill a batch.
func WithBatchTimeout(d time.Duration) ProducerOption {
	return func(p *KafkaProducer) {
		p.batchTimeout = d
	}
}

// WithAutoTopicCreation lets brokers create progression topics on first write.
func WithAutoTopicCreation(enabled bool) ProducerOption {
	return func(p *KafkaProducer) {
		p.autoCreateTopics = enabled
	}
}

// KafkaProducer keeps one synchronous writer per progression topic.
type KafkaProducer struct {
	brokers          []string
	batchTimeout     time.Duration
	autoCreateTopics bool

	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

// NewKafkaProducer creates a KafkaProducer for brokers.
func NewKafkaProducer(brokers []string, opts ...ProducerOption) *KafkaProducer {
	p := &KafkaProducer{
		brokers:      brokers,
		batchTimeout: 50 * time.Millisecond,
		writers:      make(map[string]*kafka.Writer),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WriteMessages writes msgs to topic and returns once every broker replica acknowledged them.
func (p *KafkaProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	return p.writer(topic).WriteMessages(ctx, msgs...)
}

func (p *KafkaProducer) writer(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w, ok := p.writers[topic]; ok {
		return w
	}

	// Messages are keyed by user id; hashing keeps a user's events ordered on one partition.
	w := &kafka.Writer{
		Addr:                   kafka.TCP(p.brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Compression:            kafka.Snappy,
		BatchTimeout:           p.batchTimeout,
		AllowAutoTopicCreation: p.autoCreateTopics,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			log.WithField("topic", topic).Errorf("kafka writer: "+msg, args...)
		}),
	}
	p.writers[topic] = w
	return w
}

// Topics lists the topics a writer has been opened for.
func (p *KafkaProducer) Topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.writers))
	for topic := range p.writers {
		out = append(out, topic)
	}
	return out
}

// Close flushes and closes every writer, reporting all failures.
func (p *KafkaProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error
	for topic, w := range p.writers {
		if closeErr := w.Close(); closeErr != nil {
			err = multierr.Append(err, fmt.Errorf("close writer %s: %w", topic, closeErr))
		}
		delete(p.writers, topic)
	}
	return err
}
