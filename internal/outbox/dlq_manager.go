package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

const (
	selectDueDeadLetters = `
SELECT dlq_id, event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id,
       user_id, schema_subject, partition_key, dedupe_key, retry_count
  FROM outbox_dlq
 WHERE quarantined_at IS NULL
   AND (next_retry_at IS NULL OR next_retry_at <= NOW())
 ORDER BY created_at
 LIMIT $1`

	// Moves the row back into the outbox in a single statement.
	replayDeadLetter = `
WITH moved AS (
    DELETE FROM outbox_dlq WHERE dlq_id = $1
    RETURNING aggregate_type, aggregate_id, user_id, event_type, topic, schema_subject,
              partition_key, payload, dedupe_key
)
INSERT INTO outbox (aggregate_type, aggregate_id, user_id, event_type, topic, schema_subject,
                    partition_key, payload, dedupe_key)
SELECT aggregate_type, aggregate_id, user_id, event_type, topic, schema_subject,
       partition_key, payload, dedupe_key
  FROM moved`

	rescheduleDeadLetter = `
UPDATE outbox_dlq
   SET retry_count = retry_count + 1,
       last_attempt_at = NOW(),
       next_retry_at = NOW() + $2::interval,
       reason = $3
 WHERE dlq_id = $1`

	quarantineDeadLetter = `
UPDATE outbox_dlq
   SET quarantined_at = NOW(), quarantine_reason = $2
 WHERE dlq_id = $1`
)

// DLQManager replays dead-lettered progression events into the outbox with exponential
// backoff and quarantines entries that keep failing.
type DLQManager struct {
	pool       *pgxpool.Pool
	maxRetries int
	baseDelay  time.Duration
}

// NewDLQManager returns a DLQManager. Non-positive settings fall back to 5 retries and a
// one minute base delay.
func NewDLQManager(pool *pgxpool.Pool, maxRetries int, baseDelay time.Duration) *DLQManager {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	if baseDelay <= 0 {
		baseDelay = time.Minute
	}
	return &DLQManager{pool: pool, maxRetries: maxRetries, baseDelay: baseDelay}
}

// Run calls RunOnce every interval until ctx is cancelled.
func (m *DLQManager) Run(ctx context.Context, interval time.Duration, batchSize int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			handled, err := m.RunOnce(ctx, batchSize)
			if err != nil {
				log.Errorf("dlq: %s", err)
			}
			if handled > 0 {
				log.Infof("dlq: handled %d entries", handled)
			}
		}
	}
}

// RunOnce handles up to batchSize due entries and returns how many were replayed,
// rescheduled or quarantined.
func (m *DLQManager) RunOnce(ctx context.Context, batchSize int) (int, error) {
	rows, err := m.pool.Query(ctx, selectDueDeadLetters, batchSize)
	if err != nil {
		return 0, fmt.Errorf("select dead letters: %w", err)
	}
	entries, err := pgx.CollectRows(rows, pgx.RowToStructByPos[dlqEntry])
	if err != nil {
		return 0, fmt.Errorf("scan dead letters: %w", err)
	}

	handled := 0
	for _, entry := range entries {
		if handleErr := m.handleEntry(ctx, entry); handleErr != nil {
			err = multierr.Append(err, fmt.Errorf("dlq entry %d: %w", entry.ID, handleErr))
			continue
		}
		handled++
	}
	refreshBacklog(ctx, m.pool)
	return handled, err
}

func (m *DLQManager) handleEntry(ctx context.Context, entry dlqEntry) error {
	if entry.RetryCount >= m.maxRetries {
		if _, err := m.pool.Exec(ctx, quarantineDeadLetter, entry.ID, "retry limit reached"); err != nil {
			return err
		}
		recordDLQOutcome(outcomeQuarantined, entry)
		log.WithFields(log.Fields{
			"dlq_id":     entry.ID,
			"event_type": entry.EventType,
			"retries":    entry.RetryCount,
		}).Warn("dlq: entry quarantined")
		return nil
	}

	replayErr := entry.replayable()
	if replayErr == nil {
		tag, err := m.pool.Exec(ctx, replayDeadLetter, entry.ID)
		if err == nil {
			// Zero rows means another manager replayed it first.
			if tag.RowsAffected() > 0 {
				recordDLQOutcome(outcomeReplayed, entry)
			}
			return nil
		}
		replayErr = err
	}

	delay := m.backoffDelay(entry.RetryCount + 1)
	if _, err := m.pool.Exec(ctx, rescheduleDeadLetter, entry.ID, delay, replayErr.Error()); err != nil {
		return err
	}
	recordDLQOutcome(outcomeRescheduled, entry)
	return nil
}

// backoffDelay doubles baseDelay per attempt, capped at one hour.
func (m *DLQManager) backoffDelay(attempt int) time.Duration {
	if attempt > 12 {
		return time.Hour
	}
	delay := m.baseDelay << uint(attempt-1)
	if delay > time.Hour || delay <= 0 {
		delay = time.Hour
	}
	return delay
}

// dlqEntry mirrors the column order of selectDueDeadLetters.
type dlqEntry struct {
	ID            int64
	EventID       int64
	EventType     string
	Topic         string
	Payload       []byte
	Reason        string
	AggregateType string
	AggregateID   string
	UserID        string
	SchemaSubject string
	PartitionKey  string
	DedupeKey     string
	RetryCount    int
}

var errNoSchemaSubject = errors.New("missing schema subject")

func (e dlqEntry) replayable() error {
	if e.SchemaSubject == "" {
		return errNoSchemaSubject
	}
	if _, ok := schemaCatalog[e.EventType]; !ok {
		return fmt.Errorf("no schema registered for event type %s", e.EventType)
	}
	return nil
}
