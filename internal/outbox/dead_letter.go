package outbox

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const insertDeadLetter = `INSERT INTO outbox_dlq (event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, user_id, schema_subject, partition_key, dedupe_key, next_retry_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11, NOW())`

// deadLetter copies messages into outbox_dlq and marks the originals published in one
// transaction, so each event is either pending in the outbox or waiting in the DLQ.
func (d *Dispatcher) deadLetter(ctx context.Context, messages []Message, cause error) error {
	tx, err := d.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin dead-letter tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, msg := range messages {
		reason := fmt.Sprintf("%s (topic=%s)", cause, msg.Topic)
		batch.Queue(insertDeadLetter,
			msg.EventID, msg.EventType, msg.Topic, msg.Payload, reason, msg.AggregateType,
			msg.AggregateID, msg.UserID, msg.SchemaSubject, msg.PartitionKey, msg.DedupeKey,
		)
	}
	batch.Queue(`UPDATE outbox SET published_at = NOW() WHERE event_id = ANY($1)`, eventIDs(messages))

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("dead-letter %d events: %w", len(messages), err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit dead-letter tx: %w", err)
	}

	for _, msg := range messages {
		recordDeadLettered(msg)
	}
	return nil
}

func eventIDs(messages []Message) []int64 {
	ids := make([]int64, 0, len(messages))
	for _, msg := range messages {
		ids = append(ids, msg.EventID)
	}
	return ids
}
