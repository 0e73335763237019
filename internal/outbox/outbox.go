// Package outbox stores outbound events next to the business data they
// belong to and drains them to the message broker in the background. Rows
// are marked sent only after a successful publish, giving at-least-once
// delivery.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"techshop/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Record is one pending or sent outbound event.
type Record struct {
	ID        int64           `json:"id"`
	EventID   uuid.UUID       `json:"eventId"`
	Topic     string          `json:"topic"`
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
	SentAt    *time.Time      `json:"sentAt,omitempty"`
}

// Store persists and drains outbox rows.
type Store struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewStore creates an outbox store over the shared pool.
func NewStore(pool *pgxpool.Pool, logger zerolog.Logger) *Store {
	return &Store{
		pool:   pool,
		logger: logger.With().Str("component", "outbox").Logger(),
	}
}

// Insert queues one event. db may be a transaction so the event commits
// together with the business write that produced it.
func (s *Store) Insert(ctx context.Context, db repository.Querier, topic, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode outbox payload: %w", err)
	}

	_, err = db.Exec(ctx, `
		INSERT INTO outbox (event_id, topic, key, payload) VALUES ($1, $2, $3, $4::jsonb)
	`, uuid.New(), topic, key, string(data))
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

// FetchPending returns the oldest unsent events.
func (s *Store) FetchPending(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, event_id, topic, key, payload, created_at, sent_at
		FROM outbox
		WHERE sent_at IS NULL
		ORDER BY id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending outbox events: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.Topic, &rec.Key, &rec.Payload, &rec.CreatedAt, &rec.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MarkSent stamps a row as delivered.
func (s *Store) MarkSent(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET sent_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event sent: %w", err)
	}
	return nil
}
