// Package history records published posts in PostgreSQL so operators can
// audit what went out and when.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"stormcrier/internal/shared"
)

// Delivery represents one published post.
type Delivery struct {
	ReceiptID   string
	CycleID     string
	Job         string
	Late        bool
	Message     string
	EventTypes  []string
	PublishedAt time.Time
}

// Store wraps a database connection and provides delivery history operations.
type Store struct {
	conn *sql.DB
}

// Open connects to PostgreSQL using the provided DSN and ensures the
// deliveries table exists.
func Open(dsn string) (*Store, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.ensureSchema(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	slog.Info("Connected to delivery history database", "dsn", shared.MaskDSN(dsn))
	return s, nil
}

// NewStore wraps an existing connection. Used by tests.
func NewStore(conn *sql.DB) *Store {
	return &Store{conn: conn}
}

func (s *Store) ensureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS deliveries (
			receipt_id   TEXT PRIMARY KEY,
			cycle_id     TEXT NOT NULL,
			job          TEXT NOT NULL,
			late         BOOLEAN NOT NULL DEFAULT FALSE,
			message      TEXT NOT NULL,
			event_types  TEXT[] NOT NULL DEFAULT '{}',
			published_at TIMESTAMPTZ NOT NULL
		)
	`
	if _, err := s.conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure deliveries table: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.conn != nil {
		slog.Info("Closing delivery history database")
		return s.conn.Close()
	}
	return nil
}

// Record inserts one delivery. Re-recording the same receipt is a no-op, so
// a retried cycle cannot duplicate rows.
func (s *Store) Record(ctx context.Context, d Delivery) error {
	query := `
		INSERT INTO deliveries (receipt_id, cycle_id, job, late, message, event_types, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.conn.ExecContext(ctx, query,
		d.ReceiptID,
		d.CycleID,
		d.Job,
		d.Late,
		d.Message,
		pq.Array(d.EventTypes),
		d.PublishedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			// unique_violation: already recorded
			slog.Debug("Delivery already recorded", "receipt_id", d.ReceiptID)
			return nil
		}
		return fmt.Errorf("failed to record delivery: %w", err)
	}

	slog.Debug("Recorded delivery", "receipt_id", d.ReceiptID, "job", d.Job)
	return nil
}

// Recent returns the most recently published deliveries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Delivery, error) {
	query := `
		SELECT receipt_id, cycle_id, job, late, message, event_types, published_at
		FROM deliveries
		ORDER BY published_at DESC
		LIMIT $1
	`
	rows, err := s.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []Delivery
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(
			&d.ReceiptID,
			&d.CycleID,
			&d.Job,
			&d.Late,
			&d.Message,
			pq.Array(&d.EventTypes),
			&d.PublishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan delivery: %w", err)
		}
		deliveries = append(deliveries, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deliveries: %w", err)
	}

	return deliveries, nil
}
