// Package repository persists the gateway's client-local state and its
// notification log. It uses pgx directly (no ORM).
package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/chain"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/notify"
)

// ErrNotFound is returned when a requested key does not exist.
var ErrNotFound = errors.New("not found")

// StateStore is a small key/value store for client-local state.
type StateStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// StateRepository is a StateStore backed by the client_state table.
type StateRepository struct {
	db *pgxpool.Pool
}

func NewStateRepository(db *pgxpool.Pool) *StateRepository {
	return &StateRepository{db: db}
}

// Get returns the value for key or ErrNotFound.
func (r *StateRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRow(ctx,
		`SELECT value FROM client_state WHERE key = $1`,
		key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get state %s: %w", key, err)
	}
	return value, nil
}

// Set overwrites the value for key.
func (r *StateRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO client_state (key, value, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set state %s: %w", key, err)
	}
	return nil
}

// MemoryStateRepository is a StateStore for running without a database.
type MemoryStateRepository struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStateRepository() *MemoryStateRepository {
	return &MemoryStateRepository{values: make(map[string]string)}
}

func (r *MemoryStateRepository) Get(_ context.Context, key string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (r *MemoryStateRepository) Set(_ context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[key] = value
	return nil
}

// NotificationRepository keeps every delivered notification. It
// implements notify.Notifier.
type NotificationRepository struct {
	db *pgxpool.Pool
}

func NewNotificationRepository(db *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Notify inserts n. Inserting the same notification twice is a no-op.
func (r *NotificationRepository) Notify(ctx context.Context, n notify.Notification) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO notifications (id, slot, handle_id, method, tx_hash, kind, failure_kind, message, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO NOTHING`,
		n.ID, n.Slot, n.HandleID, n.Method, n.TxHash, string(n.Kind), string(n.FailureKind), n.Message, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// Recent returns up to limit notifications, newest first.
func (r *NotificationRepository) Recent(ctx context.Context, limit int) ([]notify.Notification, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, slot, handle_id, method, tx_hash, kind, failure_kind, message, created_at
		 FROM notifications
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out := []notify.Notification{}
	for rows.Next() {
		var (
			n           notify.Notification
			kind, fkind string
		)
		if err := rows.Scan(&n.ID, &n.Slot, &n.HandleID, &n.Method, &n.TxHash, &kind, &fkind, &n.Message, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Kind = notify.Kind(kind)
		n.FailureKind = chain.FailureKind(fkind)
		out = append(out, n)
	}
	return out, rows.Err()
}
