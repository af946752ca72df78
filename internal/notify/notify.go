// Package notify delivers the one-shot transaction outcome notifications.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/chain"
)

type Kind string

const (
	KindSuccess Kind = "success"
	KindFailure Kind = "failure"
)

type Notification struct {
	ID          uuid.UUID         `json:"id"`
	Slot        string            `json:"slot"`
	HandleID    uuid.UUID         `json:"handle_id"`
	Method      string            `json:"method"`
	TxHash      string            `json:"tx_hash,omitempty"`
	Kind        Kind              `json:"kind"`
	FailureKind chain.FailureKind `json:"failure_kind,omitempty"`
	Message     string            `json:"message"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Notifier receives each notification exactly once.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Source lists delivered notifications, newest first.
type Source interface {
	Recent(ctx context.Context, limit int) ([]Notification, error)
}

// Multi fans a notification out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes notifications to a structured logger.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Notify(ctx context.Context, n Notification) error {
	level := slog.LevelInfo
	if n.Kind == KindFailure {
		level = slog.LevelWarn
	}
	l.Logger.Log(ctx, level, n.Message,
		"slot", n.Slot,
		"kind", n.Kind,
		"method", n.Method,
		"tx_hash", n.TxHash,
		"handle", n.HandleID.String(),
	)
	return nil
}

// Feed keeps the most recent notifications in memory.
type Feed struct {
	mu    sync.Mutex
	items []Notification
	next  int
	full  bool
}

const DefaultFeedSize = 100

func NewFeed(size int) *Feed {
	if size <= 0 {
		size = DefaultFeedSize
	}
	return &Feed{items: make([]Notification, size)}
}

func (f *Feed) Notify(_ context.Context, n Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[f.next] = n
	f.next = (f.next + 1) % len(f.items)
	if f.next == 0 {
		f.full = true
	}
	return nil
}

// Recent returns up to limit notifications, newest first. A limit of 0 or
// less returns everything held.
func (f *Feed) Recent(_ context.Context, limit int) ([]Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := f.next
	if f.full {
		n = len(f.items)
	}
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]Notification, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (f.next - i + len(f.items)) % len(f.items)
		out = append(out, f.items[idx])
	}
	return out, nil
}

// Publisher is the subset of the message broker used here.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// Publish forwards notifications to a broker under the given routing keys.
type Publish struct {
	Publisher  Publisher
	SuccessKey string
	FailureKey string
}

func (p Publish) Notify(ctx context.Context, n Notification) error {
	key := p.SuccessKey
	if n.Kind == KindFailure {
		key = p.FailureKey
	}
	return p.Publisher.Publish(ctx, key, n)
}
