// Package txstatus follows submitted writes to a terminal outcome and
// raises exactly one notification per transaction.
package txstatus

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/chain"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/clock"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/metrics"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/notify"
)

type State string

const (
	Idle      State = "idle"
	Watching  State = "watching"
	Succeeded State = "succeeded"
	Failed    State = "failed"
)

const (
	DefaultSuccessMessage = "Transaction successful"
	DefaultFailureMessage = "Transaction failed"
	DefaultReloadDelay    = 2 * time.Second
)

// Watcher waits for a submitted write to be mined.
type Watcher interface {
	WatchConfirmation(ctx context.Context, h *chain.Handle) (*chain.Receipt, error)
}

// Options configures the messages and follow-up of a tracked write.
type Options struct {
	SuccessMessage string
	FailureMessage string
	// Reload schedules OnReload ReloadDelay after a success.
	Reload      bool
	ReloadDelay time.Duration
	OnReload    func()
}

func (o Options) withDefaults() Options {
	if o.SuccessMessage == "" {
		o.SuccessMessage = DefaultSuccessMessage
	}
	if o.FailureMessage == "" {
		o.FailureMessage = DefaultFailureMessage
	}
	if o.ReloadDelay <= 0 {
		o.ReloadDelay = DefaultReloadDelay
	}
	return o
}

// Status is a point-in-time view of a tracker.
type Status struct {
	Slot        string            `json:"slot"`
	State       State             `json:"state"`
	HandleID    string            `json:"handle_id,omitempty"`
	Method      string            `json:"method,omitempty"`
	TxHash      string            `json:"tx_hash,omitempty"`
	BlockNumber uint64            `json:"block_number,omitempty"`
	FailureKind chain.FailureKind `json:"failure_kind,omitempty"`
	Message     string            `json:"message,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Tracker follows one UI slot. Tracking a new handle abandons the
// previous one: a late outcome for an abandoned handle is ignored.
type Tracker struct {
	slot     string
	base     context.Context
	watcher  Watcher
	clock    clock.Clock
	notifier notify.Notifier
	logger   *slog.Logger

	mu       sync.Mutex
	opts     Options
	gen      uint64
	handle   *chain.Handle
	cancel   context.CancelFunc
	notified bool
	status   Status
}

// NewTracker creates an idle tracker. Watches run until base ends or the
// handle is replaced.
func NewTracker(base context.Context, slot string, watcher Watcher, clk clock.Clock, notifier notify.Notifier, logger *slog.Logger, opts Options) *Tracker {
	return &Tracker{
		slot:     slot,
		base:     base,
		watcher:  watcher,
		clock:    clk,
		notifier: notifier,
		logger:   logger.With("slot", slot),
		opts:     opts.withDefaults(),
		status:   Status{Slot: slot, State: Idle, UpdatedAt: clk.Now()},
	}
}

// Track starts following h. A nil handle returns the tracker to idle;
// tracking the handle already followed does nothing.
func (t *Tracker) Track(h *chain.Handle) {
	t.track(h, nil)
}

func (t *Tracker) track(h *chain.Handle, opts *Options) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if h == t.handle {
		return
	}
	if opts != nil {
		t.opts = opts.withDefaults()
	}

	t.abandonLocked()
	t.gen++
	t.handle = h
	t.notified = false

	if h == nil {
		t.status = Status{Slot: t.slot, State: Idle, UpdatedAt: t.clock.Now()}
		return
	}

	t.status = Status{
		Slot:      t.slot,
		State:     Watching,
		HandleID:  h.ID().String(),
		Method:    h.Method(),
		UpdatedAt: t.clock.Now(),
	}
	metrics.TxWatching.Inc()

	ctx, cancel := context.WithCancel(t.base)
	t.cancel = cancel
	go t.watch(ctx, t.gen, h)
}

// abandonLocked stops watching the current handle, if any.
func (t *Tracker) abandonLocked() {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	if t.status.State == Watching {
		metrics.TxWatching.Dec()
		t.logger.Debug("handle abandoned", "handle", t.status.HandleID)
	}
}

func (t *Tracker) watch(ctx context.Context, gen uint64, h *chain.Handle) {
	receipt, err := t.watcher.WatchConfirmation(ctx, h)
	t.resolve(gen, h, receipt, err)
}

// resolve applies the outcome of generation gen. It is a no-op once the
// handle has been replaced or its notification has already fired.
func (t *Tracker) resolve(gen uint64, h *chain.Handle, receipt *chain.Receipt, err error) {
	t.mu.Lock()
	if gen != t.gen || t.notified {
		t.mu.Unlock()
		return
	}
	if err != nil && t.base.Err() != nil {
		// Shutting down; the outcome is unknown rather than failed.
		t.mu.Unlock()
		return
	}
	t.notified = true
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	metrics.TxWatching.Dec()

	opts := t.opts
	now := t.clock.Now()
	n := notify.Notification{
		ID:        uuid.New(),
		Slot:      t.slot,
		HandleID:  h.ID(),
		Method:    h.Method(),
		CreatedAt: now,
	}
	if hash, ok := h.Hash(); ok {
		n.TxHash = hash.Hex()
	}

	status := t.status
	status.UpdatedAt = now
	status.TxHash = n.TxHash

	if err == nil {
		n.Kind = notify.KindSuccess
		n.Message = opts.SuccessMessage
		status.State = Succeeded
		if receipt != nil {
			status.BlockNumber = receipt.BlockNumber
		}
		metrics.TxOutcomes.WithLabelValues(h.Method(), string(Succeeded)).Inc()
	} else {
		n.Kind = notify.KindFailure
		n.Message = chain.Reason(err)
		if n.Message == "" {
			n.Message = opts.FailureMessage
		}
		var txErr *chain.TxError
		if errors.As(err, &txErr) {
			n.FailureKind = txErr.Kind
		}
		status.State = Failed
		status.FailureKind = n.FailureKind
		metrics.TxOutcomes.WithLabelValues(h.Method(), string(Failed)).Inc()
	}
	status.Message = n.Message
	t.status = status
	t.mu.Unlock()

	t.logger.Info("transaction resolved", "handle", h.ID().String(), "state", status.State, "tx_hash", n.TxHash)
	if notifyErr := t.notifier.Notify(context.WithoutCancel(t.base), n); notifyErr != nil {
		t.logger.Warn("notification delivery failed", "error", notifyErr)
	}

	if err == nil && opts.Reload && opts.OnReload != nil {
		t.clock.AfterFunc(opts.ReloadDelay, opts.OnReload)
	}
}

// Snapshot returns the current status. It never triggers a notification.
func (t *Tracker) Snapshot() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// stop abandons the current handle without notifying.
func (t *Tracker) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.abandonLocked()
	t.gen++
	if t.status.State == Watching {
		t.status.State = Idle
		t.status.UpdatedAt = t.clock.Now()
	}
}
