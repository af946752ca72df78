package txstatus

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strconv"
	"sync"

	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/chain"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/clock"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/notify"
)

// ErrSlotBusy is returned by Submit while the slot's previous write is
// still awaiting confirmation.
var ErrSlotBusy = errors.New("transaction already pending")

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("status registry closed")

// Slot actions.
const (
	ActionBook     = "book"
	ActionCheckIn  = "checkin"
	ActionCancel   = "cancel"
	ActionWithdraw = "withdraw"

	SlotCreate = "create"
)

// Slot names the tracker of action on event id, e.g. "book/3".
func Slot(action string, eventID uint64) string {
	return action + "/" + strconv.FormatUint(eventID, 10)
}

// Registry owns one Tracker per slot. Slots are independent of each other.
type Registry struct {
	watcher  Watcher
	clock    clock.Clock
	notifier notify.Notifier
	logger   *slog.Logger
	defaults Options

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	trackers map[string]*Tracker
}

// NewRegistry creates a registry. defaults supplies ReloadDelay and
// OnReload for every Submit that leaves them unset.
func NewRegistry(watcher Watcher, clk clock.Clock, notifier notify.Notifier, logger *slog.Logger, defaults Options) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		watcher:  watcher,
		clock:    clk,
		notifier: notifier,
		logger:   logger,
		defaults: defaults,
		ctx:      ctx,
		cancel:   cancel,
		trackers: make(map[string]*Tracker),
	}
}

// Tracker returns the tracker for slot, creating it if needed.
func (r *Registry) Tracker(slot string) *Tracker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trackerLocked(slot)
}

func (r *Registry) trackerLocked(slot string) *Tracker {
	t, ok := r.trackers[slot]
	if !ok {
		t = NewTracker(r.ctx, slot, r.watcher, r.clock, r.notifier, r.logger, r.defaults)
		r.trackers[slot] = t
	}
	return t
}

// Submit issues a write on slot and starts tracking it. issue is not
// called while the slot is watching.
func (r *Registry) Submit(slot string, opts Options, issue func() *chain.Handle) (*chain.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ctx.Err() != nil {
		return nil, ErrClosed
	}
	t := r.trackerLocked(slot)
	if t.Snapshot().State == Watching {
		return nil, ErrSlotBusy
	}

	if opts.ReloadDelay <= 0 {
		opts.ReloadDelay = r.defaults.ReloadDelay
	}
	if opts.OnReload == nil {
		opts.OnReload = r.defaults.OnReload
	}

	h := issue()
	t.track(h, &opts)
	return h, nil
}

// Status returns the status of slot. Unknown slots are idle.
func (r *Registry) Status(slot string) Status {
	r.mu.Lock()
	t, ok := r.trackers[slot]
	r.mu.Unlock()
	if !ok {
		return Status{Slot: slot, State: Idle}
	}
	return t.Snapshot()
}

// Busy reports whether slot is watching a write.
func (r *Registry) Busy(slot string) bool {
	return r.Status(slot).State == Watching
}

// Statuses returns every known slot, sorted by slot name.
func (r *Registry) Statuses() []Status {
	r.mu.Lock()
	trackers := make([]*Tracker, 0, len(r.trackers))
	for _, t := range r.trackers {
		trackers = append(trackers, t)
	}
	r.mu.Unlock()

	out := make([]Status, 0, len(trackers))
	for _, t := range trackers {
		out = append(out, t.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out
}

// Close abandons every pending watch without notifying.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancel()
	for _, t := range r.trackers {
		t.stop()
	}
}
