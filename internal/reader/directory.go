// Package reader turns the contract's scalar event count into the event
// directory and fans out the per-event detail and attendee status reads.
package reader

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/clock"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/metrics"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/model"
)

// ContractReader is the read surface of the ticketing contract.
type ContractReader interface {
	Wallet() *common.Address
	EventCount(ctx context.Context) (uint64, error)
	GetEvent(ctx context.Context, id uint64) (model.Event, error)
	AttendeeStatus(ctx context.Context, id uint64, attendee common.Address) (model.AttendeeStatus, error)
}

// DirectoryState summarises a snapshot.
type DirectoryState string

const (
	DirectoryLoading DirectoryState = "loading"
	DirectoryError   DirectoryState = "error"
	DirectoryEmpty   DirectoryState = "empty"
	DirectoryReady   DirectoryState = "ready"
)

// Item holds the reads for one event id.
type Item struct {
	ID     uint64
	Event  Query[model.Event]
	Status Query[model.AttendeeStatus]
}

// Snapshot is an immutable view of the directory. Callers must not modify
// IDs or Items.
type Snapshot struct {
	State DirectoryState
	Err   error
	IDs   []uint64
	Items []Item
	// Wallet is the wallet the statuses were read for, nil if none.
	Wallet   *common.Address
	LoadedAt time.Time
}

// EventIDs returns 0..n-1 in creation order. It never returns nil.
func EventIDs(n uint64) []uint64 {
	ids := make([]uint64, n)
	for i := range ids {
		ids[i] = uint64(i)
	}
	return ids
}

// Options tunes a Directory.
type Options struct {
	// Concurrency bounds the number of events read in parallel.
	Concurrency int
	// ItemTimeout bounds the reads for one event. An item that does not
	// resolve in time is reported as loading; its siblings are unaffected.
	ItemTimeout time.Duration
}

// Directory keeps the latest snapshot of every event. Refresh builds a new
// snapshot; Run refreshes periodically and on Trigger.
type Directory struct {
	contract ContractReader
	clock    clock.Clock
	logger   *slog.Logger
	opts     Options

	current atomic.Pointer[Snapshot]
	trigger chan struct{}

	refreshMu sync.Mutex
	idsCount  uint64
	ids       []uint64
}

// NewDirectory creates a Directory whose snapshot is loading until the
// first refresh completes.
func NewDirectory(contract ContractReader, clk clock.Clock, logger *slog.Logger, opts Options) *Directory {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	if opts.ItemTimeout <= 0 {
		opts.ItemTimeout = 10 * time.Second
	}
	d := &Directory{
		contract: contract,
		clock:    clk,
		logger:   logger,
		opts:     opts,
		trigger:  make(chan struct{}, 1),
	}
	d.current.Store(&Snapshot{State: DirectoryLoading})
	return d
}

// Snapshot returns the latest snapshot.
func (d *Directory) Snapshot() *Snapshot {
	return d.current.Load()
}

// Trigger asks Run for an immediate refresh. It never blocks; triggers that
// arrive while one is pending are merged.
func (d *Directory) Trigger() {
	select {
	case d.trigger <- struct{}{}:
	default:
	}
}

// Run refreshes on every tick of interval and on every Trigger until ctx
// ends.
func (d *Directory) Run(ctx context.Context, interval time.Duration) error {
	ticker := d.clock.NewTicker(interval)
	defer ticker.Stop()

	d.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-d.trigger:
		}
		d.Refresh(ctx)
	}
}

// Refresh reads the event count and every event, publishes the resulting
// snapshot and returns it.
func (d *Directory) Refresh(ctx context.Context) *Snapshot {
	d.refreshMu.Lock()
	defer d.refreshMu.Unlock()

	start := d.clock.Now()
	defer func() {
		metrics.DirectoryRefreshDuration.Observe(d.clock.Now().Sub(start).Seconds())
	}()

	wallet := d.contract.Wallet()

	count, err := d.contract.EventCount(ctx)
	if err != nil {
		d.logger.Warn("event count read failed", "error", err)
		snap := &Snapshot{State: DirectoryError, Err: err, Wallet: wallet, LoadedAt: d.clock.Now()}
		d.current.Store(snap)
		return snap
	}
	metrics.DirectoryEvents.Set(float64(count))

	ids := d.idsFor(count)
	snap := &Snapshot{
		State:  DirectoryReady,
		IDs:    ids,
		Items:  d.readItems(ctx, ids, wallet),
		Wallet: wallet,
	}
	if count == 0 {
		snap.State = DirectoryEmpty
	}
	snap.LoadedAt = d.clock.Now()
	d.current.Store(snap)
	return snap
}

// idsFor keeps the id slice stable while the count does not change, so
// consumers comparing snapshots do not see a new directory. Callers hold
// refreshMu.
func (d *Directory) idsFor(count uint64) []uint64 {
	if d.ids != nil && d.idsCount == count {
		return d.ids
	}
	d.ids = EventIDs(count)
	d.idsCount = count
	return d.ids
}

func (d *Directory) readItems(ctx context.Context, ids []uint64, wallet *common.Address) []Item {
	items := make([]Item, len(ids))

	var g errgroup.Group
	g.SetLimit(d.opts.Concurrency)
	for i, id := range ids {
		g.Go(func() error {
			items[i] = d.readItem(ctx, id, wallet)
			return nil
		})
	}
	_ = g.Wait()
	return items
}

// readItem never fails as a whole: each query records its own outcome.
func (d *Directory) readItem(ctx context.Context, id uint64, wallet *common.Address) Item {
	ctx, cancel := context.WithTimeout(ctx, d.opts.ItemTimeout)
	defer cancel()

	item := Item{ID: id, Status: Disabled[model.AttendeeStatus]()}

	event, err := d.contract.GetEvent(ctx, id)
	item.Event = queryResult(event, err)
	if item.Event.State == QueryFailed {
		d.logger.Warn("event read failed", "event_id", id, "error", err)
	}

	if wallet != nil {
		status, err := d.contract.AttendeeStatus(ctx, id, *wallet)
		item.Status = queryResult(status, err)
	}
	return item
}

func queryResult[T any](data T, err error) Query[T] {
	switch {
	case err == nil:
		return Ready(data)
	case errors.Is(err, context.DeadlineExceeded):
		return Loading[T]()
	default:
		return Failed[T](err)
	}
}
