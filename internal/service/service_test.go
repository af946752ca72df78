package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"net/url"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/chain/chaintest"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/checkin"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/clock"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/command"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/contract"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/model"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/notify"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/reader"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/repository"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/txstatus"
)

var (
	contractAddr = common.HexToAddress("0x00000000000000000000000000000000000c0de1")
	organizer    = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	attendee     = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

type mockBalance struct {
	BalanceFn func(ctx context.Context, addr common.Address) (*big.Int, error)
}

func (m *mockBalance) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	return m.BalanceFn(ctx, addr)
}

type fixture struct {
	chain     *chaintest.Chain
	clock     *clock.FakeClock
	directory *reader.Directory
	registry  *txstatus.Registry
	state     *repository.MemoryStateRepository
	feed      *notify.Feed
	svc       *Service
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fake := chaintest.New()
	clk := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	contractReader := contract.NewReader(fake, contractAddr)
	directory := reader.NewDirectory(contractReader, clk, logger, reader.Options{})
	feed := notify.NewFeed(10)
	registry := txstatus.NewRegistry(fake, clk, feed, logger, txstatus.Options{
		ReloadDelay: 2 * time.Second,
		OnReload:    directory.Trigger,
	})
	t.Cleanup(registry.Close)
	state := repository.NewMemoryStateRepository()

	if opts.PublicBaseURL == "" {
		opts.PublicBaseURL = "https://tickets.example"
	}
	svc := New(Deps{
		Contract:      contractReader,
		Directory:     directory,
		Issuer:        command.NewIssuer(fake, contractAddr, logger),
		Registry:      registry,
		State:         state,
		Notifications: feed,
		Session:       fake,
		Logger:        logger,
	}, opts)

	return &fixture{chain: fake, clock: clk, directory: directory, registry: registry, state: state, feed: feed, svc: svc}
}

func (f *fixture) waitIdle(t *testing.T, slot string) txstatus.Status {
	t.Helper()
	require.Eventually(t, func() bool { return !f.registry.Busy(slot) }, 2*time.Second, 5*time.Millisecond)
	return f.registry.Status(slot)
}

func (f *fixture) waitNotifications(t *testing.T, n int) []notify.Notification {
	t.Helper()
	require.Eventually(t, func() bool {
		ns, err := f.svc.Notifications(context.Background(), 0)
		return err == nil && len(ns) >= n
	}, 2*time.Second, 5*time.Millisecond)
	ns, err := f.svc.Notifications(context.Background(), 0)
	require.NoError(t, err)
	return ns
}

func TestWallet(t *testing.T) {
	f := newFixture(t, Options{ChainID: 97})
	assert.Equal(t, WalletView{ChainID: 97}, f.svc.Wallet(context.Background()))

	f.chain.Connect(attendee)
	f.svc.balance = &mockBalance{BalanceFn: func(context.Context, common.Address) (*big.Int, error) {
		return big.NewInt(1_500_000_000_000_000_000), nil
	}}
	view := f.svc.Wallet(context.Background())
	assert.True(t, view.Connected)
	assert.Equal(t, model.ShortAddress(attendee), view.Short)
	assert.Equal(t, attendee.Hex(), view.Address)
	assert.Equal(t, "1.5000", view.Balance)

	f.svc.balance = &mockBalance{BalanceFn: func(context.Context, common.Address) (*big.Int, error) {
		return nil, errors.New("rpc down")
	}}
	view = f.svc.Wallet(context.Background())
	assert.Equal(t, "rpc down", view.BalanceError)
	assert.Empty(t, view.Balance)
}

func TestListEvents_DerivedActions(t *testing.T) {
	f := newFixture(t, Options{})
	open := f.chain.AddEvent(organizer, "Open", 100, 0)
	full := f.chain.AddEvent(organizer, "Full", 100, 1)
	f.chain.SetEvent(full, func(e *contract.EventTuple) { e.TotalBooked = big.NewInt(1) })
	cancelled := f.chain.AddEvent(organizer, "Cancelled", 100, 0)
	f.chain.SetEvent(cancelled, func(e *contract.EventTuple) { e.IsActive = false })
	f.chain.SetStatus(cancelled, attendee, model.AttendeeStatus{Booked: true, CheckedIn: true})
	f.chain.Connect(attendee)
	f.directory.Refresh(context.Background())

	view := f.svc.ListEvents()
	require.Equal(t, reader.DirectoryReady, view.State)
	require.Len(t, view.Events, 3)

	openView := view.Events[open].Event
	assert.Equal(t, model.ActionAvailable, openView.Actions.Book)
	assert.True(t, openView.Bookable)
	assert.Equal(t, int64(-1), openView.Remaining)
	assert.Equal(t, model.ActionNotOrganizer, openView.Actions.Cancel)

	fullView := view.Events[full].Event
	assert.Equal(t, model.ActionFull, fullView.Actions.Book)
	assert.False(t, fullView.Bookable)

	cancelledView := view.Events[cancelled].Event
	assert.Equal(t, model.ActionCancelled, cancelledView.Actions.Book)
	assert.Equal(t, model.ActionCancelled, cancelledView.Actions.CheckIn)
	require.NotNil(t, cancelledView.Status)
	assert.True(t, cancelledView.Status.CheckedIn)
}

func TestListEvents_MasksStatusesOfAnotherWallet(t *testing.T) {
	f := newFixture(t, Options{})
	id := f.chain.AddEvent(organizer, "Open", 0, 0)
	f.chain.SetStatus(id, attendee, model.AttendeeStatus{Booked: true})
	f.chain.Connect(attendee)
	f.directory.Refresh(context.Background())

	require.True(t, f.svc.ListEvents().Events[0].Event.Status.Booked)

	f.chain.Disconnect()
	item := f.svc.ListEvents().Events[0].Event
	assert.Nil(t, item.Status)
	assert.Equal(t, reader.QueryDisabled, item.StatusState)
	assert.Equal(t, model.ActionConnectWallet, item.Actions.Book)

	f.chain.Connect(organizer)
	item = f.svc.ListEvents().Events[0].Event
	assert.Nil(t, item.Status)
	assert.Equal(t, model.ActionLoading, item.Actions.Book)
}

func TestDisconnect(t *testing.T) {
	f := newFixture(t, Options{ChainID: 97})
	id := f.chain.AddEvent(organizer, "Open", 0, 0)
	f.chain.SetStatus(id, attendee, model.AttendeeStatus{Booked: true})
	f.chain.Connect(attendee)
	f.directory.Refresh(context.Background())

	view, err := f.svc.Disconnect(context.Background())
	require.NoError(t, err)
	assert.False(t, view.Connected)
	assert.Equal(t, int64(97), view.ChainID)

	item := f.svc.ListEvents().Events[0].Event
	assert.Nil(t, item.Status)
	assert.Equal(t, reader.QueryDisabled, item.StatusState)

	_, err = f.svc.Book(context.Background(), id)
	assert.ErrorIs(t, err, ErrWalletNotConnected)

	_, err = New(Deps{Contract: contract.NewReader(f.chain, contractAddr)}, Options{}).Disconnect(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestListEvents_ErrorIsNotEmpty(t *testing.T) {
	f := newFixture(t, Options{})
	f.chain.FailRead(contract.MethodEventCount, errors.New("node unavailable"))
	f.directory.Refresh(context.Background())

	view := f.svc.ListEvents()
	assert.Equal(t, reader.DirectoryError, view.State)
	assert.Contains(t, view.Error, "node unavailable")
	assert.NotNil(t, view.Events)
}

func TestGetEvent(t *testing.T) {
	f := newFixture(t, Options{})
	id := f.chain.AddEvent(organizer, "Open", 0, 0)

	_, err := f.svc.GetEvent(context.Background(), id+1)
	assert.ErrorIs(t, err, ErrNotFound)

	item, err := f.svc.GetEvent(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Open", item.Event.Title)
	assert.Equal(t, reader.QueryDisabled, item.Event.StatusState)
	assert.Zero(t, f.chain.CountReads(contract.MethodAttendeeStatus))
}

func TestBook_SubmitsPriceAndNotifiesOnce(t *testing.T) {
	f := newFixture(t, Options{})
	id := f.chain.AddEvent(organizer, "Paid", 10_000_000_000_000_000, 2)
	f.chain.Connect(attendee)

	tx, err := f.svc.Book(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "book/0", tx.Slot)
	assert.Equal(t, txstatus.Watching, tx.Status.State)

	writes := f.chain.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, "10000000000000000", writes[0].Value.String())

	_, err = f.svc.Book(context.Background(), id)
	assert.ErrorIs(t, err, txstatus.ErrSlotBusy)

	f.chain.Confirm(writes[0].Handle)
	status := f.waitIdle(t, tx.Slot)
	assert.Equal(t, txstatus.Succeeded, status.State)
	assert.Equal(t, "Event booked successfully", status.Message)
	assert.True(t, f.chain.Status(id, attendee).Booked)

	ns := f.waitNotifications(t, 1)
	assert.Equal(t, notify.KindSuccess, ns[0].Kind)
	assert.Equal(t, "book/0", ns[0].Slot)

	_, err = f.svc.Book(context.Background(), id)
	assert.ErrorIs(t, err, ErrAlreadyBooked)
}

func TestBook_Preconditions(t *testing.T) {
	f := newFixture(t, Options{})
	full := f.chain.AddEvent(organizer, "Full", 0, 1)
	f.chain.SetEvent(full, func(e *contract.EventTuple) { e.TotalBooked = big.NewInt(1) })
	cancelled := f.chain.AddEvent(organizer, "Cancelled", 0, 0)
	f.chain.SetEvent(cancelled, func(e *contract.EventTuple) { e.IsActive = false })

	_, err := f.svc.Book(context.Background(), full)
	assert.ErrorIs(t, err, ErrWalletNotConnected)

	f.chain.Connect(attendee)
	_, err = f.svc.Book(context.Background(), full)
	assert.ErrorIs(t, err, ErrEventFull)
	_, err = f.svc.Book(context.Background(), cancelled)
	assert.ErrorIs(t, err, ErrEventCancelled)
	_, err = f.svc.Book(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Empty(t, f.chain.Writes())
}

func TestBook_RevertReasonReachesNotification(t *testing.T) {
	f := newFixture(t, Options{})
	id := f.chain.AddEvent(organizer, "Paid", 5, 0)
	f.chain.Connect(attendee)

	tx, err := f.svc.Book(context.Background(), id)
	require.NoError(t, err)
	f.chain.Fail(f.chain.Writes()[0].Handle, "insufficient funds")

	status := f.waitIdle(t, tx.Slot)
	assert.Equal(t, txstatus.Failed, status.State)
	assert.Equal(t, "insufficient funds", status.Message)
}

func TestOrganizerCommands(t *testing.T) {
	f := newFixture(t, Options{})
	id := f.chain.AddEvent(organizer, "Mine", 0, 0)

	f.chain.Connect(attendee)
	_, err := f.svc.Cancel(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotOrganizer)
	_, err = f.svc.Withdraw(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotOrganizer)

	f.chain.Connect(organizer)
	tx, err := f.svc.Cancel(context.Background(), id)
	require.NoError(t, err)
	f.chain.Confirm(f.chain.Writes()[0].Handle)
	assert.Equal(t, txstatus.Succeeded, f.waitIdle(t, tx.Slot).State)

	_, err = f.svc.Cancel(context.Background(), id)
	assert.ErrorIs(t, err, ErrEventCancelled)

	// Withdrawal stays possible after cancellation; the contract decides.
	tx, err = f.svc.Withdraw(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "withdraw/0", tx.Slot)
}

func TestCreate(t *testing.T) {
	f := newFixture(t, Options{})

	_, err := f.svc.Create(context.Background(), model.CreateEventRequest{Title: "Launch", EventTime: 1})
	assert.ErrorIs(t, err, ErrWalletNotConnected)

	f.chain.Connect(organizer)
	_, err = f.svc.Create(context.Background(), model.CreateEventRequest{Title: " ", EventTime: 1})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.svc.Create(context.Background(), model.CreateEventRequest{Title: "Launch", EventTime: 1, PriceWei: "-3"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	tx, err := f.svc.Create(context.Background(), model.CreateEventRequest{
		Title: "Launch", EventTime: 1_900_000_000, PriceWei: "250", MaxAttendees: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, txstatus.SlotCreate, tx.Slot)

	f.chain.Confirm(f.chain.Writes()[0].Handle)
	assert.Equal(t, txstatus.Succeeded, f.waitIdle(t, tx.Slot).State)

	created := f.chain.Event(0)
	assert.Equal(t, organizer, created.Organizer)
	assert.Equal(t, "#6366f1", created.ColorCode)
	assert.Equal(t, int64(250), created.PriceBNB.Int64())
}

func TestSuccessTriggersDirectoryReload(t *testing.T) {
	f := newFixture(t, Options{})
	id := f.chain.AddEvent(organizer, "Open", 0, 0)
	f.chain.Connect(attendee)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.directory.Run(ctx, time.Hour)
	require.Eventually(t, func() bool { return f.directory.Snapshot().State == reader.DirectoryReady }, time.Second, 5*time.Millisecond)
	require.False(t, f.svc.ListEvents().Events[id].Event.Status.Booked)

	tx, err := f.svc.Book(context.Background(), id)
	require.NoError(t, err)
	f.chain.Confirm(f.chain.Writes()[0].Handle)
	f.waitIdle(t, tx.Slot)

	// Ticker plus reload timer.
	f.clock.WaitForTimers(2)
	f.clock.Advance(2 * time.Second)
	require.Eventually(t, func() bool {
		item := f.svc.ListEvents().Events[id].Event
		return item.Status != nil && item.Status.Booked
	}, time.Second, 5*time.Millisecond)
}

func TestShowCheckIn_PersistsAndLinks(t *testing.T) {
	f := newFixture(t, Options{})
	f.chain.AddEvent(organizer, "A", 0, 0)
	id := f.chain.AddEvent(organizer, "B", 0, 0)
	f.chain.Connect(attendee)

	link, err := f.svc.ShowCheckIn(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "https://tickets.example/checkin?eventId=1", link.URL)
	assert.Contains(t, link.ScanURL, "attendee="+attendee.Hex())

	v, err := f.state.Get(context.Background(), checkin.StateKey)
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	_, err = f.svc.ShowCheckIn(context.Background(), 7)
	assert.ErrorIs(t, err, ErrNotFound)
}

func query(t *testing.T, raw string) url.Values {
	t.Helper()
	q, err := url.ParseQuery(raw)
	require.NoError(t, err)
	return q
}
