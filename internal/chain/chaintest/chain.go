// Package chaintest provides an in-memory ticketing contract that implements
// chain.Adapter, for tests that need realistic reads, reverts and
// confirmation timing without a node.
package chaintest

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/chain"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/contract"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/model"
)

// Call records one ReadCall.
type Call struct {
	Method string
	Args   []any
}

// Write records one WriteCall.
type Write struct {
	Handle *chain.Handle
	From   common.Address
	Method string
	Value  *big.Int
	Args   []any
}

type statusKey struct {
	id       uint64
	attendee common.Address
}

type outcome struct {
	receipt *chain.Receipt
	err     error
}

type pendingTx struct {
	write    Write
	result   chan outcome
	resolved bool
}

// Chain is the fake. The zero value is not usable; call New.
type Chain struct {
	mu sync.Mutex

	wallet   *common.Address
	events   []contract.EventTuple
	statuses map[statusKey]model.AttendeeStatus
	escrow   map[uint64]*big.Int

	readErrs  map[string]error
	eventErrs map[uint64]error
	holds     map[uint64]chan struct{}

	calls  []Call
	writes []Write
	txs    map[uuid.UUID]*pendingTx

	autoConfirm bool
	rejectNext  string
	noSubscribe bool
	subscribers map[string][]*subscriber
	nonce       uint64
}

type subscriber struct {
	fn     func(chain.Log)
	active bool
}

var _ chain.Adapter = (*Chain)(nil)

// New returns an empty contract. Transactions wait for Confirm or Fail
// unless SetAutoConfirm(true) is called.
func New() *Chain {
	return &Chain{
		statuses:    make(map[statusKey]model.AttendeeStatus),
		escrow:      make(map[uint64]*big.Int),
		readErrs:    make(map[string]error),
		eventErrs:   make(map[uint64]error),
		holds:       make(map[uint64]chan struct{}),
		txs:         make(map[uuid.UUID]*pendingTx),
		subscribers: make(map[string][]*subscriber),
	}
}

// --- fixture setup ---

// Connect sets the current wallet.
func (c *Chain) Connect(addr common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wallet = &addr
}

// Disconnect clears the current wallet.
func (c *Chain) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wallet = nil
}

// AddEvent appends an active event and returns its id.
func (c *Chain) AddEvent(organizer common.Address, title string, price int64, maxAttendees uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addEventLocked(contract.EventTuple{
		Organizer:    organizer,
		Title:        title,
		Description:  title + " description",
		PriceBNB:     big.NewInt(price),
		EventTime:    big.NewInt(1_900_000_000),
		MaxAttendees: new(big.Int).SetUint64(maxAttendees),
		ColorCode:    "#6366f1",
		IsActive:     true,
		TotalBooked:  new(big.Int),
	})
}

func (c *Chain) addEventLocked(t contract.EventTuple) uint64 {
	c.events = append(c.events, t)
	return uint64(len(c.events) - 1)
}

// SetEvent overwrites the stored tuple for id through fn.
func (c *Chain) SetEvent(id uint64, fn func(*contract.EventTuple)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.events[id])
}

// SetStatus overwrites an attendee status without any contract checks.
func (c *Chain) SetStatus(id uint64, attendee common.Address, status model.AttendeeStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[statusKey{id, attendee}] = status
}

// FailRead makes every ReadCall of method return err. A nil err clears it.
func (c *Chain) FailRead(method string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.readErrs, method)
		return
	}
	c.readErrs[method] = err
}

// FailEvent makes getEvent(id) return err.
func (c *Chain) FailEvent(id uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eventErrs[id] = err
}

// HoldEvent makes getEvent(id) block until release is called or the
// caller's context ends.
func (c *Chain) HoldEvent(id uint64) (release func()) {
	ch := make(chan struct{})
	c.mu.Lock()
	c.holds[id] = ch
	c.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.holds, id)
			c.mu.Unlock()
			close(ch)
		})
	}
}

// SetAutoConfirm makes WatchConfirmation mine transactions immediately.
func (c *Chain) SetAutoConfirm(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoConfirm = on
}

// RejectNext makes the next WriteCall fail as if the user declined to sign.
func (c *Chain) RejectNext(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rejectNext = reason
}

// DisableSubscriptions makes SubscribeToEvent report that the endpoint
// cannot push events.
func (c *Chain) DisableSubscriptions() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.noSubscribe = true
}

// --- inspection ---

// ReadCalls returns the recorded reads.
func (c *Chain) ReadCalls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// CountReads returns how many reads of method were made.
func (c *Chain) CountReads(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, call := range c.calls {
		if call.Method == method {
			n++
		}
	}
	return n
}

// Writes returns the recorded writes.
func (c *Chain) Writes() []Write {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Write(nil), c.writes...)
}

// Event returns the stored tuple for id.
func (c *Chain) Event(id uint64) contract.EventTuple {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events[id]
}

// Status returns the stored status.
func (c *Chain) Status(id uint64, attendee common.Address) model.AttendeeStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statuses[statusKey{id, attendee}]
}

// --- chain.Adapter ---

func (c *Chain) CurrentWallet() (common.Address, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.wallet == nil {
		return common.Address{}, false
	}
	return *c.wallet, true
}

func (c *Chain) ReadCall(ctx context.Context, target common.Address, method string, args ...any) ([]any, error) {
	c.mu.Lock()
	c.calls = append(c.calls, Call{Method: method, Args: args})
	if err := c.readErrs[method]; err != nil {
		c.mu.Unlock()
		return nil, err
	}

	var hold chan struct{}
	if method == contract.MethodGetEvent {
		id := argID(args)
		if err := c.eventErrs[id]; err != nil {
			c.mu.Unlock()
			return nil, err
		}
		hold = c.holds[id]
	}
	c.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch method {
	case contract.MethodEventCount:
		return []any{big.NewInt(int64(len(c.events)))}, nil
	case contract.MethodGetEvent:
		id := argID(args)
		if id >= uint64(len(c.events)) {
			return nil, fmt.Errorf("execution reverted: Event does not exist")
		}
		return []any{copyTuple(c.events[id])}, nil
	case contract.MethodAttendeeStatus:
		attendee, _ := args[1].(common.Address)
		st := c.statuses[statusKey{argID(args), attendee}]
		return []any{st.Booked, st.CheckedIn}, nil
	}
	return nil, fmt.Errorf("chaintest: unknown read method %q", method)
}

func (c *Chain) WriteCall(ctx context.Context, target common.Address, method string, value *big.Int, args ...any) *chain.Handle {
	h := chain.NewHandle(method)

	c.mu.Lock()
	defer c.mu.Unlock()

	w := Write{Handle: h, Method: method, Value: value, Args: args}
	if c.wallet != nil {
		w.From = *c.wallet
	}
	c.writes = append(c.writes, w)

	switch {
	case c.wallet == nil:
		h.Resolve(common.Hash{}, &chain.TxError{Kind: chain.FailureRejected, Reason: chain.ErrNoWallet.Error(), Err: chain.ErrNoWallet})
	case c.rejectNext != "":
		h.Resolve(common.Hash{}, &chain.TxError{Kind: chain.FailureRejected, Reason: c.rejectNext})
		c.rejectNext = ""
	default:
		c.nonce++
		c.txs[h.ID()] = &pendingTx{write: w, result: make(chan outcome, 1)}
		h.Resolve(common.BigToHash(new(big.Int).SetUint64(c.nonce)), nil)
	}
	return h
}

func (c *Chain) WatchConfirmation(ctx context.Context, h *chain.Handle) (*chain.Receipt, error) {
	if _, err := h.Wait(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	tx := c.txs[h.ID()]
	auto := c.autoConfirm
	c.mu.Unlock()
	if tx == nil {
		return nil, fmt.Errorf("chaintest: unknown handle %s", h)
	}

	if auto {
		c.Confirm(h)
	}
	select {
	case out := <-tx.result:
		// Leave the outcome in place for any later watcher of the same handle.
		tx.result <- out
		return out.receipt, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Chain) SubscribeToEvent(ctx context.Context, target common.Address, eventName string, fn func(chain.Log)) (chain.Unsubscribe, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.noSubscribe {
		return nil, chain.ErrSubscriptionsUnsupported
	}
	sub := &subscriber{fn: fn, active: true}
	c.subscribers[eventName] = append(c.subscribers[eventName], sub)
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		sub.active = false
	}, nil
}

// --- mining ---

// Confirm mines the transaction behind h, applying the contract rules. A
// rule violation resolves the watch with a revert.
func (c *Chain) Confirm(h *chain.Handle) {
	c.mu.Lock()
	tx := c.txs[h.ID()]
	if tx == nil || tx.resolved {
		c.mu.Unlock()
		return
	}
	tx.resolved = true
	logs, err := c.applyLocked(tx.write)
	hash, _ := h.Hash()
	out := outcome{err: err}
	if err == nil {
		out.receipt = &chain.Receipt{TxHash: hash, BlockNumber: c.nonce, GasUsed: 21_000}
	}
	tx.result <- out
	subs := c.subscribersFor(logs)
	c.mu.Unlock()

	for _, d := range subs {
		d.fn(d.log)
	}
}

// Fail resolves the watch on h with a revert carrying reason, without
// touching contract state.
func (c *Chain) Fail(h *chain.Handle, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tx := c.txs[h.ID()]
	if tx == nil || tx.resolved {
		return
	}
	tx.resolved = true
	tx.result <- outcome{err: &chain.TxError{Kind: chain.FailureReverted, Reason: reason}}
}

// Emit delivers a contract event to subscribers without a transaction.
func (c *Chain) Emit(eventName string, id uint64) {
	c.mu.Lock()
	subs := c.subscribersFor([]chain.Log{{Event: eventName, EventID: id}})
	c.mu.Unlock()
	for _, d := range subs {
		d.fn(d.log)
	}
}

type delivery struct {
	fn  func(chain.Log)
	log chain.Log
}

func (c *Chain) subscribersFor(logs []chain.Log) []delivery {
	var out []delivery
	for _, l := range logs {
		for _, sub := range c.subscribers[l.Event] {
			if sub.active {
				out = append(out, delivery{fn: sub.fn, log: l})
			}
		}
	}
	return out
}

func revert(reason string) error {
	return &chain.TxError{Kind: chain.FailureReverted, Reason: reason}
}

func (c *Chain) applyLocked(w Write) ([]chain.Log, error) {
	if w.Method == contract.MethodCreateEvent {
		id := c.addEventLocked(contract.EventTuple{
			Organizer:    w.From,
			Title:        w.Args[0].(string),
			Description:  w.Args[1].(string),
			PriceBNB:     w.Args[2].(*big.Int),
			EventTime:    w.Args[3].(*big.Int),
			MaxAttendees: w.Args[4].(*big.Int),
			ColorCode:    w.Args[5].(string),
			IsActive:     true,
			TotalBooked:  new(big.Int),
		})
		return []chain.Log{{Event: contract.EventCreated, EventID: id}}, nil
	}

	id := argID(w.Args)
	if id >= uint64(len(c.events)) {
		return nil, revert("Event does not exist")
	}
	event := &c.events[id]
	key := statusKey{id, w.From}
	status := c.statuses[key]

	switch w.Method {
	case contract.MethodBookEvent:
		switch {
		case !event.IsActive:
			return nil, revert("Event not active")
		case status.Booked:
			return nil, revert("Already booked")
		case event.MaxAttendees.Sign() > 0 && event.TotalBooked.Cmp(event.MaxAttendees) >= 0:
			return nil, revert("Event full")
		case w.Value == nil || w.Value.Cmp(event.PriceBNB) != 0:
			return nil, revert("Incorrect payment")
		}
		status.Booked = true
		c.statuses[key] = status
		event.TotalBooked = new(big.Int).Add(event.TotalBooked, big.NewInt(1))
		if c.escrow[id] == nil {
			c.escrow[id] = new(big.Int)
		}
		c.escrow[id].Add(c.escrow[id], w.Value)
		return []chain.Log{{Event: contract.EventBooked, EventID: id}}, nil

	case contract.MethodCheckIn:
		switch {
		case !event.IsActive:
			return nil, revert("Event not active")
		case !status.Booked:
			return nil, revert("Not booked")
		case status.CheckedIn:
			return nil, revert("Already checked in")
		}
		status.CheckedIn = true
		c.statuses[key] = status
		return []chain.Log{{Event: contract.EventCheckedIn, EventID: id}}, nil

	case contract.MethodCancelEvent:
		switch {
		case event.Organizer != w.From:
			return nil, revert("Not organizer")
		case !event.IsActive:
			return nil, revert("Event not active")
		}
		event.IsActive = false
		return []chain.Log{{Event: contract.EventCancelled, EventID: id}}, nil

	case contract.MethodWithdrawFunds:
		switch {
		case event.Organizer != w.From:
			return nil, revert("Not organizer")
		case c.escrow[id] == nil || c.escrow[id].Sign() == 0:
			return nil, revert("Nothing to withdraw")
		}
		c.escrow[id] = new(big.Int)
		return []chain.Log{{Event: contract.FundsWithdrawn, EventID: id}}, nil
	}
	return nil, fmt.Errorf("chaintest: unknown write method %q", w.Method)
}

func argID(args []any) uint64 {
	if len(args) == 0 {
		return 0
	}
	if id, ok := args[0].(*big.Int); ok {
		return id.Uint64()
	}
	return 0
}

func copyTuple(t contract.EventTuple) contract.EventTuple {
	cp := t
	cp.PriceBNB = new(big.Int).Set(t.PriceBNB)
	cp.EventTime = new(big.Int).Set(t.EventTime)
	cp.MaxAttendees = new(big.Int).Set(t.MaxAttendees)
	cp.TotalBooked = new(big.Int).Set(t.TotalBooked)
	return cp
}
