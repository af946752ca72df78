package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/chain"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/metrics"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/model"
)

var (
	// ErrUnexpectedOutput is returned when a call decodes to the wrong shape.
	ErrUnexpectedOutput = errors.New("unexpected contract output")

	// ErrInconsistentStatus is returned for a status that is checked in
	// without being booked.
	ErrInconsistentStatus = errors.New("attendee status is checked in but not booked")
)

// Reader performs typed reads against one deployed ticketing contract.
type Reader struct {
	adapter chain.Adapter
	address common.Address
}

// NewReader constructs a Reader for the contract at address.
func NewReader(adapter chain.Adapter, address common.Address) *Reader {
	return &Reader{adapter: adapter, address: address}
}

func (r *Reader) Address() common.Address { return r.address }

// Wallet returns the connected wallet or nil.
func (r *Reader) Wallet() *common.Address {
	addr, ok := r.adapter.CurrentWallet()
	if !ok {
		return nil
	}
	return &addr
}

// EventCount returns the number of events ever created.
func (r *Reader) EventCount(ctx context.Context) (uint64, error) {
	out, err := r.call(ctx, MethodEventCount)
	if err != nil {
		return 0, err
	}
	if len(out) != 1 {
		return 0, fmt.Errorf("%w: %s returned %d values", ErrUnexpectedOutput, MethodEventCount, len(out))
	}
	count, ok := out[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("%w: %s returned %T", ErrUnexpectedOutput, MethodEventCount, out[0])
	}
	return toUint64(count, "event count")
}

// GetEvent returns event id.
func (r *Reader) GetEvent(ctx context.Context, id uint64) (model.Event, error) {
	out, err := r.call(ctx, MethodGetEvent, new(big.Int).SetUint64(id))
	if err != nil {
		return model.Event{}, err
	}
	if len(out) != 1 {
		return model.Event{}, fmt.Errorf("%w: %s returned %d values", ErrUnexpectedOutput, MethodGetEvent, len(out))
	}
	tuple, err := decodeEventTuple(out[0])
	if err != nil {
		return model.Event{}, err
	}
	return tuple.toEvent(id)
}

// AttendeeStatus returns the booking flags of attendee for event id.
func (r *Reader) AttendeeStatus(ctx context.Context, id uint64, attendee common.Address) (model.AttendeeStatus, error) {
	out, err := r.call(ctx, MethodAttendeeStatus, new(big.Int).SetUint64(id), attendee)
	if err != nil {
		return model.AttendeeStatus{}, err
	}
	if len(out) != 2 {
		return model.AttendeeStatus{}, fmt.Errorf("%w: %s returned %d values", ErrUnexpectedOutput, MethodAttendeeStatus, len(out))
	}
	booked, ok1 := out[0].(bool)
	checkedIn, ok2 := out[1].(bool)
	if !ok1 || !ok2 {
		return model.AttendeeStatus{}, fmt.Errorf("%w: %s returned (%T, %T)", ErrUnexpectedOutput, MethodAttendeeStatus, out[0], out[1])
	}
	if checkedIn && !booked {
		return model.AttendeeStatus{}, fmt.Errorf("event %d, %s: %w", id, attendee.Hex(), ErrInconsistentStatus)
	}
	return model.AttendeeStatus{Booked: booked, CheckedIn: checkedIn}, nil
}

// Subscribe forwards to the adapter for this contract.
func (r *Reader) Subscribe(ctx context.Context, eventName string, fn func(chain.Log)) (chain.Unsubscribe, error) {
	return r.adapter.SubscribeToEvent(ctx, r.address, eventName, fn)
}

func (r *Reader) call(ctx context.Context, method string, args ...any) ([]any, error) {
	out, err := r.adapter.ReadCall(ctx, r.address, method, args...)
	if err != nil {
		metrics.ChainReads.WithLabelValues(method, "error").Inc()
		return nil, fmt.Errorf("read %s: %w", method, err)
	}
	metrics.ChainReads.WithLabelValues(method, "ok").Inc()
	return out, nil
}

func decodeEventTuple(v any) (tuple EventTuple, err error) {
	if t, ok := v.(EventTuple); ok {
		return t, nil
	}
	defer func() {
		if recover() != nil {
			err = fmt.Errorf("%w: %s returned %T", ErrUnexpectedOutput, MethodGetEvent, v)
		}
	}()
	return *abi.ConvertType(v, new(EventTuple)).(*EventTuple), nil
}

func (t EventTuple) toEvent(id uint64) (model.Event, error) {
	eventTime, err := toUint64(t.EventTime, "event time")
	if err != nil {
		return model.Event{}, err
	}
	maxAttendees, err := toUint64(t.MaxAttendees, "max attendees")
	if err != nil {
		return model.Event{}, err
	}
	totalBooked, err := toUint64(t.TotalBooked, "total booked")
	if err != nil {
		return model.Event{}, err
	}
	price := new(big.Int)
	if t.PriceBNB != nil {
		price.Set(t.PriceBNB)
	}
	return model.Event{
		ID:           id,
		Organizer:    t.Organizer,
		Title:        t.Title,
		Description:  t.Description,
		ColorCode:    t.ColorCode,
		Price:        price,
		EventTime:    eventTime,
		MaxAttendees: maxAttendees,
		TotalBooked:  totalBooked,
		Active:       t.IsActive,
	}, nil
}

func toUint64(v *big.Int, field string) (uint64, error) {
	if v == nil {
		return 0, nil
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("%w: %s %s out of range", ErrUnexpectedOutput, field, v)
	}
	return v.Uint64(), nil
}
