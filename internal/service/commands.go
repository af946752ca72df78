package service

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/chain"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/model"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/txstatus"
)

const defaultColorCode = "#6366f1"

// target is a freshly read event together with the connected wallet.
type target struct {
	event  model.Event
	status model.AttendeeStatus
	wallet common.Address
}

// load requires a connected wallet, reads event id and, when withStatus is
// set, the wallet's status for it.
func (s *Service) load(ctx context.Context, id uint64, withStatus bool) (target, error) {
	wallet, err := s.walletOrErr()
	if err != nil {
		return target{}, err
	}
	if err := s.checkExists(ctx, id); err != nil {
		return target{}, err
	}
	event, err := s.contract.GetEvent(ctx, id)
	if err != nil {
		return target{}, fmt.Errorf("get event: %w", err)
	}
	t := target{event: event, wallet: wallet}
	if withStatus {
		if t.status, err = s.contract.AttendeeStatus(ctx, id, wallet); err != nil {
			return target{}, fmt.Errorf("attendee status: %w", err)
		}
	}
	return t, nil
}

func (s *Service) submit(slot string, opts txstatus.Options, issue func() *chain.Handle) (TxView, error) {
	h, err := s.registry.Submit(slot, opts, issue)
	if err != nil {
		return TxView{}, err
	}
	return s.submitted(slot, h), nil
}

// Book buys a ticket for event id with the connected wallet.
func (s *Service) Book(ctx context.Context, id uint64) (TxView, error) {
	t, err := s.load(ctx, id, true)
	if err != nil {
		return TxView{}, err
	}
	switch {
	case model.IsCancelled(&t.event):
		return TxView{}, ErrEventCancelled
	case t.status.Booked:
		return TxView{}, ErrAlreadyBooked
	case model.IsFull(&t.event):
		return TxView{}, ErrEventFull
	}

	return s.submit(txstatus.Slot(txstatus.ActionBook, id),
		txstatus.Options{SuccessMessage: "Event booked successfully", Reload: true},
		func() *chain.Handle { return s.issuer.Book(ctx, t.event) },
	)
}

// CheckIn checks the connected wallet in to event id.
func (s *Service) CheckIn(ctx context.Context, id uint64) (TxView, error) {
	t, err := s.load(ctx, id, true)
	if err != nil {
		return TxView{}, err
	}
	if err := checkInAllowed(&t.event, t.status); err != nil {
		return TxView{}, err
	}
	return s.checkIn(ctx, id)
}

func (s *Service) checkIn(ctx context.Context, id uint64) (TxView, error) {
	return s.submit(txstatus.Slot(txstatus.ActionCheckIn, id),
		txstatus.Options{SuccessMessage: MessageCheckedIn, Reload: true},
		func() *chain.Handle { return s.issuer.CheckIn(ctx, id) },
	)
}

func checkInAllowed(event *model.Event, status model.AttendeeStatus) error {
	switch {
	case model.IsCancelled(event):
		return ErrEventCancelled
	case !status.Booked:
		return ErrNotBooked
	case status.CheckedIn:
		return ErrAlreadyCheckedIn
	}
	return nil
}

// Cancel cancels event id. Only the organizer may cancel.
func (s *Service) Cancel(ctx context.Context, id uint64) (TxView, error) {
	t, err := s.load(ctx, id, false)
	if err != nil {
		return TxView{}, err
	}
	switch {
	case !model.IsOrganizer(&t.event, &t.wallet):
		return TxView{}, ErrNotOrganizer
	case model.IsCancelled(&t.event):
		return TxView{}, ErrEventCancelled
	}

	return s.submit(txstatus.Slot(txstatus.ActionCancel, id),
		txstatus.Options{SuccessMessage: "Event cancelled", Reload: true},
		func() *chain.Handle { return s.issuer.Cancel(ctx, id) },
	)
}

// Withdraw pays the escrowed ticket revenue of event id to its organizer.
// Cancelled events may still be withdrawn from.
func (s *Service) Withdraw(ctx context.Context, id uint64) (TxView, error) {
	t, err := s.load(ctx, id, false)
	if err != nil {
		return TxView{}, err
	}
	if !model.IsOrganizer(&t.event, &t.wallet) {
		return TxView{}, ErrNotOrganizer
	}

	return s.submit(txstatus.Slot(txstatus.ActionWithdraw, id),
		txstatus.Options{SuccessMessage: "Funds withdrawn", Reload: true},
		func() *chain.Handle { return s.issuer.Withdraw(ctx, id) },
	)
}

// Create validates req and submits a new event owned by the connected
// wallet.
func (s *Service) Create(ctx context.Context, req model.CreateEventRequest) (TxView, error) {
	if _, err := s.walletOrErr(); err != nil {
		return TxView{}, err
	}
	params, err := validateCreate(req)
	if err != nil {
		return TxView{}, err
	}

	return s.submit(txstatus.SlotCreate,
		txstatus.Options{SuccessMessage: "Event created", Reload: true},
		func() *chain.Handle { return s.issuer.Create(ctx, params) },
	)
}

const maxTitleLength = 200

func validateCreate(req model.CreateEventRequest) (model.CreateEventParams, error) {
	p := model.CreateEventParams{
		Title:        strings.TrimSpace(req.Title),
		Description:  strings.TrimSpace(req.Description),
		ColorCode:    strings.TrimSpace(req.ColorCode),
		EventTime:    req.EventTime,
		MaxAttendees: req.MaxAttendees,
	}
	if p.Title == "" {
		return p, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(p.Title) > maxTitleLength {
		return p, fmt.Errorf("%w: title cannot exceed %d characters", ErrInvalidInput, maxTitleLength)
	}
	if p.EventTime == 0 {
		return p, fmt.Errorf("%w: event_time is required", ErrInvalidInput)
	}
	if p.ColorCode == "" {
		p.ColorCode = defaultColorCode
	}

	p.Price = new(big.Int)
	if raw := strings.TrimSpace(req.PriceWei); raw != "" {
		if _, ok := p.Price.SetString(raw, 10); !ok || p.Price.Sign() < 0 {
			return p, fmt.Errorf("%w: price_wei must be a non-negative integer", ErrInvalidInput)
		}
	}
	return p, nil
}
