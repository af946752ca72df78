package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/checkin"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/model"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/txstatus"
)

func (s *Service) resolveCheckIn(ctx context.Context, query url.Values) checkin.Target {
	return checkin.Resolve(query, s.storedEventID(ctx), s.opts.CheckInSource)
}

// guard returns the first reason the link cannot be acted on, in the
// configured order, or "" if there is none.
func (s *Service) guard(target checkin.Target, wallet *common.Address) CheckInState {
	if s.opts.GuardOrder == checkin.WalletFirst && wallet == nil {
		return CheckInConnectWallet
	}
	if !target.Valid() {
		return CheckInInvalid
	}
	return ""
}

// CheckInView renders the check-in page for a deep link. Every problem is
// reported in the view; it never fails.
func (s *Service) CheckInView(ctx context.Context, query url.Values) CheckInView {
	target := s.resolveCheckIn(ctx, query)
	wallet := s.contract.Wallet()
	view := CheckInView{Mode: target.Mode, Note: MessageOnceCheckInNote}

	switch s.guard(target, wallet) {
	case CheckInConnectWallet:
		view.State = CheckInConnectWallet
		view.Message = MessageConnectWallet
		return view
	case CheckInInvalid:
		view.State = CheckInInvalid
		view.Message = target.Reason
		return view
	}

	id := target.EventID
	view.EventID = &id

	event, err := s.contract.GetEvent(ctx, id)
	if err != nil {
		return readFailed(view, err)
	}
	view.Event = &event
	view.IsOrganizer = model.IsOrganizer(&event, wallet)

	if wallet == nil {
		view.State = CheckInConnectWallet
		view.Message = MessageConnectWallet
		return view
	}

	attendee := *wallet
	if target.Mode == checkin.ModeScan {
		attendee = *target.Attendee
	}
	view.Attendee = attendee.Hex()

	status, err := s.contract.AttendeeStatus(ctx, id, attendee)
	if err != nil {
		return readFailed(view, err)
	}
	view.Status = &status

	pending := false
	if target.Mode == checkin.ModeScan {
		view.Action = model.ScanAction(&event, wallet)
	} else {
		pending = s.registry.Busy(txstatus.Slot(txstatus.ActionCheckIn, id))
		view.Action = model.CheckInAction(&event, status, wallet, pending)
	}

	switch {
	case model.IsCancelled(&event):
		view.State = CheckInCancelled
		view.Message = MessageCancelled
	case status.CheckedIn:
		view.State = CheckInDone
		view.Message = MessageCheckedIn
	case !status.Booked:
		view.State = CheckInNotBooked
		view.Message = MessageNotBooked
		if target.Mode == checkin.ModeScan {
			view.Message = MessageAttendeeNoBook
		}
	case target.Mode == checkin.ModeScan:
		view.State = CheckInReady
		view.Message = MessageAttendeeBooked
	default:
		view.State = CheckInReady
		view.Message = MessageConfirm
		if pending {
			view.Message = MessageCheckingIn
		}
	}
	return view
}

func readFailed(view CheckInView, err error) CheckInView {
	if errors.Is(err, context.DeadlineExceeded) {
		view.State = CheckInLoading
		view.Message = MessageLoading
		return view
	}
	view.State = CheckInFailed
	view.Message = "Could not load check-in"
	view.Error = err.Error()
	return view
}

// CheckInAction submits the self check-in addressed by a deep link. Scan
// links are refused with ErrScanReadOnly before any read or write.
func (s *Service) CheckInAction(ctx context.Context, query url.Values) (TxView, error) {
	target := s.resolveCheckIn(ctx, query)
	wallet := s.contract.Wallet()

	switch s.guard(target, wallet) {
	case CheckInConnectWallet:
		return TxView{}, ErrWalletNotConnected
	case CheckInInvalid:
		return TxView{}, fmt.Errorf("%w: %s", ErrInvalidLink, target.Reason)
	}
	if wallet == nil {
		return TxView{}, ErrWalletNotConnected
	}
	if target.Mode == checkin.ModeScan {
		return TxView{}, ErrScanReadOnly
	}
	return s.CheckIn(ctx, target.EventID)
}
