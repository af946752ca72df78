package model

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Derived state. Everything here is a pure function of already-fetched
// data; callers recompute on every new snapshot.

// IsOrganizer reports whether wallet created the event. Addresses are
// compared case-insensitively.
func IsOrganizer(event *Event, wallet *common.Address) bool {
	if event == nil || wallet == nil {
		return false
	}
	return strings.EqualFold(event.Organizer.Hex(), wallet.Hex())
}

// IsFull is never true for unlimited (MaxAttendees == 0) events.
func IsFull(event *Event) bool {
	return event.MaxAttendees != 0 && event.TotalBooked >= event.MaxAttendees
}

func IsCancelled(event *Event) bool {
	return !event.Active
}

// IsBookable reports whether wallet may submit a booking for event.
func IsBookable(event *Event, status AttendeeStatus, wallet *common.Address) bool {
	return wallet != nil && !status.Booked && !IsFull(event) && !IsCancelled(event)
}

func CanCheckIn(status AttendeeStatus, event *Event) bool {
	return status.Booked && !status.CheckedIn && !IsCancelled(event)
}

// Action is what a control for a given write shows to the user.
type Action string

const (
	ActionAvailable     Action = "available"
	ActionPending       Action = "pending"
	ActionCancelled     Action = "cancelled"
	ActionConnectWallet Action = "connect-wallet"
	ActionAlreadyBooked Action = "already-booked"
	ActionFull          Action = "full"
	ActionNotBooked     Action = "not-booked"
	ActionCheckedIn     Action = "checked-in"
	ActionNotOrganizer  Action = "not-organizer"
	// ActionLoading: the wallet's status for the event is not known yet.
	ActionLoading Action = "loading"
	// ActionReadOnly: the control shows another wallet's state and cannot
	// submit for it.
	ActionReadOnly Action = "read-only"
)

// Enabled reports whether the control accepts a submission.
func (a Action) Enabled() bool { return a == ActionAvailable }

// BookAction decides the state of the book control. Cancellation wins over
// everything else, so a cancelled event never offers a booking.
func BookAction(event *Event, status AttendeeStatus, wallet *common.Address, pending bool) Action {
	switch {
	case IsCancelled(event):
		return ActionCancelled
	case wallet == nil:
		return ActionConnectWallet
	case status.Booked:
		return ActionAlreadyBooked
	case IsFull(event):
		return ActionFull
	case pending:
		return ActionPending
	default:
		return ActionAvailable
	}
}

// CheckInAction decides the state of the check-in control.
func CheckInAction(event *Event, status AttendeeStatus, wallet *common.Address, pending bool) Action {
	switch {
	case IsCancelled(event):
		return ActionCancelled
	case wallet == nil:
		return ActionConnectWallet
	case !status.Booked:
		return ActionNotBooked
	case status.CheckedIn:
		return ActionCheckedIn
	case pending:
		return ActionPending
	default:
		return ActionAvailable
	}
}

// ScanAction decides the check-in control of an organizer-scan link. The
// contract checks in the sending wallet only, so a scan link never submits.
func ScanAction(event *Event, wallet *common.Address) Action {
	switch {
	case IsCancelled(event):
		return ActionCancelled
	case wallet == nil:
		return ActionConnectWallet
	case !IsOrganizer(event, wallet):
		return ActionNotOrganizer
	default:
		return ActionReadOnly
	}
}

// OrganizerAction decides the state of the cancel and withdraw controls.
// Withdraw stays available on cancelled events; cancel does not.
func OrganizerAction(event *Event, wallet *common.Address, pending bool, allowCancelled bool) Action {
	switch {
	case !allowCancelled && IsCancelled(event):
		return ActionCancelled
	case wallet == nil:
		return ActionConnectWallet
	case !IsOrganizer(event, wallet):
		return ActionNotOrganizer
	case pending:
		return ActionPending
	default:
		return ActionAvailable
	}
}

// ShortAddress renders 0x1234...abcd.
func ShortAddress(addr common.Address) string {
	hex := addr.Hex()
	return hex[:6] + "..." + hex[len(hex)-4:]
}

var weiPerEther = new(big.Float).SetInt(big.NewInt(1_000_000_000_000_000_000))

// FormatAmount renders a wei amount in whole currency units with four
// decimals.
func FormatAmount(wei *big.Int) string {
	if wei == nil {
		return "0.0000"
	}
	f := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerEther)
	return f.Text('f', 4)
}
