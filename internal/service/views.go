package service

import (
	"time"

	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/checkin"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/model"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/reader"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/txstatus"
)

type WalletView struct {
	Connected    bool   `json:"connected"`
	Address      string `json:"address,omitempty"`
	Short        string `json:"short,omitempty"`
	ChainID      int64  `json:"chain_id"`
	BalanceWei   string `json:"balance_wei,omitempty"`
	Balance      string `json:"balance,omitempty"`
	BalanceError string `json:"balance_error,omitempty"`
}

// Actions holds the state of each write control for one event.
type Actions struct {
	Book     model.Action `json:"book"`
	CheckIn  model.Action `json:"check_in"`
	Cancel   model.Action `json:"cancel"`
	Withdraw model.Action `json:"withdraw"`
}

type EventView struct {
	model.Event
	PriceFormatted string                `json:"price_formatted"`
	OrganizerShort string                `json:"organizer_short"`
	Remaining      int64                 `json:"remaining"`
	Full           bool                  `json:"full"`
	Cancelled      bool                  `json:"cancelled"`
	IsOrganizer    bool                  `json:"is_organizer"`
	Bookable       bool                  `json:"bookable"`
	CanCheckIn     bool                  `json:"can_check_in"`
	StatusState    reader.QueryState     `json:"status_state"`
	StatusError    string                `json:"status_error,omitempty"`
	Status         *model.AttendeeStatus `json:"status,omitempty"`
	Actions        Actions               `json:"actions"`
}

// ItemView is one directory entry. Event is nil unless State is ready.
type ItemView struct {
	ID    uint64            `json:"id"`
	State reader.QueryState `json:"state"`
	Error string            `json:"error,omitempty"`
	Event *EventView        `json:"event,omitempty"`
}

type DirectoryView struct {
	State    reader.DirectoryState `json:"state"`
	Error    string                `json:"error,omitempty"`
	Wallet   string                `json:"wallet,omitempty"`
	Events   []ItemView            `json:"events"`
	LoadedAt time.Time             `json:"loaded_at"`
}

// TxView is returned for every accepted write.
type TxView struct {
	Slot     string          `json:"slot"`
	HandleID string          `json:"handle_id"`
	Method   string          `json:"method"`
	Status   txstatus.Status `json:"status"`
}

type CheckInLink struct {
	EventID uint64 `json:"event_id"`
	URL     string `json:"url"`
	// ScanURL names the connected wallet as attendee, for the organizer
	// to scan.
	ScanURL string `json:"scan_url,omitempty"`
}

// CheckInState is what the check-in page shows.
type CheckInState string

const (
	CheckInInvalid       CheckInState = "invalid"
	CheckInConnectWallet CheckInState = "connect-wallet"
	CheckInLoading       CheckInState = "loading"
	CheckInFailed        CheckInState = "failed"
	CheckInCancelled     CheckInState = "cancelled"
	CheckInNotBooked     CheckInState = "not-booked"
	CheckInReady         CheckInState = "ready"
	CheckInDone          CheckInState = "checked-in"
)

// Check-in page messages.
const (
	MessageConnectWallet   = "Connect your wallet to continue"
	MessageNotBooked       = "This wallet has not booked this event"
	MessageAttendeeNoBook  = "This attendee has not booked this event"
	MessageAttendeeBooked  = "This attendee has booked and checks in from their own wallet"
	MessageConfirm         = "Confirm check-in"
	MessageCheckingIn      = "Checking in…"
	MessageCheckedIn       = "Check-in successful"
	MessageCancelled       = "This event has been cancelled"
	MessageLoading         = "Loading check-in…"
	MessageOnceCheckInNote = "Check-in is recorded on-chain and can only be done once per wallet"
)

type CheckInView struct {
	Mode        checkin.Mode          `json:"mode"`
	State       CheckInState          `json:"state"`
	Message     string                `json:"message"`
	Note        string                `json:"note"`
	EventID     *uint64               `json:"event_id,omitempty"`
	Attendee    string                `json:"attendee,omitempty"`
	Event       *model.Event          `json:"event,omitempty"`
	Status      *model.AttendeeStatus `json:"status,omitempty"`
	IsOrganizer bool                  `json:"is_organizer"`
	Action      model.Action          `json:"action,omitempty"`
	Error       string                `json:"error,omitempty"`
}
