// Package checkin resolves check-in deep links into the event and attendee
// they address.
package checkin

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/chain"
)

// Query parameter names.
const (
	ParamEventID  = "eventId"
	ParamAttendee = "attendee"
)

// StateKey is the persisted-state key holding the last event shown for
// check-in.
const StateKey = "checkin:eventId"

type Mode string

const (
	// ModeSelf: the connected wallet checks itself in.
	ModeSelf Mode = "self"
	// ModeScan: an organizer looks up a specific attendee.
	ModeScan Mode = "scan"
	// ModeStored: no parameters; the persisted event id is used.
	ModeStored Mode = "stored"
	// ModeInvalid: the link addresses no usable event.
	ModeInvalid Mode = "invalid"
)

// Source selects where the event id comes from.
type Source string

const (
	// SourceQuery reads the link parameters and falls back to the
	// persisted value only when there are none.
	SourceQuery Source = "query"
	// SourceStored ignores the link and uses the persisted value only.
	SourceStored Source = "stored"
)

func ParseSource(s string) (Source, error) {
	switch Source(strings.ToLower(strings.TrimSpace(s))) {
	case "", SourceQuery:
		return SourceQuery, nil
	case SourceStored:
		return SourceStored, nil
	}
	return "", fmt.Errorf("unknown check-in source %q", s)
}

// GuardOrder decides which problem is reported first when a link is
// invalid and no wallet is connected.
type GuardOrder string

const (
	ParamsFirst GuardOrder = "params-first"
	WalletFirst GuardOrder = "wallet-first"
)

func ParseGuardOrder(s string) (GuardOrder, error) {
	switch GuardOrder(strings.ToLower(strings.TrimSpace(s))) {
	case "", ParamsFirst:
		return ParamsFirst, nil
	case WalletFirst:
		return WalletFirst, nil
	}
	return "", fmt.Errorf("unknown check-in guard order %q", s)
}

// Target is a resolved check-in link. EventID is only meaningful when
// Mode is not ModeInvalid; Attendee is only set in ModeScan.
type Target struct {
	Mode     Mode
	EventID  uint64
	Attendee *common.Address
	// Reason explains an invalid target.
	Reason string
}

func (t Target) Valid() bool { return t.Mode != ModeInvalid }

// Invalid-link reasons.
const (
	ReasonInvalidLink = "Invalid or missing check-in link"
	ReasonNoEvent     = "No event selected for check-in"
)

// Resolve maps the link query and the persisted event id (if any) to a
// Target. Malformed values are treated as absent; a link that carries
// parameters but no usable event id is invalid and never falls back to
// the persisted value.
func Resolve(query url.Values, stored *uint64, source Source) Target {
	if source == SourceStored {
		return fromStored(stored)
	}

	rawID := strings.TrimSpace(query.Get(ParamEventID))
	rawAttendee := strings.TrimSpace(query.Get(ParamAttendee))
	if rawID == "" && rawAttendee == "" {
		return fromStored(stored)
	}

	id, ok := ParseEventID(rawID)
	if !ok {
		return Target{Mode: ModeInvalid, Reason: ReasonInvalidLink}
	}
	if attendee, ok := chain.ParseAddress(rawAttendee); ok {
		return Target{Mode: ModeScan, EventID: id, Attendee: &attendee}
	}
	return Target{Mode: ModeSelf, EventID: id}
}

func fromStored(stored *uint64) Target {
	if stored == nil {
		return Target{Mode: ModeInvalid, Reason: ReasonNoEvent}
	}
	return Target{Mode: ModeStored, EventID: *stored}
}

// ParseEventID accepts a non-negative decimal id. Zero is a valid id.
func ParseEventID(s string) (uint64, bool) {
	if s == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// URL builds the deep link for eventID under base. A nil attendee gives a
// self check-in link.
func URL(base string, eventID uint64, attendee *common.Address) string {
	q := url.Values{}
	q.Set(ParamEventID, strconv.FormatUint(eventID, 10))
	if attendee != nil {
		q.Set(ParamAttendee, attendee.Hex())
	}
	return strings.TrimRight(base, "/") + "/checkin?" + q.Encode()
}
