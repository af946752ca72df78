// Package model defines the domain types for the on-chain ticketing gateway.
package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Event is the contract's view of a bookable event. Ids are assigned
// sequentially by the contract, starting at 0.
type Event struct {
	ID           uint64         `json:"id"`
	Organizer    common.Address `json:"organizer"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	ColorCode    string         `json:"color_code"`
	Price        *big.Int       `json:"price"`
	EventTime    uint64         `json:"event_time"`
	MaxAttendees uint64         `json:"max_attendees"`
	TotalBooked  uint64         `json:"total_booked"`
	Active       bool           `json:"active"`
}

// Remaining returns the number of free places, or -1 for unlimited events.
func (e *Event) Remaining() int64 {
	if e.MaxAttendees == 0 {
		return -1
	}
	if e.TotalBooked >= e.MaxAttendees {
		return 0
	}
	return int64(e.MaxAttendees - e.TotalBooked)
}

// AttendeeStatus is keyed by (event id, wallet). Both flags only ever go
// from false to true, and CheckedIn implies Booked.
type AttendeeStatus struct {
	Booked    bool `json:"booked"`
	CheckedIn bool `json:"checked_in"`
}

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	ColorCode    string `json:"color_code"`
	PriceWei     string `json:"price_wei"`
	EventTime    uint64 `json:"event_time"`
	MaxAttendees uint64 `json:"max_attendees"`
}

// CreateEventParams is a validated CreateEventRequest, ready for the contract.
type CreateEventParams struct {
	Title        string
	Description  string
	ColorCode    string
	Price        *big.Int
	EventTime    uint64
	MaxAttendees uint64
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
