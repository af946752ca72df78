// Package contract describes the ticketing contract's wire surface: its ABI,
// the method and event names, and typed decoding of its read functions.
package contract

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Contract methods.
const (
	MethodEventCount     = "eventCount"
	MethodGetEvent       = "getEvent"
	MethodAttendeeStatus = "attendeeStatus"
	MethodBookEvent      = "bookEvent"
	MethodCheckIn        = "checkIn"
	MethodCancelEvent    = "cancelEvent"
	MethodWithdrawFunds  = "withdrawFunds"
	MethodCreateEvent    = "createEvent"
)

// Contract events.
const (
	EventCreated   = "EventCreated"
	EventBooked    = "EventBooked"
	EventCheckedIn = "EventCheckedIn"
	EventCancelled = "EventCancelled"
	FundsWithdrawn = "FundsWithdrawn"
)

// Events lists every event the gateway listens for.
var Events = []string{EventCreated, EventBooked, EventCheckedIn, EventCancelled, FundsWithdrawn}

// EventTuple mirrors the struct returned by getEvent. Field names follow the
// ABI component names so go-ethereum can convert its decoded value into it.
type EventTuple struct {
	Organizer    common.Address
	Title        string
	Description  string
	PriceBNB     *big.Int
	EventTime    *big.Int
	MaxAttendees *big.Int
	ColorCode    string
	IsActive     bool
	TotalBooked  *big.Int
}

// ParseABI parses TicketingABI.
func ParseABI() (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(TicketingABI))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse ticketing abi: %w", err)
	}
	return parsed, nil
}

// TicketingABI is the ABI of the ticketing contract.
const TicketingABI = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "eventId", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "organizer", "type": "address"},
      {"indexed": false, "internalType": "string", "name": "title", "type": "string"}
    ],
    "name": "EventCreated",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "eventId", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "attendee", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"}
    ],
    "name": "EventBooked",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "eventId", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "attendee", "type": "address"}
    ],
    "name": "EventCheckedIn",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "eventId", "type": "uint256"}
    ],
    "name": "EventCancelled",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "eventId", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "organizer", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"}
    ],
    "name": "FundsWithdrawn",
    "type": "event"
  },
  {
    "inputs": [],
    "name": "eventCount",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "eventId", "type": "uint256"}],
    "name": "getEvent",
    "outputs": [
      {
        "components": [
          {"internalType": "address", "name": "organizer", "type": "address"},
          {"internalType": "string", "name": "title", "type": "string"},
          {"internalType": "string", "name": "description", "type": "string"},
          {"internalType": "uint256", "name": "priceBNB", "type": "uint256"},
          {"internalType": "uint256", "name": "eventTime", "type": "uint256"},
          {"internalType": "uint256", "name": "maxAttendees", "type": "uint256"},
          {"internalType": "string", "name": "colorCode", "type": "string"},
          {"internalType": "bool", "name": "isActive", "type": "bool"},
          {"internalType": "uint256", "name": "totalBooked", "type": "uint256"}
        ],
        "internalType": "struct EventBooking.Event",
        "name": "",
        "type": "tuple"
      }
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "uint256", "name": "eventId", "type": "uint256"},
      {"internalType": "address", "name": "attendee", "type": "address"}
    ],
    "name": "attendeeStatus",
    "outputs": [
      {"internalType": "bool", "name": "booked", "type": "bool"},
      {"internalType": "bool", "name": "checkedIn", "type": "bool"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "eventId", "type": "uint256"}],
    "name": "bookEvent",
    "outputs": [],
    "stateMutability": "payable",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "eventId", "type": "uint256"}],
    "name": "checkIn",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "eventId", "type": "uint256"}],
    "name": "cancelEvent",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "uint256", "name": "eventId", "type": "uint256"}],
    "name": "withdrawFunds",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "string", "name": "title", "type": "string"},
      {"internalType": "string", "name": "description", "type": "string"},
      {"internalType": "uint256", "name": "priceBNB", "type": "uint256"},
      {"internalType": "uint256", "name": "eventTime", "type": "uint256"},
      {"internalType": "uint256", "name": "maxAttendees", "type": "uint256"},
      {"internalType": "string", "name": "colorCode", "type": "string"}
    ],
    "name": "createEvent",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`
