// Package chain is the boundary to the wallet/RPC layer. Everything above it
// talks to the contract through the Adapter interface; Client implements it
// on top of go-ethereum.
package chain

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Adapter is the capability set the gateway needs from a chain client.
type Adapter interface {
	// ReadCall performs a constant call and returns the decoded outputs.
	ReadCall(ctx context.Context, target common.Address, method string, args ...any) ([]any, error)

	// WriteCall submits a transaction and returns immediately. Signing,
	// broadcast and any rejection happen in the background and are
	// reported through the handle, never as a return value.
	WriteCall(ctx context.Context, target common.Address, method string, value *big.Int, args ...any) *Handle

	// WatchConfirmation blocks until the handle's transaction is mined
	// or has failed. A failure is reported as a *TxError.
	WatchConfirmation(ctx context.Context, h *Handle) (*Receipt, error)

	// SubscribeToEvent calls fn for every log of eventName emitted by
	// target until the returned Unsubscribe is called or ctx ends.
	SubscribeToEvent(ctx context.Context, target common.Address, eventName string, fn func(Log)) (Unsubscribe, error)

	// CurrentWallet returns the connected wallet, if any.
	CurrentWallet() (common.Address, bool)
}

// Unsubscribe stops an event subscription. Safe to call more than once.
type Unsubscribe func()

// Receipt is the part of a mined transaction receipt the gateway uses.
type Receipt struct {
	TxHash      common.Hash `json:"tx_hash"`
	BlockNumber uint64      `json:"block_number"`
	GasUsed     uint64      `json:"gas_used"`
}

// Log is a decoded contract event. Every ticketing event carries the event
// id as its first indexed argument.
type Log struct {
	Event       string      `json:"event"`
	EventID     uint64      `json:"event_id"`
	TxHash      common.Hash `json:"tx_hash"`
	BlockNumber uint64      `json:"block_number"`
	Removed     bool        `json:"removed"`
}

var (
	ErrNoWallet                 = errors.New("no wallet connected")
	ErrSubscriptionsUnsupported = errors.New("event subscriptions not supported by this endpoint")
)
