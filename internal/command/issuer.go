// Package command issues the contract's state-changing calls. Every method
// hands exactly one write to the wallet adapter and returns its handle
// without waiting; submission and confirmation failures surface through
// the handle.
package command

import (
	"context"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/chain"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/contract"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/metrics"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/model"
)

type Issuer struct {
	adapter chain.Adapter
	address common.Address
	logger  *slog.Logger
}

func NewIssuer(adapter chain.Adapter, address common.Address, logger *slog.Logger) *Issuer {
	return &Issuer{adapter: adapter, address: address, logger: logger}
}

// Book buys a ticket for event, attaching exactly the event's price as
// the transaction value.
func (i *Issuer) Book(ctx context.Context, event model.Event) *chain.Handle {
	value := new(big.Int)
	if event.Price != nil {
		value.Set(event.Price)
	}
	return i.write(ctx, contract.MethodBookEvent, value, id(event.ID))
}

func (i *Issuer) CheckIn(ctx context.Context, eventID uint64) *chain.Handle {
	return i.write(ctx, contract.MethodCheckIn, nil, id(eventID))
}

func (i *Issuer) Cancel(ctx context.Context, eventID uint64) *chain.Handle {
	return i.write(ctx, contract.MethodCancelEvent, nil, id(eventID))
}

func (i *Issuer) Withdraw(ctx context.Context, eventID uint64) *chain.Handle {
	return i.write(ctx, contract.MethodWithdrawFunds, nil, id(eventID))
}

// Create submits a new event. Argument order follows the contract's
// createEvent signature.
func (i *Issuer) Create(ctx context.Context, p model.CreateEventParams) *chain.Handle {
	price := new(big.Int)
	if p.Price != nil {
		price.Set(p.Price)
	}
	return i.write(ctx, contract.MethodCreateEvent, nil,
		p.Title,
		p.Description,
		price,
		new(big.Int).SetUint64(p.EventTime),
		new(big.Int).SetUint64(p.MaxAttendees),
		p.ColorCode,
	)
}

func (i *Issuer) write(ctx context.Context, method string, value *big.Int, args ...any) *chain.Handle {
	h := i.adapter.WriteCall(ctx, i.address, method, value, args...)
	metrics.ChainWrites.WithLabelValues(method).Inc()
	attrs := []any{"method", method, "handle", h.ID().String()}
	if value != nil && value.Sign() > 0 {
		attrs = append(attrs, "value_wei", value.String())
	}
	i.logger.Info("write submitted", attrs...)
	return h
}

func id(v uint64) *big.Int { return new(big.Int).SetUint64(v) }
