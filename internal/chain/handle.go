package chain

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
)

// Handle identifies one submitted write. It is returned before the
// transaction is signed or broadcast; Wait reports the submission outcome.
type Handle struct {
	id     uuid.UUID
	method string

	once sync.Once
	done chan struct{}
	hash common.Hash
	tx   *types.Transaction
	err  error
}

// NewHandle creates an unresolved handle for a call to method.
func NewHandle(method string) *Handle {
	return &Handle{
		id:     uuid.New(),
		method: method,
		done:   make(chan struct{}),
	}
}

func (h *Handle) ID() uuid.UUID  { return h.id }
func (h *Handle) Method() string { return h.method }
func (h *Handle) String() string { return h.method + "/" + h.id.String() }

// Submitted is closed once the submission outcome is known.
func (h *Handle) Submitted() <-chan struct{} { return h.done }

// Resolve records the submission outcome. Only the first call has an effect.
func (h *Handle) Resolve(hash common.Hash, err error) {
	h.once.Do(func() {
		h.hash = hash
		h.err = err
		close(h.done)
	})
}

func (h *Handle) resolveTx(tx *types.Transaction, err error) {
	h.once.Do(func() {
		if tx != nil {
			h.tx = tx
			h.hash = tx.Hash()
		}
		h.err = err
		close(h.done)
	})
}

// Wait blocks until the submission outcome is known or ctx ends.
func (h *Handle) Wait(ctx context.Context) (common.Hash, error) {
	select {
	case <-h.done:
		return h.hash, h.err
	case <-ctx.Done():
		return common.Hash{}, ctx.Err()
	}
}

// Hash returns the transaction hash if the write was broadcast.
func (h *Handle) Hash() (common.Hash, bool) {
	select {
	case <-h.done:
		return h.hash, h.err == nil
	default:
		return common.Hash{}, false
	}
}

func (h *Handle) transaction() *types.Transaction {
	<-h.done
	return h.tx
}
