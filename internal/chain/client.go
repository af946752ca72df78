package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Config holds the settings for Dial.
type Config struct {
	RPCURL string
	// ChainID is queried from the node when zero.
	ChainID int64
	// PrivateKey is the hex-encoded wallet key. Empty leaves the client
	// without a connected wallet.
	PrivateKey string
	// ConfirmTimeout bounds WatchConfirmation. Zero waits indefinitely.
	ConfirmTimeout time.Duration
	ABI            abi.ABI
}

// Backend is the node API the client needs. *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ethereum.ChainIDReader
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Client is the go-ethereum implementation of Adapter.
type Client struct {
	eth            Backend
	close          func()
	abi            abi.ABI
	chainID        *big.Int
	confirmTimeout time.Duration
	logger         *slog.Logger

	wallet atomic.Pointer[wallet]
}

type wallet struct {
	address common.Address
	key     *ecdsa.PrivateKey
}

// Dial connects to the RPC endpoint and, when a key is configured, connects
// the wallet.
func Dial(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	c, err := NewClient(ctx, eth, cfg, logger)
	if err != nil {
		eth.Close()
		return nil, err
	}
	c.close = eth.Close
	return c, nil
}

// NewClient wraps an already connected backend. cfg.RPCURL is ignored.
func NewClient(ctx context.Context, backend Backend, cfg Config, logger *slog.Logger) (*Client, error) {
	chainID := big.NewInt(cfg.ChainID)
	if cfg.ChainID == 0 {
		var err error
		if chainID, err = backend.ChainID(ctx); err != nil {
			return nil, fmt.Errorf("query chain id: %w", err)
		}
	}

	c := &Client{
		eth:            backend,
		abi:            cfg.ABI,
		chainID:        chainID,
		confirmTimeout: cfg.ConfirmTimeout,
		logger:         logger,
	}
	if cfg.PrivateKey != "" {
		if _, err := c.Connect(cfg.PrivateKey); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Close releases the connection opened by Dial.
func (c *Client) Close() {
	if c.close != nil {
		c.close()
	}
}

// ChainID returns the chain the client signs for.
func (c *Client) ChainID() *big.Int { return new(big.Int).Set(c.chainID) }

// Connect loads the hex-encoded private key as the current wallet.
func (c *Client) Connect(hexKey string) (common.Address, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("parse wallet key: %w", err)
	}
	w := &wallet{address: crypto.PubkeyToAddress(key.PublicKey), key: key}
	c.wallet.Store(w)
	c.logger.Info("wallet connected", "address", w.address.Hex())
	return w.address, nil
}

// Disconnect forgets the wallet. Writes submitted afterwards are rejected.
func (c *Client) Disconnect() {
	if old := c.wallet.Swap(nil); old != nil {
		c.logger.Info("wallet disconnected", "address", old.address.Hex())
	}
}

func (c *Client) CurrentWallet() (common.Address, bool) {
	w := c.wallet.Load()
	if w == nil {
		return common.Address{}, false
	}
	return w.address, true
}

// Balance returns the native-currency balance of addr at the latest block.
func (c *Client) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	balance, err := c.eth.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("balance of %s: %w", addr.Hex(), err)
	}
	return balance, nil
}

func (c *Client) bound(target common.Address) *bind.BoundContract {
	return bind.NewBoundContract(target, c.abi, c.eth, c.eth, c.eth)
}

func (c *Client) ReadCall(ctx context.Context, target common.Address, method string, args ...any) ([]any, error) {
	opts := &bind.CallOpts{Context: ctx}
	if addr, ok := c.CurrentWallet(); ok {
		opts.From = addr
	}

	var out []any
	if err := c.bound(target).Call(opts, &out, method, args...); err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	return out, nil
}

func (c *Client) WriteCall(ctx context.Context, target common.Address, method string, value *big.Int, args ...any) *Handle {
	h := NewHandle(method)

	w := c.wallet.Load()
	if w == nil {
		h.resolveTx(nil, &TxError{Kind: FailureRejected, Reason: ErrNoWallet.Error(), Err: ErrNoWallet})
		return h
	}

	// The submission outlives the request that asked for it.
	ctx = context.WithoutCancel(ctx)
	go func() {
		opts, err := bind.NewKeyedTransactorWithChainID(w.key, c.chainID)
		if err != nil {
			h.resolveTx(nil, &TxError{Kind: FailureRejected, Reason: "wallet cannot sign", Err: err})
			return
		}
		opts.Context = ctx
		opts.Value = value

		tx, err := c.bound(target).Transact(opts, method, args...)
		if err != nil {
			txErr := submitError(err)
			c.logger.Warn("write not submitted", "method", method, "handle", h.ID(), "kind", txErr.Kind, "error", err)
			h.resolveTx(nil, txErr)
			return
		}
		c.logger.Info("write submitted", "method", method, "handle", h.ID(), "tx", tx.Hash().Hex())
		h.resolveTx(tx, nil)
	}()
	return h
}

func (c *Client) WatchConfirmation(ctx context.Context, h *Handle) (*Receipt, error) {
	if c.confirmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.confirmTimeout)
		defer cancel()
	}

	if _, err := h.Wait(ctx); err != nil {
		return nil, c.watchError(err)
	}
	tx := h.transaction()

	receipt, err := bind.WaitMined(ctx, c.eth, tx)
	if err != nil {
		return nil, c.watchError(err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, &TxError{Kind: FailureReverted, Reason: c.replayRevert(ctx, tx, receipt)}
	}

	return &Receipt{
		TxHash:      receipt.TxHash,
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
	}, nil
}

func (c *Client) watchError(err error) error {
	if c.confirmTimeout > 0 && errors.Is(err, context.DeadlineExceeded) {
		return &TxError{
			Kind:   FailureTimedOut,
			Reason: fmt.Sprintf("transaction not confirmed within %s", c.confirmTimeout),
			Err:    err,
		}
	}
	return err
}

// replayRevert re-executes a failed transaction at its block to recover the
// revert string. Mined receipts do not carry it.
func (c *Client) replayRevert(ctx context.Context, tx *types.Transaction, receipt *types.Receipt) string {
	from, err := types.Sender(types.LatestSignerForChainID(c.chainID), tx)
	if err != nil {
		return ""
	}
	msg := ethereum.CallMsg{
		From:  from,
		To:    tx.To(),
		Gas:   tx.Gas(),
		Value: tx.Value(),
		Data:  tx.Data(),
	}
	_, err = c.eth.CallContract(ctx, msg, receipt.BlockNumber)
	reason, _ := revertReason(err)
	return reason
}

func (c *Client) SubscribeToEvent(ctx context.Context, target common.Address, eventName string, fn func(Log)) (Unsubscribe, error) {
	if _, ok := c.abi.Events[eventName]; !ok {
		return nil, fmt.Errorf("unknown contract event %q", eventName)
	}

	logs, sub, err := c.bound(target).WatchLogs(&bind.WatchOpts{Context: ctx}, eventName)
	if err != nil {
		if errors.Is(err, rpc.ErrNotificationsUnsupported) {
			return nil, ErrSubscriptionsUnsupported
		}
		return nil, fmt.Errorf("watch %s: %w", eventName, err)
	}

	stop := make(chan struct{})
	go func() {
		for {
			select {
			case raw := <-logs:
				fn(decodeLog(eventName, raw))
			case err := <-sub.Err():
				if err != nil {
					c.logger.Warn("event subscription ended", "event", eventName, "error", err)
				}
				return
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.Unsubscribe()
			close(stop)
		})
	}, nil
}

func decodeLog(eventName string, raw types.Log) Log {
	l := Log{
		Event:       eventName,
		TxHash:      raw.TxHash,
		BlockNumber: raw.BlockNumber,
		Removed:     raw.Removed,
	}
	if len(raw.Topics) > 1 {
		l.EventID = new(big.Int).SetBytes(raw.Topics[1].Bytes()).Uint64()
	}
	return l
}
