package chain

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A cut-down ticketing surface: the contracts below are hand-assembled and
// ignore their calldata.
const testABI = `[
	{"type":"function","name":"checkIn","stateMutability":"nonpayable","inputs":[{"name":"id","type":"uint256"}],"outputs":[]},
	{"type":"event","name":"EventCheckedIn","anonymous":false,"inputs":[{"name":"id","type":"uint256","indexed":true}]}
]`

type simChain struct {
	backend *simulated.Backend
	client  *Client
	key     *ecdsa.PrivateKey
	abi     abi.ABI
}

func newSimChain(t *testing.T, cfg Config) *simChain {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	funds := new(big.Int).Exp(big.NewInt(10), big.NewInt(20), nil)
	backend := simulated.NewBackend(types.GenesisAlloc{
		crypto.PubkeyToAddress(key.PublicKey): {Balance: funds},
	})
	t.Cleanup(func() { _ = backend.Close() })

	parsed, err := abi.JSON(strings.NewReader(testABI))
	require.NoError(t, err)
	cfg.ABI = parsed
	cfg.PrivateKey = "0x" + hex.EncodeToString(crypto.FromECDSA(key))

	client, err := NewClient(context.Background(), backend.Client(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return &simChain{backend: backend, client: client, key: key, abi: parsed}
}

// sendRaw signs and sends a transaction with a fixed gas limit, skipping
// estimation, and mines it.
func (s *simChain) sendRaw(t *testing.T, to *common.Address, data []byte) *types.Transaction {
	t.Helper()
	ctx := context.Background()
	eth := s.backend.Client()
	from := crypto.PubkeyToAddress(s.key.PublicKey)
	nonce, err := eth.PendingNonceAt(ctx, from)
	require.NoError(t, err)

	tx, err := types.SignTx(types.NewTx(&types.DynamicFeeTx{
		ChainID:   s.client.ChainID(),
		Nonce:     nonce,
		GasTipCap: big.NewInt(1_000_000_000),
		GasFeeCap: big.NewInt(100_000_000_000),
		Gas:       1_000_000,
		To:        to,
		Data:      data,
	}), types.LatestSignerForChainID(s.client.ChainID()), s.key)
	require.NoError(t, err)
	require.NoError(t, eth.SendTransaction(ctx, tx))
	s.backend.Commit()
	return tx
}

func (s *simChain) deploy(t *testing.T, runtime []byte) common.Address {
	t.Helper()
	tx := s.sendRaw(t, nil, initCode(runtime))
	receipt, err := s.backend.Client().TransactionReceipt(context.Background(), tx.Hash())
	require.NoError(t, err)
	require.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	return receipt.ContractAddress
}

// initCode is a constructor that returns runtime. Both helpers below rely on
// their prefix being 12 bytes long.
func initCode(runtime []byte) []byte {
	n := len(runtime)
	// PUSH2 n, DUP1, PUSH1 12, PUSH1 0, CODECOPY, PUSH1 0, RETURN
	code := []byte{0x61, byte(n >> 8), byte(n), 0x80, 0x60, 0x0c, 0x60, 0x00, 0x39, 0x60, 0x00, 0xf3}
	return append(code, runtime...)
}

// revertingCode always reverts with Error(reason). reason must fit in 32 bytes.
func revertingCode(reason string) []byte {
	data := common.FromHex("0x08c379a0")
	data = append(data, common.LeftPadBytes([]byte{0x20}, 32)...)
	data = append(data, common.LeftPadBytes(big.NewInt(int64(len(reason))).Bytes(), 32)...)
	data = append(data, common.RightPadBytes([]byte(reason), 32)...)
	n := byte(len(data))
	// PUSH1 n, PUSH1 12, PUSH1 0, CODECOPY, PUSH1 n, PUSH1 0, REVERT
	code := []byte{0x60, n, 0x60, 0x0c, 0x60, 0x00, 0x39, 0x60, n, 0x60, 0x00, 0xfd}
	return append(code, data...)
}

// emittingCode emits a log with topics (topic0, id) and stops.
func emittingCode(topic0 common.Hash, id uint64) []byte {
	code := []byte{0x7f}
	code = append(code, common.BigToHash(new(big.Int).SetUint64(id)).Bytes()...)
	code = append(code, 0x7f)
	code = append(code, topic0.Bytes()...)
	// PUSH1 0 (size), PUSH1 0 (offset), LOG2, STOP
	return append(code, 0x60, 0x00, 0x60, 0x00, 0xa2, 0x00)
}

var stopCode = []byte{0x00}

func TestNewClient_QueriesChainID(t *testing.T) {
	s := newSimChain(t, Config{})
	assert.Equal(t, int64(1337), s.client.ChainID().Int64())

	wallet, ok := s.client.CurrentWallet()
	require.True(t, ok)
	assert.Equal(t, crypto.PubkeyToAddress(s.key.PublicKey), wallet)

	balance, err := s.client.Balance(context.Background(), wallet)
	require.NoError(t, err)
	assert.Positive(t, balance.Sign())
}

func TestWriteCall_Confirmed(t *testing.T) {
	s := newSimChain(t, Config{})
	target := s.deploy(t, stopCode)
	ctx := context.Background()

	h := s.client.WriteCall(ctx, target, "checkIn", nil, big.NewInt(3))
	hash, err := h.Wait(ctx)
	require.NoError(t, err)
	s.backend.Commit()

	receipt, err := s.client.WatchConfirmation(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, hash, receipt.TxHash)
	assert.NotZero(t, receipt.BlockNumber)
}

func TestWriteCall_RejectedWithoutContractCode(t *testing.T) {
	s := newSimChain(t, Config{})
	ctx := context.Background()

	h := s.client.WriteCall(ctx, common.HexToAddress("0x00000000000000000000000000000000000000ee"), "checkIn", nil, big.NewInt(3))
	_, err := h.Wait(ctx)
	require.Error(t, err)
	assert.True(t, IsKind(err, FailureRejected))
	assert.ErrorIs(t, err, bind.ErrNoCode)

	_, err = s.client.WatchConfirmation(ctx, h)
	assert.True(t, IsKind(err, FailureRejected))
}

func TestWriteCall_RevertedAtSubmission(t *testing.T) {
	s := newSimChain(t, Config{})
	target := s.deploy(t, revertingCode("Not booked"))
	ctx := context.Background()

	h := s.client.WriteCall(ctx, target, "checkIn", nil, big.NewInt(3))
	_, err := h.Wait(ctx)
	require.Error(t, err)
	assert.True(t, IsKind(err, FailureReverted))
	assert.Equal(t, "Not booked", Reason(err))
}

func TestWriteCall_NoWallet(t *testing.T) {
	s := newSimChain(t, Config{})
	s.client.Disconnect()
	_, ok := s.client.CurrentWallet()
	require.False(t, ok)

	h := s.client.WriteCall(context.Background(), common.Address{}, "checkIn", nil, big.NewInt(3))
	_, err := h.Wait(context.Background())
	assert.ErrorIs(t, err, ErrNoWallet)
	assert.True(t, IsKind(err, FailureRejected))
}

func TestWatchConfirmation_ReplaysRevertReason(t *testing.T) {
	s := newSimChain(t, Config{})
	target := s.deploy(t, revertingCode("Already checked in"))
	input, err := s.abi.Pack("checkIn", big.NewInt(3))
	require.NoError(t, err)

	tx := s.sendRaw(t, &target, input)
	h := NewHandle("checkIn")
	h.resolveTx(tx, nil)

	_, err = s.client.WatchConfirmation(context.Background(), h)
	require.Error(t, err)
	assert.True(t, IsKind(err, FailureReverted))
	assert.Equal(t, "Already checked in", Reason(err))
}

func TestWatchConfirmation_TimesOut(t *testing.T) {
	s := newSimChain(t, Config{ConfirmTimeout: 100 * time.Millisecond})
	target := s.deploy(t, stopCode)
	ctx := context.Background()

	h := s.client.WriteCall(ctx, target, "checkIn", nil, big.NewInt(3))
	_, err := h.Wait(ctx)
	require.NoError(t, err)

	// Never mined.
	_, err = s.client.WatchConfirmation(ctx, h)
	require.Error(t, err)
	assert.True(t, IsKind(err, FailureTimedOut))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, Reason(err), "100ms")
}

func TestWatchConfirmation_WithoutTimeoutKeepsContextError(t *testing.T) {
	s := newSimChain(t, Config{})
	target := s.deploy(t, stopCode)

	h := s.client.WriteCall(context.Background(), target, "checkIn", nil, big.NewInt(3))
	_, err := h.Wait(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = s.client.WatchConfirmation(ctx, h)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, IsKind(err, FailureTimedOut))
}

func TestSubscribeToEvent(t *testing.T) {
	s := newSimChain(t, Config{})
	target := s.deploy(t, emittingCode(s.abi.Events["EventCheckedIn"].ID, 7))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logs := make(chan Log, 4)
	unsub, err := s.client.SubscribeToEvent(ctx, target, "EventCheckedIn", func(l Log) { logs <- l })
	require.NoError(t, err)
	defer unsub()

	h := s.client.WriteCall(ctx, target, "checkIn", nil, big.NewInt(7))
	hash, err := h.Wait(ctx)
	require.NoError(t, err)
	s.backend.Commit()

	select {
	case l := <-logs:
		assert.Equal(t, "EventCheckedIn", l.Event)
		assert.Equal(t, uint64(7), l.EventID)
		assert.Equal(t, hash, l.TxHash)
		assert.False(t, l.Removed)
	case <-time.After(5 * time.Second):
		t.Fatal("no log delivered")
	}

	unsub()
	unsub()
}

func TestSubscribeToEvent_UnknownEvent(t *testing.T) {
	s := newSimChain(t, Config{})
	_, err := s.client.SubscribeToEvent(context.Background(), common.Address{}, "EventBooked", func(Log) {})
	assert.ErrorContains(t, err, `unknown contract event "EventBooked"`)
}
