package hints

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/chain"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/chain/chaintest"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/contract"
)

var contractAddr = common.HexToAddress("0x00000000000000000000000000000000000c0de1")

type published struct {
	key     string
	payload any
}

type mockPublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (m *mockPublisher) Publish(_ context.Context, routingKey string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, published{key: routingKey, payload: payload})
	return m.err
}

func (m *mockPublisher) messages() []published {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]published(nil), m.msgs...)
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// start runs l in the background. The returned func cancels it and waits.
func start(t *testing.T, l *Listener) (stop func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	return func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(2 * time.Second):
			t.Fatal("listener did not stop")
			return nil
		}
	}
}

func TestListener_TriggersAndPublishes(t *testing.T) {
	fake := chaintest.New()
	var triggers atomic.Int32
	pub := &mockPublisher{}
	l := NewListener(contract.NewReader(fake, contractAddr), contract.Events, func() { triggers.Add(1) }, pub, discard())

	stop := start(t, l)
	require.Eventually(t, func() bool {
		fake.Emit(contract.EventBooked, 3)
		return triggers.Load() > 0
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, stop())

	msgs := pub.messages()
	require.NotEmpty(t, msgs)
	assert.Equal(t, "chain."+contract.EventBooked, msgs[0].key)
	log, ok := msgs[0].payload.(chain.Log)
	require.True(t, ok)
	assert.Equal(t, uint64(3), log.EventID)
}

func TestListener_UnsubscribesOnStop(t *testing.T) {
	fake := chaintest.New()
	var triggers atomic.Int32
	l := NewListener(contract.NewReader(fake, contractAddr), []string{contract.EventCreated}, func() { triggers.Add(1) }, nil, discard())

	stop := start(t, l)
	require.Eventually(t, func() bool {
		fake.Emit(contract.EventCreated, 0)
		return triggers.Load() > 0
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, stop())

	before := triggers.Load()
	fake.Emit(contract.EventCreated, 1)
	assert.Equal(t, before, triggers.Load())
}

func TestListener_PublishErrorStillTriggers(t *testing.T) {
	fake := chaintest.New()
	var triggers atomic.Int32
	pub := &mockPublisher{err: errors.New("broker down")}
	l := NewListener(contract.NewReader(fake, contractAddr), []string{contract.EventCancelled}, func() { triggers.Add(1) }, pub, discard())

	stop := start(t, l)
	require.Eventually(t, func() bool {
		fake.Emit(contract.EventCancelled, 2)
		return triggers.Load() > 0
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, stop())
}

func TestListener_FallsBackWithoutSubscriptions(t *testing.T) {
	fake := chaintest.New()
	fake.DisableSubscriptions()
	l := NewListener(contract.NewReader(fake, contractAddr), contract.Events, func() {}, nil, discard())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, l.Run(ctx))
	assert.NoError(t, ctx.Err(), "Run should return without waiting for ctx")
}

type failingSubscriber struct{}

func (failingSubscriber) Subscribe(context.Context, string, func(chain.Log)) (chain.Unsubscribe, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func TestListener_SubscribeError(t *testing.T) {
	l := NewListener(failingSubscriber{}, contract.Events, func() {}, nil, discard())
	err := l.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subscribe "+contract.EventCreated)
}
