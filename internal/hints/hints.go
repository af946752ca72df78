// Package hints turns contract events into directory refreshes.
//
// Events are only hints: the directory always re-reads the contract, so a
// missed or duplicated log costs at most one extra refresh. When the
// endpoint cannot subscribe, the periodic poll carries the whole load.
package hints

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/broker"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/chain"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/metrics"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/notify"
)

// Subscriber is satisfied by *contract.Reader.
type Subscriber interface {
	Subscribe(ctx context.Context, eventName string, fn func(chain.Log)) (chain.Unsubscribe, error)
}

type Listener struct {
	subscriber Subscriber
	events     []string
	trigger    func()
	publisher  notify.Publisher // optional
	logger     *slog.Logger
}

// NewListener returns a listener that calls trigger for every log of the
// named events. publisher may be nil.
func NewListener(subscriber Subscriber, events []string, trigger func(), publisher notify.Publisher, logger *slog.Logger) *Listener {
	return &Listener{
		subscriber: subscriber,
		events:     events,
		trigger:    trigger,
		publisher:  publisher,
		logger:     logger,
	}
}

// Run subscribes to every event and blocks until ctx is done. It returns
// nil straight away when the endpoint does not support subscriptions.
func (l *Listener) Run(ctx context.Context) error {
	var unsubs []chain.Unsubscribe
	defer func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}()

	for _, name := range l.events {
		unsub, err := l.subscriber.Subscribe(ctx, name, func(log chain.Log) { l.handle(ctx, log) })
		if errors.Is(err, chain.ErrSubscriptionsUnsupported) {
			l.logger.Info("contract event subscriptions unavailable, relying on polling", "error", err)
			return nil
		}
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", name, err)
		}
		unsubs = append(unsubs, unsub)
	}

	l.logger.Info("listening for contract events", "events", l.events)
	<-ctx.Done()
	return nil
}

func (l *Listener) handle(ctx context.Context, log chain.Log) {
	metrics.RefreshHints.WithLabelValues(log.Event).Inc()
	l.logger.Debug("contract event", "event", log.Event, "event_id", log.EventID, "removed", log.Removed)
	l.trigger()

	if l.publisher == nil {
		return
	}
	if err := l.publisher.Publish(ctx, broker.KeyChainPrefix+log.Event, log); err != nil {
		l.logger.Warn("publish contract event failed", "event", log.Event, "error", err)
	}
}
