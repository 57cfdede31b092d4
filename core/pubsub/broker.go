package pubsub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anton-trapeznikov/ion-mq/core/logger"
)

// Broker reconciles subscription actions into the listener map and fans
// published messages out to per-subscriber inboxes.
//
// Exactly one broker may run against a given key prefix. The
// reload/apply/persist sequence of the action phase is not atomic across
// processes, so two brokers sharing keys can lose subscription changes.
type Broker struct {
	store     Store
	keys      Keys
	listeners ListenerMap
	loaded    bool

	// Configuration
	tickInterval        time.Duration
	shutdownTimeout     time.Duration
	strict              bool
	reloadOnActionsOnly bool
	logger              *slog.Logger

	// tickMu serializes ticks and guards listeners.
	tickMu sync.Mutex

	// State management
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	// Observability metrics
	ticks            atomic.Int64
	actionsApplied   atomic.Int64
	deliveries       atomic.Int64
	messagesDropped  atomic.Int64
	malformedRecords atomic.Int64
	lastTickDuration atomic.Int64
}

// BrokerStats provides observability metrics for monitoring and debugging
type BrokerStats struct {
	Ticks            int64         // Completed ticks
	ActionsApplied   int64         // Actions that changed the listener map
	Deliveries       int64         // Inbox appends performed during fan-out
	MessagesDropped  int64         // Messages published to channels without subscribers
	MalformedRecords int64         // Queue elements skipped because they failed to decode
	LastTickDuration time.Duration // Processing time of the most recent tick
	IsRunning        bool          // Whether the tick loop is running
}

// TickResult summarizes a single tick.
type TickResult struct {
	Actions    int // Actions read from the actions queue
	Messages   int // Messages read from the outbox
	Deliveries int // Inbox appends performed
	Dropped    int // Messages without a listener map entry
	Malformed  int // Records skipped during decoding
	Duration   time.Duration
}

// NewBroker creates a new broker over store.
func NewBroker(store Store, opts ...BrokerOption) (*Broker, error) {
	if store == nil {
		return nil, ErrStoreNil
	}

	// Default options
	options := &brokerOptions{
		tickInterval:    500 * time.Millisecond,
		shutdownTimeout: 10 * time.Second,
		keyPrefix:       DefaultKeyPrefix,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)), // No-op logger by default
	}

	for _, opt := range opts {
		opt(options)
	}

	return &Broker{
		store:               store,
		keys:                NewKeys(options.keyPrefix),
		tickInterval:        options.tickInterval,
		shutdownTimeout:     options.shutdownTimeout,
		strict:              options.strict,
		reloadOnActionsOnly: options.reloadOnActionsOnly,
		logger:              options.logger,
	}, nil
}

// Keys returns the key namespace the broker operates on.
func (b *Broker) Keys() Keys {
	return b.keys
}

// Start runs the tick loop until ctx is cancelled, Stop is called, or a tick
// fails. A failed tick ends the loop and its error is returned; there is no
// built-in retry.
//
// Each cycle sleeps for the remainder of the tick interval. When a tick takes
// longer than the interval the next one starts immediately, with no catch-up.
// A tick that has started always runs to completion, even if ctx is
// cancelled meanwhile.
func (b *Broker) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return ErrBrokerAlreadyStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	b.running = true
	b.cancel = cancel
	b.done = done
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.running = false
		b.cancel = nil
		b.mu.Unlock()
		cancel()
		close(done)
	}()

	tickCtx := context.WithoutCancel(runCtx)

	if err := b.loadInitial(tickCtx); err != nil {
		b.logger.ErrorContext(runCtx, "failed to load listener map", logger.Error(err))
		return err
	}

	b.logger.InfoContext(runCtx, "broker started",
		slog.String("prefix", b.keys.Prefix()),
		slog.Duration("tick_interval", b.tickInterval),
		slog.Bool("strict", b.strict))

	timer := time.NewTimer(b.tickInterval)
	defer timer.Stop()

	for {
		if err := runCtx.Err(); err != nil {
			b.logger.InfoContext(context.Background(), "broker stopping")
			return err
		}

		start := time.Now()
		if _, err := b.Tick(tickCtx); err != nil {
			b.logger.ErrorContext(runCtx, "broker tick failed", logger.Error(err))
			return fmt.Errorf("broker tick failed: %w", err)
		}

		wait := b.tickInterval - time.Since(start)
		if wait <= 0 {
			continue
		}

		timer.Reset(wait)
		select {
		case <-runCtx.Done():
			b.logger.InfoContext(context.Background(), "broker stopping")
			return runCtx.Err()
		case <-timer.C:
		}
	}
}

// Stop cancels the tick loop and waits for the in-flight tick to finish.
// Returns an error if the shutdown timeout is exceeded.
func (b *Broker) Stop() error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return ErrBrokerNotStarted
	}
	cancel := b.cancel
	done := b.done
	b.mu.Unlock()

	cancel()

	timer := time.NewTimer(b.shutdownTimeout)
	defer timer.Stop()

	select {
	case <-done:
		b.logger.InfoContext(context.Background(), "broker stopped cleanly")
		return nil
	case <-timer.C:
		b.logger.WarnContext(context.Background(), "broker shutdown timeout exceeded",
			slog.Duration("timeout", b.shutdownTimeout))
		return fmt.Errorf("shutdown timeout exceeded after %s", b.shutdownTimeout)
	}
}

// Run provides errgroup compatibility for coordinated lifecycle management.
// Cancellation is a normal shutdown and returns nil; a failed tick is returned.
func (b *Broker) Run(ctx context.Context) func() error {
	return func() error {
		err := b.Start(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	}
}

// Tick runs one action phase followed by one message phase. Action effects are
// always visible to the message phase of the same tick.
func (b *Broker) Tick(ctx context.Context) (TickResult, error) {
	b.tickMu.Lock()
	defer b.tickMu.Unlock()

	start := time.Now()
	var res TickResult

	if err := b.processActions(ctx, &res); err != nil {
		return res, err
	}
	if err := b.processMessages(ctx, &res); err != nil {
		return res, err
	}

	res.Duration = time.Since(start)
	b.ticks.Add(1)
	b.lastTickDuration.Store(int64(res.Duration))

	if res.Actions > 0 || res.Messages > 0 {
		b.logger.DebugContext(ctx, "tick processed",
			slog.Int("actions", res.Actions),
			slog.Int("messages", res.Messages),
			slog.Int("deliveries", res.Deliveries),
			slog.Int("dropped", res.Dropped),
			logger.Duration(res.Duration))
	}

	return res, nil
}

// ListenerMap returns a copy of the broker's in-memory listener map.
func (b *Broker) ListenerMap() ListenerMap {
	b.tickMu.Lock()
	defer b.tickMu.Unlock()
	return b.listeners.Clone()
}

// Stats returns current broker statistics.
// This method is thread-safe and can be called at any time.
func (b *Broker) Stats() BrokerStats {
	b.mu.Lock()
	running := b.running
	b.mu.Unlock()

	return BrokerStats{
		Ticks:            b.ticks.Load(),
		ActionsApplied:   b.actionsApplied.Load(),
		Deliveries:       b.deliveries.Load(),
		MessagesDropped:  b.messagesDropped.Load(),
		MalformedRecords: b.malformedRecords.Load(),
		LastTickDuration: time.Duration(b.lastTickDuration.Load()),
		IsRunning:        running,
	}
}

// Healthcheck reports whether the tick loop is running and the store answers.
//
//	if errors.Is(err, pubsub.ErrBrokerNotRunning) { ... }
func (b *Broker) Healthcheck(ctx context.Context) error {
	if !b.Stats().IsRunning {
		return errors.Join(ErrHealthcheckFailed, ErrBrokerNotRunning)
	}
	if _, err := b.store.GetBlob(ctx, b.keys.Listeners()); err != nil {
		return errors.Join(ErrHealthcheckFailed, ErrStoreUnavailable, err)
	}
	return nil
}

func (b *Broker) loadInitial(ctx context.Context) error {
	b.tickMu.Lock()
	defer b.tickMu.Unlock()

	m, err := b.loadListeners(ctx)
	if err != nil {
		return err
	}
	b.listeners = m
	b.loaded = true
	return nil
}

// processActions drains the actions queue and applies it to a fresh copy of
// the listener map. The copy replaces the in-memory map only after it has
// been persisted, so a failed tick leaves the previous state intact.
func (b *Broker) processActions(ctx context.Context, res *TickResult) error {
	reloaded := false
	if !b.reloadOnActionsOnly || !b.loaded {
		m, err := b.loadListeners(ctx)
		if err != nil {
			return err
		}
		b.listeners = m
		b.loaded = true
		reloaded = true
	}

	raw, err := drain(ctx, b.store, b.keys.Actions())
	if err != nil {
		return fmt.Errorf("%w: drain actions: %w", ErrStoreUnavailable, err)
	}
	res.Actions = len(raw)
	if len(raw) == 0 {
		return nil
	}

	var next ListenerMap
	if reloaded {
		next = b.listeners.Clone()
	} else if next, err = b.loadListeners(ctx); err != nil {
		return err
	}

	applied := 0
	for _, item := range raw {
		action, err := DecodeAction(item)
		if err != nil {
			if err := b.malformed(ctx, b.keys.Actions(), err); err != nil {
				return err
			}
			res.Malformed++
			continue
		}

		changed, err := b.applyAction(ctx, next, action)
		if err != nil {
			return err
		}
		if changed {
			applied++
		}
	}

	next.Prune()
	if err := b.saveListeners(ctx, next); err != nil {
		return err
	}

	b.listeners = next
	b.actionsApplied.Add(int64(applied))
	return nil
}

// applyAction mutates m according to action. Unsubscribing a present client
// deletes its inbox for the channel; undelivered payloads are discarded.
func (b *Broker) applyAction(ctx context.Context, m ListenerMap, action Action) (bool, error) {
	switch action.Kind {
	case ActionSubscribe:
		if !m.Add(action.Channel, action.Client) {
			return false, nil
		}
		b.logger.DebugContext(ctx, "client subscribed",
			logger.Channel(action.Channel), logger.ClientID(action.Client))
		return true, nil

	case ActionUnsubscribe:
		if !m.Remove(action.Channel, action.Client) {
			return false, nil
		}
		if err := b.store.Delete(ctx, b.keys.Inbox(action.Channel, action.Client)); err != nil {
			return false, fmt.Errorf("%w: delete inbox: %w", ErrStoreUnavailable, err)
		}
		b.logger.DebugContext(ctx, "client unsubscribed",
			logger.Channel(action.Channel), logger.ClientID(action.Client))
		return true, nil
	}

	return false, fmt.Errorf("%w: unknown action %q", ErrMalformedRecord, action.Kind)
}

// processMessages drains the outbox and appends each message to the inbox of
// every current subscriber except its publisher.
func (b *Broker) processMessages(ctx context.Context, res *TickResult) error {
	raw, err := drain(ctx, b.store, b.keys.Outbox())
	if err != nil {
		return fmt.Errorf("%w: drain outbox: %w", ErrStoreUnavailable, err)
	}
	res.Messages = len(raw)

	for _, item := range raw {
		msg, err := DecodeMessage(item)
		if err != nil {
			if err := b.malformed(ctx, b.keys.Outbox(), err); err != nil {
				return err
			}
			res.Malformed++
			continue
		}

		subscribers, ok := b.listeners.Subscribers(msg.Channel)
		if !ok {
			if b.strict {
				return fmt.Errorf("%w: %q", ErrUnknownChannel, msg.Channel)
			}
			b.messagesDropped.Add(1)
			res.Dropped++
			b.logger.DebugContext(ctx, "message dropped, channel has no subscribers",
				logger.Channel(msg.Channel), logger.ClientID(msg.Client))
			continue
		}

		for _, subscriber := range subscribers {
			if subscriber == msg.Client {
				continue
			}
			if err := b.store.Append(ctx, b.keys.Inbox(msg.Channel, subscriber), item); err != nil {
				return fmt.Errorf("%w: append inbox: %w", ErrStoreUnavailable, err)
			}
			res.Deliveries++
			b.deliveries.Add(1)
		}
	}

	return nil
}

// malformed applies the malformed record policy: fatal in strict mode,
// otherwise the record is dropped and counted.
func (b *Broker) malformed(ctx context.Context, key string, err error) error {
	if b.strict {
		return err
	}
	b.malformedRecords.Add(1)
	b.logger.WarnContext(ctx, "skipping malformed record", logger.StoreKey(key), logger.Error(err))
	return nil
}

func (b *Broker) loadListeners(ctx context.Context) (ListenerMap, error) {
	data, err := b.store.GetBlob(ctx, b.keys.Listeners())
	if err != nil {
		return nil, fmt.Errorf("%w: load listener map: %w", ErrStoreUnavailable, err)
	}
	return DecodeListenerMap(data)
}

func (b *Broker) saveListeners(ctx context.Context, m ListenerMap) error {
	data, err := EncodeListenerMap(m)
	if err != nil {
		return err
	}
	if err := b.store.SetBlob(ctx, b.keys.Listeners(), data); err != nil {
		return fmt.Errorf("%w: save listener map: %w", ErrStoreUnavailable, err)
	}
	return nil
}
