package pubsub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anton-trapeznikov/ion-mq/core/logger"
)

// Client is a participant handle. It emits subscription and publish intents
// into the shared store and drains its own inboxes on Listen.
//
// Subscribe, Unsubscribe and Publish are safe for concurrent use. Listen
// serializes itself per handle; handles sharing an id across processes must be
// serialized by the caller, otherwise overlapping drains of the same inbox can
// skip or repeat entries.
type Client struct {
	id           string
	store        Store
	keys         Keys
	strict       bool
	pollInterval time.Duration
	logger       *slog.Logger

	mu       sync.RWMutex
	handlers map[string]Handler

	// subMu serializes Subscribe and Unsubscribe so that a handler change and
	// its emitted action are never interleaved with another one.
	subMu sync.Mutex

	listenMu sync.Mutex
}

// NewClient creates a client handle over store.
func NewClient(store Store, opts ...ClientOption) (*Client, error) {
	if store == nil {
		return nil, ErrStoreNil
	}

	options := &clientOptions{
		keyPrefix:    DefaultKeyPrefix,
		pollInterval: 500 * time.Millisecond,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(options)
	}

	id := options.id
	if !options.idSet {
		id = uuid.NewString()
	}
	if id == "" {
		return nil, ErrEmptyClientID
	}
	if !ValidClientID(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidClientID, id)
	}

	return &Client{
		id:           id,
		store:        store,
		keys:         NewKeys(options.keyPrefix),
		strict:       options.strict,
		pollInterval: options.pollInterval,
		logger:       options.logger.With(logger.ClientID(id)),
		handlers:     make(map[string]Handler),
	}, nil
}

// ID returns the client's stable id.
func (c *Client) ID() string {
	return c.id
}

// Channels returns the locally subscribed channel names in sorted order.
func (c *Client) Channels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.handlers))
}

// Subscribe registers h for channel and emits a subscribe action. A second
// subscription to the same channel replaces the previous handler. If the
// action cannot be stored the previous registration is restored.
func (c *Client) Subscribe(ctx context.Context, channel string, h Handler) error {
	if channel == "" {
		return ErrEmptyChannel
	}
	if !validHandler(h) {
		return ErrInvalidCallback
	}

	c.subMu.Lock()
	defer c.subMu.Unlock()

	c.mu.Lock()
	prev, hadPrev := c.handlers[channel]
	c.handlers[channel] = h
	c.mu.Unlock()

	if err := c.emitAction(ctx, channel, ActionSubscribe); err != nil {
		c.mu.Lock()
		if hadPrev {
			c.handlers[channel] = prev
		} else {
			delete(c.handlers, channel)
		}
		c.mu.Unlock()
		return err
	}

	c.logger.DebugContext(ctx, "subscribed", logger.Channel(channel))
	return nil
}

// SubscribeFunc is Subscribe for a plain function.
func (c *Client) SubscribeFunc(ctx context.Context, channel string, fn func(context.Context, Message) error) error {
	if fn == nil {
		return ErrInvalidCallback
	}
	return c.Subscribe(ctx, channel, HandlerFunc(fn))
}

// Unsubscribe emits an unsubscribe action and drops the local handler.
// The broker deletes this client's inbox for the channel when it applies the
// action, discarding anything not yet delivered.
func (c *Client) Unsubscribe(ctx context.Context, channel string) error {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	c.mu.RLock()
	_, ok := c.handlers[channel]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrChannelNotSubscribed, channel)
	}

	if err := c.emitAction(ctx, channel, ActionUnsubscribe); err != nil {
		return err
	}

	c.mu.Lock()
	delete(c.handlers, channel)
	c.mu.Unlock()

	c.logger.DebugContext(ctx, "unsubscribed", logger.Channel(channel))
	return nil
}

// UnsubscribeFromAll unsubscribes from every locally known channel. The
// channel list is snapshotted first; the first failure stops the sweep.
func (c *Client) UnsubscribeFromAll(ctx context.Context) error {
	for _, channel := range c.Channels() {
		if err := c.Unsubscribe(ctx, channel); err != nil {
			return err
		}
	}
	return nil
}

// Publish queues message for fan-out on channel. The client does not need to
// be subscribed to the channel. Delivery is not acknowledged.
func (c *Client) Publish(ctx context.Context, channel, message string) error {
	data, err := EncodeMessage(PublishedMessage{Client: c.id, Channel: channel, Message: message})
	if err != nil {
		return err
	}
	if err := c.store.Append(ctx, c.keys.Outbox(), data); err != nil {
		return fmt.Errorf("%w: publish: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// PublishJSON encodes v as JSON and publishes it as the message payload.
func (c *Client) PublishJSON(ctx context.Context, channel string, v any) error {
	payload, err := marshalPayload(v)
	if err != nil {
		return err
	}
	return c.Publish(ctx, channel, payload)
}

// Listen drains every subscribed channel's inbox, then dispatches the
// collected messages to their handlers in FIFO order.
//
// Draining completes for all channels before any handler runs, so a store
// error is returned before any handler is invoked and a slow handler never
// delays draining. Inboxes are trimmed before dispatch: a message whose
// handler fails is not redelivered. Handler errors and panics do not stop
// dispatch; they are joined and returned wrapped in ErrCallbackFailed.
//
// Entries that fail to decode, or that carry a channel other than the inbox's,
// are skipped. In strict mode they are also reported, after every valid
// message has been dispatched.
func (c *Client) Listen(ctx context.Context) error {
	c.listenMu.Lock()
	defer c.listenMu.Unlock()

	c.mu.RLock()
	handlers := maps.Clone(c.handlers)
	c.mu.RUnlock()

	channels := slices.Sorted(maps.Keys(handlers))
	received := make(map[string][]Message, len(channels))
	var rejected []error

	for _, channel := range channels {
		raw, err := drain(ctx, c.store, c.keys.Inbox(channel, c.id))
		if err != nil {
			return fmt.Errorf("%w: drain inbox %q: %w", ErrStoreUnavailable, channel, err)
		}
		for _, item := range raw {
			pm, err := DecodeMessage(item)
			if err == nil && pm.Channel != channel {
				err = fmt.Errorf("%w: %q in inbox of %q", ErrChannelMismatch, pm.Channel, channel)
			}
			if err != nil {
				if c.strict {
					rejected = append(rejected, err)
				}
				c.logger.WarnContext(ctx, "skipping inbox entry",
					logger.Channel(channel), logger.Error(err))
				continue
			}
			received[channel] = append(received[channel], Message{
				Channel:   pm.Channel,
				Publisher: pm.Client,
				Payload:   pm.Message,
			})
		}
	}

	var failed []error
	for _, channel := range channels {
		h := handlers[channel]
		for _, msg := range received[channel] {
			if err := c.dispatch(ctx, h, msg); err != nil {
				failed = append(failed, err)
			}
		}
	}

	errs := rejected
	if len(failed) > 0 {
		errs = append(errs, ErrCallbackFailed)
		errs = append(errs, failed...)
	}
	return errors.Join(errs...)
}

// Poll calls Listen every interval until ctx is cancelled. A zero interval
// uses the configured poll interval. Store failures and rejected entries end
// polling and are returned; handler failures are logged and polling continues.
func (c *Client) Poll(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = c.pollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := c.Listen(ctx); err != nil {
			rejected := errors.Is(err, ErrMalformedRecord) || errors.Is(err, ErrChannelMismatch)
			if rejected || !errors.Is(err, ErrCallbackFailed) {
				return err
			}
			c.logger.ErrorContext(ctx, "handler failed during listen", logger.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// dispatch invokes h, converting a panic into an error.
func (c *Client) dispatch(ctx context.Context, h Handler, msg Message) (retErr error) {
	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("panic in handler for channel %q: %v", msg.Channel, r)
			c.logger.ErrorContext(ctx, "handler panicked",
				logger.Channel(msg.Channel), slog.Any("panic", r))
		}
	}()

	if err := h.Handle(ctx, msg); err != nil {
		return fmt.Errorf("channel %q: %w", msg.Channel, err)
	}
	return nil
}

func (c *Client) emitAction(ctx context.Context, channel string, kind ActionKind) error {
	data, err := EncodeAction(Action{Client: c.id, Channel: channel, Kind: kind})
	if err != nil {
		return err
	}
	if err := c.store.Append(ctx, c.keys.Actions(), data); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, kind, err)
	}
	return nil
}
