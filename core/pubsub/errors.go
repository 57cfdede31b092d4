package pubsub

import "errors"

var (
	// ErrStoreNil is returned when a broker or client is created without a store.
	ErrStoreNil = errors.New("store cannot be nil")

	// ErrStoreUnavailable wraps any failure reported by the backing store.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrMalformedRecord is returned when a queue element or the listener map fails to decode.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrUnknownChannel is returned in strict mode when a published message targets
	// a channel that has no entry in the listener map.
	ErrUnknownChannel = errors.New("unknown channel on publish")

	// ErrChannelNotSubscribed is returned when unsubscribing from a channel
	// that has no locally registered handler.
	ErrChannelNotSubscribed = errors.New("channel not subscribed locally")

	// ErrInvalidCallback is returned when subscribing with a nil handler.
	ErrInvalidCallback = errors.New("callback must be a non-nil handler")

	// ErrEmptyChannel is returned when a channel name is empty.
	ErrEmptyChannel = errors.New("channel name cannot be empty")

	// ErrEmptyClientID is returned when a client is configured with an empty id.
	ErrEmptyClientID = errors.New("client id cannot be empty")

	// ErrInvalidClientID is returned when a client id contains the key separator.
	ErrInvalidClientID = errors.New("client id cannot contain ':'")

	// ErrChannelMismatch is returned in strict mode when an inbox holds a
	// message published to a different channel.
	ErrChannelMismatch = errors.New("inbox message belongs to another channel")

	// ErrCallbackFailed wraps errors and panics raised by handlers during Listen.
	ErrCallbackFailed = errors.New("callback failed")

	ErrBrokerAlreadyStarted = errors.New("broker already started")
	ErrBrokerNotStarted     = errors.New("broker not started")
	ErrBrokerNotRunning     = errors.New("broker is not running")
	ErrHealthcheckFailed    = errors.New("healthcheck failed")
)
