package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
)

// Handler receives messages delivered to a subscribed channel.
type Handler interface {
	Handle(ctx context.Context, msg Message) error
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, msg Message) error

// Handle calls f(ctx, msg).
func (f HandlerFunc) Handle(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// NewJSONHandler creates a handler that decodes each payload as JSON into T
// before calling fn. Payloads that do not decode are reported as handler errors.
//
// Example:
//
//	type ChatLine struct {
//	    From string `json:"from"`
//	    Text string `json:"text"`
//	}
//
//	h := pubsub.NewJSONHandler(func(ctx context.Context, line ChatLine) error {
//	    fmt.Println(line.From, line.Text)
//	    return nil
//	})
//	_ = client.Subscribe(ctx, "chat", h)
func NewJSONHandler[T any](fn func(context.Context, T) error) Handler {
	if fn == nil {
		return nil
	}
	return HandlerFunc(func(ctx context.Context, msg Message) error {
		var v T
		if err := json.Unmarshal([]byte(msg.Payload), &v); err != nil {
			return fmt.Errorf("failed to unmarshal payload on channel %q: %w", msg.Channel, err)
		}
		return fn(ctx, v)
	})
}

// validHandler reports whether h can be invoked.
func validHandler(h Handler) bool {
	if h == nil {
		return false
	}
	if f, ok := h.(HandlerFunc); ok && f == nil {
		return false
	}
	return true
}
