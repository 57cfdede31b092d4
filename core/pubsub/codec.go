package pubsub

import (
	"encoding/json"
	"fmt"
)

// Wire records are plain JSON objects, one per queue element. Every field is
// required; a record with a missing or mistyped field is rejected with
// ErrMalformedRecord rather than filled with a zero value.

type actionWire struct {
	Client  *string `json:"client"`
	Channel *string `json:"channel"`
	Action  *string `json:"action"`
}

type messageWire struct {
	Client  *string `json:"client"`
	Channel *string `json:"channel"`
	Message *string `json:"message"`
}

// EncodeAction serializes an action for the actions queue.
func EncodeAction(a Action) ([]byte, error) {
	if a.Channel == "" {
		return nil, ErrEmptyChannel
	}
	if !ValidClientID(a.Client) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidClientID, a.Client)
	}
	if !a.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown action %q", ErrMalformedRecord, a.Kind)
	}
	return json.Marshal(a)
}

// DecodeAction parses and validates an actions queue element.
func DecodeAction(data []byte) (Action, error) {
	var w actionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return Action{}, fmt.Errorf("%w: action: %w", ErrMalformedRecord, err)
	}
	if w.Client == nil || w.Channel == nil || w.Action == nil {
		return Action{}, fmt.Errorf("%w: action: missing field", ErrMalformedRecord)
	}
	if *w.Channel == "" {
		return Action{}, fmt.Errorf("%w: action: empty channel", ErrMalformedRecord)
	}
	if !ValidClientID(*w.Client) {
		return Action{}, fmt.Errorf("%w: action: %w: %q", ErrMalformedRecord, ErrInvalidClientID, *w.Client)
	}
	kind := ActionKind(*w.Action)
	if !kind.Valid() {
		return Action{}, fmt.Errorf("%w: action: unknown kind %q", ErrMalformedRecord, kind)
	}
	return Action{Client: *w.Client, Channel: *w.Channel, Kind: kind}, nil
}

// EncodeMessage serializes a published message for the outbox and inbox queues.
func EncodeMessage(m PublishedMessage) ([]byte, error) {
	if m.Channel == "" {
		return nil, ErrEmptyChannel
	}
	return json.Marshal(m)
}

// DecodeMessage parses and validates an outbox or inbox element.
func DecodeMessage(data []byte) (PublishedMessage, error) {
	var w messageWire
	if err := json.Unmarshal(data, &w); err != nil {
		return PublishedMessage{}, fmt.Errorf("%w: message: %w", ErrMalformedRecord, err)
	}
	if w.Client == nil || w.Channel == nil || w.Message == nil {
		return PublishedMessage{}, fmt.Errorf("%w: message: missing field", ErrMalformedRecord)
	}
	if *w.Channel == "" {
		return PublishedMessage{}, fmt.Errorf("%w: message: empty channel", ErrMalformedRecord)
	}
	return PublishedMessage{Client: *w.Client, Channel: *w.Channel, Message: *w.Message}, nil
}

// EncodeListenerMap serializes the listener map blob. Empty channels are
// written as-is; callers prune before persisting.
func EncodeListenerMap(m ListenerMap) ([]byte, error) {
	if m == nil {
		m = ListenerMap{}
	}
	return json.Marshal(map[string][]string(m))
}

// DecodeListenerMap parses the listener map blob. A nil or empty blob yields an
// empty map. Duplicate subscribers are collapsed, ids rejected by
// ValidClientID are skipped and empty channels dropped.
func DecodeListenerMap(data []byte) (ListenerMap, error) {
	out := ListenerMap{}
	if len(data) == 0 {
		return out, nil
	}
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: listener map: %w", ErrMalformedRecord, err)
	}
	for channel, subs := range raw {
		for _, client := range subs {
			if ValidClientID(client) {
				out.Add(channel, client)
			}
		}
	}
	return out, nil
}
