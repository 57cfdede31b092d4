package pubsub

import (
	"maps"
	"slices"
)

// ListenerMap maps a channel name to the ids of its subscribers.
// A channel with no subscribers never stays in the map after Prune.
// Subscriber order is insertion order; it carries no delivery semantics.
type ListenerMap map[string][]string

// Add registers client on channel. It reports whether the map changed.
func (m ListenerMap) Add(channel, client string) bool {
	if slices.Contains(m[channel], client) {
		return false
	}
	m[channel] = append(m[channel], client)
	return true
}

// Remove drops client from channel. It reports whether the client was present.
// The channel entry is left in place, possibly empty, until Prune runs.
func (m ListenerMap) Remove(channel, client string) bool {
	subs, ok := m[channel]
	if !ok {
		return false
	}
	i := slices.Index(subs, client)
	if i < 0 {
		return false
	}
	m[channel] = slices.Delete(subs, i, i+1)
	return true
}

// Has reports whether client is subscribed to channel.
func (m ListenerMap) Has(channel, client string) bool {
	return slices.Contains(m[channel], client)
}

// Subscribers returns the subscribers of channel and whether the channel is known.
func (m ListenerMap) Subscribers(channel string) ([]string, bool) {
	subs, ok := m[channel]
	return subs, ok
}

// Channels returns the channel names in sorted order.
func (m ListenerMap) Channels() []string {
	return slices.Sorted(maps.Keys(m))
}

// Prune removes channels without subscribers and returns how many were removed.
func (m ListenerMap) Prune() int {
	removed := 0
	for channel, subs := range m {
		if len(subs) == 0 {
			delete(m, channel)
			removed++
		}
	}
	return removed
}

// Clone returns a deep copy.
func (m ListenerMap) Clone() ListenerMap {
	out := make(ListenerMap, len(m))
	for channel, subs := range m {
		out[channel] = slices.Clone(subs)
	}
	return out
}
