package pubsub

import "strings"

// DefaultKeyPrefix is the key namespace shared by the broker and its clients.
const DefaultKeyPrefix = "ion-mq"

// keySeparator joins key components. Client ids may not contain it, so the
// last separator of an inbox key always splits channel from client.
const keySeparator = ":"

// ValidClientID reports whether id can name an inbox unambiguously.
func ValidClientID(id string) bool {
	return id != "" && !strings.Contains(id, keySeparator)
}

// Keys builds the store keys used by one deployment. A broker and its clients
// must agree on the prefix.
type Keys struct {
	prefix string
}

// NewKeys returns the key set for prefix, falling back to DefaultKeyPrefix
// when prefix is empty. A trailing separator is ignored.
func NewKeys(prefix string) Keys {
	prefix = strings.TrimSuffix(prefix, ":")
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return Keys{prefix: prefix}
}

// Prefix returns the namespace prefix.
func (k Keys) Prefix() string { return k.prefix }

// Actions is the queue of pending subscribe/unsubscribe actions.
func (k Keys) Actions() string { return k.prefix + ":actions" }

// Outbox is the queue of published messages awaiting fan-out.
func (k Keys) Outbox() string { return k.prefix + ":outbox" }

// Listeners is the blob holding the serialized listener map.
func (k Keys) Listeners() string { return k.prefix + ":listeners" }

// Inbox is the per-subscriber queue for channel. Channels may contain the
// separator; client must satisfy ValidClientID.
func (k Keys) Inbox(channel, client string) string {
	return k.prefix + ":inbox:" + channel + keySeparator + client
}
