// Package pubsub implements publish/subscribe messaging on top of a shared
// ordered-list store. There is no network protocol between participants: all
// coordination happens through store keys that a single broker polls.
//
// # Components
//
//   - Store: ordered lists plus blobs. MemoryStorage is provided here; Redis and
//     Postgres implementations live under integration/database.
//   - Broker: on every tick, applies pending subscribe/unsubscribe actions to
//     the listener map, then fans published messages out to per-subscriber inboxes.
//   - Client: one handle per participant. It emits actions, publishes, and
//     drains its own inboxes on Listen.
//
// Data flow:
//
//	Client.Subscribe/Publish -> actions / outbox lists
//	Broker.Tick              -> listener map blob, inbox lists per (channel, client)
//	Client.Listen            -> handler invocation
//
// # Basic Usage
//
//	store := pubsub.NewMemoryStorage()
//
//	broker, _ := pubsub.NewBroker(store, pubsub.WithTickInterval(100*time.Millisecond))
//	go broker.Start(ctx)
//
//	alice, _ := pubsub.NewClient(store, pubsub.WithClientID("alice"))
//	bob, _ := pubsub.NewClient(store, pubsub.WithClientID("bob"))
//
//	_ = bob.SubscribeFunc(ctx, "chat", func(ctx context.Context, msg pubsub.Message) error {
//		fmt.Printf("%s: %s\n", msg.Publisher, msg.Payload)
//		return nil
//	})
//	_ = alice.Publish(ctx, "chat", "hi")
//
//	// after the broker has ticked
//	_ = bob.Listen(ctx)
//
// # Delivery Guarantees
//
// A publisher never receives its own message on a channel. Each inbox is FIFO
// in the order the broker observed publications. Within one tick all actions
// are applied before any message is fanned out, so an unsubscribe and a
// publish processed together never deliver to the departing client.
// Unsubscribing deletes the client's inbox for that channel; undelivered
// messages are lost. Delivery is at most once: inboxes are trimmed before
// handlers run.
//
// Publishing to a channel that has no subscribers drops the message. In strict
// mode (WithStrictMode) it fails the tick with ErrUnknownChannel instead, and
// malformed queue elements fail with ErrMalformedRecord rather than being skipped.
//
// Inbox keys have the form <prefix>:inbox:<channel>:<client>. Channel names may
// contain ':' but client ids may not (see ValidClientID), so every
// (channel, client) pair maps to its own key. Listen also skips any inbox
// entry whose channel differs from the inbox it was read from.
//
// # Deployment
//
// Run exactly one broker per key prefix. Clients may run in any number of
// processes; each of their writes is a single atomic append.
package pubsub
