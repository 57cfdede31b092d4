package pubsub

// ActionKind distinguishes subscribe and unsubscribe intents.
type ActionKind string

const (
	ActionSubscribe   ActionKind = "subscribe"
	ActionUnsubscribe ActionKind = "unsubscribe"
)

// Valid reports whether k is one of the known action kinds.
func (k ActionKind) Valid() bool {
	return k == ActionSubscribe || k == ActionUnsubscribe
}

// Action is a subscription intent emitted by a client and applied by the broker.
type Action struct {
	Client  string     `json:"client"`
	Channel string     `json:"channel"`
	Kind    ActionKind `json:"action"`
}

// PublishedMessage is a payload waiting in the outbox for fan-out.
// The same record is appended to every recipient's inbox.
type PublishedMessage struct {
	Client  string `json:"client"`
	Channel string `json:"channel"`
	Message string `json:"message"`
}

// Message is what a handler receives for each delivered payload.
type Message struct {
	Channel   string
	Publisher string
	Payload   string
}
