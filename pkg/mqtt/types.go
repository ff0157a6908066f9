package mqtt

import "context"

// Message is one PUBLISH delivered for a subscription.
type Message struct {
	Topic    string
	Payload  []byte
	Retained bool
}

// MessageHandler processes one delivered message. Every call runs on its own goroutine, so
// handlers sharing state must synchronize.
type MessageHandler func(ctx context.Context, msg Message)

// Publisher sends messages to the broker.
type Publisher interface {
	Publish(ctx context.Context, topic string, qos int, retain bool, payload []byte) error
}

// Subscriber routes the messages of a topic filter to a handler. Filters may use the + and #
// wildcards and the $share/<group>/ prefix. Subscriptions are restored after a reconnect.
type Subscriber interface {
	Subscribe(ctx context.Context, filter string, qos int, handler MessageHandler) error
	Unsubscribe(ctx context.Context, filter string) error
}

// Client is a broker connection kept alive in the background.
type Client interface {
	Publisher
	Subscriber

	// Start connects in the background and returns at once. Use AwaitConnection to wait.
	Start(ctx context.Context) error

	AwaitConnection(ctx context.Context) error
	IsConnected() bool

	// Disconnect closes the connection and stops reconnecting.
	Disconnect(ctx context.Context)
}
