// Package channels holds the abstract delivery transports a notification can
// be pushed through. Each adapter delivers to exactly one address; routing,
// retries and lifecycle state live in the notify package.
package channels

import "context"

// Channel names as recorded in a notification's channel responses.
const (
	NameMobilePush = "mobile_push"
	NameWebPush    = "web_push"
)

// Message is the transport-neutral content of a push.
type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

// Channel delivers one message to one address. The target format is
// channel-specific: a device token for mobile push, a serialized
// subscription for web push. A returned error means "not delivered now";
// callers must never let it abort other channels.
type Channel interface {
	Name() string
	Send(ctx context.Context, target string, msg Message) (string, error)
}
