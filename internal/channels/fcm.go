package channels

import (
	"context"

	"firebase.google.com/go/v4/messaging"
)

// fcmSender is the slice of *messaging.Client the adapter needs.
type fcmSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMChannel delivers token-addressed mobile pushes through Firebase Cloud
// Messaging.
type FCMChannel struct {
	client fcmSender
}

// NewFCMChannel creates a new FCMChannel around a messaging client.
func NewFCMChannel(client *messaging.Client) *FCMChannel {
	return &FCMChannel{client: client}
}

func (c *FCMChannel) Name() string { return NameMobilePush }

// Send pushes the message to the given device token and returns the FCM
// message id as the acknowledgment.
func (c *FCMChannel) Send(ctx context.Context, token string, msg Message) (string, error) {
	return c.client.Send(ctx, &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
	})
}
