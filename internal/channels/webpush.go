package channels

import (
	"context"
	"encoding/json"
	"fmt"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// WebPushChannel delivers subscription-addressed pushes to browsers using
// VAPID-authenticated web push.
type WebPushChannel struct {
	subscriber string // contact mailto/https URL sent to the push service
	publicKey  string
	privateKey string
	ttl        int
}

// NewWebPushChannel creates a new WebPushChannel with the given VAPID keys.
func NewWebPushChannel(subscriber, publicKey, privateKey string) *WebPushChannel {
	return &WebPushChannel{
		subscriber: subscriber,
		publicKey:  publicKey,
		privateKey: privateKey,
		ttl:        3600,
	}
}

func (c *WebPushChannel) Name() string { return NameWebPush }

// Send pushes a JSON payload to the subscription endpoint. The target is the
// serialized subscription (endpoint + p256dh/auth keys) captured on the
// notification record at send time.
func (c *WebPushChannel) Send(ctx context.Context, target string, msg Message) (string, error) {
	var sub webpush.Subscription
	if err := json.Unmarshal([]byte(target), &sub); err != nil {
		return "", fmt.Errorf("invalid web push subscription: %w", err)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"title": msg.Title,
		"body":  msg.Body,
		"data":  msg.Data,
	})
	if err != nil {
		return "", err
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &sub, &webpush.Options{
		Subscriber:      c.subscriber,
		VAPIDPublicKey:  c.publicKey,
		VAPIDPrivateKey: c.privateKey,
		TTL:             c.ttl,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("push service returned %s", resp.Status)
	}
	return resp.Status, nil
}
