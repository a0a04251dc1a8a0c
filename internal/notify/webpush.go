package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/nerrad567/doorkeeper-core/internal/infrastructure/config"
)

const defaultWebPushTTL = 86400

// webPushPayload is what the service worker receives.
type webPushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// WebPushSender delivers notifications to browser push subscriptions.
// The device token is the JSON-encoded PushSubscription from the browser.
type WebPushSender struct {
	publicKey  string
	privateKey string
	subscriber string
	ttl        int
	title      string
	client     webpush.HTTPClient
}

// NewWebPushSender creates a sender with the configured VAPID keys.
func NewWebPushSender(cfg config.WebPushConfig, title string) *WebPushSender {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultWebPushTTL
	}
	return &WebPushSender{
		publicKey:  cfg.VAPIDPublicKey,
		privateKey: cfg.VAPIDPrivateKey,
		subscriber: cfg.Subscriber,
		ttl:        ttl,
		title:      title,
	}
}

// WithHTTPClient sets the client used to reach push services.
func (s *WebPushSender) WithHTTPClient(c webpush.HTTPClient) *WebPushSender {
	s.client = c
	return s
}

// Send encrypts and posts message to the subscription in token.
func (s *WebPushSender) Send(ctx context.Context, token, message string) error {
	var sub webpush.Subscription
	if err := json.Unmarshal([]byte(token), &sub); err != nil || sub.Endpoint == "" {
		return ErrInvalidToken
	}

	data, err := json.Marshal(webPushPayload{Title: s.title, Body: message})
	if err != nil {
		return fmt.Errorf("encoding push payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, data, &sub, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.subscriber,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             s.ttl,
		Urgency:         webpush.UrgencyHigh,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse

	if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %w", ErrDeliveryFailed, ErrSubscriptionExpired)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%w: push service returned %d", ErrDeliveryFailed, resp.StatusCode)
	}
	return nil
}
