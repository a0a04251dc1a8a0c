package notify

import "errors"

var (
	// ErrDeliveryFailed is returned when the push service rejects a message.
	ErrDeliveryFailed = errors.New("notify: delivery failed")

	// ErrSubscriptionExpired means the device token is no longer valid.
	ErrSubscriptionExpired = errors.New("notify: subscription expired")

	// ErrInvalidToken is returned for empty or unparseable device tokens.
	ErrInvalidToken = errors.New("notify: invalid device token")

	// ErrInvalidKey is returned when the signing key cannot be loaded.
	ErrInvalidKey = errors.New("notify: invalid signing key")
)
