package mqtt

import "errors"

// Sentinel errors returned by Client. Operation errors wrap one of these
// together with the underlying paho error, so match them with errors.Is.
var (
	// ErrNotConnected means the broker link is down. Door commands fail
	// fast instead of queueing while disconnected.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed wraps a failed or timed out initial connect.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS rejects QoS levels other than 0, 1 and 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")

	// ErrTimeout is wrapped alongside the operation error when the broker
	// does not acknowledge in time.
	ErrTimeout = errors.New("mqtt: operation timed out")
)
