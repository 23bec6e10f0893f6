package mqtt

import "errors"

// Sentinel errors, checked with errors.Is.
var (
	ErrConnectionFailed = errors.New("mqtt: connection failed")
	ErrNotConnected     = errors.New("mqtt: not connected")

	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidTopic covers empty topics and wildcards in publish topics.
	ErrInvalidTopic = errors.New("mqtt: invalid topic")
	ErrInvalidQoS   = errors.New("mqtt: qos must be 0, 1 or 2")
)
