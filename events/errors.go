package events

import "errors"

var (
	// ErrNilChannel indicates an AMQP publisher was built without a channel.
	ErrNilChannel = errors.New("events: nil channel")

	// ErrNoExchange indicates an empty exchange name.
	ErrNoExchange = errors.New("events: exchange name required")
)
