// Package natsq provides the socket boundary of a topology: a pump that
// pulls sample buffers from a remote generator over request/reply, and a
// sink that serves the most recently published buffer to any requesting
// consumer. Both sides use the wire codec of the root package: packed
// little-endian float32 I/Q pairs, length implicit from the payload size.
package natsq

import (
	"context"

	"github.com/nats-io/nats.go"
)

// Requester is the client side of a request/reply socket. Satisfied by
// *nats.Conn.
type Requester interface {
	RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error)
}

// Replier is the server side of a request/reply socket. Satisfied by
// *nats.Conn.
type Replier interface {
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
	Publish(subj string, data []byte) error
}
