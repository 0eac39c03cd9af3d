package relay

import "context"

// Conn is the outbound half of a client's transport channel. The relay
// never owns the connection lifecycle - the transport layer opens and
// closes sockets and tells the relay about it - so the only thing the
// core ever does with a Conn is write to it.
//
// The websocket layer provides the real implementation; tests substitute
// in-memory fakes.
type Conn interface {
	Send(ctx context.Context, data []byte) error
}
