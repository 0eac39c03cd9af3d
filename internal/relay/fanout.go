package relay

import (
	"context"
	"log"
)

// Broadcast delivers data to every member's connection, in member order.
// Delivery failures are isolated per recipient: a missing or dead
// connection is skipped and the rest still receive the message. Fanout
// is not transactional - partial delivery during a disconnect race is
// acceptable and never rolls back the membership change that triggered
// it.
func Broadcast(ctx context.Context, reg *Registry, members []Member, data []byte) {
	broadcast(ctx, reg, members, "", data)
}

// BroadcastExcept is Broadcast minus the sender's own connection.
func BroadcastExcept(ctx context.Context, reg *Registry, members []Member, exceptConnectionID string, data []byte) {
	broadcast(ctx, reg, members, exceptConnectionID, data)
}

func broadcast(ctx context.Context, reg *Registry, members []Member, exceptConnectionID string, data []byte) {
	for _, member := range members {
		if member.ConnectionID == exceptConnectionID {
			continue
		}

		conn := reg.Conn(member.ConnectionID)
		if conn == nil {
			continue // already disconnected
		}

		if err := conn.Send(ctx, data); err != nil {
			log.Printf("Broadcast to %s failed: %v", member.PlayID, err)
		}
	}
}
