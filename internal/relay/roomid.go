package relay

import "math/rand"

// Room ids are random draws from a small range, redrawn on collision
// against the live registry. The range is far larger than the number of
// rooms a single process will ever hold, so the loop terminates fast.
const roomIDRange = 10000

func (m *Manager) newRoomIDLocked() int {
	for {
		id := rand.Intn(roomIDRange)
		if m.findByIDLocked(id) == nil {
			return id
		}
	}
}
