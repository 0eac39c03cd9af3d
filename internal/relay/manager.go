package relay

import (
	"errors"
	"sync"
)

// Manager is the room registry plus the join guard. One lock spans the
// room list, the guard set and all membership mutation, so the
// check-not-present/insert pair of a join can never interleave with a
// concurrent join for the same play id, and the gaming transition is
// observed atomically with the membership change that caused it.
type Manager struct {
	rooms  []*Room         // creation order; matchmaking considers the last
	joined map[string]bool // play ids currently occupying a slot anywhere
	mu     sync.Mutex
}

func NewManager() *Manager {
	return &Manager{
		joined: make(map[string]bool),
	}
}

// Snapshot is a point-in-time copy of a room, safe to use after the
// manager lock is released. Fanout works off snapshots, never off live
// rooms.
type Snapshot struct {
	RoomID  int
	Gaming  bool
	Members []Member
}

// JoinResult reports a completed join.
type JoinResult struct {
	RoomID  int
	Index   int          // the new member's position in the roster
	Roster  []MemberInfo // full roster including the new member
	Members []Member     // snapshot for fanout
	Begin   bool         // membership reached capacity; room is now gaming
}

// LeaveResult reports a completed departure.
type LeaveResult struct {
	RoomID  int
	Closed  bool         // the room emptied and was deregistered
	Roster  []MemberInfo // remaining roster
	Members []Member     // remaining members, for fanout
}

// CancelResult reports a host cancellation.
type CancelResult struct {
	RoomID  int
	Members []Member // members at close time, for the RoomClosed fanout
}

// Join places a connection into a room. With targeted set, the request
// names an existing room (rejoin or invite acceptance); otherwise the
// matchmaker picks the last open room or creates a fresh one.
//
// A connection holds at most one membership. Any prior membership of
// the same connection, in any room, is removed before seating, with its
// play id released from the guard and its room closed if that emptied
// it. Guard insertion happens in the same critical section as the
// membership append: of two concurrent joins for one play id, exactly
// one wins.
func (m *Manager) Join(connectionID, playID, nickName string, roomID int, targeted bool) (*JoinResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.joined[playID] {
		return nil, errors.New("DUPLICATE_JOIN: Player already occupies a room slot")
	}

	var room *Room
	if targeted {
		room = m.findByIDLocked(roomID)
		if room == nil {
			return nil, errors.New("ROOM_NOT_FOUND: Room not found")
		}
		if !room.isJoinAllowed() {
			return nil, errors.New("ROOM_FULL: Room is not accepting new members")
		}
	} else {
		room = m.findOrCreateOpenLocked()
	}

	if prior := m.findByConnectionLocked(connectionID); prior != nil {
		stale, _ := prior.removeMember(connectionID)
		delete(m.joined, stale.PlayID)
		if prior != room && len(prior.members) == 0 {
			m.deregisterLocked(prior)
		}
	}

	room.addMember(Member{ConnectionID: connectionID, PlayID: playID, NickName: nickName})
	m.joined[playID] = true

	begin := false
	if len(room.members) == RoomCapacity && !room.Gaming {
		room.Gaming = true
		begin = true
	}

	return &JoinResult{
		RoomID:  room.ID,
		Index:   room.memberIndex(connectionID),
		Roster:  room.roster(),
		Members: room.snapshotMembers(),
		Begin:   begin,
	}, nil
}

// CreateWithHost creates a fresh room with the requester as its sole
// member, for the invite-to-room flow. The host occupies a slot like
// anyone else, so the play id goes into the guard and a player already
// seated anywhere is refused.
func (m *Manager) CreateWithHost(connectionID, playID, nickName string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.joined[playID] || m.findByConnectionLocked(connectionID) != nil {
		return 0, errors.New("ALREADY_IN_ROOM: Player already occupies a room slot")
	}

	room := m.createRoomLocked()
	room.addMember(Member{ConnectionID: connectionID, PlayID: playID, NickName: nickName})
	m.joined[playID] = true

	return room.ID, nil
}

// Leave removes the connection's membership, if any, and releases its
// play id from the guard. An emptied room is deregistered. Returns nil
// when the connection was in no room.
func (m *Manager) Leave(connectionID string) *LeaveResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	room := m.findByConnectionLocked(connectionID)
	if room == nil {
		return nil
	}

	member, _ := room.removeMember(connectionID)
	delete(m.joined, member.PlayID)

	res := &LeaveResult{
		RoomID:  room.ID,
		Roster:  room.roster(),
		Members: room.snapshotMembers(),
	}

	if len(room.members) == 0 {
		m.deregisterLocked(room)
		res.Closed = true
	}

	return res
}

// Cancel closes the requester's room. Only the host may cancel, and only
// while the room is still filling. Every member's play id is released
// from the guard in the same critical section as the deregistration.
func (m *Manager) Cancel(connectionID, userID string) (*CancelResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room := m.findByConnectionLocked(connectionID)
	if room == nil {
		return nil, errors.New("NOT_IN_ROOM: Connection is not in a room")
	}
	if !room.isHost(userID) {
		return nil, errors.New("NOT_HOST: Only the room host can cancel")
	}
	if room.Gaming {
		return nil, errors.New("ROOM_IN_GAME: Cannot cancel a room in progress")
	}

	members := room.snapshotMembers()
	for _, member := range members {
		delete(m.joined, member.PlayID)
	}
	m.deregisterLocked(room)

	return &CancelResult{RoomID: room.ID, Members: members}, nil
}

// SnapshotByID returns a copy of the room with the given id.
func (m *Manager) SnapshotByID(roomID int) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room := m.findByIDLocked(roomID)
	if room == nil {
		return Snapshot{}, false
	}
	return m.snapshotLocked(room), true
}

// SnapshotByConnection returns a copy of the room the connection is a
// member of. A connection is in at most one room at a time.
func (m *Manager) SnapshotByConnection(connectionID string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room := m.findByConnectionLocked(connectionID)
	if room == nil {
		return Snapshot{}, false
	}
	return m.snapshotLocked(room), true
}

// Joined reports whether a play id currently occupies a room slot.
func (m *Manager) Joined(playID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.joined[playID]
}

// RoomCount returns the number of active rooms.
func (m *Manager) RoomCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

// Rooms returns snapshots of every active room.
func (m *Manager) Rooms() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snaps := make([]Snapshot, 0, len(m.rooms))
	for _, room := range m.rooms {
		snaps = append(snaps, m.snapshotLocked(room))
	}
	return snaps
}

func (m *Manager) snapshotLocked(room *Room) Snapshot {
	return Snapshot{
		RoomID:  room.ID,
		Gaming:  room.Gaming,
		Members: room.snapshotMembers(),
	}
}

func (m *Manager) createRoomLocked() *Room {
	room := &Room{ID: m.newRoomIDLocked()}
	m.rooms = append(m.rooms, room)
	return room
}

// findOrCreateOpenLocked is the matchmaking strategy: the most recently
// created room if it has a spare slot and is not yet gaming, else a new
// one. Last-room-or-new, nothing cleverer.
func (m *Manager) findOrCreateOpenLocked() *Room {
	if n := len(m.rooms); n > 0 {
		last := m.rooms[n-1]
		if last.isJoinAllowed() && !last.Gaming {
			return last
		}
	}
	return m.createRoomLocked()
}

func (m *Manager) findByIDLocked(roomID int) *Room {
	for _, room := range m.rooms {
		if room.ID == roomID {
			return room
		}
	}
	return nil
}

func (m *Manager) findByConnectionLocked(connectionID string) *Room {
	for _, room := range m.rooms {
		if room.hasConnection(connectionID) {
			return room
		}
	}
	return nil
}

func (m *Manager) deregisterLocked(room *Room) {
	for i, r := range m.rooms {
		if r == room {
			m.rooms = append(m.rooms[:i], m.rooms[i+1:]...)
			return
		}
	}
}
