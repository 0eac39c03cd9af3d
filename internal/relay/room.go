package relay

// RoomCapacity is the fixed member limit. Reaching it flips the room
// into its gaming state.
const RoomCapacity = 4

// Member is one occupied slot of a room. PlayID is the join-dedup key;
// a play id holds at most one slot anywhere in the system.
type Member struct {
	ConnectionID string
	PlayID       string
	NickName     string
}

// MemberInfo is the wire form of a roster entry.
type MemberInfo struct {
	PlayID   string `json:"playId"`
	NickName string `json:"nickName"`
}

// Room is a bounded matchmaking/game session. The member list is
// ordered: the first member is the host for the room's entire lifetime
// (host identity is positional, never reassigned). Gaming flips true
// exactly once, when membership reaches capacity, and never reverts
// while the room exists.
//
// Rooms are not self-locking. The Manager serializes every mutation and
// read of a live room under its own lock, so membership changes, the
// join guard and the gaming transition are always observed together.
type Room struct {
	ID      int
	Gaming  bool
	members []Member
}

func (r *Room) addMember(m Member) {
	r.members = append(r.members, m)
}

// removeMember drops the member bound to connectionID, preserving the
// order of the rest. Returns the removed member and whether one matched.
func (r *Room) removeMember(connectionID string) (Member, bool) {
	for i, m := range r.members {
		if m.ConnectionID == connectionID {
			r.members = append(r.members[:i:i], r.members[i+1:]...)
			return m, true
		}
	}
	return Member{}, false
}

func (r *Room) memberIndex(connectionID string) int {
	for i, m := range r.members {
		if m.ConnectionID == connectionID {
			return i
		}
	}
	return -1
}

func (r *Room) hasConnection(connectionID string) bool {
	return r.memberIndex(connectionID) >= 0
}

// isHost reports whether userID is the play id of the first member.
func (r *Room) isHost(userID string) bool {
	if len(r.members) == 0 {
		return false
	}
	return r.members[0].PlayID == userID
}

// isJoinAllowed reports whether the room has a spare slot.
func (r *Room) isJoinAllowed() bool {
	return len(r.members) < RoomCapacity
}

// roster builds the wire roster in member order.
func (r *Room) roster() []MemberInfo {
	roster := make([]MemberInfo, 0, len(r.members))
	for _, m := range r.members {
		roster = append(roster, MemberInfo{PlayID: m.PlayID, NickName: m.NickName})
	}
	return roster
}

// snapshotMembers copies the member list so callers can fan out after
// the manager lock is released.
func (r *Room) snapshotMembers() []Member {
	members := make([]Member, len(r.members))
	copy(members, r.members)
	return members
}
