package relay

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test: first auto-match join creates a room
// Why: the matchmaker must work from an empty server
func TestManager_AutoJoinCreatesRoom(t *testing.T) {
	m := NewManager()

	res, err := m.Join("conn-1", "u1", "Ann", 0, false)
	require.NoError(t, err)

	assert.Equal(t, 0, res.Index)
	assert.False(t, res.Begin)
	require.Len(t, res.Roster, 1)
	assert.Equal(t, "u1", res.Roster[0].PlayID)
	assert.Equal(t, "Ann", res.Roster[0].NickName)

	assert.Equal(t, 1, m.RoomCount())
	assert.True(t, m.Joined("u1"))
	assert.GreaterOrEqual(t, res.RoomID, 0)
	assert.Less(t, res.RoomID, 10000)
}

// Test: auto-match fills the most recent open room
// Why: last-room-or-new is the whole matchmaking strategy
func TestManager_AutoJoinFillsLastRoom(t *testing.T) {
	m := NewManager()

	first, err := m.Join("conn-1", "u1", "Ann", 0, false)
	require.NoError(t, err)

	second, err := m.Join("conn-2", "u2", "Bob", 0, false)
	require.NoError(t, err)

	assert.Equal(t, first.RoomID, second.RoomID)
	assert.Equal(t, 1, second.Index)
	assert.Len(t, second.Roster, 2)
	assert.Equal(t, 1, m.RoomCount())
}

// Test: the fourth member flips the room into gaming
// Why: the transition is one-way and must fire exactly once, on the
// join that reaches capacity
func TestManager_FourthJoinBeginsGame(t *testing.T) {
	m := NewManager()

	var last *JoinResult
	for i := 1; i <= RoomCapacity; i++ {
		res, err := m.Join(
			fmt.Sprintf("conn-%d", i),
			fmt.Sprintf("u%d", i),
			fmt.Sprintf("p%d", i),
			0, false,
		)
		require.NoError(t, err)
		if i < RoomCapacity {
			assert.False(t, res.Begin, "join %d must not begin the game", i)
		}
		last = res
	}

	assert.True(t, last.Begin)
	assert.Equal(t, RoomCapacity-1, last.Index)
	assert.Len(t, last.Roster, RoomCapacity)

	snap, ok := m.SnapshotByID(last.RoomID)
	require.True(t, ok)
	assert.True(t, snap.Gaming)
}

// Test: a fifth auto-match join opens a new room
// Why: full and gaming rooms are both closed to the matchmaker
func TestManager_FifthJoinOpensNewRoom(t *testing.T) {
	m := NewManager()

	var firstRoom int
	for i := 1; i <= RoomCapacity; i++ {
		res, err := m.Join(
			fmt.Sprintf("conn-%d", i),
			fmt.Sprintf("u%d", i),
			"", 0, false,
		)
		require.NoError(t, err)
		firstRoom = res.RoomID
	}

	res, err := m.Join("conn-5", "u5", "", 0, false)
	require.NoError(t, err)

	assert.NotEqual(t, firstRoom, res.RoomID)
	assert.Equal(t, 0, res.Index)
	assert.Equal(t, 2, m.RoomCount())
}

// Test: a play id can hold one slot system-wide
// Why: the guard stops the same player joining twice, even into
// different rooms from different connections
func TestManager_DuplicatePlayIDRefused(t *testing.T) {
	m := NewManager()

	_, err := m.Join("conn-1", "u1", "Ann", 0, false)
	require.NoError(t, err)

	_, err = m.Join("conn-2", "u1", "Ann", 0, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DUPLICATE_JOIN")

	// Still one room, one member
	snaps := m.Rooms()
	require.Len(t, snaps, 1)
	assert.Len(t, snaps[0].Members, 1)
}

// Test: a connection holds at most one membership, even across play ids
// Why: play ids are client-supplied, so the same connection can present
// a fresh one; joining elsewhere must relocate the connection, not
// duplicate it, and must release the abandoned slot
func TestManager_SingleMembershipPerConnection(t *testing.T) {
	m := NewManager()

	first, err := m.Join("conn-1", "u1", "Ann", 0, false)
	require.NoError(t, err)

	hostRoom, err := m.CreateWithHost("conn-2", "u2", "Bob")
	require.NoError(t, err)

	res, err := m.Join("conn-1", "u3", "Ann", hostRoom, true)
	require.NoError(t, err)
	assert.Equal(t, hostRoom, res.RoomID)

	// Exactly one membership, in the room joined last
	snap, ok := m.SnapshotByConnection("conn-1")
	require.True(t, ok)
	assert.Equal(t, hostRoom, snap.RoomID)

	total := 0
	for _, s := range m.Rooms() {
		for _, member := range s.Members {
			if member.ConnectionID == "conn-1" {
				total++
			}
		}
	}
	assert.Equal(t, 1, total)

	// The abandoned slot was released and its emptied room closed
	assert.False(t, m.Joined("u1"))
	assert.True(t, m.Joined("u3"))
	_, ok = m.SnapshotByID(first.RoomID)
	assert.False(t, ok)
	assert.Equal(t, 1, m.RoomCount())
}

// Test: relocating a connection leaves its old roommates intact
// Why: the abandoned room only closes when the departure emptied it
func TestManager_RelocationPreservesOldRoom(t *testing.T) {
	m := NewManager()

	first, err := m.Join("conn-1", "u1", "Ann", 0, false)
	require.NoError(t, err)
	_, err = m.Join("conn-2", "u2", "Bob", first.RoomID, true)
	require.NoError(t, err)

	hostRoom, err := m.CreateWithHost("conn-3", "u3", "Cho")
	require.NoError(t, err)

	_, err = m.Join("conn-1", "u9", "Ann", hostRoom, true)
	require.NoError(t, err)

	old, ok := m.SnapshotByID(first.RoomID)
	require.True(t, ok)
	require.Len(t, old.Members, 1)
	assert.Equal(t, "u2", old.Members[0].PlayID)
	assert.False(t, m.Joined("u1"))
}

// Test: concurrent joins for one play id, exactly one winner
// Why: check and insert are a single critical section; racing joins
// must never both land
func TestManager_ConcurrentJoinSamePlayID(t *testing.T) {
	m := NewManager()

	const racers = 16
	var wg sync.WaitGroup
	errs := make([]error, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.Join(fmt.Sprintf("conn-%d", i), "u1", "Ann", 0, false)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		}
	}
	assert.Equal(t, 1, wins, "exactly one racer should take the slot")

	total := 0
	for _, snap := range m.Rooms() {
		total += len(snap.Members)
	}
	assert.Equal(t, 1, total)
}

// Test: targeted join into an unknown or full room fails
// Why: invite acceptance and rejoin name a specific room and must not
// fall back to matchmaking
func TestManager_TargetedJoinErrors(t *testing.T) {
	m := NewManager()

	_, err := m.Join("conn-x", "ux", "", 424242, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ROOM_NOT_FOUND")

	var roomID int
	for i := 1; i <= RoomCapacity; i++ {
		res, err := m.Join(
			fmt.Sprintf("conn-%d", i),
			fmt.Sprintf("u%d", i),
			"", 0, false,
		)
		require.NoError(t, err)
		roomID = res.RoomID
	}

	_, err = m.Join("conn-5", "u5", "", roomID, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ROOM_FULL")
}

// Test: CreateWithHost seats the host and guards its play id
// Why: the invite flow creates a room before anyone accepts, and the
// host must count as seated from that moment
func TestManager_CreateWithHost(t *testing.T) {
	m := NewManager()

	roomID, err := m.CreateWithHost("conn-1", "u1", "Ann")
	require.NoError(t, err)
	assert.True(t, m.Joined("u1"))

	snap, ok := m.SnapshotByID(roomID)
	require.True(t, ok)
	require.Len(t, snap.Members, 1)
	assert.Equal(t, "u1", snap.Members[0].PlayID)

	// Host cannot create a second room while seated
	_, err = m.CreateWithHost("conn-1", "u1", "Ann")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ALREADY_IN_ROOM")

	// The invitee accepts via a targeted join
	res, err := m.Join("conn-2", "u2", "Bob", roomID, true)
	require.NoError(t, err)
	assert.Equal(t, roomID, res.RoomID)
	assert.Equal(t, 1, res.Index)
}

// Test: Leave releases the slot, keeps member order, closes empty rooms
// Why: disconnect cleanup depends on all three
func TestManager_Leave(t *testing.T) {
	m := NewManager()

	m.Join("conn-1", "u1", "Ann", 0, false)
	m.Join("conn-2", "u2", "Bob", 0, false)
	m.Join("conn-3", "u3", "Cho", 0, false)

	res := m.Leave("conn-2")
	require.NotNil(t, res)
	assert.False(t, res.Closed)
	require.Len(t, res.Roster, 2)
	assert.Equal(t, "u1", res.Roster[0].PlayID)
	assert.Equal(t, "u3", res.Roster[1].PlayID)
	assert.False(t, m.Joined("u2"))

	// The freed play id can be taken again
	_, err := m.Join("conn-4", "u2", "Bob", 0, false)
	require.NoError(t, err)

	// Draining the room closes it
	m.Leave("conn-4")
	m.Leave("conn-3")
	last := m.Leave("conn-1")
	require.NotNil(t, last)
	assert.True(t, last.Closed)
	assert.Equal(t, 0, m.RoomCount())

	// A connection in no room is a no-op
	assert.Nil(t, m.Leave("conn-1"))
}

// Test: the host is positional, the first member for the room's lifetime
// Why: cancellation rights never move, even as others come and go
func TestManager_CancelHostOnly(t *testing.T) {
	m := NewManager()

	res, err := m.Join("conn-1", "u1", "Ann", 0, false)
	require.NoError(t, err)
	_, err = m.Join("conn-2", "u2", "Bob", res.RoomID, true)
	require.NoError(t, err)

	// The second member is not the host
	_, err = m.Cancel("conn-2", "u2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOT_HOST")

	// Claiming the host's user id from another seat still fails: the
	// host check runs against the roster, not the request
	_, err = m.Cancel("conn-2", "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOT_HOST")

	cancelled, err := m.Cancel("conn-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, res.RoomID, cancelled.RoomID)
	assert.Len(t, cancelled.Members, 2)
	assert.Equal(t, 0, m.RoomCount())
}

// Test: cancel releases every member's slot
// Why: a leaked guard entry would lock players out of all future games
func TestManager_CancelReleasesGuard(t *testing.T) {
	m := NewManager()

	res, _ := m.Join("conn-1", "u1", "Ann", 0, false)
	m.Join("conn-2", "u2", "Bob", res.RoomID, true)

	_, err := m.Cancel("conn-1", "u1")
	require.NoError(t, err)

	assert.False(t, m.Joined("u1"))
	assert.False(t, m.Joined("u2"))

	// Both can immediately join again
	_, err = m.Join("conn-1", "u1", "Ann", 0, false)
	require.NoError(t, err)
	_, err = m.Join("conn-2", "u2", "Bob", 0, false)
	require.NoError(t, err)
}

// Test: a gaming room cannot be cancelled
// Why: the filling→gaming transition is one-way; cancellation only
// exists to unwind rooms that never started
func TestManager_CancelGamingRoomRefused(t *testing.T) {
	m := NewManager()

	for i := 1; i <= RoomCapacity; i++ {
		_, err := m.Join(
			fmt.Sprintf("conn-%d", i),
			fmt.Sprintf("u%d", i),
			"", 0, false,
		)
		require.NoError(t, err)
	}

	_, err := m.Cancel("conn-1", "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ROOM_IN_GAME")
	assert.Equal(t, 1, m.RoomCount())
}

// Test: cancel from a connection outside any room
// Why: stale clients may send CancelRoom after their room closed
func TestManager_CancelNotInRoom(t *testing.T) {
	m := NewManager()

	_, err := m.Cancel("conn-1", "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOT_IN_ROOM")
}

// Test: room ids never collide while rooms are live
// Why: ids are random draws from a small range, redrawn on collision
func TestManager_RoomIDsUnique(t *testing.T) {
	m := NewManager()

	seen := make(map[int]bool)
	for i := 0; i < 200; i++ {
		roomID, err := m.CreateWithHost(
			fmt.Sprintf("conn-%d", i),
			fmt.Sprintf("u%d", i),
			"",
		)
		require.NoError(t, err)
		assert.False(t, seen[roomID], "room id %d issued twice", roomID)
		assert.GreaterOrEqual(t, roomID, 0)
		assert.Less(t, roomID, 10000)
		seen[roomID] = true
	}
}

// Test: snapshots are copies, detached from live state
// Why: fanout reads snapshots after the lock is released; later
// membership changes must not show through
func TestManager_SnapshotIsDetached(t *testing.T) {
	m := NewManager()

	res, _ := m.Join("conn-1", "u1", "Ann", 0, false)
	m.Join("conn-2", "u2", "Bob", res.RoomID, true)

	snap, ok := m.SnapshotByConnection("conn-1")
	require.True(t, ok)
	require.Len(t, snap.Members, 2)

	m.Leave("conn-2")

	assert.Len(t, snap.Members, 2, "snapshot must not shrink")
	after, ok := m.SnapshotByConnection("conn-1")
	require.True(t, ok)
	assert.Len(t, after.Members, 1)
}
