package relay

import (
	"errors"
	"sync"
)

// Friend is one entry of a user's declared friend list. Clients may send
// additional fields alongside these; the relay only ever inspects the
// two it needs, and forwarded friend messages are relayed as raw bytes,
// so nothing is lost by not modelling the rest.
type Friend struct {
	UserID   string `json:"userId"`
	NickName string `json:"nickName"`
}

// Identity is the application identity a client declared on Link.
// Identity claims are trusted as given - there is no authentication.
type Identity struct {
	UserID   string
	NickName string
	Friends  []Friend
}

// IsFriend reports whether userID appears in this identity's cached
// friend list.
func (id Identity) IsFriend(userID string) bool {
	for _, f := range id.Friends {
		if f.UserID == userID {
			return true
		}
	}
	return false
}

// Peer pairs a linked connection with its declared user id, for
// presence fanout.
type Peer struct {
	ConnectionID string
	UserID       string
}

// Directory maps live connections to the identities their clients
// declared. One connection holds at most one identity; a re-Link
// overwrites. Entries are removed eagerly on disconnect, never lazily,
// so LookupByUserID always returns a live connection.
//
// Friend lists are per-user caches and deliberately asymmetric: a
// RemoveFriend here prunes only the requester's side, and the remote
// side is expected to react to the forwarded removal notice on its own.
type Directory struct {
	users map[string]Identity // connectionID → identity
	mu    sync.RWMutex
}

func NewDirectory() *Directory {
	return &Directory{
		users: make(map[string]Identity),
	}
}

// Link binds an identity to a connection, replacing any previous binding.
func (d *Directory) Link(connectionID string, id Identity) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[connectionID] = id
}

// Unlink removes the identity binding on disconnect.
func (d *Directory) Unlink(connectionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.users, connectionID)
}

// Identity returns a copy of the identity bound to a connection.
func (d *Directory) Identity(connectionID string) (Identity, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	id, ok := d.users[connectionID]
	return id, ok
}

// LookupByUserID scans the directory for the connection currently linked
// to userID. Linear scan; fine at this scale, and a pure lookup with no
// side effects.
func (d *Directory) LookupByUserID(userID string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for connID, id := range d.users {
		if id.UserID == userID {
			return connID, true
		}
	}
	return "", false
}

// RemoveFriend deletes friendID from the requester's cached friend list.
// The check and the prune are one critical section so a concurrent
// re-Link cannot produce a lost update.
func (d *Directory) RemoveFriend(connectionID, friendID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	id, ok := d.users[connectionID]
	if !ok {
		return errors.New("NOT_LINKED: Connection has no identity")
	}

	// Build a fresh slice rather than shifting in place: Identity hands
	// out copies whose Friends share the old backing array.
	pruned := make([]Friend, 0, len(id.Friends))
	found := false
	for _, f := range id.Friends {
		if f.UserID == friendID && !found {
			found = true
			continue
		}
		pruned = append(pruned, f)
	}

	if !found {
		return errors.New("NOT_FRIENDS: The user to be removed is not your friend")
	}

	id.Friends = pruned
	d.users[connectionID] = id
	return nil
}

// Peers returns every linked connection except the given one, for
// presence fanout on Link.
func (d *Directory) Peers(exceptConnectionID string) []Peer {
	d.mu.RLock()
	defer d.mu.RUnlock()

	peers := make([]Peer, 0, len(d.users))
	for connID, id := range d.users {
		if connID == exceptConnectionID {
			continue
		}
		peers = append(peers, Peer{ConnectionID: connID, UserID: id.UserID})
	}
	return peers
}

// Count returns the number of linked identities.
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.users)
}
