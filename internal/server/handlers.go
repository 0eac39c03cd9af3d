package server

import (
	"context"
	"encoding/json"
	"log"
	"strconv"

	"linkrelay-server/internal/relay"
)

// Event handlers. Each one parses its own fields out of the raw event,
// consults the directories/room manager, and replies or fans out.
// Validation failures become a direct Error reply to the requester;
// routing failures (target identity not connected) are silent drops.

// handleLink registers the identity a client declared and fans out
// presence notices.
func (s *Server) handleLink(ctx context.Context, conn relay.Conn, connectionID string, data []byte) {
	var ev LinkEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		s.sendError(ctx, conn, "INVALID_PAYLOAD: Invalid Link payload")
		return
	}

	s.directory.Link(connectionID, relay.Identity{
		UserID:   ev.UserID,
		NickName: ev.NickName,
		Friends:  ev.FriendList,
	})

	// One FriendKeepLine per already-linked peer, delivered to both ends
	// of the pair: the peer learns the new user is online, and the new
	// user learns which peers already are. Presence goes to every linked
	// connection, not just friends - receivers filter against their own
	// friend lists.
	for _, peer := range s.directory.Peers(connectionID) {
		msg, err := json.Marshal(FriendKeepLineMessage{
			Status:   "FriendKeepLine",
			UserID:   ev.UserID,
			FriendID: peer.UserID,
		})
		if err != nil {
			continue
		}

		if pc := s.registry.Conn(peer.ConnectionID); pc != nil {
			if err := pc.Send(ctx, msg); err != nil {
				log.Printf("Presence notice to %s failed: %v", peer.UserID, err)
			}
		}
		if err := conn.Send(ctx, msg); err != nil {
			log.Printf("Presence notice to %s failed: %v", ev.UserID, err)
		}
	}
}

// handleInviteShip forwards a friend invite to the invited user's live
// connection, verbatim.
func (s *Server) handleInviteShip(ctx context.Context, conn relay.Conn, connectionID string, data []byte) {
	var ev InviteShipEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		s.sendError(ctx, conn, "INVALID_PAYLOAD: Invalid InviteShip payload")
		return
	}

	id, ok := s.directory.Identity(connectionID)
	if !ok {
		return // requester never linked; nothing to do
	}

	if id.IsFriend(ev.InvitedUserID) {
		s.sendError(ctx, conn, "ALREADY_FRIENDS: The invited user is already your friend")
		return
	}

	s.forwardToUser(ctx, ev.InvitedUserID, data)
}

// handleInviteShipBack forwards an invite acceptance back to the
// original inviter. The symmetric already-friends check runs against the
// accepting user's own cached list.
func (s *Server) handleInviteShipBack(ctx context.Context, conn relay.Conn, connectionID string, data []byte) {
	var ev InviteShipBackEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		s.sendError(ctx, conn, "INVALID_PAYLOAD: Invalid InviteShipBack payload")
		return
	}

	id, ok := s.directory.Identity(connectionID)
	if !ok {
		return
	}

	if id.IsFriend(ev.UserID) {
		s.sendError(ctx, conn, "ALREADY_FRIENDS: You are already friends with the inviting user")
		return
	}

	s.forwardToUser(ctx, ev.UserID, data)
}

// handleRemoveShip prunes the requester's cached friend list and
// forwards the removal notice to the removed party if they are online.
// Only the requester's side is mutated; the remote side's list is its
// own client's business.
func (s *Server) handleRemoveShip(ctx context.Context, conn relay.Conn, connectionID string, data []byte) {
	var ev RemoveShipEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		s.sendError(ctx, conn, "INVALID_PAYLOAD: Invalid RemoveShip payload")
		return
	}

	if _, ok := s.directory.Identity(connectionID); !ok {
		return
	}

	if err := s.directory.RemoveFriend(connectionID, ev.RemoveUserID); err != nil {
		s.sendError(ctx, conn, err.Error())
		return
	}

	s.forwardToUser(ctx, ev.RemoveUserID, data)
}

// handleAlongWHGame creates a fresh room with the requester as host and
// forwards a game invite to the invitee. No room is created when the
// invitee is offline.
func (s *Server) handleAlongWHGame(ctx context.Context, conn relay.Conn, connectionID string, data []byte) {
	var ev AlongWHGameEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		s.sendError(ctx, conn, "INVALID_PAYLOAD: Invalid AlongWHGame payload")
		return
	}

	id, ok := s.directory.Identity(connectionID)
	if !ok {
		return
	}

	if !id.IsFriend(ev.AlongInvitedID) {
		s.sendError(ctx, conn, "NOT_FRIENDS: The user to be invited is not your friend")
		return
	}

	inviteeConnID, ok := s.directory.LookupByUserID(ev.AlongInvitedID)
	if !ok {
		return // invitee offline: silent drop, no room created
	}
	inviteeConn := s.registry.Conn(inviteeConnID)
	if inviteeConn == nil {
		return
	}

	roomID, err := s.rooms.CreateWithHost(connectionID, ev.UserID, id.NickName)
	if err != nil {
		s.sendError(ctx, conn, err.Error())
		return
	}

	if err := s.send(ctx, inviteeConn, AlongWHGameInvite{
		Status:         "AlongWHGame",
		UserID:         ev.UserID,
		NickName:       id.NickName,
		AlongInvitedID: ev.AlongInvitedID,
		RoomID:         roomID,
	}); err != nil {
		log.Printf("Game invite to %s failed: %v", ev.AlongInvitedID, err)
	}
}

// handleAlongWHGameDeci processes the invitee's decision: "recive" joins
// the named room through the guarded join path, "refuse" notifies the
// room's host only.
func (s *Server) handleAlongWHGameDeci(ctx context.Context, conn relay.Conn, connectionID string, data []byte) {
	var ev AlongWHGameDeciEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		s.sendError(ctx, conn, "INVALID_PAYLOAD: Invalid AlongWHGameDeci payload")
		return
	}

	roomID, err := strconv.Atoi(ev.RoomID)
	if err != nil {
		s.sendError(ctx, conn, "ROOM_NOT_FOUND: Room not found")
		return
	}

	switch ev.Decision {
	case "recive":
		inviteeConnID, ok := s.directory.LookupByUserID(ev.AlongInvitedID)
		if !ok {
			return // invitee no longer connected
		}

		res, err := s.rooms.Join(inviteeConnID, ev.AlongInvitedID, ev.NickName, roomID, true)
		if err != nil {
			s.sendError(ctx, conn, err.Error())
			return
		}

		s.announceJoin(ev.AlongInvitedID, ev.NickName, res)

	case "refuse":
		snap, ok := s.rooms.SnapshotByID(roomID)
		if !ok || len(snap.Members) == 0 {
			return
		}

		// Host is positional: always the first member.
		host := snap.Members[0]
		hostConn := s.registry.Conn(host.ConnectionID)
		if hostConn == nil {
			return // host connection already gone
		}

		if err := s.send(ctx, hostConn, AlongWHGameRefusal{
			Status:         "AlongWHGameDeci",
			Decision:       "refuse",
			AlongInvitedID: ev.AlongInvitedID,
			NickName:       ev.NickName,
		}); err != nil {
			log.Printf("Refusal notice to host %s failed: %v", host.PlayID, err)
		}

	default:
		log.Printf("Unknown decision %q in AlongWHGameDeci", ev.Decision)
	}
}

// handleCancelRoom closes the requester's room. Host-only, and only
// while the room is still filling.
func (s *Server) handleCancelRoom(ctx context.Context, conn relay.Conn, connectionID string, data []byte) {
	var ev CancelRoomEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		s.sendError(ctx, conn, "INVALID_PAYLOAD: Invalid CancelRoom payload")
		return
	}

	res, err := s.rooms.Cancel(connectionID, ev.UserID)
	if err != nil {
		s.sendError(ctx, conn, err.Error())
		return
	}

	msg, err := json.Marshal(RoomClosedMessage{Status: "RoomClosed"})
	if err != nil {
		return
	}
	relay.Broadcast(ctx, s.registry, res.Members, msg)

	log.Printf("Room %d cancelled by host %s", res.RoomID, ev.UserID)
}

// handleIdSend is the join flow: auto-match when no roomId is given,
// targeted rejoin otherwise.
func (s *Server) handleIdSend(ctx context.Context, conn relay.Conn, connectionID string, data []byte) {
	var ev IdSendEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		s.sendError(ctx, conn, "INVALID_PAYLOAD: Invalid IdSend payload")
		return
	}

	targeted := ev.RoomID != ""
	roomID := 0
	if targeted {
		var err error
		roomID, err = strconv.Atoi(ev.RoomID)
		if err != nil {
			s.sendError(ctx, conn, "ROOM_NOT_FOUND: Room not found")
			return
		}
	}

	res, err := s.rooms.Join(connectionID, ev.PlayID, ev.NickName, roomID, targeted)
	if err != nil {
		s.sendError(ctx, conn, err.Error())
		return
	}

	if err := s.send(ctx, conn, JoinSuccessMessage{
		Status:      "JinSuccess",
		Index:       res.Index,
		RoomMembers: res.Roster,
	}); err != nil {
		log.Printf("Join reply failed: %v", err)
	}

	s.announceJoin(ev.PlayID, ev.NickName, res)

	log.Printf("%s joined room %d", s.registry.Label(connectionID), res.RoomID)
}

// handleMemberPlayStep relays an opaque in-game step to the sender's
// room, excluding the sender. Not in a room: ignore.
func (s *Server) handleMemberPlayStep(ctx context.Context, conn relay.Conn, connectionID string, data []byte) {
	snap, ok := s.rooms.SnapshotByConnection(connectionID)
	if !ok {
		return
	}

	relay.BroadcastExcept(ctx, s.registry, snap.Members, connectionID, data)
}

// announceJoin broadcasts the new-player notice (and the game-begin
// notice when the join filled the room) to all members including the
// newcomer. Broadcasts use a background context so one client's request
// lifetime cannot cut off delivery to the rest.
func (s *Server) announceJoin(playID, nickName string, res *relay.JoinResult) {
	ctx := context.Background()

	msg, err := json.Marshal(NewPlayerMessage{
		Status:      "JinNPlayer",
		PlayID:      playID,
		NickName:    nickName,
		RoomMembers: res.Roster,
	})
	if err == nil {
		relay.Broadcast(ctx, s.registry, res.Members, msg)
	}

	if res.Begin {
		begin, err := json.Marshal(GameBeginMessage{
			Status: "GBegin",
			RoomID: strconv.Itoa(res.RoomID),
		})
		if err == nil {
			relay.Broadcast(ctx, s.registry, res.Members, begin)
		}
		log.Printf("Room %d is full, game begins", res.RoomID)
	}
}

// forwardToUser relays raw event bytes to the named identity's live
// connection. Unknown or offline targets are dropped silently -
// best-effort, fire-and-forget.
func (s *Server) forwardToUser(ctx context.Context, userID string, data []byte) {
	connID, ok := s.directory.LookupByUserID(userID)
	if !ok {
		return
	}
	conn := s.registry.Conn(connID)
	if conn == nil {
		return
	}
	if err := conn.Send(ctx, data); err != nil {
		log.Printf("Forward to %s failed: %v", userID, err)
	}
}
