package server

import "linkrelay-server/internal/relay"

// The wire protocol is flat JSON with a required status discriminator.
// Field names and casing (including the capitalized Index) are the
// compatibility contract with existing clients and must not change.
//
// Handlers that forward a client's event to another connection relay the
// raw bytes, so any fields beyond the ones modelled here pass through
// untouched.

// Envelope carries only the discriminator; each handler re-decodes the
// raw event for its own fields.
type Envelope struct {
	Status string `json:"status"`
}

// Inbound events.

type LinkEvent struct {
	UserID     string         `json:"userId"`
	NickName   string         `json:"nickName"`
	FriendList []relay.Friend `json:"friendList"`
}

type InviteShipEvent struct {
	UserID        string `json:"userId"`
	InvitedUserID string `json:"invitedUserId"`
}

type InviteShipBackEvent struct {
	UserID        string `json:"userId"`
	InvitedUserID string `json:"invitedUserId"`
	NickName      string `json:"nickName"`
}

type RemoveShipEvent struct {
	UserID       string `json:"userId"`
	RemoveUserID string `json:"removeUserId"`
}

type AlongWHGameEvent struct {
	UserID         string `json:"userId"`
	AlongInvitedID string `json:"alongInvitedId"`
}

// AlongWHGameDeciEvent is the invitee's decision. Note the lowercase
// "alonginvitedId" - inherited from the original clients.
type AlongWHGameDeciEvent struct {
	Decision       string `json:"decision"`
	AlongInvitedID string `json:"alonginvitedId"`
	NickName       string `json:"nickName"`
	RoomID         string `json:"roomId"`
}

type CancelRoomEvent struct {
	UserID string `json:"userId"`
}

type IdSendEvent struct {
	PlayID   string `json:"playId"`
	NickName string `json:"nickName"`
	RoomID   string `json:"roomId"` // optional: targeted rejoin
}

// Outbound messages.

type ErrorReply struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// GreetingMessage is the initial IdSend sent right after accept.
type GreetingMessage struct {
	Status string `json:"status"`
}

type FriendKeepLineMessage struct {
	Status   string `json:"status"`
	UserID   string `json:"userId"`
	FriendID string `json:"friendId"`
}

// AlongWHGameInvite is the forwarded game invite, carrying the freshly
// created room's id.
type AlongWHGameInvite struct {
	Status         string `json:"status"`
	UserID         string `json:"userId"`
	NickName       string `json:"nickName"`
	AlongInvitedID string `json:"alongInvitedId"`
	RoomID         int    `json:"roomId"`
}

// AlongWHGameRefusal goes to the room host when an invitee declines.
type AlongWHGameRefusal struct {
	Status         string `json:"status"`
	Decision       string `json:"decision"`
	AlongInvitedID string `json:"alonginvitedId"`
	NickName       string `json:"nickName"`
}

type RoomClosedMessage struct {
	Status string `json:"status"`
}

type JoinSuccessMessage struct {
	Status      string             `json:"status"`
	Index       int                `json:"Index"`
	RoomMembers []relay.MemberInfo `json:"roomMembers"`
}

// NewPlayerMessage announces a join to the whole room: the new member's
// own identity plus the full roster.
type NewPlayerMessage struct {
	Status      string             `json:"status"`
	PlayID      string             `json:"playId"`
	NickName    string             `json:"nickName"`
	RoomMembers []relay.MemberInfo `json:"roomMembers"`
}

// MemberLeftMessage carries the remaining roster after a departure.
type MemberLeftMessage struct {
	Status      string             `json:"status"`
	RoomMembers []relay.MemberInfo `json:"roomMembers"`
}

// GameBeginMessage signals the filling→gaming transition. RoomID is a
// string here, unlike the invite - another piece of the inherited
// contract.
type GameBeginMessage struct {
	Status string `json:"status"`
	RoomID string `json:"roomId"`
}
