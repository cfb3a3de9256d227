package relay

import "github.com/mfdeleon/go-privchat/internal/types"

// ClientEvent is the envelope for client-to-relay events. Exactly one
// field is expected to be set per frame; frames with none set are
// ignored.
type ClientEvent struct {
	Connected   *UserConnected   `json:"user-connected,omitempty"`
	Join        *JoinPrivateRoom `json:"join-private-room,omitempty"`
	Message     *PrivateMessage  `json:"private-message,omitempty"`
	FileMessage *types.Message   `json:"private-file-message,omitempty"`
}

// UserConnected announces which user owns the connection. The relay
// trusts the id: authentication already happened at the web layer.
type UserConnected struct {
	UserId int `json:"userId"`
}

type JoinPrivateRoom struct {
	UserId1 int `json:"userId1"`
	UserId2 int `json:"userId2"`
}

type PrivateMessage struct {
	Content    string `json:"content"`
	SenderId   int    `json:"senderId"`
	ReceiverId int    `json:"receiverId"`
}

// ServerEvent is the envelope for relay-to-client events.
type ServerEvent struct {
	NewMessage *types.Message `json:"new-private-message,omitempty"`
}

func newMessageEvent(msg *types.Message) *ServerEvent {
	return &ServerEvent{NewMessage: msg}
}
