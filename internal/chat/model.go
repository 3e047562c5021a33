package chat

import (
	"time"

	"campus-hub/internal/apperr"
)

// ---------------------------------------------
// 🗄️ Database & API Models
// ---------------------------------------------

type AttachmentKind string

const (
	AttachmentNone  AttachmentKind = "none"
	AttachmentImage AttachmentKind = "image"
	AttachmentFile  AttachmentKind = "file"
)

type Attachment struct {
	URL  string         `json:"url"`
	Kind AttachmentKind `json:"kind"`
}

type Message struct {
	ID             int64          `json:"id"`
	RoomID         int64          `json:"room_id"`
	SenderID       int64          `json:"sender_id"`
	SenderName     string         `json:"sender"` // Denormalized for UI speed (fetched via JOIN)
	Content        string         `json:"content"`
	AttachmentURL  string         `json:"attachment_url,omitempty"`
	AttachmentKind AttachmentKind `json:"attachment_kind"`
	IsDeleted      bool           `json:"is_deleted"`
	DeletedBy      *int64         `json:"deleted_by,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// ---------------------------------------------
// ⚡ Websocket protocol
// ---------------------------------------------

// Inbound frame types.
const (
	FrameJoinRoom      = "join-room"
	FrameLeaveRoom     = "leave-room"
	FrameSendMessage   = "send-message"
	FrameDeleteMessage = "delete-message"
	FrameResync        = "resync"
)

// Outbound event types.
const (
	EventNewMessage     = "new-message"
	EventMessageDeleted = "message-deleted"
	EventJoined         = "joined"
	EventLeft           = "left"
	EventResynced       = "resynced"
	EventError          = "error"
)

// Frame is what the client sends. Ref is echoed back on errors so the
// client can match a failure to its request.
type Frame struct {
	Type       string      `json:"type"`
	Ref        string      `json:"ref,omitempty"`
	RoomID     int64       `json:"room_id,omitempty"`
	Content    string      `json:"content,omitempty"`
	Attachment *Attachment `json:"attachment,omitempty"`
	MessageID  int64       `json:"message_id,omitempty"`
	Rooms      []int64     `json:"rooms,omitempty"`
	Limit      int         `json:"limit,omitempty"`
}

// Event is what the server sends.
type Event struct {
	Type      string       `json:"type"`
	Ref       string       `json:"ref,omitempty"`
	RoomID    int64        `json:"room_id,omitempty"`
	Message   *Message     `json:"message,omitempty"`
	MessageID int64        `json:"message_id,omitempty"`
	Messages  []Message    `json:"messages,omitempty"`
	Rooms     []RoomReplay `json:"rooms,omitempty"`
	Error     *apperr.Body `json:"error,omitempty"`
}

// RoomReplay is one room's outcome of a resync.
type RoomReplay struct {
	RoomID   int64        `json:"room_id"`
	Messages []Message    `json:"messages"`
	Error    *apperr.Body `json:"error,omitempty"`
}

type SendRequest struct {
	RoomID     int64
	Content    string
	Attachment *Attachment
}
