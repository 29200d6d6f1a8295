package models

import (
	"strings"
	"time"
)

type Message struct {
	ID        int64      `json:"id,string"`
	ChannelID int64      `json:"channel_id,string"`
	SenderID  int64      `json:"sender_id,string"`
	MemberID  *int64     `json:"member_id,string,omitempty"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
}

// MessageWithSender is a message hydrated with sender identity and
// attachments, the shape the client renders.
type MessageWithSender struct {
	Message
	SenderName  string       `json:"sender_name"`
	SenderImage *string      `json:"sender_image,omitempty"`
	Attachments []Attachment `json:"attachments"`
}

// HasContent reports whether a message body satisfies the send invariant:
// non-blank content or at least one attachment.
func HasContent(content string, attachmentCount int) bool {
	return strings.TrimSpace(content) != "" || attachmentCount > 0
}
