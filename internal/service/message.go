package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Haabeel/lark-sync/internal/database"
	"github.com/Haabeel/lark-sync/internal/models"
	"github.com/Haabeel/lark-sync/internal/realtime"
	"github.com/Haabeel/lark-sync/internal/snowflake"
)

const maxContentLength = 4000

// AttachmentInput describes one attachment on an incoming message. The file
// itself lives in external storage; only the URL crosses this boundary.
type AttachmentInput struct {
	URL      string                `json:"url"`
	Type     models.AttachmentType `json:"type"`
	FileName *string               `json:"file_name,omitempty"`
	FileSize *int64                `json:"file_size,omitempty"`
}

// MessageService handles message mutations and history reads, publishing a
// change event for every committed mutation.
type MessageService struct {
	messages  database.MessageRepository
	channels  database.ChannelRepository
	snowflake *snowflake.Generator
	events    realtime.Publisher
}

func NewMessageService(
	messages database.MessageRepository,
	channels database.ChannelRepository,
	sf *snowflake.Generator,
	events realtime.Publisher,
) *MessageService {
	return &MessageService{
		messages:  messages,
		channels:  channels,
		snowflake: sf,
		events:    events,
	}
}

// Send creates a message in a channel. A message must carry non-blank
// content or at least one attachment.
func (s *MessageService) Send(ctx context.Context, channelID, senderID int64, memberID *int64, content string, attachments []AttachmentInput) (*models.MessageWithSender, error) {
	if err := s.requireMember(ctx, channelID, senderID); err != nil {
		return nil, err
	}

	if !models.HasContent(content, len(attachments)) {
		return nil, BadRequest("EMPTY_MESSAGE", "message needs content or at least one attachment")
	}
	if len(content) > maxContentLength {
		return nil, BadRequest("CONTENT_TOO_LONG", "message content exceeds the maximum length")
	}
	for _, a := range attachments {
		switch a.Type {
		case models.AttachmentImage, models.AttachmentVideo, models.AttachmentFile:
		default:
			return nil, BadRequest("INVALID_ATTACHMENT_TYPE", "attachment type must be IMAGE, VIDEO or FILE")
		}
		if a.URL == "" {
			return nil, BadRequest("INVALID_ATTACHMENT_URL", "attachment url must not be empty")
		}
	}

	msg := &models.Message{
		ID:        s.snowflake.Generate(),
		ChannelID: channelID,
		SenderID:  senderID,
		MemberID:  memberID,
		Content:   content,
		CreatedAt: time.Now(),
	}

	rows := make([]models.Attachment, len(attachments))
	for i, a := range attachments {
		rows[i] = models.Attachment{
			ID:        s.snowflake.Generate(),
			MessageID: msg.ID,
			URL:       a.URL,
			Type:      a.Type,
			FileName:  a.FileName,
			FileSize:  a.FileSize,
		}
	}

	if err := s.messages.Create(ctx, msg, rows); err != nil {
		return nil, Internal("INTERNAL", "internal server error")
	}

	full, err := s.messages.GetByID(ctx, msg.ID)
	if err != nil || full == nil {
		return nil, Internal("INTERNAL", "internal server error")
	}

	s.publish(ctx, channelID, realtime.ChangeEvent{
		Type:  realtime.EventInsert,
		Table: realtime.TableMessages,
		New:   marshalRow(msg),
	})
	return full, nil
}

// List returns a page of channel history, newest first.
func (s *MessageService) List(ctx context.Context, channelID, userID int64, offset, limit int) (*database.MessagePage, error) {
	if err := s.requireMember(ctx, channelID, userID); err != nil {
		return nil, err
	}
	if limit < 1 || limit > 100 {
		return nil, BadRequest("INVALID_LIMIT", "limit must be 1-100")
	}
	if offset < 0 {
		return nil, BadRequest("INVALID_OFFSET", "offset must not be negative")
	}

	page, err := s.messages.ListByChannel(ctx, channelID, offset, limit)
	if err != nil {
		return nil, Internal("INTERNAL", "internal server error")
	}
	if page.Messages == nil {
		page.Messages = []models.MessageWithSender{}
	}
	return page, nil
}

// Edit updates a message's content. Only the original sender may edit.
func (s *MessageService) Edit(ctx context.Context, msgID, userID int64, content string) (*models.MessageWithSender, error) {
	msg, err := s.messages.GetByID(ctx, msgID)
	if err != nil {
		return nil, Internal("INTERNAL", "internal server error")
	}
	if msg == nil {
		return nil, NotFound("NOT_FOUND", "message not found")
	}
	if msg.SenderID != userID {
		return nil, Forbidden("FORBIDDEN", "you can only edit your own messages")
	}
	if !models.HasContent(content, len(msg.Attachments)) {
		return nil, BadRequest("EMPTY_MESSAGE", "message needs content or at least one attachment")
	}
	if len(content) > maxContentLength {
		return nil, BadRequest("CONTENT_TOO_LONG", "message content exceeds the maximum length")
	}

	now := time.Now()
	if err := s.messages.Update(ctx, msgID, content, now); err != nil {
		return nil, Internal("INTERNAL", "internal server error")
	}

	full, err := s.messages.GetByID(ctx, msgID)
	if err != nil || full == nil {
		return nil, Internal("INTERNAL", "internal server error")
	}

	s.publish(ctx, full.ChannelID, realtime.ChangeEvent{
		Type:  realtime.EventUpdate,
		Table: realtime.TableMessages,
		New:   marshalRow(&full.Message),
	})
	return full, nil
}

// Delete removes a message. Only the original sender may delete. The change
// event carries the full old row because subscribers have no way to re-fetch
// a deleted message.
func (s *MessageService) Delete(ctx context.Context, msgID, userID int64) error {
	msg, err := s.messages.GetByID(ctx, msgID)
	if err != nil {
		return Internal("INTERNAL", "internal server error")
	}
	if msg == nil {
		return NotFound("NOT_FOUND", "message not found")
	}
	if msg.SenderID != userID {
		return Forbidden("FORBIDDEN", "you can only delete your own messages")
	}

	old, err := s.messages.Delete(ctx, msgID)
	if err != nil {
		return Internal("INTERNAL", "internal server error")
	}
	if old == nil {
		return NotFound("NOT_FOUND", "message not found")
	}

	s.publish(ctx, old.ChannelID, realtime.ChangeEvent{
		Type:  realtime.EventDelete,
		Table: realtime.TableMessages,
		Old:   marshalRow(old),
	})
	return nil
}

func (s *MessageService) requireMember(ctx context.Context, channelID, userID int64) error {
	ok, err := s.channels.IsMember(ctx, channelID, userID)
	if err != nil {
		return Internal("INTERNAL", "internal server error")
	}
	if !ok {
		return Forbidden("FORBIDDEN", "you are not a member of this channel")
	}
	return nil
}

// publish sends a change event to the channel's topic. Publish failures are
// logged, not returned: the mutation has already committed.
func (s *MessageService) publish(ctx context.Context, channelID int64, event realtime.ChangeEvent) {
	if s.events == nil {
		return
	}
	topic := realtime.MessageTopic(channelID)
	if err := s.events.Publish(ctx, topic, event); err != nil {
		slog.Error("publishing change event failed", "topic", topic, "type", event.Type, "error", err)
	}
}

func marshalRow(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("marshaling event row failed", "error", err)
		return nil
	}
	return data
}
