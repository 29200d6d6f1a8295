package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Haabeel/lark-sync/internal/database"
	"github.com/Haabeel/lark-sync/internal/models"
)

const notificationBodyLimit = 50

// Notification is the user-facing payload handed to the UI's toast layer.
type Notification struct {
	ChannelID int64  `json:"channel_id,string"`
	Title     string `json:"title"`
	Body      string `json:"body"`
}

// NotifyFunc consumes emitted notifications.
type NotifyFunc func(Notification)

// Notifier turns insert events on non-active channels into notifications.
// One insert-only subscription exists per accessible channel that is not the
// active channel; the session owns those subscriptions and routes their
// events here.
type Notifier struct {
	userID   int64
	messages database.MessageRepository
	channels database.ChannelRepository
	store    *StateStore
	notify   NotifyFunc
}

func NewNotifier(userID int64, messages database.MessageRepository, channels database.ChannelRepository, store *StateStore, notify NotifyFunc) *Notifier {
	return &Notifier{
		userID:   userID,
		messages: messages,
		channels: channels,
		store:    store,
		notify:   notify,
	}
}

// HandleInsert consumes one insert event. Own messages and messages for the
// active channel are suppressed; enrichment failures are logged and the
// event skipped, never propagated.
func (n *Notifier) HandleInsert(e ChangeEvent) {
	var row models.Message
	if err := json.Unmarshal(e.New, &row); err != nil {
		slog.Error("malformed insert event", "error", err)
		return
	}

	if row.SenderID == n.userID {
		return
	}
	if active := n.store.ActiveChannelID(); active != nil && *active == row.ChannelID {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	notification, err := n.build(ctx, row)
	if err != nil {
		slog.Error("notification enrichment failed", "messageID", row.ID, "error", err)
		return
	}
	if n.notify != nil {
		n.notify(*notification)
	}
}

func (n *Notifier) build(ctx context.Context, row models.Message) (*Notification, error) {
	msg, err := n.messages.GetByID(ctx, row.ID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, fmt.Errorf("message %d no longer exists", row.ID)
	}

	ch, err := n.channels.GetByID(ctx, row.ChannelID)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, fmt.Errorf("channel %d no longer exists", row.ChannelID)
	}

	participants, err := n.channels.MemberUserIDs(ctx, row.ChannelID)
	if err != nil {
		return nil, err
	}

	title := msg.SenderName
	if class, ok := models.Classify(ch, participants); ok {
		if pc, isProject := class.(models.ProjectClass); isProject && pc.Name != "" {
			title = fmt.Sprintf("%s in #%s", msg.SenderName, pc.Name)
		}
	}

	return &Notification{
		ChannelID: row.ChannelID,
		Title:     title,
		Body:      notificationBody(msg.Content, len(msg.Attachments)),
	}, nil
}

// notificationBody renders the preview text: truncated content, or an
// attachment count when the message has no text. Blank here matches the
// content-or-attachments send rule, so whitespace-only counts as no text.
func notificationBody(content string, attachmentCount int) string {
	if strings.TrimSpace(content) != "" {
		return truncate(content, notificationBodyLimit)
	}
	if attachmentCount == 1 {
		return "1 attachment"
	}
	return fmt.Sprintf("%d attachments", attachmentCount)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
