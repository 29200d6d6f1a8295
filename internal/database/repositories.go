package database

import (
	"context"
	"time"

	"github.com/Haabeel/lark-sync/internal/models"
)

// MessagePage is one page of a channel's history, newest first.
type MessagePage struct {
	Messages   []models.MessageWithSender `json:"messages"`
	HasMore    bool                       `json:"has_more"`
	NextOffset int                        `json:"next_offset"`
}

type MessageRepository interface {
	// Create inserts a message and its attachments in one transaction.
	Create(ctx context.Context, msg *models.Message, attachments []models.Attachment) error
	// GetByID returns a message hydrated with sender and attachments,
	// or nil if it does not exist.
	GetByID(ctx context.Context, id int64) (*models.MessageWithSender, error)
	// ListByChannel returns a page ordered by created_at descending.
	ListByChannel(ctx context.Context, channelID int64, offset, limit int) (*MessagePage, error)
	Update(ctx context.Context, id int64, content string, editedAt time.Time) error
	// Delete removes a message and returns the deleted row, or nil if
	// nothing matched. The full old row feeds the DELETE change event.
	Delete(ctx context.Context, id int64) (*models.Message, error)
}

type ChannelRepository interface {
	Create(ctx context.Context, ch *models.Channel, members []models.ChannelMember) error
	GetByID(ctx context.Context, id int64) (*models.Channel, error)
	// GetOrCreateDirect returns the direct channel between two users,
	// creating it with newID if absent. The bool reports creation.
	GetOrCreateDirect(ctx context.Context, userA, userB, newID int64) (*models.Channel, bool, error)
	AddMember(ctx context.Context, m models.ChannelMember) error
	RemoveMember(ctx context.Context, m models.ChannelMember) error
	// IsMember resolves both direct participation and membership via the
	// user's project-member identities.
	IsMember(ctx context.Context, channelID, userID int64) (bool, error)
	// MemberUserIDs returns the resolved user IDs of everyone in a channel.
	MemberUserIDs(ctx context.Context, channelID int64) ([]int64, error)
	// GetAccessibleChannelIDs returns the union of direct channels the user
	// participates in and project channels reachable through the user's
	// project memberships.
	GetAccessibleChannelIDs(ctx context.Context, userID int64) ([]int64, error)
	// ProjectMemberUserID resolves a project-member identity to its user,
	// returning 0 when the identity does not exist.
	ProjectMemberUserID(ctx context.Context, projectMemberID int64) (int64, error)
	Delete(ctx context.Context, id int64) error
}
