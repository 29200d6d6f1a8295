package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/Haabeel/lark-sync/internal/database"
	"github.com/Haabeel/lark-sync/internal/models"
	"github.com/Haabeel/lark-sync/internal/realtime"
	"github.com/Haabeel/lark-sync/internal/snowflake"
)

// ChannelService handles channel and membership mutations. Every membership
// change publishes an event to each affected user's membership topic so
// their trackers refetch the accessible set.
type ChannelService struct {
	channels  database.ChannelRepository
	snowflake *snowflake.Generator
	events    realtime.Publisher
}

func NewChannelService(channels database.ChannelRepository, sf *snowflake.Generator, events realtime.Publisher) *ChannelService {
	return &ChannelService{channels: channels, snowflake: sf, events: events}
}

// CreateProjectChannel creates a named channel inside a project with the
// given project-member identities as initial members.
func (s *ChannelService) CreateProjectChannel(ctx context.Context, projectID int64, name string, creatorID int64, projectMemberIDs []int64) (*models.Channel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, BadRequest("INVALID_NAME", "channel name must not be empty")
	}

	ch := &models.Channel{
		ID:        s.snowflake.Generate(),
		IsDirect:  false,
		ProjectID: &projectID,
		Name:      &name,
		CreatorID: creatorID,
		CreatedAt: time.Now(),
	}

	members := make([]models.ChannelMember, len(projectMemberIDs))
	for i, pmID := range projectMemberIDs {
		id := pmID
		members[i] = models.ChannelMember{ChannelID: ch.ID, ProjectMemberID: &id}
	}

	if err := s.channels.Create(ctx, ch, members); err != nil {
		return nil, Internal("INTERNAL", "internal server error")
	}

	for _, m := range members {
		s.publishMembership(ctx, realtime.EventInsert, m)
	}
	return ch, nil
}

// GetChannel returns a channel the user is a member of.
func (s *ChannelService) GetChannel(ctx context.Context, channelID, userID int64) (*models.Channel, error) {
	ch, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		return nil, Internal("INTERNAL", "internal server error")
	}
	if ch == nil {
		return nil, NotFound("NOT_FOUND", "channel not found")
	}

	ok, err := s.channels.IsMember(ctx, channelID, userID)
	if err != nil {
		return nil, Internal("INTERNAL", "internal server error")
	}
	if !ok {
		return nil, Forbidden("FORBIDDEN", "you are not a member of this channel")
	}
	return ch, nil
}

// GetOrCreateDirect returns the direct channel between two users, creating
// it if absent.
func (s *ChannelService) GetOrCreateDirect(ctx context.Context, userA, userB int64) (*models.Channel, error) {
	if userA == userB {
		return nil, BadRequest("INVALID_RECIPIENT", "cannot open a direct channel with yourself")
	}

	ch, created, err := s.channels.GetOrCreateDirect(ctx, userA, userB, s.snowflake.Generate())
	if err != nil {
		return nil, Internal("INTERNAL", "internal server error")
	}

	if created {
		for _, uid := range []int64{userA, userB} {
			id := uid
			s.publishMembership(ctx, realtime.EventInsert, models.ChannelMember{ChannelID: ch.ID, UserID: &id})
		}
	}
	return ch, nil
}

// AddMember adds a participant to a channel.
func (s *ChannelService) AddMember(ctx context.Context, m models.ChannelMember) error {
	if err := s.channels.AddMember(ctx, m); err != nil {
		return Internal("INTERNAL", "internal server error")
	}
	s.publishMembership(ctx, realtime.EventInsert, m)
	return nil
}

// RemoveMember removes a participant from a channel.
func (s *ChannelService) RemoveMember(ctx context.Context, m models.ChannelMember) error {
	if err := s.channels.RemoveMember(ctx, m); err != nil {
		return Internal("INTERNAL", "internal server error")
	}
	s.publishMembership(ctx, realtime.EventDelete, m)
	return nil
}

// publishMembership notifies the affected user that their accessible set
// changed. Project-member identities resolve to their user first.
func (s *ChannelService) publishMembership(ctx context.Context, eventType realtime.EventType, m models.ChannelMember) {
	if s.events == nil {
		return
	}

	var userID int64
	switch {
	case m.UserID != nil:
		userID = *m.UserID
	case m.ProjectMemberID != nil:
		uid, err := s.channels.ProjectMemberUserID(ctx, *m.ProjectMemberID)
		if err != nil || uid == 0 {
			slog.Error("resolving project member failed", "projectMemberID", *m.ProjectMemberID, "error", err)
			return
		}
		userID = uid
	default:
		return
	}

	event := realtime.ChangeEvent{Type: eventType, Table: realtime.TableChannelMembers}
	row := marshalRow(m)
	if eventType == realtime.EventDelete {
		event.Old = row
	} else {
		event.New = row
	}

	topic := realtime.MembershipTopic(userID)
	if err := s.events.Publish(ctx, topic, event); err != nil {
		slog.Error("publishing membership event failed", "topic", topic, "error", err)
	}
}
