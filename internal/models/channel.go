package models

import "time"

// Channel is a chat channel. A direct channel has exactly two participants
// and no project; a project channel belongs to a project and carries a name.
type Channel struct {
	ID        int64     `json:"id,string"`
	IsDirect  bool      `json:"is_direct"`
	ProjectID *int64    `json:"project_id,string,omitempty"`
	Name      *string   `json:"name,omitempty"`
	CreatorID int64     `json:"creator_id,string"`
	CreatedAt time.Time `json:"created_at"`
}

// ChannelMember links a channel to a participant. Exactly one of UserID
// (direct channels) or ProjectMemberID (project channels) is set.
type ChannelMember struct {
	ChannelID       int64  `json:"channel_id,string"`
	UserID          *int64 `json:"user_id,string,omitempty"`
	ProjectMemberID *int64 `json:"project_member_id,string,omitempty"`
}

// ChannelClass is the tagged classification of a channel, produced where the
// realtime engines need to branch on direct-vs-project behavior instead of
// probing nullable fields.
type ChannelClass interface {
	isChannelClass()
}

// DirectClass identifies a two-party direct channel.
type DirectClass struct {
	ParticipantA int64
	ParticipantB int64
}

// ProjectClass identifies a named project channel.
type ProjectClass struct {
	ProjectID int64
	Name      string
}

func (DirectClass) isChannelClass()  {}
func (ProjectClass) isChannelClass() {}

// Classify converts a channel row plus its resolved participant user IDs into
// a ChannelClass. Returns false when the row violates the shape invariants
// (a direct channel without two participants, a project channel without a
// project id).
func Classify(ch *Channel, participantIDs []int64) (ChannelClass, bool) {
	if ch.IsDirect {
		if len(participantIDs) != 2 || ch.ProjectID != nil {
			return nil, false
		}
		return DirectClass{ParticipantA: participantIDs[0], ParticipantB: participantIDs[1]}, true
	}
	if ch.ProjectID == nil {
		return nil, false
	}
	name := ""
	if ch.Name != nil {
		name = *ch.Name
	}
	return ProjectClass{ProjectID: *ch.ProjectID, Name: name}, true
}
