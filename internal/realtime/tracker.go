package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Haabeel/lark-sync/internal/database"
)

const refreshTimeout = 5 * time.Second

// MembershipTracker maintains the set of channel IDs the user can access.
// Membership events trigger a full refetch rather than incremental patching:
// a single project-membership change can fan out to many channels, and the
// refetch keeps the set correct without tracking that fan-out.
type MembershipTracker struct {
	userID   int64
	channels database.ChannelRepository

	mu         sync.RWMutex
	accessible map[int64]bool

	// onChange receives the refreshed accessible set; the session uses it
	// to re-derive notification subscriptions.
	onChange func([]int64)
}

func NewMembershipTracker(userID int64, channels database.ChannelRepository, onChange func([]int64)) *MembershipTracker {
	return &MembershipTracker{
		userID:     userID,
		channels:   channels,
		accessible: make(map[int64]bool),
		onChange:   onChange,
	}
}

// Refresh refetches the accessible channel set and fires the change callback.
func (t *MembershipTracker) Refresh(ctx context.Context) error {
	ids, err := t.channels.GetAccessibleChannelIDs(ctx, t.userID)
	if err != nil {
		return err
	}

	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}

	t.mu.Lock()
	t.accessible = set
	t.mu.Unlock()

	if t.onChange != nil {
		t.onChange(ids)
	}
	return nil
}

// AccessibleChannelIDs returns a snapshot of the accessible set.
func (t *MembershipTracker) AccessibleChannelIDs() []int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]int64, 0, len(t.accessible))
	for id := range t.accessible {
		ids = append(ids, id)
	}
	return ids
}

// IsAccessible reports whether a channel is in the current accessible set.
func (t *MembershipTracker) IsAccessible(channelID int64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.accessible[channelID]
}

// HandleMembershipEvent consumes a membership change event. The event
// payload is not inspected beyond its arrival: any add or remove triggers a
// refetch.
func (t *MembershipTracker) HandleMembershipEvent(ChangeEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	if err := t.Refresh(ctx); err != nil {
		slog.Error("membership refresh failed", "userID", t.userID, "error", err)
	}
}
