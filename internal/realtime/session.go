package realtime

import (
	"context"
	"sync"

	"github.com/Haabeel/lark-sync/internal/database"
)

// Session is the lifecycle root of one authenticated user's realtime state.
// It owns every subscription (membership, notifications, active-channel
// sync) through one subscriptionSet, so nothing is opened twice and nothing
// leaks past Close.
type Session struct {
	userID int64
	store  *StateStore
	subs   *subscriptionSet

	tracker  *MembershipTracker
	notifier *Notifier
	syncer   *ChannelSyncer

	mu     sync.Mutex
	closed bool
}

// NewSession builds a session for an authenticated user. notify receives the
// notifications the fan-out engine emits; the store is the state surface the
// UI consumes.
func NewSession(
	userID int64,
	source Source,
	channels database.ChannelRepository,
	messages database.MessageRepository,
	store *StateStore,
	notify NotifyFunc,
) *Session {
	s := &Session{
		userID: userID,
		store:  store,
		subs:   newSubscriptionSet(source),
	}
	s.notifier = NewNotifier(userID, messages, channels, store, notify)
	s.tracker = NewMembershipTracker(userID, channels, func([]int64) {
		s.reconcileNotifications()
	})
	s.syncer = NewChannelSyncer(store, messages, s.subs)
	return s
}

// Start opens the membership subscription and performs the first
// accessible-set fetch, which derives the notification subscriptions.
func (s *Session) Start(ctx context.Context) error {
	s.subs.Open(subscriptionKey{Purpose: purposeMembership, ChannelID: s.userID}, openSpec{
		topic:   MembershipTopic(s.userID),
		handler: s.tracker.HandleMembershipEvent,
	})
	return s.tracker.Refresh(ctx)
}

// Store exposes the state surface the UI reads and subscribes to.
func (s *Session) Store() *StateStore { return s.store }

// SetActiveChannel switches the active channel (nil clears it). The previous
// channel's subscriptions are torn down unconditionally; notification
// subscriptions are re-derived so the newly active channel stops notifying
// and the previous one resumes.
func (s *Session) SetActiveChannel(ctx context.Context, channelID *int64) error {
	s.store.SetActiveChannelID(channelID)

	var err error
	if channelID == nil {
		s.syncer.Deactivate()
	} else {
		err = s.syncer.Activate(ctx, *channelID)
	}

	s.reconcileNotifications()
	return err
}

// LoadMore extends the active channel's history backwards by one page.
func (s *Session) LoadMore(ctx context.Context) error {
	return s.syncer.LoadMore(ctx)
}

// RefreshMembership forces an accessible-set refetch, e.g. after the caller
// knows memberships changed out of band.
func (s *Session) RefreshMembership(ctx context.Context) error {
	return s.tracker.Refresh(ctx)
}

// reconcileNotifications aligns the open insert-only notification
// subscriptions with the accessible set minus the active channel.
func (s *Session) reconcileNotifications() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	active := s.store.ActiveChannelID()

	desired := make(map[subscriptionKey]bool)
	for _, id := range s.tracker.AccessibleChannelIDs() {
		if active != nil && *active == id {
			continue
		}
		desired[subscriptionKey{Purpose: purposeNotify, ChannelID: id}] = true
	}

	current := make(map[subscriptionKey]bool)
	for key := range s.subs.Keys() {
		if key.Purpose == purposeNotify {
			current[key] = true
		}
	}

	toClose, toOpen := reconcile(desired, current)
	for _, key := range toClose {
		s.subs.Close(key)
	}
	for _, key := range toOpen {
		s.subs.Open(key, openSpec{
			topic:   MessageTopic(key.ChannelID),
			filter:  Filter{Types: []EventType{EventInsert}},
			handler: s.notifier.HandleInsert,
		})
	}
}

// Close tears down every subscription immediately and unconditionally and
// clears the local state. This is the path taken when authentication is lost.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	// Deactivate first so the syncer's generation advances and any
	// activation fetch still in flight discards its result instead of
	// repopulating the cleared store.
	s.syncer.Deactivate()
	s.subs.CloseAll()
	s.store.Clear()
}
