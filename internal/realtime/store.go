package realtime

import (
	"sync"

	"github.com/Haabeel/lark-sync/internal/models"
)

// Snapshot is an immutable view of channel state, handed to listeners and
// the UI bridge.
type Snapshot struct {
	ActiveChannelID *int64                     `json:"active_channel_id,string,omitempty"`
	Messages        []models.MessageWithSender `json:"messages"`
	Loading         bool                       `json:"loading"`
	HasMore         bool                       `json:"has_more"`
	NextOffset      int                        `json:"next_offset"`
}

// StateStore holds the client-visible channel state. Writer discipline: the
// sync engine writes the message list, cursor and loading flag; the session
// writes the active channel pointer on behalf of the UI. Everything else
// reads snapshots or subscribes.
type StateStore struct {
	mu              sync.RWMutex
	activeChannelID *int64
	messages        []models.MessageWithSender
	loading         bool
	hasMore         bool
	nextOffset      int

	nextListener int64
	listeners    map[int64]func(Snapshot)
}

func NewStateStore() *StateStore {
	return &StateStore{listeners: make(map[int64]func(Snapshot))}
}

// ActiveChannelID returns the active channel pointer, or nil when no channel
// is active.
func (s *StateStore) ActiveChannelID() *int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.activeChannelID == nil {
		return nil
	}
	id := *s.activeChannelID
	return &id
}

func (s *StateStore) SetActiveChannelID(id *int64) {
	s.mu.Lock()
	if id == nil {
		s.activeChannelID = nil
	} else {
		v := *id
		s.activeChannelID = &v
	}
	s.mu.Unlock()
	s.notify()
}

// Messages returns a copy of the current message list.
func (s *StateStore) Messages() []models.MessageWithSender {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.MessageWithSender, len(s.messages))
	copy(out, s.messages)
	return out
}

// UpdateMessages applies an updater to the message list under the lock. The
// updater receives the live slice and returns the replacement.
func (s *StateStore) UpdateMessages(update func([]models.MessageWithSender) []models.MessageWithSender) {
	s.mu.Lock()
	s.messages = update(s.messages)
	s.mu.Unlock()
	s.notify()
}

func (s *StateStore) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *StateStore) SetLoading(loading bool) {
	s.mu.Lock()
	s.loading = loading
	s.mu.Unlock()
	s.notify()
}

// Cursor returns the pagination cursor (next offset, has more).
func (s *StateStore) Cursor() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextOffset, s.hasMore
}

func (s *StateStore) SetCursor(nextOffset int, hasMore bool) {
	s.mu.Lock()
	s.nextOffset = nextOffset
	s.hasMore = hasMore
	s.mu.Unlock()
}

// Reset discards the message list and cursor, entering the loading state for
// a newly activated channel.
func (s *StateStore) Reset() {
	s.mu.Lock()
	s.messages = nil
	s.nextOffset = 0
	s.hasMore = true
	s.loading = true
	s.mu.Unlock()
	s.notify()
}

// Clear empties everything, for deactivation or session teardown.
func (s *StateStore) Clear() {
	s.mu.Lock()
	s.activeChannelID = nil
	s.messages = nil
	s.nextOffset = 0
	s.hasMore = false
	s.loading = false
	s.mu.Unlock()
	s.notify()
}

// Subscribe registers a listener invoked with a snapshot after every state
// change. The returned function removes the listener.
func (s *StateStore) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	s.nextListener++
	id := s.nextListener
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Snapshot returns the current state as an immutable value.
func (s *StateStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *StateStore) snapshotLocked() Snapshot {
	msgs := make([]models.MessageWithSender, len(s.messages))
	copy(msgs, s.messages)
	var active *int64
	if s.activeChannelID != nil {
		v := *s.activeChannelID
		active = &v
	}
	return Snapshot{
		ActiveChannelID: active,
		Messages:        msgs,
		Loading:         s.loading,
		HasMore:         s.hasMore,
		NextOffset:      s.nextOffset,
	}
}

// notify invokes listeners outside the lock with a consistent snapshot.
func (s *StateStore) notify() {
	s.mu.RLock()
	snap := s.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(snap)
	}
}
