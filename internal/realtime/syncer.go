package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/Haabeel/lark-sync/internal/database"
	"github.com/Haabeel/lark-sync/internal/models"
)

const (
	initialPageSize = 20
	hydrateTimeout  = 5 * time.Second
)

// ChannelSyncer keeps the local message list of the single active channel
// consistent with the store: initial paginated fetch, then live insert and
// update/delete subscriptions whose raw events are hydrated by point fetch
// before merging.
//
// Every activation bumps a generation counter; results of in-flight fetches
// and late-delivered events are applied only if the generation they were
// started under is still current. That is the only guard against a
// superseded channel writing into the fresh list.
type ChannelSyncer struct {
	mu        sync.Mutex
	gen       uint64
	channelID int64
	active    bool

	store    *StateStore
	messages database.MessageRepository
	subs     *subscriptionSet
}

func NewChannelSyncer(store *StateStore, messages database.MessageRepository, subs *subscriptionSet) *ChannelSyncer {
	return &ChannelSyncer{store: store, messages: messages, subs: subs}
}

// Activate makes channelID the active channel: tears down the previous
// channel's subscriptions, clears the list, fetches the first page and opens
// live subscriptions. Blocks on the initial fetch; callers invoke it from
// their own goroutine, and a concurrent re-activation simply supersedes this
// one via the generation guard.
func (s *ChannelSyncer) Activate(ctx context.Context, channelID int64) error {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.channelID = channelID
	s.active = true
	// Old subscriptions close before the list resets so a late event from
	// the previous channel cannot land in the fresh list.
	s.subs.ClosePurpose(purposeSyncInsert)
	s.subs.ClosePurpose(purposeSyncChanges)
	s.store.Reset()
	s.mu.Unlock()

	page, err := s.messages.ListByChannel(ctx, channelID, 0, initialPageSize)
	if err != nil {
		slog.Error("initial message fetch failed", "channelID", channelID, "error", err)
		if s.current(gen) {
			s.store.SetLoading(false)
		}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		// Superseded while the fetch was in flight; discard the result.
		return nil
	}

	asc := reverseMessages(page.Messages)
	s.store.UpdateMessages(func([]models.MessageWithSender) []models.MessageWithSender {
		return asc
	})
	s.store.SetCursor(page.NextOffset, page.HasMore)
	s.store.SetLoading(false)

	topic := MessageTopic(channelID)
	s.subs.Open(subscriptionKey{Purpose: purposeSyncInsert, ChannelID: channelID}, openSpec{
		topic:   topic,
		filter:  Filter{Types: []EventType{EventInsert}},
		handler: func(e ChangeEvent) { s.handleInsert(gen, e) },
	})
	s.subs.Open(subscriptionKey{Purpose: purposeSyncChanges, ChannelID: channelID}, openSpec{
		topic:   topic,
		filter:  Filter{Types: []EventType{EventUpdate, EventDelete}},
		handler: func(e ChangeEvent) { s.handleChange(gen, e) },
	})
	return nil
}

// Deactivate tears down the active channel's subscriptions and discards the
// list.
func (s *ChannelSyncer) Deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.active = false
	s.subs.ClosePurpose(purposeSyncInsert)
	s.subs.ClosePurpose(purposeSyncChanges)
	s.store.Clear()
}

// LoadMore fetches the next (older) page and prepends it to the list.
func (s *ChannelSyncer) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil
	}
	gen := s.gen
	channelID := s.channelID
	offset, hasMore := s.store.Cursor()
	if !hasMore {
		s.mu.Unlock()
		return nil
	}
	// The loading flag is raised under the same lock as the generation
	// sample, so a concurrent Deactivate either lands before (and this
	// returns at the active check) or after (and its Clear resets the flag).
	s.store.SetLoading(true)
	s.mu.Unlock()

	page, err := s.messages.ListByChannel(ctx, channelID, offset, initialPageSize)
	if err != nil {
		slog.Error("message page fetch failed", "channelID", channelID, "offset", offset, "error", err)
		if s.current(gen) {
			s.store.SetLoading(false)
		}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return nil
	}

	older := reverseMessages(page.Messages)
	s.store.UpdateMessages(func(list []models.MessageWithSender) []models.MessageWithSender {
		existing := make(map[int64]bool, len(list))
		for _, m := range list {
			existing[m.ID] = true
		}
		merged := make([]models.MessageWithSender, 0, len(older)+len(list))
		for _, m := range older {
			if !existing[m.ID] {
				merged = append(merged, m)
			}
		}
		return append(merged, list...)
	})
	s.store.SetCursor(page.NextOffset, page.HasMore)
	s.store.SetLoading(false)
	return nil
}

func (s *ChannelSyncer) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.gen
}

// handleInsert hydrates a raw insert event by point fetch and appends the
// full message, skipping ids already present. Live inserts arrive in commit
// order on the channel's topic, so appending preserves ascending created_at.
func (s *ChannelSyncer) handleInsert(gen uint64, e ChangeEvent) {
	var row models.Message
	if err := json.Unmarshal(e.New, &row); err != nil {
		slog.Error("malformed insert event", "error", err)
		return
	}
	if !s.current(gen) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), hydrateTimeout)
	defer cancel()

	msg, err := s.messages.GetByID(ctx, row.ID)
	if err != nil {
		slog.Error("insert hydration failed", "messageID", row.ID, "error", err)
		return
	}
	if msg == nil {
		slog.Warn("inserted message vanished before hydration", "messageID", row.ID)
		return
	}

	s.applyIfCurrent(gen, func(list []models.MessageWithSender) []models.MessageWithSender {
		for _, m := range list {
			if m.ID == msg.ID {
				return list
			}
		}
		return append(list, *msg)
	})
}

func (s *ChannelSyncer) handleChange(gen uint64, e ChangeEvent) {
	switch e.Type {
	case EventUpdate:
		s.handleUpdate(gen, e)
	case EventDelete:
		s.handleDelete(gen, e)
	}
}

// handleUpdate re-fetches the hydrated message and replaces the list entry
// in place. If the fetch fails the stale entry stays: removal is only ever
// driven by an explicit delete event.
func (s *ChannelSyncer) handleUpdate(gen uint64, e ChangeEvent) {
	var row models.Message
	if err := json.Unmarshal(e.New, &row); err != nil {
		slog.Error("malformed update event", "error", err)
		return
	}
	if !s.current(gen) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), hydrateTimeout)
	defer cancel()

	msg, err := s.messages.GetByID(ctx, row.ID)
	if err != nil || msg == nil {
		slog.Error("update hydration failed, keeping stale entry", "messageID", row.ID, "error", err)
		return
	}

	s.applyIfCurrent(gen, func(list []models.MessageWithSender) []models.MessageWithSender {
		for i := range list {
			if list[i].ID == msg.ID {
				list[i] = *msg
				break
			}
		}
		return list
	})
}

// handleDelete removes the entry matching the event's old row. The row is
// gone, so no re-fetch is possible; the old-row payload must carry the id,
// and events without one are logged and discarded.
func (s *ChannelSyncer) handleDelete(gen uint64, e ChangeEvent) {
	var row models.Message
	if err := json.Unmarshal(e.Old, &row); err != nil || row.ID == 0 {
		slog.Error("delete event missing old row id, discarding", "error", err)
		return
	}

	s.applyIfCurrent(gen, func(list []models.MessageWithSender) []models.MessageWithSender {
		for i := range list {
			if list[i].ID == row.ID {
				return append(list[:i], list[i+1:]...)
			}
		}
		return list
	})
}

// applyIfCurrent mutates the message list only if gen is still the live
// generation. The check and the mutation happen under one lock so a channel
// switch cannot interleave between them.
func (s *ChannelSyncer) applyIfCurrent(gen uint64, update func([]models.MessageWithSender) []models.MessageWithSender) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || !s.active {
		return false
	}
	s.store.UpdateMessages(update)
	return true
}

// reverseMessages flips a descending page into ascending display order.
func reverseMessages(desc []models.MessageWithSender) []models.MessageWithSender {
	asc := make([]models.MessageWithSender, len(desc))
	for i, m := range desc {
		asc[len(desc)-1-i] = m
	}
	return asc
}
