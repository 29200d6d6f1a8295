package realtime

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Haabeel/lark-sync/internal/database"
	"github.com/Haabeel/lark-sync/internal/models"
)

// fakeSource is an in-memory Source/Publisher that delivers events
// synchronously and confirms every subscription immediately.
type fakeSource struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*fakeSub
}

type fakeSub struct {
	id      int
	src     *fakeSource
	topic   string
	filter  Filter
	handler Handler

	mu     sync.Mutex
	closed bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{subs: make(map[int]*fakeSub)}
}

func (f *fakeSource) Subscribe(_ context.Context, topic string, filter Filter, handler Handler, onStatus StatusFunc) Handle {
	f.mu.Lock()
	f.nextID++
	sub := &fakeSub{id: f.nextID, src: f, topic: topic, filter: filter, handler: handler}
	f.subs[sub.id] = sub
	f.mu.Unlock()

	if onStatus != nil {
		onStatus(StatusSubscribed)
	}
	return sub
}

func (f *fakeSource) Publish(_ context.Context, topic string, event ChangeEvent) error {
	f.mu.Lock()
	var targets []*fakeSub
	for _, sub := range f.subs {
		if sub.topic == topic && sub.filter.matches(event) {
			targets = append(targets, sub)
		}
	}
	f.mu.Unlock()

	sort.Slice(targets, func(i, j int) bool { return targets[i].id < targets[j].id })
	for _, sub := range targets {
		sub.mu.Lock()
		closed := sub.closed
		sub.mu.Unlock()
		if !closed {
			sub.handler(event)
		}
	}
	return nil
}

func (f *fakeSource) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeSource) openCount(topic string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, sub := range f.subs {
		if sub.topic == topic {
			n++
		}
	}
	return n
}

func (s *fakeSub) Topic() string { return s.topic }

func (s *fakeSub) Unsubscribe() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.src.mu.Lock()
	delete(s.src.subs, s.id)
	s.src.mu.Unlock()
}

// memMessageRepo backs the sync and notification tests with an in-memory
// message table keyed by channel, paged like the real repository.
type memMessageRepo struct {
	mu       sync.Mutex
	messages map[int64][]models.MessageWithSender

	listErr error
	getErr  error

	// listHook, when set, runs at the start of ListByChannel before the
	// repo lock is taken. Tests use it to hold a page fetch in flight.
	listHook func()
}

func newMemMessageRepo() *memMessageRepo {
	return &memMessageRepo{messages: make(map[int64][]models.MessageWithSender)}
}

func (r *memMessageRepo) add(m models.MessageWithSender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[m.ChannelID] = append(r.messages[m.ChannelID], m)
	sort.Slice(r.messages[m.ChannelID], func(i, j int) bool {
		return r.messages[m.ChannelID][i].ID < r.messages[m.ChannelID][j].ID
	})
}

func (r *memMessageRepo) remove(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for chID, list := range r.messages {
		for i, m := range list {
			if m.ID == id {
				r.messages[chID] = append(list[:i], list[i+1:]...)
				return
			}
		}
	}
}

func (r *memMessageRepo) Create(context.Context, *models.Message, []models.Attachment) error {
	return nil
}

func (r *memMessageRepo) GetByID(_ context.Context, id int64) (*models.MessageWithSender, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	for _, list := range r.messages {
		for _, m := range list {
			if m.ID == id {
				found := m
				return &found, nil
			}
		}
	}
	return nil, nil
}

func (r *memMessageRepo) ListByChannel(_ context.Context, channelID int64, offset, limit int) (*database.MessagePage, error) {
	r.mu.Lock()
	hook := r.listHook
	r.mu.Unlock()
	if hook != nil {
		hook()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}

	asc := r.messages[channelID]
	desc := make([]models.MessageWithSender, len(asc))
	for i, m := range asc {
		desc[len(asc)-1-i] = m
	}

	if offset > len(desc) {
		offset = len(desc)
	}
	end := offset + limit
	if end > len(desc) {
		end = len(desc)
	}
	page := make([]models.MessageWithSender, end-offset)
	copy(page, desc[offset:end])

	return &database.MessagePage{
		Messages:   page,
		HasMore:    end < len(desc),
		NextOffset: end,
	}, nil
}

func (r *memMessageRepo) Update(context.Context, int64, string, time.Time) error { return nil }

func (r *memMessageRepo) Delete(context.Context, int64) (*models.Message, error) { return nil, nil }

// memChannelRepo is an in-memory ChannelRepository covering the lookups the
// realtime engines make.
type memChannelRepo struct {
	mu         sync.Mutex
	channels   map[int64]*models.Channel
	members    map[int64][]int64
	accessible map[int64][]int64

	accessErr error
}

func newMemChannelRepo() *memChannelRepo {
	return &memChannelRepo{
		channels:   make(map[int64]*models.Channel),
		members:    make(map[int64][]int64),
		accessible: make(map[int64][]int64),
	}
}

func (r *memChannelRepo) addChannel(ch *models.Channel, memberUserIDs []int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[ch.ID] = ch
	r.members[ch.ID] = memberUserIDs
	for _, uid := range memberUserIDs {
		r.accessible[uid] = append(r.accessible[uid], ch.ID)
	}
}

func (r *memChannelRepo) setAccessible(userID int64, channelIDs []int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accessible[userID] = channelIDs
}

func (r *memChannelRepo) Create(context.Context, *models.Channel, []models.ChannelMember) error {
	return nil
}

func (r *memChannelRepo) GetByID(_ context.Context, id int64) (*models.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.channels[id], nil
}

func (r *memChannelRepo) GetOrCreateDirect(context.Context, int64, int64, int64) (*models.Channel, bool, error) {
	return nil, false, nil
}

func (r *memChannelRepo) AddMember(context.Context, models.ChannelMember) error    { return nil }
func (r *memChannelRepo) RemoveMember(context.Context, models.ChannelMember) error { return nil }

func (r *memChannelRepo) IsMember(_ context.Context, channelID, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, uid := range r.members[channelID] {
		if uid == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memChannelRepo) MemberUserIDs(_ context.Context, channelID int64) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.members[channelID], nil
}

func (r *memChannelRepo) GetAccessibleChannelIDs(_ context.Context, userID int64) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.accessErr != nil {
		return nil, r.accessErr
	}
	return r.accessible[userID], nil
}

func (r *memChannelRepo) ProjectMemberUserID(context.Context, int64) (int64, error) { return 0, nil }

func (r *memChannelRepo) Delete(context.Context, int64) error { return nil }

func testMessage(id, channelID, senderID int64, content string) models.MessageWithSender {
	return models.MessageWithSender{
		Message: models.Message{
			ID:        id,
			ChannelID: channelID,
			SenderID:  senderID,
			Content:   content,
			CreatedAt: time.Unix(id, 0),
		},
		SenderName:  fmt.Sprintf("user-%d", senderID),
		Attachments: []models.Attachment{},
	}
}
