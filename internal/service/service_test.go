package service

import (
	"context"
	"sync"
	"time"

	"github.com/Haabeel/lark-sync/internal/database"
	"github.com/Haabeel/lark-sync/internal/models"
	"github.com/Haabeel/lark-sync/internal/realtime"
	"github.com/Haabeel/lark-sync/internal/snowflake"
)

type mockMessageRepo struct {
	byID map[int64]*models.MessageWithSender

	created            []*models.Message
	createdAttachments [][]models.Attachment
	updated            []int64
	deleted            []int64

	createErr error
	deleteRow *models.Message
}

func newMockMessageRepo() *mockMessageRepo {
	return &mockMessageRepo{byID: make(map[int64]*models.MessageWithSender)}
}

func (m *mockMessageRepo) Create(_ context.Context, msg *models.Message, attachments []models.Attachment) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, msg)
	m.createdAttachments = append(m.createdAttachments, attachments)
	m.byID[msg.ID] = &models.MessageWithSender{
		Message:     *msg,
		SenderName:  "someone",
		Attachments: attachments,
	}
	return nil
}

func (m *mockMessageRepo) GetByID(_ context.Context, id int64) (*models.MessageWithSender, error) {
	return m.byID[id], nil
}

func (m *mockMessageRepo) ListByChannel(_ context.Context, channelID int64, offset, limit int) (*database.MessagePage, error) {
	return &database.MessagePage{Messages: []models.MessageWithSender{}, NextOffset: offset}, nil
}

func (m *mockMessageRepo) Update(_ context.Context, id int64, content string, editedAt time.Time) error {
	m.updated = append(m.updated, id)
	if existing, ok := m.byID[id]; ok {
		existing.Content = content
		existing.EditedAt = &editedAt
	}
	return nil
}

func (m *mockMessageRepo) Delete(_ context.Context, id int64) (*models.Message, error) {
	m.deleted = append(m.deleted, id)
	if m.deleteRow != nil {
		return m.deleteRow, nil
	}
	if existing, ok := m.byID[id]; ok {
		delete(m.byID, id)
		row := existing.Message
		return &row, nil
	}
	return nil, nil
}

type mockChannelRepo struct {
	byID    map[int64]*models.Channel
	members map[int64][]int64

	projectMemberUsers map[int64]int64

	direct        *models.Channel
	directCreated bool

	addedMembers   []models.ChannelMember
	removedMembers []models.ChannelMember
	createdChans   []*models.Channel
}

func newMockChannelRepo() *mockChannelRepo {
	return &mockChannelRepo{
		byID:               make(map[int64]*models.Channel),
		members:            make(map[int64][]int64),
		projectMemberUsers: make(map[int64]int64),
	}
}

func (m *mockChannelRepo) Create(_ context.Context, ch *models.Channel, members []models.ChannelMember) error {
	m.createdChans = append(m.createdChans, ch)
	m.byID[ch.ID] = ch
	return nil
}

func (m *mockChannelRepo) GetByID(_ context.Context, id int64) (*models.Channel, error) {
	return m.byID[id], nil
}

func (m *mockChannelRepo) GetOrCreateDirect(_ context.Context, userA, userB, newID int64) (*models.Channel, bool, error) {
	if m.direct != nil {
		return m.direct, m.directCreated, nil
	}
	ch := &models.Channel{ID: newID, IsDirect: true, CreatorID: userA}
	return ch, true, nil
}

func (m *mockChannelRepo) AddMember(_ context.Context, member models.ChannelMember) error {
	m.addedMembers = append(m.addedMembers, member)
	return nil
}

func (m *mockChannelRepo) RemoveMember(_ context.Context, member models.ChannelMember) error {
	m.removedMembers = append(m.removedMembers, member)
	return nil
}

func (m *mockChannelRepo) IsMember(_ context.Context, channelID, userID int64) (bool, error) {
	for _, uid := range m.members[channelID] {
		if uid == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockChannelRepo) MemberUserIDs(_ context.Context, channelID int64) ([]int64, error) {
	return m.members[channelID], nil
}

func (m *mockChannelRepo) GetAccessibleChannelIDs(context.Context, int64) ([]int64, error) {
	return nil, nil
}

func (m *mockChannelRepo) ProjectMemberUserID(_ context.Context, projectMemberID int64) (int64, error) {
	return m.projectMemberUsers[projectMemberID], nil
}

func (m *mockChannelRepo) Delete(context.Context, int64) error { return nil }

type publishedEvent struct {
	Topic string
	Event realtime.ChangeEvent
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, event realtime.ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Topic: topic, Event: event})
	return nil
}

func (p *recordingPublisher) all() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]publishedEvent, len(p.events))
	copy(out, p.events)
	return out
}

func testGenerator() *snowflake.Generator {
	gen, err := snowflake.NewGenerator(1)
	if err != nil {
		panic(err)
	}
	return gen
}
