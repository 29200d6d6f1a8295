package api

import (
	"context"
	"io"
	"net/http/httptest"
	"time"

	"github.com/Haabeel/lark-sync/internal/database"
	"github.com/Haabeel/lark-sync/internal/models"
	"github.com/Haabeel/lark-sync/internal/realtime"
	"github.com/Haabeel/lark-sync/internal/snowflake"
	"github.com/labstack/echo/v4"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func newTestContext(method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

func setAuthUser(c echo.Context, userID int64) {
	c.Set("user_id", userID)
}

func testSnowflake() *snowflake.Generator {
	sf, _ := snowflake.NewGenerator(1)
	return sf
}

// nopPublisher discards published change events.
type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, realtime.ChangeEvent) error { return nil }

// ---------------------------------------------------------------------------
// Mock repositories
// ---------------------------------------------------------------------------

// mockMessageRepo implements database.MessageRepository.
type mockMessageRepo struct {
	CreateFn        func(ctx context.Context, msg *models.Message, attachments []models.Attachment) error
	GetByIDFn       func(ctx context.Context, id int64) (*models.MessageWithSender, error)
	ListByChannelFn func(ctx context.Context, channelID int64, offset, limit int) (*database.MessagePage, error)
	UpdateFn        func(ctx context.Context, id int64, content string, editedAt time.Time) error
	DeleteFn        func(ctx context.Context, id int64) (*models.Message, error)
}

func (m *mockMessageRepo) Create(ctx context.Context, msg *models.Message, attachments []models.Attachment) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, msg, attachments)
	}
	return nil
}

func (m *mockMessageRepo) GetByID(ctx context.Context, id int64) (*models.MessageWithSender, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockMessageRepo) ListByChannel(ctx context.Context, channelID int64, offset, limit int) (*database.MessagePage, error) {
	if m.ListByChannelFn != nil {
		return m.ListByChannelFn(ctx, channelID, offset, limit)
	}
	return &database.MessagePage{}, nil
}

func (m *mockMessageRepo) Update(ctx context.Context, id int64, content string, editedAt time.Time) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, id, content, editedAt)
	}
	return nil
}

func (m *mockMessageRepo) Delete(ctx context.Context, id int64) (*models.Message, error) {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, id)
	}
	return nil, nil
}

// mockChannelRepo implements database.ChannelRepository.
type mockChannelRepo struct {
	CreateFn                  func(ctx context.Context, ch *models.Channel, members []models.ChannelMember) error
	GetByIDFn                 func(ctx context.Context, id int64) (*models.Channel, error)
	GetOrCreateDirectFn       func(ctx context.Context, userA, userB, newID int64) (*models.Channel, bool, error)
	AddMemberFn               func(ctx context.Context, m models.ChannelMember) error
	RemoveMemberFn            func(ctx context.Context, m models.ChannelMember) error
	IsMemberFn                func(ctx context.Context, channelID, userID int64) (bool, error)
	MemberUserIDsFn           func(ctx context.Context, channelID int64) ([]int64, error)
	GetAccessibleChannelIDsFn func(ctx context.Context, userID int64) ([]int64, error)
	ProjectMemberUserIDFn     func(ctx context.Context, projectMemberID int64) (int64, error)
	DeleteFn                  func(ctx context.Context, id int64) error
}

func (m *mockChannelRepo) Create(ctx context.Context, ch *models.Channel, members []models.ChannelMember) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, ch, members)
	}
	return nil
}

func (m *mockChannelRepo) GetByID(ctx context.Context, id int64) (*models.Channel, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockChannelRepo) GetOrCreateDirect(ctx context.Context, userA, userB, newID int64) (*models.Channel, bool, error) {
	if m.GetOrCreateDirectFn != nil {
		return m.GetOrCreateDirectFn(ctx, userA, userB, newID)
	}
	return nil, false, nil
}

func (m *mockChannelRepo) AddMember(ctx context.Context, member models.ChannelMember) error {
	if m.AddMemberFn != nil {
		return m.AddMemberFn(ctx, member)
	}
	return nil
}

func (m *mockChannelRepo) RemoveMember(ctx context.Context, member models.ChannelMember) error {
	if m.RemoveMemberFn != nil {
		return m.RemoveMemberFn(ctx, member)
	}
	return nil
}

func (m *mockChannelRepo) IsMember(ctx context.Context, channelID, userID int64) (bool, error) {
	if m.IsMemberFn != nil {
		return m.IsMemberFn(ctx, channelID, userID)
	}
	return false, nil
}

func (m *mockChannelRepo) MemberUserIDs(ctx context.Context, channelID int64) ([]int64, error) {
	if m.MemberUserIDsFn != nil {
		return m.MemberUserIDsFn(ctx, channelID)
	}
	return nil, nil
}

func (m *mockChannelRepo) GetAccessibleChannelIDs(ctx context.Context, userID int64) ([]int64, error) {
	if m.GetAccessibleChannelIDsFn != nil {
		return m.GetAccessibleChannelIDsFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockChannelRepo) ProjectMemberUserID(ctx context.Context, projectMemberID int64) (int64, error) {
	if m.ProjectMemberUserIDFn != nil {
		return m.ProjectMemberUserIDFn(ctx, projectMemberID)
	}
	return 0, nil
}

func (m *mockChannelRepo) Delete(ctx context.Context, id int64) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, id)
	}
	return nil
}
