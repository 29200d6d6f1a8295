package database

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Haabeel/lark-sync/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// testPool returns a pgxpool.Pool connected to the test database.
// It skips the test if DATABASE_URL is not set.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connecting to test database: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	return pool
}

// testIDCounter provides unique IDs across all tests in the package.
// Starts well above zero to avoid conflicts with any existing data.
var testIDCounter int64 = 100000

func nextID() int64 {
	return atomic.AddInt64(&testIDCounter, 1)
}

// createTestUser inserts a user row and registers cleanup.
func createTestUser(t *testing.T, pool *pgxpool.Pool) int64 {
	t.Helper()
	ctx := context.Background()
	id := nextID()
	email := "user-" + time.Now().Format("150405.000000000") + "@test.local"
	_, err := pool.Exec(ctx,
		`INSERT INTO users (id, name, email, created_at) VALUES ($1, $2, $3, now())`,
		id, "Test User", email,
	)
	if err != nil {
		t.Fatalf("createTestUser: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	})
	return id
}

// createTestProject inserts a project row and registers cleanup.
func createTestProject(t *testing.T, pool *pgxpool.Pool) int64 {
	t.Helper()
	ctx := context.Background()
	id := nextID()
	_, err := pool.Exec(ctx,
		`INSERT INTO projects (id, name, created_at) VALUES ($1, $2, now())`,
		id, "Test Project",
	)
	if err != nil {
		t.Fatalf("createTestProject: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	})
	return id
}

// createTestProjectMember links a user into a project and returns the
// project-member ID.
func createTestProjectMember(t *testing.T, pool *pgxpool.Pool, projectID, userID int64) int64 {
	t.Helper()
	ctx := context.Background()
	id := nextID()
	_, err := pool.Exec(ctx,
		`INSERT INTO project_members (id, project_id, user_id, joined_at) VALUES ($1, $2, $3, now())`,
		id, projectID, userID,
	)
	if err != nil {
		t.Fatalf("createTestProjectMember: %v", err)
	}
	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, `DELETE FROM project_members WHERE id = $1`, id)
	})
	return id
}

// createTestProjectChannel creates a named project channel with the given
// project-member participants and registers cleanup.
func createTestProjectChannel(t *testing.T, repo ChannelRepository, projectID, creatorID int64, memberIDs ...int64) *models.Channel {
	t.Helper()
	ctx := context.Background()
	id := nextID()
	name := "test-channel-" + time.Now().Format("150405.000000000")
	ch := &models.Channel{
		ID:        id,
		ProjectID: &projectID,
		Name:      &name,
		CreatorID: creatorID,
		CreatedAt: time.Now().Truncate(time.Microsecond),
	}
	members := make([]models.ChannelMember, 0, len(memberIDs))
	for _, mid := range memberIDs {
		mid := mid
		members = append(members, models.ChannelMember{ChannelID: id, ProjectMemberID: &mid})
	}
	if err := repo.Create(ctx, ch, members); err != nil {
		t.Fatalf("createTestProjectChannel: %v", err)
	}
	t.Cleanup(func() { _ = repo.Delete(ctx, id) })
	return ch
}
