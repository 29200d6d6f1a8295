package database

import (
	"context"

	"github.com/Haabeel/lark-sync/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type channelRepo struct {
	pool *pgxpool.Pool
}

func NewChannelRepository(pool *pgxpool.Pool) ChannelRepository {
	return &channelRepo{pool: pool}
}

func (r *channelRepo) Create(ctx context.Context, ch *models.Channel, members []models.ChannelMember) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO channels (id, is_direct, project_id, name, creator_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		ch.ID, ch.IsDirect, ch.ProjectID, ch.Name, ch.CreatorID, ch.CreatedAt,
	)
	if err != nil {
		return err
	}

	for _, m := range members {
		_, err = tx.Exec(ctx,
			`INSERT INTO channel_members (channel_id, user_id, project_member_id)
			 VALUES ($1, $2, $3)`,
			ch.ID, m.UserID, m.ProjectMemberID,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *channelRepo) GetByID(ctx context.Context, id int64) (*models.Channel, error) {
	ch := &models.Channel{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, is_direct, project_id, name, creator_id, created_at
		 FROM channels WHERE id = $1`, id,
	).Scan(&ch.ID, &ch.IsDirect, &ch.ProjectID, &ch.Name, &ch.CreatorID, &ch.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (r *channelRepo) GetOrCreateDirect(ctx context.Context, userA, userB, newID int64) (*models.Channel, bool, error) {
	ch := &models.Channel{}
	err := r.pool.QueryRow(ctx,
		`SELECT c.id, c.is_direct, c.project_id, c.name, c.creator_id, c.created_at
		 FROM channels c
		 WHERE c.is_direct
		   AND EXISTS (SELECT 1 FROM channel_members WHERE channel_id = c.id AND user_id = $1)
		   AND EXISTS (SELECT 1 FROM channel_members WHERE channel_id = c.id AND user_id = $2)`,
		userA, userB,
	).Scan(&ch.ID, &ch.IsDirect, &ch.ProjectID, &ch.Name, &ch.CreatorID, &ch.CreatedAt)
	if err == nil {
		return ch, false, nil
	}
	if err != pgx.ErrNoRows {
		return nil, false, err
	}

	created := &models.Channel{
		ID:        newID,
		IsDirect:  true,
		CreatorID: userA,
	}
	err = r.pool.QueryRow(ctx, `SELECT now()`).Scan(&created.CreatedAt)
	if err != nil {
		return nil, false, err
	}

	members := []models.ChannelMember{
		{ChannelID: newID, UserID: &userA},
		{ChannelID: newID, UserID: &userB},
	}
	if err := r.Create(ctx, created, members); err != nil {
		return nil, false, err
	}
	return created, true, nil
}

func (r *channelRepo) AddMember(ctx context.Context, m models.ChannelMember) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO channel_members (channel_id, user_id, project_member_id)
		 VALUES ($1, $2, $3)
		 ON CONFLICT DO NOTHING`,
		m.ChannelID, m.UserID, m.ProjectMemberID,
	)
	return err
}

func (r *channelRepo) RemoveMember(ctx context.Context, m models.ChannelMember) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM channel_members
		 WHERE channel_id = $1
		   AND (user_id = $2 OR project_member_id = $3)`,
		m.ChannelID, m.UserID, m.ProjectMemberID,
	)
	return err
}

func (r *channelRepo) IsMember(ctx context.Context, channelID, userID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM channel_members cm
		   LEFT JOIN project_members pm ON pm.id = cm.project_member_id
		   WHERE cm.channel_id = $1
		     AND (cm.user_id = $2 OR pm.user_id = $2)
		 )`,
		channelID, userID,
	).Scan(&exists)
	return exists, err
}

func (r *channelRepo) MemberUserIDs(ctx context.Context, channelID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT COALESCE(cm.user_id, pm.user_id)
		 FROM channel_members cm
		 LEFT JOIN project_members pm ON pm.id = cm.project_member_id
		 WHERE cm.channel_id = $1
		 ORDER BY 1`,
		channelID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *channelRepo) GetAccessibleChannelIDs(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT cm.channel_id
		 FROM channel_members cm
		 LEFT JOIN project_members pm ON pm.id = cm.project_member_id
		 WHERE cm.user_id = $1 OR pm.user_id = $1
		 ORDER BY cm.channel_id`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *channelRepo) ProjectMemberUserID(ctx context.Context, projectMemberID int64) (int64, error) {
	var userID int64
	err := r.pool.QueryRow(ctx,
		`SELECT user_id FROM project_members WHERE id = $1`, projectMemberID,
	).Scan(&userID)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return userID, nil
}

func (r *channelRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM channels WHERE id = $1`, id)
	return err
}
