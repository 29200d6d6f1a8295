package database

import (
	"context"
	"time"

	"github.com/Haabeel/lark-sync/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type messageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepo{pool: pool}
}

func (r *messageRepo) Create(ctx context.Context, msg *models.Message, attachments []models.Attachment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO messages (id, channel_id, sender_id, member_id, content, created_at, edited_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		msg.ID, msg.ChannelID, msg.SenderID, msg.MemberID, msg.Content, msg.CreatedAt, msg.EditedAt,
	)
	if err != nil {
		return err
	}

	for _, a := range attachments {
		_, err = tx.Exec(ctx,
			`INSERT INTO attachments (id, message_id, url, type, file_name, file_size)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			a.ID, msg.ID, a.URL, a.Type, a.FileName, a.FileSize,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *messageRepo) GetByID(ctx context.Context, id int64) (*models.MessageWithSender, error) {
	m := &models.MessageWithSender{}
	err := r.pool.QueryRow(ctx,
		`SELECT m.id, m.channel_id, m.sender_id, m.member_id, m.content, m.created_at, m.edited_at,
		        u.name, u.image
		 FROM messages m
		 INNER JOIN users u ON u.id = m.sender_id
		 WHERE m.id = $1`, id,
	).Scan(
		&m.ID, &m.ChannelID, &m.SenderID, &m.MemberID, &m.Content, &m.CreatedAt, &m.EditedAt,
		&m.SenderName, &m.SenderImage,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := r.loadAttachments(ctx, []*models.MessageWithSender{m}); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *messageRepo) ListByChannel(ctx context.Context, channelID int64, offset, limit int) (*MessagePage, error) {
	// Fetch one extra row to decide has_more without a second count query.
	rows, err := r.pool.Query(ctx,
		`SELECT m.id, m.channel_id, m.sender_id, m.member_id, m.content, m.created_at, m.edited_at,
		        u.name, u.image
		 FROM messages m
		 INNER JOIN users u ON u.id = m.sender_id
		 WHERE m.channel_id = $1
		 ORDER BY m.created_at DESC, m.id DESC
		 OFFSET $2 LIMIT $3`,
		channelID, offset, limit+1,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.MessageWithSender
	for rows.Next() {
		var m models.MessageWithSender
		if err := rows.Scan(
			&m.ID, &m.ChannelID, &m.SenderID, &m.MemberID, &m.Content, &m.CreatedAt, &m.EditedAt,
			&m.SenderName, &m.SenderImage,
		); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[:limit]
	}

	ptrs := make([]*models.MessageWithSender, len(messages))
	for i := range messages {
		ptrs[i] = &messages[i]
	}
	if err := r.loadAttachments(ctx, ptrs); err != nil {
		return nil, err
	}

	return &MessagePage{
		Messages:   messages,
		HasMore:    hasMore,
		NextOffset: offset + len(messages),
	}, nil
}

func (r *messageRepo) Update(ctx context.Context, id int64, content string, editedAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE messages SET content = $2, edited_at = $3 WHERE id = $1`,
		id, content, editedAt,
	)
	return err
}

func (r *messageRepo) Delete(ctx context.Context, id int64) (*models.Message, error) {
	m := &models.Message{}
	err := r.pool.QueryRow(ctx,
		`DELETE FROM messages WHERE id = $1
		 RETURNING id, channel_id, sender_id, member_id, content, created_at, edited_at`,
		id,
	).Scan(&m.ID, &m.ChannelID, &m.SenderID, &m.MemberID, &m.Content, &m.CreatedAt, &m.EditedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// loadAttachments hydrates attachments for the given messages in one query.
func (r *messageRepo) loadAttachments(ctx context.Context, messages []*models.MessageWithSender) error {
	if len(messages) == 0 {
		return nil
	}

	byID := make(map[int64]*models.MessageWithSender, len(messages))
	ids := make([]int64, 0, len(messages))
	for _, m := range messages {
		m.Attachments = []models.Attachment{}
		byID[m.ID] = m
		ids = append(ids, m.ID)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, message_id, url, type, file_name, file_size
		 FROM attachments
		 WHERE message_id = ANY($1)
		 ORDER BY id`,
		ids,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var a models.Attachment
		if err := rows.Scan(&a.ID, &a.MessageID, &a.URL, &a.Type, &a.FileName, &a.FileSize); err != nil {
			return err
		}
		if m, ok := byID[a.MessageID]; ok {
			m.Attachments = append(m.Attachments, a)
		}
	}
	return rows.Err()
}
