package chat

import (
	"context"
	"database/sql"
	"errors"

	"campus-hub/internal/apperr"
)

// MessageStore is the durable message log.
type MessageStore interface {
	Create(ctx context.Context, m *Message) error
	FindByID(ctx context.Context, id int64) (*Message, error)
	// ListByRoom returns the newest limit visible messages with id < beforeID
	// (no bound when beforeID is 0), oldest first.
	ListByRoom(ctx context.Context, roomID int64, limit int, beforeID int64) ([]Message, error)
	// SoftDelete flags the message. changed is false when it already was.
	SoftDelete(ctx context.Context, id, deletedBy int64) (m *Message, changed bool, err error)
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, m *Message) error {
	query := `INSERT INTO messages (room_id, sender_id, content, attachment_url, attachment_kind)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at, updated_at`
	return r.db.QueryRowContext(ctx, query, m.RoomID, m.SenderID, m.Content, m.AttachmentURL, string(m.AttachmentKind)).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
}

const selectMessage = `
		SELECT m.id, m.room_id, m.sender_id, u.username, m.content, m.attachment_url, m.attachment_kind,
			m.is_deleted, m.deleted_by, m.created_at, m.updated_at
		FROM messages m
		JOIN users u ON m.sender_id = u.id`

func scanMessage(row interface{ Scan(...any) error }) (*Message, error) {
	m := &Message{}
	var deletedBy sql.NullInt64
	err := row.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.SenderName, &m.Content, &m.AttachmentURL,
		&m.AttachmentKind, &m.IsDeleted, &deletedBy, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if deletedBy.Valid {
		m.DeletedBy = &deletedBy.Int64
	}
	return m, nil
}

func (r *Repository) FindByID(ctx context.Context, id int64) (*Message, error) {
	m, err := scanMessage(r.db.QueryRowContext(ctx, selectMessage+" WHERE m.id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("message.get", "message", id)
	}
	return m, err
}

// listByRoomQuery pages by id. The cursor is cast to bigint so ids beyond
// the int4 range bind correctly.
const listByRoomQuery = `SELECT * FROM (` + selectMessage + `
		WHERE m.room_id = $1 AND NOT m.is_deleted AND ($2::bigint = 0 OR m.id < $2::bigint)
		ORDER BY m.id DESC
		LIMIT $3
	) recent ORDER BY id ASC`

func (r *Repository) ListByRoom(ctx context.Context, roomID int64, limit int, beforeID int64) ([]Message, error) {
	rows, err := r.db.QueryContext(ctx, listByRoomQuery, roomID, beforeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *m)
	}
	return messages, rows.Err()
}

func (r *Repository) SoftDelete(ctx context.Context, id, deletedBy int64) (*Message, bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE messages SET is_deleted = TRUE, deleted_by = $2, updated_at = NOW()
		WHERE id = $1 AND NOT is_deleted`, id, deletedBy)
	if err != nil {
		return nil, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	m, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return m, n > 0, nil
}
