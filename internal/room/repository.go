package room

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"campus-hub/internal/apperr"
)

var ErrDuplicateName = errors.New("room name already taken")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts the room and makes its admin the first member.
func (r *Repository) Create(ctx context.Context, rm *Room) (*Room, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	query := `INSERT INTO rooms (name, description, category, admin_id)
		VALUES ($1, $2, $3, $4) RETURNING id, created_at, updated_at`
	err = tx.QueryRowContext(ctx, query, rm.Name, rm.Description, string(rm.Category), rm.AdminID).
		Scan(&rm.ID, &rm.CreatedAt, &rm.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateName
		}
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO room_members (room_id, user_id) VALUES ($1, $2)", rm.ID, rm.AdminID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	rm.MemberIDs = []int64{rm.AdminID}
	return rm, nil
}

func (r *Repository) FindByID(ctx context.Context, id int64) (*Room, error) {
	rm := &Room{}
	var adminID sql.NullInt64
	query := "SELECT id, name, description, category, admin_id, created_at, updated_at FROM rooms WHERE id = $1"
	err := r.db.QueryRowContext(ctx, query, id).Scan(&rm.ID, &rm.Name, &rm.Description, &rm.Category,
		&adminID, &rm.CreatedAt, &rm.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("room.get", "room", id)
	}
	if err != nil {
		return nil, err
	}
	rm.AdminID = adminID.Int64

	rm.MemberIDs, err = r.Members(ctx, id)
	return rm, err
}

func (r *Repository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM rooms WHERE name = $1)", name).Scan(&exists)
	return exists, err
}

// List returns every room with its member ids.
func (r *Repository) List(ctx context.Context) ([]Room, error) {
	query := `SELECT id, name, description, category, COALESCE(admin_id, 0), created_at, updated_at
		FROM rooms ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []Room
	index := make(map[int64]int)
	for rows.Next() {
		rm := Room{MemberIDs: []int64{}}
		if err := rows.Scan(&rm.ID, &rm.Name, &rm.Description, &rm.Category, &rm.AdminID,
			&rm.CreatedAt, &rm.UpdatedAt); err != nil {
			return nil, err
		}
		index[rm.ID] = len(rooms)
		rooms = append(rooms, rm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	members, err := r.db.QueryContext(ctx, "SELECT room_id, user_id FROM room_members ORDER BY joined_at")
	if err != nil {
		return nil, err
	}
	defer members.Close()
	for members.Next() {
		var roomID, userID int64
		if err := members.Scan(&roomID, &userID); err != nil {
			return nil, err
		}
		if i, ok := index[roomID]; ok {
			rooms[i].MemberIDs = append(rooms[i].MemberIDs, userID)
		}
	}
	return rooms, members.Err()
}

// AddMember is idempotent; added reports whether the row is new.
func (r *Repository) AddMember(ctx context.Context, roomID, userID int64) (added bool, err error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO room_members (room_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING", roomID, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *Repository) IsMember(ctx context.Context, roomID, userID int64) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM room_members WHERE room_id = $1 AND user_id = $2)", roomID, userID).Scan(&ok)
	return ok, err
}

func (r *Repository) Exists(ctx context.Context, roomID int64) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM rooms WHERE id = $1)", roomID).Scan(&ok)
	return ok, err
}

func (r *Repository) Members(ctx context.Context, roomID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT user_id FROM room_members WHERE room_id = $1 ORDER BY joined_at", roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
