package user

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"campus-hub/internal/apperr"
)

// ErrDuplicate is returned when the username or email is already taken.
var ErrDuplicate = errors.New("user already exists")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const userColumns = "id, username, email, password, display_name, is_admin, is_approved, created_at, updated_at"

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	u := &User{}
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Password, &u.DisplayName,
		&u.IsAdmin, &u.IsApproved, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *Repository) CreateUser(ctx context.Context, user *User) (*User, error) {
	query := `INSERT INTO users (username, email, password, display_name, is_admin, is_approved)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query, user.Username, user.Email, user.Password,
		user.DisplayName, user.IsAdmin, user.IsApproved).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return user, nil
}

func (r *Repository) GetUserByID(ctx context.Context, id int64) (*User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("user.get", "user", id)
	}
	return u, err
}

// GetUserByLogin finds a user by username or email.
func (r *Repository) GetUserByLogin(ctx context.Context, login string) (*User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE username = $1 OR email = LOWER($1)"
	u, err := scanUser(r.db.QueryRowContext(ctx, query, login))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &apperr.Error{Kind: apperr.KindNotFound, Op: "user.get", Message: "user not found"}
	}
	return u, err
}

func (r *Repository) HasAdmin(ctx context.Context) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM users WHERE is_admin)").Scan(&exists)
	return exists, err
}

func (r *Repository) FirstAdmin(ctx context.Context) (*User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE is_admin ORDER BY id LIMIT 1"
	u, err := scanUser(r.db.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &apperr.Error{Kind: apperr.KindNotFound, Op: "user.first_admin", Message: "no admin user"}
	}
	return u, err
}

func (r *Repository) Approve(ctx context.Context, id int64) (*User, error) {
	query := "UPDATE users SET is_approved = TRUE, updated_at = NOW() WHERE id = $1 RETURNING " + userColumns
	u, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("user.approve", "user", id)
	}
	return u, err
}

func (r *Repository) ListPending(ctx context.Context) ([]User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE NOT is_approved ORDER BY created_at DESC"
	return r.list(ctx, query)
}

func (r *Repository) SearchUsers(ctx context.Context, query string) ([]User, error) {
	// We limit to 10 to keep it fast
	q := "SELECT " + userColumns + " FROM users WHERE username ILIKE $1 ORDER BY username LIMIT 10"
	return r.list(ctx, q, "%"+query+"%")
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}
