package forum

import (
	"context"
	"database/sql"
	"errors"

	"campus-hub/internal/apperr"
)

type PostStore interface {
	Create(ctx context.Context, p *Post) error
	FindByID(ctx context.Context, id int64) (*Post, error)
	List(ctx context.Context, limit, offset int) ([]Post, error)
	IDsByAuthor(ctx context.Context, authorID int64) ([]int64, error)
}

type CommentStore interface {
	Create(ctx context.Context, c *Comment) error
	FindByID(ctx context.Context, id int64) (*Comment, error)
	ListByPost(ctx context.Context, postID int64) ([]Comment, error)
	IDsByAuthor(ctx context.Context, authorID int64) ([]int64, error)
}

type PostRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) *PostRepository {
	return &PostRepository{db: db}
}

func (r *PostRepository) Create(ctx context.Context, p *Post) error {
	query := `INSERT INTO posts (author_id, title, content, media_url, media_kind)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, score, created_at, updated_at`
	return r.db.QueryRowContext(ctx, query, p.AuthorID, p.Title, p.Content, p.MediaURL, string(p.MediaKind)).
		Scan(&p.ID, &p.Score, &p.CreatedAt, &p.UpdatedAt)
}

const selectPost = `
		SELECT p.id, p.author_id, u.username, p.title, p.content, p.media_url, p.media_kind, p.score,
			(SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id),
			p.created_at, p.updated_at
		FROM posts p
		JOIN users u ON p.author_id = u.id`

func scanPost(row interface{ Scan(...any) error }) (*Post, error) {
	p := &Post{}
	err := row.Scan(&p.ID, &p.AuthorID, &p.AuthorName, &p.Title, &p.Content, &p.MediaURL, &p.MediaKind,
		&p.Score, &p.CommentCount, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *PostRepository) FindByID(ctx context.Context, id int64) (*Post, error) {
	p, err := scanPost(r.db.QueryRowContext(ctx, selectPost+" WHERE p.id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("post.get", "post", id)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// List returns posts newest first.
func (r *PostRepository) List(ctx context.Context, limit, offset int) ([]Post, error) {
	rows, err := r.db.QueryContext(ctx, selectPost+" ORDER BY p.created_at DESC, p.id DESC LIMIT $1 OFFSET $2", limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}

type CommentRepository struct {
	db *sql.DB
}

func NewCommentRepository(db *sql.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) Create(ctx context.Context, c *Comment) error {
	query := `INSERT INTO comments (post_id, author_id, content, parent_id, depth)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, score, created_at, updated_at`
	var parent sql.NullInt64
	if c.ParentID != nil {
		parent = sql.NullInt64{Int64: *c.ParentID, Valid: true}
	}
	return r.db.QueryRowContext(ctx, query, c.PostID, c.AuthorID, c.Content, parent, c.Depth).
		Scan(&c.ID, &c.Score, &c.CreatedAt, &c.UpdatedAt)
}

const selectComment = `
		SELECT c.id, c.post_id, c.author_id, u.username, c.content, c.parent_id, c.depth, c.score,
			c.created_at, c.updated_at
		FROM comments c
		JOIN users u ON c.author_id = u.id`

func scanComment(row interface{ Scan(...any) error }) (*Comment, error) {
	c := &Comment{}
	var parent sql.NullInt64
	err := row.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.AuthorName, &c.Content, &parent, &c.Depth, &c.Score,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if parent.Valid {
		c.ParentID = &parent.Int64
	}
	return c, nil
}

func (r *CommentRepository) FindByID(ctx context.Context, id int64) (*Comment, error) {
	c, err := scanComment(r.db.QueryRowContext(ctx, selectComment+" WHERE c.id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("comment.get", "comment", id)
	}
	return c, err
}

// ListByPost returns every comment of a post in creation order.
func (r *CommentRepository) ListByPost(ctx context.Context, postID int64) ([]Comment, error) {
	rows, err := r.db.QueryContext(ctx, selectComment+" WHERE c.post_id = $1 ORDER BY c.created_at, c.id", postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := []Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, *c)
	}
	return comments, rows.Err()
}

func (r *PostRepository) IDsByAuthor(ctx context.Context, authorID int64) ([]int64, error) {
	return queryIDs(ctx, r.db, `SELECT id FROM posts WHERE author_id = $1 ORDER BY id`, authorID)
}

func (r *CommentRepository) IDsByAuthor(ctx context.Context, authorID int64) ([]int64, error) {
	return queryIDs(ctx, r.db, `SELECT id FROM comments WHERE author_id = $1 ORDER BY id`, authorID)
}

func queryIDs(ctx context.Context, db *sql.DB, query string, args ...any) ([]int64, error) {
	rows, err := db.QueryContext(ctx, query, args...)
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
