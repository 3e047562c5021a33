package forum

import "time"

type MediaKind string

const (
	MediaNone  MediaKind = "none"
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

func (k MediaKind) Valid() bool {
	return k == MediaNone || k == MediaImage || k == MediaVideo
}

type Post struct {
	ID           int64     `json:"id"`
	AuthorID     int64     `json:"author_id"`
	AuthorName   string    `json:"author"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	MediaURL     string    `json:"media_url,omitempty"`
	MediaKind    MediaKind `json:"media_kind"`
	Upvotes      []int64   `json:"upvotes"`
	Downvotes    []int64   `json:"downvotes"`
	Score        int       `json:"score"`
	CommentCount int       `json:"comment_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type CreatePostRequest struct {
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	MediaURL  string    `json:"media_url"`
	MediaKind MediaKind `json:"media_kind"`
}

// Comment is one node of a post's discussion. ParentID is nil for top-level
// comments; Depth is the parent's depth plus one.
type Comment struct {
	ID         int64     `json:"id"`
	PostID     int64     `json:"post_id"`
	AuthorID   int64     `json:"author_id"`
	AuthorName string    `json:"author"`
	Content    string    `json:"content"`
	ParentID   *int64    `json:"parent_comment_id"`
	Depth      int       `json:"depth"`
	Replies    []int64   `json:"replies"`
	Upvotes    []int64   `json:"upvotes"`
	Downvotes  []int64   `json:"downvotes"`
	Score      int       `json:"score"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type CreateCommentRequest struct {
	PostID   int64  `json:"post_id"`
	Content  string `json:"content"`
	ParentID *int64 `json:"parent_comment_id"`
}

type CommentNode struct {
	Comment
	Children []*CommentNode `json:"children"`
}

type VoteRequest struct {
	Direction string `json:"direction"`
}

// Karma is a user's summed score over everything they authored.
type Karma struct {
	Total    int `json:"total_karma"`
	Posts    int `json:"post_karma"`
	Comments int `json:"comment_karma"`
}
