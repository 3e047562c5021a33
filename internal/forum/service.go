package forum

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"campus-hub/internal/apperr"
	"campus-hub/internal/identity"
	"campus-hub/internal/retry"
	"campus-hub/internal/vote"
)

const (
	DefaultMaxDepth = 5
	maxTitleLength  = 300
	defaultPageSize = 20
	maxPageSize     = 100
)

// Voter is the part of the vote ledger the forum needs.
type Voter interface {
	Vote(ctx context.Context, target vote.Target, userID int64, dir vote.Direction) (vote.Tally, error)
	Tallies(ctx context.Context, kind vote.Kind, ids []int64) (map[int64]vote.Tally, error)
}

type PostService struct {
	repo  PostStore
	voter Voter
	retry retry.Policy
	log   *zap.Logger
}

func NewPostService(repo PostStore, voter Voter, policy retry.Policy, log *zap.Logger) *PostService {
	return &PostService{repo: repo, voter: voter, retry: policy, log: log}
}

func (s *PostService) Create(ctx context.Context, caller identity.Identity, req CreatePostRequest) (*Post, error) {
	const op = "post.create"
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return nil, apperr.Validation(op, "title", "is required")
	}
	if utf8.RuneCountInString(req.Title) > maxTitleLength {
		return nil, apperr.Validation(op, "title", "is too long")
	}
	if req.MediaKind == "" {
		req.MediaKind = MediaNone
	}
	if !req.MediaKind.Valid() {
		return nil, apperr.Validation(op, "media_kind", "must be image, video or none")
	}
	req.MediaURL = strings.TrimSpace(req.MediaURL)
	if req.MediaKind != MediaNone && req.MediaURL == "" {
		return nil, apperr.Validation(op, "media_url", "is required when media_kind is set")
	}
	if req.MediaKind == MediaNone {
		req.MediaURL = ""
	}

	p := &Post{
		AuthorID:   caller.UserID,
		AuthorName: caller.Username,
		Title:      req.Title,
		Content:    strings.TrimSpace(req.Content),
		MediaURL:   req.MediaURL,
		MediaKind:  req.MediaKind,
		Upvotes:    []int64{},
		Downvotes:  []int64{},
	}
	if err := s.retry.Do(ctx, op, func(ctx context.Context) error {
		return s.repo.Create(ctx, p)
	}); err != nil {
		return nil, err
	}
	s.log.Info("post_created", zap.Int64("post_id", p.ID), zap.Int64("author_id", p.AuthorID))
	return p, nil
}

func (s *PostService) Get(ctx context.Context, id int64) (*Post, error) {
	p, err := retry.Value(ctx, s.retry, "post.get", func(ctx context.Context) (*Post, error) {
		return s.repo.FindByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	posts := []Post{*p}
	if err := s.attachTallies(ctx, posts); err != nil {
		return nil, err
	}
	return &posts[0], nil
}

// List pages through posts newest first.
func (s *PostService) List(ctx context.Context, limit, offset int) ([]Post, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	posts, err := retry.Value(ctx, s.retry, "post.list", func(ctx context.Context) ([]Post, error) {
		return s.repo.List(ctx, limit, offset)
	})
	if err != nil {
		return nil, err
	}
	if err := s.attachTallies(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *PostService) Vote(ctx context.Context, postID, userID int64, dir vote.Direction) (vote.Tally, error) {
	return s.voter.Vote(ctx, vote.Target{Kind: vote.KindPost, ID: postID}, userID, dir)
}

func (s *PostService) attachTallies(ctx context.Context, posts []Post) error {
	ids := make([]int64, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
	}
	tallies, err := s.voter.Tallies(ctx, vote.KindPost, ids)
	if err != nil {
		return err
	}
	for i := range posts {
		t := tallies[posts[i].ID]
		posts[i].Upvotes, posts[i].Downvotes, posts[i].Score = nonNil(t.Upvotes), nonNil(t.Downvotes), t.Score
	}
	return nil
}

// CommentService is the Comment Tree Engine.
type CommentService struct {
	comments CommentStore
	posts    PostStore
	voter    Voter
	retry    retry.Policy
	maxDepth int
	log      *zap.Logger
}

func NewCommentService(comments CommentStore, posts PostStore, voter Voter, policy retry.Policy,
	maxDepth int, log *zap.Logger) *CommentService {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &CommentService{
		comments: comments,
		posts:    posts,
		voter:    voter,
		retry:    policy,
		maxDepth: maxDepth,
		log:      log,
	}
}

// Create adds a comment to a post, optionally as a reply. Replies deeper
// than the configured maximum are rejected.
func (s *CommentService) Create(ctx context.Context, caller identity.Identity, req CreateCommentRequest) (*Comment, error) {
	const op = "comment.create"
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, apperr.Validation(op, "content", "is required")
	}
	if req.PostID <= 0 {
		return nil, apperr.Validation(op, "post_id", "is required")
	}

	if _, err := retry.Value(ctx, s.retry, op, func(ctx context.Context) (*Post, error) {
		return s.posts.FindByID(ctx, req.PostID)
	}); err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.NotFound(op, "post", req.PostID)
		}
		return nil, err
	}

	depth := 0
	if req.ParentID != nil {
		parent, err := retry.Value(ctx, s.retry, op, func(ctx context.Context) (*Comment, error) {
			return s.comments.FindByID(ctx, *req.ParentID)
		})
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.NotFound(op, "parent_comment", *req.ParentID)
		}
		if err != nil {
			return nil, err
		}
		if parent.PostID != req.PostID {
			return nil, apperr.Validation(op, "parent_comment_id", "parent comment belongs to a different post")
		}
		depth = parent.Depth + 1
		if depth > s.maxDepth {
			return nil, apperr.DepthExceeded(op, depth, s.maxDepth)
		}
	}

	c := &Comment{
		PostID:     req.PostID,
		AuthorID:   caller.UserID,
		AuthorName: caller.Username,
		Content:    content,
		ParentID:   req.ParentID,
		Depth:      depth,
		Replies:    []int64{},
		Upvotes:    []int64{},
		Downvotes:  []int64{},
	}
	if err := s.retry.Do(ctx, op, func(ctx context.Context) error {
		return s.comments.Create(ctx, c)
	}); err != nil {
		return nil, err
	}
	s.log.Info("comment_created",
		zap.Int64("comment_id", c.ID),
		zap.Int64("post_id", c.PostID),
		zap.Int("depth", c.Depth),
	)
	return c, nil
}

// ListForPost returns the post's comments as a forest. The tree is rebuilt
// on every call.
func (s *CommentService) ListForPost(ctx context.Context, postID int64) ([]*CommentNode, error) {
	const op = "comment.list"
	if _, err := retry.Value(ctx, s.retry, op, func(ctx context.Context) (*Post, error) {
		return s.posts.FindByID(ctx, postID)
	}); err != nil {
		return nil, err
	}

	comments, err := retry.Value(ctx, s.retry, op, func(ctx context.Context) ([]Comment, error) {
		return s.comments.ListByPost(ctx, postID)
	})
	if err != nil {
		return nil, err
	}

	ids := make([]int64, len(comments))
	for i := range comments {
		ids[i] = comments[i].ID
	}
	tallies, err := s.voter.Tallies(ctx, vote.KindComment, ids)
	if err != nil {
		return nil, err
	}
	for i := range comments {
		t := tallies[comments[i].ID]
		comments[i].Upvotes, comments[i].Downvotes, comments[i].Score = nonNil(t.Upvotes), nonNil(t.Downvotes), t.Score
	}
	return BuildTree(comments), nil
}

func (s *CommentService) Vote(ctx context.Context, commentID, userID int64, dir vote.Direction) (vote.Tally, error) {
	return s.voter.Vote(ctx, vote.Target{Kind: vote.KindComment, ID: commentID}, userID, dir)
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
