package forum

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"campus-hub/internal/apperr"
	"campus-hub/internal/identity"
	"campus-hub/internal/retry"
	"campus-hub/internal/vote"
)

var (
	ann = identity.Identity{UserID: 1, Username: "ann"}
	ben = identity.Identity{UserID: 2, Username: "ben"}
)

type forumFixture struct {
	posts    *PostService
	comments *CommentService
	karma    *KarmaService
	postRepo *memPosts
}

func newFixture(maxDepth int) *forumFixture {
	c := &clock{now: time.Unix(1_700_000_000, 0)}
	postRepo := &memPosts{clock: c}
	commentRepo := &memComments{clock: c}
	votes := &memVotes{posts: postRepo, comments: commentRepo, states: make(map[vote.Target]map[int64]vote.State)}

	policy := retry.New(time.Millisecond)
	ledger := vote.NewLedger(votes, policy, prometheus.NewRegistry(), zap.NewNop())
	return &forumFixture{
		posts:    NewPostService(postRepo, ledger, policy, zap.NewNop()),
		comments: NewCommentService(commentRepo, postRepo, ledger, policy, maxDepth, zap.NewNop()),
		karma:    NewKarmaService(postRepo, commentRepo, ledger, policy),
		postRepo: postRepo,
	}
}

func (f *forumFixture) post(t *testing.T) *Post {
	t.Helper()
	p, err := f.posts.Create(context.Background(), ann, CreatePostRequest{Title: "Midterm study group?"})
	require.NoError(t, err)
	return p
}

func TestCreatePostValidation(t *testing.T) {
	f := newFixture(5)
	ctx := context.Background()

	cases := []struct {
		req   CreatePostRequest
		field string
	}{
		{CreatePostRequest{Title: "  "}, "title"},
		{CreatePostRequest{Title: strings.Repeat("x", 301)}, "title"},
		{CreatePostRequest{Title: "t", MediaKind: "gif"}, "media_kind"},
		{CreatePostRequest{Title: "t", MediaKind: MediaVideo}, "media_url"},
	}
	for _, tc := range cases {
		_, err := f.posts.Create(ctx, ann, tc.req)
		require.ErrorIs(t, err, apperr.ErrValidation)
		assert.Equal(t, tc.field, apperr.ToBody(err).Field)
	}

	p, err := f.posts.Create(ctx, ann, CreatePostRequest{Title: " Lab photos ", MediaKind: MediaImage, MediaURL: "https://cdn/x.png"})
	require.NoError(t, err)
	assert.Equal(t, "Lab photos", p.Title)
	assert.Equal(t, MediaImage, p.MediaKind)
	assert.Equal(t, 0, p.Score)
}

func TestCommentDepthRule(t *testing.T) {
	f := newFixture(3)
	ctx := context.Background()
	p := f.post(t)

	root, err := f.comments.Create(ctx, ann, CreateCommentRequest{PostID: p.ID, Content: "root"})
	require.NoError(t, err)
	assert.Equal(t, 0, root.Depth)
	assert.Nil(t, root.ParentID)

	parent := root
	for depth := 1; depth <= 3; depth++ {
		c, err := f.comments.Create(ctx, ben, CreateCommentRequest{PostID: p.ID, Content: "re", ParentID: &parent.ID})
		require.NoError(t, err)
		assert.Equal(t, parent.Depth+1, c.Depth)
		parent = c
	}

	_, err = f.comments.Create(ctx, ben, CreateCommentRequest{PostID: p.ID, Content: "too deep", ParentID: &parent.ID})
	require.ErrorIs(t, err, apperr.ErrDepthExceeded)
	assert.Equal(t, http.StatusUnprocessableEntity, apperr.HTTPStatus(err))

	tree, err := f.comments.ListForPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, CountNodes(tree))
}

func TestDefaultMaxDepth(t *testing.T) {
	f := newFixture(0)
	assert.Equal(t, DefaultMaxDepth, f.comments.maxDepth)
}

func TestCreateCommentErrors(t *testing.T) {
	f := newFixture(5)
	ctx := context.Background()
	p1 := f.post(t)
	p2 := f.post(t)

	_, err := f.comments.Create(ctx, ann, CreateCommentRequest{PostID: p1.ID, Content: "  "})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.comments.Create(ctx, ann, CreateCommentRequest{PostID: 404, Content: "hi"})
	require.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, "post", apperr.ToBody(err).Field)

	_, err = f.comments.Create(ctx, ann, CreateCommentRequest{PostID: p1.ID, Content: "hi", ParentID: ptr(77)})
	require.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, "parent_comment", apperr.ToBody(err).Field)

	other, err := f.comments.Create(ctx, ann, CreateCommentRequest{PostID: p2.ID, Content: "elsewhere"})
	require.NoError(t, err)
	_, err = f.comments.Create(ctx, ann, CreateCommentRequest{PostID: p1.ID, Content: "hi", ParentID: &other.ID})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestListForPostReflectsVotes(t *testing.T) {
	f := newFixture(5)
	ctx := context.Background()
	p := f.post(t)

	root, err := f.comments.Create(ctx, ann, CreateCommentRequest{PostID: p.ID, Content: "root"})
	require.NoError(t, err)
	reply, err := f.comments.Create(ctx, ben, CreateCommentRequest{PostID: p.ID, Content: "reply", ParentID: &root.ID})
	require.NoError(t, err)

	_, err = f.comments.Vote(ctx, reply.ID, ann.UserID, vote.Up)
	require.NoError(t, err)
	tally, err := f.comments.Vote(ctx, reply.ID, ben.UserID, vote.Up)
	require.NoError(t, err)
	assert.Equal(t, 2, tally.Score)

	_, err = f.comments.Vote(ctx, 404, ann.UserID, vote.Up)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	tree, err := f.comments.ListForPost(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Equal(t, 0, tree[0].Score)
	assert.Equal(t, []int64{reply.ID}, tree[0].Replies)
	node := tree[0].Children[0]
	assert.Equal(t, 2, node.Score)
	assert.Equal(t, []int64{1, 2}, node.Upvotes)

	_, err = f.comments.ListForPost(ctx, 404)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestPostVotesShowInListing(t *testing.T) {
	f := newFixture(5)
	ctx := context.Background()
	p := f.post(t)
	f.post(t)

	_, err := f.posts.Vote(ctx, p.ID, ben.UserID, vote.Down)
	require.NoError(t, err)

	posts, err := f.posts.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, int64(2), posts[0].ID, "newest first")
	assert.Equal(t, -1, posts[1].Score)
	assert.Equal(t, []int64{ben.UserID}, posts[1].Downvotes)
	assert.NotNil(t, posts[0].Upvotes)

	got, err := f.posts.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, -1, got.Score)
}

func newForumRouter(f *forumFixture, caller identity.Identity) http.Handler {
	h := NewHandler(f.posts, f.comments, f.karma, zap.NewNop())
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(identity.WithIdentity(req.Context(), caller)))
		})
	})
	r.Post("/api/posts", h.CreatePost)
	r.Post("/api/posts/{id}/vote", h.VotePost(""))
	r.Post("/api/posts/{id}/upvote", h.VotePost(vote.Up))
	r.Post("/api/comments", h.CreateComment)
	r.Get("/api/posts/{id}/comments", h.ListComments)
	r.Get("/api/profile/karma", h.Karma)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestHandlerPostScoreScenario(t *testing.T) {
	f := newFixture(5)
	x := newForumRouter(f, identity.Identity{UserID: 10, Username: "x"})
	y := newForumRouter(f, identity.Identity{UserID: 20, Username: "y"})

	rec := do(x, http.MethodPost, "/api/posts", `{"title":"Best study spot?"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(x, http.MethodPost, "/api/posts/1/upvote", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"score":1`)

	rec = do(y, http.MethodPost, "/api/posts/1/vote", `{"direction":"down"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"score":0`)

	rec = do(x, http.MethodPost, "/api/posts/1/vote", `{"direction":"up"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"score":-1`)

	rec = do(x, http.MethodPost, "/api/posts/1/vote", `{"direction":"sideways"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(x, http.MethodPost, "/api/posts/9/upvote", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerComments(t *testing.T) {
	f := newFixture(1)
	r := newForumRouter(f, ann)
	f.post(t)

	rec := do(r, http.MethodPost, "/api/comments", `{"post_id":1,"content":"first"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = do(r, http.MethodPost, "/api/comments", `{"post_id":1,"content":"reply","parent_comment_id":1}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = do(r, http.MethodPost, "/api/comments", `{"post_id":1,"content":"deeper","parent_comment_id":2}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "depth_exceeded")

	rec = do(r, http.MethodGet, "/api/posts/1/comments", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"children":[{"id":2`)
}

func TestKarmaSumsPostAndCommentScores(t *testing.T) {
	f := newFixture(5)
	ctx := context.Background()
	p := f.post(t)
	f.post(t)

	c, err := f.comments.Create(ctx, ann, CreateCommentRequest{PostID: p.ID, Content: "room 204 is free"})
	require.NoError(t, err)
	other, err := f.comments.Create(ctx, ben, CreateCommentRequest{PostID: p.ID, Content: "thanks"})
	require.NoError(t, err)

	_, err = f.posts.Vote(ctx, p.ID, ben.UserID, vote.Up)
	require.NoError(t, err)
	_, err = f.posts.Vote(ctx, p.ID, 3, vote.Up)
	require.NoError(t, err)
	_, err = f.comments.Vote(ctx, c.ID, ben.UserID, vote.Down)
	require.NoError(t, err)
	_, err = f.comments.Vote(ctx, other.ID, ann.UserID, vote.Up)
	require.NoError(t, err)

	k, err := f.karma.ForUser(ctx, ann.UserID)
	require.NoError(t, err)
	assert.Equal(t, Karma{Total: 1, Posts: 2, Comments: -1}, k)

	k, err = f.karma.ForUser(ctx, 99)
	require.NoError(t, err)
	assert.Equal(t, Karma{}, k)

	rec := do(newForumRouter(f, ben), http.MethodGet, "/api/profile/karma", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total_karma":1,"post_karma":0,"comment_karma":1}`, rec.Body.String())
}
