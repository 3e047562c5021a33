package forum

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"campus-hub/internal/httpx"
	"campus-hub/internal/identity"
	"campus-hub/internal/vote"
)

type Handler struct {
	posts    *PostService
	comments *CommentService
	karma    *KarmaService
	log      *zap.Logger
}

func NewHandler(posts *PostService, comments *CommentService, karma *KarmaService, log *zap.Logger) *Handler {
	return &Handler{posts: posts, comments: comments, karma: karma, log: log}
}

// POST /api/posts
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	caller, _ := identity.FromContext(r.Context())
	var req CreatePostRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	p, err := h.posts.Create(r.Context(), caller, req)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

// GET /api/posts?limit=&offset=
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	limit, err := httpx.IntQuery(r, "limit", 0)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	offset, err := httpx.IntQuery(r, "offset", 0)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	posts, err := h.posts.List(r.Context(), limit, offset)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, posts)
}

// GET /api/posts/{id}
func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	p, err := h.posts.Get(r.Context(), id)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

// POST /api/comments
func (h *Handler) CreateComment(w http.ResponseWriter, r *http.Request) {
	caller, _ := identity.FromContext(r.Context())
	var req CreateCommentRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	c, err := h.comments.Create(r.Context(), caller, req)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

// GET /api/posts/{id}/comments and /api/comments/post/{id}
func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	postID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	tree, err := h.comments.ListForPost(r.Context(), postID)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tree)
}

// VotePost serves POST /api/posts/{id}/vote with a {"direction"} body, or
// the /upvote and /downvote shortcuts when fixed is set.
func (h *Handler) VotePost(fixed vote.Direction) http.HandlerFunc {
	return h.voteHandler(fixed, h.posts.Vote)
}

func (h *Handler) VoteComment(fixed vote.Direction) http.HandlerFunc {
	return h.voteHandler(fixed, h.comments.Vote)
}

type voteFunc func(ctx context.Context, targetID, userID int64, dir vote.Direction) (vote.Tally, error)

func (h *Handler) voteHandler(fixed vote.Direction, cast voteFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, _ := identity.FromContext(r.Context())
		id, err := httpx.IDParam(r, "id")
		if err != nil {
			httpx.Error(w, r, h.log, err)
			return
		}

		dir := fixed
		if dir == "" {
			var req VoteRequest
			if err := httpx.Decode(r, &req); err != nil {
				httpx.Error(w, r, h.log, err)
				return
			}
			if dir, err = vote.ParseDirection(req.Direction); err != nil {
				httpx.Error(w, r, h.log, err)
				return
			}
		}

		tally, err := cast(r.Context(), id, caller.UserID, dir)
		if err != nil {
			httpx.Error(w, r, h.log, err)
			return
		}
		httpx.JSON(w, http.StatusOK, tally)
	}
}

// GET /api/profile/karma
func (h *Handler) Karma(w http.ResponseWriter, r *http.Request) {
	caller, _ := identity.FromContext(r.Context())
	k, err := h.karma.ForUser(r.Context(), caller.UserID)
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, k)
}
