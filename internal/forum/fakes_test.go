package forum

import (
	"context"
	"sort"
	"sync"
	"time"

	"campus-hub/internal/apperr"
	"campus-hub/internal/vote"
)

// clock hands out strictly increasing timestamps so creation order is
// unambiguous.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) tick() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type memPosts struct {
	mu    sync.Mutex
	clock *clock
	posts []*Post
}

func (m *memPosts) Create(_ context.Context, p *Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = int64(len(m.posts) + 1)
	p.CreatedAt = m.clock.tick()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.posts = append(m.posts, &cp)
	return nil
}

func (m *memPosts) FindByID(_ context.Context, id int64) (*Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id <= 0 || int(id) > len(m.posts) {
		return nil, apperr.NotFound("post.get", "post", id)
	}
	cp := *m.posts[id-1]
	return &cp, nil
}

func (m *memPosts) List(_ context.Context, limit, offset int) ([]Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Post{}
	for i := len(m.posts) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, *m.posts[i])
	}
	return out, nil
}

func (m *memPosts) IDsByAuthor(_ context.Context, authorID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := []int64{}
	for _, p := range m.posts {
		if p.AuthorID == authorID {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}

type memComments struct {
	mu       sync.Mutex
	clock    *clock
	comments []*Comment
}

func (m *memComments) Create(_ context.Context, c *Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = int64(len(m.comments) + 1)
	c.CreatedAt = m.clock.tick()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	m.comments = append(m.comments, &cp)
	return nil
}

func (m *memComments) FindByID(_ context.Context, id int64) (*Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id <= 0 || int(id) > len(m.comments) {
		return nil, apperr.NotFound("comment.get", "comment", id)
	}
	cp := *m.comments[id-1]
	return &cp, nil
}

func (m *memComments) ListByPost(_ context.Context, postID int64) ([]Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Comment{}
	for _, c := range m.comments {
		if c.PostID == postID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memComments) IDsByAuthor(_ context.Context, authorID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := []int64{}
	for _, c := range m.comments {
		if c.AuthorID == authorID {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

// memVotes is a vote.Store whose targets are the fake posts and comments.
type memVotes struct {
	mu       sync.Mutex
	posts    *memPosts
	comments *memComments
	states   map[vote.Target]map[int64]vote.State
}

func (m *memVotes) exists(ctx context.Context, t vote.Target) error {
	var err error
	switch t.Kind {
	case vote.KindPost:
		_, err = m.posts.FindByID(ctx, t.ID)
	case vote.KindComment:
		_, err = m.comments.FindByID(ctx, t.ID)
	}
	return err
}

func (m *memVotes) Load(ctx context.Context, t vote.Target) (vote.Tally, error) {
	if err := m.exists(ctx, t); err != nil {
		return vote.Tally{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return vote.FromStates(t.ID, m.states[t]), nil
}

func (m *memVotes) Record(_ context.Context, t vote.Target, userID int64, st vote.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.states[t] == nil {
		m.states[t] = make(map[int64]vote.State)
	}
	if st == vote.None {
		delete(m.states[t], userID)
	} else {
		m.states[t][userID] = st
	}
	return nil
}

func (m *memVotes) LoadMany(_ context.Context, kind vote.Kind, ids []int64) (map[int64]vote.Tally, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]vote.Tally, len(ids))
	for _, id := range ids {
		out[id] = vote.FromStates(id, m.states[vote.Target{Kind: kind, ID: id}])
	}
	return out, nil
}
