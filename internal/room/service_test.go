package room

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"campus-hub/internal/apperr"
	"campus-hub/internal/identity"
	"campus-hub/internal/retry"
)

type memStore struct {
	mu      sync.Mutex
	nextID  int64
	rooms   map[int64]*Room
	failIs  int
	members map[int64][]int64
}

func newMemStore() *memStore {
	return &memStore{rooms: make(map[int64]*Room), members: make(map[int64][]int64)}
}

func (m *memStore) Create(_ context.Context, rm *Room) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rooms {
		if existing.Name == rm.Name {
			return nil, ErrDuplicateName
		}
	}
	m.nextID++
	rm.ID = m.nextID
	rm.CreatedAt = time.Now()
	cp := *rm
	m.rooms[rm.ID] = &cp
	m.members[rm.ID] = []int64{rm.AdminID}
	rm.MemberIDs = []int64{rm.AdminID}
	return rm, nil
}

func (m *memStore) FindByID(_ context.Context, id int64) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rm, ok := m.rooms[id]
	if !ok {
		return nil, apperr.NotFound("room.get", "room", id)
	}
	cp := *rm
	cp.MemberIDs = append([]int64(nil), m.members[id]...)
	return &cp, nil
}

func (m *memStore) ExistsByName(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rm := range m.rooms {
		if rm.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) List(_ context.Context) ([]Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Room
	for id := int64(1); id <= m.nextID; id++ {
		if rm, ok := m.rooms[id]; ok {
			cp := *rm
			cp.MemberIDs = append([]int64(nil), m.members[id]...)
			out = append(out, cp)
		}
	}
	return out, nil
}

func (m *memStore) AddMember(_ context.Context, roomID, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.members[roomID] {
		if id == userID {
			return false, nil
		}
	}
	m.members[roomID] = append(m.members[roomID], userID)
	return true, nil
}

func (m *memStore) IsMember(_ context.Context, roomID, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failIs > 0 {
		m.failIs--
		return false, errors.New("connection reset")
	}
	for _, id := range m.members[roomID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) Exists(_ context.Context, roomID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rooms[roomID]
	return ok, nil
}

func (m *memStore) Members(_ context.Context, roomID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.members[roomID]...), nil
}

var admin = identity.Identity{UserID: 1, Username: "admin", IsAdmin: true}

func newTestService() (*Service, *memStore) {
	store := newMemStore()
	return NewService(store, retry.New(time.Millisecond), zap.NewNop()), store
}

func TestCreateRequiresAdmin(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()

	_, err := s.Create(ctx, identity.Identity{UserID: 2}, CreateRequest{Name: "general"})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	rm, err := s.Create(ctx, admin, CreateRequest{Name: " general "})
	require.NoError(t, err)
	assert.Equal(t, "general", rm.Name)
	assert.Equal(t, CategoryGeneral, rm.Category)
	assert.Equal(t, []int64{1}, rm.MemberIDs)

	_, err = s.Create(ctx, admin, CreateRequest{Name: "general"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = s.Create(ctx, admin, CreateRequest{Name: "x", Category: "party"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestJoinIsIdempotentAndGrowsMembership(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()
	rm, err := s.Create(ctx, admin, CreateRequest{Name: "general"})
	require.NoError(t, err)

	added, err := s.Join(ctx, rm.ID, 7)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.Join(ctx, rm.ID, 7)
	require.NoError(t, err)
	assert.False(t, added)

	members, err := s.Members(ctx, rm.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 7}, members)

	_, err = s.Join(ctx, 999, 7)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCheckMember(t *testing.T) {
	s, store := newTestService()
	ctx := context.Background()
	rm, err := s.Create(ctx, admin, CreateRequest{Name: "general"})
	require.NoError(t, err)

	ok, err := s.CheckMember(ctx, rm.ID, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.CheckMember(ctx, rm.ID, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.CheckMember(ctx, 42, 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	store.failIs = 1
	ok, err = s.CheckMember(ctx, rm.ID, 1)
	require.NoError(t, err, "a single transient failure is retried")
	assert.True(t, ok)

	store.failIs = 2
	_, err = s.CheckMember(ctx, rm.ID, 1)
	assert.ErrorIs(t, err, apperr.ErrUnavailable)
}

func TestEnsureDefaults(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()

	require.NoError(t, s.EnsureDefaults(ctx, 1))
	require.NoError(t, s.EnsureDefaults(ctx, 1))

	rooms, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, len(defaultRooms))
	assert.Equal(t, "Computer Science Study", rooms[0].Name)
	assert.Equal(t, CategoryEvent, rooms[2].Category)
}

func TestHandlerJoinRoom(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()
	rm, err := s.Create(ctx, admin, CreateRequest{Name: "general"})
	require.NoError(t, err)

	h := NewHandler(s, zap.NewNop())
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(identity.WithIdentity(req.Context(), identity.Identity{UserID: 5})))
		})
	})
	r.Post("/api/rooms/{id}/join", h.JoinRoom)
	r.Post("/api/rooms", h.CreateRoom)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/rooms/1/join", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Joined group successfully")

	ok, err := s.CheckMember(ctx, rm.ID, 5)
	require.NoError(t, err)
	assert.True(t, ok)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/rooms/77/join", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/rooms", strings.NewReader(`{"name":"new"}`)))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
