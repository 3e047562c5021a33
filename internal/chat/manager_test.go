package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus-hub/internal/apperr"
)

func TestAuthenticate(t *testing.T) {
	h := newHarness(t, nil, 4)
	ctx := context.Background()

	_, err := h.manager.Authenticate(ctx, "")
	assert.ErrorIs(t, err, apperr.ErrAuth)
	_, err = h.manager.Authenticate(ctx, "forged")
	assert.ErrorIs(t, err, apperr.ErrAuth)

	s, err := h.manager.Authenticate(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice, s.Identity)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, 1, h.registry.SessionCount())
}

func TestJoinRoomChecksMembership(t *testing.T) {
	h := newHarness(t, nil, 4)
	ctx := context.Background()
	c := h.manager.Open(carol)

	assert.ErrorIs(t, h.manager.JoinRoom(ctx, c, general), apperr.ErrForbidden)
	assert.ErrorIs(t, h.manager.JoinRoom(ctx, c, 404), apperr.ErrNotFound)
	assert.Empty(t, c.Rooms())

	a := h.manager.Open(alice)
	require.NoError(t, h.manager.JoinRoom(ctx, a, general))
	require.NoError(t, h.manager.JoinRoom(ctx, a, general))
	assert.Equal(t, []int64{general}, a.Rooms())
	assert.Len(t, h.registry.Subscribers(general), 1)

	assert.True(t, h.manager.LeaveRoom(a, general))
	assert.False(t, h.manager.LeaveRoom(a, general))
	assert.Zero(t, h.registry.RoomCount())
}

func TestDisconnectIsIdempotent(t *testing.T) {
	h := newHarness(t, nil, 4)
	a := h.joined(t, alice, general)
	b := h.joined(t, bob, general)

	h.manager.Disconnect(a)
	h.manager.Disconnect(a)
	assert.True(t, a.Closed())
	assert.Empty(t, a.Rooms())
	assert.Equal(t, 1, h.registry.SessionCount())

	_, ok := <-a.Outbound()
	assert.False(t, ok, "outbound is closed")
	assert.False(t, a.Deliver([]byte("late")))
	assert.ErrorIs(t, h.manager.JoinRoom(context.Background(), a, general), ErrSessionClosed)

	// A send whose originating session is gone still reaches the room.
	_, err := h.broadcaster.Send(context.Background(), a, SendRequest{RoomID: general, Content: "bye"})
	require.NoError(t, err)
	assert.Equal(t, "bye", recv(t, b).Message.Content)
}

func TestResync(t *testing.T) {
	h := newHarness(t, nil, 16)
	ctx := context.Background()
	h.members.add(30, alice.UserID)

	writer := h.manager.Open(bob)
	for _, c := range []string{"a", "b", "c"} {
		_, err := h.broadcaster.Send(ctx, writer, SendRequest{RoomID: general, Content: c})
		require.NoError(t, err)
	}

	s := h.manager.Open(alice)
	replays := h.manager.Resync(ctx, s, []int64{general, 30, general, 404}, 2)
	require.Len(t, replays, 3)

	assert.Equal(t, general, replays[0].RoomID)
	assert.Nil(t, replays[0].Error)
	require.Len(t, replays[0].Messages, 2)
	assert.Equal(t, "b", replays[0].Messages[0].Content)
	assert.Equal(t, "c", replays[0].Messages[1].Content)

	assert.Nil(t, replays[1].Error)
	assert.Empty(t, replays[1].Messages)

	require.NotNil(t, replays[2].Error)
	assert.Equal(t, apperr.KindNotFound, replays[2].Error.Code)

	assert.Equal(t, []int64{general, 30}, s.Rooms())
}

func TestShutdownClosesAllSessions(t *testing.T) {
	h := newHarness(t, nil, 4)
	a := h.joined(t, alice, general)
	b := h.joined(t, bob, general)

	h.manager.Shutdown()
	assert.True(t, a.Closed())
	assert.True(t, b.Closed())
	assert.Zero(t, h.registry.SessionCount())
	assert.Zero(t, h.registry.RoomCount())
}
