package session

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncwatch/server/internal/repository/connection"
	conninmemory "github.com/syncwatch/server/internal/repository/connection/inmemory"
	sessionrepo "github.com/syncwatch/server/internal/repository/session"
	sessionredis "github.com/syncwatch/server/internal/repository/session/redis"
	"github.com/syncwatch/server/internal/protocol"
)

func newTestService(t *testing.T) (*service, *miniredis.Miniredis, *clockwork.FakeClock) {
	t.Helper()

	s := miniredis.RunT(t)
	rc := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	t.Cleanup(func() { rc.Close() })

	clock := clockwork.NewFakeClock()
	sessionRepo := sessionredis.NewRepo(rc, slog.Default(), time.Hour)
	connRepo := conninmemory.NewRepo()

	return NewService(sessionRepo, connRepo, clock, slog.Default()), s, clock
}

func TestCreateAndJoinSession(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	createResp, err := svc.CreateSession(ctx, &CreateSessionParams{
		VideoURL:   "http://x/video.webm",
		Title:      "t",
		Password:   "secret",
		ControlKey: "ctl",
	})
	require.NoError(t, err)
	assert.Len(t, createResp.SessionId, 16)

	joinResp, err := svc.JoinSession(ctx, &JoinSessionParams{
		SessionId:  createResp.SessionId,
		Password:   "secret",
		ControlKey: "ctl",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://x/video.webm", joinResp.VideoURL)
	assert.Equal(t, "t", joinResp.Title)
	assert.Equal(t, protocol.StatePaused, joinResp.State)
	assert.Equal(t, float64(0), joinResp.PlayFrom)
	assert.True(t, joinResp.Controller)

	joinResp, err = svc.JoinSession(ctx, &JoinSessionParams{
		SessionId: createResp.SessionId,
		Password:  "secret",
	})
	require.NoError(t, err)
	assert.False(t, joinResp.Controller)

	_, err = svc.JoinSession(ctx, &JoinSessionParams{
		SessionId: createResp.SessionId,
		Password:  "wrong",
	})
	assert.ErrorIs(t, err, ErrWrongPassword)

	_, err = svc.JoinSession(ctx, &JoinSessionParams{SessionId: "missing"})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRegisterClientUnknownSession(t *testing.T) {
	svc, redisState, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RegisterClient(ctx, &RegisterClientParams{
		SessionId: "missing",
		Conn:      &websocket.Conn{},
	})
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Empty(t, redisState.Keys(), "unknown session must not mutate the registry")
}

func TestPing(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	createResp, err := svc.CreateSession(ctx, &CreateSessionParams{
		VideoURL: "http://x/video.webm",
		Title:    "t",
	})
	require.NoError(t, err)

	registerResp, err := svc.RegisterClient(ctx, &RegisterClientParams{
		SessionId: createResp.SessionId,
		Conn:      &websocket.Conn{},
	})
	require.NoError(t, err)

	clock.Advance(1500 * time.Millisecond)

	pingResp, err := svc.Ping(ctx, &PingParams{
		Id:        "m1",
		Iteration: 1,
		ClientId:  registerResp.ClientId,
	})
	require.NoError(t, err)
	assert.Equal(t, "m1", pingResp.Id)
	assert.Equal(t, 2, pingResp.Iteration)
	assert.Equal(t, float64(1500), pingResp.Time)

	clock.Advance(50 * time.Millisecond)

	pingResp, err = svc.Ping(ctx, &PingParams{
		Id:        "m1",
		Iteration: 3,
		ClientId:  registerResp.ClientId,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, pingResp.Iteration)
	assert.Equal(t, float64(1550), pingResp.Time)

	_, err = svc.Ping(ctx, &PingParams{Id: "m1", Iteration: 2, ClientId: registerResp.ClientId})
	assert.ErrorIs(t, err, ErrBadIteration)

	_, err = svc.Ping(ctx, &PingParams{Id: "m1", Iteration: 1, ClientId: "nobody"})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestDisconnectClient(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	createResp, err := svc.CreateSession(ctx, &CreateSessionParams{
		VideoURL: "http://x/video.webm",
		Title:    "t",
	})
	require.NoError(t, err)

	connA, connB := &websocket.Conn{}, &websocket.Conn{}
	regA, err := svc.RegisterClient(ctx, &RegisterClientParams{
		SessionId: createResp.SessionId,
		Conn:      connA,
	})
	require.NoError(t, err)
	regB, err := svc.RegisterClient(ctx, &RegisterClientParams{
		SessionId: createResp.SessionId,
		Conn:      connB,
	})
	require.NoError(t, err)

	svc.DisconnectClient(ctx, connB)

	_, err = svc.connRepo.GetConn(regB.ClientId)
	assert.ErrorIs(t, err, connection.ErrNotFound, "conn mapping must be removed")

	_, err = svc.sessionRepo.GetUser(ctx, regB.ClientId)
	assert.ErrorIs(t, err, sessionrepo.ErrUserNotFound, "user record must be removed")

	// the disconnected member is gone from the broadcast set
	relayResp, err := svc.RelaySync(ctx, &RelaySyncParams{
		Origin:    regA.ClientId,
		Session:   createResp.SessionId,
		State:     protocol.StatePaused,
		TimeStamp: 1,
	})
	require.NoError(t, err)
	assert.Empty(t, relayResp.Conns)

	// disconnecting the same conn again is a no-op
	svc.DisconnectClient(ctx, connB)
}

func TestRelaySync(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	createResp, err := svc.CreateSession(ctx, &CreateSessionParams{
		VideoURL: "http://x/video.webm",
		Title:    "t",
	})
	require.NoError(t, err)

	conns := make([]*websocket.Conn, 3)
	clientIds := make([]string, 3)
	for i := range conns {
		conns[i] = &websocket.Conn{}
		registerResp, err := svc.RegisterClient(ctx, &RegisterClientParams{
			SessionId: createResp.SessionId,
			Conn:      conns[i],
		})
		require.NoError(t, err)
		clientIds[i] = registerResp.ClientId
	}

	relayResp, err := svc.RelaySync(ctx, &RelaySyncParams{
		Origin:    clientIds[0],
		Session:   createResp.SessionId,
		State:     protocol.StatePaused,
		TimeStamp: 42.5,
	})
	require.NoError(t, err)
	assert.Equal(t, createResp.SessionId, relayResp.SessionId)
	assert.Len(t, relayResp.Conns, 2)
	for _, conn := range relayResp.Conns {
		assert.NotSame(t, conns[0], conn, "origin must not receive its own message")
	}

	// paused writeback stores the position itself
	joinResp, err := svc.JoinSession(ctx, &JoinSessionParams{SessionId: createResp.SessionId})
	require.NoError(t, err)
	assert.Equal(t, protocol.StatePaused, joinResp.State)
	assert.Equal(t, 42.5, joinResp.PlayFrom)

	// playing writeback stores wall-clock-now minus the timestamp
	_, err = svc.RelaySync(ctx, &RelaySyncParams{
		Origin:    clientIds[0],
		Session:   createResp.SessionId,
		State:     protocol.StatePlaying,
		TimeStamp: 10.0,
	})
	require.NoError(t, err)

	joinResp, err = svc.JoinSession(ctx, &JoinSessionParams{SessionId: createResp.SessionId})
	require.NoError(t, err)
	assert.Equal(t, protocol.StatePlaying, joinResp.State)
	assert.Equal(t, float64(clock.Now().UnixMilli())/1000-10.0, joinResp.PlayFrom)

	_, err = svc.RelaySync(ctx, &RelaySyncParams{
		Origin:  "nobody",
		Session: createResp.SessionId,
		State:   protocol.StatePaused,
	})
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.RelaySync(ctx, &RelaySyncParams{
		Origin:  clientIds[0],
		Session: "other-session",
		State:   protocol.StatePaused,
	})
	assert.ErrorIs(t, err, ErrSessionMismatch)
}
