package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/chat-assistant/internal/model/chat"
)

func TestServiceGetSession(t *testing.T) {
	svc := NewService(time.Minute)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx)
	require.NoError(t, err)

	got, err := svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)

	transcript, err := svc.LoadTranscript(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, transcript)
}

func TestServiceGetSessionNotFound(t *testing.T) {
	svc := NewService(time.Minute)

	_, err := svc.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = svc.History(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestServiceSessionsAreIsolated(t *testing.T) {
	svc := NewService(time.Minute)
	ctx := context.Background()

	a, _ := svc.CreateSession(ctx)
	b, _ := svc.CreateSession(ctx)

	ha, err := svc.History(ctx, a.ID)
	require.NoError(t, err)
	ha.Append(chat.UserTurn("only in a"))

	tb, err := svc.LoadTranscript(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, tb)
}

func TestServiceEndSessionDestroysHistory(t *testing.T) {
	svc := NewService(time.Minute)
	ctx := context.Background()

	session, _ := svc.CreateSession(ctx)
	h, _ := svc.History(ctx, session.ID)
	h.Append(chat.UserTurn("Hello"))

	require.NoError(t, svc.EndSession(ctx, session.ID))

	_, err := svc.LoadTranscript(ctx, session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, svc.EndSession(ctx, session.ID), ErrSessionNotFound)
}

func TestServiceSweepRemovesOnlyIdleSessions(t *testing.T) {
	svc := NewService(10 * time.Minute)
	ctx := context.Background()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc.now = func() time.Time { return base }
	stale, _ := svc.CreateSession(ctx)

	svc.now = func() time.Time { return base.Add(8 * time.Minute) }
	fresh, _ := svc.CreateSession(ctx)

	removed := svc.Sweep(base.Add(15 * time.Minute))
	assert.Equal(t, 1, removed)

	_, err := svc.GetSession(ctx, stale.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = svc.GetSession(ctx, fresh.ID)
	assert.NoError(t, err)
}

func TestServiceSweepDisabled(t *testing.T) {
	svc := NewService(0)
	_, _ = svc.CreateSession(context.Background())

	assert.Equal(t, 0, svc.Sweep(time.Now().Add(24*time.Hour)))
	assert.Equal(t, 1, svc.Len())
}

func TestServiceFlashIsOneShot(t *testing.T) {
	svc := NewService(time.Minute)
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx)

	require.NoError(t, svc.SetFlash(ctx, session.ID, "try again"))
	assert.Equal(t, "try again", svc.TakeFlash(ctx, session.ID))
	assert.Equal(t, "", svc.TakeFlash(ctx, session.ID))
}
