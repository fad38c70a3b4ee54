package services

import (
	"context"
	"testing"
	"time"

	"github.com/reveralabs/revera/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionService_Create(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	chat := createTestChat(t, svc, "user-1")

	t.Run("creates running session", func(t *testing.T) {
		session, err := svc.sessions.Create(ctx, models.CreateSessionRequest{
			UserID:   "user-1",
			ChatID:   chat.ID,
			ThreadID: chat.ThreadID,
			Query:    "what is alpha?",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, session.ID)
		assert.Equal(t, models.SessionStatusRunning, session.Status)

		got, err := svc.sessions.Get(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, "what is alpha?", got.Query)
		assert.Equal(t, chat.ID, got.ChatID)
		assert.Nil(t, got.CompletedAt)
	})

	t.Run("honors caller-provided ID", func(t *testing.T) {
		session, err := svc.sessions.Create(ctx, models.CreateSessionRequest{
			ID:       "fixed-session",
			UserID:   "user-1",
			ChatID:   chat.ID,
			ThreadID: chat.ThreadID,
			Query:    "q",
		})
		require.NoError(t, err)
		assert.Equal(t, "fixed-session", session.ID)

		_, err = svc.sessions.Create(ctx, models.CreateSessionRequest{
			ID:       "fixed-session",
			UserID:   "user-1",
			ChatID:   chat.ID,
			ThreadID: chat.ThreadID,
			Query:    "q",
		})
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("allows standalone sessions without a chat", func(t *testing.T) {
		session, err := svc.sessions.Create(ctx, models.CreateSessionRequest{
			UserID: "user-1",
			Query:  "standalone research",
		})
		require.NoError(t, err)

		got, err := svc.sessions.Get(ctx, session.ID)
		require.NoError(t, err)
		assert.Empty(t, got.ChatID)
		assert.Empty(t, got.ThreadID)
	})

	t.Run("validates required fields", func(t *testing.T) {
		_, err := svc.sessions.Create(ctx, models.CreateSessionRequest{
			UserID: "user-1", ChatID: chat.ID, ThreadID: chat.ThreadID,
		})
		require.Error(t, err)
		assert.True(t, IsValidationError(err))
	})

	t.Run("returns ErrNotFound for missing chat", func(t *testing.T) {
		_, err := svc.sessions.Create(ctx, models.CreateSessionRequest{
			UserID:   "user-1",
			ChatID:   "nonexistent",
			ThreadID: "thread",
			Query:    "q",
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSessionService_Complete(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	chat := createTestChat(t, svc, "user-1")
	session := createTestSession(t, svc, chat, "what is alpha?")

	result := &models.SessionResult{
		Answer:     "Alpha is an indexing scheme [Source 1].",
		Confidence: "high",
		Sources: []models.NormalizedSource{
			{Type: models.SourceTypeInternal, Content: "alpha", ChunkID: "c1"},
		},
		TotalLatencyMS: 1200,
	}

	require.NoError(t, svc.sessions.Complete(ctx, session.ID, result))

	got, err := svc.sessions.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	require.NotNil(t, got.Result)
	assert.Equal(t, "Alpha is an indexing scheme [Source 1].", got.Result["answer"])
	assert.Equal(t, "high", got.Result["confidence"])

	t.Run("second completion is rejected", func(t *testing.T) {
		assert.ErrorIs(t, svc.sessions.Complete(ctx, session.ID, result), ErrNotFound)
	})
}

func TestSessionService_Fail(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	chat := createTestChat(t, svc, "user-1")

	t.Run("marks running session failed", func(t *testing.T) {
		session := createTestSession(t, svc, chat, "q")
		require.NoError(t, svc.sessions.Fail(ctx, session.ID, "cancelled by caller"))

		got, err := svc.sessions.Get(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SessionStatusFailed, got.Status)
		assert.Equal(t, "cancelled by caller", got.Result["error"])
		assert.NotNil(t, got.CompletedAt)
	})

	t.Run("leaves completed sessions untouched", func(t *testing.T) {
		session := createTestSession(t, svc, chat, "q")
		require.NoError(t, svc.sessions.Complete(ctx, session.ID, &models.SessionResult{Answer: "a"}))

		assert.ErrorIs(t, svc.sessions.Fail(ctx, session.ID, "late failure"), ErrNotFound)

		got, err := svc.sessions.Get(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, models.SessionStatusCompleted, got.Status)
	})
}

func TestSessionService_List(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	chatA := createTestChat(t, svc, "user-1")
	chatB := createTestChat(t, svc, "user-1")
	otherChat := createTestChat(t, svc, "user-2")

	s1 := createTestSession(t, svc, chatA, "first")
	s2 := createTestSession(t, svc, chatA, "second")
	s3 := createTestSession(t, svc, chatB, "third")
	createTestSession(t, svc, otherChat, "not mine")

	require.NoError(t, svc.sessions.Complete(ctx, s2.ID, &models.SessionResult{Answer: "a"}))

	t.Run("scopes to user", func(t *testing.T) {
		resp, err := svc.sessions.List(ctx, models.SessionFilters{UserID: "user-1"})
		require.NoError(t, err)
		assert.Equal(t, 3, resp.TotalCount)
		require.Len(t, resp.Sessions, 3)
		// Newest first.
		assert.Equal(t, s3.ID, resp.Sessions[0].ID)
	})

	t.Run("filters by chat", func(t *testing.T) {
		resp, err := svc.sessions.List(ctx, models.SessionFilters{UserID: "user-1", ChatID: chatB.ID})
		require.NoError(t, err)
		require.Len(t, resp.Sessions, 1)
		assert.Equal(t, s3.ID, resp.Sessions[0].ID)
	})

	t.Run("filters by status", func(t *testing.T) {
		resp, err := svc.sessions.List(ctx, models.SessionFilters{
			UserID: "user-1",
			Status: models.SessionStatusCompleted,
		})
		require.NoError(t, err)
		require.Len(t, resp.Sessions, 1)
		assert.Equal(t, s2.ID, resp.Sessions[0].ID)
	})

	t.Run("paginates with total count", func(t *testing.T) {
		resp, err := svc.sessions.List(ctx, models.SessionFilters{
			UserID: "user-1",
			Limit:  2,
			Offset: 2,
		})
		require.NoError(t, err)
		assert.Equal(t, 3, resp.TotalCount)
		require.Len(t, resp.Sessions, 1)
		assert.Equal(t, s1.ID, resp.Sessions[0].ID)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		_, err := svc.sessions.List(ctx, models.SessionFilters{UserID: "user-1", Status: "paused"})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestSessionService_Delete(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	chat := createTestChat(t, svc, "user-1")
	session := createTestSession(t, svc, chat, "to be removed")

	t.Run("wrong user cannot delete", func(t *testing.T) {
		assert.ErrorIs(t, svc.sessions.Delete(ctx, session.ID, "user-2"), ErrNotFound)
	})

	t.Run("owner delete cascades logs", func(t *testing.T) {
		_, err := svc.agentLogs.Append(ctx, session.ID, "planner",
			map[string]any{"result_summary": "done"}, 5)
		require.NoError(t, err)

		require.NoError(t, svc.sessions.Delete(ctx, session.ID, "user-1"))

		_, err = svc.sessions.Get(ctx, session.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		logs, err := svc.agentLogs.ListForSession(ctx, session.ID)
		require.NoError(t, err)
		assert.Empty(t, logs)
	})

	t.Run("validates identifiers", func(t *testing.T) {
		assert.Error(t, svc.sessions.Delete(ctx, "", "user-1"))
		assert.Error(t, svc.sessions.Delete(ctx, session.ID, ""))
	})
}

func TestSessionService_MarkStaleFailed(t *testing.T) {
	svc := newTestServices(t)
	ctx := context.Background()

	chat := createTestChat(t, svc, "user-1")
	stale := createTestSession(t, svc, chat, "stale run")
	fresh := createTestSession(t, svc, chat, "fresh run")

	// Age the stale session past the cutoff.
	_, err := svc.client.DB().ExecContext(ctx,
		`UPDATE research_sessions SET updated_at = $1 WHERE id = $2`,
		time.Now().UTC().Add(-time.Hour), stale.ID)
	require.NoError(t, err)

	n, err := svc.sessions.MarkStaleFailed(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := svc.sessions.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusFailed, got.Status)
	assert.Equal(t, "session timed out", got.Result["error"])

	got, err = svc.sessions.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusRunning, got.Status)
}
