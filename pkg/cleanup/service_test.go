package cleanup

import (
	"context"
	stdsql "database/sql"
	"testing"
	"time"

	"github.com/reveralabs/revera/pkg/config"
	"github.com/reveralabs/revera/pkg/models"
	"github.com/reveralabs/revera/pkg/services"
	testdb "github.com/reveralabs/revera/test/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupServices(t *testing.T) (*stdsql.DB, *services.SessionService, *services.EventService) {
	t.Helper()
	client := testdb.NewTestClient(t)
	db := client.DB()
	return db, services.NewSessionService(db), services.NewEventService(db)
}

func retentionConfig() *config.RetentionConfig {
	return &config.RetentionConfig{
		EventTTL:        1 * time.Hour,
		StaleSessionTTL: 30 * time.Minute,
		CleanupInterval: 1 * time.Hour,
	}
}

func createSession(t *testing.T, sessions *services.SessionService, query string) *models.ResearchSession {
	t.Helper()
	session, err := sessions.Create(context.Background(), models.CreateSessionRequest{
		UserID: "user-1",
		Query:  query,
	})
	require.NoError(t, err)
	return session
}

func TestService_MarksStaleRunningSessionsFailed(t *testing.T) {
	db, sessions, events := setupServices(t)
	ctx := context.Background()

	session := createSession(t, sessions, "stale run")

	// Age the session past the stale cutoff.
	_, err := db.ExecContext(ctx,
		`UPDATE research_sessions SET updated_at = $1 WHERE id = $2`,
		time.Now().UTC().Add(-2*time.Hour), session.ID)
	require.NoError(t, err)

	svc := NewService(retentionConfig(), sessions, events)
	svc.runAll(ctx)

	updated, err := sessions.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusFailed, updated.Status)
	assert.NotNil(t, updated.CompletedAt)
	assert.Equal(t, "session timed out", updated.Result["error"])
}

func TestService_PreservesActiveAndCompletedSessions(t *testing.T) {
	db, sessions, events := setupServices(t)
	ctx := context.Background()

	running := createSession(t, sessions, "active run")

	completed := createSession(t, sessions, "finished run")
	err := sessions.Complete(ctx, completed.ID, &models.SessionResult{
		Answer:     "done",
		Confidence: "high",
	})
	require.NoError(t, err)

	// Even a very old session stays untouched once it reached a terminal state.
	_, err = db.ExecContext(ctx,
		`UPDATE research_sessions SET updated_at = $1 WHERE id = $2`,
		time.Now().UTC().Add(-48*time.Hour), completed.ID)
	require.NoError(t, err)

	svc := NewService(retentionConfig(), sessions, events)
	svc.runAll(ctx)

	got, err := sessions.Get(ctx, running.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusRunning, got.Status)

	got, err = sessions.Get(ctx, completed.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCompleted, got.Status)
	assert.Equal(t, "done", got.Result["answer"])
}

func TestService_CleansUpOldEvents(t *testing.T) {
	db, sessions, events := setupServices(t)
	ctx := context.Background()

	session := createSession(t, sessions, "event stream")

	old, err := events.CreateEvent(ctx, models.CreateEventRequest{
		SessionID: session.ID,
		Channel:   "agent_status",
		Payload:   map[string]any{"status": "running"},
	})
	require.NoError(t, err)

	_, err = db.ExecContext(ctx,
		`UPDATE events SET created_at = $1 WHERE id = $2`,
		time.Now().UTC().Add(-2*time.Hour), old.ID)
	require.NoError(t, err)

	recent, err := events.CreateEvent(ctx, models.CreateEventRequest{
		SessionID: session.ID,
		Channel:   "complete",
		Payload:   map[string]any{"answer": "done"},
	})
	require.NoError(t, err)

	svc := NewService(retentionConfig(), sessions, events)
	svc.runAll(ctx)

	remaining, err := events.GetEventsSince(ctx, session.ID, 0)
	require.NoError(t, err)
	require.Len(t, remaining, 1, "old event should be deleted, recent event preserved")
	assert.Equal(t, recent.ID, remaining[0].ID)
}
