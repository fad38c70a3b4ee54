package services

import (
	"context"
	"testing"

	"github.com/reveralabs/revera/pkg/database"
	"github.com/reveralabs/revera/pkg/models"
	testdb "github.com/reveralabs/revera/test/database"
	"github.com/stretchr/testify/require"
)

// testServices wires every service onto one per-test database schema.
type testServices struct {
	client    *database.Client
	chats     *ChatService
	messages  *MessageService
	sessions  *SessionService
	agentLogs *AgentLogService
	documents *DocumentService
	feedback  *FeedbackService
	events    *EventService
}

func newTestServices(t *testing.T) *testServices {
	client := testdb.NewTestClient(t)
	db := client.DB()
	return &testServices{
		client:    client,
		chats:     NewChatService(db),
		messages:  NewMessageService(db),
		sessions:  NewSessionService(db),
		agentLogs: NewAgentLogService(db),
		documents: NewDocumentService(db),
		feedback:  NewFeedbackService(db),
		events:    NewEventService(db),
	}
}

func createTestChat(t *testing.T, svc *testServices, userID string) *models.Chat {
	t.Helper()
	chat, err := svc.chats.Create(context.Background(), models.CreateChatRequest{UserID: userID})
	require.NoError(t, err)
	return chat
}

func createTestSession(t *testing.T, svc *testServices, chat *models.Chat, query string) *models.ResearchSession {
	t.Helper()
	session, err := svc.sessions.Create(context.Background(), models.CreateSessionRequest{
		UserID:   chat.UserID,
		ChatID:   chat.ID,
		ThreadID: chat.ThreadID,
		Query:    query,
	})
	require.NoError(t, err)
	return session
}

func createTestMessage(t *testing.T, svc *testServices, chat *models.Chat, query, answer string) *models.Message {
	t.Helper()
	msg, err := svc.messages.Create(context.Background(), models.CreateMessageRequest{
		ChatID: chat.ID,
		Role:   models.RoleAssistant,
		Query:  query,
		Answer: answer,
	})
	require.NoError(t, err)
	return msg
}
