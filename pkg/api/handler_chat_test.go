package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reveralabs/revera/pkg/memory"
	"github.com/reveralabs/revera/pkg/models"
)

func TestCreateChatHandler(t *testing.T) {
	t.Run("creates chat with title", func(t *testing.T) {
		ts := newTestServer(t)

		rec := doRequest(t, ts.Server, http.MethodPost, "/api/chats",
			map[string]string{"title": "Quarterly numbers"})
		require.Equal(t, http.StatusOK, rec.Code)

		var chat models.Chat
		decodeJSON(t, rec, &chat)
		assert.NotEmpty(t, chat.ID)
		assert.Equal(t, devUserID, chat.UserID)
		assert.Equal(t, "Quarterly numbers", chat.Title)
	})

	t.Run("empty body creates untitled chat", func(t *testing.T) {
		ts := newTestServer(t)

		rec := doRequest(t, ts.Server, http.MethodPost, "/api/chats", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var chat models.Chat
		decodeJSON(t, rec, &chat)
		assert.Empty(t, chat.Title)
	})
}

func TestListChatsHandler(t *testing.T) {
	t.Run("returns only the caller's chats", func(t *testing.T) {
		ts := newTestServer(t)
		ts.chats.add("chat-1", devUserID, "Mine")
		ts.chats.add("chat-2", "someone-else", "Not mine")

		rec := doRequest(t, ts.Server, http.MethodGet, "/api/chats", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var chats []models.ChatWithPreview
		decodeJSON(t, rec, &chats)
		require.Len(t, chats, 1)
		assert.Equal(t, "chat-1", chats[0].ID)
	})

	t.Run("no chats is an empty array", func(t *testing.T) {
		ts := newTestServer(t)

		rec := doRequest(t, ts.Server, http.MethodGet, "/api/chats", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "[]", rec.Body.String())
	})
}

func TestGetChatHandler(t *testing.T) {
	ts := newTestServer(t)
	ts.chats.add("chat-1", devUserID, "Mine")
	ts.chats.add("chat-2", "someone-else", "Not mine")

	t.Run("returns owned chat", func(t *testing.T) {
		rec := doRequest(t, ts.Server, http.MethodGet, "/api/chats/chat-1", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var chat models.Chat
		decodeJSON(t, rec, &chat)
		assert.Equal(t, "chat-1", chat.ID)
	})

	t.Run("other user's chat is not found", func(t *testing.T) {
		rec := doRequest(t, ts.Server, http.MethodGet, "/api/chats/chat-2", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown chat is not found", func(t *testing.T) {
		rec := doRequest(t, ts.Server, http.MethodGet, "/api/chats/nope", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestUpdateChatHandler(t *testing.T) {
	t.Run("renames chat", func(t *testing.T) {
		ts := newTestServer(t)
		ts.chats.add("chat-1", devUserID, "Old title")

		rec := doRequest(t, ts.Server, http.MethodPut, "/api/chats/chat-1",
			map[string]string{"title": "New title"})
		require.Equal(t, http.StatusOK, rec.Code)

		var chat models.Chat
		decodeJSON(t, rec, &chat)
		assert.Equal(t, "New title", chat.Title)
	})

	t.Run("missing title is rejected", func(t *testing.T) {
		ts := newTestServer(t)
		ts.chats.add("chat-1", devUserID, "Old title")

		rec := doRequest(t, ts.Server, http.MethodPut, "/api/chats/chat-1",
			map[string]string{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDeleteChatHandler(t *testing.T) {
	t.Run("deletes chat and reports cleanup stats", func(t *testing.T) {
		ts := newTestServer(t)
		ts.chats.add("chat-1", devUserID, "Doomed")
		ts.research.cancelCount = 2
		ts.documents.add("doc-1", devUserID, "chat-1", models.DocumentTypePDF, "report.pdf")
		ts.documents.add("doc-2", devUserID, "other-chat", models.DocumentTypePDF, "keep.pdf")

		ns := memory.Episodic(devUserID, "chat-1", memory.AgentPlanner)
		require.NoError(t, ts.memory.Put(context.Background(), ns, "run-1",
			map[string]any{"summary": "planned"}))

		rec := doRequest(t, ts.Server, http.MethodDelete, "/api/chats/chat-1", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp ChatDeletedResponse
		decodeJSON(t, rec, &resp)
		assert.Equal(t, "chat-1", resp.Stats.ChatID)
		assert.Equal(t, 2, resp.Stats.CancelledRuns)
		assert.Equal(t, 1, resp.Stats.MemoriesDeleted)
		assert.Equal(t, 1, resp.Stats.DocumentsDeleted)

		assert.Equal(t, []string{"chat-1"}, ts.chats.deleted)
		assert.Equal(t, []string{"chat-1"}, ts.research.cancelled)
		assert.Equal(t, []string{"doc-1"}, ts.ingestor.deleted)
		_, ok := ts.documents.rows["doc-2"]
		assert.True(t, ok, "documents of other chats must survive")
	})

	t.Run("other user's chat is not found", func(t *testing.T) {
		ts := newTestServer(t)
		ts.chats.add("chat-1", "someone-else", "Not mine")

		rec := doRequest(t, ts.Server, http.MethodDelete, "/api/chats/chat-1", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Empty(t, ts.chats.deleted)
		assert.Empty(t, ts.research.cancelled)
	})
}

func TestListMessagesHandler(t *testing.T) {
	ts := newTestServer(t)
	ts.chats.add("chat-1", devUserID, "Mine")
	ts.messages.add(models.Message{ID: "msg-1", ChatID: "chat-1", Role: models.RoleUser, Query: "hello"})
	ts.messages.add(models.Message{ID: "msg-2", ChatID: "chat-1", Role: models.RoleAssistant, Answer: "hi"})
	ts.messages.add(models.Message{ID: "msg-3", ChatID: "other-chat", Role: models.RoleUser})

	t.Run("returns chat messages in order", func(t *testing.T) {
		rec := doRequest(t, ts.Server, http.MethodGet, "/api/chats/chat-1/messages", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var messages []models.Message
		decodeJSON(t, rec, &messages)
		require.Len(t, messages, 2)
		assert.Equal(t, "msg-1", messages[0].ID)
		assert.Equal(t, "msg-2", messages[1].ID)
	})

	t.Run("requires chat ownership", func(t *testing.T) {
		ts.chats.add("chat-2", "someone-else", "Not mine")
		rec := doRequest(t, ts.Server, http.MethodGet, "/api/chats/chat-2/messages", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestMessageVerificationHandler(t *testing.T) {
	ts := newTestServer(t)
	ts.chats.add("chat-1", devUserID, "Mine")
	ts.messages.add(models.Message{ID: "msg-done", ChatID: "chat-1", Confidence: "high",
		Verification: &models.Verification{VerificationStatus: "high"}})
	ts.messages.add(models.Message{ID: "msg-pending", ChatID: "chat-1", Confidence: "pending"})
	ts.messages.add(models.Message{ID: "msg-elsewhere", ChatID: "other-chat"})

	t.Run("complete verification", func(t *testing.T) {
		rec := doRequest(t, ts.Server, http.MethodGet,
			"/api/chats/chat-1/messages/msg-done/verification", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp VerificationStatusResponse
		decodeJSON(t, rec, &resp)
		assert.Equal(t, "complete", resp.Status)
		assert.Equal(t, "high", resp.Confidence)
		require.NotNil(t, resp.Verification)
	})

	t.Run("pending verification is 202", func(t *testing.T) {
		rec := doRequest(t, ts.Server, http.MethodGet,
			"/api/chats/chat-1/messages/msg-pending/verification", nil)
		require.Equal(t, http.StatusAccepted, rec.Code)

		var resp VerificationStatusResponse
		decodeJSON(t, rec, &resp)
		assert.Equal(t, "pending", resp.Status)
		assert.Nil(t, resp.Verification)
	})

	t.Run("message of another chat is not found", func(t *testing.T) {
		rec := doRequest(t, ts.Server, http.MethodGet,
			"/api/chats/chat-1/messages/msg-elsewhere/verification", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestChatMemoryHandlers(t *testing.T) {
	ts := newTestServer(t)
	ts.chats.add("chat-1", devUserID, "Mine")
	ctx := context.Background()

	ns := memory.Episodic(devUserID, "chat-1", memory.AgentSynthesis)
	require.NoError(t, ts.memory.Put(ctx, ns, "run-1", map[string]any{"answer_summary": "42"}))

	t.Run("all agents", func(t *testing.T) {
		rec := doRequest(t, ts.Server, http.MethodGet, "/api/chats/chat-1/memory", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string][]models.MemoryItem
		decodeJSON(t, rec, &resp)
		assert.Len(t, resp[memory.AgentSynthesis], 1)
	})

	t.Run("single agent", func(t *testing.T) {
		rec := doRequest(t, ts.Server, http.MethodGet,
			"/api/chats/chat-1/memory/"+memory.AgentSynthesis, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp AgentMemoryResponse
		decodeJSON(t, rec, &resp)
		assert.Equal(t, memory.AgentSynthesis, resp.Agent)
		require.Len(t, resp.Memories, 1)
	})

	t.Run("agent with no memories returns empty array", func(t *testing.T) {
		rec := doRequest(t, ts.Server, http.MethodGet,
			"/api/chats/chat-1/memory/"+memory.AgentCritic, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp AgentMemoryResponse
		decodeJSON(t, rec, &resp)
		assert.NotNil(t, resp.Memories)
		assert.Empty(t, resp.Memories)
	})
}
