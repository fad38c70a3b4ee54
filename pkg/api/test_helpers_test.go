package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/reveralabs/revera/pkg/config"
	"github.com/reveralabs/revera/pkg/events"
	"github.com/reveralabs/revera/pkg/memory"
	"github.com/reveralabs/revera/pkg/models"
	"github.com/reveralabs/revera/pkg/orchestrator"
	"github.com/reveralabs/revera/pkg/services"
	"github.com/reveralabs/revera/pkg/storage"
)

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeChats struct {
	rows    map[string]*models.Chat
	deleted []string
}

func newFakeChats() *fakeChats { return &fakeChats{rows: map[string]*models.Chat{}} }

func (f *fakeChats) add(id, userID, title string) *models.Chat {
	chat := &models.Chat{
		ID: id, UserID: userID, Title: title,
		ThreadID:  "thread-" + id,
		CreatedAt: testTime, UpdatedAt: testTime,
	}
	f.rows[id] = chat
	return chat
}

func (f *fakeChats) Create(_ context.Context, req models.CreateChatRequest) (*models.Chat, error) {
	if req.UserID == "" {
		return nil, services.NewValidationError("user_id", "required")
	}
	chat := &models.Chat{
		ID: uuid.NewString(), UserID: req.UserID, Title: req.Title,
		ThreadID:  uuid.NewString(),
		CreatedAt: testTime, UpdatedAt: testTime,
	}
	f.rows[chat.ID] = chat
	return chat, nil
}

func (f *fakeChats) Get(_ context.Context, chatID, userID string) (*models.Chat, error) {
	chat, ok := f.rows[chatID]
	if !ok || chat.UserID != userID {
		return nil, services.ErrNotFound
	}
	return chat, nil
}

func (f *fakeChats) List(_ context.Context, userID string) ([]models.ChatWithPreview, error) {
	var out []models.ChatWithPreview
	for _, chat := range f.rows {
		if chat.UserID == userID {
			out = append(out, models.ChatWithPreview{Chat: *chat})
		}
	}
	return out, nil
}

func (f *fakeChats) UpdateTitle(ctx context.Context, chatID, userID, title string) error {
	chat, err := f.Get(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if title == "" {
		return services.NewValidationError("title", "required")
	}
	chat.Title = title
	return nil
}

func (f *fakeChats) SetTitle(_ context.Context, chatID, title string) error {
	chat, ok := f.rows[chatID]
	if !ok {
		return services.ErrNotFound
	}
	chat.Title = title
	return nil
}

func (f *fakeChats) Touch(_ context.Context, chatID string) error {
	chat, ok := f.rows[chatID]
	if !ok {
		return services.ErrNotFound
	}
	chat.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *fakeChats) Delete(ctx context.Context, chatID, userID string) error {
	if _, err := f.Get(ctx, chatID, userID); err != nil {
		return err
	}
	delete(f.rows, chatID)
	f.deleted = append(f.deleted, chatID)
	return nil
}

type fakeMessages struct {
	rows    map[string]*models.Message
	order   []string
	created []models.CreateMessageRequest
}

func newFakeMessages() *fakeMessages { return &fakeMessages{rows: map[string]*models.Message{}} }

func (f *fakeMessages) add(msg models.Message) *models.Message {
	stored := msg
	f.rows[msg.ID] = &stored
	f.order = append(f.order, msg.ID)
	return &stored
}

func (f *fakeMessages) Create(_ context.Context, req models.CreateMessageRequest) (*models.Message, error) {
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	msg := &models.Message{
		ID: id, ChatID: req.ChatID, SessionID: req.SessionID,
		Query: req.Query, Answer: req.Answer, Role: req.Role,
		Sources: req.Sources, Verification: req.Verification,
		Confidence: req.Confidence, CreatedAt: testTime,
	}
	f.rows[id] = msg
	f.order = append(f.order, id)
	f.created = append(f.created, req)
	return msg, nil
}

func (f *fakeMessages) Get(_ context.Context, messageID string) (*models.Message, error) {
	msg, ok := f.rows[messageID]
	if !ok {
		return nil, services.ErrNotFound
	}
	return msg, nil
}

func (f *fakeMessages) List(_ context.Context, chatID string, _, _ int) ([]models.Message, error) {
	var out []models.Message
	for _, id := range f.order {
		if f.rows[id].ChatID == chatID {
			out = append(out, *f.rows[id])
		}
	}
	return out, nil
}

type fakeSessions struct {
	rows    map[string]*models.ResearchSession
	order   []string
	deleted []string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{rows: map[string]*models.ResearchSession{}}
}

func (f *fakeSessions) add(id, userID, query, status string) *models.ResearchSession {
	session := &models.ResearchSession{
		ID: id, UserID: userID, Query: query, Status: status, CreatedAt: testTime,
	}
	f.rows[id] = session
	f.order = append(f.order, id)
	return session
}

func (f *fakeSessions) Get(_ context.Context, sessionID string) (*models.ResearchSession, error) {
	session, ok := f.rows[sessionID]
	if !ok {
		return nil, services.ErrNotFound
	}
	return session, nil
}

func (f *fakeSessions) List(_ context.Context, filters models.SessionFilters) (*models.SessionListResponse, error) {
	var out []models.ResearchSession
	for _, id := range f.order {
		session := f.rows[id]
		if session.UserID != filters.UserID {
			continue
		}
		if filters.Status != "" && session.Status != filters.Status {
			continue
		}
		if filters.ChatID != "" && session.ChatID != filters.ChatID {
			continue
		}
		out = append(out, *session)
	}
	return &models.SessionListResponse{Sessions: out, TotalCount: len(out)}, nil
}

func (f *fakeSessions) Delete(_ context.Context, sessionID, userID string) error {
	session, ok := f.rows[sessionID]
	if !ok || session.UserID != userID {
		return services.ErrNotFound
	}
	delete(f.rows, sessionID)
	f.deleted = append(f.deleted, sessionID)
	return nil
}

type fakeAgentLogs struct {
	rows []models.AgentLog
}

func (f *fakeAgentLogs) ListForSession(_ context.Context, sessionID string) ([]models.AgentLog, error) {
	var out []models.AgentLog
	for _, row := range f.rows {
		if row.SessionID == sessionID {
			out = append(out, row)
		}
	}
	return out, nil
}

type fakeDocuments struct {
	rows  map[string]*models.Document
	order []string
}

func newFakeDocuments() *fakeDocuments { return &fakeDocuments{rows: map[string]*models.Document{}} }

func (f *fakeDocuments) add(id, userID, chatID, docType, filename string) *models.Document {
	doc := &models.Document{
		ID: id, UserID: userID, ChatID: chatID,
		Type: docType, Filename: filename, CreatedAt: testTime,
	}
	f.rows[id] = doc
	f.order = append(f.order, id)
	return doc
}

func (f *fakeDocuments) remove(id string) {
	delete(f.rows, id)
	for i, existing := range f.order {
		if existing == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
}

func (f *fakeDocuments) ListByChat(_ context.Context, chatID string) ([]models.Document, error) {
	var out []models.Document
	for _, id := range f.order {
		if f.rows[id].ChatID == chatID {
			out = append(out, *f.rows[id])
		}
	}
	return out, nil
}

func (f *fakeDocuments) ListByUser(_ context.Context, userID string) (*models.DocumentListResponse, error) {
	var out []models.Document
	for _, id := range f.order {
		if f.rows[id].UserID == userID {
			out = append(out, *f.rows[id])
		}
	}
	return &models.DocumentListResponse{Documents: out, TotalCount: len(out)}, nil
}

type fakeFeedback struct {
	rows map[string]*models.Feedback // keyed by userID+messageID
}

func newFakeFeedback() *fakeFeedback { return &fakeFeedback{rows: map[string]*models.Feedback{}} }

func (f *fakeFeedback) Upsert(_ context.Context, req models.CreateFeedbackRequest) (*models.Feedback, error) {
	if req.Rating != models.RatingUp && req.Rating != models.RatingDown {
		return nil, services.NewValidationError("rating", "must be up or down")
	}
	key := req.UserID + "/" + req.MessageID
	fb, ok := f.rows[key]
	if !ok {
		fb = &models.Feedback{
			ID: uuid.NewString(), UserID: req.UserID,
			MessageID: req.MessageID, CreatedAt: testTime,
		}
		f.rows[key] = fb
	}
	fb.Rating = req.Rating
	fb.Comment = req.Comment
	return fb, nil
}

func (f *fakeFeedback) ListForMessage(_ context.Context, messageID string) ([]models.Feedback, error) {
	var out []models.Feedback
	for _, fb := range f.rows {
		if fb.MessageID == messageID {
			out = append(out, *fb)
		}
	}
	return out, nil
}

type fakeEvents struct {
	rows []models.Event
}

func (f *fakeEvents) add(sessionID, channel string, payload map[string]any) {
	f.rows = append(f.rows, models.Event{
		ID: int64(len(f.rows) + 1), SessionID: sessionID,
		Channel: channel, Payload: payload, CreatedAt: testTime,
	})
}

func (f *fakeEvents) GetEventsSince(_ context.Context, sessionID string, sinceID int64) ([]models.Event, error) {
	var out []models.Event
	for _, row := range f.rows {
		if row.SessionID == sessionID && row.ID > sinceID {
			out = append(out, row)
		}
	}
	return out, nil
}

type fakeIngestor struct {
	docs      *fakeDocuments
	deleted   []string
	lastMime  string
	pdfErr    error
	imageErr  error
	deleteErr error
}

func (f *fakeIngestor) IngestPDF(_ context.Context, _ []byte, filename, userID, chatID string) (*models.Document, error) {
	if f.pdfErr != nil {
		return nil, f.pdfErr
	}
	return f.docs.add(uuid.NewString(), userID, chatID, models.DocumentTypePDF, filename), nil
}

func (f *fakeIngestor) IngestImage(_ context.Context, _ []byte, filename, mimeType, userID, chatID string) (*models.Document, error) {
	if f.imageErr != nil {
		return nil, f.imageErr
	}
	f.lastMime = mimeType
	return f.docs.add(uuid.NewString(), userID, chatID, models.DocumentTypeImage, filename), nil
}

func (f *fakeIngestor) DeleteDocument(_ context.Context, documentID, userID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	doc, ok := f.docs.rows[documentID]
	if !ok || doc.UserID != userID {
		return services.ErrNotFound
	}
	f.docs.remove(documentID)
	f.deleted = append(f.deleted, documentID)
	return nil
}

type fakeResearcher struct {
	payloads    []events.Payload
	streamErr   error
	result      *orchestrator.Result
	researchErr error
	lastReq     orchestrator.Request
	cancelCount int
	cancelled   []string
}

func (f *fakeResearcher) Stream(ctx context.Context, req orchestrator.Request) (*orchestrator.Run, error) {
	f.lastReq = req
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	stream := events.NewStream(len(f.payloads) + 1)
	for _, p := range f.payloads {
		if err := stream.Send(ctx, p); err != nil {
			break
		}
	}
	stream.Close()
	return &orchestrator.Run{SessionID: "session-1", MessageID: "message-1", Stream: stream}, nil
}

func (f *fakeResearcher) Research(_ context.Context, req orchestrator.Request) (*orchestrator.Result, error) {
	f.lastReq = req
	if f.researchErr != nil {
		return nil, f.researchErr
	}
	return f.result, nil
}

func (f *fakeResearcher) CancelChat(chatID string) int {
	f.cancelled = append(f.cancelled, chatID)
	return f.cancelCount
}

type fakeImages struct {
	data       []byte
	mimeType   string
	err        error
	lastPrompt string
}

func (f *fakeImages) GenerateImage(_ context.Context, prompt string) ([]byte, string, error) {
	f.lastPrompt = prompt
	if f.err != nil {
		return nil, "", f.err
	}
	return f.data, f.mimeType, nil
}

type fakeTitles struct {
	title     string
	err       error
	lastQuery string
}

func (f *fakeTitles) FromQuery(_ context.Context, query string) (string, error) {
	f.lastQuery = query
	if f.err != nil {
		return "", f.err
	}
	return f.title, nil
}

// testServer bundles a Server with its fakes for inspection.
type testServer struct {
	*Server
	chats     *fakeChats
	messages  *fakeMessages
	sessions  *fakeSessions
	agentLogs *fakeAgentLogs
	documents *fakeDocuments
	feedback  *fakeFeedback
	events    *fakeEvents
	memory    *memory.InMemoryStore
	ingestor  *fakeIngestor
	research  *fakeResearcher
	images    *fakeImages
	objects   *storage.MemStore
	titles    *fakeTitles
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ts := &testServer{
		chats:     newFakeChats(),
		messages:  newFakeMessages(),
		sessions:  newFakeSessions(),
		agentLogs: &fakeAgentLogs{},
		documents: newFakeDocuments(),
		feedback:  newFakeFeedback(),
		events:    &fakeEvents{},
		memory:    memory.NewInMemoryStore(nil),
		research:  &fakeResearcher{},
		images:    &fakeImages{data: []byte{0x89, 0x50}, mimeType: "image/png"},
		objects:   storage.NewMemStore("https://cdn.test"),
		titles:    &fakeTitles{title: "Generated Title"},
	}
	ts.ingestor = &fakeIngestor{docs: ts.documents}

	ts.Server = NewServer(Deps{
		Chats:     ts.chats,
		Messages:  ts.messages,
		Sessions:  ts.sessions,
		AgentLogs: ts.agentLogs,
		Documents: ts.documents,
		Feedback:  ts.feedback,
		Events:    ts.events,
		Memory:    ts.memory,
		Ingestor:  ts.ingestor,
		Research:  ts.research,
		Images:    ts.images,
		Objects:   ts.objects,
		Titles:    ts.titles,
	}, config.ServerConfig{
		Host:           "127.0.0.1",
		Port:           8000,
		AllowedOrigins: []string{"*"},
	}, config.ResearchConfig{
		MaxPDFSizeMB:   50,
		MaxImageSizeMB: 10,
	})
	return ts
}

// doRequest runs one request through the full router and returns the
// recorder.
func doRequest(t *testing.T, srv *Server, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

// decodeJSON unmarshals a recorder body into out.
func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out),
		"body: %s", rec.Body.String())
}

type sseEvent struct {
	id    string
	event string
	data  string
}

// parseSSE splits a recorded SSE body into its events.
func parseSSE(body string) []sseEvent {
	var out []sseEvent
	var cur sseEvent
	for _, line := range strings.Split(body, "\n") {
		switch {
		case strings.HasPrefix(line, "id:"):
			cur.id = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
		case strings.HasPrefix(line, "event:"):
			cur.event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			cur.data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		case line == "":
			if cur.event != "" || cur.data != "" {
				out = append(out, cur)
			}
			cur = sseEvent{}
		}
	}
	return out
}
