package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/reveralabs/revera/pkg/agent"
	"github.com/reveralabs/revera/pkg/config"
	"github.com/reveralabs/revera/pkg/events"
	"github.com/reveralabs/revera/pkg/llm"
	"github.com/reveralabs/revera/pkg/memory"
	"github.com/reveralabs/revera/pkg/models"
	"github.com/reveralabs/revera/pkg/storage"
)

// jsonReply scripts one GenerateJSON response. A blocking reply parks
// until the call's context ends and then returns its error, which is
// how a stuck critic is simulated.
type jsonReply struct {
	out   string
	err   error
	block bool
}

// fakeGenerator scripts the LLM surface. Replies are consumed in FIFO
// order; requests are recorded under a mutex because graph nodes run
// concurrently.
type fakeGenerator struct {
	mu sync.Mutex

	jsonReplies []jsonReply
	jsonReqs    []llm.GenerateRequest

	streams [][]llm.Chunk
	// hangStreams makes GenerateStream park until cancellation, then
	// surface the context error as an ErrorChunk, like the real
	// gateway does when its request is torn down.
	hangStreams bool
	streamReqs  []llm.GenerateRequest

	textReply string
	textErr   error
	textReqs  []llm.GenerateRequest

	imageData    []byte
	imageMIME    string
	imageErr     error
	imagePrompts []string
}

func (f *fakeGenerator) Generate(ctx context.Context, req llm.GenerateRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.textReqs = append(f.textReqs, req)
	return f.textReply, f.textErr
}

func (f *fakeGenerator) GenerateJSON(ctx context.Context, req llm.GenerateRequest) (string, error) {
	f.mu.Lock()
	f.jsonReqs = append(f.jsonReqs, req)
	if len(f.jsonReplies) == 0 {
		f.mu.Unlock()
		return "{}", nil
	}
	r := f.jsonReplies[0]
	f.jsonReplies = f.jsonReplies[1:]
	f.mu.Unlock()

	if r.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return r.out, r.err
}

func (f *fakeGenerator) GenerateStream(ctx context.Context, req llm.GenerateRequest) (<-chan llm.Chunk, error) {
	f.mu.Lock()
	f.streamReqs = append(f.streamReqs, req)
	hang := f.hangStreams
	var chunks []llm.Chunk
	if !hang && len(f.streams) > 0 {
		chunks = f.streams[0]
		f.streams = f.streams[1:]
	}
	f.mu.Unlock()

	if hang {
		out := make(chan llm.Chunk, 1)
		go func() {
			<-ctx.Done()
			out <- &llm.ErrorChunk{Message: ctx.Err().Error()}
			close(out)
		}()
		return out, nil
	}

	out := make(chan llm.Chunk, len(chunks))
	for _, c := range chunks {
		out <- c
	}
	close(out)
	return out, nil
}

func (f *fakeGenerator) GenerateImage(ctx context.Context, prompt string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imagePrompts = append(f.imagePrompts, prompt)
	if f.imageErr != nil {
		return nil, "", f.imageErr
	}
	return f.imageData, f.imageMIME, nil
}

func (f *fakeGenerator) streamRequests() []llm.GenerateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.GenerateRequest(nil), f.streamReqs...)
}

// retrievalCall records one Retriever.Search invocation.
type retrievalCall struct {
	query   string
	userID  string
	topK    int
	docIDs  []string
	rewrite bool
}

type fakeRetriever struct {
	mu        sync.Mutex
	sources   []models.InternalSource
	rewritten string
	err       error
	calls     []retrievalCall
}

func (f *fakeRetriever) Search(ctx context.Context, query, userID string, topK int, documentIDs []string, rewrite bool) ([]models.InternalSource, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, retrievalCall{query, userID, topK, documentIDs, rewrite})
	if f.err != nil {
		return nil, "", f.err
	}
	return f.sources, f.rewritten, nil
}

func (f *fakeRetriever) recorded() []retrievalCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]retrievalCall(nil), f.calls...)
}

type fakeWebSearcher struct {
	mu      sync.Mutex
	results []models.WebSource
	answer  string
	err     error
	queries []string
}

func (f *fakeWebSearcher) Search(ctx context.Context, query string) ([]models.WebSource, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, "", f.err
	}
	return f.results, f.answer, nil
}

// fakeSessions records session lifecycle transitions.
type fakeSessions struct {
	mu          sync.Mutex
	created     []models.CreateSessionRequest
	createErr   error
	completed   map[string]*models.SessionResult
	completeErr error
	failed      map[string]string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		completed: make(map[string]*models.SessionResult),
		failed:    make(map[string]string),
	}
}

func (f *fakeSessions) Create(ctx context.Context, req models.CreateSessionRequest) (*models.ResearchSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	return &models.ResearchSession{ID: req.ID, UserID: req.UserID, ChatID: req.ChatID, Query: req.Query, Status: models.SessionStatusRunning}, nil
}

func (f *fakeSessions) Complete(ctx context.Context, sessionID string, result *models.SessionResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completeErr != nil {
		return f.completeErr
	}
	f.completed[sessionID] = result
	return nil
}

func (f *fakeSessions) Fail(ctx context.Context, sessionID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[sessionID] = reason
	return nil
}

func (f *fakeSessions) completedResult(sessionID string) *models.SessionResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed[sessionID]
}

func (f *fakeSessions) failedReason(sessionID string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.failed[sessionID]
	return r, ok
}

type fakeMessages struct {
	mu      sync.Mutex
	created []models.CreateMessageRequest
	err     error
}

func (f *fakeMessages) Create(ctx context.Context, req models.CreateMessageRequest) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, req)
	return &models.Message{ID: req.ID, ChatID: req.ChatID, SessionID: req.SessionID}, nil
}

func (f *fakeMessages) rows() []models.CreateMessageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.CreateMessageRequest(nil), f.created...)
}

type fakeChats struct {
	mu      sync.Mutex
	titles  map[string]string
	touched []string
	err     error
}

func newFakeChats() *fakeChats {
	return &fakeChats{titles: make(map[string]string)}
}

func (f *fakeChats) SetTitle(ctx context.Context, chatID, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.titles[chatID] = title
	return nil
}

func (f *fakeChats) Touch(ctx context.Context, chatID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.touched = append(f.touched, chatID)
	return nil
}

func (f *fakeChats) title(chatID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.titles[chatID]
}

type logEntry struct {
	sessionID string
	agentName string
	events    map[string]any
	latencyMS int64
}

type fakeLogs struct {
	mu      sync.Mutex
	entries []logEntry
}

func (f *fakeLogs) Append(ctx context.Context, sessionID, agentName string, logEvents map[string]any, latencyMS int64) (*models.AgentLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, logEntry{sessionID, agentName, logEvents, latencyMS})
	return &models.AgentLog{SessionID: sessionID, AgentName: agentName, Events: logEvents, LatencyMS: latencyMS}, nil
}

func (f *fakeLogs) agents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.entries))
	for i, e := range f.entries {
		names[i] = e.agentName
	}
	return names
}

type fakeEvents struct {
	mu   sync.Mutex
	rows []models.CreateEventRequest
}

func (f *fakeEvents) CreateEvent(ctx context.Context, req models.CreateEventRequest) (*models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, req)
	return &models.Event{ID: int64(len(f.rows)), SessionID: req.SessionID, Channel: req.Channel, Payload: req.Payload}, nil
}

func (f *fakeEvents) channels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.rows))
	for i, r := range f.rows {
		out[i] = r.Channel
	}
	return out
}

type fakeDocs struct {
	mu     sync.Mutex
	byChat map[string][]models.Document
	err    error
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{byChat: make(map[string][]models.Document)}
}

func (f *fakeDocs) ListByChat(ctx context.Context, chatID string) ([]models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.byChat[chatID], nil
}

// fixture wires an orchestrator to in-memory fakes for every store.
type fixture struct {
	gen      *fakeGenerator
	ret      *fakeRetriever
	web      *fakeWebSearcher
	sessions *fakeSessions
	messages *fakeMessages
	chats    *fakeChats
	logs     *fakeLogs
	events   *fakeEvents
	docs     *fakeDocs
	mem      *memory.InMemoryStore
	blobs    *storage.MemStore
	orch     *Orchestrator
}

func testConfig() config.ResearchConfig {
	return config.ResearchConfig{
		TopK:          5,
		MaxIterations: 2,
		EventBuffer:   256,
		CriticTimeout: 5 * time.Second,
		MemoryWindow:  10,
	}
}

func newFixture(t *testing.T, gen *fakeGenerator, ret *fakeRetriever, web *fakeWebSearcher, cfg config.ResearchConfig) *fixture {
	t.Helper()
	f := &fixture{
		gen:      gen,
		ret:      ret,
		web:      web,
		sessions: newFakeSessions(),
		messages: &fakeMessages{},
		chats:    newFakeChats(),
		logs:     &fakeLogs{},
		events:   &fakeEvents{},
		docs:     newFakeDocs(),
		mem:      memory.NewInMemoryStore(nil),
		blobs:    storage.NewMemStore("https://cdn.example"),
	}
	deps := agent.Deps{Generator: gen, Retriever: ret, Web: web, Images: f.blobs}
	stores := Stores{
		Sessions:  f.sessions,
		Messages:  f.messages,
		Chats:     f.chats,
		AgentLogs: f.logs,
		Events:    f.events,
		Documents: f.docs,
	}
	opts := Options{Memory: f.mem, Blobs: f.blobs, Titles: NewTitleGenerator(nil)}
	orch, err := New(deps, stores, cfg, opts)
	require.NoError(t, err)
	f.orch = orch
	return f
}

// collect drains the run's stream until it closes, invoking onEvent for
// each payload as it arrives.
func collect(t *testing.T, run *Run, onEvent func(events.Payload)) []events.Payload {
	t.Helper()
	var got []events.Payload
	deadline := time.After(10 * time.Second)
	for {
		select {
		case p, ok := <-run.Stream.Events():
			if !ok {
				return got
			}
			got = append(got, p)
			if onEvent != nil {
				onEvent(p)
			}
		case <-deadline:
			t.Fatal("timed out waiting for the event stream to close")
		}
	}
}

func payloadsOfType(ps []events.Payload, eventType string) []events.Payload {
	var out []events.Payload
	for _, p := range ps {
		if p.EventType() == eventType {
			out = append(out, p)
		}
	}
	return out
}

func statusesFor(ps []events.Payload, node string) []string {
	var out []string
	for _, p := range ps {
		if s, ok := p.(events.AgentStatusPayload); ok && s.Node == node {
			out = append(out, s.Status)
		}
	}
	return out
}

func completeOf(t *testing.T, ps []events.Payload) events.CompletePayload {
	t.Helper()
	terminal := payloadsOfType(ps, events.TypeComplete)
	require.Len(t, terminal, 1)
	return terminal[0].(events.CompletePayload)
}

func chunkSource(id, doc, content string, score float64) models.InternalSource {
	return models.InternalSource{ChunkID: id, DocumentID: doc, Content: content, Score: score}
}

func planJSON(tools ...string) string {
	steps := ""
	for i, tool := range tools {
		if i > 0 {
			steps += ","
		}
		steps += `{"tool":"` + tool + `","description":"step ` + tool + `"}`
	}
	return `{"subtasks":["s1"],"steps":[` + steps + `],"constraints":{"citations_required":true}}`
}

func verdictJSON(status string, score float64) string {
	return fmt.Sprintf(`{"verification_status":%q,"confidence_score":%v,"overall_assessment":"checked"}`, status, score)
}
