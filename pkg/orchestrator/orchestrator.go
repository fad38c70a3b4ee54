// Package orchestrator drives research runs end to end. One run creates
// the session row, loads chat-scoped context (document scope, image
// bytes, per-agent memory), executes the research graph, and translates
// graph events into the client event stream while persisting everything
// a reconnecting client or a later reader needs: catch-up events, the
// assistant message, the session result, per-agent logs, episodic
// memories, and the chat title.
//
// The failure contract is two-tier. Losing the message row or the
// session result fails the run; every other write (agent logs, memory,
// title, catch-up events) degrades to a logged warning.
package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/reveralabs/revera/pkg/agent"
	"github.com/reveralabs/revera/pkg/config"
	"github.com/reveralabs/revera/pkg/events"
	"github.com/reveralabs/revera/pkg/graph"
	"github.com/reveralabs/revera/pkg/memory"
	"github.com/reveralabs/revera/pkg/models"
	"github.com/reveralabs/revera/pkg/storage"
)

const (
	// defaultMaxIterations applies when neither the request nor the
	// config caps refinement rounds.
	defaultMaxIterations = 2

	// defaultMaxImageContexts caps attachment images loaded per run
	// when the config leaves it unset.
	defaultMaxImageContexts = 4

	// summaryMaxLen truncates timeline summaries before they are stored
	// as agent log rows.
	summaryMaxLen = 500

	// terminalSendTimeout bounds delivery of the terminal event to a
	// consumer that may have stopped reading.
	terminalSendTimeout = 2 * time.Second

	// confidenceUnknown labels sessions whose critic never produced a
	// verdict.
	confidenceUnknown = "unknown"

	// answerFallback replaces an empty synthesis answer so the client
	// never renders a blank assistant turn.
	answerFallback = "I apologize, but I encountered an issue generating a response. " +
		"Please try rephrasing your question or contact support if this persists."
)

var (
	// ErrEmptyQuery indicates a request with no query text.
	ErrEmptyQuery = errors.New("query must not be empty")

	// ErrMissingUserID indicates a request with no user.
	ErrMissingUserID = errors.New("user id must not be empty")
)

// SessionStore persists session lifecycle transitions.
type SessionStore interface {
	Create(ctx context.Context, req models.CreateSessionRequest) (*models.ResearchSession, error)
	Complete(ctx context.Context, sessionID string, result *models.SessionResult) error
	Fail(ctx context.Context, sessionID, reason string) error
}

// MessageStore persists assistant messages.
type MessageStore interface {
	Create(ctx context.Context, req models.CreateMessageRequest) (*models.Message, error)
}

// ChatStore stores derived chat titles and activity bumps.
type ChatStore interface {
	SetTitle(ctx context.Context, chatID, title string) error
	Touch(ctx context.Context, chatID string) error
}

// AgentLogStore appends per-agent execution logs.
type AgentLogStore interface {
	Append(ctx context.Context, sessionID, agentName string, events map[string]any, latencyMS int64) (*models.AgentLog, error)
}

// EventStore persists stream events for client catch-up.
type EventStore interface {
	CreateEvent(ctx context.Context, req models.CreateEventRequest) (*models.Event, error)
}

// DocumentLister resolves a chat's document scope.
type DocumentLister interface {
	ListByChat(ctx context.Context, chatID string) ([]models.Document, error)
}

// Stores groups the persistence services a run writes to. Sessions,
// Messages, and Documents are required; the rest may be nil, which
// disables the corresponding write.
type Stores struct {
	Sessions  SessionStore
	Messages  MessageStore
	Chats     ChatStore
	AgentLogs AgentLogStore
	Events    EventStore
	Documents DocumentLister
}

// Options carries the optional collaborators and tuning of an
// Orchestrator.
type Options struct {
	// Memory is the episodic memory store. Nil disables memory loads
	// and writes.
	Memory memory.Store

	// Blobs resolves image attachment bytes. Nil disables image
	// context loading.
	Blobs storage.ObjectStore

	// Titles derives chat titles after a run. Nil disables title
	// updates.
	Titles *TitleGenerator

	// Graph is extra engine options (metrics, step caps) applied after
	// the config-derived ones.
	Graph []graph.Option
}

// Orchestrator executes research runs. It is safe for concurrent use;
// each call to Stream gets its own graph run, session, and event
// stream.
type Orchestrator struct {
	engine *graph.Engine[agent.ResearchState, agent.StateDelta]
	stores Stores
	memory memory.Store
	blobs  storage.ObjectStore
	titles *TitleGenerator
	cfg    config.ResearchConfig
	active *activeRuns
}

// New compiles the research graph once and returns an orchestrator
// bound to the given stores.
func New(deps agent.Deps, stores Stores, cfg config.ResearchConfig, opts Options) (*Orchestrator, error) {
	if deps.Generator == nil {
		return nil, errors.New("orchestrator requires a generator")
	}
	if deps.Retriever == nil {
		return nil, errors.New("orchestrator requires a retriever")
	}
	if stores.Sessions == nil || stores.Messages == nil || stores.Documents == nil {
		return nil, errors.New("orchestrator requires session, message, and document stores")
	}

	if deps.TopK <= 0 {
		deps.TopK = cfg.TopK
	}
	if deps.CriticTimeout <= 0 {
		deps.CriticTimeout = cfg.CriticTimeout
	}

	var graphOpts []graph.Option
	if cfg.MaxGraphSteps > 0 {
		graphOpts = append(graphOpts, graph.WithMaxSteps(cfg.MaxGraphSteps))
	}
	if cfg.EventBuffer > 0 {
		graphOpts = append(graphOpts, graph.WithEventBuffer(cfg.EventBuffer))
	}
	graphOpts = append(graphOpts, opts.Graph...)

	engine, err := agent.BuildResearchGraph(deps, graphOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build research graph: %w", err)
	}

	return &Orchestrator{
		engine: engine,
		stores: stores,
		memory: opts.Memory,
		blobs:  opts.Blobs,
		titles: opts.Titles,
		cfg:    cfg,
		active: newActiveRuns(),
	}, nil
}

// Request describes one research run.
type Request struct {
	Query  string
	UserID string

	// ChatID scopes the run to a chat. When set, retrieval is limited
	// to the chat's documents, the answer is persisted as a message,
	// and the chat title is refreshed.
	ChatID string

	// ThreadID overrides the memory thread. Empty derives it from the
	// chat.
	ThreadID string

	// UseWeb permits the web search stage.
	UseWeb bool

	// DocumentIDs narrows retrieval for chat-less runs. Ignored when
	// ChatID is set: the chat's own documents always win.
	DocumentIDs []string

	// MaxIterations caps refinement rounds. Zero uses the configured
	// default.
	MaxIterations int
}

// Run is a started research run. Events arrives on Stream until the
// terminal event, after which the channel closes.
type Run struct {
	SessionID string
	MessageID string
	Stream    *events.Stream
}

// runState carries the mutable bookkeeping of one drive loop.
type runState struct {
	req      Request
	run      *Run
	threadID string
	started  time.Time
	logger   *slog.Logger

	thinking    strings.Builder
	lastSources []models.NormalizedSource
}

// Stream starts a research run and returns immediately. The session row
// is created before this returns; a creation failure means no run
// happened and nothing was streamed. Cancelling ctx aborts the run.
func (o *Orchestrator) Stream(ctx context.Context, req Request) (*Run, error) {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return nil, ErrEmptyQuery
	}
	if strings.TrimSpace(req.UserID) == "" {
		return nil, ErrMissingUserID
	}

	threadID := req.ThreadID
	if threadID == "" && req.ChatID != "" {
		threadID = "chat-" + req.ChatID
	}

	sessionID := uuid.New().String()
	if _, err := o.stores.Sessions.Create(ctx, models.CreateSessionRequest{
		ID:       sessionID,
		UserID:   req.UserID,
		ChatID:   req.ChatID,
		ThreadID: threadID,
		Query:    req.Query,
	}); err != nil {
		return nil, fmt.Errorf("failed to create research session: %w", err)
	}

	run := &Run{
		SessionID: sessionID,
		MessageID: uuid.New().String(),
		Stream:    events.NewStream(o.cfg.EventBuffer),
	}
	go o.drive(ctx, req, run, threadID)
	return run, nil
}

// drive is the run goroutine: context load, graph execution, event
// translation, and terminal persistence.
func (o *Orchestrator) drive(ctx context.Context, req Request, run *Run, threadID string) {
	defer run.Stream.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	o.active.register(run.SessionID, req.ChatID, cancel)
	defer o.active.unregister(run.SessionID)

	rs := &runState{
		req:      req,
		run:      run,
		threadID: threadID,
		started:  time.Now(),
		logger: slog.With(
			"session_id", run.SessionID,
			"chat_id", req.ChatID,
			"user_id", req.UserID),
	}
	rs.logger.Info("Research run started", "query", req.Query, "use_web", req.UseWeb)

	initial, err := o.loadContext(runCtx, rs)
	if err != nil {
		o.finishFailed(rs, err)
		return
	}

	o.emit(runCtx, rs, events.MessageIDPayload{
		Type:      events.TypeMessageID,
		MessageID: run.MessageID,
		Timestamp: events.Now(),
	})

	evCh, outCh := o.engine.Execute(runCtx, initial)
	for ev := range evCh {
		o.handleGraphEvent(runCtx, rs, ev)
	}

	out := <-outCh
	if out.Err != nil {
		o.finishFailed(rs, out.Err)
		return
	}
	o.finishCompleted(runCtx, rs, out.State)
}

// loadContext assembles the initial graph state: request fields, the
// chat's authoritative document scope, attached image bytes, and each
// agent's episodic memory window.
func (o *Orchestrator) loadContext(ctx context.Context, rs *runState) (agent.ResearchState, error) {
	req := rs.req
	state := agent.ResearchState{
		Query:         req.Query,
		UserID:        req.UserID,
		ChatID:        req.ChatID,
		ThreadID:      rs.threadID,
		SessionID:     rs.run.SessionID,
		UseWeb:        req.UseWeb,
		DocumentIDs:   req.DocumentIDs,
		MaxIterations: req.MaxIterations,
	}
	if state.MaxIterations <= 0 {
		state.MaxIterations = o.cfg.MaxIterations
	}
	if state.MaxIterations <= 0 {
		state.MaxIterations = defaultMaxIterations
	}

	if req.ChatID != "" {
		docs, err := o.stores.Documents.ListByChat(ctx, req.ChatID)
		if err != nil {
			return state, fmt.Errorf("failed to scope retrieval to chat documents: %w", err)
		}
		state.DocumentIDs = documentIDs(docs)
		state.ImageContexts = o.loadImages(ctx, rs, docs)
	}

	if o.memory != nil {
		state.MemoryContext = memory.BuildContext(ctx, o.memory, req.UserID, req.ChatID, req.Query)
	}
	return state, nil
}

// loadImages fetches the raw bytes of the chat's image attachments so
// synthesis can reason over them inline. Best-effort: an unreadable blob
// skips that image.
func (o *Orchestrator) loadImages(ctx context.Context, rs *runState, docs []models.Document) []models.ImageRef {
	if o.blobs == nil {
		return nil
	}
	limit := o.cfg.MaxImageContexts
	if limit <= 0 {
		limit = defaultMaxImageContexts
	}

	var refs []models.ImageRef
	for _, doc := range docs {
		if doc.Type != models.DocumentTypeImage {
			continue
		}
		if len(refs) >= limit {
			break
		}
		data, err := o.blobs.Get(ctx, storage.UploadKey(rs.req.UserID, doc.ID, doc.Filename))
		if err != nil {
			rs.logger.Warn("Skipping unreadable image attachment", "document_id", doc.ID, "error", err)
			continue
		}
		refs = append(refs, models.ImageRef{
			DocumentID: doc.ID,
			Filename:   doc.Filename,
			URL:        doc.ImageURL,
			MimeType:   mimeFromMetadata(doc.Metadata),
			Data:       data,
		})
	}
	return refs
}

// handleGraphEvent translates one graph event into stream payloads and
// accumulates what the terminal persistence needs.
func (o *Orchestrator) handleGraphEvent(ctx context.Context, rs *runState, ev graph.Event) {
	switch ev.Type {
	case graph.EventNodeStart:
		o.emit(ctx, rs, events.AgentStatusPayload{
			Type:      events.TypeAgentStatus,
			Node:      ev.Node,
			Status:    events.StatusRunning,
			Timestamp: events.Now(),
		})
	case graph.EventNodeEnd:
		o.emit(ctx, rs, events.AgentStatusPayload{
			Type:      events.TypeAgentStatus,
			Node:      ev.Node,
			Status:    nodeEndStatus(ev),
			Timestamp: events.Now(),
		})
	case graph.EventCustom:
		p, ok := ev.Payload.(events.Payload)
		if !ok {
			rs.logger.Warn("Dropping custom event with unexpected payload", "node", ev.Node, "name", ev.Name)
			return
		}
		switch tp := p.(type) {
		case events.ThoughtChunkPayload:
			rs.thinking.WriteString(tp.Text)
		case events.SourcesPayload:
			rs.lastSources = tp.Sources
		}
		o.emit(ctx, rs, p)
	}
}

// nodeEndStatus maps a node_end event to the client-facing status. The
// critic reports timeouts and provider failures through its verification
// delta rather than a node error, so both surface here.
func nodeEndStatus(ev graph.Event) string {
	if ev.Err != nil {
		return events.StatusError
	}
	if ev.Node == agent.NodeCritic {
		if d, ok := ev.Payload.(agent.StateDelta); ok && d.Verification != nil {
			switch d.Verification.VerificationStatus {
			case models.VerificationTimeout:
				return events.StatusTimeout
			case models.VerificationError:
				return events.StatusError
			}
		}
	}
	return events.StatusComplete
}

// finishCompleted persists the outcome of a successful graph run and
// sends the terminal complete event.
func (o *Orchestrator) finishCompleted(ctx context.Context, rs *runState, final agent.ResearchState) {
	answer := answerFallback
	if final.Synthesis != nil && final.Synthesis.Answer != "" {
		answer = final.Synthesis.Answer
	}

	images := final.ImageContexts
	if final.GeneratedImageURL != "" {
		generated := models.ImageRef{Filename: "Generated Image", URL: final.GeneratedImageURL}
		images = append(append([]models.ImageRef{}, images...), generated)
	}
	allSources := agent.NormalizeAll(final.InternalSources, final.WebSources, images)

	// The authoritative fused list goes out as soon as synthesis is
	// done rather than waiting on persistence. Skipped when it would
	// duplicate the list the client already has.
	if len(allSources) > 0 && !sameSources(rs.lastSources, allSources) {
		o.emit(ctx, rs, events.SourcesPayload{
			Type:      events.TypeSources,
			Sources:   allSources,
			Timestamp: events.Now(),
		})
	}

	confidence := confidenceUnknown
	if final.Verification != nil && final.Verification.VerificationStatus != "" {
		confidence = final.Verification.VerificationStatus
	}
	latency := time.Since(rs.started).Milliseconds()

	// Persistence below uses a background context: the caller may
	// disconnect right as the run completes, and a finished run is
	// always recorded.
	persistCtx := context.Background()

	if rs.req.ChatID != "" {
		_, err := o.stores.Messages.Create(persistCtx, models.CreateMessageRequest{
			ID:            rs.run.MessageID,
			ChatID:        rs.req.ChatID,
			SessionID:     rs.run.SessionID,
			Query:         rs.req.Query,
			Answer:        answer,
			Role:          models.RoleAssistant,
			Thinking:      rs.thinking.String(),
			Sources:       allSources,
			Verification:  final.Verification,
			Confidence:    confidence,
			AgentTimeline: final.Timeline,
		})
		if err != nil {
			o.finishFailed(rs, fmt.Errorf("failed to persist message: %w", err))
			return
		}
		// Bump the chat so list views sort it by latest activity even
		// when the title refresh below fails.
		if o.stores.Chats != nil {
			if err := o.stores.Chats.Touch(persistCtx, rs.req.ChatID); err != nil {
				rs.logger.Warn("Failed to touch chat", "error", err)
			}
		}
	}

	if err := o.stores.Sessions.Complete(persistCtx, rs.run.SessionID, &models.SessionResult{
		Answer:         answer,
		Sources:        allSources,
		Verification:   final.Verification,
		Confidence:     confidence,
		TotalLatencyMS: latency,
	}); err != nil {
		o.finishFailed(rs, fmt.Errorf("failed to complete session: %w", err))
		return
	}

	o.writeAgentLogs(rs, final.Timeline)
	o.writeMemories(rs, final)
	o.updateTitle(ctx, rs)

	o.sendTerminal(rs, events.CompletePayload{
		Type:           events.TypeComplete,
		MessageID:      rs.run.MessageID,
		SessionID:      rs.run.SessionID,
		Answer:         answer,
		Confidence:     confidence,
		TotalLatencyMS: latency,
		Sources:        allSources,
		Verification:   final.Verification,
		Timestamp:      events.Now(),
	})

	rs.logger.Info("Research run completed",
		"confidence", confidence,
		"sources", len(allSources),
		"iterations", final.IterationCount,
		"latency_ms", latency)
}

// writeAgentLogs stores one log row per timeline entry. Each entry is
// independent; a failing row is logged and the rest still land.
func (o *Orchestrator) writeAgentLogs(rs *runState, timeline []models.TimelineEntry) {
	if o.stores.AgentLogs == nil {
		return
	}
	for _, entry := range timeline {
		logEvents := map[string]any{
			"result_summary": truncate(entry.ResultSummary, summaryMaxLen),
		}
		if entry.Metadata != nil {
			logEvents["metadata"] = entry.Metadata
		}
		if _, err := o.stores.AgentLogs.Append(context.Background(), rs.run.SessionID, entry.AgentName, logEvents, entry.LatencyMS); err != nil {
			rs.logger.Warn("Failed to append agent log", "agent", entry.AgentName, "error", err)
		}
	}
}

// writeMemories stores one episodic memory per agent from the final
// state. An extractor returning nil means that agent produced nothing
// worth remembering this run.
func (o *Orchestrator) writeMemories(rs *runState, final agent.ResearchState) {
	if o.memory == nil {
		return
	}
	for _, agentName := range memory.ResearchAgents {
		var value map[string]any
		switch agentName {
		case memory.AgentPlanner:
			value = memory.ExtractPlanner(final.Plan)
		case memory.AgentRetrieval:
			value = memory.ExtractRetrieval(final.InternalSources)
		case memory.AgentSynthesis:
			value = memory.ExtractSynthesis(final.Synthesis)
		case memory.AgentCritic:
			value = memory.ExtractCritic(final.Verification)
		}
		if value == nil {
			continue
		}
		value["query"] = rs.req.Query
		ns := memory.Episodic(rs.req.UserID, rs.req.ChatID, agentName)
		if err := o.memory.Put(context.Background(), ns, rs.run.SessionID, value); err != nil {
			rs.logger.Warn("Failed to store agent memory", "agent", agentName, "error", err)
		}
	}
}

// updateTitle derives the chat title from the query, stores it, and
// announces it on the stream. Every run refreshes the title so the chat
// list tracks the latest topic.
func (o *Orchestrator) updateTitle(ctx context.Context, rs *runState) {
	if rs.req.ChatID == "" || o.titles == nil || o.stores.Chats == nil {
		return
	}
	title, err := o.titles.FromQuery(ctx, rs.req.Query)
	if err != nil {
		rs.logger.Warn("Failed to generate chat title", "error", err)
		return
	}
	if err := o.stores.Chats.SetTitle(ctx, rs.req.ChatID, title); err != nil {
		rs.logger.Warn("Failed to store chat title", "error", err)
		return
	}
	o.emit(ctx, rs, events.TitleUpdatedPayload{
		Type:      events.TypeTitleUpdated,
		ChatID:    rs.req.ChatID,
		Title:     title,
		Timestamp: events.Now(),
	})
}

// finishFailed marks the session failed and sends the terminal error
// event. Used for graph errors, cancellation, and lost required writes.
func (o *Orchestrator) finishFailed(rs *runState, cause error) {
	reason := failureReason(cause)
	rs.logger.Error("Research run failed",
		"error", cause,
		"latency_ms", time.Since(rs.started).Milliseconds())

	// Background context: the run context is typically already
	// cancelled on this path.
	if err := o.stores.Sessions.Fail(context.Background(), rs.run.SessionID, reason); err != nil {
		rs.logger.Error("Failed to mark session failed", "error", err)
	}

	o.sendTerminal(rs, events.ErrorPayload{
		Type:      events.TypeError,
		Message:   reason,
		Timestamp: events.Now(),
	})
}

// failureReason maps run-ending errors to the client-facing message.
func failureReason(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "research cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "research timed out"
	default:
		return err.Error()
	}
}

// sendTerminal persists the terminal payload for catch-up, then tries
// to deliver it live under a short deadline of its own.
func (o *Orchestrator) sendTerminal(rs *runState, p events.Payload) {
	o.persistEvent(rs, p)

	ctx, cancel := context.WithTimeout(context.Background(), terminalSendTimeout)
	defer cancel()
	if err := rs.run.Stream.Send(ctx, p); err != nil {
		rs.logger.Warn("Terminal event not delivered", "event", p.EventType(), "error", err)
	}
}

// emit records a payload for catch-up and sends it to the live stream.
// A send failure on a cancelled run is expected; the graph observes the
// same cancellation and winds down.
func (o *Orchestrator) emit(ctx context.Context, rs *runState, p events.Payload) {
	o.persistEvent(rs, p)
	if err := rs.run.Stream.Send(ctx, p); err != nil && ctx.Err() == nil {
		rs.logger.Warn("Failed to deliver event", "event", p.EventType(), "error", err)
	}
}

// persistEvent writes one non-transient payload to the events table so
// reconnecting clients can catch up.
func (o *Orchestrator) persistEvent(rs *runState, p events.Payload) {
	if o.stores.Events == nil || events.Transient(p) {
		return
	}
	payload, err := payloadMap(p)
	if err != nil {
		rs.logger.Warn("Failed to encode event for catch-up", "event", p.EventType(), "error", err)
		return
	}
	if _, err := o.stores.Events.CreateEvent(context.Background(), models.CreateEventRequest{
		SessionID: rs.run.SessionID,
		Channel:   p.EventType(),
		Payload:   payload,
	}); err != nil {
		rs.logger.Warn("Failed to persist event for catch-up", "event", p.EventType(), "error", err)
	}
}

// Result is the condensed outcome of a drained research run, for
// callers that do not consume the live stream.
type Result struct {
	SessionID      string
	MessageID      string
	Query          string
	Answer         string
	Sources        []models.NormalizedSource
	Verification   *models.Verification
	Confidence     string
	TotalLatencyMS int64
}

// Research runs a full research pass and blocks until it finishes,
// discarding intermediate events. The HTTP API consumes Stream
// directly; this is for callers that only want the final answer.
func (o *Orchestrator) Research(ctx context.Context, req Request) (*Result, error) {
	run, err := o.Stream(ctx, req)
	if err != nil {
		return nil, err
	}

	var done *events.CompletePayload
	var failed *events.ErrorPayload
	for p := range run.Stream.Events() {
		switch tp := p.(type) {
		case events.CompletePayload:
			done = &tp
		case events.ErrorPayload:
			failed = &tp
		}
	}
	if failed != nil {
		return nil, fmt.Errorf("research failed: %s", failed.Message)
	}
	if done == nil {
		return nil, errors.New("research stream ended without a terminal event")
	}

	return &Result{
		SessionID:      done.SessionID,
		MessageID:      done.MessageID,
		Query:          strings.TrimSpace(req.Query),
		Answer:         done.Answer,
		Sources:        done.Sources,
		Verification:   done.Verification,
		Confidence:     done.Confidence,
		TotalLatencyMS: done.TotalLatencyMS,
	}, nil
}

// Cancel aborts the run with the given session ID. Returns false when
// no such run is active.
func (o *Orchestrator) Cancel(sessionID string) bool {
	return o.active.cancel(sessionID)
}

// CancelChat aborts every active run in a chat and returns how many
// were signalled.
func (o *Orchestrator) CancelChat(chatID string) int {
	return o.active.cancelChat(chatID)
}

// ActiveRuns reports how many research runs are executing right now.
func (o *Orchestrator) ActiveRuns() int {
	return o.active.count()
}

// documentIDs extracts the ID of every chat document. An empty chat
// returns nil, which leaves retrieval scoped to the user only.
func documentIDs(docs []models.Document) []string {
	if len(docs) == 0 {
		return nil
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids
}

// mimeFromMetadata pulls the stored MIME type off a document row.
func mimeFromMetadata(meta map[string]any) string {
	if v, ok := meta["mime_type"].(string); ok {
		return v
	}
	return ""
}

// sameSources reports whether two normalized source lists are
// byte-identical once encoded, in which case re-sending is a duplicate.
func sameSources(a, b []models.NormalizedSource) bool {
	if len(a) != len(b) {
		return false
	}
	ja, err := json.Marshal(a)
	if err != nil {
		return false
	}
	jb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ja, jb)
}

// payloadMap round-trips a typed payload through JSON into the generic
// map shape the events table stores.
func payloadMap(p events.Payload) (map[string]any, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// truncate clips s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
