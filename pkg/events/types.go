// Package events defines the research event stream: the typed payloads a
// research run emits and the bounded Stream that carries them to exactly
// one consumer (the SSE handler or a draining caller).
//
// ════════════════════════════════════════════════════════════════
// Stream Event Lifecycle
// ════════════════════════════════════════════════════════════════
//
// Every run emits events in this shape:
//
//	message_id      {message_id}            (once, first event)
//	agent_status    {node, status}          (per node transition)
//	thought_chunk   {text}                  (repeated, transient)
//	answer_chunk    {text}                  (repeated, transient)
//	sources         {sources}               (as evidence arrives)
//	quick_answer    {answer, source}        (optional, pre-synthesis)
//	title_updated   {title}                 (optional, near the end)
//	complete | error                        (exactly one, terminal)
//
// Chunk events are high-frequency and ephemeral: a client that
// reconnects mid-run loses deltas but receives the full answer in the
// terminal complete event. All other events are persisted for catch-up.
//
// Exactly one terminal event is delivered per run; the Stream enforces
// this and rejects any payload sent after it.
// ════════════════════════════════════════════════════════════════
package events

// Event types carried on the stream.
const (
	TypeMessageID    = "message_id"
	TypeAgentStatus  = "agent_status"
	TypeThoughtChunk = "thought_chunk"
	TypeAnswerChunk  = "answer_chunk"
	TypeSources      = "sources"
	TypeQuickAnswer  = "quick_answer"
	TypeTitleUpdated = "title_updated"
	TypeComplete     = "complete"
	TypeError        = "error"
)

// Agent status values (used in AgentStatusPayload.Status).
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusTimeout  = "timeout"
	StatusError    = "error"
)

// Payload is implemented by every stream payload type.
type Payload interface {
	// EventType returns the wire event name (one of the Type constants).
	EventType() string
}

// IsTerminal reports whether the payload ends the stream.
func IsTerminal(p Payload) bool {
	t := p.EventType()
	return t == TypeComplete || t == TypeError
}

// Transient reports whether the payload is a high-frequency chunk that
// should not be persisted for catch-up.
func Transient(p Payload) bool {
	t := p.EventType()
	return t == TypeThoughtChunk || t == TypeAnswerChunk
}
