package models

import "time"

// Tool names allowed in plan steps. The set of tools in a plan governs which
// downstream graph nodes produce non-empty output.
const (
	ToolRAG          = "rag"
	ToolWeb          = "web"
	ToolSynthesis    = "synthesis"
	ToolVerification = "verification"
	ToolImageGen     = "image_gen"
)

// PlanStep is a single step in an execution plan.
type PlanStep struct {
	Tool        string         `json:"tool"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Plan is the planner's decomposition of a research query.
type Plan struct {
	Subtasks    []string       `json:"subtasks"`
	Steps       []PlanStep     `json:"steps"`
	Constraints map[string]any `json:"constraints,omitempty"`
}

// HasStep reports whether the plan contains a step using the given tool.
func (p *Plan) HasStep(tool string) bool {
	if p == nil {
		return false
	}
	for _, s := range p.Steps {
		if s.Tool == tool {
			return true
		}
	}
	return false
}

// Step returns the first step using the given tool, or nil.
func (p *Plan) Step(tool string) *PlanStep {
	if p == nil {
		return nil
	}
	for i := range p.Steps {
		if p.Steps[i].Tool == tool {
			return &p.Steps[i]
		}
	}
	return nil
}

// DefaultPlan is the fallback used when the planner produces malformed
// output: retrieve from internal documents, then synthesize.
func DefaultPlan(query string) Plan {
	return Plan{
		Subtasks: []string{query},
		Steps: []PlanStep{
			{Tool: ToolRAG, Description: "Search internal documents for: " + query},
			{Tool: ToolSynthesis, Description: "Synthesize an answer from retrieved context"},
		},
		Constraints: map[string]any{"citations_required": true},
	}
}

// InternalSource is a document chunk returned by hybrid retrieval.
// Score carries the RRF fusion score; DenseScore/SparseScore are set when the
// corresponding rank list contributed the chunk.
type InternalSource struct {
	ChunkID     string         `json:"chunk_id"`
	DocumentID  string         `json:"document_id"`
	Content     string         `json:"content"`
	Score       float64        `json:"score"`
	RRFScore    float64        `json:"rrf_score"`
	DenseScore  *float64       `json:"dense_score,omitempty"`
	SparseScore *float64       `json:"sparse_score,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// WebSource is a deduplicated, re-ranked web search result.
type WebSource struct {
	URL            string  `json:"url"`
	Title          string  `json:"title"`
	Content        string  `json:"content"`
	RawContent     string  `json:"raw_content,omitempty"`
	PublishedDate  string  `json:"published_date,omitempty"`
	Score          float64 `json:"score"`
	RelevanceScore float64 `json:"relevance_score"`
}

// ImageRef is an image attachment carried through a research session.
// Data holds the raw bytes for the multimodal synthesis path and is never
// serialized.
type ImageRef struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	URL        string `json:"url,omitempty"`
	MimeType   string `json:"mime_type,omitempty"`
	Data       []byte `json:"-"`
}

// Answer confidence labels.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// SynthesisResult is the synthesized answer with citation accounting.
// SourceMap maps the 1-based ordinal N of each "[Source N]" citation in
// Answer back to the source it references; ordinals appearing in Answer but
// missing from SourceMap are unsupported.
type SynthesisResult struct {
	Answer      string                   `json:"answer"`
	SourcesUsed []int                    `json:"sources_used"`
	Confidence  string                   `json:"confidence"`
	Sections    []string                 `json:"sections,omitempty"`
	SourceMap   map[int]NormalizedSource `json:"source_map,omitempty"`
	Reasoning   string                   `json:"reasoning,omitempty"`
}

// Verification status values.
const (
	VerificationVerified   = "verified"
	VerificationPartial    = "partially_verified"
	VerificationUnverified = "unverified"
	VerificationLow        = "low"
	VerificationFailed     = "failed"
	VerificationTimeout    = "timeout"
	VerificationError      = "error"
)

// VerifiedClaim is a claim the critic matched to a cited source.
type VerifiedClaim struct {
	Claim  string `json:"claim"`
	Source int    `json:"source"`
	Status string `json:"status"`
}

// UnsupportedClaim is a claim with no supporting source.
type UnsupportedClaim struct {
	Claim  string `json:"claim"`
	Reason string `json:"reason"`
}

// MissingCitation is a statement that should cite a source but does not.
type MissingCitation struct {
	Statement  string `json:"statement"`
	Suggestion string `json:"suggestion"`
}

// Verification is the critic's verdict on a synthesized answer.
type Verification struct {
	VerificationStatus     string             `json:"verification_status"`
	ConfidenceScore        float64            `json:"confidence_score"`
	VerifiedClaims         []VerifiedClaim    `json:"verified_claims,omitempty"`
	UnsupportedClaims      []UnsupportedClaim `json:"unsupported_claims,omitempty"`
	MissingCitations       []MissingCitation  `json:"missing_citations,omitempty"`
	CoverageGaps           []string           `json:"coverage_gaps,omitempty"`
	ConflictingInformation []string           `json:"conflicting_information,omitempty"`
	OverallAssessment      string             `json:"overall_assessment"`
}

// TimelineEntry records one agent execution within a session.
type TimelineEntry struct {
	AgentName     string         `json:"agent"`
	ResultSummary string         `json:"result_summary"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	LatencyMS     int64          `json:"latency_ms"`
	Timestamp     time.Time      `json:"timestamp"`
}

// Normalized source types.
const (
	SourceTypeInternal = "internal"
	SourceTypeWeb      = "web"
	SourceTypeImage    = "image"
)

// NormalizedSource is the uniform source shape emitted to callers and stored
// with messages. Type-specific fields are populated for exactly one type.
type NormalizedSource struct {
	Type    string  `json:"type"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`

	// internal
	ChunkID    string `json:"chunk_id,omitempty"`
	DocumentID string `json:"document_id,omitempty"`

	// web
	URL   string `json:"url,omitempty"`
	Title string `json:"title,omitempty"`

	// image
	ImageURL string `json:"image_url,omitempty"`
}
