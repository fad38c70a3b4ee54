package agent

import (
	"context"
	"sync"

	"github.com/reveralabs/revera/pkg/graph"
	"github.com/reveralabs/revera/pkg/llm"
	"github.com/reveralabs/revera/pkg/models"
)

// jsonReply scripts one GenerateJSON response.
type jsonReply struct {
	out string
	err error
}

// fakeGenerator scripts the LLM surface. Replies are consumed in FIFO
// order; requests are recorded under a mutex because graph nodes run
// concurrently.
type fakeGenerator struct {
	mu sync.Mutex

	jsonReplies []jsonReply
	jsonReqs    []llm.GenerateRequest

	streams    [][]llm.Chunk
	streamErr  error
	streamReqs []llm.GenerateRequest

	imageData    []byte
	imageMIME    string
	imageErr     error
	imagePrompts []string
}

func (f *fakeGenerator) Generate(ctx context.Context, req llm.GenerateRequest) (string, error) {
	return "", nil
}

func (f *fakeGenerator) GenerateJSON(ctx context.Context, req llm.GenerateRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jsonReqs = append(f.jsonReqs, req)
	if len(f.jsonReplies) == 0 {
		return "{}", nil
	}
	r := f.jsonReplies[0]
	f.jsonReplies = f.jsonReplies[1:]
	return r.out, r.err
}

func (f *fakeGenerator) GenerateStream(ctx context.Context, req llm.GenerateRequest) (<-chan llm.Chunk, error) {
	f.mu.Lock()
	f.streamReqs = append(f.streamReqs, req)
	if f.streamErr != nil {
		err := f.streamErr
		f.mu.Unlock()
		return nil, err
	}
	var chunks []llm.Chunk
	if len(f.streams) > 0 {
		chunks = f.streams[0]
		f.streams = f.streams[1:]
	}
	f.mu.Unlock()

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

func (f *fakeGenerator) jsonRequests() []llm.GenerateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.GenerateRequest(nil), f.jsonReqs...)
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

// eventSink collects emitted events for assertions.
type eventSink struct {
	mu     sync.Mutex
	events []graph.Event
}

func (s *eventSink) record(e graph.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *eventSink) named(name string) []graph.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []graph.Event
	for _, e := range s.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

func (s *eventSink) context(node string) *graph.NodeContext {
	return graph.CreateTestContext(node, s.record)
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
