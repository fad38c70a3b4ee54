package agent

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/reveralabs/revera/pkg/events"
	"github.com/reveralabs/revera/pkg/graph"
	"github.com/reveralabs/revera/pkg/models"
)

// criticSourceLimit truncates each source passed to the critic so long
// chunks do not crowd the verification context.
const criticSourceLimit = 1000

// packedSource is one source in the synthesis ordinal space: internal
// sources first, then web, then images, numbered from 1. The ordinals are
// the keys of SynthesisResult.SourceMap and the N in [Source N] citations.
type packedSource struct {
	Ordinal    int
	Label      string
	Content    string
	Normalized models.NormalizedSource
}

// packSources lays out all gathered evidence in citation order.
func packSources(internal []models.InternalSource, web []models.WebSource, images []models.ImageRef) []packedSource {
	packed := make([]packedSource, 0, len(internal)+len(web)+len(images))
	for _, s := range internal {
		packed = append(packed, packedSource{
			Ordinal:    len(packed) + 1,
			Label:      "(Internal Document)",
			Content:    s.Content,
			Normalized: NormalizeInternal(s),
		})
	}
	for _, s := range web {
		packed = append(packed, packedSource{
			Ordinal:    len(packed) + 1,
			Label:      "(" + s.URL + ")",
			Content:    s.Content,
			Normalized: NormalizeWeb(s),
		})
	}
	for _, img := range images {
		packed = append(packed, packedSource{
			Ordinal:    len(packed) + 1,
			Label:      "(Image: " + img.Filename + ")",
			Content:    "Attached image " + img.Filename,
			Normalized: NormalizeImage(img),
		})
	}
	return packed
}

// sourcesContext renders the packed sources for the synthesis prompt.
func sourcesContext(packed []packedSource) string {
	if len(packed) == 0 {
		return "(no sources available)"
	}
	blocks := make([]string, len(packed))
	for i, p := range packed {
		blocks[i] = fmt.Sprintf("[Source %d] %s\n%s", p.Ordinal, p.Label, p.Content)
	}
	return strings.Join(blocks, "\n\n---\n\n")
}

// sourcesForVerification renders the packed sources for the critic, each
// truncated to criticSourceLimit characters.
func sourcesForVerification(packed []packedSource) string {
	if len(packed) == 0 {
		return "(no sources available)"
	}
	var b strings.Builder
	for i, p := range packed {
		if i > 0 {
			b.WriteString("\n\n")
		}
		content := p.Content
		if len(content) > criticSourceLimit {
			content = content[:criticSourceLimit]
		}
		fmt.Fprintf(&b, "[Source %d]: %s", p.Ordinal, content)
	}
	return b.String()
}

// sourceMap keys every packed source by its ordinal.
func sourceMap(packed []packedSource) map[int]models.NormalizedSource {
	if len(packed) == 0 {
		return nil
	}
	m := make(map[int]models.NormalizedSource, len(packed))
	for _, p := range packed {
		m[p.Ordinal] = p.Normalized
	}
	return m
}

var citationRe = regexp.MustCompile(`\[Source (\d+)\]`)

// citationOrdinals extracts the sorted unique [Source N] ordinals cited in
// an answer.
func citationOrdinals(answer string) []int {
	matches := citationRe.FindAllStringSubmatch(answer, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[int]bool, len(matches))
	var ordinals []int
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil || seen[n] {
			continue
		}
		seen[n] = true
		ordinals = append(ordinals, n)
	}
	sort.Ints(ordinals)
	return ordinals
}

// NormalizeInternal converts a retrieval chunk to the uniform source shape.
func NormalizeInternal(s models.InternalSource) models.NormalizedSource {
	return models.NormalizedSource{
		Type:       models.SourceTypeInternal,
		Content:    s.Content,
		Score:      s.Score,
		ChunkID:    s.ChunkID,
		DocumentID: s.DocumentID,
	}
}

// NormalizeWeb converts a web result to the uniform source shape.
func NormalizeWeb(s models.WebSource) models.NormalizedSource {
	return models.NormalizedSource{
		Type:    models.SourceTypeWeb,
		Content: s.Content,
		Score:   s.RelevanceScore,
		URL:     s.URL,
		Title:   s.Title,
	}
}

// NormalizeImage converts an image attachment to the uniform source shape.
func NormalizeImage(img models.ImageRef) models.NormalizedSource {
	return models.NormalizedSource{
		Type:     models.SourceTypeImage,
		Content:  img.Filename,
		ImageURL: img.URL,
	}
}

// emitSources publishes a live sources event for evidence a node just
// gathered. Emit failures mean the run is being torn down; the node's own
// context error surfaces the cancellation.
func emitSources(nc *graph.NodeContext, sources []models.NormalizedSource) {
	if len(sources) == 0 {
		return
	}
	_ = nc.Emit(events.TypeSources, events.SourcesPayload{
		Type:      events.TypeSources,
		Sources:   sources,
		Timestamp: events.Now(),
	})
}

// NormalizeAll flattens the final state's evidence in citation order. The
// orchestrator emits this as the authoritative sources list.
func NormalizeAll(internal []models.InternalSource, web []models.WebSource, images []models.ImageRef) []models.NormalizedSource {
	packed := packSources(internal, web, images)
	if len(packed) == 0 {
		return nil
	}
	out := make([]models.NormalizedSource, len(packed))
	for i, p := range packed {
		out[i] = p.Normalized
	}
	return out
}
