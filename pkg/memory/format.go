package memory

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/montanaflynn/stats"

	"github.com/reveralabs/revera/pkg/models"
)

// relevantScoreFloor filters which remembered sources still count as
// relevant when reminding the retrieval agent.
const relevantScoreFloor = 0.7

// answerSnippetLen caps remembered answer snippets.
const answerSnippetLen = 200

// FormatForPrompt renders an agent's memory window into a short prompt
// section. Unknown agents and empty windows yield an empty string.
func FormatForPrompt(agentName string, items []models.MemoryItem) string {
	if len(items) == 0 {
		return ""
	}
	switch agentName {
	case AgentPlanner:
		return formatPlannerMemory(items)
	case AgentRetrieval:
		return formatRetrievalMemory(items)
	case AgentSynthesis:
		return formatSynthesisMemory(items)
	case AgentCritic:
		return formatCriticMemory(items)
	default:
		return ""
	}
}

func formatPlannerMemory(items []models.MemoryItem) string {
	var plans []string
	for _, item := range takeFirst(items, 3) {
		if plan, ok := item.Value["plan"].(string); ok && plan != "" {
			plans = append(plans, plan)
		}
	}
	if len(plans) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Previous planning strategies in this conversation:\n")
	for _, p := range plans {
		fmt.Fprintf(&b, "- %s\n", p)
	}
	b.WriteString("\nConsider these past approaches when planning the current query.")
	return b.String()
}

func formatRetrievalMemory(items []models.MemoryItem) string {
	seen := make(map[string]struct{})
	var docIDs []string
	for _, item := range takeFirst(items, 5) {
		for _, src := range sourceMaps(item.Value["sources"]) {
			score, _ := src["score"].(float64)
			if score <= relevantScoreFloor {
				continue
			}
			docID, _ := src["document_id"].(string)
			if docID == "" {
				continue
			}
			if _, ok := seen[docID]; ok {
				continue
			}
			seen[docID] = struct{}{}
			docIDs = append(docIDs, docID)
		}
	}
	if len(docIDs) == 0 {
		return ""
	}

	return fmt.Sprintf("Previously relevant documents in this conversation: %s\nPrioritize these if they match the current query context.",
		strings.Join(docIDs, ", "))
}

func formatSynthesisMemory(items []models.MemoryItem) string {
	var snippets []string
	for _, item := range takeFirst(items, 3) {
		answer, _ := item.Value["answer"].(string)
		if answer == "" {
			continue
		}
		snippets = append(snippets, truncateRunes(answer, answerSnippetLen))
	}
	if len(snippets) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Recent answers in this conversation:\n")
	for _, s := range snippets {
		fmt.Fprintf(&b, "- %s\n", s)
	}
	b.WriteString("\nMaintain consistency with previous responses while addressing the new query.")
	return b.String()
}

func formatCriticMemory(items []models.MemoryItem) string {
	window := takeFirst(items, 5)
	series := make([]float64, 0, len(window))
	for _, item := range window {
		if conf, _ := item.Value["confidence"].(string); conf == models.VerificationVerified {
			series = append(series, 1)
		} else {
			series = append(series, 0)
		}
	}
	ratio, err := stats.Mean(series)
	if err != nil {
		return ""
	}

	return fmt.Sprintf("Verification history for this chat:\n- Average confidence: %.0f%%\n- Past verifications: %d messages checked\n\nApply similar verification rigor to this response.",
		ratio*100, len(items))
}

func takeFirst(items []models.MemoryItem, n int) []models.MemoryItem {
	if len(items) > n {
		return items[:n]
	}
	return items
}

// sourceMaps accepts the remembered source list both as stored in
// process and as it comes back from a JSON round trip.
func sourceMaps(v any) []map[string]any {
	switch s := v.(type) {
	case []map[string]any:
		return s
	case []any:
		out := make([]map[string]any, 0, len(s))
		for _, el := range s {
			if m, ok := el.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
