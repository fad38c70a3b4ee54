package memory

import (
	"strings"

	"github.com/reveralabs/revera/pkg/models"
)

// Post-session extractors distill what each agent leaves behind as
// episodic memory. The shapes line up with the formatters in this
// package: what an extractor writes, the matching formatter reads next
// session. A nil return means there is nothing worth remembering.

const (
	extractSourceCap = 5
	extractAnswerCap = 500
)

// ExtractPlanner remembers the plan's subtasks.
func ExtractPlanner(plan *models.Plan) map[string]any {
	if plan == nil || len(plan.Subtasks) == 0 {
		return nil
	}
	return map[string]any{
		"plan":     strings.Join(plan.Subtasks, "; "),
		"subtasks": plan.Subtasks,
	}
}

// ExtractRetrieval remembers the strongest sources and where they came
// from.
func ExtractRetrieval(sources []models.InternalSource) map[string]any {
	if len(sources) == 0 {
		return nil
	}
	if len(sources) > extractSourceCap {
		sources = sources[:extractSourceCap]
	}
	remembered := make([]map[string]any, 0, len(sources))
	for _, s := range sources {
		// Fused rank scores live near zero; the dense similarity is the
		// signal comparable against the relevance floor.
		score := s.Score
		if s.DenseScore != nil {
			score = *s.DenseScore
		}
		remembered = append(remembered, map[string]any{
			"document_id": s.DocumentID,
			"chunk_id":    s.ChunkID,
			"score":       score,
		})
	}
	return map[string]any{"sources": remembered}
}

// ExtractSynthesis remembers the opening of the final answer.
func ExtractSynthesis(result *models.SynthesisResult) map[string]any {
	if result == nil || result.Answer == "" {
		return nil
	}
	return map[string]any{
		"answer":     truncateRunes(result.Answer, extractAnswerCap),
		"confidence": result.Confidence,
	}
}

// ExtractCritic remembers the verification verdict.
func ExtractCritic(verification *models.Verification) map[string]any {
	if verification == nil || verification.VerificationStatus == "" {
		return nil
	}
	return map[string]any{
		"confidence":       verification.VerificationStatus,
		"confidence_score": verification.ConfidenceScore,
	}
}
