package prompt

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/reveralabs/revera/pkg/models"
)

// conciseRes are the query patterns that switch synthesis to the short
// answer style.
var conciseRes = []*regexp.Regexp{
	regexp.MustCompile(`\bbrief\b`),
	regexp.MustCompile(`\bbriefly\b`),
	regexp.MustCompile(`\bshort answer\b`),
	regexp.MustCompile(`\bsummary\b`),
	regexp.MustCompile(`\bsummarize\b`),
	regexp.MustCompile(`\btl;?dr\b`),
	regexp.MustCompile(`\bconcise\b`),
	regexp.MustCompile(`\bone paragraph\b`),
	regexp.MustCompile(`\bfew sentences\b`),
	regexp.MustCompile(`\bquick answer\b`),
}

// IsConcise reports whether the query asks for a short answer.
func IsConcise(query string) bool {
	q := strings.ToLower(query)
	for _, re := range conciseRes {
		if re.MatchString(q) {
			return true
		}
	}
	return false
}

// Guidance returns the style guidance matching the query.
func Guidance(query string) string {
	if IsConcise(query) {
		return ConciseGuidance
	}
	return ResearchGuidance
}

// Planner builds the planner user message. The memory snippet, when
// non-empty, is prepended so past approaches inform the new plan.
func Planner(query, memorySnippet string, useWeb, citations bool) string {
	msg := fmt.Sprintf(plannerUserTemplate, query, yesNo(useWeb), yesNo(citations))
	if memorySnippet != "" {
		msg = memorySnippet + "\n\n" + msg
	}
	return msg
}

// Synthesis builds the initial-mode synthesis user message.
func Synthesis(query, sourcesContext, memorySnippet string) string {
	msg := fmt.Sprintf(synthesisUserTemplate, query, sourcesContext, Guidance(query))
	if memorySnippet != "" {
		msg = memorySnippet + "\n\n" + msg
	}
	return msg
}

// SynthesisRefinement builds the refinement-mode user message from the
// previous answer and the critic's findings.
func SynthesisRefinement(query, sourcesContext, previousAnswer string, v *models.Verification) string {
	return fmt.Sprintf(refinementUserTemplate,
		query, sourcesContext, previousAnswer, formatFindings(v), Guidance(query))
}

// Critic builds the critic user message.
func Critic(query, answer, sourcesText string) string {
	return fmt.Sprintf(criticUserTemplate, query, answer, sourcesText)
}

// formatFindings renders the critique sections the refinement prompt
// instructs the model to fix. Empty sections are omitted.
func formatFindings(v *models.Verification) string {
	if v == nil {
		return "- (no findings recorded)"
	}
	var b strings.Builder
	for _, c := range v.UnsupportedClaims {
		fmt.Fprintf(&b, "- Unsupported claim: %s (%s)\n", c.Claim, c.Reason)
	}
	for _, m := range v.MissingCitations {
		fmt.Fprintf(&b, "- Missing citation: %s (suggest: %s)\n", m.Statement, m.Suggestion)
	}
	for _, g := range v.CoverageGaps {
		fmt.Fprintf(&b, "- Coverage gap: %s\n", g)
	}
	for _, c := range v.ConflictingInformation {
		fmt.Fprintf(&b, "- Conflicting information: %s\n", c)
	}
	if b.Len() == 0 {
		fmt.Fprintf(&b, "- Status %q with confidence %.2f: %s\n",
			v.VerificationStatus, v.ConfidenceScore, v.OverallAssessment)
	}
	return strings.TrimRight(b.String(), "\n")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
