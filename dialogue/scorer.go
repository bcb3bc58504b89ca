package dialogue

import (
	"regexp"
)

// ScoredQuestion is the result of rating one user-authored practice
// question. Not persisted; it only feeds the coaching message.
type ScoredQuestion struct {
	Strengths         []string `json:"strengths"`
	Improvements      []string `json:"improvements"`
	Score             int      `json:"score"`
	CompanionResponse string   `json:"companionResponse"`
}

var (
	openEndedStartPattern = regexp.MustCompile(`(?i)^\s*(what|how|why|when|where|tell me|describe|explain)`)
	yesNoStartPattern     = regexp.MustCompile(`(?i)^\s*(do|did|are|is|can|could|would|will|have|has)`)
	experientialPattern   = regexp.MustCompile(`(?i)(feel|experience|impact|affect|mean|matter|important)`)
	specificityPattern    = regexp.MustCompile(`(?i)(most|specific|particular|example|moment|time)`)
)

var reactionLines = []string{
	"That's such a thoughtful question! It really makes me want to share more.",
	"I love how you asked that - it shows you're genuinely curious about my experience.",
	"What a great follow-up! That question helps me reflect deeper.",
	"Perfect! That's exactly the kind of question that builds connection.",
}

// Score rates a practice question against four heuristics, one point each.
// Only the two gating checks (open-ended start, yes/no avoidance) produce
// corrective feedback; the experiential and specificity checks are bonus
// signals with no penalty when absent. The reaction line is indexed by
// min(score, 3), so 3 and 4 share the top reaction.
func Score(question string) ScoredQuestion {
	strengths := []string{}
	improvements := []string{}
	score := 0

	if openEndedStartPattern.MatchString(question) {
		strengths = append(strengths, "Started with an open-ended word")
		score++
	} else {
		improvements = append(improvements, "Try starting with 'What...', 'How...', or 'Why...' for more open responses")
	}

	if !yesNoStartPattern.MatchString(question) {
		strengths = append(strengths, "Avoided yes/no format")
		score++
	} else {
		improvements = append(improvements, "Rephrase to avoid yes/no answers")
	}

	if experientialPattern.MatchString(question) {
		strengths = append(strengths, "Asked about feelings or experiences")
		score++
	}

	if specificityPattern.MatchString(question) {
		strengths = append(strengths, "Asked for specific details")
		score++
	}

	reactionIndex := score
	if reactionIndex > len(reactionLines)-1 {
		reactionIndex = len(reactionLines) - 1
	}

	return ScoredQuestion{
		Strengths:         strengths,
		Improvements:      improvements,
		Score:             score,
		CompanionResponse: reactionLines[reactionIndex],
	}
}
