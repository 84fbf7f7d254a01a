package memory

import "strings"

var (
	acceptanceWords   = []string{"accept", "deal", "agree", "yes"}
	rejectionWords    = []string{"reject", "no thanks", "refuse", "decline"}
	allianceWords     = []string{"alliance", "ally", "together", "cooperate"}
	betrayalWords     = []string{"betray", "attack you", "break"}
	offerWords        = []string{"offer", "propose", "suggest", "how about"}
	counterofferWords = []string{"counter", "instead"}

	importanceWords = []string{
		"alliance", "betray", "attack", "defend", "promise",
		"guarantee", "deal", "treaty", "agree", "support",
	}
	criticalWords = []string{
		"alliance", "betray", "treaty", "deal", "promise to",
		"guarantee", "commit to", "declare war",
	}
)

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// ClassifyMessage buckets a message by keyword. Order matters:
// acceptance and rejection outrank offers so "I accept your offer"
// classifies as acceptance.
func ClassifyMessage(message string) MessageType {
	lower := strings.ToLower(message)
	switch {
	case containsAny(lower, acceptanceWords):
		return TypeAcceptance
	case containsAny(lower, rejectionWords):
		return TypeRejection
	case containsAny(lower, allianceWords):
		return TypeAlliance
	case containsAny(lower, betrayalWords):
		return TypeBetrayal
	case containsAny(lower, offerWords):
		return TypeOffer
	case containsAny(lower, counterofferWords):
		return TypeCounteroffer
	default:
		return TypeChat
	}
}

// ImportanceOf scores a message in [0.5, 1.0]: a 0.5 base plus 0.1 per
// importance keyword, with the boost capped at 0.4.
func ImportanceOf(message string) float64 {
	lower := strings.ToLower(message)
	matches := 0
	for _, w := range importanceWords {
		if strings.Contains(lower, w) {
			matches++
		}
	}
	boost := float64(matches) * 0.1
	if boost > 0.4 {
		boost = 0.4
	}
	score := 0.5 + boost
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// IsCritical reports whether a message marks a pivotal moment, such as a
// deal or an explicit commitment.
func IsCritical(message string) bool {
	return containsAny(strings.ToLower(message), criticalWords)
}
