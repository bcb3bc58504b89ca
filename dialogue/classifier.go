package dialogue

import (
	"strings"
	"unicode/utf8"
)

// Category is the topic bucket an incoming message falls into. It picks
// which scripted initial response the companion opens with.
type Category string

const (
	CategoryConversationChallenge Category = "conversation_challenge"
	CategoryConversationSharing   Category = "conversation_sharing"
	CategoryEmotionalSharing      Category = "emotional_sharing"
	CategoryDetailedSharing       Category = "detailed_sharing"
	CategoryGeneralSharing        Category = "general_sharing"
)

var (
	conversationKeywords = []string{
		"conversation", "talk", "chat", "said", "told", "asked", "friend", "family", "colleague",
	}
	relationshipKeywords = []string{
		"relationship", "friend", "partner", "family", "coworker", "boss", "neighbor",
	}
	emotionKeywords = []string{
		"feel", "felt", "emotion", "happy", "sad", "angry", "frustrated", "excited", "nervous", "anxious",
	}
	challengeKeywords = []string{
		"difficult", "hard", "struggle", "problem", "issue", "challenge", "conflict", "awkward",
	}
)

const detailedSharingThreshold = 50

// Classify maps raw user text to a topic category. Matching is
// case-insensitive substring containment; the priority order is a
// deliberate tie-break so challenge-flavored conversational topics surface
// before plain sharing. Total over all inputs, including the empty string.
func Classify(text string) Category {
	input := strings.ToLower(text)

	hasConversationTopic := containsAny(input, conversationKeywords)
	hasRelationshipTopic := containsAny(input, relationshipKeywords)
	hasEmotionalContent := containsAny(input, emotionKeywords)
	hasChallenges := containsAny(input, challengeKeywords)

	switch {
	case (hasConversationTopic || hasRelationshipTopic) && hasChallenges:
		return CategoryConversationChallenge
	case hasConversationTopic || hasRelationshipTopic:
		return CategoryConversationSharing
	case hasEmotionalContent:
		return CategoryEmotionalSharing
	case utf8.RuneCountInString(input) > detailedSharingThreshold:
		return CategoryDetailedSharing
	default:
		return CategoryGeneralSharing
	}
}

func containsAny(input string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(input, keyword) {
			return true
		}
	}
	return false
}
