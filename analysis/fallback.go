package analysis

import (
	"fmt"
	"strings"
)

// Fallback builds a local heuristic analysis from simple keyword sniffing
// of the reflection text. Used whenever the collaborator's payload is
// malformed so the user-visible flow never fails; the result is always
// structurally valid.
func Fallback(reflection, personName string) *ReflectionAnalysis {
	lower := strings.ToLower(reflection)

	var emotions []Emotion
	if strings.Contains(lower, "amazing") || strings.Contains(lower, "great") || strings.Contains(lower, "wonderful") {
		emotions = append(emotions, Emotion{
			Name:        "joy",
			Intensity:   8,
			Description: "Positive language suggests a joyful experience",
		})
	}
	if strings.Contains(lower, "understood") || strings.Contains(lower, "heard") {
		emotions = append(emotions, Emotion{
			Name:        "connection",
			Intensity:   7,
			Description: "Feeling heard and understood",
		})
	}
	if strings.Contains(lower, "rushed") || strings.Contains(lower, "disconnected") {
		emotions = append(emotions, Emotion{
			Name:        "frustration",
			Intensity:   5,
			Description: "Sense of being rushed or disconnected",
		})
	}
	if len(emotions) == 0 {
		emotions = append(emotions, Emotion{
			Name:        "reflection",
			Intensity:   6,
			Description: "Thoughtful consideration of the interaction",
		})
	}

	return &ReflectionAnalysis{
		Emotions: emotions,
		Triggers: &Triggers{
			PrimaryTrigger:   "The interaction dynamics and communication style",
			UnderlyingBelief: "Relationships require mutual understanding and presence",
		},
		RecommendedSkills: []RecommendedSkill{
			{Skill: "active listening", Reason: "To deepen mutual understanding and connection"},
		},
		MicroExperiment: &MicroExperiment{
			Action:           fmt.Sprintf("In your next conversation with %s, practice reflecting back what you hear them say before sharing your own thoughts", personName),
			WhatToObserve:    "How they respond when you demonstrate active listening",
			SuccessIndicator: "They seem more engaged and the conversation flows more naturally",
		},
		Summary: fmt.Sprintf("Your reflection shows thoughtful consideration of your interaction with %s. Focus on building deeper connection through active listening.", personName),
	}
}
