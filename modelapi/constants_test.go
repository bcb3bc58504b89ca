package modelapi

import (
	"strings"
	"testing"
)

func TestAnalysisPrompt_Substitution(t *testing.T) {
	prompt := AnalysisPrompt("we finally talked it out", "my brother")
	if !strings.Contains(prompt, `"we finally talked it out"`) {
		t.Fatal("prompt missing the reflection text")
	}
	if strings.Count(prompt, "my brother") != 2 {
		t.Fatal("prompt should mention the person in both the framing and the micro-experiment step")
	}
	if strings.Contains(prompt, "%!") {
		t.Fatalf("bad format verb in prompt: %s", prompt)
	}
}

func TestAnalysisPrompt_ListsSkillVocabulary(t *testing.T) {
	prompt := AnalysisPrompt("reflection", "a friend")
	for _, skill := range RECOMMENDED_SKILLS {
		if !strings.Contains(prompt, skill) {
			t.Fatalf("prompt missing skill %q", skill)
		}
	}
}
