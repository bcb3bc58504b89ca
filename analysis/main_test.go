package analysis

import (
	"strings"
	"testing"
)

const validPayload = `{
	"emotions": [{"name": "warmth", "intensity": 7, "description": "felt close"}],
	"triggers": {"primary_trigger": "being listened to", "underlying_belief": "I matter"},
	"recommended_skills": [{"skill": "active listening", "reason": "deepens trust"}],
	"micro_experiment": {"action": "reflect back", "what_to_observe": "their response", "success_indicator": "more sharing"},
	"summary": "A warm exchange."
}`

func TestParse_CleanJSON(t *testing.T) {
	a, err := Parse(validPayload)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(a.Emotions) != 1 || a.Emotions[0].Name != "warmth" {
		t.Fatalf("unexpected emotions: %v", a.Emotions)
	}
	if a.Triggers.PrimaryTrigger != "being listened to" {
		t.Fatalf("unexpected trigger: %q", a.Triggers.PrimaryTrigger)
	}
}

func TestParse_FencedJSON(t *testing.T) {
	fenced := "```json\n" + validPayload + "\n```"
	a, err := Parse(fenced)
	if err != nil {
		t.Fatalf("Parse failed on fenced payload: %v", err)
	}
	if a.Summary != "A warm exchange." {
		t.Fatalf("unexpected summary: %q", a.Summary)
	}
}

func TestParse_BareFence(t *testing.T) {
	fenced := "```\n" + validPayload + "\n```"
	if _, err := Parse(fenced); err != nil {
		t.Fatalf("Parse failed on bare fence: %v", err)
	}
}

func TestParse_EmbeddedObject(t *testing.T) {
	chatty := "Here is your analysis:\n\n" + validPayload + "\n\nHope that helps!"
	a, err := Parse(chatty)
	if err != nil {
		t.Fatalf("Parse failed on embedded payload: %v", err)
	}
	if len(a.RecommendedSkills) != 1 {
		t.Fatalf("unexpected skills: %v", a.RecommendedSkills)
	}
}

func TestParse_NoJSON(t *testing.T) {
	if _, err := Parse("sorry, I cannot help with that"); err == nil {
		t.Fatal("expected error for payload with no JSON object")
	}
}

func TestParse_MissingTriggers(t *testing.T) {
	payload := strings.Replace(validPayload,
		`"triggers": {"primary_trigger": "being listened to", "underlying_belief": "I matter"},`, "", 1)
	_, err := Parse(payload)
	if err == nil {
		t.Fatal("expected error for payload missing triggers")
	}
	if !strings.Contains(err.Error(), "triggers") {
		t.Fatalf("error should name the missing field, got %v", err)
	}
}

func TestParse_EmptyEmotions(t *testing.T) {
	payload := strings.Replace(validPayload,
		`[{"name": "warmth", "intensity": 7, "description": "felt close"}]`, "[]", 1)
	if _, err := Parse(payload); err == nil {
		t.Fatal("expected error for empty emotions")
	}
}

func TestFallback_AlwaysValid(t *testing.T) {
	inputs := []string{
		"", "it was amazing", "I felt heard and understood", "so rushed and disconnected", "hmm",
	}
	for _, input := range inputs {
		a := Fallback(input, "Sam")
		if err := a.Validate(); err != nil {
			t.Fatalf("fallback invalid for %q: %v", input, err)
		}
	}
}

func TestFallback_KeywordEmotions(t *testing.T) {
	a := Fallback("The dinner was amazing and I finally felt heard", "Sam")
	names := map[string]bool{}
	for _, e := range a.Emotions {
		names[e.Name] = true
	}
	if !names["joy"] || !names["connection"] {
		t.Fatalf("expected joy and connection, got %v", a.Emotions)
	}
}

func TestFallback_DefaultEmotion(t *testing.T) {
	a := Fallback("we talked for a while", "Sam")
	if len(a.Emotions) != 1 || a.Emotions[0].Name != "reflection" {
		t.Fatalf("expected the default reflection emotion, got %v", a.Emotions)
	}
	if a.Emotions[0].Intensity != 6 {
		t.Fatalf("expected intensity 6, got %d", a.Emotions[0].Intensity)
	}
}

func TestFallback_UsesPersonName(t *testing.T) {
	a := Fallback("it went fine", "Jordan")
	if !strings.Contains(a.MicroExperiment.Action, "Jordan") {
		t.Fatalf("micro-experiment should mention the person, got %q", a.MicroExperiment.Action)
	}
	if !strings.Contains(a.Summary, "Jordan") {
		t.Fatalf("summary should mention the person, got %q", a.Summary)
	}
}
