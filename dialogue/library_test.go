package dialogue

import (
	"strings"
	"testing"
)

func TestInitialResponseFor_AllCategoriesScaffold(t *testing.T) {
	categories := []Category{
		CategoryConversationChallenge,
		CategoryConversationSharing,
		CategoryEmotionalSharing,
		CategoryDetailedSharing,
		CategoryGeneralSharing,
	}
	for _, category := range categories {
		resp := InitialResponseFor(category)
		if resp.Text == "" {
			t.Fatalf("empty initial response for %s", category)
		}
		if resp.NextPhase != PhaseScaffolded {
			t.Fatalf("category %s transitions to %s, expected scaffolded", category, resp.NextPhase)
		}
	}
}

func TestInitialResponseFor_UnknownFallsBackToGeneral(t *testing.T) {
	resp := InitialResponseFor(Category("bogus"))
	if resp.Text != initialResponses[CategoryGeneralSharing].Text {
		t.Fatal("unknown category should fall back to the general response")
	}
}

func TestModelingExampleAt_Clamps(t *testing.T) {
	last := ModelingExampleAt(ModelingCatalogSize() - 1)
	if got := ModelingExampleAt(ModelingCatalogSize() + 10); got != last {
		t.Fatal("step past the catalog should return the last example")
	}
	first := ModelingExampleAt(0)
	if got := ModelingExampleAt(-3); got != first {
		t.Fatal("negative step should return the first example")
	}
}

func TestFadedSupportLine_LevelsDistinct(t *testing.T) {
	one := FadedSupportLine(1)
	two := FadedSupportLine(2)
	three := FadedSupportLine(3)
	if one == two || two == three || one == three {
		t.Fatal("autonomy levels should have distinct support lines")
	}
	if FadedSupportLine(7) != three {
		t.Fatal("levels above the catalog should get the most hands-off line")
	}
}

func TestGreeting_UsesName(t *testing.T) {
	if !strings.Contains(Greeting("Maya"), "Maya") {
		t.Fatal("greeting should address the user by name")
	}
}

func TestCoachingMessage_HighScore(t *testing.T) {
	msg := CoachingMessage(ScoredQuestion{Score: 3, CompanionResponse: reactionLines[3]})
	if !strings.Contains(msg, "insightful") {
		t.Fatalf("expected celebratory coaching message, got %q", msg)
	}
	if strings.Contains(msg, "To make it even better") {
		t.Fatal("high-score message should not carry corrective feedback")
	}
}

func TestCoachingMessage_LowScoreJoinsImprovements(t *testing.T) {
	msg := CoachingMessage(ScoredQuestion{
		Score:             1,
		Improvements:      []string{"first tip", "second tip"},
		CompanionResponse: reactionLines[1],
	})
	if !strings.Contains(msg, "first tip, second tip") {
		t.Fatalf("expected joined improvements, got %q", msg)
	}
}

func TestPracticeScenario_UsesRand(t *testing.T) {
	for i := range practiceScenarios {
		got := PracticeScenario(fixedRand{n: i})
		if got != practiceScenarios[i] {
			t.Fatalf("index %d: expected %q, got %q", i, practiceScenarios[i], got)
		}
	}
}

func TestNewSession_Defaults(t *testing.T) {
	sess := newSession("abc", "")
	if sess.UserName != "Friend" {
		t.Fatalf("expected default name Friend, got %q", sess.UserName)
	}
	if sess.Phase != PhaseModeling {
		t.Fatalf("expected modeling phase, got %s", sess.Phase)
	}
	if sess.Skill != "curiosity" {
		t.Fatalf("expected curiosity skill, got %q", sess.Skill)
	}
}
