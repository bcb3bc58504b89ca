package dialogue

import "fmt"

// The scripted coaching catalog. All companion text outside the scorer's
// reaction lines lives here, keyed by category, phase, or step.

// InitialResponse is the scripted reply to the user's very first message.
type InitialResponse struct {
	Text      string
	NextPhase Phase
}

// Every category branch converges on the scaffolded phase. That mirrors the
// shipped behavior; the categories differ only in wording. Do not diversify
// the transitions without a product decision.
var initialResponses = map[Category]InitialResponse{
	CategoryConversationChallenge: {
		Text: `Thanks for sharing that conversation challenge! I can hear this is something you're thinking about.

That sounds tricky! When someone shares something challenging, a helpful approach is to acknowledge their experience and then ask an open question to explore further. For example, you could say, "That sounds really difficult, what part of that conversation felt most challenging for you?" How does that approach resonate with you?`,
		NextPhase: PhaseScaffolded,
	},
	CategoryConversationSharing: {
		Text: `That's wonderful that you're sharing about your conversations! It's great to connect with others.

I notice you mentioned a conversation - to deepen connections, try reflecting what you heard and then asking about their experience. For instance, you could say, "It sounds like that conversation was meaningful to you, what made it special?" What do you think about that approach?`,
		NextPhase: PhaseScaffolded,
	},
	CategoryEmotionalSharing: {
		Text: `I appreciate you sharing how you're feeling. Emotions are such important information!

When someone shares feelings, try validating the emotion and then gently exploring it. For example, you could say, "That sounds like a lot to handle, what's been the hardest part about feeling this way?" How does that sound as a way to respond?`,
		NextPhase: PhaseScaffolded,
	},
	CategoryDetailedSharing: {
		Text: `Thank you for sharing so thoughtfully! I can tell you put real thought into what you're telling me.

Since you're comfortable sharing details, to invite that same openness from others, show genuine interest and ask for specifics. For example, you could say, "Tell me more about that, what was that moment like for you?" What do you think about trying that?`,
		NextPhase: PhaseScaffolded,
	},
	CategoryGeneralSharing: {
		Text: `Thanks for sharing with me! I'm here to help you become more curious in your conversations.

Let's start with the foundation of great conversations: curiosity. A simple but powerful pattern is to listen fully and then ask an open question about their experience. For example, if someone says "I had a good weekend," instead of just saying "That's nice," try: "What made it good for you?" or "What was the highlight?" What do you think about that approach?`,
		NextPhase: PhaseScaffolded,
	},
}

// InitialResponseFor returns the scripted opener for the category, falling
// back to the general response for anything unknown.
func InitialResponseFor(category Category) InitialResponse {
	if resp, ok := initialResponses[category]; ok {
		return resp
	}
	return initialResponses[CategoryGeneralSharing]
}

// ModelingExample is one worked demonstration of the curiosity pattern.
type ModelingExample struct {
	Scenario    string
	OpenEnded   string
	Probing     string
	Affirmation string
	Explanation string
}

var modelingExamples = []ModelingExample{
	{
		Scenario:    "I loved studying abroad",
		OpenEnded:   "What was one moment abroad that shifted how you see the world?",
		Probing:     "When you say 'shifted,' what new belief or feeling emerged?",
		Affirmation: "That's fascinating—thanks for sharing!",
		Explanation: "Notice the pattern: open question → probing follow-up → validation. This creates psychological safety for deeper sharing.",
	},
	{
		Scenario:    "I've been biking every morning",
		OpenEnded:   "What draws you to start your day with biking?",
		Probing:     "How does that morning energy carry through your day?",
		Affirmation: "I love how intentional you are about your mornings!",
		Explanation: "See how we moved from activity → motivation → impact? This helps people reflect on their 'why.'",
	},
	{
		Scenario:    "Work has been really stressful lately",
		OpenEnded:   "What part of the stress feels most overwhelming right now?",
		Probing:     "When you imagine that stress lifting, what would feel different?",
		Affirmation: "Thank you for trusting me with something so personal.",
		Explanation: "With sensitive topics, we validate first, then gently explore. The future-focused question helps them envision relief.",
	},
}

// ModelingExampleAt returns the example for the given step. The step
// saturates at the end of the catalog rather than wrapping: the examples
// escalate from light topics to sensitive ones, and cycling back would read
// like a reset.
func ModelingExampleAt(step int) ModelingExample {
	if step < 0 {
		step = 0
	}
	if step > len(modelingExamples)-1 {
		step = len(modelingExamples) - 1
	}
	return modelingExamples[step]
}

// ModelingCatalogSize reports how many worked examples exist.
func ModelingCatalogSize() int {
	return len(modelingExamples)
}

var practiceScenarios = []string{
	"I just finished reading an amazing book",
	"I'm thinking about changing careers",
	"My family had a big reunion last weekend",
	"I started learning guitar recently",
	"I've been volunteering at the animal shelter",
}

// PracticeScenario draws one scenario uniformly using the supplied source.
func PracticeScenario(r Rand) string {
	return practiceScenarios[r.Intn(len(practiceScenarios))]
}

var fadedSupportLines = map[int]string{
	1: "Remember to ask 'How...' or 'What...' questions!",
	2: "You're doing great - trust your instincts!",
	3: "You've got this! I'm just here to celebrate your progress.",
}

// FadedSupportLine returns the canned support line for the autonomy level.
// Levels above the catalog get the most hands-off line.
func FadedSupportLine(autonomyLevel int) string {
	if line, ok := fadedSupportLines[autonomyLevel]; ok {
		return line
	}
	return fadedSupportLines[3]
}

var contextualResponses = []string{
	"That's a great observation! How might you apply this curiosity approach in your next conversation?",
	"I love your thinking! What's one relationship where you'd like to practice this?",
	"Excellent insight! Which part of the curiosity pattern feels most natural to you?",
	"You're really getting it! What questions are you most excited to try with friends?",
}

// ContextualResponse picks one of the generic encouragement lines.
func ContextualResponse(r Rand) string {
	return contextualResponses[r.Intn(len(contextualResponses))]
}

// Greeting is the companion's opening message for a new session.
func Greeting(userName string) string {
	return fmt.Sprintf(`Hey %s! I'm here to help you develop your conversation skills.

What's on your mind today? Share anything - a recent conversation, a relationship challenge, or just tell me about your day. I'll listen and help you practice curiosity! 😊`, userName)
}

// ModelingMessage renders a worked example as a companion message.
func ModelingMessage(example ModelingExample) string {
	return fmt.Sprintf(`🎯 **MODELING: Watch me demonstrate curiosity**

Let's say someone tells you: *"%s"*

Here's how I'd respond:

1. **Open-Ended Question:**
"%s"

2. **Probing Follow-Up:**
"%s"

3. **Affirmation:**
"%s"

**Why this works:** %s

Ready to try it yourself? Type 'ready' when you want to practice!`,
		example.Scenario, example.OpenEnded, example.Probing, example.Affirmation, example.Explanation)
}

// PracticeMessage renders the scaffolded-practice prompt for a scenario.
func PracticeMessage(scenario string) string {
	return fmt.Sprintf(`Okay, I'll share something: *"%s"*

Now, what's a question you could ask me to show you're curious? Don't worry, I'm here to help if you need it!`, scenario)
}

const articulationPrompt = `Now, let's pause and think about what we've been doing.

Out of curiosity, why do you think asking "How did that feel?" is often more revealing than asking "Did you enjoy it?" Also, what's one thing you've noticed about asking good questions?`

const reflectionAcknowledgment = `That's a great reflection! It sounds like you're understanding the importance of creating a safe space for others to share.

Ready to try this out on your own now? I'll still be here to support you, but I'll chime in a little less. How does that sound?`

// CoachingMessage renders practice feedback from a scored question.
func CoachingMessage(scored ScoredQuestion) string {
	if scored.Score >= 3 {
		return fmt.Sprintf("That's a really insightful question! It makes me want to share more. %s Want to try another scenario?", scored.CompanionResponse)
	}
	return fmt.Sprintf("That's a good start! To make it even better, %s. %s What do you think? Want to try another question with this scenario?",
		joinImprovements(scored.Improvements), scored.CompanionResponse)
}

func joinImprovements(improvements []string) string {
	out := ""
	for i, improvement := range improvements {
		if i > 0 {
			out += ", "
		}
		out += improvement
	}
	return out
}
