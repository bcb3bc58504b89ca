package dialogue

import (
	"time"

	"github.com/google/uuid"
)

// Phase is the coarse stage of the scripted coaching dialogue. Phases move
// forward through the listed order; the only backward edge is an explicit
// re-entry into scaffolded practice for another round.
type Phase string

const (
	PhaseModeling     Phase = "modeling"
	PhaseScaffolded   Phase = "scaffolded"
	PhaseArticulation Phase = "articulation"
	PhaseFading       Phase = "fading"
	PhaseIntegration  Phase = "integration"
)

type Sender string

const (
	SenderUser      Sender = "user"
	SenderCompanion Sender = "companion"
)

// Message is one turn in the transcript. The transcript is append-only:
// messages are never mutated or deleted for the life of the session.
type Message struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	Sender    Sender         `json:"sender"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func newMessage(text string, sender Sender, metadata map[string]any) Message {
	return Message{
		ID:        uuid.NewString(),
		Text:      text,
		Sender:    sender,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}
}

// Progress tracks what the user has demonstrated so far. AutonomyLevel and
// PracticeAttempts never decrease.
type Progress struct {
	InitialInputReceived bool `json:"initialInputReceived"`
	ModelingComplete     bool `json:"modelingComplete"`
	PracticeAttempts     int  `json:"practiceAttempts"`
	ReflectionComplete   bool `json:"reflectionComplete"`
	AutonomyLevel        int  `json:"autonomyLevel"` // 0-3, higher = less support needed
}

// Session is the mutable state for one practice conversation.
type Session struct {
	ID               string    `json:"id"`
	UserName         string    `json:"userName"`
	Phase            Phase     `json:"phase"`
	Skill            string    `json:"skill"`
	Step             int       `json:"step"`
	Progress         Progress  `json:"progress"`
	CurrentScenario  string    `json:"currentScenario,omitempty"`
	AwaitingPractice bool      `json:"awaitingPractice"`
	CreatedAt        time.Time `json:"createdAt"`
}

func newSession(id, userName string) *Session {
	if userName == "" {
		userName = "Friend"
	}
	return &Session{
		ID:        id,
		UserName:  userName,
		Phase:     PhaseModeling,
		Skill:     "curiosity",
		Step:      0,
		CreatedAt: time.Now().UTC(),
	}
}
