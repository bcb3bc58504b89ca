package dialogue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"moaidev/logger"
	"moaidev/sessionstore"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ErrReplyPending is returned when a user turn arrives while a prior turn's
// scheduled companion reply is still outstanding. Turns are serialized: at
// most one pending scripted reply exists per session.
var ErrReplyPending = errors.New("companion reply still pending for this session")

// Rand is the injectable random source behind scenario selection,
// contextual responses, and the reply delay, so tests can pin outcomes.
type Rand interface {
	Intn(n int) int
	Float64() float64
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

type CancelFunc func()

// Scheduler runs a function after a delay and hands back a cancel. The
// artificial reply delay is cosmetic, so it is modeled as a cancellable
// scheduled task rather than a sleep: tearing a session down must suppress
// a stale reply deterministically.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) CancelFunc
}

type timerScheduler struct{}

func (timerScheduler) Schedule(d time.Duration, fn func()) CancelFunc {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

type EngineConnectProps struct {
	Logger *logger.LogMiddleware
	Store  sessionstore.Store

	// Optional; defaults cover production use.
	Rand              Rand
	Scheduler         Scheduler
	ReplyDelayMin     time.Duration
	ReplyDelayMax     time.Duration
	ArticulationDelay time.Duration
}

// Engine drives the phase-based practice conversation. Each user turn is
// processed to completion before the next is accepted; there is no internal
// concurrency beyond the single scheduled reply per session.
type Engine struct {
	logger *logger.LogMiddleware
	store  sessionstore.Store
	rand   Rand
	sched  Scheduler

	replyDelayMin     time.Duration
	replyDelayMax     time.Duration
	articulationDelay time.Duration

	mu   sync.Mutex
	live map[string]*liveSession
}

type liveSession struct {
	mu      sync.Mutex
	sess    *Session
	pending CancelFunc
	subs    map[int]chan Message
	nextSub int
	closed  bool
}

func Connect(ctx context.Context, args EngineConnectProps) *Engine {
	tracer := otel.Tracer("dialogue/Connect")
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()

	if args.Rand == nil {
		args.Rand = &lockedRand{r: rand.New(rand.NewSource(time.Now().UnixNano()))}
	}
	if args.Scheduler == nil {
		args.Scheduler = timerScheduler{}
	}
	if args.ReplyDelayMin == 0 {
		args.ReplyDelayMin = 1 * time.Second
	}
	if args.ReplyDelayMax == 0 {
		args.ReplyDelayMax = 3 * time.Second
	}
	if args.ArticulationDelay == 0 {
		args.ArticulationDelay = 3 * time.Second
	}

	args.Logger.Logger(ctx).Info("[Dialogue] Engine starting",
		zap.Duration("replyDelayMin", args.ReplyDelayMin),
		zap.Duration("replyDelayMax", args.ReplyDelayMax))

	return &Engine{
		logger:            args.Logger,
		store:             args.Store,
		rand:              args.Rand,
		sched:             args.Scheduler,
		replyDelayMin:     args.ReplyDelayMin,
		replyDelayMax:     args.ReplyDelayMax,
		articulationDelay: args.ArticulationDelay,
		live:              map[string]*liveSession{},
	}
}

// StartSession creates the session if it does not exist and emits the
// companion greeting. Calling it again for a live session is a no-op that
// returns the existing state.
func (e *Engine) StartSession(ctx context.Context, id, userName string) (Session, error) {
	tracer := otel.Tracer("dialogue/StartSession")
	ctx, span := tracer.Start(ctx, "StartSession")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", id))

	ls, err := e.lookup(ctx, id)
	if err == nil {
		ls.mu.Lock()
		defer ls.mu.Unlock()
		return *ls.sess, nil
	}
	if !errors.Is(err, sessionstore.ErrNotFound) {
		return Session{}, err
	}

	sess := newSession(id, userName)
	ls = &liveSession{sess: sess, subs: map[int]chan Message{}}

	e.mu.Lock()
	if existing, ok := e.live[id]; ok {
		// Lost the creation race; use the winner.
		e.mu.Unlock()
		existing.mu.Lock()
		defer existing.mu.Unlock()
		return *existing.sess, nil
	}
	e.live[id] = ls
	e.mu.Unlock()

	ls.mu.Lock()
	defer ls.mu.Unlock()

	if err := e.persist(ctx, ls); err != nil {
		return Session{}, err
	}
	greeting := newMessage(Greeting(sess.UserName), SenderCompanion, nil)
	e.append(ctx, ls, greeting)

	e.logger.Logger(ctx).Info("[Dialogue] Session started",
		zap.String("session_id", id),
		zap.String("skill", sess.Skill))

	return *sess, nil
}

// Session returns a snapshot of the session state.
func (e *Engine) Session(ctx context.Context, id string) (Session, error) {
	ls, err := e.lookup(ctx, id)
	if err != nil {
		return Session{}, err
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return *ls.sess, nil
}

// Messages returns the append-only transcript in order. Unknown or ended
// sessions report ErrNotFound, matching Session.
func (e *Engine) Messages(ctx context.Context, id string) ([]Message, error) {
	if _, err := e.lookup(ctx, id); err != nil {
		return nil, err
	}
	raw, err := e.store.Messages(ctx, id)
	if err != nil {
		return nil, err
	}
	messages := make([]Message, 0, len(raw))
	for _, data := range raw {
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("corrupt message in transcript: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// HandleUserTurn appends the user message and schedules the companion reply
// after the artificial typing delay. The reply branch is decided when the
// delay fires, from the session state at that moment.
func (e *Engine) HandleUserTurn(ctx context.Context, id, text string) (Message, error) {
	tracer := otel.Tracer("dialogue/HandleUserTurn")
	ctx, span := tracer.Start(ctx, "HandleUserTurn")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", id),
		attribute.Int("text.length", len(text)),
	)

	ls, err := e.lookup(ctx, id)
	if err != nil {
		return Message{}, err
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.closed {
		return Message{}, sessionstore.ErrNotFound
	}
	if ls.pending != nil {
		span.AddEvent("Turn rejected, reply pending")
		return Message{}, ErrReplyPending
	}

	userMsg := newMessage(text, SenderUser, nil)
	e.append(ctx, ls, userMsg)

	delay := e.replyDelay()
	span.SetAttributes(attribute.Int64("reply.delay_ms", delay.Milliseconds()))
	ls.pending = e.sched.Schedule(delay, func() {
		e.deliverReply(id, text)
	})

	return userMsg, nil
}

// StartScaffoldedPractice is the explicit entry into scaffolded practice:
// pick a scenario, arm the scorer for the next turn, emit the prompt.
func (e *Engine) StartScaffoldedPractice(ctx context.Context, id string) (Message, error) {
	tracer := otel.Tracer("dialogue/StartScaffoldedPractice")
	ctx, span := tracer.Start(ctx, "StartScaffoldedPractice")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", id))

	ls, err := e.lookup(ctx, id)
	if err != nil {
		return Message{}, err
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.closed {
		return Message{}, sessionstore.ErrNotFound
	}
	if ls.pending != nil {
		return Message{}, ErrReplyPending
	}

	scenario := PracticeScenario(e.rand)
	ls.sess.CurrentScenario = scenario
	ls.sess.AwaitingPractice = true
	// Explicit practice entry supersedes the first-share classification:
	// the armed answer must be scored, not classified.
	ls.sess.Progress.InitialInputReceived = true
	ls.sess.Phase = PhaseScaffolded

	msg := newMessage(PracticeMessage(scenario), SenderCompanion, map[string]any{"scenario": scenario})
	e.append(ctx, ls, msg)
	if err := e.persist(ctx, ls); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// StartModeling emits the current worked example without advancing the
// step. The step only moves when the caller asks for the next example.
func (e *Engine) StartModeling(ctx context.Context, id string) (Message, error) {
	return e.emitModeling(ctx, id, false)
}

// AdvanceModeling moves to the next worked example (saturating at the end
// of the catalog) and emits it.
func (e *Engine) AdvanceModeling(ctx context.Context, id string) (Message, error) {
	return e.emitModeling(ctx, id, true)
}

func (e *Engine) emitModeling(ctx context.Context, id string, advance bool) (Message, error) {
	tracer := otel.Tracer("dialogue/emitModeling")
	ctx, span := tracer.Start(ctx, "emitModeling")
	defer span.End()

	ls, err := e.lookup(ctx, id)
	if err != nil {
		return Message{}, err
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.closed {
		return Message{}, sessionstore.ErrNotFound
	}
	if ls.pending != nil {
		return Message{}, ErrReplyPending
	}

	if advance && ls.sess.Step < ModelingCatalogSize()-1 {
		ls.sess.Step++
	}
	if ls.sess.Step == ModelingCatalogSize()-1 {
		ls.sess.Progress.ModelingComplete = true
	}
	ls.sess.Phase = PhaseModeling

	example := ModelingExampleAt(ls.sess.Step)
	msg := newMessage(ModelingMessage(example), SenderCompanion, map[string]any{"step": ls.sess.Step})
	e.append(ctx, ls, msg)
	if err := e.persist(ctx, ls); err != nil {
		return Message{}, err
	}
	span.SetAttributes(attribute.Int("modeling.step", ls.sess.Step))
	return msg, nil
}

// Subscribe returns a channel receiving every message appended to the
// session from now on. The cancel func must be called to release it.
func (e *Engine) Subscribe(ctx context.Context, id string) (<-chan Message, CancelFunc, error) {
	ls, err := e.lookup(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.closed {
		return nil, nil, sessionstore.ErrNotFound
	}

	ch := make(chan Message, 16)
	idx := ls.nextSub
	ls.nextSub++
	ls.subs[idx] = ch

	cancel := func() {
		ls.mu.Lock()
		defer ls.mu.Unlock()
		if _, ok := ls.subs[idx]; ok {
			delete(ls.subs, idx)
			close(ch)
		}
	}
	return ch, cancel, nil
}

// EndSession tears the session down: any pending scheduled reply is
// discarded, subscribers are closed, and the store entry is cleared. No
// reply is emitted into a torn-down session.
func (e *Engine) EndSession(ctx context.Context, id string) error {
	tracer := otel.Tracer("dialogue/EndSession")
	ctx, span := tracer.Start(ctx, "EndSession")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", id))

	e.mu.Lock()
	ls := e.live[id]
	delete(e.live, id)
	e.mu.Unlock()

	if ls != nil {
		ls.mu.Lock()
		ls.closed = true
		if ls.pending != nil {
			ls.pending()
			ls.pending = nil
		}
		for idx, ch := range ls.subs {
			delete(ls.subs, idx)
			close(ch)
		}
		ls.mu.Unlock()
	}

	e.logger.Logger(ctx).Info("[Dialogue] Session ended", zap.String("session_id", id))
	return e.store.Clear(ctx, id)
}

// deliverReply runs when the typing delay fires. It re-checks liveness
// under the session lock so a torn-down session never receives it.
func (e *Engine) deliverReply(id, userText string) {
	ctx := context.Background()

	e.mu.Lock()
	ls := e.live[id]
	e.mu.Unlock()
	if ls == nil {
		return
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.closed {
		return
	}
	ls.pending = nil

	sess := ls.sess
	var msg Message

	switch {
	case !sess.Progress.InitialInputReceived:
		category := Classify(userText)
		resp := InitialResponseFor(category)
		sess.Progress.InitialInputReceived = true
		sess.Phase = resp.NextPhase
		msg = newMessage(resp.Text, SenderCompanion, map[string]any{"category": string(category)})

	case sess.AwaitingPractice && sess.Phase == PhaseScaffolded:
		scored := Score(userText)
		sess.AwaitingPractice = false
		sess.Progress.PracticeAttempts++
		msg = newMessage(CoachingMessage(scored), SenderCompanion, map[string]any{
			"score":        scored.Score,
			"strengths":    scored.Strengths,
			"improvements": scored.Improvements,
		})
		if scored.Score >= 3 && sess.Progress.PracticeAttempts >= 2 {
			ls.pending = e.sched.Schedule(e.articulationDelay, func() {
				e.beginArticulation(id)
			})
		}

	case sess.Phase == PhaseArticulation:
		sess.Progress.ReflectionComplete = true
		if sess.Progress.AutonomyLevel < 1 {
			sess.Progress.AutonomyLevel = 1
		}
		sess.Phase = PhaseFading
		msg = newMessage(reflectionAcknowledgment, SenderCompanion, nil)

	case sess.Phase == PhaseFading:
		line := FadedSupportLine(sess.Progress.AutonomyLevel)
		if sess.Progress.AutonomyLevel < 3 {
			sess.Progress.AutonomyLevel++
		}
		msg = newMessage(line, SenderCompanion, map[string]any{"autonomyLevel": sess.Progress.AutonomyLevel})

	default:
		msg = newMessage(ContextualResponse(e.rand), SenderCompanion, nil)
	}

	e.append(ctx, ls, msg)
	if err := e.persist(ctx, ls); err != nil {
		e.logger.Logger(ctx).Error("[Dialogue] Could not persist session after reply",
			zap.String("session_id", id), zap.Error(err))
	}
}

// beginArticulation is the chained transition scheduled after strong
// practice performance.
func (e *Engine) beginArticulation(id string) {
	ctx := context.Background()

	e.mu.Lock()
	ls := e.live[id]
	e.mu.Unlock()
	if ls == nil {
		return
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.closed {
		return
	}
	ls.pending = nil

	ls.sess.Phase = PhaseArticulation
	msg := newMessage(articulationPrompt, SenderCompanion, nil)
	e.append(ctx, ls, msg)
	if err := e.persist(ctx, ls); err != nil {
		e.logger.Logger(ctx).Error("[Dialogue] Could not persist session at articulation",
			zap.String("session_id", id), zap.Error(err))
	}
}

// lookup returns the live session, resurrecting it from the store when the
// engine has restarted since the conversation began.
func (e *Engine) lookup(ctx context.Context, id string) (*liveSession, error) {
	e.mu.Lock()
	if ls, ok := e.live[id]; ok {
		e.mu.Unlock()
		return ls, nil
	}
	e.mu.Unlock()

	data, err := e.store.LoadSession(ctx, id)
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("corrupt session state: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if ls, ok := e.live[id]; ok {
		return ls, nil
	}
	ls := &liveSession{sess: &sess, subs: map[int]chan Message{}}
	e.live[id] = ls
	return ls, nil
}

func (e *Engine) persist(ctx context.Context, ls *liveSession) error {
	data, err := json.Marshal(ls.sess)
	if err != nil {
		return err
	}
	return e.store.SaveSession(ctx, ls.sess.ID, data)
}

// append writes the message to the transcript and fans it out to
// subscribers. Slow subscribers are skipped rather than blocking the turn.
func (e *Engine) append(ctx context.Context, ls *liveSession, msg Message) {
	data, err := json.Marshal(msg)
	if err == nil {
		err = e.store.AppendMessage(ctx, ls.sess.ID, data)
	}
	if err != nil {
		e.logger.Logger(ctx).Error("[Dialogue] Could not append message to transcript",
			zap.String("session_id", ls.sess.ID), zap.Error(err))
	}

	for _, ch := range ls.subs {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (e *Engine) replyDelay() time.Duration {
	spread := e.replyDelayMax - e.replyDelayMin
	if spread <= 0 {
		return e.replyDelayMin
	}
	return e.replyDelayMin + time.Duration(e.rand.Float64()*float64(spread))
}
