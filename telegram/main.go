package telegram

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"moaidev/dialogue"
	"moaidev/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type TelegramConnectProps struct {
	Logger *logger.LogMiddleware
	Engine *dialogue.Engine
}

// Telegram is the push transport for the companion: each chat gets its own
// practice session, and scheduled companion replies are delivered through
// an engine subscription.
type Telegram struct {
	logger *logger.LogMiddleware
	bot    *tgbotapi.BotAPI
	engine *dialogue.Engine

	mu       sync.Mutex
	attached map[int64]dialogue.CancelFunc
}

func Connect(ctx context.Context, args TelegramConnectProps) *Telegram {
	tracer := otel.Tracer("telegram/Connect")
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()

	botToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	if botToken == "" {
		args.Logger.Logger(ctx).Fatal("TELEGRAM_BOT_TOKEN environment variable not set")
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		args.Logger.Logger(ctx).Fatal("Failed to create Telegram bot", zap.Error(err))
	}

	debug := os.Getenv("TELEGRAM_DEBUG") == "true"
	bot.Debug = debug

	span.SetAttributes(
		attribute.String("bot.username", bot.Self.UserName),
		attribute.Bool("bot.debug", debug),
	)

	args.Logger.Logger(ctx).Info("[Telegram] Bot connected successfully",
		zap.String("username", bot.Self.UserName),
		zap.Bool("debug", debug),
	)

	return &Telegram{
		logger:   args.Logger,
		bot:      bot,
		engine:   args.Engine,
		attached: map[int64]dialogue.CancelFunc{},
	}
}

func (t *Telegram) Listen(ctx context.Context) {
	tracer := otel.Tracer("telegram/Listen")
	ctx, span := tracer.Start(ctx, "Listen")
	defer span.End()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := t.bot.GetUpdatesChan(u)

	t.logger.Logger(ctx).Info("[Telegram] Starting message listener")

	for {
		select {
		case <-ctx.Done():
			t.logger.Logger(ctx).Info("[Telegram] Shutting down listener")
			t.detachAll()
			return
		case update := <-updates:
			if update.Message != nil {
				t.handleMessage(ctx, update.Message)
			}
		}
	}
}

func sessionID(chatID int64) string {
	return fmt.Sprintf("tg:%d", chatID)
}

func (t *Telegram) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	tracer := otel.Tracer("telegram/handleMessage")
	ctx, span := tracer.Start(ctx, "handleMessage")
	defer span.End()

	if message.From == nil || message.Text == "" {
		return
	}

	user := message.From
	chatID := message.Chat.ID
	span.SetAttributes(
		attribute.Int64("user.id", user.ID),
		attribute.String("user.username", user.UserName),
	)

	t.logger.Logger(ctx).Info("[Telegram] Received message",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.UserName),
		zap.Int("text.length", len(message.Text)),
	)

	if message.Text == "/reset" {
		t.resetChat(ctx, chatID)
		return
	}

	if err := t.ensureAttached(ctx, chatID, user.FirstName); err != nil {
		t.logger.Logger(ctx).Error("[Telegram] Could not start session", zap.Error(err))
		return
	}

	if _, err := t.engine.HandleUserTurn(ctx, sessionID(chatID), message.Text); err != nil {
		if errors.Is(err, dialogue.ErrReplyPending) {
			// The reply already on its way answers the user; drop the
			// overlapping turn like a single-threaded client would.
			t.logger.Logger(ctx).Info("[Telegram] Dropped turn, reply pending", zap.Int64("chat_id", chatID))
			return
		}
		t.logger.Logger(ctx).Error("[Telegram] Could not handle turn", zap.Error(err))
	}
}

// ensureAttached creates the chat's session on first contact and starts the
// delivery pump for scheduled companion replies.
func (t *Telegram) ensureAttached(ctx context.Context, chatID int64, firstName string) error {
	t.mu.Lock()
	if _, ok := t.attached[chatID]; ok {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	id := sessionID(chatID)
	if _, err := t.engine.StartSession(ctx, id, firstName); err != nil {
		return err
	}

	// Deliver the greeting for a fresh session before subscribing. A
	// re-attach mid-conversation (transport restart) must not replay the
	// whole history into the chat.
	messages, err := t.engine.Messages(ctx, id)
	if err != nil {
		return err
	}
	if shouldReplay(messages) {
		t.send(ctx, chatID, messages[0].Text)
	}

	ch, cancel, err := t.engine.Subscribe(ctx, id)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.attached[chatID] = cancel
	t.mu.Unlock()

	go t.pump(chatID, ch)
	return nil
}

// shouldReplay reports whether the transcript is just the greeting of a
// fresh session. Anything longer means the chat already saw the messages.
func shouldReplay(messages []dialogue.Message) bool {
	return len(messages) == 1 && messages[0].Sender == dialogue.SenderCompanion
}

func (t *Telegram) pump(chatID int64, ch <-chan dialogue.Message) {
	ctx := context.Background()
	for msg := range ch {
		if msg.Sender != dialogue.SenderCompanion {
			continue
		}
		t.send(ctx, chatID, msg.Text)
	}
}

func (t *Telegram) send(ctx context.Context, chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Logger(ctx).Error("[Telegram] Failed to send message",
			zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (t *Telegram) resetChat(ctx context.Context, chatID int64) {
	t.mu.Lock()
	cancel := t.attached[chatID]
	delete(t.attached, chatID)
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if err := t.engine.EndSession(ctx, sessionID(chatID)); err != nil {
		t.logger.Logger(ctx).Error("[Telegram] Could not end session", zap.Error(err))
	}
	t.send(ctx, chatID, "Okay, fresh start! Send me anything that's on your mind and we'll practice together.")
}

func (t *Telegram) detachAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for chatID, cancel := range t.attached {
		cancel()
		delete(t.attached, chatID)
	}
}
