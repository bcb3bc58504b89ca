package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"moaidev/analysis"
	"moaidev/dialogue"
	"moaidev/httpserver"
	"moaidev/logger"
	"moaidev/modelapi/deepgramapi"
	"moaidev/modelapi/geminiapi"
	"moaidev/modelapi/openaiapi"
	"moaidev/modelapi/whisperapi"
	"moaidev/sessionstore"
	"moaidev/telegram"
	"moaidev/transcription"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/hyperdxio/opentelemetry-logs-go/exporters/otlp/otlplogs"
	sdk "github.com/hyperdxio/opentelemetry-logs-go/sdk/logs"
	"github.com/hyperdxio/otel-config-go/otelconfig"
)

const defaultPort = "80"

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}
	godotenv.Load()
	production := os.Getenv("PRODUCTION") != ""

	otelShutdown, err := otelconfig.ConfigureOpenTelemetry()
	if err != nil {
		log.Fatalf("Error setting up OTel SDK - %e", err)
	}
	defer otelShutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logExporter, _ := otlplogs.NewExporter(ctx)
	loggerProvider := sdk.NewLoggerProvider(sdk.WithBatcher(logExporter))
	defer loggerProvider.Shutdown(ctx)

	LogMiddleware := logger.Connect(logger.LoggerConnectProps{Production: production, LoggerProvider: loggerProvider})
	defer LogMiddleware.Sync()

	Logger := LogMiddleware.Logger(ctx)

	var store sessionstore.Store
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		redisStore, err := sessionstore.ConnectRedis(ctx, sessionstore.RedisConnectProps{
			Logger: LogMiddleware,
			Addr:   redisAddr,
			TTL:    24 * time.Hour,
		})
		if err != nil {
			Logger.Fatal("[Server] Could not connect session store", zap.Error(err))
		}
		defer redisStore.Close()
		store = redisStore
	} else {
		Logger.Info("[Server] REDIS_ADDR not set, using in-memory session store")
		store = sessionstore.NewMemoryStore()
	}

	engine := dialogue.Connect(ctx, dialogue.EngineConnectProps{Logger: LogMiddleware, Store: store})

	var transcriber transcription.Service
	switch os.Getenv("TRANSCRIBE_PROVIDER") {
	case "deepgram":
		Logger.Info("[Server] Using Deepgram for transcription")
		transcriber = deepgramapi.Connect(LogMiddleware)
	default:
		Logger.Info("[Server] Using Whisper for transcription")
		transcriber = whisperapi.Connect(ctx, whisperapi.WhisperConnectProps{Logger: LogMiddleware})
	}

	openaiClient := openaiapi.Connect(ctx, openaiapi.OpenAIConnectProps{Logger: LogMiddleware})

	var analyzer analysis.Analyzer = openaiClient
	if os.Getenv("ANALYSIS_PROVIDER") == "gemini" {
		Logger.Info("[Server] Using Gemini for reflection analysis")
		analyzer = geminiapi.Connect(ctx, geminiapi.GeminiConnectProps{Logger: LogMiddleware})
	}

	server := httpserver.Connect(ctx, httpserver.ServerConnectProps{
		Logger:      LogMiddleware,
		Engine:      engine,
		Transcriber: transcriber,
		Analyzer:    analyzer,
		Speaker:     openaiClient,
	})

	if os.Getenv("TELEGRAM_BOT_TOKEN") != "" {
		telegramBot := telegram.Connect(ctx, telegram.TelegramConnectProps{Logger: LogMiddleware, Engine: engine})
		go telegramBot.Listen(ctx)
	}

	httpServer := &http.Server{
		Addr:    ":" + port,
		Handler: otelhttp.NewHandler(server.Router(), "server"),
	}

	go func() {
		Logger.Info("[Server] Listening", zap.String("port", port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			Logger.Fatal("[Server] Listener failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	Logger.Info("[Server] Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		Logger.Error("[Server] Shutdown error", zap.Error(err))
	}
}
