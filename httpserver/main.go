package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"moaidev/analysis"
	"moaidev/dialogue"
	"moaidev/logger"
	"moaidev/sessionstore"
	"moaidev/transcription"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Speaker renders companion text as audio. Optional; the speak route
// returns 503 when no provider is wired.
type Speaker interface {
	GenerateSpeech(ctx context.Context, text string) ([]byte, error)
}

type ServerConnectProps struct {
	Logger      *logger.LogMiddleware
	Engine      *dialogue.Engine
	Transcriber transcription.Service
	Analyzer    analysis.Analyzer
	Speaker     Speaker
}

type Server struct {
	logger      *logger.LogMiddleware
	engine      *dialogue.Engine
	transcriber transcription.Service
	analyzer    analysis.Analyzer
	speaker     Speaker
}

func Connect(ctx context.Context, args ServerConnectProps) *Server {
	args.Logger.Logger(ctx).Info("[HTTPServer] API surface ready")
	return &Server{
		logger:      args.Logger,
		engine:      args.Engine,
		transcriber: args.Transcriber,
		analyzer:    args.Analyzer,
		speaker:     args.Speaker,
	}
}

// Router assembles the chi router with the standard middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(s.requestLogger)

	r.Post("/api/transcribe", s.handleTranscribe)
	r.Post("/api/analyze-reflection", s.handleAnalyzeReflection)

	r.Route("/api/companion/session", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleEndSession)
			r.Get("/messages", s.handleGetMessages)
			r.Post("/message", s.handlePostMessage)
			r.Post("/practice", s.handleStartPractice)
			r.Post("/modeling", s.handleStartModeling)
			r.Post("/modeling/next", s.handleAdvanceModeling)
			r.Post("/speak", s.handleSpeak)
		})
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		s.logger.Logger(ctx).Info("Request Received", zap.String("url", r.URL.Path), zap.String("method", r.Method))
		next.ServeHTTP(w, r)
		s.logger.Logger(ctx).Info("Request Completed", zap.String("path", r.URL.Path), zap.String("method", r.Method))
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	tracer := otel.Tracer("httpserver/handleTranscribe")
	ctx, span := tracer.Start(r.Context(), "handleTranscribe")
	defer span.End()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(io.LimitReader(file, transcription.MaxAudioBytes+1))
	if err != nil {
		span.RecordError(err)
		writeError(w, http.StatusBadRequest, "Could not read uploaded file")
		return
	}

	span.SetAttributes(
		attribute.Int("audio.size", len(audio)),
		attribute.String("audio.filename", header.Filename),
	)

	mimeType := header.Header.Get("Content-Type")
	text, err := s.transcriber.Transcribe(ctx, audio, mimeType)
	if err != nil {
		s.logger.Logger(ctx).Error("[HTTPServer] Transcription failed", zap.Error(err))
		span.RecordError(err)
		writeError(w, transcribeStatus(err), transcribeMessage(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"text": text, "success": true})
}

func transcribeStatus(err error) int {
	kind, ok := transcription.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case transcription.KindNoAudio, transcription.KindTooLarge:
		return http.StatusBadRequest
	case transcription.KindUpstreamFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func transcribeMessage(err error) string {
	var te *transcription.Error
	if errors.As(err, &te) {
		return te.Message
	}
	return err.Error()
}

type analyzeRequest struct {
	Reflection string `json:"reflection"`
	PersonName string `json:"personName"`
}

func (s *Server) handleAnalyzeReflection(w http.ResponseWriter, r *http.Request) {
	tracer := otel.Tracer("httpserver/handleAnalyzeReflection")
	ctx, span := tracer.Start(r.Context(), "handleAnalyzeReflection")
	defer span.End()

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Reflection == "" || req.PersonName == "" {
		writeError(w, http.StatusBadRequest, "Missing reflection or person name")
		return
	}

	span.SetAttributes(attribute.Int("reflection.length", len(req.Reflection)))

	result, err := s.analyzer.AnalyzeReflection(ctx, req.Reflection, req.PersonName)
	if err != nil {
		// The user-visible flow never fails on a bad upstream payload;
		// substitute the deterministic local analysis instead.
		s.logger.Logger(ctx).Warn("[HTTPServer] Analysis failed, using fallback", zap.Error(err))
		span.AddEvent("Fallback analysis substituted")
		result = analysis.Fallback(req.Reflection, req.PersonName)
	}

	writeJSON(w, http.StatusOK, map[string]any{"analysis": result})
}

type createSessionRequest struct {
	UserName string `json:"userName"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	id := uuid.NewString()
	sess, err := s.engine.StartSession(r.Context(), id, req.UserName)
	if err != nil {
		s.logger.Logger(r.Context()).Error("[HTTPServer] Could not start session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Could not start session")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"session": sess})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	sess, err := s.engine.Session(r.Context(), id)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": sess})
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	messages, err := s.engine.Messages(r.Context(), id)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

type postMessageRequest struct {
	Text string `json:"text"`
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Missing message text")
		return
	}

	msg, err := s.engine.HandleUserTurn(r.Context(), id, req.Text)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	// The companion reply lands in the transcript after the typing delay.
	writeJSON(w, http.StatusAccepted, map[string]any{"message": msg})
}

func (s *Server) handleStartPractice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	msg, err := s.engine.StartScaffoldedPractice(r.Context(), id)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": msg})
}

func (s *Server) handleStartModeling(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	msg, err := s.engine.StartModeling(r.Context(), id)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": msg})
}

func (s *Server) handleAdvanceModeling(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	msg, err := s.engine.AdvanceModeling(r.Context(), id)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": msg})
}

type speakRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	if s.speaker == nil {
		writeError(w, http.StatusServiceUnavailable, "Speech generation not configured")
		return
	}

	var req speakRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		writeError(w, http.StatusBadRequest, "Missing text to speak")
		return
	}

	audio, err := s.speaker.GenerateSpeech(r.Context(), req.Text)
	if err != nil {
		s.logger.Logger(r.Context()).Error("[HTTPServer] Speech generation failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "Speech generation failed")
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if err := s.engine.EndSession(r.Context(), id); err != nil {
		s.logger.Logger(r.Context()).Error("[HTTPServer] Could not end session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Could not end session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, sessionstore.ErrNotFound):
		writeError(w, http.StatusNotFound, "Session not found")
	case errors.Is(err, dialogue.ErrReplyPending):
		writeError(w, http.StatusConflict, "Companion is still replying, try again in a moment")
	default:
		s.logger.Logger(r.Context()).Error("[HTTPServer] Request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal error")
	}
}
