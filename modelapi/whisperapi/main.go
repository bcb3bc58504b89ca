package whisperapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"os"
	"strings"

	"moaidev/httpmiddleware"
	"moaidev/logger"
	"moaidev/transcription"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const whisperURL = "https://api.openai.com/v1/audio/transcriptions"

type WhisperConnectProps struct {
	Logger *logger.LogMiddleware
}

// Whisper transcribes audio through the OpenAI Whisper REST endpoint.
type Whisper struct {
	logger    *logger.LogMiddleware
	semaphore *semaphore.Weighted
}

func Connect(ctx context.Context, args WhisperConnectProps) *Whisper {
	tracer := otel.Tracer("whisperapi/Connect")
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()

	maxWorkers := 10
	sem := semaphore.NewWeighted(int64(maxWorkers))

	span.SetAttributes(attribute.Int("maxWorkers", maxWorkers))
	args.Logger.Logger(ctx).Info("[WhisperAPI] Transcription client ready")

	return &Whisper{logger: args.Logger, semaphore: sem}
}

type whisperResponse struct {
	Text string `json:"text"`
}

type whisperErrorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}

func (w *Whisper) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	tracer := otel.Tracer("whisperapi/Transcribe")
	ctx, span := tracer.Start(ctx, "Transcribe")
	defer span.End()

	span.SetAttributes(
		attribute.Int("audio.data.size", len(audio)),
		attribute.String("audio.mime_type", mimeType),
	)

	logger := w.logger.Logger(ctx)

	if err := transcription.ValidateAudio(audio); err != nil {
		span.RecordError(err)
		return "", err
	}

	apiKey := os.Getenv("OPENAI_SECRET_KEY")
	if apiKey == "" {
		return "", &transcription.Error{Kind: transcription.KindUpstreamFailure, Message: "OpenAI API key not configured"}
	}

	if err := w.semaphore.Acquire(ctx, 1); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to acquire semaphore: %w", err)
	}
	defer w.semaphore.Release(1)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", fileNameFor(mimeType))
	if err != nil {
		return "", fmt.Errorf("could not build upload form: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("could not write audio payload: %w", err)
	}
	_ = form.WriteField("model", "whisper-1")
	_ = form.WriteField("response_format", "json")
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("could not finalize upload form: %w", err)
	}

	span.AddEvent("Calling Whisper API")
	status, respBody, err := httpmiddleware.HttpRequestWithStatus(httpmiddleware.HttpRequestStruct{
		Method: "POST",
		Url:    whisperURL,
		Body:   &body,
		Headers: map[string]string{
			"authorization": "Bearer " + apiKey,
			"content-type":  form.FormDataContentType(),
		},
	})
	if err != nil {
		logger.Error("[WhisperAPI] Transcription request failed", zap.Error(err))
		span.RecordError(err)
		return "", &transcription.Error{Kind: transcription.KindUpstreamFailure, Message: err.Error()}
	}

	if status < 200 || status >= 300 {
		// Surface the structured upstream error verbatim when there is
		// one; wrap the raw body text otherwise.
		message := strings.TrimSpace(string(respBody))
		var parsed whisperErrorBody
		if jsonErr := json.Unmarshal(respBody, &parsed); jsonErr == nil {
			if parsed.Error.Message != "" {
				message = parsed.Error.Message
			} else if parsed.Message != "" {
				message = parsed.Message
			}
		}
		logger.Error("[WhisperAPI] Upstream returned an error",
			zap.Int("status", status),
			zap.String("message", message))
		span.AddEvent("Whisper API call failed", trace.WithAttributes(attribute.Int("status", status)))
		return "", &transcription.Error{Kind: transcription.KindUpstreamFailure, Message: message}
	}

	trimmed := strings.TrimSpace(string(respBody))
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		logger.Error("[WhisperAPI] Response is not JSON", zap.String("prefix", firstN(trimmed, 50)))
		return "", &transcription.Error{Kind: transcription.KindBadFormat, Message: "invalid response format from transcription service"}
	}

	var parsed whisperResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		span.RecordError(err)
		return "", &transcription.Error{Kind: transcription.KindBadFormat, Message: "invalid JSON response from transcription service"}
	}

	logger.Info("[WhisperAPI] Successfully transcribed audio",
		zap.Int("transcription.length", len(parsed.Text)))
	span.AddEvent("Transcription successful", trace.WithAttributes(attribute.Int("transcription.length", len(parsed.Text))))

	return parsed.Text, nil
}

func fileNameFor(mimeType string) string {
	if strings.Contains(mimeType, "mp4") {
		return "recording.mp4"
	}
	return "recording.webm"
}

func firstN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
