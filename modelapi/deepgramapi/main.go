package deepgramapi

import (
	"bytes"
	"context"

	"moaidev/logger"
	"moaidev/transcription"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/pkg/client/listen"
	"go.uber.org/zap"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DeepgramAPI is the alternate speech-to-text provider, selected with
// TRANSCRIBE_PROVIDER=deepgram.
type DeepgramAPI struct {
	logger *logger.LogMiddleware
	dg     *api.Client
}

func Connect(logger *logger.LogMiddleware) *DeepgramAPI {
	c := client.NewRESTWithDefaults()
	dg := api.New(c)

	return &DeepgramAPI{logger: logger, dg: dg}
}

func (d *DeepgramAPI) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	tracer := otel.Tracer("deepgramapi/Transcribe")
	ctx, span := tracer.Start(ctx, "Transcribe")
	defer span.End()

	span.SetAttributes(
		attribute.Int("audio.data.size", len(audio)),
		attribute.String("audio.mime_type", mimeType),
	)

	logger := d.logger.Logger(ctx)

	if err := transcription.ValidateAudio(audio); err != nil {
		span.RecordError(err)
		return "", err
	}

	options := &interfaces.PreRecordedTranscriptionOptions{
		Punctuate:  true,
		Diarize:    false,
		Language:   "en",
		Utterances: true,
		Model:      "nova-3",
	}

	audioReader := bytes.NewReader(audio)

	span.AddEvent("Calling Deepgram API")
	res, err := d.dg.FromStream(ctx, audioReader, options)
	if err != nil {
		logger.Error("[DeepgramAPI] Transcription failed", zap.Error(err))
		span.RecordError(err)
		span.AddEvent("Deepgram API call failed")
		return "", &transcription.Error{Kind: transcription.KindUpstreamFailure, Message: err.Error()}
	}

	if res != nil && res.Results != nil && res.Results.Channels != nil && len(res.Results.Channels) > 0 {
		channel := res.Results.Channels[0]
		if channel.Alternatives != nil && len(channel.Alternatives) > 0 {
			transcript := channel.Alternatives[0].Transcript
			logger.Info("[DeepgramAPI] Successfully transcribed audio",
				zap.Int("transcription.length", len(transcript)))
			span.AddEvent("Transcription successful", trace.WithAttributes(attribute.Int("transcription.length", len(transcript))))
			return transcript, nil
		}
	}

	logger.Warn("[DeepgramAPI] No transcription found in response")
	span.AddEvent("No transcription found in Deepgram response")
	return "", &transcription.Error{Kind: transcription.KindBadFormat, Message: "no transcription found in response"}
}
