package openaiapi

import (
	"context"
	"fmt"
	"io"
	"os"

	"moaidev/analysis"
	"moaidev/logger"
	"moaidev/modelapi"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/param"
)

const ANALYSIS_MODEL = openai.ChatModelGPT4o

type OpenAI struct {
	logger    *logger.LogMiddleware
	semaphore *semaphore.Weighted
	client    *openai.Client
}

type OpenAIConnectProps struct {
	Logger *logger.LogMiddleware
}

func Connect(ctx context.Context, args OpenAIConnectProps) *OpenAI {
	tracer := otel.Tracer("openaiapi/Connect")
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()

	maxWorkers := 10
	sem := semaphore.NewWeighted(int64(maxWorkers))

	OPENAI_SECRET_KEY := os.Getenv("OPENAI_SECRET_KEY")

	span.SetAttributes(attribute.Int("maxWorkers", maxWorkers))
	client := openai.NewClient(
		option.WithAPIKey(OPENAI_SECRET_KEY),
	)

	args.Logger.Logger(ctx).Info("[OpenAIAPI] Client ready")

	return &OpenAI{logger: args.Logger, semaphore: sem, client: &client}
}

// AnalyzeReflection runs the Reflection-to-Growth prompt and parses the
// model output into a validated analysis. Parse failures propagate so the
// caller can substitute the local fallback.
func (o *OpenAI) AnalyzeReflection(ctx context.Context, reflection, personName string) (*analysis.ReflectionAnalysis, error) {
	tracer := otel.Tracer("openaiapi/AnalyzeReflection")
	ctx, span := tracer.Start(ctx, "AnalyzeReflection")
	defer span.End()

	span.SetAttributes(
		attribute.Int("reflection.length", len(reflection)),
		attribute.String("person.name", personName),
	)

	logger := o.logger.Logger(ctx)

	if err := o.semaphore.Acquire(ctx, 1); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to acquire semaphore: %w", err)
	}
	defer o.semaphore.Release(1)

	span.AddEvent("Calling chat completion")
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: ANALYSIS_MODEL,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(modelapi.AnalysisPrompt(reflection, personName)),
		},
		Temperature: openai.Float(0.7),
	})
	if err != nil {
		logger.Error("[OpenAIAPI] Analysis request failed", zap.Error(err))
		span.RecordError(err)
		return nil, fmt.Errorf("analysis request failed: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		logger.Warn("[OpenAIAPI] Empty analysis response")
		return nil, fmt.Errorf("no analysis received")
	}

	result, err := analysis.Parse(resp.Choices[0].Message.Content)
	if err != nil {
		logger.Error("[OpenAIAPI] Could not parse analysis payload", zap.Error(err))
		span.RecordError(err)
		return nil, err
	}

	logger.Info("[OpenAIAPI] Reflection analyzed",
		zap.Int("emotions", len(result.Emotions)),
		zap.Int("skills", len(result.RecommendedSkills)))

	return result, nil
}

// GenerateSpeech renders companion text in the Moai coach voice.
func (o *OpenAI) GenerateSpeech(ctx context.Context, inputText string) ([]byte, error) {
	tracer := otel.Tracer("openaiapi/GenerateSpeech")
	ctx, span := tracer.Start(ctx, "GenerateSpeech")
	defer span.End()

	o.logger.Logger(ctx).Info("[OpenAIAPI] Generating speech", zap.Int("inputText.length", len(inputText)))

	if err := o.semaphore.Acquire(ctx, 1); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to acquire semaphore: %w", err)
	}
	defer o.semaphore.Release(1)

	res, err := o.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
		Model:          openai.SpeechModelGPT4oMiniTTS,
		Input:          inputText,
		Voice:          openai.AudioSpeechNewParamsVoiceSage,
		Instructions:   param.Opt[string]{Value: modelapi.COACH_STYLE_INSTRUCTION},
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("speech generation failed: %w", err)
	}
	defer res.Body.Close()

	audioBytes, err := io.ReadAll(res.Body)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("could not read speech payload: %w", err)
	}

	span.SetAttributes(attribute.Int("audio.size", len(audioBytes)))
	return audioBytes, nil
}
