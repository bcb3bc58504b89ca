package geminiapi

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"moaidev/analysis"
	"moaidev/logger"
	"moaidev/modelapi"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	GEMINI_MODEL_NAME = "gemini-2.5-flash"
)

const (
	maxRetries = 3
	baseDelay  = 1 * time.Second
)

type GeminiConnectProps struct {
	Logger *logger.LogMiddleware
}

// Gemini is the alternate analysis provider, selected with
// ANALYSIS_PROVIDER=gemini. It uses function calling so the payload comes
// back structured instead of as free text.
type Gemini struct {
	logger *logger.LogMiddleware
	client *genai.Client
}

func exponentialBackoff(attempt int) time.Duration {
	return baseDelay * time.Duration(1<<uint(attempt))
}

func Connect(ctx context.Context, args GeminiConnectProps) *Gemini {
	tracer := otel.Tracer("geminiapi/Connect")
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()
	args.Logger.Logger(ctx).Info("[GeminiAPI] Connecting Gemini API client")

	GEMINI_KEY := os.Getenv("GEMINI_SECRET_KEY")

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  GEMINI_KEY,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		args.Logger.Logger(ctx).Error("[GeminiAPI] Could not create Gemini client")
		os.Exit(21)
	}

	return &Gemini{logger: args.Logger, client: client}
}

func (g *Gemini) generateContentWithRetry(ctx context.Context, userPrompt string, tools []*genai.Tool, toolConfig *genai.ToolConfig) (*genai.GenerateContentResponse, error) {
	tracer := otel.Tracer("geminiapi/generateContentWithRetry")
	ctx, span := tracer.Start(ctx, "generateContentWithRetry")
	defer span.End()
	g.logger.Logger(ctx).Info("[GeminiAPI] generateContentWithRetry called", zap.Int("prompt.length", len(userPrompt)))

	var resp *genai.GenerateContentResponse
	var err error

	thinkingBudget := int32(0)

	safetySettings := []*genai.SafetySetting{
		{
			Category:  genai.HarmCategoryHarassment,
			Threshold: genai.HarmBlockThresholdBlockNone,
		},
		{
			Category:  genai.HarmCategoryHateSpeech,
			Threshold: genai.HarmBlockThresholdBlockNone,
		},
		{
			Category:  genai.HarmCategorySexuallyExplicit,
			Threshold: genai.HarmBlockThresholdBlockNone,
		},
		{
			Category:  genai.HarmCategoryDangerousContent,
			Threshold: genai.HarmBlockThresholdBlockNone,
		},
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		span.AddEvent("Attempt", trace.WithAttributes(attribute.Int("attemptNumber", attempt+1)))

		resp, err = g.client.Models.GenerateContent(ctx, GEMINI_MODEL_NAME, genai.Text(userPrompt), &genai.GenerateContentConfig{
			SafetySettings: safetySettings,
			ToolConfig:     toolConfig,
			Tools:          tools,
			ThinkingConfig: &genai.ThinkingConfig{
				IncludeThoughts: false,
				ThinkingBudget:  &thinkingBudget,
			},
		})

		if err != nil || resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
			if err != nil {
				g.logger.Logger(ctx).Warn("[GeminiAPI] Error generating content, retrying...",
					zap.Error(err),
					zap.Int("attempt", attempt+1),
					zap.Int("maxRetries", maxRetries))
				span.RecordError(err)
			} else {
				g.logger.Logger(ctx).Warn("[GeminiAPI] Received empty or invalid response, retrying...",
					zap.Int("attempt", attempt+1),
					zap.Int("maxRetries", maxRetries))
				span.AddEvent("EmptyResponse")
			}

			if attempt < maxRetries-1 {
				delay := exponentialBackoff(attempt)
				span.AddEvent("Backoff", trace.WithAttributes(attribute.Int64("delayMs", delay.Milliseconds())))
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(delay):
				}
			}
			continue
		}

		span.AddEvent("Generation successful")
		return resp, nil
	}

	if err != nil {
		g.logger.Logger(ctx).Error("[GeminiAPI] Final error generating content after retries", zap.Error(err))
		return nil, err
	}
	return nil, fmt.Errorf("no usable response after %d attempts", maxRetries)
}

func (g *Gemini) analyzeReflectionFunction() *genai.Tool {
	return &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{{
			Name:        "analyze_reflection",
			Description: "Analyze the user's reflection about an interaction and produce a structured Reflection-to-Growth result",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"emotions": {
						Type:        genai.TypeArray,
						Description: "2-3 key emotions identified in the reflection",
						Items: &genai.Schema{
							Type: genai.TypeObject,
							Properties: map[string]*genai.Schema{
								"name": {
									Type:        genai.TypeString,
									Description: "Name of the emotion, e.g. 'warmth', 'anxiety', 'joy'",
								},
								"intensity": {
									Type:        genai.TypeInteger,
									Description: "Intensity on a 1-10 scale",
								},
								"description": {
									Type:        genai.TypeString,
									Description: "Why this emotion was identified",
								},
							},
							Required: []string{"name", "intensity", "description"},
						},
					},
					"triggers": {
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"primary_trigger": {
								Type:        genai.TypeString,
								Description: "What specifically caused the main emotion",
							},
							"underlying_belief": {
								Type:        genai.TypeString,
								Description: "Deeper belief or past experience if mentioned",
							},
						},
						Required: []string{"primary_trigger", "underlying_belief"},
					},
					"recommended_skills": {
						Type:        genai.TypeArray,
						Description: "1-2 relational skills matched to the emotional triggers",
						Items: &genai.Schema{
							Type: genai.TypeObject,
							Properties: map[string]*genai.Schema{
								"skill": {
									Type:        genai.TypeString,
									Description: "One of the fixed skill vocabulary",
									Enum:        modelapi.RECOMMENDED_SKILLS,
								},
								"reason": {
									Type:        genai.TypeString,
									Description: "Why this skill helps",
								},
							},
							Required: []string{"skill", "reason"},
						},
					},
					"micro_experiment": {
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"action": {
								Type:        genai.TypeString,
								Description: "Specific small thing to try in the next interaction",
							},
							"what_to_observe": {
								Type:        genai.TypeString,
								Description: "What to pay attention to",
							},
							"success_indicator": {
								Type:        genai.TypeString,
								Description: "How they'll know it worked",
							},
						},
						Required: []string{"action", "what_to_observe", "success_indicator"},
					},
					"summary": {
						Type:        genai.TypeString,
						Description: "2-3 sentence summary of the key insight",
					},
				},
				Required: []string{"emotions", "triggers", "recommended_skills", "micro_experiment", "summary"},
			},
		}},
	}
}

// AnalyzeReflection runs the analysis through Gemini function calling and
// validates the structured arguments the model returns.
func (g *Gemini) AnalyzeReflection(ctx context.Context, reflection, personName string) (*analysis.ReflectionAnalysis, error) {
	tracer := otel.Tracer("geminiapi/AnalyzeReflection")
	ctx, span := tracer.Start(ctx, "AnalyzeReflection")
	defer span.End()

	span.SetAttributes(attribute.Int("reflection.length", len(reflection)))

	toolConfig := &genai.ToolConfig{
		FunctionCallingConfig: &genai.FunctionCallingConfig{
			Mode:                 genai.FunctionCallingConfigModeAny,
			AllowedFunctionNames: []string{"analyze_reflection"},
		},
	}

	resp, err := g.generateContentWithRetry(ctx, modelapi.AnalysisPrompt(reflection, personName),
		[]*genai.Tool{g.analyzeReflectionFunction()}, toolConfig)
	if err != nil {
		return nil, err
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		if part.FunctionCall == nil || part.FunctionCall.Name != "analyze_reflection" {
			continue
		}
		raw, err := json.Marshal(part.FunctionCall.Args)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("could not encode function call arguments: %w", err)
		}
		var result analysis.ReflectionAnalysis
		if err := json.Unmarshal(raw, &result); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("could not decode analysis arguments: %w", err)
		}
		if err := result.Validate(); err != nil {
			span.RecordError(err)
			return nil, err
		}
		g.logger.Logger(ctx).Info("[GeminiAPI] Reflection analyzed",
			zap.Int("emotions", len(result.Emotions)))
		return &result, nil
	}

	g.logger.Logger(ctx).Warn("[GeminiAPI] No analyze_reflection call in response")
	return nil, fmt.Errorf("no analysis function call in response")
}
