package openaiapi

import (
	"context"
	"os"
	"testing"
	"time"

	"moaidev/logger"
)

func TestAnalyzeReflection(t *testing.T) {
	apiKey := os.Getenv("OPENAI_SECRET_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_SECRET_KEY environment variable not set, skipping test")
	}

	logMiddleware := logger.Connect(logger.LoggerConnectProps{Production: false})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	client := Connect(ctx, OpenAIConnectProps{Logger: logMiddleware})

	reflection := "I had dinner with my sister and for once I felt like she really heard me. It was amazing."
	result, err := client.AnalyzeReflection(ctx, reflection, "my sister")
	if err != nil {
		t.Fatalf("AnalyzeReflection failed: %v", err)
	}

	if err := result.Validate(); err != nil {
		t.Errorf("analysis failed validation: %v", err)
	}

	t.Logf("Analysis summary: %s", result.Summary)
}

func TestGenerateSpeech(t *testing.T) {
	apiKey := os.Getenv("OPENAI_SECRET_KEY")
	if apiKey == "" {
		t.Skip("OPENAI_SECRET_KEY environment variable not set, skipping test")
	}

	logMiddleware := logger.Connect(logger.LoggerConnectProps{Production: false})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	client := Connect(ctx, OpenAIConnectProps{Logger: logMiddleware})

	audio, err := client.GenerateSpeech(ctx, "Hey! Ready to practice a little curiosity today?")
	if err != nil {
		t.Fatalf("GenerateSpeech failed: %v", err)
	}

	if len(audio) == 0 {
		t.Error("Expected non-empty audio payload, got empty bytes")
	}
}
