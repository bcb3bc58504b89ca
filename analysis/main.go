// Package analysis models the structured emotional analysis returned by the
// text-analysis collaborator, tolerates the formatting noise language models
// wrap it in, and supplies a deterministic local fallback when the payload
// cannot be used.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

type Emotion struct {
	Name        string `json:"name"`
	Intensity   int    `json:"intensity"`
	Description string `json:"description"`
}

type Triggers struct {
	PrimaryTrigger   string `json:"primary_trigger"`
	UnderlyingBelief string `json:"underlying_belief"`
}

type RecommendedSkill struct {
	Skill  string `json:"skill"`
	Reason string `json:"reason"`
}

type MicroExperiment struct {
	Action           string `json:"action"`
	WhatToObserve    string `json:"what_to_observe"`
	SuccessIndicator string `json:"success_indicator"`
}

// ReflectionAnalysis is the structured result of analyzing one voice
// reflection. Emotions, Triggers, RecommendedSkills, and MicroExperiment
// are required; a payload missing any of them is rejected.
type ReflectionAnalysis struct {
	Emotions          []Emotion          `json:"emotions"`
	Triggers          *Triggers          `json:"triggers"`
	RecommendedSkills []RecommendedSkill `json:"recommended_skills"`
	MicroExperiment   *MicroExperiment   `json:"micro_experiment"`
	Summary           string             `json:"summary"`
}

// Analyzer is the text-analysis collaborator contract.
type Analyzer interface {
	AnalyzeReflection(ctx context.Context, reflection, personName string) (*ReflectionAnalysis, error)
}

// Validate rejects payloads missing a required top-level field.
func (a *ReflectionAnalysis) Validate() error {
	if len(a.Emotions) == 0 {
		return fmt.Errorf("analysis missing emotions")
	}
	if a.Triggers == nil {
		return fmt.Errorf("analysis missing triggers")
	}
	if len(a.RecommendedSkills) == 0 {
		return fmt.Errorf("analysis missing recommended_skills")
	}
	if a.MicroExperiment == nil {
		return fmt.Errorf("analysis missing micro_experiment")
	}
	return nil
}

// Parse turns a raw model response into a validated analysis. Markdown code
// fences around the payload are stripped; if the cleaned text still is not
// valid JSON, the largest embedded object (first '{' through last '}') is
// tried once before giving up.
func Parse(raw string) (*ReflectionAnalysis, error) {
	cleaned := stripFences(strings.TrimSpace(raw))

	var a ReflectionAnalysis
	if err := json.Unmarshal([]byte(cleaned), &a); err != nil {
		fragment, ok := largestObject(cleaned)
		if !ok {
			return nil, fmt.Errorf("response contains no JSON object: %w", err)
		}
		if err := json.Unmarshal([]byte(fragment), &a); err != nil {
			return nil, fmt.Errorf("could not parse analysis payload: %w", err)
		}
	}

	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

func stripFences(text string) string {
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

func largestObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}
