// Package gemini adapts the hosted generation services (narration, prompt
// cache, images, speech) behind narrow interfaces the narrator depends on.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// ContentGenerator issues one generation request. *genai.Models satisfies it.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// CacheService creates and lists remote prompt caches. *genai.Caches satisfies it.
type CacheService interface {
	Create(ctx context.Context, model string, config *genai.CreateCachedContentConfig) (*genai.CachedContent, error)
	All(ctx context.Context) iter.Seq2[*genai.CachedContent, error]
}

// ImageService generates images from a text prompt. *genai.Models satisfies it.
type ImageService interface {
	GenerateImages(ctx context.Context, model string, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
}

// Config configures the Gemini API client.
type Config struct {
	APIKey     string
	HTTPClient *http.Client
}

// Services bundles the generation surfaces backed by one client.
type Services struct {
	Content ContentGenerator
	Caches  CacheService
	Images  ImageService
}

// NewClient builds the Gemini API backed services.
func NewClient(ctx context.Context, cfg Config) (Services, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return Services{}, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	})
	if err != nil {
		return Services{}, fmt.Errorf("create genai client: %w", err)
	}
	return Services{
		Content: client.Models,
		Caches:  client.Caches,
		Images:  client.Models,
	}, nil
}

// SafetySettings are the thresholds applied to every narration request.
func SafetySettings() []*genai.SafetySetting {
	return []*genai.SafetySetting{
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
	}
}

// NarrationConfig returns the base request configuration for narration turns.
func NarrationConfig(temperature float32) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:    genai.Ptr(temperature),
		SafetySettings: SafetySettings(),
	}
}

// ResponseParts returns the parts of the first candidate, or nil.
func ResponseParts(resp *genai.GenerateContentResponse) []*genai.Part {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return nil
	}
	return resp.Candidates[0].Content.Parts
}
