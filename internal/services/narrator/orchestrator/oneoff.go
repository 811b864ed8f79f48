package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/gemini"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/retry"
)

const premisePrompt = "Generate a short, exciting Dungeons & Dragons 5e campaign premise for a small group. " +
	"Include a hook that pulls the characters into adventure right away."

// Premise is a generated campaign seed.
type Premise struct {
	Title string `json:"title"`
	Text  string `json:"premise"`
}

var premiseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"title":   {Type: genai.TypeString, Description: "A short evocative campaign title"},
		"premise": {Type: genai.TypeString, Description: "One paragraph the narrator can open the game with"},
	},
	Required: []string{"title", "premise"},
}

// GeneratePremise asks the model for a structured campaign premise.
func (o *Orchestrator) GeneratePremise(ctx context.Context) (Premise, error) {
	config := gemini.NarrationConfig(o.temperature)
	config.ResponseMIMEType = "application/json"
	config.ResponseSchema = premiseSchema

	text, err := o.oneOff(ctx, "premise", premisePrompt, config)
	if err != nil {
		return Premise{}, err
	}
	var premise Premise
	if err := json.Unmarshal([]byte(text), &premise); err != nil {
		return Premise{}, fmt.Errorf("decode premise: %w", err)
	}
	premise.Title = strings.TrimSpace(premise.Title)
	premise.Text = strings.TrimSpace(premise.Text)
	if premise.Text == "" {
		return Premise{}, errors.New("model returned an empty premise")
	}
	return premise, nil
}

// DescribeScene turns the latest transcript line into an image prompt.
func (o *Orchestrator) DescribeScene(ctx context.Context) (string, error) {
	last := ""
	if recent := o.store.Recent(1); len(recent) > 0 {
		last = recent[0]
	}
	prompt := fmt.Sprintf("Based on the last message: %q, describe the scene for an image generator in two sentences. "+
		"Focus on lighting, atmosphere, setting and costume. Style: fantasy oil painting.", last)
	return o.oneOff(ctx, "scene description", prompt, gemini.NarrationConfig(o.temperature))
}

func (o *Orchestrator) oneOff(ctx context.Context, name, prompt string, config *genai.GenerateContentConfig) (string, error) {
	policy := o.policy
	policy.Name = name
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := retry.Do(ctx, policy, func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		return o.generator.GenerateContent(ctx, o.model, contents, config)
	})
	if err != nil {
		return "", retry.Exhausted(name, err)
	}
	if resp == nil {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
