package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/Jordannewman90/Roleplay-Foreplay/internal/platform/timeouts"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/audio"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/retry"
)

const (
	// DefaultImageModel renders scene illustrations.
	DefaultImageModel = "imagen-3.0-generate-001"
	// DefaultSpeechModel voices DM lines.
	DefaultSpeechModel = "gemini-2.5-flash-preview-tts"
	// DefaultVoice is the prebuilt speech voice.
	DefaultVoice = "Kore"
	// MaxSpeechRunes caps the text sent for speech synthesis.
	MaxSpeechRunes = 1000
)

// ErrNoImage is returned when the image service produced nothing usable.
var ErrNoImage = errors.New("no image returned")

// ErrNoAudio is returned when the speech response carried no audio data.
var ErrNoAudio = errors.New("no audio returned")

// Image is a generated picture.
type Image struct {
	Data     []byte
	MIMEType string
}

// Illustrator renders scene prompts into 16:9 images.
type Illustrator struct {
	images ImageService
	model  string
	policy retry.Policy
}

// NewIllustrator builds an illustrator over images. An empty model uses DefaultImageModel.
func NewIllustrator(images ImageService, model string, policy retry.Policy) *Illustrator {
	if strings.TrimSpace(model) == "" {
		model = DefaultImageModel
	}
	return &Illustrator{images: images, model: model, policy: policy}
}

// Illustrate generates one image for prompt.
func (i *Illustrator) Illustrate(ctx context.Context, prompt string) (Image, error) {
	if i == nil || i.images == nil {
		return Image{}, errors.New("image service is not configured")
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Image{}, errors.New("image prompt is required")
	}
	config := &genai.GenerateImagesConfig{
		NumberOfImages:    1,
		AspectRatio:       "16:9",
		SafetyFilterLevel: genai.SafetyFilterLevelBlockMediumAndAbove,
		PersonGeneration:  genai.PersonGenerationAllowAdult,
	}
	ctx, cancel := context.WithTimeout(ctx, timeouts.Media)
	defer cancel()
	resp, err := retry.Do(ctx, i.policy, func(ctx context.Context) (*genai.GenerateImagesResponse, error) {
		return i.images.GenerateImages(ctx, i.model, prompt, config)
	})
	if err != nil {
		return Image{}, fmt.Errorf("generate image: %w", err)
	}
	if resp == nil || len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0] == nil {
		return Image{}, ErrNoImage
	}
	generated := resp.GeneratedImages[0]
	if generated.Image == nil || len(generated.Image.ImageBytes) == 0 {
		if reason := strings.TrimSpace(generated.RAIFilteredReason); reason != "" {
			return Image{}, fmt.Errorf("%w: filtered: %s", ErrNoImage, reason)
		}
		return Image{}, ErrNoImage
	}
	mimeType := generated.Image.MIMEType
	if mimeType == "" {
		mimeType = "image/png"
	}
	return Image{Data: generated.Image.ImageBytes, MIMEType: mimeType}, nil
}

// Speaker voices text through the speech model.
type Speaker struct {
	content ContentGenerator
	model   string
	voice   string
	policy  retry.Policy
}

// NewSpeaker builds a speaker. Empty model and voice fall back to defaults.
func NewSpeaker(content ContentGenerator, model, voice string, policy retry.Policy) *Speaker {
	if strings.TrimSpace(model) == "" {
		model = DefaultSpeechModel
	}
	if strings.TrimSpace(voice) == "" {
		voice = DefaultVoice
	}
	return &Speaker{content: content, model: model, voice: voice, policy: policy}
}

// Speak returns text voiced as a WAV file.
func (s *Speaker) Speak(ctx context.Context, text string) ([]byte, error) {
	if s == nil || s.content == nil {
		return nil, errors.New("speech service is not configured")
	}
	text = truncateRunes(strings.TrimSpace(text), MaxSpeechRunes)
	if text == "" {
		return nil, errors.New("speech text is required")
	}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityAudio)},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: s.voice},
			},
		},
	}
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	ctx, cancel := context.WithTimeout(ctx, timeouts.Media)
	defer cancel()
	resp, err := retry.Do(ctx, s.policy, func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		return s.content.GenerateContent(ctx, s.model, contents, config)
	})
	if err != nil {
		return nil, fmt.Errorf("generate speech: %w", err)
	}
	for _, part := range ResponseParts(resp) {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			return audio.EncodeWAV(part.InlineData.Data, audio.SpeechFormat)
		}
	}
	return nil, ErrNoAudio
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
