package tools

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/gemini"
)

const NameIllustrateScene = "illustrate_scene"

// DefaultIllustrationCooldown is the process-wide window between illustrations.
const DefaultIllustrationCooldown = 10 * time.Minute

// Illustrator renders an image prompt.
type Illustrator interface {
	Illustrate(ctx context.Context, prompt string) (gemini.Image, error)
}

// MediaSink delivers generated media to the chat surface of the current turn.
type MediaSink interface {
	DeliverImage(ctx context.Context, image gemini.Image, caption string) error
}

type mediaSinkKey struct{}

// WithMediaSink attaches sink to ctx for the duration of a turn.
func WithMediaSink(ctx context.Context, sink MediaSink) context.Context {
	if sink == nil {
		return ctx
	}
	return context.WithValue(ctx, mediaSinkKey{}, sink)
}

// MediaSinkFrom returns the sink attached to ctx, or nil.
func MediaSinkFrom(ctx context.Context) MediaSink {
	sink, _ := ctx.Value(mediaSinkKey{}).(MediaSink)
	return sink
}

// IllustrateScene produces at most one image per cooldown window. Requests
// inside the window, or while another illustration is rendering, are reported
// as skipped. A failed generation does not consume the window.
type IllustrateScene struct {
	illustrator Illustrator
	window      time.Duration
	limiter     *rate.Limiter
	now         func() time.Time
	busy        sync.Mutex
}

// NewIllustrateScene builds the illustrate_scene tool.
func NewIllustrateScene(illustrator Illustrator, window time.Duration, now func() time.Time) *IllustrateScene {
	if window <= 0 {
		window = DefaultIllustrationCooldown
	}
	if now == nil {
		now = time.Now
	}
	return &IllustrateScene{
		illustrator: illustrator,
		window:      window,
		limiter:     rate.NewLimiter(rate.Every(window), 1),
		now:         now,
	}
}

// Name returns illustrate_scene.
func (t *IllustrateScene) Name() string { return NameIllustrateScene }

// Declaration describes the tool's arguments to the model.
func (t *IllustrateScene) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name: NameIllustrateScene,
		Description: "Generate an illustration of a dramatic moment, a new location or a major character. " +
			"Use sparingly; requests are skipped during a cooldown.",
		Parameters: objectSchema(map[string]*genai.Schema{
			"prompt": stringSchema("Visual description of the scene"),
			"style":  stringSchema("Optional art style, e.g. oil painting"),
		}, "prompt"),
	}
}

// Execute runs the tool.
func (t *IllustrateScene) Execute(ctx context.Context, call Call) (map[string]any, error) {
	prompt, err := requiredString(call.Args, "prompt")
	if err != nil {
		return nil, err
	}
	style, err := optionalString(call.Args, "style")
	if err != nil {
		return nil, err
	}

	if !t.busy.TryLock() {
		return skipped("another illustration is already being drawn"), nil
	}
	defer t.busy.Unlock()

	if tokens := t.limiter.TokensAt(t.now()); tokens < 1 {
		wait := time.Duration(math.Ceil((1 - tokens) * float64(t.window)))
		result := skipped("cooldown active; describe the scene in words instead")
		result["retry_after_seconds"] = int(math.Ceil(wait.Seconds()))
		return result, nil
	}

	sink := MediaSinkFrom(ctx)
	if sink == nil || t.illustrator == nil {
		return failed(errors.New("no chat surface to deliver the image")), nil
	}

	fullPrompt := prompt
	if style != "" {
		fullPrompt = fmt.Sprintf("%s. Style: %s", strings.TrimSuffix(prompt, "."), style)
	}
	image, err := t.illustrator.Illustrate(ctx, fullPrompt)
	if err != nil {
		log.Printf("tools: illustration failed player=%q: %v", call.PlayerID, err)
		return failed(err), nil
	}
	if err := sink.DeliverImage(ctx, image, prompt); err != nil {
		log.Printf("tools: illustration delivery failed player=%q: %v", call.PlayerID, err)
		return failed(err), nil
	}
	t.limiter.AllowN(t.now(), 1)
	return map[string]any{
		"status":  "success",
		"message": "The illustration was shown to the players.",
	}, nil
}

func skipped(reason string) map[string]any {
	return map[string]any{"status": "skipped", "reason": reason}
}

func failed(err error) map[string]any {
	return map[string]any{"status": "failed", "error": err.Error()}
}
