// Package orchestrator runs narration turns: it assembles the prompt, calls
// the model, executes any requested tools and loops until the model answers
// in plain text. A turn commits its transcript lines only when it finishes.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"

	platformotel "github.com/Jordannewman90/Roleplay-Foreplay/internal/platform/otel"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/dice"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/gemini"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/promptcache"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/retry"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/state"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/tools"
)

const (
	// FailureReply is shown to players when a turn fails.
	FailureReply = "The DM is distracted (API Error). Please try saying that again."
	// DefaultModel narrates turns.
	DefaultModel = "gemini-2.5-pro"
	// DefaultTemperature is the narration sampling temperature.
	DefaultTemperature = 0.9
	// DefaultMaxToolRounds bounds model/tool round trips in one turn.
	DefaultMaxToolRounds = 8
	// NarratorSpeaker tags the model's transcript lines.
	NarratorSpeaker = "DM"
	// SystemSpeaker tags turns issued by commands rather than players.
	SystemSpeaker = "System"
)

var (
	// ErrToolLoopExceeded is returned when the model keeps requesting tools.
	ErrToolLoopExceeded = errors.New("tool loop exceeded")
	// ErrEmptyResponse is returned when the model answers with no text.
	ErrEmptyResponse = errors.New("model returned no narration")
)

// Config configures an Orchestrator.
type Config struct {
	Generator     gemini.ContentGenerator
	Assembler     *promptcache.Assembler
	Registry      *tools.Registry
	Store         *state.Store
	Roller        *dice.Roller
	Policy        retry.Policy
	Model         string
	Temperature   float32
	MaxToolRounds int
	Persona       string
	Now           func() time.Time
	Tracer        trace.Tracer
}

// Turn is one player utterance.
type Turn struct {
	PlayerID string
	// Speaker is the display name written to the transcript.
	Speaker string
	Text    string
	// Sink receives media produced by tools during the turn.
	Sink tools.MediaSink
}

// Reply is a finished turn.
type Reply struct {
	Text string
	// Rounds counts model calls that requested tools.
	Rounds int
	// ToolCalls counts executed tool invocations.
	ToolCalls int
	Cached    bool
}

// Status describes what the narrator is doing.
type Status struct {
	Uptime      time.Duration
	LastThought string
}

// Orchestrator owns the turn state machine.
type Orchestrator struct {
	generator     gemini.ContentGenerator
	assembler     *promptcache.Assembler
	registry      *tools.Registry
	store         *state.Store
	roller        *dice.Roller
	policy        retry.Policy
	model         string
	temperature   float32
	maxToolRounds int
	persona       string
	now           func() time.Time
	tracer        trace.Tracer
	started       time.Time

	mu          sync.Mutex
	lastThought string
}

// ResolveModel returns model trimmed, or DefaultModel when it is blank.
// Callers building a promptcache.Assembler for the same orchestrator must
// pass it the resolved name so caches are created for the narrating model.
func ResolveModel(model string) string {
	if model = strings.TrimSpace(model); model == "" {
		return DefaultModel
	}
	return model
}

// New validates cfg and builds an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Generator == nil {
		return nil, errors.New("generator is required")
	}
	if cfg.Registry == nil {
		return nil, errors.New("tool registry is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("state store is required")
	}
	cfg.Model = ResolveModel(cfg.Model)
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = DefaultMaxToolRounds
	}
	if strings.TrimSpace(cfg.Persona) == "" {
		cfg.Persona = DefaultPersona
	}
	if cfg.Policy.MaxAttempts == 0 {
		cfg.Policy = retry.DefaultPolicy("narration")
	}
	if cfg.Roller == nil {
		cfg.Roller = dice.NewRoller()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Tracer == nil {
		cfg.Tracer = platformotel.Tracer("narrator/orchestrator")
	}
	if cfg.Assembler == nil {
		cfg.Assembler = promptcache.NewAssembler(promptcache.Config{Model: cfg.Model, Now: cfg.Now})
	}
	return &Orchestrator{
		generator:     cfg.Generator,
		assembler:     cfg.Assembler,
		registry:      cfg.Registry,
		store:         cfg.Store,
		roller:        cfg.Roller,
		policy:        cfg.Policy,
		model:         cfg.Model,
		temperature:   cfg.Temperature,
		maxToolRounds: cfg.MaxToolRounds,
		persona:       cfg.Persona,
		now:           cfg.Now,
		tracer:        cfg.Tracer,
		started:       cfg.Now(),
		lastThought:   "Waiting for the first move.",
	}, nil
}

// ProcessUtterance runs one turn. On failure it returns FailureReply together
// with the error and leaves the transcript untouched.
func (o *Orchestrator) ProcessUtterance(ctx context.Context, turn Turn) (Reply, error) {
	speaker := strings.TrimSpace(turn.Speaker)
	if speaker == "" {
		speaker = SystemSpeaker
	}
	text := strings.TrimSpace(turn.Text)
	if text == "" {
		return Reply{}, errors.New("utterance is required")
	}

	ctx, span := o.tracer.Start(ctx, "narrator.turn", trace.WithAttributes(
		attribute.String("narrator.player_id", turn.PlayerID),
		attribute.String("narrator.model", o.model),
	))
	defer span.End()

	o.setThought(fmt.Sprintf("Processing input from %s...", speaker))
	userLine := fmt.Sprintf("%s: %s", speaker, text)

	reply, err := o.runTurn(tools.WithMediaSink(ctx, turn.Sink), turn.PlayerID, userLine)
	if err == nil {
		err = o.store.CommitTurn(ctx, userLine, fmt.Sprintf("%s: %s", NarratorSpeaker, reply.Text))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "turn failed")
		log.Printf("narrator: turn failed player=%q: %v", turn.PlayerID, err)
		o.setThought(fmt.Sprintf("Error: %v", err))
		return Reply{Text: FailureReply}, err
	}

	span.SetAttributes(
		attribute.Int("narrator.rounds", reply.Rounds),
		attribute.Int("narrator.tool_calls", reply.ToolCalls),
		attribute.Bool("narrator.cached", reply.Cached),
	)
	o.setThought("Waiting for next move.")
	return reply, nil
}

func (o *Orchestrator) runTurn(ctx context.Context, playerID, userLine string) (Reply, error) {
	prompt, err := o.buildPrompt(userLine)
	if err != nil {
		return Reply{}, err
	}
	catalogue := o.registry.Declarations()
	req := o.assembler.Request(ctx, prompt, catalogue)
	config := o.requestConfig(req)
	contents := req.Contents

	reply := Reply{Cached: req.Cached()}
	for {
		resp, err := o.generate(ctx, contents, config)
		if err != nil && reply.Cached && reply.Rounds == 0 && !retry.IsRateLimited(err) {
			log.Printf("narrator: cached request rejected, retrying with full prompt: %v", err)
			o.assembler.Invalidate(prompt.Static)
			req = promptcache.FullRequest(prompt, catalogue)
			config = o.requestConfig(req)
			contents = req.Contents
			reply.Cached = false
			resp, err = o.generate(ctx, contents, config)
		}
		if err != nil {
			return Reply{}, err
		}

		calls := resp.FunctionCalls()
		if len(calls) == 0 {
			answer := strings.TrimSpace(resp.Text())
			if answer == "" {
				return Reply{}, ErrEmptyResponse
			}
			reply.Text = answer
			return reply, nil
		}
		if reply.Rounds >= o.maxToolRounds {
			return Reply{}, fmt.Errorf("%w after %d rounds", ErrToolLoopExceeded, reply.Rounds)
		}
		reply.Rounds++
		o.setThought(fmt.Sprintf("Resolving %s...", callNames(calls)))

		results, err := o.executeBatch(ctx, playerID, calls, reply.Rounds)
		if err != nil {
			return Reply{}, err
		}
		reply.ToolCalls += len(calls)
		contents = append(contents, modelContent(resp, calls), genai.NewContentFromParts(results, genai.RoleUser))
	}
}

// executeBatch runs every call of one model response concurrently and
// returns the function responses in request order.
func (o *Orchestrator) executeBatch(ctx context.Context, playerID string, calls []*genai.FunctionCall, round int) ([]*genai.Part, error) {
	parts := make([]*genai.Part, len(calls))
	group, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		group.Go(func() error {
			toolCtx, span := o.tracer.Start(gctx, "narrator.tool", trace.WithAttributes(
				attribute.String("narrator.tool", call.Name),
				attribute.Int("narrator.round", round),
			))
			defer span.End()

			result, err := o.registry.Execute(toolCtx, call.Name, tools.Call{PlayerID: playerID, Args: call.Args})
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "tool failed")
				return err
			}
			parts[i] = &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       call.ID,
				Name:     call.Name,
				Response: result,
			}}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return parts, nil
}

func (o *Orchestrator) buildPrompt(userLine string) (promptcache.Prompt, error) {
	snapshot := o.store.Snapshot()
	view := struct {
		Premise string                      `json:"premise,omitempty"`
		Players map[string]*state.Character `json:"players"`
	}{Premise: snapshot.Premise, Players: snapshot.Players}
	stateJSON, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return promptcache.Prompt{}, fmt.Errorf("encode game state: %w", err)
	}
	window := tail(snapshot.Transcript, state.ContextWindow-1)
	window = append(window, userLine)
	return promptcache.Prompt{
		Static:  o.persona,
		Dynamic: promptcache.BuildDynamic(string(stateJSON), window),
	}, nil
}

func (o *Orchestrator) requestConfig(req promptcache.Request) *genai.GenerateContentConfig {
	config := gemini.NarrationConfig(o.temperature)
	if req.Cached() {
		config.CachedContent = req.CachedContent
	} else {
		config.Tools = req.Tools
	}
	return config
}

func (o *Orchestrator) generate(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	resp, err := retry.Do(ctx, o.policy, func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		return o.generator.GenerateContent(ctx, o.model, contents, config)
	})
	if err != nil {
		return nil, retry.Exhausted("narration", err)
	}
	if resp == nil {
		return nil, ErrEmptyResponse
	}
	return resp, nil
}

// RollDice resolves expr for display without involving the model.
func (o *Orchestrator) RollDice(expr string) (dice.Result, error) {
	return o.roller.Roll(expr)
}

// Status reports uptime and the latest activity.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Status{
		Uptime:      o.now().Sub(o.started),
		LastThought: o.lastThought,
	}
}

func (o *Orchestrator) setThought(thought string) {
	o.mu.Lock()
	o.lastThought = thought
	o.mu.Unlock()
}

// modelContent is the model's tool-requesting turn as sent back for continuity.
func modelContent(resp *genai.GenerateContentResponse, calls []*genai.FunctionCall) *genai.Content {
	if parts := gemini.ResponseParts(resp); len(parts) > 0 {
		return genai.NewContentFromParts(parts, genai.RoleModel)
	}
	parts := make([]*genai.Part, 0, len(calls))
	for _, call := range calls {
		parts = append(parts, &genai.Part{FunctionCall: call})
	}
	return genai.NewContentFromParts(parts, genai.RoleModel)
}

func callNames(calls []*genai.FunctionCall) string {
	names := make([]string, 0, len(calls))
	for _, call := range calls {
		names = append(names, call.Name)
	}
	return strings.Join(names, ", ")
}

func tail(lines []string, n int) []string {
	if n <= 0 {
		return nil
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return append([]string(nil), lines...)
}
