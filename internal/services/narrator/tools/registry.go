// Package tools declares the game-mechanics functions the narration model may
// invoke mid-turn and dispatches those invocations by name.
//
// Handlers report malformed input and missing characters as coded domain
// errors. The Registry turns recoverable codes into model-facing error bags so
// the model can correct itself; any other error is a hard failure that aborts
// the turn.
package tools

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"google.golang.org/genai"

	apperrors "github.com/Jordannewman90/Roleplay-Foreplay/internal/platform/errors"
)

// Call is one tool invocation requested by the model.
type Call struct {
	// PlayerID is the player whose turn requested the tool.
	PlayerID string
	// Args is the argument bag decoded from the model's function call.
	Args map[string]any
}

// Tool is a named, schema-typed function.
type Tool interface {
	Name() string
	Declaration() *genai.FunctionDeclaration
	Execute(ctx context.Context, call Call) (map[string]any, error)
}

// Registry maps tool names to handlers.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry builds a registry holding tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, tool := range tools {
		r.Register(tool)
	}
	return r
}

// Register adds tool. Registering a duplicate or unnamed tool panics since
// the catalogue is assembled once at startup.
func (r *Registry) Register(tool Tool) {
	if tool == nil {
		panic("tools: nil tool")
	}
	name := strings.TrimSpace(tool.Name())
	if name == "" {
		panic("tools: tool name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		panic(fmt.Sprintf("tools: duplicate tool %q", name))
	}
	r.tools[name] = tool
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Names lists registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Declarations returns the catalogue in the shape the generation service expects.
func (r *Registry) Declarations() []*genai.Tool {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()
	decls := make([]*genai.FunctionDeclaration, 0, len(names))
	for _, name := range names {
		decls = append(decls, r.tools[name].Declaration())
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// Execute runs the tool named name. Unknown names and recoverable handler
// errors come back as error bags with a nil error.
func (r *Registry) Execute(ctx context.Context, name string, call Call) (map[string]any, error) {
	tool, ok := r.Lookup(name)
	if !ok {
		return apperrors.Bag(apperrors.WithMetadata(apperrors.CodeUnknownTool,
			fmt.Sprintf("unknown tool %q", name),
			map[string]string{"valid_tools": strings.Join(r.Names(), ", ")})), nil
	}
	if call.Args == nil {
		call.Args = map[string]any{}
	}
	result, err := tool.Execute(ctx, call)
	if err != nil {
		if apperrors.CodeOf(err).Recoverable() {
			log.Printf("tools: %s rejected player=%q: %v", name, call.PlayerID, err)
			return apperrors.Bag(err), nil
		}
		return nil, fmt.Errorf("tool %s: %w", name, err)
	}
	if result == nil {
		result = map[string]any{}
	}
	return result, nil
}
