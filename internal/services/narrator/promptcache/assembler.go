package promptcache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"google.golang.org/genai"

	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/gemini"
)

const (
	// DisplayNamePrefix prefixes every cache this process creates.
	DisplayNamePrefix = "RoleplayBot_Rules"
	// DefaultTTL is the lifetime requested for new caches.
	DefaultTTL = time.Hour
	// DefaultMinTokens is the smallest instruction block the service caches.
	DefaultMinTokens = 4096
	// expiryMargin retires handles shortly before the service does.
	expiryMargin = time.Minute
)

// Config configures an Assembler.
type Config struct {
	Caches    gemini.CacheService
	Model     string
	TTL       time.Duration
	MinTokens int
	Now       func() time.Time
}

// Request is what the orchestrator sends for the first model call of a turn.
type Request struct {
	Contents []*genai.Content
	// CachedContent is the cache handle, empty when uncached.
	CachedContent string
	// Tools is the catalogue to send inline. It is nil when the cache carries it.
	Tools []*genai.Tool
}

// Cached reports whether the request uses a cache handle.
func (r Request) Cached() bool { return r.CachedContent != "" }

type entry struct {
	name    string
	expires time.Time
}

// Assembler decides between cached and full-prompt requests. Cache failures
// are logged and only ever cost the optimisation.
type Assembler struct {
	caches    gemini.CacheService
	model     string
	ttl       time.Duration
	minTokens int
	now       func() time.Time

	mu      sync.Mutex
	entries map[string]entry
	group   singleflight.Group
}

// NewAssembler builds an Assembler. A nil CacheService disables caching.
func NewAssembler(cfg Config) *Assembler {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MinTokens <= 0 {
		cfg.MinTokens = DefaultMinTokens
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Assembler{
		caches:    cfg.Caches,
		model:     cfg.Model,
		ttl:       cfg.TTL,
		minTokens: cfg.MinTokens,
		now:       cfg.Now,
		entries:   make(map[string]entry),
	}
}

// Request builds the first request of a turn.
func (a *Assembler) Request(ctx context.Context, prompt Prompt, tools []*genai.Tool) Request {
	if handle, ok := a.Resolve(ctx, prompt.Static, tools); ok {
		return Request{
			Contents:      []*genai.Content{genai.NewContentFromText(prompt.Dynamic, genai.RoleUser)},
			CachedContent: handle,
		}
	}
	return FullRequest(prompt, tools)
}

// FullRequest builds an uncached request carrying everything inline.
func FullRequest(prompt Prompt, tools []*genai.Tool) Request {
	return Request{
		Contents: []*genai.Content{genai.NewContentFromText(prompt.Full(), genai.RoleUser)},
		Tools:    tools,
	}
}

// Resolve returns a live cache handle for static, creating one if needed.
func (a *Assembler) Resolve(ctx context.Context, static string, tools []*genai.Tool) (string, bool) {
	if a == nil || a.caches == nil || strings.TrimSpace(static) == "" {
		return "", false
	}
	fingerprint := Fingerprint(static)
	if handle, ok := a.lookup(fingerprint); ok {
		return handle, true
	}

	value, err, _ := a.group.Do(fingerprint, func() (any, error) {
		if handle, ok := a.lookup(fingerprint); ok {
			return handle, nil
		}
		found, err := a.find(ctx, fingerprint)
		if err != nil {
			log.Printf("promptcache: list caches: %v", err)
		}
		if found != nil {
			a.store(fingerprint, found.Name, found.ExpireTime)
			return found.Name, nil
		}
		created, err := a.create(ctx, fingerprint, static, tools)
		if err != nil {
			return "", err
		}
		a.store(fingerprint, created.Name, created.ExpireTime)
		log.Printf("promptcache: created cache %s (%s)", created.Name, DisplayName(fingerprint))
		return created.Name, nil
	})
	if err != nil {
		log.Printf("promptcache: falling back to full prompt: %v", err)
		return "", false
	}
	handle, _ := value.(string)
	return handle, handle != ""
}

// Invalidate forgets the handle for static, e.g. after the service rejected it.
func (a *Assembler) Invalidate(static string) {
	if a == nil {
		return
	}
	a.mu.Lock()
	delete(a.entries, Fingerprint(static))
	a.mu.Unlock()
}

func (a *Assembler) lookup(fingerprint string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.entries[fingerprint]
	if !ok {
		return "", false
	}
	if !a.now().Add(expiryMargin).Before(e.expires) {
		delete(a.entries, fingerprint)
		return "", false
	}
	return e.name, true
}

func (a *Assembler) store(fingerprint, name string, expires time.Time) {
	if expires.IsZero() {
		expires = a.now().Add(a.ttl)
	}
	a.mu.Lock()
	a.entries[fingerprint] = entry{name: name, expires: expires}
	a.mu.Unlock()
}

func (a *Assembler) find(ctx context.Context, fingerprint string) (*genai.CachedContent, error) {
	want := DisplayName(fingerprint)
	cutoff := a.now().Add(expiryMargin)
	for cache, err := range a.caches.All(ctx) {
		if err != nil {
			return nil, err
		}
		if cache == nil || cache.DisplayName != want || cache.Name == "" {
			continue
		}
		if !cache.ExpireTime.IsZero() && !cache.ExpireTime.After(cutoff) {
			continue
		}
		return cache, nil
	}
	return nil, nil
}

func (a *Assembler) create(ctx context.Context, fingerprint, static string, tools []*genai.Tool) (*genai.CachedContent, error) {
	created, err := a.caches.Create(ctx, a.model, &genai.CreateCachedContentConfig{
		DisplayName:       DisplayName(fingerprint),
		TTL:               a.ttl,
		SystemInstruction: genai.NewContentFromText(Pad(static, a.minTokens), genai.RoleUser),
		Tools:             tools,
	})
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	if created == nil || created.Name == "" {
		return nil, errors.New("create cache: empty handle")
	}
	return created, nil
}
