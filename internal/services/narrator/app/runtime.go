// Package server hosts the narrator's websocket chat surface: players join a
// campaign room, chat, issue table commands and receive narration and media.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Jordannewman90/Roleplay-Foreplay/internal/platform/timeouts"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/backup"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/creation"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/dice"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/gemini"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/orchestrator"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/promptcache"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/retry"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/rules"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/state"
	narratorsqlite "github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/storage/sqlite"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/storage/supabase"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/tools"
)

const defaultDBPath = "data/narrator.db"

// Config defines the narrator process inputs.
type Config struct {
	HTTPAddr   string
	CampaignID string
	DBPath     string
	RulesPath  string

	GeminiAPIKey         string
	Model                string
	ImageModel           string
	SpeechModel          string
	Voice                string
	Temperature          float32
	MaxToolRounds        int
	CacheTTL             time.Duration
	IllustrationCooldown time.Duration

	SupabaseURL    string
	SupabaseKey    string
	BackupInterval time.Duration

	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server hosts the chat HTTP/WebSocket process.
type Server struct {
	httpAddr        string
	shutdownTimeout time.Duration
	httpServer      *http.Server
	game            *table
}

// NewServer builds a chat server around an assembled game table.
func NewServer(config Config, deps Table) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if strings.TrimSpace(config.CampaignID) == "" {
		config.CampaignID = defaultCampaignID
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}
	game, err := newTable(deps)
	if err != nil {
		return nil, err
	}
	return &Server{
		httpAddr:        httpAddr,
		shutdownTimeout: config.ShutdownTimeout,
		httpServer: &http.Server{
			Addr:              httpAddr,
			Handler:           newHandler(newRoomHub(config.CampaignID), game),
			ReadHeaderTimeout: config.ReadHeaderTimeout,
		},
		game: game,
	}, nil
}

// Run assembles the narrator from config and serves until ctx ends.
func Run(ctx context.Context, config Config) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if strings.TrimSpace(config.DBPath) == "" {
		config.DBPath = defaultDBPath
	}
	if dir := filepath.Dir(config.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create narrator storage dir: %w", err)
		}
	}

	db, err := narratorsqlite.Open(config.DBPath)
	if err != nil {
		return fmt.Errorf("open narrator sqlite store: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Printf("close narrator sqlite store: %v", closeErr)
		}
	}()

	store, err := state.Open(ctx, db)
	if err != nil {
		return fmt.Errorf("open campaign state: %w", err)
	}
	ruleTable, err := rules.Load(config.RulesPath)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	services, err := gemini.NewClient(ctx, gemini.Config{APIKey: config.GeminiAPIKey})
	if err != nil {
		return fmt.Errorf("init gemini: %w", err)
	}

	roller := dice.NewRoller()
	registry := tools.NewCatalog(tools.Deps{
		Store:                store,
		Rules:                ruleTable,
		Roller:               roller,
		Illustrator:          gemini.NewIllustrator(services.Images, config.ImageModel, retry.DefaultPolicy("illustration")),
		IllustrationCooldown: config.IllustrationCooldown,
	})
	model := orchestrator.ResolveModel(config.Model)
	narrator, err := orchestrator.New(orchestrator.Config{
		Generator: services.Content,
		Assembler: promptcache.NewAssembler(promptcache.Config{
			Caches: services.Caches,
			Model:  model,
			TTL:    config.CacheTTL,
		}),
		Registry:      registry,
		Store:         store,
		Roller:        roller,
		Policy:        retry.DefaultPolicy("narration"),
		Model:         model,
		Temperature:   config.Temperature,
		MaxToolRounds: config.MaxToolRounds,
	})
	if err != nil {
		return fmt.Errorf("init orchestrator: %w", err)
	}

	var target backup.Target
	if strings.TrimSpace(config.SupabaseURL) != "" {
		uploader, err := supabase.NewBackup(config.SupabaseURL, config.SupabaseKey)
		if err != nil {
			return fmt.Errorf("init backup target: %w", err)
		}
		target = uploader
	}
	backups := backup.NewJob(backup.Config{
		Source:   store,
		Target:   target,
		Log:      db,
		Interval: config.BackupInterval,
	})

	server, err := NewServer(config, Table{
		Narrator: narrator,
		Store:    store,
		Tools:    registry,
		Creation: creation.NewSessions(ruleTable, roller, store),
		Voice:    gemini.NewSpeaker(services.Content, config.SpeechModel, config.Voice, retry.DefaultPolicy("speech")),
		Backups:  backups,
	})
	if err != nil {
		return fmt.Errorf("init chat server: %w", err)
	}
	defer server.Close()

	backupCtx, stopBackups := context.WithCancel(ctx)
	backupDone := make(chan struct{})
	go func() {
		defer close(backupDone)
		backups.Run(backupCtx)
	}()
	defer func() {
		stopBackups()
		<-backupDone
	}()

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve chat: %w", err)
	}
	return nil
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("chat server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 1)
	log.Printf("narrator chat listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close waits for in-flight turns so their commits reach storage.
func (s *Server) Close() {
	if s == nil || s.game == nil {
		return
	}
	s.game.wait()
}
