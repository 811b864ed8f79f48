// Package narrator parses narrator command flags and starts the chat table.
package narrator

import (
	"context"
	"flag"
	"fmt"
	"time"

	entrypoint "github.com/Jordannewman90/Roleplay-Foreplay/internal/platform/cmd"
	server "github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/app"
)

// Config holds narrator command configuration.
type Config struct {
	HTTPAddr   string `env:"ROLEPLAY_HTTP_ADDR"   envDefault:"localhost:8095"`
	CampaignID string `env:"ROLEPLAY_CAMPAIGN_ID" envDefault:"default"`
	DBPath     string `env:"ROLEPLAY_DB_PATH"     envDefault:"data/narrator.db"`
	RulesPath  string `env:"ROLEPLAY_RULES_PATH"`

	GeminiAPIKey         string        `env:"GEMINI_API_KEY"`
	Model                string        `env:"ROLEPLAY_MODEL"                 envDefault:"gemini-2.5-pro"`
	ImageModel           string        `env:"ROLEPLAY_IMAGE_MODEL"           envDefault:"imagen-3.0-generate-001"`
	SpeechModel          string        `env:"ROLEPLAY_SPEECH_MODEL"          envDefault:"gemini-2.5-flash-preview-tts"`
	Voice                string        `env:"ROLEPLAY_VOICE"                 envDefault:"Kore"`
	Temperature          float64       `env:"ROLEPLAY_TEMPERATURE"           envDefault:"0.9"`
	CacheTTL             time.Duration `env:"ROLEPLAY_CACHE_TTL"             envDefault:"1h"`
	IllustrationCooldown time.Duration `env:"ROLEPLAY_ILLUSTRATION_COOLDOWN" envDefault:"10m"`
	MaxToolRounds        int           `env:"ROLEPLAY_MAX_TOOL_ROUNDS"       envDefault:"8"`

	SupabaseURL    string        `env:"ROLEPLAY_SUPABASE_URL"`
	SupabaseKey    string        `env:"ROLEPLAY_SUPABASE_KEY"`
	BackupInterval time.Duration `env:"ROLEPLAY_BACKUP_INTERVAL" envDefault:"168h"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "chat websocket listen address")
	fs.StringVar(&cfg.CampaignID, "campaign", cfg.CampaignID, "campaign id narrated by this process")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "sqlite campaign state file")
	fs.StringVar(&cfg.RulesPath, "rules-path", cfg.RulesPath, "rules JSON file (empty uses built-in rules)")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "narration model")
	fs.StringVar(&cfg.ImageModel, "image-model", cfg.ImageModel, "illustration model")
	fs.StringVar(&cfg.SpeechModel, "speech-model", cfg.SpeechModel, "speech model")
	fs.StringVar(&cfg.Voice, "voice", cfg.Voice, "prebuilt speech voice")
	fs.Float64Var(&cfg.Temperature, "temperature", cfg.Temperature, "narration temperature")
	fs.DurationVar(&cfg.CacheTTL, "cache-ttl", cfg.CacheTTL, "prompt cache lifetime")
	fs.DurationVar(&cfg.IllustrationCooldown, "illustration-cooldown", cfg.IllustrationCooldown, "minimum time between illustrations")
	fs.IntVar(&cfg.MaxToolRounds, "max-tool-rounds", cfg.MaxToolRounds, "tool rounds allowed per turn")
	fs.DurationVar(&cfg.BackupInterval, "backup-interval", cfg.BackupInterval, "campaign backup cadence")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the narrator and serves the chat table.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceNarrator, func(context.Context) error {
		if err := server.Run(ctx, server.Config{
			HTTPAddr:             cfg.HTTPAddr,
			CampaignID:           cfg.CampaignID,
			DBPath:               cfg.DBPath,
			RulesPath:            cfg.RulesPath,
			GeminiAPIKey:         cfg.GeminiAPIKey,
			Model:                cfg.Model,
			ImageModel:           cfg.ImageModel,
			SpeechModel:          cfg.SpeechModel,
			Voice:                cfg.Voice,
			Temperature:          float32(cfg.Temperature),
			CacheTTL:             cfg.CacheTTL,
			IllustrationCooldown: cfg.IllustrationCooldown,
			MaxToolRounds:        cfg.MaxToolRounds,
			SupabaseURL:          cfg.SupabaseURL,
			SupabaseKey:          cfg.SupabaseKey,
			BackupInterval:       cfg.BackupInterval,
		}); err != nil {
			return fmt.Errorf("serve narrator: %w", err)
		}
		return nil
	})
}
