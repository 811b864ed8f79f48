// Package backup parses backup command flags and uploads the campaign once.
package backup

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"strings"

	entrypoint "github.com/Jordannewman90/Roleplay-Foreplay/internal/platform/cmd"
	narratorbackup "github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/backup"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/state"
	narratorsqlite "github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/storage/sqlite"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/storage/supabase"
)

// Config holds backup command configuration.
type Config struct {
	DBPath      string `env:"ROLEPLAY_DB_PATH"      envDefault:"data/narrator.db"`
	SupabaseURL string `env:"ROLEPLAY_SUPABASE_URL"`
	SupabaseKey string `env:"ROLEPLAY_SUPABASE_KEY"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "sqlite campaign state file")
	fs.StringVar(&cfg.SupabaseURL, "supabase-url", cfg.SupabaseURL, "supabase project URL")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run uploads the stored campaign document and writes the summary to out.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if strings.TrimSpace(cfg.SupabaseURL) == "" {
		return errors.New("supabase url is required")
	}
	target, err := supabase.NewBackup(cfg.SupabaseURL, cfg.SupabaseKey)
	if err != nil {
		return fmt.Errorf("init backup target: %w", err)
	}

	db, err := narratorsqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open narrator sqlite store: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Printf("backup: close sqlite store: %v", closeErr)
		}
	}()
	store, err := state.Open(ctx, db)
	if err != nil {
		return fmt.Errorf("open campaign state: %w", err)
	}

	job := narratorbackup.NewJob(narratorbackup.Config{Source: store, Target: target, Log: db})
	summary, err := job.RunOnce(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, summary)
	return err
}
