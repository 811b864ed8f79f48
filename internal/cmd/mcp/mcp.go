// Package mcp parses MCP command flags and serves the mechanics tools on stdio.
package mcp

import (
	"context"
	"flag"

	"github.com/Jordannewman90/Roleplay-Foreplay/internal/mcp/service"
	entrypoint "github.com/Jordannewman90/Roleplay-Foreplay/internal/platform/cmd"
)

// Config holds MCP command configuration.
type Config struct {
	DBPath    string `env:"ROLEPLAY_DB_PATH"    envDefault:"data/narrator.db"`
	RulesPath string `env:"ROLEPLAY_RULES_PATH"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "sqlite campaign state file")
	fs.StringVar(&cfg.RulesPath, "rules-path", cfg.RulesPath, "rules JSON file (empty uses built-in rules)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the MCP protocol adapter.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMCP, func(ctx context.Context) error {
		return service.Run(ctx, service.Config{
			DBPath:    cfg.DBPath,
			RulesPath: cfg.RulesPath,
		})
	})
}
