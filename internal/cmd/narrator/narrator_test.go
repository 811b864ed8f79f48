package narrator

import (
	"flag"
	"testing"
	"time"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("narrator", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != "localhost:8095" {
		t.Fatalf("expected default http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.DBPath != "data/narrator.db" {
		t.Fatalf("expected default db path, got %q", cfg.DBPath)
	}
	if cfg.Model != "gemini-2.5-pro" {
		t.Fatalf("expected default model, got %q", cfg.Model)
	}
	if cfg.Voice != "Kore" {
		t.Fatalf("expected default voice, got %q", cfg.Voice)
	}
	if cfg.MaxToolRounds != 8 {
		t.Fatalf("expected default max tool rounds 8, got %d", cfg.MaxToolRounds)
	}
	if cfg.BackupInterval != 168*time.Hour {
		t.Fatalf("expected weekly backups, got %v", cfg.BackupInterval)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("ROLEPLAY_HTTP_ADDR", "env-http")
	t.Setenv("ROLEPLAY_MODEL", "env-model")
	t.Setenv("ROLEPLAY_CACHE_TTL", "30m")
	t.Setenv("GEMINI_API_KEY", "secret")

	fs := flag.NewFlagSet("narrator", flag.ContinueOnError)
	args := []string{
		"-http-addr", "flag-http",
		"-temperature", "0.5",
		"-max-tool-rounds", "3",
	}
	cfg, err := ParseConfig(fs, args)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != "flag-http" {
		t.Fatalf("expected flag http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.Model != "env-model" {
		t.Fatalf("expected env model, got %q", cfg.Model)
	}
	if cfg.CacheTTL != 30*time.Minute {
		t.Fatalf("expected env cache ttl, got %v", cfg.CacheTTL)
	}
	if cfg.Temperature != 0.5 {
		t.Fatalf("expected flag temperature, got %v", cfg.Temperature)
	}
	if cfg.MaxToolRounds != 3 {
		t.Fatalf("expected flag max tool rounds, got %d", cfg.MaxToolRounds)
	}
	if cfg.GeminiAPIKey != "secret" {
		t.Fatalf("expected env api key, got %q", cfg.GeminiAPIKey)
	}
}

func TestParseConfigRejectsInvalidEnv(t *testing.T) {
	t.Setenv("ROLEPLAY_MAX_TOOL_ROUNDS", "many")

	fs := flag.NewFlagSet("narrator", flag.ContinueOnError)
	if _, err := ParseConfig(fs, nil); err == nil {
		t.Fatal("expected error for invalid env value")
	}
}
