// Package service exposes the narrator's game mechanics to external agents
// over MCP.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/dice"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/rules"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/storage"
	narratorsqlite "github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/storage/sqlite"
)

const (
	// serverName identifies this MCP server to clients.
	serverName = "roleplay-narrator"
	// serverVersion identifies the MCP server version.
	serverVersion = "0.1.0"
)

// Config configures the MCP server.
type Config struct {
	DBPath    string
	RulesPath string
}

// Campaign is the read-only view of the narrator's storage the tools use.
type Campaign interface {
	storage.DocumentStore
	storage.BackupLog
}

// Server hosts the MCP server.
type Server struct {
	mcpServer *mcp.Server
}

// New creates a configured MCP server over the given campaign storage.
func New(campaign Campaign, table *rules.Table, roller *dice.Roller) (*Server, error) {
	if campaign == nil {
		return nil, errors.New("campaign storage is required")
	}
	if table == nil {
		return nil, errors.New("rules table is required")
	}
	if roller == nil {
		roller = dice.NewRoller()
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	registerMechanicsTools(mcpServer, table, roller)
	registerCampaignTools(mcpServer, campaign)
	return &Server{mcpServer: mcpServer}, nil
}

// Run opens the campaign database and serves MCP on stdio until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	return runWithTransport(ctx, cfg, &mcp.StdioTransport{})
}

func runWithTransport(ctx context.Context, cfg Config, transport mcp.Transport) error {
	if strings.TrimSpace(cfg.DBPath) == "" {
		return errors.New("db path is required")
	}
	table, err := rules.Load(cfg.RulesPath)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	db, err := narratorsqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open narrator sqlite store: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Printf("mcp: close sqlite store: %v", closeErr)
		}
	}()

	server, err := New(db, table, dice.NewRoller())
	if err != nil {
		return err
	}
	return server.serveWithTransport(ctx, transport)
}

func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}
