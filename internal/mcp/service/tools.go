package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/dice"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/rules"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/state"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/storage"
)

const (
	defaultBackupHistory = 10
	maxBackupHistory     = 100
)

// RollDiceInput represents the MCP tool input for rolling dice.
type RollDiceInput struct {
	Expression string `json:"expression" jsonschema:"dice expression such as 1d20+5 or 4d6"`
}

// RollDiceResult represents the MCP tool output for rolling dice.
type RollDiceResult struct {
	Expression string `json:"expression" jsonschema:"normalized expression"`
	Rolls      []int  `json:"rolls" jsonschema:"individual die results"`
	Detail     string `json:"detail" jsonschema:"rolls and modifier as shown to players"`
	Total      int    `json:"total" jsonschema:"sum of the rolls plus the modifier"`
}

// MonsterLookupInput represents the MCP tool input for monster lookups.
type MonsterLookupInput struct {
	Name string `json:"name" jsonschema:"monster name, e.g. goblin"`
}

// MonsterLookupResult represents the MCP tool output for monster lookups.
type MonsterLookupResult struct {
	Name      string `json:"name"`
	HP        int    `json:"hp"`
	AC        int    `json:"ac,omitempty"`
	InitBonus int    `json:"init_bonus"`
	Attack    string `json:"attack,omitempty"`
}

// CharacterSheetInput represents the MCP tool input for character sheets.
type CharacterSheetInput struct {
	PlayerID string `json:"player_id" jsonschema:"chat player identifier"`
}

// CharacterSheetResult represents the MCP tool output for character sheets.
type CharacterSheetResult struct {
	PlayerID      string         `json:"player_id"`
	Name          string         `json:"name"`
	Race          string         `json:"race"`
	Class         string         `json:"class"`
	Level         int            `json:"level"`
	XP            int            `json:"xp"`
	HPCurrent     int            `json:"hp_current"`
	HPMax         int            `json:"hp_max"`
	Gold          int            `json:"gold"`
	Stats         []int          `json:"stats,omitempty"`
	Inventory     []string       `json:"inventory"`
	Quests        []state.Quest  `json:"quests,omitempty"`
	Relationships map[string]int `json:"relationships,omitempty"`
}

// BackupHistoryInput represents the MCP tool input for backup history.
type BackupHistoryInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum entries to return, newest first"`
}

// BackupHistoryEntry is one backup attempt.
type BackupHistoryEntry struct {
	Target    string `json:"target"`
	Name      string `json:"name,omitempty"`
	Outcome   string `json:"outcome"`
	Detail    string `json:"detail,omitempty"`
	CreatedAt string `json:"created_at"`
}

// BackupHistoryResult represents the MCP tool output for backup history.
type BackupHistoryResult struct {
	Backups []BackupHistoryEntry `json:"backups"`
}

func registerMechanicsTools(mcpServer *mcp.Server, table *rules.Table, roller *dice.Roller) {
	mcp.AddTool(mcpServer, RollDiceTool(), RollDiceHandler(roller))
	mcp.AddTool(mcpServer, MonsterLookupTool(), MonsterLookupHandler(table))
}

func registerCampaignTools(mcpServer *mcp.Server, campaign Campaign) {
	mcp.AddTool(mcpServer, CharacterSheetTool(), CharacterSheetHandler(campaign))
	mcp.AddTool(mcpServer, BackupHistoryTool(), BackupHistoryHandler(campaign))
}

// RollDiceTool defines the MCP tool schema for rolling dice.
func RollDiceTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "roll_dice",
		Description: "Rolls a dice expression like 2d6+3",
	}
}

// MonsterLookupTool defines the MCP tool schema for monster stats.
func MonsterLookupTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "monster_lookup",
		Description: "Returns the stat block of a known monster",
	}
}

// CharacterSheetTool defines the MCP tool schema for character sheets.
func CharacterSheetTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "character_sheet",
		Description: "Returns a player's saved character record",
	}
}

// BackupHistoryTool defines the MCP tool schema for backup history.
func BackupHistoryTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "backup_history",
		Description: "Lists recent campaign backup attempts",
	}
}

// RollDiceHandler rolls an expression with the server's dice.
func RollDiceHandler(roller *dice.Roller) mcp.ToolHandlerFor[RollDiceInput, RollDiceResult] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input RollDiceInput) (*mcp.CallToolResult, RollDiceResult, error) {
		result, err := roller.Roll(input.Expression)
		if err != nil {
			return nil, RollDiceResult{}, fmt.Errorf("roll dice: %w", err)
		}
		return nil, RollDiceResult{
			Expression: result.Expression,
			Rolls:      result.Rolls,
			Detail:     result.Detail,
			Total:      result.Total,
		}, nil
	}
}

// MonsterLookupHandler looks a monster up in the rules table.
func MonsterLookupHandler(table *rules.Table) mcp.ToolHandlerFor[MonsterLookupInput, MonsterLookupResult] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input MonsterLookupInput) (*mcp.CallToolResult, MonsterLookupResult, error) {
		monster, err := table.Monster(input.Name)
		if err != nil {
			return nil, MonsterLookupResult{}, fmt.Errorf("%w; known monsters: %s", err, strings.Join(table.MonsterKeys(), ", "))
		}
		return nil, MonsterLookupResult{
			Name:      monster.Name,
			HP:        monster.HP,
			AC:        monster.AC,
			InitBonus: monster.InitBonus,
			Attack:    monster.Attack,
		}, nil
	}
}

// CharacterSheetHandler reads the latest saved record for a player. The
// document is reloaded on every call so the sheet tracks the narrator's writes.
func CharacterSheetHandler(documents storage.DocumentStore) mcp.ToolHandlerFor[CharacterSheetInput, CharacterSheetResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CharacterSheetInput) (*mcp.CallToolResult, CharacterSheetResult, error) {
		playerID := strings.TrimSpace(input.PlayerID)
		if playerID == "" {
			return nil, CharacterSheetResult{}, errors.New("player_id is required")
		}
		raw, err := documents.LoadDocument(ctx)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, CharacterSheetResult{}, fmt.Errorf("player %q has no character", playerID)
		}
		if err != nil {
			return nil, CharacterSheetResult{}, fmt.Errorf("load campaign: %w", err)
		}
		var doc state.Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, CharacterSheetResult{}, fmt.Errorf("decode campaign: %w", err)
		}
		record, ok := doc.Players[playerID]
		if !ok || record == nil {
			return nil, CharacterSheetResult{}, fmt.Errorf("player %q has no character", playerID)
		}
		c := record.Clone()
		c.EnsureDefaults()
		return nil, CharacterSheetResult{
			PlayerID:      playerID,
			Name:          c.Name,
			Race:          c.Race,
			Class:         c.Class,
			Level:         c.Level,
			XP:            c.XP,
			HPCurrent:     c.HPCurrent,
			HPMax:         c.HPMax,
			Gold:          c.GoldBalance(),
			Stats:         c.Stats,
			Inventory:     c.Inventory,
			Quests:        c.Quests,
			Relationships: c.Relationships,
		}, nil
	}
}

// BackupHistoryHandler lists recorded backup attempts.
func BackupHistoryHandler(backups storage.BackupLog) mcp.ToolHandlerFor[BackupHistoryInput, BackupHistoryResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input BackupHistoryInput) (*mcp.CallToolResult, BackupHistoryResult, error) {
		limit := input.Limit
		if limit <= 0 {
			limit = defaultBackupHistory
		}
		if limit > maxBackupHistory {
			limit = maxBackupHistory
		}
		records, err := backups.ListBackups(ctx, limit)
		if err != nil {
			return nil, BackupHistoryResult{}, fmt.Errorf("list backups: %w", err)
		}
		entries := make([]BackupHistoryEntry, 0, len(records))
		for _, record := range records {
			entries = append(entries, BackupHistoryEntry{
				Target:    record.Target,
				Name:      record.Name,
				Outcome:   record.Outcome,
				Detail:    record.Detail,
				CreatedAt: record.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		return nil, BackupHistoryResult{Backups: entries}, nil
	}
}
