package tools

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/dice"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/state"
)

// Names of the character tools as declared to the model.
const (
	NameTakeLongRest        = "take_long_rest"
	NameAddLoot             = "add_loot"
	NameUpdateQuest         = "update_quest"
	NameUpdateRelationship  = "update_relationship"
	NameUpdateInventoryGold = "update_inventory_gold"
	NameGrantXP             = "grant_xp"
)

const (
	// MinLevelHPGain and MaxLevelHPGain bound the HP boost on level up.
	MinLevelHPGain = 4
	MaxLevelHPGain = 10
)

const restInstruction = "Narrate a long rest. Time passes safely and the character wakes fully healed."

// mutate applies fn to the calling player's record and returns its result bag.
func mutate(ctx context.Context, store *state.Store, playerID string, fn func(*state.Character) map[string]any) (map[string]any, error) {
	var result map[string]any
	_, err := store.Mutate(ctx, playerID, func(c *state.Character) error {
		result = fn(c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// TakeLongRest restores the player's HP.
type TakeLongRest struct {
	store *state.Store
}

// NewTakeLongRest builds the take_long_rest tool.
func NewTakeLongRest(store *state.Store) *TakeLongRest { return &TakeLongRest{store: store} }

// Name returns take_long_rest.
func (t *TakeLongRest) Name() string { return NameTakeLongRest }

// Declaration describes the tool's arguments to the model.
func (t *TakeLongRest) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        NameTakeLongRest,
		Description: "The player takes a long rest and recovers all hit points.",
		Parameters:  objectSchema(map[string]*genai.Schema{}),
	}
}

// Execute runs the tool for call.PlayerID.
func (t *TakeLongRest) Execute(ctx context.Context, call Call) (map[string]any, error) {
	if !t.store.Exists(call.PlayerID) {
		return map[string]any{"status": "rested", "instruction": restInstruction}, nil
	}
	return mutate(ctx, t.store, call.PlayerID, func(c *state.Character) map[string]any {
		c.Rest()
		return map[string]any{
			"status":      "rested",
			"hp_current":  c.HPCurrent,
			"hp_max":      c.HPMax,
			"instruction": restInstruction,
		}
	})
}

// AddLoot appends an item to the player's inventory.
type AddLoot struct {
	store *state.Store
}

// NewAddLoot builds the add_loot tool.
func NewAddLoot(store *state.Store) *AddLoot { return &AddLoot{store: store} }

// Name returns add_loot.
func (t *AddLoot) Name() string { return NameAddLoot }

// Declaration describes the tool's arguments to the model.
func (t *AddLoot) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        NameAddLoot,
		Description: "Give the player an item they found or received.",
		Parameters: objectSchema(map[string]*genai.Schema{
			"item_name": stringSchema("Name of the item"),
			"quantity":  integerSchema("How many, defaults to 1"),
		}, "item_name"),
	}
}

// Execute runs the tool for call.PlayerID.
func (t *AddLoot) Execute(ctx context.Context, call Call) (map[string]any, error) {
	item, err := requiredString(call.Args, "item_name")
	if err != nil {
		return nil, err
	}
	quantity, err := amountArg(call.Args, "quantity", 1, false)
	if err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, invalidArgument("quantity", "quantity must be at least 1, got %d", quantity)
	}
	return mutate(ctx, t.store, call.PlayerID, func(c *state.Character) map[string]any {
		entry := c.AddItem(item, quantity)
		return map[string]any{
			"status":    "added",
			"item":      entry,
			"inventory": append([]string(nil), c.Inventory...),
		}
	})
}

// UpdateQuest adds, completes or fails quest log entries.
type UpdateQuest struct {
	store *state.Store
}

// NewUpdateQuest builds the update_quest tool.
func NewUpdateQuest(store *state.Store) *UpdateQuest { return &UpdateQuest{store: store} }

// Name returns update_quest.
func (t *UpdateQuest) Name() string { return NameUpdateQuest }

// Declaration describes the tool's arguments to the model.
func (t *UpdateQuest) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        NameUpdateQuest,
		Description: "Track quests. ADD starts a quest; COMPLETE or FAIL closes it.",
		Parameters: objectSchema(map[string]*genai.Schema{
			"action":     stringSchema("ADD, COMPLETE or FAIL", "ADD", "COMPLETE", "FAIL"),
			"quest_name": stringSchema("Quest title"),
			"status":     stringSchema("Optional note about the quest's state"),
		}, "action", "quest_name"),
	}
}

// Execute runs the tool for call.PlayerID.
func (t *UpdateQuest) Execute(ctx context.Context, call Call) (map[string]any, error) {
	action, err := requiredString(call.Args, "action")
	if err != nil {
		return nil, err
	}
	name, err := requiredString(call.Args, "quest_name")
	if err != nil {
		return nil, err
	}
	note, err := optionalString(call.Args, "status")
	if err != nil {
		return nil, err
	}

	var terminal state.QuestStatus
	switch strings.ToUpper(action) {
	case "ADD":
	case "COMPLETE":
		terminal = state.QuestCompleted
	case "FAIL":
		terminal = state.QuestFailed
	default:
		return nil, invalidArgument("action", "action must be ADD, COMPLETE or FAIL, got %q", action)
	}

	return mutate(ctx, t.store, call.PlayerID, func(c *state.Character) map[string]any {
		var quest state.Quest
		if terminal == "" {
			quest = c.AddQuest(name)
		} else {
			quest = c.CloseQuest(name, terminal)
		}
		result := map[string]any{
			"quest":  quest.Name,
			"status": string(quest.Status),
		}
		if note != "" {
			result["note"] = note
		}
		return result
	})
}

// UpdateRelationship shifts an NPC's affection score.
type UpdateRelationship struct {
	store *state.Store
}

// NewUpdateRelationship builds the update_relationship tool.
func NewUpdateRelationship(store *state.Store) *UpdateRelationship {
	return &UpdateRelationship{store: store}
}

// Name returns update_relationship.
func (t *UpdateRelationship) Name() string { return NameUpdateRelationship }

// Declaration describes the tool's arguments to the model.
func (t *UpdateRelationship) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        NameUpdateRelationship,
		Description: "Change how much an NPC likes the player. Scores range from 0 to 100.",
		Parameters: objectSchema(map[string]*genai.Schema{
			"npc_name": stringSchema("NPC name"),
			"change":   integerSchema("Positive or negative change"),
			"reason":   stringSchema("Why the relationship changed"),
		}, "npc_name", "change"),
	}
}

// Execute runs the tool for call.PlayerID.
func (t *UpdateRelationship) Execute(ctx context.Context, call Call) (map[string]any, error) {
	npc, err := requiredString(call.Args, "npc_name")
	if err != nil {
		return nil, err
	}
	change, err := amountArg(call.Args, "change", 0, true)
	if err != nil {
		return nil, err
	}
	reason, err := optionalString(call.Args, "reason")
	if err != nil {
		return nil, err
	}
	return mutate(ctx, t.store, call.PlayerID, func(c *state.Character) map[string]any {
		before, after := c.AdjustRelationship(npc, change)
		return map[string]any{
			"npc":        npc,
			"old_score":  before,
			"new_score":  after,
			"transition": fmt.Sprintf("%d -> %d", before, after),
			"reason":     reason,
		}
	})
}

// UpdateInventoryGold applies a batch of purse and inventory changes.
//
// Removal is lenient: each name removes the first inventory entry containing
// it (ignoring case) and names with no match are reported under not_found.
type UpdateInventoryGold struct {
	store *state.Store
}

// NewUpdateInventoryGold builds the update_inventory_gold tool.
func NewUpdateInventoryGold(store *state.Store) *UpdateInventoryGold {
	return &UpdateInventoryGold{store: store}
}

// Name returns update_inventory_gold.
func (t *UpdateInventoryGold) Name() string { return NameUpdateInventoryGold }

// Declaration describes the tool's arguments to the model.
func (t *UpdateInventoryGold) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        NameUpdateInventoryGold,
		Description: "Buy, sell, spend or receive gold and items in one step.",
		Parameters: objectSchema(map[string]*genai.Schema{
			"items_added":   stringListSchema("Items the player gains"),
			"items_removed": stringListSchema("Items the player loses"),
			"gold_change":   integerSchema("Positive to gain gold, negative to spend"),
			"reason":        stringSchema("What happened"),
		}),
	}
}

// Execute runs the tool for call.PlayerID.
func (t *UpdateInventoryGold) Execute(ctx context.Context, call Call) (map[string]any, error) {
	added, err := stringsArg(call.Args, "items_added")
	if err != nil {
		return nil, err
	}
	removed, err := stringsArg(call.Args, "items_removed")
	if err != nil {
		return nil, err
	}
	goldChange, err := amountArg(call.Args, "gold_change", 0, false)
	if err != nil {
		return nil, err
	}
	reason, err := optionalString(call.Args, "reason")
	if err != nil {
		return nil, err
	}
	return mutate(ctx, t.store, call.PlayerID, func(c *state.Character) map[string]any {
		before := c.GoldBalance()
		balance := c.AdjustGold(goldChange)
		addedEntries := make([]string, 0, len(added))
		for _, item := range added {
			addedEntries = append(addedEntries, c.AddItem(item, 1))
		}
		removedEntries := make([]string, 0, len(removed))
		notFound := make([]string, 0)
		for _, item := range removed {
			if entry, ok := c.RemoveItem(item); ok {
				removedEntries = append(removedEntries, entry)
			} else {
				notFound = append(notFound, item)
			}
		}
		result := map[string]any{
			"gold_before": before,
			"gold":        balance,
			"gold_change": goldChange,
			"added":       addedEntries,
			"removed":     removedEntries,
			"not_found":   notFound,
			"inventory":   append([]string(nil), c.Inventory...),
			"reason":      reason,
		}
		if balance < 0 {
			result["negative_balance"] = true
		}
		return result
	})
}

// GrantXP awards experience and applies at most one level per call.
type GrantXP struct {
	store  *state.Store
	roller *dice.Roller
}

// NewGrantXP builds the grant_xp tool.
func NewGrantXP(store *state.Store, roller *dice.Roller) *GrantXP {
	return &GrantXP{store: store, roller: roller}
}

// Name returns grant_xp.
func (t *GrantXP) Name() string { return NameGrantXP }

// Declaration describes the tool's arguments to the model.
func (t *GrantXP) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        NameGrantXP,
		Description: "Award experience points for defeating enemies or completing goals.",
		Parameters: objectSchema(map[string]*genai.Schema{
			"amount": integerSchema("XP to award"),
			"reason": stringSchema("Why XP was earned"),
		}, "amount"),
	}
}

// Execute runs the tool for call.PlayerID.
func (t *GrantXP) Execute(ctx context.Context, call Call) (map[string]any, error) {
	amount, err := amountArg(call.Args, "amount", 0, true)
	if err != nil {
		return nil, err
	}
	if amount < 0 {
		return nil, invalidArgument("amount", "amount must not be negative, got %d", amount)
	}
	reason, err := optionalString(call.Args, "reason")
	if err != nil {
		return nil, err
	}
	return mutate(ctx, t.store, call.PlayerID, func(c *state.Character) map[string]any {
		levelUp, leveled := c.GrantXP(amount, func() int {
			return t.roller.Between(MinLevelHPGain, MaxLevelHPGain)
		})
		result := map[string]any{
			"xp":         c.XP,
			"level":      c.Level,
			"next_level": c.LevelUpThreshold(),
			"reason":     reason,
			"leveled_up": leveled,
		}
		if leveled {
			result["hp_gain"] = levelUp.HPGain
			result["hp_max"] = levelUp.HPMax
			result["instruction"] = fmt.Sprintf("Celebrate the level up: the character reaches level %d.", levelUp.NewLevel)
		}
		return result
	})
}
