package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	apperrors "github.com/Jordannewman90/Roleplay-Foreplay/internal/platform/errors"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/dice"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/rules"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/state"
)

// Names of the mechanics tools as declared to the model.
const (
	NameRollDice    = "roll_dice"
	NameStartCombat = "start_combat"
)

// RollDice resolves a dice expression.
type RollDice struct {
	roller *dice.Roller
}

// NewRollDice builds the roll_dice tool.
func NewRollDice(roller *dice.Roller) *RollDice {
	return &RollDice{roller: roller}
}

// Name returns roll_dice.
func (t *RollDice) Name() string { return NameRollDice }

// Declaration describes the tool's arguments to the model.
func (t *RollDice) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        NameRollDice,
		Description: "Roll dice for checks, attacks and damage. Use standard notation such as 1d20+5 or 2d6.",
		Parameters: objectSchema(map[string]*genai.Schema{
			"expression": stringSchema("Dice expression, e.g. 1d20+3"),
		}, "expression"),
	}
}

// Execute runs the tool.
func (t *RollDice) Execute(_ context.Context, call Call) (map[string]any, error) {
	expr, err := requiredString(call.Args, "expression")
	if err != nil {
		return nil, err
	}
	result, err := t.roller.Roll(expr)
	if err != nil {
		return nil, DiceError(expr, err)
	}
	return map[string]any{
		"total":      result.Total,
		"rolls":      result.Rolls,
		"expression": result.Expression,
		"detail":     result.Detail,
	}, nil
}

// DiceError converts a dice parse failure into a coded domain error.
func DiceError(expr string, err error) error {
	return &apperrors.Error{
		Code:     apperrors.CodeInvalidDiceExpression,
		Message:  err.Error(),
		Metadata: map[string]string{"expression": expr},
		Cause:    err,
	}
}

// StartCombat rolls initiative against a monster from the rules table.
type StartCombat struct {
	rules  *rules.Table
	roller *dice.Roller
	store  *state.Store
	now    func() time.Time
}

// NewStartCombat builds the start_combat tool. store may be nil, in which
// case no encounter is recorded.
func NewStartCombat(table *rules.Table, roller *dice.Roller, store *state.Store, now func() time.Time) *StartCombat {
	if now == nil {
		now = time.Now
	}
	return &StartCombat{rules: table, roller: roller, store: store, now: now}
}

// Name returns start_combat.
func (t *StartCombat) Name() string { return NameStartCombat }

// Declaration describes the tool's arguments to the model.
func (t *StartCombat) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        NameStartCombat,
		Description: "Start a fight with a known monster. Rolls initiative for both sides and returns the monster's stats.",
		Parameters: objectSchema(map[string]*genai.Schema{
			"monster_name": stringSchema("Monster name, e.g. goblin"),
		}, "monster_name"),
	}
}

// Execute runs the tool for call.PlayerID.
func (t *StartCombat) Execute(ctx context.Context, call Call) (map[string]any, error) {
	name, err := requiredString(call.Args, "monster_name")
	if err != nil {
		return nil, err
	}
	monster, err := t.rules.Monster(name)
	if err != nil {
		return nil, &apperrors.Error{
			Code:     apperrors.CodeUnknownMonster,
			Message:  err.Error(),
			Metadata: map[string]string{"valid_monsters": strings.Join(t.rules.MonsterKeys(), ", ")},
			Cause:    err,
		}
	}

	monsterInit := t.roller.Between(1, 20) + monster.InitBonus
	playerInit := t.roller.Between(1, 20)

	if t.store != nil && call.PlayerID != "" {
		_, err := t.store.Mutate(ctx, call.PlayerID, func(c *state.Character) error {
			c.Encounter = &state.Encounter{
				Monster:           monster.Name,
				MonsterHP:         monster.HP,
				MonsterInitiative: monsterInit,
				PlayerInitiative:  playerInit,
				StartedAt:         t.now().UTC(),
			}
			return nil
		})
		if err != nil && !errors.Is(err, state.ErrPlayerNotFound) {
			return nil, err
		}
	}

	first := "the player"
	if monsterInit > playerInit {
		first = "the " + monster.Name
	}
	return map[string]any{
		"monster":            monster.Name,
		"hp":                 monster.HP,
		"ac":                 monster.AC,
		"attack":             monster.Attack,
		"monster_initiative": monsterInit,
		"player_initiative":  playerInit,
		"instruction": fmt.Sprintf("Combat begins. Describe the %s's entrance. Initiative: %s %d, player %d; %s acts first.",
			monster.Name, monster.Name, monsterInit, playerInit, first),
	}, nil
}
