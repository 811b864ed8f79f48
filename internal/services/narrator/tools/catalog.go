package tools

import (
	"time"

	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/dice"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/rules"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/state"
)

// Deps are the collaborators of the default catalogue.
type Deps struct {
	Store       *state.Store
	Rules       *rules.Table
	Roller      *dice.Roller
	Illustrator Illustrator
	// IllustrationCooldown defaults to DefaultIllustrationCooldown.
	IllustrationCooldown time.Duration
	Now                  func() time.Time
}

// NewCatalog registers the nine narration tools.
func NewCatalog(deps Deps) *Registry {
	roller := deps.Roller
	if roller == nil {
		roller = dice.NewRoller()
	}
	return NewRegistry(
		NewRollDice(roller),
		NewStartCombat(deps.Rules, roller, deps.Store, deps.Now),
		NewTakeLongRest(deps.Store),
		NewAddLoot(deps.Store),
		NewUpdateQuest(deps.Store),
		NewUpdateRelationship(deps.Store),
		NewUpdateInventoryGold(deps.Store),
		NewGrantXP(deps.Store, roller),
		NewIllustrateScene(deps.Illustrator, deps.IllustrationCooldown, deps.Now),
	)
}
