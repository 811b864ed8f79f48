// Package creation walks a player through building a character: ability
// scores are rolled up front, then the player picks a race and a class.
package creation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	apperrors "github.com/Jordannewman90/Roleplay-Foreplay/internal/platform/errors"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/dice"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/rules"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/state"
)

// HPBonus is added to the class hit die for starting hit points.
const HPBonus = 2

// Step is the question a session is waiting on.
type Step string

const (
	StepRace  Step = "race"
	StepClass Step = "class"
)

// ErrNoSession indicates the player is not creating a character.
var ErrNoSession = errors.New("no character creation in progress")

// Prompt is what to tell the player after a creation step.
type Prompt struct {
	Message string
	// Options lists valid answers for the next step.
	Options []string
	// Character is set once the record has been created.
	Character *state.Character
}

// Done reports whether creation finished.
func (p Prompt) Done() bool { return p.Character != nil }

type session struct {
	name  string
	stats []int
	race  rules.Race
	step  Step
}

// Sessions tracks in-progress character creation per player.
type Sessions struct {
	rules  *rules.Table
	roller *dice.Roller
	store  *state.Store

	mu       sync.Mutex
	sessions map[string]*session
}

// NewSessions builds a creation tracker backed by store.
func NewSessions(table *rules.Table, roller *dice.Roller, store *state.Store) *Sessions {
	if roller == nil {
		roller = dice.NewRoller()
	}
	return &Sessions{
		rules:    table,
		roller:   roller,
		store:    store,
		sessions: make(map[string]*session),
	}
}

// Begin rolls ability scores for playerID and asks for a race. Starting over
// replaces any unfinished session.
func (s *Sessions) Begin(playerID, name string) (Prompt, error) {
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return Prompt{}, apperrors.New(apperrors.CodeInvalidArgument, "player id is required")
	}
	if s.store.Exists(playerID) {
		return Prompt{}, state.ErrPlayerExists
	}
	stats := s.roller.AbilityScores()

	s.mu.Lock()
	s.sessions[playerID] = &session{name: strings.TrimSpace(name), stats: stats, step: StepRace}
	s.mu.Unlock()

	options := s.rules.RaceKeys()
	return Prompt{
		Message: fmt.Sprintf("Stats rolled: %v. Next: choose a race.", stats),
		Options: options,
	}, nil
}

// Active reports whether playerID has an unfinished session.
func (s *Sessions) Active(playerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[playerID]
	return ok
}

// Cancel drops an unfinished session.
func (s *Sessions) Cancel(playerID string) {
	s.mu.Lock()
	delete(s.sessions, playerID)
	s.mu.Unlock()
}

// Answer applies the player's reply to the current step. An unrecognized
// answer repeats the question.
func (s *Sessions) Answer(ctx context.Context, playerID, text string) (Prompt, error) {
	s.mu.Lock()
	sess, ok := s.sessions[playerID]
	if !ok {
		s.mu.Unlock()
		return Prompt{}, ErrNoSession
	}
	working := *sess
	s.mu.Unlock()

	switch working.step {
	case StepRace:
		race, err := s.rules.Race(text)
		if err != nil {
			return Prompt{Message: "Invalid race.", Options: s.rules.RaceKeys()}, nil
		}
		s.mu.Lock()
		if current, ok := s.sessions[playerID]; ok {
			current.race = race
			current.step = StepClass
		}
		s.mu.Unlock()
		return Prompt{
			Message: fmt.Sprintf("Race: %s. Next: choose a class.", race.Name),
			Options: s.rules.ClassKeys(),
		}, nil

	case StepClass:
		class, err := s.rules.Class(text)
		if err != nil {
			return Prompt{Message: "Invalid class.", Options: s.rules.ClassKeys()}, nil
		}
		gold := state.StartingGold
		hp := class.HitDie + HPBonus
		created, err := s.store.Create(ctx, state.Character{
			ID:        playerID,
			Name:      working.name,
			Race:      working.race.Name,
			Class:     class.Name,
			Stats:     working.stats,
			HPCurrent: hp,
			HPMax:     hp,
			Level:     1,
			Gold:      &gold,
			Inventory: append([]string(nil), class.Equipment...),
		})
		if err != nil {
			if errors.Is(err, state.ErrPlayerExists) {
				s.Cancel(playerID)
			}
			return Prompt{}, err
		}
		s.Cancel(playerID)
		return Prompt{
			Message:   fmt.Sprintf("Character saved! Welcome, %s %s.", created.Race, created.Class),
			Character: &created,
		}, nil

	default:
		return Prompt{}, fmt.Errorf("creation step %q: %w", working.step, ErrNoSession)
	}
}
