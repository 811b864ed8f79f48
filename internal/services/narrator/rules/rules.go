// Package rules holds the read-only race, class and monster reference data
// the narrator consults during character creation and combat.
package rules

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

//go:embed rules.json
var defaultRules []byte

// ErrUnknownRace indicates a race key is not in the table.
var ErrUnknownRace = errors.New("unknown race")

// ErrUnknownClass indicates a class key is not in the table.
var ErrUnknownClass = errors.New("unknown class")

// ErrUnknownMonster indicates a monster key is not in the table.
var ErrUnknownMonster = errors.New("unknown monster")

// Race is a playable ancestry.
type Race struct {
	Name   string   `json:"name"`
	Speed  int      `json:"speed,omitempty"`
	Traits []string `json:"traits,omitempty"`
}

// Class is a playable class.
type Class struct {
	Name      string   `json:"name"`
	HitDie    int      `json:"hit_die"`
	Equipment []string `json:"equipment"`
}

// Monster is a combat opponent.
type Monster struct {
	Name      string `json:"name"`
	HP        int    `json:"hp"`
	AC        int    `json:"ac,omitempty"`
	InitBonus int    `json:"init_bonus"`
	Attack    string `json:"attack,omitempty"`
}

// Table is the lookup table. Keys are lower-case with underscores for spaces.
type Table struct {
	Races    map[string]Race    `json:"races"`
	Classes  map[string]Class   `json:"classes"`
	Monsters map[string]Monster `json:"monsters"`
}

// Default returns the built-in table.
func Default() (*Table, error) {
	return Parse(defaultRules)
}

// Load reads a table from path, or the built-in table when path is empty.
func Load(path string) (*Table, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return Parse(data)
}

// Parse decodes a JSON table and normalizes its keys.
func Parse(data []byte) (*Table, error) {
	var raw Table
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	table := &Table{
		Races:    make(map[string]Race, len(raw.Races)),
		Classes:  make(map[string]Class, len(raw.Classes)),
		Monsters: make(map[string]Monster, len(raw.Monsters)),
	}
	for key, race := range raw.Races {
		table.Races[NormalizeKey(key)] = race
	}
	for key, class := range raw.Classes {
		if class.HitDie <= 0 {
			return nil, fmt.Errorf("decode rules: class %q needs a positive hit_die", key)
		}
		table.Classes[NormalizeKey(key)] = class
	}
	for key, monster := range raw.Monsters {
		table.Monsters[NormalizeKey(key)] = monster
	}
	return table, nil
}

// NormalizeKey lower-cases name and joins words with underscores.
func NormalizeKey(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "_")
}

// Race looks up a race by name.
func (t *Table) Race(name string) (Race, error) {
	race, ok := t.Races[NormalizeKey(name)]
	if !ok {
		return Race{}, fmt.Errorf("%w %q", ErrUnknownRace, name)
	}
	return race, nil
}

// Class looks up a class by name.
func (t *Table) Class(name string) (Class, error) {
	class, ok := t.Classes[NormalizeKey(name)]
	if !ok {
		return Class{}, fmt.Errorf("%w %q", ErrUnknownClass, name)
	}
	return class, nil
}

// Monster looks up a monster by name.
func (t *Table) Monster(name string) (Monster, error) {
	monster, ok := t.Monsters[NormalizeKey(name)]
	if !ok {
		return Monster{}, fmt.Errorf("%w %q", ErrUnknownMonster, name)
	}
	return monster, nil
}

// RaceKeys lists race keys in sorted order.
func (t *Table) RaceKeys() []string { return sortedKeys(t.Races) }

// ClassKeys lists class keys in sorted order.
func (t *Table) ClassKeys() []string { return sortedKeys(t.Classes) }

// MonsterKeys lists monster keys in sorted order.
func (t *Table) MonsterKeys() []string { return sortedKeys(t.Monsters) }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
