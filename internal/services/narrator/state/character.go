// Package state owns the campaign's mutable game state: one character record
// per player, the shared transcript and the campaign premise.
package state

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	// StartingGold seeds a record's purse the first time gold is touched.
	StartingGold = 10
	// XPPerLevel scales the level-up threshold: level × XPPerLevel.
	XPPerLevel = 1000
	// MinRelationship and MaxRelationship bound NPC affection scores.
	MinRelationship = 0
	MaxRelationship = 100
)

// QuestStatus tags a quest log entry.
type QuestStatus string

const (
	QuestActive    QuestStatus = "ACTIVE"
	QuestCompleted QuestStatus = "COMPLETED"
	QuestFailed    QuestStatus = "FAILED"
)

// Quest is one quest log entry.
type Quest struct {
	Name   string      `json:"name"`
	Status QuestStatus `json:"status"`
}

// Encounter records the most recent combat start for a player.
type Encounter struct {
	Monster           string    `json:"monster"`
	MonsterHP         int       `json:"monster_hp"`
	MonsterInitiative int       `json:"monster_initiative"`
	PlayerInitiative  int       `json:"player_initiative"`
	StartedAt         time.Time `json:"started_at"`
}

// Character is a player's persisted persona and progression.
type Character struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Race          string         `json:"race"`
	Class         string         `json:"class"`
	Description   string         `json:"description,omitempty"`
	Backstory     string         `json:"backstory,omitempty"`
	Stats         []int          `json:"stats,omitempty"`
	HPCurrent     int            `json:"hp_current"`
	HPMax         int            `json:"hp_max"`
	XP            int            `json:"xp"`
	Level         int            `json:"level"`
	Gold          *int           `json:"gold,omitempty"`
	Inventory     []string       `json:"inventory"`
	Quests        []Quest        `json:"quests,omitempty"`
	Relationships map[string]int `json:"relationships,omitempty"`
	Encounter     *Encounter     `json:"encounter,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Clone returns a deep copy of c.
func (c Character) Clone() Character {
	out := c
	out.Stats = append([]int(nil), c.Stats...)
	out.Inventory = append([]string(nil), c.Inventory...)
	out.Quests = append([]Quest(nil), c.Quests...)
	if c.Gold != nil {
		gold := *c.Gold
		out.Gold = &gold
	}
	if c.Relationships != nil {
		out.Relationships = make(map[string]int, len(c.Relationships))
		for npc, score := range c.Relationships {
			out.Relationships[npc] = score
		}
	}
	if c.Encounter != nil {
		encounter := *c.Encounter
		out.Encounter = &encounter
	}
	return out
}

// EnsureDefaults lazily initialises progression and economy fields that
// older records may lack.
func (c *Character) EnsureDefaults() {
	if c.Level < 1 {
		c.Level = 1
	}
	if c.XP < 0 {
		c.XP = 0
	}
	if c.Gold == nil {
		gold := StartingGold
		c.Gold = &gold
	}
	if c.Inventory == nil {
		c.Inventory = []string{}
	}
	if c.Relationships == nil {
		c.Relationships = make(map[string]int)
	}
	if c.HPMax < 0 {
		c.HPMax = 0
	}
	c.HPCurrent = clamp(c.HPCurrent, 0, c.HPMax)
}

// GoldBalance returns the purse, treating an untouched purse as StartingGold.
func (c Character) GoldBalance() int {
	if c.Gold == nil {
		return StartingGold
	}
	return *c.Gold
}

// LevelUpThreshold is the XP at which the current level ends.
func (c Character) LevelUpThreshold() int {
	level := c.Level
	if level < 1 {
		level = 1
	}
	return level * XPPerLevel
}

// Rest restores current HP to maximum.
func (c *Character) Rest() {
	c.HPCurrent = c.HPMax
}

// AddItem appends "<item> (x<quantity>)" to the inventory and returns it.
func (c *Character) AddItem(item string, quantity int) string {
	if quantity < 1 {
		quantity = 1
	}
	entry := fmt.Sprintf("%s (x%d)", strings.TrimSpace(item), quantity)
	c.Inventory = append(c.Inventory, entry)
	return entry
}

// RemoveItem drops the first inventory entry containing name, ignoring case.
// It reports whether anything was removed; a miss is not an error.
func (c *Character) RemoveItem(name string) (string, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return "", false
	}
	for i, entry := range c.Inventory {
		if strings.Contains(strings.ToLower(entry), needle) {
			c.Inventory = append(c.Inventory[:i], c.Inventory[i+1:]...)
			return entry, true
		}
	}
	return "", false
}

// AdjustGold adds change to the purse and returns the new balance. The
// balance may go negative; it saturates at the int range instead of wrapping.
func (c *Character) AdjustGold(change int) int {
	balance := saturatingAdd(c.GoldBalance(), change)
	c.Gold = &balance
	return balance
}

// AdjustRelationship adds change to the NPC's score, clamped to
// [MinRelationship, MaxRelationship]. Unseen NPCs start at zero.
func (c *Character) AdjustRelationship(npc string, change int) (before int, after int) {
	if c.Relationships == nil {
		c.Relationships = make(map[string]int)
	}
	npc = strings.TrimSpace(npc)
	before = c.Relationships[npc]
	after = clamp(saturatingAdd(before, change), MinRelationship, MaxRelationship)
	c.Relationships[npc] = after
	return before, after
}

// AddQuest appends an active quest entry.
func (c *Character) AddQuest(name string) Quest {
	quest := Quest{Name: strings.TrimSpace(name), Status: QuestActive}
	c.Quests = append(c.Quests, quest)
	return quest
}

// CloseQuest supersedes every entry whose name contains name (ignoring case)
// with a single terminal entry carrying status.
func (c *Character) CloseQuest(name string, status QuestStatus) Quest {
	name = strings.TrimSpace(name)
	needle := strings.ToLower(name)
	kept := c.Quests[:0]
	for _, quest := range c.Quests {
		if needle != "" && strings.Contains(strings.ToLower(quest.Name), needle) {
			continue
		}
		kept = append(kept, quest)
	}
	quest := Quest{Name: name, Status: status}
	c.Quests = append(kept, quest)
	return quest
}

// LevelUp describes a level gained through GrantXP.
type LevelUp struct {
	NewLevel int `json:"new_level"`
	HPGain   int `json:"hp_gain"`
	HPMax    int `json:"hp_max"`
}

// GrantXP adds amount to XP. When XP reaches the threshold for the current
// level the character gains one level, hpGain is added to maximum HP and
// current HP is restored to the new maximum.
func (c *Character) GrantXP(amount int, hpGain func() int) (LevelUp, bool) {
	if amount > 0 {
		c.XP = saturatingAdd(c.XP, amount)
	}
	if c.Level < 1 {
		c.Level = 1
	}
	if c.XP < c.LevelUpThreshold() {
		return LevelUp{}, false
	}
	gain := 0
	if hpGain != nil {
		gain = hpGain()
	}
	c.Level++
	c.HPMax += gain
	c.HPCurrent = c.HPMax
	return LevelUp{NewLevel: c.Level, HPGain: gain, HPMax: c.HPMax}, true
}

func saturatingAdd(a, b int) int {
	if b > 0 && a > math.MaxInt-b {
		return math.MaxInt
	}
	if b < 0 && a < math.MinInt-b {
		return math.MinInt
	}
	return a + b
}

func clamp(value, lo, hi int) int {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
