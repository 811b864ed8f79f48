package state

import (
	"math"
	"testing"
)

func newTestCharacter() Character {
	gold := 10
	return Character{
		Name:      "Aria",
		HPCurrent: 10,
		HPMax:     10,
		Level:     1,
		Gold:      &gold,
		Inventory: []string{},
	}
}

func TestRestIsIdempotent(t *testing.T) {
	c := newTestCharacter()
	c.HPCurrent = 3

	c.Rest()
	once := c.Clone()
	c.Rest()

	if c.HPCurrent != c.HPMax || once.HPCurrent != once.HPMax || c.HPCurrent != once.HPCurrent {
		t.Fatalf("after rests hp = %d/%d, once = %d/%d", c.HPCurrent, c.HPMax, once.HPCurrent, once.HPMax)
	}
}

func TestAdjustRelationshipStaysInBounds(t *testing.T) {
	c := newTestCharacter()
	changes := []int{50, 80, -500, 7, 1000, -3, -99, 42}
	for _, change := range changes {
		_, after := c.AdjustRelationship("Valen", change)
		if after < MinRelationship || after > MaxRelationship {
			t.Fatalf("score = %d after change %d", after, change)
		}
	}

	fresh := newTestCharacter()
	before, after := fresh.AdjustRelationship("Mira", 15)
	if before != 0 || after != 15 {
		t.Fatalf("unseen NPC = %d -> %d, want 0 -> 15", before, after)
	}
}

func TestGrantXPLevelsUpOnce(t *testing.T) {
	c := newTestCharacter()
	c.XP = 950
	c.HPCurrent = 4

	levelUp, leveled := c.GrantXP(100, func() int { return 6 })
	if !leveled {
		t.Fatal("expected level up")
	}
	if c.Level != 2 || levelUp.NewLevel != 2 {
		t.Fatalf("level = %d, want 2", c.Level)
	}
	if c.HPMax != 16 || c.HPCurrent != c.HPMax {
		t.Fatalf("hp = %d/%d, want 16/16", c.HPCurrent, c.HPMax)
	}
	if c.XP != 1050 {
		t.Fatalf("xp = %d, want 1050", c.XP)
	}
}

func TestGrantXPBelowThreshold(t *testing.T) {
	c := newTestCharacter()
	if _, leveled := c.GrantXP(999, func() int { return 10 }); leveled {
		t.Fatal("did not expect level up")
	}
	if c.XP != 999 || c.Level != 1 || c.HPMax != 10 {
		t.Fatalf("character = %+v", c)
	}
}

func TestAddAndRemoveItems(t *testing.T) {
	c := newTestCharacter()
	if entry := c.AddItem("Rusty Sword", 1); entry != "Rusty Sword (x1)" {
		t.Fatalf("entry = %q", entry)
	}
	c.AddItem("Healing Potion", 3)

	removed, ok := c.RemoveItem("potion")
	if !ok || removed != "Healing Potion (x3)" {
		t.Fatalf("remove = %q, %v", removed, ok)
	}
	if _, ok := c.RemoveItem("dragon egg"); ok {
		t.Fatal("did not expect removal of missing item")
	}
	if len(c.Inventory) != 1 || c.Inventory[0] != "Rusty Sword (x1)" {
		t.Fatalf("inventory = %v", c.Inventory)
	}
}

func TestAdjustGoldAllowsNegative(t *testing.T) {
	c := Character{}
	if got := c.AdjustGold(-25); got != -15 {
		t.Fatalf("balance = %d, want -15", got)
	}
}

func TestCloseQuestSupersedesEntries(t *testing.T) {
	c := newTestCharacter()
	c.AddQuest("Find the Amulet")
	c.AddQuest("Rescue the Smith")

	quest := c.CloseQuest("amulet", QuestCompleted)
	if quest.Status != QuestCompleted {
		t.Fatalf("status = %q", quest.Status)
	}
	if len(c.Quests) != 2 {
		t.Fatalf("quests = %+v", c.Quests)
	}
	for _, q := range c.Quests {
		if q.Name == "Find the Amulet" {
			t.Fatalf("expected superseded entry to be removed: %+v", c.Quests)
		}
	}
	if c.Quests[0].Name != "Rescue the Smith" || c.Quests[0].Status != QuestActive {
		t.Fatalf("unrelated quest changed: %+v", c.Quests[0])
	}
}

func TestEnsureDefaults(t *testing.T) {
	c := Character{HPCurrent: 20, HPMax: 12}
	c.EnsureDefaults()
	if c.Level != 1 || c.GoldBalance() != StartingGold || c.Inventory == nil || c.Relationships == nil {
		t.Fatalf("defaults = %+v", c)
	}
	if c.HPCurrent != 12 {
		t.Fatalf("hp current = %d, want clamp to 12", c.HPCurrent)
	}
}

func TestArithmeticSaturatesInsteadOfWrapping(t *testing.T) {
	c := newTestCharacter()
	c.GrantXP(math.MaxInt-10, nil)
	c.GrantXP(math.MaxInt-10, nil)
	if c.XP != math.MaxInt {
		t.Fatalf("xp = %d, want %d", c.XP, math.MaxInt)
	}

	if got := c.AdjustGold(math.MaxInt); got != math.MaxInt {
		t.Fatalf("gold = %d, want %d", got, math.MaxInt)
	}
	if got := c.AdjustGold(math.MinInt); got != -1 {
		t.Fatalf("gold = %d, want -1", got)
	}

	c.AdjustRelationship("Valen", 50)
	if _, after := c.AdjustRelationship("Valen", math.MaxInt); after != MaxRelationship {
		t.Fatalf("score = %d, want %d", after, MaxRelationship)
	}
	if _, after := c.AdjustRelationship("Valen", math.MinInt); after != MinRelationship {
		t.Fatalf("score = %d, want %d", after, MinRelationship)
	}
}
