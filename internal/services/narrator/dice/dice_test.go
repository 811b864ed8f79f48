package dice

import (
	"errors"
	"math/rand"
	"testing"
)

// TestParseAcceptsCompactForms ensures count and modifier defaults apply.
func TestParseAcceptsCompactForms(t *testing.T) {
	tests := []struct {
		expr string
		want Expression
	}{
		{expr: "1d20+5", want: Expression{Count: 1, Sides: 20, Modifier: 5, HasModifier: true}},
		{expr: "2d6", want: Expression{Count: 2, Sides: 6}},
		{expr: "d8-1", want: Expression{Count: 1, Sides: 8, Modifier: -1, HasModifier: true}},
		{expr: " 3 D 4 + 2 ", want: Expression{Count: 3, Sides: 4, Modifier: 2, HasModifier: true}},
		{expr: "50d1000", want: Expression{Count: 50, Sides: 1000}},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Parse(tt.expr)
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tt.expr, err)
			}
			if got.Count != tt.want.Count || got.Sides != tt.want.Sides || got.Modifier != tt.want.Modifier || got.HasModifier != tt.want.HasModifier {
				t.Fatalf("Parse(%q) = %+v, want %+v", tt.expr, got, tt.want)
			}
			if got.Raw != tt.expr {
				t.Fatalf("Raw = %q, want %q", got.Raw, tt.expr)
			}
		})
	}
}

// TestParseRejectsInvalidInput ensures limits fail instead of clamping.
func TestParseRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		expr string
		want error
	}{
		{expr: "", want: ErrInvalidExpression},
		{expr: "20", want: ErrInvalidExpression},
		{expr: "xd6", want: ErrInvalidExpression},
		{expr: "2d", want: ErrInvalidExpression},
		{expr: "2d6+x", want: ErrInvalidExpression},
		{expr: "0d6", want: ErrInvalidExpression},
		{expr: "1d0", want: ErrInvalidExpression},
		{expr: "51d6", want: ErrTooManyDice},
		{expr: "100d20", want: ErrTooManyDice},
		{expr: "1d1001", want: ErrTooManySides},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := Parse(tt.expr)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Parse(%q) error = %v, want %v", tt.expr, err, tt.want)
			}
		})
	}
}

// TestRollMatchesSeededSource ensures rolls come from the seeded generator in order.
func TestRollMatchesSeededSource(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	want := []int{rng.Intn(6) + 1, rng.Intn(6) + 1}

	result, err := NewSeededRoller(7).Roll("2d6+3")
	if err != nil {
		t.Fatalf("Roll returned error: %v", err)
	}
	if len(result.Rolls) != 2 || result.Rolls[0] != want[0] || result.Rolls[1] != want[1] {
		t.Fatalf("rolls = %v, want %v", result.Rolls, want)
	}
	if result.Total != want[0]+want[1]+3 {
		t.Fatalf("total = %d, want %d", result.Total, want[0]+want[1]+3)
	}
	if result.Expression != "2d6+3" {
		t.Fatalf("expression = %q, want 2d6+3", result.Expression)
	}
}

// TestRollTotalsAndBounds checks total = sum(rolls)+K and every roll in [1,M].
func TestRollTotalsAndBounds(t *testing.T) {
	roller := NewSeededRoller(42)
	for count := 1; count <= MaxCount; count += 7 {
		for _, sides := range []int{1, 2, 6, 20, 100, MaxSides} {
			for _, modifier := range []int{-3, 0, 4} {
				expr := Expression{Count: count, Sides: sides, Modifier: modifier, HasModifier: modifier != 0}
				result := roller.RollExpression(expr)
				if len(result.Rolls) != count {
					t.Fatalf("%dd%d: len(rolls) = %d", count, sides, len(result.Rolls))
				}
				sum := 0
				for _, roll := range result.Rolls {
					if roll < 1 || roll > sides {
						t.Fatalf("%dd%d: roll %d out of range", count, sides, roll)
					}
					sum += roll
				}
				if result.Total != sum+modifier {
					t.Fatalf("%dd%d%+d: total = %d, want %d", count, sides, modifier, result.Total, sum+modifier)
				}
			}
		}
	}
}

// TestRollTwoD6Distribution sanity-checks uniformity over many rolls.
func TestRollTwoD6Distribution(t *testing.T) {
	roller := NewRoller()
	const n = 10000
	sum := 0
	for i := 0; i < n; i++ {
		result, err := roller.Roll("2d6")
		if err != nil {
			t.Fatalf("Roll returned error: %v", err)
		}
		for _, roll := range result.Rolls {
			if roll < 1 || roll > 6 {
				t.Fatalf("roll %d outside [1,6]", roll)
			}
		}
		sum += result.Total
	}
	mean := float64(sum) / n
	if mean < 6 || mean > 9 {
		t.Fatalf("mean = %.2f, want within [6,9]", mean)
	}
}

// TestDetailFormatting ensures the modifier appears only when written.
func TestDetailFormatting(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{expr: "1d1", want: "[1]"},
		{expr: "2d1+3", want: "[1, 1]+3"},
		{expr: "1d1-2", want: "[1]-2"},
		{expr: "1d1+0", want: "[1]+0"},
	}
	roller := NewSeededRoller(1)
	for _, tt := range tests {
		result, err := roller.Roll(tt.expr)
		if err != nil {
			t.Fatalf("Roll(%q) returned error: %v", tt.expr, err)
		}
		if result.Detail != tt.want {
			t.Fatalf("Roll(%q).Detail = %q, want %q", tt.expr, result.Detail, tt.want)
		}
	}
}

func TestBetweenStaysInRange(t *testing.T) {
	roller := NewSeededRoller(3)
	for i := 0; i < 1000; i++ {
		if v := roller.Between(4, 10); v < 4 || v > 10 {
			t.Fatalf("Between(4,10) = %d", v)
		}
		if v := roller.Between(20, 1); v < 1 || v > 20 {
			t.Fatalf("Between(20,1) = %d", v)
		}
	}
}

func TestAbilityScoresSortedAndBounded(t *testing.T) {
	scores := NewSeededRoller(9).AbilityScores()
	if len(scores) != 6 {
		t.Fatalf("len(scores) = %d, want 6", len(scores))
	}
	for i, score := range scores {
		if score < 3 || score > 18 {
			t.Fatalf("score %d = %d, want within [3,18]", i, score)
		}
		if i > 0 && scores[i-1] < score {
			t.Fatalf("scores not descending: %v", scores)
		}
	}
}
