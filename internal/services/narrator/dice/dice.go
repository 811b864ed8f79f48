// Package dice resolves compact dice expressions such as "1d20+5" or "d8-1".
package dice

import (
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/Jordannewman90/Roleplay-Foreplay/internal/random"
)

const (
	// MaxCount is the largest number of dice a single expression may roll.
	MaxCount = 50
	// MaxSides is the largest die an expression may name.
	MaxSides = 1000
)

// ErrInvalidExpression indicates the expression does not match [count]d<sides>[+|-mod].
var ErrInvalidExpression = errors.New("invalid dice expression")

// ErrTooManyDice indicates the expression asks for more than MaxCount dice.
var ErrTooManyDice = errors.New("too many dice")

// ErrTooManySides indicates the expression names a die larger than MaxSides.
var ErrTooManySides = errors.New("too many sides")

var expressionPattern = regexp.MustCompile(`^(\d*)d(\d+)([+-]\d+)?$`)

// Expression is a parsed dice expression.
type Expression struct {
	Count       int
	Sides       int
	Modifier    int
	HasModifier bool
	Raw         string
}

// Result captures one resolved expression.
type Result struct {
	Total      int    `json:"total"`
	Rolls      []int  `json:"rolls"`
	Expression string `json:"expression"`
	Detail     string `json:"detail"`
}

// Parse validates expr and returns its parts.
//
// Spaces are ignored and the "d" is case-insensitive. A missing count means
// one die and a missing modifier means zero. Count must be in [1,MaxCount]
// and sides in [1,MaxSides]; out-of-range values are rejected rather than
// clamped. Every returned error names the offending input.
func Parse(expr string) (Expression, error) {
	clean := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(expr), " ", ""))
	match := expressionPattern.FindStringSubmatch(clean)
	if match == nil {
		return Expression{}, fmt.Errorf("%w %q: use a format like 1d20+5", ErrInvalidExpression, expr)
	}

	count := 1
	if match[1] != "" {
		value, err := strconv.Atoi(match[1])
		if err != nil {
			return Expression{}, fmt.Errorf("%w %q: bad count", ErrInvalidExpression, expr)
		}
		count = value
	}
	sides, err := strconv.Atoi(match[2])
	if err != nil {
		return Expression{}, fmt.Errorf("%w %q: bad sides", ErrInvalidExpression, expr)
	}

	parsed := Expression{Count: count, Sides: sides, Raw: expr}
	if match[3] != "" {
		modifier, err := strconv.Atoi(match[3])
		if err != nil {
			return Expression{}, fmt.Errorf("%w %q: bad modifier", ErrInvalidExpression, expr)
		}
		parsed.Modifier = modifier
		parsed.HasModifier = true
	}

	switch {
	case count < 1:
		return Expression{}, fmt.Errorf("%w %q: roll at least one die", ErrInvalidExpression, expr)
	case count > MaxCount:
		return Expression{}, fmt.Errorf("%w in %q: at most %d", ErrTooManyDice, expr, MaxCount)
	case sides < 1:
		return Expression{}, fmt.Errorf("%w %q: dice need at least one side", ErrInvalidExpression, expr)
	case sides > MaxSides:
		return Expression{}, fmt.Errorf("%w in %q: at most %d", ErrTooManySides, expr, MaxSides)
	}
	return parsed, nil
}

// Roller rolls dice from a single pseudo-random source. It is safe for
// concurrent use.
type Roller struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRoller returns a Roller seeded from crypto/rand.
func NewRoller() *Roller {
	return &Roller{rng: random.NewSource()}
}

// NewSeededRoller returns a deterministic Roller for tests and replays.
func NewSeededRoller(seed int64) *Roller {
	return &Roller{rng: rand.New(rand.NewSource(seed))}
}

// Roll parses expr and rolls it.
func (r *Roller) Roll(expr string) (Result, error) {
	parsed, err := Parse(expr)
	if err != nil {
		return Result{}, err
	}
	return r.RollExpression(parsed), nil
}

// RollExpression rolls an already validated expression.
func (r *Roller) RollExpression(expr Expression) Result {
	r.mu.Lock()
	rolls := make([]int, expr.Count)
	total := 0
	for i := range rolls {
		rolls[i] = rollDie(r.rng, expr.Sides)
		total += rolls[i]
	}
	r.mu.Unlock()

	return Result{
		Total:      total + expr.Modifier,
		Rolls:      rolls,
		Expression: expr.Raw,
		Detail:     detail(rolls, expr),
	}
}

// Between returns a uniform integer in [lo, hi].
func (r *Roller) Between(lo, hi int) int {
	if hi < lo {
		lo, hi = hi, lo
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo + r.rng.Intn(hi-lo+1)
}

// AbilityScores rolls six scores of 4d6 keeping the highest three, sorted
// from best to worst.
func (r *Roller) AbilityScores() []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	scores := make([]int, 6)
	for i := range scores {
		four := []int{rollDie(r.rng, 6), rollDie(r.rng, 6), rollDie(r.rng, 6), rollDie(r.rng, 6)}
		sort.Ints(four)
		scores[i] = four[1] + four[2] + four[3]
	}
	sort.Sort(sort.Reverse(sort.IntSlice(scores)))
	return scores
}

func rollDie(rng *rand.Rand, sides int) int {
	return rng.Intn(sides) + 1
}

func detail(rolls []int, expr Expression) string {
	parts := make([]string, len(rolls))
	for i, roll := range rolls {
		parts[i] = strconv.Itoa(roll)
	}
	out := "[" + strings.Join(parts, ", ") + "]"
	if expr.HasModifier {
		if expr.Modifier >= 0 {
			out += "+"
		}
		out += strconv.Itoa(expr.Modifier)
	}
	return out
}
