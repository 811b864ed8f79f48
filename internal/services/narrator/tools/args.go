package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"google.golang.org/genai"

	apperrors "github.com/Jordannewman90/Roleplay-Foreplay/internal/platform/errors"
)

// MaxAmount bounds model-supplied counts and deltas: loot quantity, XP,
// gold and relationship changes.
const MaxAmount = 1_000_000

func invalidArgument(name, format string, args ...any) error {
	return apperrors.WithMetadata(apperrors.CodeInvalidArgument,
		fmt.Sprintf(format, args...),
		map[string]string{"argument": name})
}

// requiredString returns a non-empty, trimmed string argument.
func requiredString(args map[string]any, name string) (string, error) {
	value, err := optionalString(args, name)
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", invalidArgument(name, "%s is required", name)
	}
	return value, nil
}

func optionalString(args map[string]any, name string) (string, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return "", nil
	}
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v), nil
	case json.Number:
		return v.String(), nil
	case float64, int, int64:
		return fmt.Sprint(v), nil
	default:
		return "", invalidArgument(name, "%s must be a string", name)
	}
}

// intArg decodes an integer argument. JSON numbers arrive as float64.
func intArg(args map[string]any, name string, fallback int, required bool) (int, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		if required {
			return 0, invalidArgument(name, "%s is required", name)
		}
		return fallback, nil
	}
	switch v := raw.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, invalidArgument(name, "%s must be a whole number, got %v", name, v)
		}
		if v >= math.MaxInt64 || v < math.MinInt64 {
			return 0, invalidArgument(name, "%s is out of range, got %v", name, v)
		}
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, invalidArgument(name, "%s must be an integer, got %q", name, v.String())
		}
		return int(n), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, invalidArgument(name, "%s must be an integer, got %q", name, v)
		}
		return n, nil
	default:
		return 0, invalidArgument(name, "%s must be an integer", name)
	}
}

// amountArg decodes an integer argument limited to ±MaxAmount.
func amountArg(args map[string]any, name string, fallback int, required bool) (int, error) {
	n, err := intArg(args, name, fallback, required)
	if err != nil {
		return 0, err
	}
	if n > MaxAmount || n < -MaxAmount {
		return 0, invalidArgument(name, "%s must be between %d and %d, got %d", name, -MaxAmount, MaxAmount, n)
	}
	return n, nil
}

// stringsArg decodes an array-of-string argument, dropping blank entries.
func stringsArg(args map[string]any, name string) ([]string, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return nil, nil
	}
	var items []string
	switch v := raw.(type) {
	case []string:
		items = v
	case []any:
		items = make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, invalidArgument(name, "%s must contain only strings", name)
			}
			items = append(items, s)
		}
	case string:
		items = []string{v}
	default:
		return nil, invalidArgument(name, "%s must be an array of strings", name)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out, nil
}

func objectSchema(properties map[string]*genai.Schema, required ...string) *genai.Schema {
	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: properties,
		Required:   required,
	}
}

func stringSchema(description string, enum ...string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Description: description, Enum: enum}
}

func integerSchema(description string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeInteger, Description: description}
}

func stringListSchema(description string) *genai.Schema {
	return &genai.Schema{
		Type:        genai.TypeArray,
		Description: description,
		Items:       &genai.Schema{Type: genai.TypeString},
	}
}
