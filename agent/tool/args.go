package tool

import (
	"fmt"
	"strconv"
	"strings"
)

// Model-produced arguments arrive as decoded JSON, so numbers are float64
// and the occasional model quotes them as strings. These helpers coerce
// both shapes.

func stringArg(args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok {
		return "", fmt.Errorf("argument %q is required", key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", key)
	}
	return strings.TrimSpace(s), nil
}

func floatArg(args map[string]any, key string) (float64, error) {
	raw, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("argument %q is required", key)
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("argument %q must be a number", key)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("argument %q must be a number", key)
	}
}

func intArg(args map[string]any, key string) (int, error) {
	v, err := floatArg(args, key)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

// normalizeCustomerID strips common formatting from an 11-digit id.
func normalizeCustomerID(id string) (string, bool) {
	cleaned := strings.NewReplacer(".", "", "-", "", " ", "").Replace(id)
	if len(cleaned) != 11 {
		return cleaned, false
	}
	for _, ch := range cleaned {
		if ch < '0' || ch > '9' {
			return cleaned, false
		}
	}
	return cleaned, true
}
