package sandbox

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"dbadmin/pkg/records"
)

// Column types understood by the sandbox.
const (
	TypeText    = "text"
	TypeInteger = "integer"
	TypeNumeric = "numeric"
	TypeBoolean = "boolean"
)

func knownType(t string) bool {
	switch t {
	case TypeText, TypeInteger, TypeNumeric, TypeBoolean:
		return true
	}
	return false
}

// castValue converts a stored cell to typ. nil stays nil.
func castValue(v any, typ string) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch typ {
	case TypeText:
		return records.Stringify(v), nil
	case TypeInteger:
		return castInteger(v)
	case TypeNumeric:
		return castNumeric(v)
	case TypeBoolean:
		return castBoolean(v)
	}
	return nil, fmt.Errorf("unsupported column type %q", typ)
}

func castInteger(v any) (any, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case float64:
		if x == math.Trunc(x) {
			return int64(x), nil
		}
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, nil
		}
		if f, err := x.Float64(); err == nil && f == math.Trunc(f) {
			return int64(f), nil
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
			return n, nil
		}
	}
	return nil, fmt.Errorf("cannot cast %q to %s", records.Stringify(v), TypeInteger)
}

func castNumeric(v any) (any, error) {
	switch x := v.(type) {
	case int64, int, float64:
		return json.Number(records.Stringify(x)), nil
	case json.Number:
		if _, err := x.Float64(); err == nil {
			return x, nil
		}
	case string:
		s := strings.TrimSpace(x)
		if _, err := strconv.ParseFloat(s, 64); err == nil {
			return json.Number(s), nil
		}
	}
	return nil, fmt.Errorf("cannot cast %q to %s", records.Stringify(v), TypeNumeric)
}

func castBoolean(v any) (any, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "t", "yes", "y", "1":
			return true, nil
		case "false", "f", "no", "n", "0":
			return false, nil
		}
	}
	return nil, fmt.Errorf("cannot cast %q to %s", records.Stringify(v), TypeBoolean)
}

// inferType picks the narrowest type every non-empty value casts to.
func inferType(values []any) string {
	var seen bool
	candidates := []string{TypeBoolean, TypeInteger, TypeNumeric}
	for _, v := range values {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		seen = true
		kept := candidates[:0]
		for _, typ := range candidates {
			if typ == TypeBoolean && !boolLike(v) {
				continue
			}
			if _, err := castValue(v, typ); err == nil {
				kept = append(kept, typ)
			}
		}
		candidates = kept
		if len(candidates) == 0 {
			return TypeText
		}
	}
	if !seen {
		return TypeText
	}
	return candidates[0]
}

// boolLike rejects "1"/"0" so numeric columns are not inferred as boolean.
func boolLike(v any) bool {
	switch x := v.(type) {
	case bool:
		return true
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "false", "t", "f", "yes", "no":
			return true
		}
	}
	return false
}
