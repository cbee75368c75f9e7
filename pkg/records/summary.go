package records

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"dbadmin/internal/domain"
)

// PreviewKeyField is the preview row field holding the referenced key.
const PreviewKeyField = "__id"

// Summaries holds foreign key summaries: for each referring column id,
// the rendered summary of each referenced key.
type Summaries map[int]map[string]string

// Lookup returns the summary of the record referenced by value through
// column.
func (s Summaries) Lookup(column int, value any) (string, bool) {
	byKey, ok := s[column]
	if !ok {
		return "", false
	}
	v, ok := byKey[Stringify(value)]
	return v, ok
}

var placeholder = regexp.MustCompile(`\{(\d+)\}`)

// RenderSummary replaces every {columnId} in template with the value of
// that column. Missing columns render as empty text.
func RenderSummary(template string, values map[int]any) string {
	return RenderTransitiveSummary(template, values, nil)
}

// RenderTransitiveSummary is RenderSummary for a record whose foreign key
// columns should show the summary of the referenced record when one is
// known.
func RenderTransitiveSummary(template string, values map[int]any, fk Summaries) string {
	return placeholder.ReplaceAllStringFunc(template, func(m string) string {
		id, err := strconv.Atoi(m[1 : len(m)-1])
		if err != nil {
			return m
		}
		v, ok := values[id]
		if !ok {
			return ""
		}
		if s, ok := fk.Lookup(id, v); ok {
			return s
		}
		return Stringify(v)
	})
}

// BuildSummaries renders the preview rows returned with a record into
// Summaries keyed by referring column.
func BuildSummaries(preview []domain.PreviewData) Summaries {
	out := make(Summaries, len(preview))
	for _, p := range preview {
		byKey := make(map[string]string, len(p.Data))
		for _, row := range p.Data {
			key, ok := row[PreviewKeyField]
			if !ok {
				continue
			}
			byKey[Stringify(key)] = RenderSummary(p.Template, rowValues(row))
		}
		out[p.Column] = byKey
	}
	return out
}

// rowValues converts a preview row keyed by stringified column ids.
func rowValues(row map[string]any) map[int]any {
	out := make(map[int]any, len(row))
	for k, v := range row {
		id, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		out[id] = v
	}
	return out
}

// Stringify formats a cell value for display. Null renders as empty text.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		return x.String()
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

// decodeValue decodes one JSON cell keeping numbers exact.
func decodeValue(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
