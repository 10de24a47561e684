package store

import (
	"strconv"
	"strings"
	"time"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Coercion lists the fields of a document read leniently. Documents written by
// older clients carry timestamps as empty strings, Firestore {seconds, nanoseconds}
// objects or epoch milliseconds, and booleans as strings.
type Coercion struct {
	Times []string
	Bools []string
}

// Apply returns a copy of doc with the listed fields converted to the shapes
// Decode expects. Values it cannot read are left for Decode to reject.
func (c Coercion) Apply(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}

	for _, field := range c.Times {
		v, ok := out[field]
		if !ok {
			continue
		}
		t, keep := coerceTime(v)
		if !keep {
			delete(out, field)
			continue
		}
		out[field] = t
	}

	for _, field := range c.Bools {
		v, ok := out[field]
		if !ok {
			continue
		}
		b, keep := coerceBool(v)
		if !keep {
			delete(out, field)
			continue
		}
		out[field] = b
	}
	return out
}

// coerceTime returns the value to keep, or false when the field is unset.
func coerceTime(v any) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false
	case time.Time:
		return t, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil, false
		}
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed.UTC(), true
			}
		}
		return t, true
	case float64:
		return time.UnixMilli(int64(t)).UTC(), true
	case int64:
		return time.UnixMilli(t).UTC(), true
	case int:
		return time.UnixMilli(int64(t)).UTC(), true
	case map[string]any:
		seconds, ok := number(t, "seconds", "_seconds")
		if !ok {
			return v, true
		}
		nanos, _ := number(t, "nanoseconds", "_nanoseconds")
		return time.Unix(int64(seconds), int64(nanos)).UTC(), true
	}
	return v, true
}

func coerceBool(v any) (any, bool) {
	switch b := v.(type) {
	case nil:
		return nil, false
	case bool:
		return b, true
	case string:
		s := strings.TrimSpace(b)
		if s == "" {
			return nil, false
		}
		if parsed, err := strconv.ParseBool(strings.ToLower(s)); err == nil {
			return parsed, true
		}
		switch strings.ToLower(s) {
		case "oui", "yes":
			return true, true
		case "non", "no":
			return false, true
		}
		return b, true
	case float64:
		return b != 0, true
	case int:
		return b != 0, true
	case int64:
		return b != 0, true
	}
	return v, true
}

func number(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		switch n := m[k].(type) {
		case float64:
			return n, true
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		}
	}
	return 0, false
}
