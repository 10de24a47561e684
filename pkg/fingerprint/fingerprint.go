package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
)

// Generate creates a deterministic fingerprint for document data.
// The fingerprint is a SHA256 hash of the canonicalized JSON.
func Generate(data any) string {
	return GenerateWithExclusions(data, nil)
}

// GenerateWithExclusions fingerprints data while ignoring the named keys at any depth.
func GenerateWithExclusions(data any, excludeKeys map[string]bool) string {
	hash := sha256.Sum256([]byte(Canonicalize(data, excludeKeys)))
	return hex.EncodeToString(hash[:])
}

// Canonicalize renders data with sorted keys. Structs are first round-tripped through JSON.
func Canonicalize(data any, excludeKeys map[string]bool) string {
	return canonicalize(toGeneric(data), excludeKeys)
}

func toGeneric(data any) any {
	switch data.(type) {
	case map[string]any, []any, string, bool, float64, nil:
		return data
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil
	}
	return out
}

func canonicalize(data any, excludeKeys map[string]bool) string {
	switch v := data.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			if excludeKeys[k] {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var sb strings.Builder
		sb.WriteString("{")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(",")
			}
			keyJSON, _ := json.Marshal(k)
			sb.Write(keyJSON)
			sb.WriteString(":")
			sb.WriteString(canonicalize(toGeneric(v[k]), excludeKeys))
		}
		sb.WriteString("}")
		return sb.String()
	case []any:
		var sb strings.Builder
		sb.WriteString("[")
		for i, item := range v {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString(canonicalize(toGeneric(item), excludeKeys))
		}
		sb.WriteString("]")
		return sb.String()
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}
