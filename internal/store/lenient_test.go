package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCoercion_Apply(t *testing.T) {
	c := Coercion{Times: []string{"createdAt"}, Bools: []string{"isClient"}}
	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	tests := []struct {
		name     string
		doc      Document
		expected Document
	}{
		{
			name:     "empty strings unset the fields",
			doc:      Document{"id": "a", "createdAt": "", "isClient": " "},
			expected: Document{"id": "a"},
		},
		{
			name:     "firestore timestamp object",
			doc:      Document{"createdAt": map[string]any{"_seconds": float64(ts.Unix()), "_nanoseconds": float64(0)}},
			expected: Document{"createdAt": ts},
		},
		{
			name:     "epoch milliseconds",
			doc:      Document{"createdAt": float64(ts.UnixMilli())},
			expected: Document{"createdAt": ts},
		},
		{
			name:     "date only",
			doc:      Document{"createdAt": "2024-05-06"},
			expected: Document{"createdAt": time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)},
		},
		{
			name:     "boolean strings",
			doc:      Document{"isClient": "TRUE"},
			expected: Document{"isClient": true},
		},
		{
			name:     "french boolean",
			doc:      Document{"isClient": "non"},
			expected: Document{"isClient": false},
		},
		{
			name:     "unreadable values are left for the decoder",
			doc:      Document{"createdAt": "soon", "isClient": "maybe"},
			expected: Document{"createdAt": "soon", "isClient": "maybe"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, c.Apply(tt.doc))
		})
	}
}

func TestCoercion_ApplyLeavesInputUntouched(t *testing.T) {
	doc := Document{"createdAt": "", "isClient": "true"}
	_ = Coercion{Times: []string{"createdAt"}, Bools: []string{"isClient"}}.Apply(doc)
	assert.Equal(t, Document{"createdAt": "", "isClient": "true"}, doc)
}
