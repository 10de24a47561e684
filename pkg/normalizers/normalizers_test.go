package normalizers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizers(t *testing.T) {
	tests := []struct {
		name     string
		fn       Normalizer
		input    string
		expected string
	}{
		{"email lowercases and trims", NormalizeEmail, "  A@B.com ", "a@b.com"},
		{"collapse whitespace", CollapseWhitespace, " Jean \t  Dupont\n", "Jean Dupont"},
		{"name keeps hyphen", NormalizeName, "  Jean-Pierre   DUPONT ", "jean-pierre dupont"},
		{"alphanumeric keeps accents", Alphanumeric, "Théâtre du Châtelet!", "ThéâtreduChâtelet"},
		{"digits only", DigitsOnly, "123 456 789 00012", "12345678900012"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.fn(tt.input))
		})
	}
}

func TestNormalizeFullName(t *testing.T) {
	assert.Equal(t, "lea martin", NormalizeFullName("Lea", " MARTIN "))
	assert.Equal(t, "léa martin", NormalizeFullName(" Léa ", "Martin"))
	assert.Equal(t, "martin", NormalizeFullName("", "Martin"))
}

func TestApplyChain(t *testing.T) {
	assert.Equal(t, "festivaltest", ApplyChain(" Festival Test ", "lowercase", "trim", "alphanumeric"))
	assert.Equal(t, "Same", ApplyChain("Same", "unknown"))

	fn, ok := Get("nemail")
	assert.True(t, ok)
	assert.Equal(t, "x@y.fr", fn(" X@Y.FR"))
}
