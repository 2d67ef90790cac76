package slug

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValid(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"simple", "my-slug", true},
		{"digits", "essay-2025", true},
		{"single word", "hello", true},
		{"empty", "", false},
		{"uppercase", "My-Slug", false},
		{"leading hyphen", "-slug", false},
		{"trailing hyphen", "slug-", false},
		{"double hyphen", "my--slug", false},
		{"spaces", "my slug", false},
		{"underscore", "my_slug", false},
		{"too long", strings.Repeat("a", MaxLength+1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValid(tt.input))
		})
	}
}

func TestFromTitle(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"plain", "My Title", "my-title"},
		{"punctuation", "Why AI Tools Matter: A Primer!", "why-ai-tools-matter-a-primer"},
		{"accents", "Café Crème Brûlée", "cafe-creme-brulee"},
		{"collapses separators", "a  --  b", "a-b"},
		{"trims edges", "  ...hello...  ", "hello"},
		{"only symbols", "!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromTitle(tt.title)
			assert.Equal(t, tt.want, got)
			if got != "" {
				assert.True(t, IsValid(got))
			}
		})
	}
}

func TestFromTitle_Truncates(t *testing.T) {
	got := FromTitle(strings.Repeat("word ", 100))

	assert.LessOrEqual(t, len(got), MaxLength)
	assert.True(t, IsValid(got))
}
