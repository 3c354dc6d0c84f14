package overlay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMeaningfulText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"empty", "", false},
		{"whitespace only", "  \n\t ", false},
		{"single character", "a", false},
		{"single character padded", "  Z  ", false},
		{"pure digits", "12345", false},
		{"formatted number", "1,234.56", false},
		{"pure punctuation", "...!?", false},
		{"symbols", "-- | --", false},
		{"currency", "$ 12.99 €", false},
		{"stars", "★★★☆", false},
		{"email", "someone@example.com", false},
		{"http url", "http://example.com/path", false},
		{"https url", "HTTPS://example.com", false},
		{"www url", "www.example.com", false},
		{"stop word", "the", false},
		{"stop word uppercase", "AND", false},
		{"sentence", "Welcome to our store", true},
		{"short word", "Go", true},
		{"with digits", "Save 20% today", true},
		{"unicode", "Добро пожаловать", true},
		{"cjk", "欢迎光临", true},
		{"mentions email in sentence", "Write to us at help@example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsMeaningfulText(tt.text), "text %q", tt.text)
		})
	}
}
