package sortname

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForTitle(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		// Basic article handling
		{
			name:     "The at beginning",
			input:    "The Hobbit",
			expected: "Hobbit, The",
		},
		{
			name:     "A at beginning",
			input:    "A Tale of Two Cities",
			expected: "Tale of Two Cities, A",
		},
		{
			name:     "An at beginning",
			input:    "An American Tragedy",
			expected: "American Tragedy, An",
		},

		// Case insensitivity
		{
			name:     "the lowercase",
			input:    "the hobbit",
			expected: "hobbit, the",
		},
		{
			name:     "THE uppercase",
			input:    "THE HOBBIT",
			expected: "HOBBIT, THE",
		},

		// No article
		{
			name:     "no article",
			input:    "Lord of the Rings",
			expected: "Lord of the Rings",
		},
		{
			name:     "article in middle only",
			input:    "Return of the King",
			expected: "Return of the King",
		},

		// Edge cases
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "whitespace only",
			input:    "   ",
			expected: "",
		},
		{
			name:     "just The",
			input:    "The",
			expected: "The",
		},
		{
			name:     "The with whitespace",
			input:    "The ",
			expected: "The",
		},
		{
			name:     "single word no article",
			input:    "Dune",
			expected: "Dune",
		},

		// Real world examples
		{
			name:     "The Lord of the Rings",
			input:    "The Lord of the Rings",
			expected: "Lord of the Rings, The",
		},
		{
			name:     "A Game of Thrones",
			input:    "A Game of Thrones",
			expected: "Game of Thrones, A",
		},
		{
			name:     "The Great Gatsby",
			input:    "The Great Gatsby",
			expected: "Great Gatsby, The",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ForTitle(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

