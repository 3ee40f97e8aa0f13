package document

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSegment(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{
			name:     "single question",
			text:     "What is the capital of France?",
			expected: []string{"What is the capital of France?"},
		},
		{
			name:     "short questions dropped",
			text:     "Why? How so? Is it true?",
			expected: []string{"Is it true?"},
		},
		{
			name:     "statement before question",
			text:     "Intro. What time is it now?",
			expected: []string{"What time is it now?"},
		},
		{
			name:     "spans newline",
			text:     "Which of the\nfollowing apply?",
			expected: []string{"Which of the\nfollowing apply?"},
		},
		{
			name:     "starts at first uppercase letter",
			text:     "and then Where do we go from here?",
			expected: []string{"Where do we go from here?"},
		},
		{
			name:     "duplicates kept in order",
			text:     "Is this a test? Yes. Is this a test?",
			expected: []string{"Is this a test?", "Is this a test?"},
		},
		{
			name:     "no questions",
			text:     "This document has no questions. None at all!",
			expected: []string{},
		},
		{
			name:     "lowercase only",
			text:     "what is this thing?",
			expected: []string{},
		},
		{
			name:     "empty",
			text:     "",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Segment(tt.text))
		})
	}
}

func TestSegmentProperties(t *testing.T) {
	text := `Quiz 1. Answer every item!
What is the chemical symbol for gold? Who wrote the novel Moby Dick?
Name three primary colors. Why?
How many continents are there on Earth?`

	questions := Segment(text)
	assert.Len(t, questions, 3)

	for _, q := range questions {
		assert.True(t, q[0] >= 'A' && q[0] <= 'Z', "question must start uppercase: %q", q)
		assert.True(t, strings.HasSuffix(q, "?"))
		assert.NotContains(t, q[:len(q)-1], "?")
		assert.NotContains(t, q, ".")
		assert.NotContains(t, q, "!")
		assert.Greater(t, len(strings.Fields(q)), 2)
		assert.Equal(t, strings.TrimSpace(q), q)
	}

	// 问题按出现顺序排列
	last := -1
	for _, q := range questions {
		idx := strings.Index(text, q)
		assert.Greater(t, idx, last)
		last = idx
	}
}
