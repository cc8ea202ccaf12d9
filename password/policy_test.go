package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicyAnalyze(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name  string
		input string
		valid bool
		score int
	}{
		{name: "empty", input: "", valid: false, score: 0},
		{name: "short", input: "Ab1!", valid: false, score: 4},
		{name: "two classes", input: "abcdefgh12", valid: false, score: 2},
		{name: "three classes", input: "Abcdefgh12", valid: true, score: 3},
		{name: "four classes", input: "Abcdef-gh12", valid: true, score: 4},
		{name: "too long", input: "Aa1" + strings.Repeat("x", 126), valid: false, score: 3},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := p.Analyze(tc.input)
			assert.Equal(t, tc.valid, got.Valid)
			assert.Equal(t, tc.score, got.Score)
			assert.Equal(t, tc.valid, p.Check(tc.input))
			if tc.valid {
				assert.Empty(t, got.Feedback)
			} else {
				assert.NotEmpty(t, got.Feedback)
			}
		})
	}
}
