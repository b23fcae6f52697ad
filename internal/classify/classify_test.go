package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEligible(t *testing.T) {
	cases := []struct {
		name   string
		output string
		want   bool
	}{
		{"rate limit", "Error: 429 Too Many Requests", true},
		{"quota", "you have exceeded your quota for this model", true},
		{"resource exhausted", "RESOURCE_EXHAUSTED: please retry", true},
		{"model unavailable", "the model is currently overloaded", true},
		{"model not found", "Error: model not found: gpt-9", true},
		{"network", "dial tcp: connect: econnrefused", true},
		{"timeout", "context deadline exceeded: timeout", true},
		{"not installed", "claude: command not found", true},
		{"free tier", "Free plans can only use claude-haiku", true},
		{"overseer sentinel", "killed stuck process [lisa-overseer:stuck]", true},
		{"task fault", "panic: nil pointer dereference in handler.go:42", false},
		{"compile error", "undefined: fmt.Sprintlnx", false},
		{"empty", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Eligible(tc.output))
		})
	}
}
