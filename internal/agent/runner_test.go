package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarcisiopgs/lisa/internal/model"
)

type fakeAgent struct {
	name      string
	available bool
	result    RunResult
	err       error
}

func (f *fakeAgent) Name() string                      { return f.name }
func (f *fakeAgent) SupportsNativeWorktree() bool       { return false }
func (f *fakeAgent) IsAvailable(ctx context.Context) bool { return f.available }
func (f *fakeAgent) Run(ctx context.Context, prompt string, opts RunOptions) (RunResult, error) {
	return f.result, f.err
}

func factoryFor(agents map[string]*fakeAgent) Factory {
	return func(provider string) (Agent, error) {
		return agents[provider], nil
	}
}

func TestRunChainFallsBackOnTransientError(t *testing.T) {
	agents := map[string]*fakeAgent{
		"gemini": {name: "gemini", available: true, result: RunResult{Success: false, Output: "429 Too Many Requests"}},
		"claude": {name: "claude", available: true, result: RunResult{Success: true, Output: "done"}},
	}

	result := RunChain(context.Background(), ChainOptions{
		Specs: []model.ModelSpec{
			{Provider: "gemini", Model: "2.5-pro"},
			{Provider: "claude", Model: "sonnet"},
		},
		Prompt:  "fix it",
		Factory: factoryFor(agents),
	})

	require.True(t, result.Success)
	assert.Equal(t, "claude/sonnet", result.ProviderUsed)
	require.Len(t, result.Attempts, 2)
	assert.Equal(t, model.ErrorEligible, result.Attempts[0].Category)
	assert.True(t, result.Attempts[1].Success)
}

func TestRunChainStopsOnTaskFault(t *testing.T) {
	agents := map[string]*fakeAgent{
		"claude": {name: "claude", available: true, result: RunResult{Success: false, Output: "panic: nil pointer dereference"}},
		"gemini": {name: "gemini", available: true, result: RunResult{Success: true, Output: "done"}},
	}

	result := RunChain(context.Background(), ChainOptions{
		Specs: []model.ModelSpec{
			{Provider: "claude"},
			{Provider: "gemini"},
		},
		Prompt:  "fix it",
		Factory: factoryFor(agents),
	})

	require.False(t, result.Success)
	require.Len(t, result.Attempts, 1)
	assert.Equal(t, model.ErrorTaskFault, result.Attempts[0].Category)
	assert.False(t, model.IsCompleteProviderExhaustion(result.Attempts))
}

func TestRunChainCompleteExhaustion(t *testing.T) {
	agents := map[string]*fakeAgent{
		"claude": {name: "claude", available: true, result: RunResult{Success: false, Output: "rate limit exceeded"}},
		"gemini": {name: "gemini", available: true, result: RunResult{Success: false, Output: "quota exceeded"}},
	}

	result := RunChain(context.Background(), ChainOptions{
		Specs:   []model.ModelSpec{{Provider: "claude"}, {Provider: "gemini"}},
		Prompt:  "fix it",
		Factory: factoryFor(agents),
	})

	require.False(t, result.Success)
	assert.True(t, model.IsCompleteProviderExhaustion(result.Attempts))
}

func TestRunChainSkipsUnavailableProvider(t *testing.T) {
	agents := map[string]*fakeAgent{
		"claude": {name: "claude", available: false},
		"gemini": {name: "gemini", available: true, result: RunResult{Success: true}},
	}

	result := RunChain(context.Background(), ChainOptions{
		Specs:   []model.ModelSpec{{Provider: "claude"}, {Provider: "gemini"}},
		Prompt:  "fix it",
		Factory: factoryFor(agents),
	})

	require.True(t, result.Success)
	require.Len(t, result.Attempts, 2)
	assert.Equal(t, model.ErrorNotInstalled, result.Attempts[0].Category)
}
