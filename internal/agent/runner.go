package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/tarcisiopgs/lisa/internal/classify"
	"github.com/tarcisiopgs/lisa/internal/guardrails"
	"github.com/tarcisiopgs/lisa/internal/model"
)

// ChainOptions configures one fallback-chain run.
type ChainOptions struct {
	Specs      []model.ModelSpec
	Prompt     string
	Run        RunOptions
	Factory    Factory
	Guardrails *guardrails.Store
	IssueID    string
}

// RunChain iterates specs in order, constructing and invoking an Agent for
// each, until one succeeds or a task-level failure stops the chain. See
// spec §4.6 for the full per-step contract.
func RunChain(ctx context.Context, opts ChainOptions) model.FallbackResult {
	start := time.Now()
	var attempts []model.Attempt
	var lastOutput string
	var providerUsed string

	for _, spec := range opts.Specs {
		providerUsed = spec.Label()

		ag, err := opts.Factory(spec.Provider)
		if err != nil || !ag.IsAvailable(ctx) {
			attempts = append(attempts, model.Attempt{
				Spec:     spec,
				Success:  false,
				Category: model.ErrorNotInstalled,
			})
			continue
		}

		section, _ := readGuardrailsSection(opts.Guardrails)
		prompt := opts.Prompt
		if section != "" {
			prompt = prompt + "\n\n" + section
		}

		runOpts := opts.Run
		runOpts.Model = spec.Model

		attemptStart := time.Now()
		result, runErr := ag.Run(ctx, prompt, runOpts)
		duration := time.Since(attemptStart)
		lastOutput = result.Output

		if runErr == nil && result.Success {
			attempts = append(attempts, model.Attempt{
				Spec: spec, Success: true, Category: model.ErrorNone, Duration: duration,
			})
			return model.FallbackResult{
				Success:      true,
				Output:       lastOutput,
				Duration:     time.Since(start),
				ProviderUsed: providerUsed,
				Attempts:     attempts,
			}
		}

		appendGuardrailsEntry(opts.Guardrails, opts.IssueID, spec, result.Output, runErr)

		if classify.Eligible(result.Output) {
			attempts = append(attempts, model.Attempt{
				Spec: spec, Success: false, Category: model.ErrorEligible, Duration: duration,
			})
			continue
		}

		attempts = append(attempts, model.Attempt{
			Spec: spec, Success: false, Category: model.ErrorTaskFault, Duration: duration,
		})
		return model.FallbackResult{
			Success:      false,
			Output:       lastOutput,
			Duration:     time.Since(start),
			ProviderUsed: providerUsed,
			Attempts:     attempts,
		}
	}

	return model.FallbackResult{
		Success:      false,
		Output:       lastOutput,
		Duration:     time.Since(start),
		ProviderUsed: providerUsed,
		Attempts:     attempts,
	}
}

func readGuardrailsSection(store *guardrails.Store) (string, error) {
	if store == nil {
		return "", nil
	}
	return store.ReadSection()
}

func appendGuardrailsEntry(store *guardrails.Store, issueID string, spec model.ModelSpec, output string, runErr error) {
	if store == nil {
		return
	}

	category := model.ErrorTaskFault
	if classify.Eligible(output) {
		category = model.ErrorEligible
	}

	detail := output
	if runErr != nil {
		detail = fmt.Sprintf("%s\n%s", runErr.Error(), output)
	}
	if len(detail) > 2000 {
		detail = detail[len(detail)-2000:]
	}

	_ = store.Append(model.GuardrailsEntry{
		IssueID:  issueID,
		Date:     time.Now(),
		Provider: spec.Provider,
		Category: category,
		Context:  detail,
	})
}
