// Package model defines the data types shared across the orchestration
// engine: issues, model specs, attempts, and the small contract files
// exchanged with the agent subprocess.
package model

import "time"

// Issue is one work item pulled from a Tracker. It is created when fetched
// and never mutated by the core beyond attaching a Dependency.
type Issue struct {
	ID          string
	Title       string
	Description string
	URL         string
	Repo        string
	Blockers    []string
	Dependency  *Dependency
}

// Dependency is the resolved context for an issue blocked by another: the
// blocker's branch, its open PR, and the files it touched.
type Dependency struct {
	BlockerID     string
	BlockerBranch string
	BlockerPRURL  string
	ChangedFiles  []string
}

// ModelSpec is a (provider, optional model) pair. Order in a config's list
// defines fallback priority.
type ModelSpec struct {
	Provider string
	Model    string
}

// Label returns the attribution string used on FallbackResult: "provider/model"
// when a model is set, otherwise just the provider name.
func (m ModelSpec) Label() string {
	if m.Model == "" {
		return m.Provider
	}
	return m.Provider + "/" + m.Model
}

// ErrorCategory classifies why a single Attempt failed.
type ErrorCategory string

const (
	ErrorNone        ErrorCategory = ""
	ErrorEligible    ErrorCategory = "eligible"
	ErrorTaskFault   ErrorCategory = "taskFault"
	ErrorNotInstalled ErrorCategory = "notInstalled"
)

// Attempt records one provider invocation within a fallback chain.
type Attempt struct {
	Spec     ModelSpec
	Success  bool
	Category ErrorCategory
	Duration time.Duration
}

// FallbackResult is the outcome of a full fallback chain run.
type FallbackResult struct {
	Success      bool
	Output       string
	Duration     time.Duration
	ProviderUsed string
	Attempts     []Attempt
}

// Manifest is the small record an agent writes before exiting, telling the
// core which branch and (optionally) PR to use.
type Manifest struct {
	Branch   string `json:"branch"`
	RepoPath string `json:"repoPath,omitempty"`
	PRURL    string `json:"prUrl,omitempty"`
	PRTitle  string `json:"prTitle,omitempty"`
	PRBody   string `json:"prBody,omitempty"`
}

// PlanStep is one step of a multi-repo Plan.
type PlanStep struct {
	RepoPath string `json:"repoPath"`
	Scope    string `json:"scope"`
	Order    int    `json:"order"`
}

// Plan is written by the agent during a multi-repo planning phase.
type Plan struct {
	Steps []PlanStep `json:"steps"`
}

// GuardrailsEntry is one line of the rolling guardrails log.
type GuardrailsEntry struct {
	IssueID  string
	Date     time.Time
	Provider string
	Category ErrorCategory
	Context  string
}

// SourceConfig describes tracker-side filters and the three named states
// the loop drives an issue between.
type SourceConfig struct {
	Team         string
	Project      string
	Board        string
	Labels       []string
	RemoveLabel  string
	PickFrom     string
	InProgress   string
	Done         string
}

// SessionResult is the outcome of one end-to-end session attempt.
type SessionResult struct {
	Success      bool
	ProviderUsed string
	PRURLs       []string
	Fallback     FallbackResult
}

// IsCompleteProviderExhaustion returns true iff attempts is non-empty and
// every attempt failed with ErrorEligible or ErrorNotInstalled — i.e. no
// provider ever reported a task-level failure.
func IsCompleteProviderExhaustion(attempts []Attempt) bool {
	if len(attempts) == 0 {
		return false
	}
	for _, a := range attempts {
		if a.Success {
			return false
		}
		if a.Category != ErrorEligible && a.Category != ErrorNotInstalled {
			return false
		}
	}
	return true
}
