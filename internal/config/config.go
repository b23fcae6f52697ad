// Package config loads and validates the YAML configuration file at
// <projectRoot>/.lisa/config.yaml, grounded on the teacher's
// wt.LoadRepoConfig default-filling pattern.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tarcisiopgs/lisa/internal/model"
	"github.com/tarcisiopgs/lisa/internal/overseer"
	"github.com/tarcisiopgs/lisa/internal/session"
	"github.com/tarcisiopgs/lisa/internal/worktree"
)

// RepoConfig is one entry of the repos[] list.
type RepoConfig struct {
	Name       string `yaml:"name"`
	Path       string `yaml:"path"`
	Match      string `yaml:"match"`
	BaseBranch string `yaml:"base_branch"`
}

// SourceConfig mirrors model.SourceConfig in its YAML shape.
type SourceConfig struct {
	Team        string   `yaml:"team"`
	Project     string   `yaml:"project"`
	Board       string   `yaml:"board"`
	Label       []string `yaml:"label"`
	RemoveLabel string   `yaml:"remove_label"`
	PickFrom    string   `yaml:"pick_from"`
	InProgress  string   `yaml:"in_progress"`
	Done        string   `yaml:"done"`
}

// LoopConfig controls main-loop pacing.
type LoopConfig struct {
	Cooldown    int `yaml:"cooldown"`
	MaxSessions int `yaml:"max_sessions"`
}

// OverseerConfig controls the stuck-agent watchdog. Enabled is a pointer so
// an absent key can default to true while an explicit `enabled: false`
// is still honored.
type OverseerConfig struct {
	Enabled        *bool `yaml:"enabled"`
	CheckInterval  int   `yaml:"check_interval"`
	StuckThreshold int   `yaml:"stuck_threshold"`
}

// IsEnabled reports the resolved overseer.enabled value, defaulting to true.
func (o OverseerConfig) IsEnabled() bool {
	return o.Enabled == nil || *o.Enabled
}

// ProviderOptions is one provider's ordered model fallback list.
type ProviderOptions struct {
	Models []string `yaml:"models"`
}

// Config is the full parsed `.lisa/config.yaml`.
type Config struct {
	Provider        string                     `yaml:"provider"`
	ProviderOptions map[string]ProviderOptions `yaml:"provider_options"`
	Source          string                     `yaml:"source"`
	SourceConfig    SourceConfig               `yaml:"source_config"`
	Workflow        string                     `yaml:"workflow"`
	Platform        string                     `yaml:"platform"`
	BaseBranch      string                     `yaml:"base_branch"`
	Repos           []RepoConfig               `yaml:"repos"`
	Loop            LoopConfig                 `yaml:"loop"`
	Overseer        OverseerConfig             `yaml:"overseer"`
	Bell            bool                       `yaml:"bell"`
}

// Path returns the canonical config path for a project root.
func Path(projectRoot string) string {
	return filepath.Join(projectRoot, ".lisa", "config.yaml")
}

// Load reads and validates the config at path, filling in defaults for
// anything the spec names a default for.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.BaseBranch == "" {
		cfg.BaseBranch = "main"
	}
	if cfg.Workflow == "" {
		cfg.Workflow = "worktree"
	}
	if cfg.Platform == "" {
		cfg.Platform = "cli"
	}
	if cfg.Loop.Cooldown == 0 {
		cfg.Loop.Cooldown = 30
	}
	if cfg.Overseer.CheckInterval == 0 {
		cfg.Overseer.CheckInterval = 30
	}
	if cfg.Overseer.StuckThreshold == 0 {
		cfg.Overseer.StuckThreshold = 300
	}
	for i := range cfg.Repos {
		if cfg.Repos[i].BaseBranch == "" {
			cfg.Repos[i].BaseBranch = cfg.BaseBranch
		}
	}
}

func validate(cfg *Config) error {
	if cfg.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if cfg.Workflow != "worktree" && cfg.Workflow != "branch" {
		return fmt.Errorf("workflow must be \"worktree\" or \"branch\", got %q", cfg.Workflow)
	}
	switch cfg.Platform {
	case "cli", "token", "gitlab", "bitbucket":
	default:
		return fmt.Errorf("platform must be one of cli|token|gitlab|bitbucket, got %q", cfg.Platform)
	}
	if len(cfg.Repos) == 0 {
		return fmt.Errorf("at least one repo is required")
	}
	return nil
}

// ModelSpecs flattens provider/provider_options into the ordered ModelSpec
// list the fallback chain consumes: the primary provider's models first, in
// configured order. The config schema (§6) only names one provider plus its
// own model list, so a cross-provider chain (e.g. gemini-2.5-pro falling
// back to claude-sonnet) isn't expressible here even though RunChain itself
// accepts an arbitrary []model.ModelSpec mixing providers; reaching that
// would need a schema change (an ordered top-level fallback list), not a
// change to this method.
func (c *Config) ModelSpecs() []model.ModelSpec {
	opts, ok := c.ProviderOptions[c.Provider]
	if !ok || len(opts.Models) == 0 {
		return []model.ModelSpec{{Provider: c.Provider}}
	}

	specs := make([]model.ModelSpec, 0, len(opts.Models))
	for _, m := range opts.Models {
		specs = append(specs, model.ModelSpec{Provider: c.Provider, Model: m})
	}
	return specs
}

// RepoSpecs converts the YAML repo list into worktree.RepoSpec values.
func (c *Config) RepoSpecs() []worktree.RepoSpec {
	specs := make([]worktree.RepoSpec, 0, len(c.Repos))
	for _, r := range c.Repos {
		specs = append(specs, worktree.RepoSpec{Name: r.Name, Path: r.Path, Match: r.Match, BaseBranch: r.BaseBranch})
	}
	return specs
}

// ModelSourceConfig converts the YAML source_config block into
// model.SourceConfig.
func (c *Config) ModelSourceConfig() model.SourceConfig {
	return model.SourceConfig{
		Team:        c.SourceConfig.Team,
		Project:     c.SourceConfig.Project,
		Board:       c.SourceConfig.Board,
		Labels:      c.SourceConfig.Label,
		RemoveLabel: c.SourceConfig.RemoveLabel,
		PickFrom:    c.SourceConfig.PickFrom,
		InProgress:  c.SourceConfig.InProgress,
		Done:        c.SourceConfig.Done,
	}
}

// SessionWorkflow converts the YAML workflow string into the session.Workflow type.
func (c *Config) SessionWorkflow() session.Workflow {
	if c.Workflow == "branch" {
		return session.WorkflowBranch
	}
	return session.WorkflowWorktree
}

// CooldownDuration returns loop.cooldown as a time.Duration.
func (c *Config) CooldownDuration() time.Duration {
	return time.Duration(c.Loop.Cooldown) * time.Second
}

// OverseerSettings builds the overseer.Config the session executor expects.
func (c *Config) OverseerSettings() overseer.Config {
	return overseer.Config{
		Enabled:        c.Overseer.IsEnabled(),
		CheckInterval:  time.Duration(c.Overseer.CheckInterval) * time.Second,
		StuckThreshold: time.Duration(c.Overseer.StuckThreshold) * time.Second,
	}
}
