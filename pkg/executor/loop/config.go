package loop

import (
	"fmt"
	"os"
	"time"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"
)

// Config represents the configuration for one driver run.
// It is built once at startup and never mutated by the driver.
type Config struct {
	// Maximum number of agent invocations before giving up
	MaxIterations int `yaml:"max_iterations" json:"max_iterations"`

	// Agent selector: a preset name (claude, codex, gemini, opencode) or an executable
	Agent string `yaml:"agent" json:"agent"`

	// Extra flags appended verbatim to the agent invocation
	Flags string `yaml:"flags" json:"flags"`

	// Shell command run after each successful invocation; empty disables verification
	VerifyCommand string `yaml:"verify_command" json:"verify_command"`

	// Workspace directory (must be inside a git working tree)
	WorkspaceDir string `yaml:"workspace_dir" json:"workspace_dir"`

	// Prompt and plan files, relative to the workspace unless absolute
	PromptFile string `yaml:"prompt_file" json:"prompt_file"`
	PlanFile   string `yaml:"plan_file" json:"plan_file"`

	Delays  DelayConfig   `yaml:"delays" json:"delays"`
	Notify  NotifyConfig  `yaml:"notify" json:"notify"`
	Git     GitConfig     `yaml:"git" json:"git"`
	Summary SummaryConfig `yaml:"summary" json:"summary"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// DelayConfig holds the fixed pauses between rounds
type DelayConfig struct {
	AfterFailure time.Duration `yaml:"after_failure" json:"after_failure"`
	AfterRound   time.Duration `yaml:"after_round" json:"after_round"`
}

// NotifyConfig points at the escalation gateway
type NotifyConfig struct {
	URL   string `yaml:"url" json:"url"`
	Token string `yaml:"token" json:"-"`
}

// GitConfig controls the per-iteration change report
type GitConfig struct {
	// Glob patterns for paths left out of the changed-files report
	IgnorePatterns []string `yaml:"ignore_patterns" json:"ignore_patterns"`
}

// SummaryConfig controls the run summary written at a terminal state
type SummaryConfig struct {
	Enabled  bool `yaml:"enabled" json:"enabled"`
	JSON     bool `yaml:"json" json:"json"`
	Markdown bool `yaml:"markdown" json:"markdown"`
}

// LoggingConfig defines console logging configuration
type LoggingConfig struct {
	// Verbosity controls logging level: quiet, normal, verbose, debug
	Verbosity string `yaml:"verbosity" json:"verbosity"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be a positive integer, got %d", c.MaxIterations)
	}

	if c.Agent == "" {
		return fmt.Errorf("agent is required")
	}

	if c.WorkspaceDir == "" {
		return fmt.Errorf("workspace directory is required")
	}

	if c.PromptFile == "" {
		return fmt.Errorf("prompt_file is required")
	}

	if c.PlanFile == "" {
		return fmt.Errorf("plan_file is required")
	}

	if c.Delays.AfterFailure < 0 || c.Delays.AfterRound < 0 {
		return fmt.Errorf("delays cannot be negative")
	}

	for _, pattern := range c.Git.IgnorePatterns {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			return fmt.Errorf("invalid ignore pattern %q: %w", pattern, err)
		}
	}

	// Set default verbosity if not specified
	if c.Logging.Verbosity == "" {
		c.Logging.Verbosity = "normal"
	}

	validLevels := map[string]bool{
		"quiet":   true,
		"normal":  true,
		"verbose": true,
		"debug":   true,
	}
	if !validLevels[c.Logging.Verbosity] {
		return fmt.Errorf("invalid logging verbosity: %s (must be 'quiet', 'normal', 'verbose', or 'debug')", c.Logging.Verbosity)
	}

	return nil
}

// DefaultConfig returns a default configuration suitable for most use cases
func DefaultConfig() *Config {
	return &Config{
		MaxIterations: 20,
		Agent:         string(PresetClaude),
		WorkspaceDir:  ".",
		PromptFile:    "PROMPT.md",
		PlanFile:      "IMPLEMENTATION_PLAN.md",
		Delays: DelayConfig{
			AfterFailure: 5 * time.Second,
			AfterRound:   2 * time.Second,
		},
		Git: GitConfig{
			IgnorePatterns: []string{".forgeloop/**"},
		},
		Summary: SummaryConfig{
			Enabled:  true,
			JSON:     true,
			Markdown: true,
		},
		Logging: LoggingConfig{
			Verbosity: "normal",
		},
	}
}

// LoadConfigFile loads a YAML file on top of DefaultConfig
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}
