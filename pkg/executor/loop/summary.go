package loop

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RunSummary contains a complete summary of one driver run
type RunSummary struct {
	RunID                string            `json:"run_id"`
	Outcome              string            `json:"outcome"`
	Agent                string            `json:"agent"`
	MaxIterations        int               `json:"max_iterations"`
	Iterations           int               `json:"iterations"`
	AgentFailures        int               `json:"agent_failures"`
	VerificationFailures int               `json:"verification_failures"`
	StartTime            time.Time         `json:"start_time"`
	EndTime              time.Time         `json:"end_time"`
	Duration             time.Duration     `json:"duration"`
	Branch               string            `json:"branch,omitempty"`
	Commits              []CommitInfo      `json:"commits,omitempty"`
	Rounds               []IterationRecord `json:"rounds"`
	Error                string            `json:"error,omitempty"`
}

// IterationRecord is what happened in one round
type IterationRecord struct {
	Iteration    int           `json:"iteration"`
	ExitCode     int           `json:"exit_code"`
	Verified     *bool         `json:"verified,omitempty"`
	PlanStatus   string        `json:"plan_status,omitempty"`
	ChangedFiles []string      `json:"changed_files,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// SummaryWriter writes run summaries next to the run log
type SummaryWriter struct {
	outputDir string
	config    SummaryConfig
}

// NewSummaryWriter creates a new summary writer
func NewSummaryWriter(outputDir string, config SummaryConfig) *SummaryWriter {
	return &SummaryWriter{
		outputDir: outputDir,
		config:    config,
	}
}

// WriteAll writes all configured summary formats
func (w *SummaryWriter) WriteAll(summary *RunSummary) error {
	if !w.config.Enabled {
		return nil
	}

	if err := os.MkdirAll(w.outputDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if w.config.JSON {
		if err := w.WriteJSON(summary); err != nil {
			return err
		}
	}

	if w.config.Markdown {
		if err := w.WriteMarkdown(summary); err != nil {
			return err
		}
	}

	return nil
}

func (w *SummaryWriter) path(summary *RunSummary, ext string) string {
	return filepath.Join(w.outputDir, fmt.Sprintf("%s-summary.%s", summary.RunID, ext))
}

// WriteJSON writes the full summary as JSON
func (w *SummaryWriter) WriteJSON(summary *RunSummary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}

	if err := os.WriteFile(w.path(summary, "json"), data, 0600); err != nil {
		return fmt.Errorf("failed to write summary JSON: %w", err)
	}
	return nil
}

// WriteMarkdown writes a human-readable markdown summary
func (w *SummaryWriter) WriteMarkdown(summary *RunSummary) error {
	var md strings.Builder

	md.WriteString("# forgeloop Run Summary\n\n")
	md.WriteString(fmt.Sprintf("**Run:** %s\n\n", summary.RunID))
	md.WriteString(fmt.Sprintf("**Outcome:** %s\n\n", summary.Outcome))
	md.WriteString(fmt.Sprintf("**Agent:** `%s`\n\n", summary.Agent))
	md.WriteString(fmt.Sprintf("**Started:** %s\n\n", summary.StartTime.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Completed:** %s\n\n", summary.EndTime.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Duration:** %s\n\n", summary.Duration))
	if summary.Branch != "" {
		md.WriteString(fmt.Sprintf("**Branch:** %s\n\n", summary.Branch))
	}

	md.WriteString("## Result\n\n")
	if summary.Error != "" {
		md.WriteString(fmt.Sprintf("❌ **Error:** %s\n\n", summary.Error))
	} else {
		md.WriteString(fmt.Sprintf("✅ **%s**\n\n", summary.Outcome))
	}

	if len(summary.Rounds) > 0 {
		md.WriteString("## Rounds\n\n")
		md.WriteString("| # | Exit | Verify | Plan | Duration |\n")
		md.WriteString("|---|------|--------|------|----------|\n")
		for _, r := range summary.Rounds {
			verify := "-"
			if r.Verified != nil {
				verify = "✅"
				if !*r.Verified {
					verify = "❌"
				}
			}
			plan := r.PlanStatus
			if plan == "" {
				plan = "-"
			}
			md.WriteString(fmt.Sprintf("| %d | %d | %s | %s | %s |\n",
				r.Iteration, r.ExitCode, verify, plan, r.Duration.Round(time.Second)))
		}
		md.WriteString("\n")
	}

	if len(summary.Commits) > 0 {
		md.WriteString("## Commits\n\n")
		for _, c := range summary.Commits {
			md.WriteString(fmt.Sprintf("- `%s` %s (%s)\n", shortHash(c.Hash), c.Subject, c.Author))
		}
		md.WriteString("\n")
	}

	md.WriteString("## Metrics\n\n")
	md.WriteString(fmt.Sprintf("- **Iterations:** %d/%d\n", summary.Iterations, summary.MaxIterations))
	md.WriteString(fmt.Sprintf("- **Agent Failures:** %d\n", summary.AgentFailures))
	md.WriteString(fmt.Sprintf("- **Verification Failures:** %d\n", summary.VerificationFailures))

	if err := os.WriteFile(w.path(summary, "md"), []byte(md.String()), 0600); err != nil {
		return fmt.Errorf("failed to write summary markdown: %w", err)
	}
	return nil
}
