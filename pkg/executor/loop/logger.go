package loop

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// LogLevel represents the logging verbosity level
type LogLevel int

const (
	// LogLevelQuiet shows only critical information (errors, warnings, final summary)
	LogLevelQuiet LogLevel = iota
	// LogLevelNormal shows standard execution progress (default)
	LogLevelNormal
	// LogLevelVerbose also mirrors agent and verification output
	LogLevelVerbose
	// LogLevelDebug shows all internal details for debugging
	LogLevelDebug
)

var (
	salmonPink = lipgloss.Color("#FFB3BA")
	mintGreen  = lipgloss.Color("#A8E6CF")
	amber      = lipgloss.Color("#FCD34D")
	coralRed   = lipgloss.Color("#F87171")
	mutedGray  = lipgloss.Color("#6B7280")

	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F9FAFB"))
	stepStyle    = lipgloss.NewStyle().Foreground(salmonPink)
	infoStyle    = lipgloss.NewStyle().Foreground(salmonPink)
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(mintGreen)
	warnStyle    = lipgloss.NewStyle().Foreground(amber)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(coralRed)
	detailStyle  = lipgloss.NewStyle().Foreground(mutedGray)
)

// Logger prints operator-facing progress for a run
type Logger struct {
	level  LogLevel
	writer io.Writer
}

// NewLogger creates a console logger. A nil writer means stdout.
func NewLogger(level LogLevel, writer io.Writer) *Logger {
	if writer == nil {
		writer = os.Stdout
	}
	return &Logger{level: level, writer: writer}
}

// Header prints a prominent header message
func (l *Logger) Header(message string) {
	if l.level >= LogLevelNormal {
		rule := strings.Repeat("=", 70)
		fmt.Fprintf(l.writer, "\n%s\n%s\n%s\n", headerStyle.Render(rule), headerStyle.Render("  "+message), headerStyle.Render(rule))
	}
}

// Iteration prints the start of a round
func (l *Logger) Iteration(i, limit int) {
	if l.level >= LogLevelNormal {
		fmt.Fprintf(l.writer, "\n%s\n", stepStyle.Render(fmt.Sprintf("[%d/%d] Running agent", i, limit)))
	}
}

// Successf prints a success message with checkmark
func (l *Logger) Successf(format string, args ...interface{}) {
	if l.level >= LogLevelNormal {
		fmt.Fprintln(l.writer, successStyle.Render("✓ "+fmt.Sprintf(format, args...)))
	}
}

// Infof prints an informational message
func (l *Logger) Infof(format string, args ...interface{}) {
	if l.level >= LogLevelNormal {
		fmt.Fprintln(l.writer, infoStyle.Render(fmt.Sprintf(format, args...)))
	}
}

// Warningf prints a warning message
func (l *Logger) Warningf(format string, args ...interface{}) {
	if l.level >= LogLevelQuiet {
		fmt.Fprintln(l.writer, warnStyle.Render("⚠ Warning: "+fmt.Sprintf(format, args...)))
	}
}

// Errorf prints an error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	if l.level >= LogLevelQuiet {
		fmt.Fprintln(l.writer, errorStyle.Render("✗ Error: "+fmt.Sprintf(format, args...)))
	}
}

// Verbosef prints detailed information (only in verbose mode)
func (l *Logger) Verbosef(format string, args ...interface{}) {
	if l.level >= LogLevelVerbose {
		fmt.Fprintln(l.writer, detailStyle.Render("→ "+fmt.Sprintf(format, args...)))
	}
}

// Debugf prints debug information (only in debug mode)
func (l *Logger) Debugf(format string, args ...interface{}) {
	if l.level >= LogLevelDebug {
		fmt.Fprintln(l.writer, detailStyle.Render("[DEBUG] "+fmt.Sprintf(format, args...)))
	}
}

// Verification logs the outcome of a verification run
func (l *Logger) Verification(command string, passed bool, message string) {
	if l.level < LogLevelNormal {
		return
	}
	if passed {
		fmt.Fprintln(l.writer, successStyle.Render(fmt.Sprintf("  ✓ verify (%s): passed", command)))
		return
	}
	fmt.Fprintln(l.writer, errorStyle.Render(fmt.Sprintf("  ✗ verify (%s): failed", command)))
	if message != "" {
		fmt.Fprintln(l.writer, detailStyle.Render("    "+message))
	}
}

// Commit logs a commit the agent made during the round
func (l *Logger) Commit(info CommitInfo) {
	if l.level >= LogLevelNormal {
		fmt.Fprintln(l.writer, stepStyle.Render(fmt.Sprintf("  🔀 %s %s", shortHash(info.Hash), info.Subject)))
	}
}

// Output returns the writer agent output is mirrored to at this level
func (l *Logger) Output() io.Writer {
	if l.level >= LogLevelVerbose {
		return l.writer
	}
	return io.Discard
}

// Summary prints a final run summary
func (l *Logger) Summary(summary *RunSummary) {
	rule := strings.Repeat("=", 70)
	fmt.Fprintln(l.writer)
	fmt.Fprintln(l.writer, headerStyle.Render(rule))
	fmt.Fprintln(l.writer, headerStyle.Render("  RUN SUMMARY"))
	fmt.Fprintln(l.writer, headerStyle.Render(rule))

	fmt.Fprint(l.writer, "  Outcome: ")
	switch summary.Outcome {
	case OutcomeBuildComplete.String(), OutcomePlanComplete.String(), OutcomeBootstrapped.String():
		fmt.Fprintln(l.writer, successStyle.Render("✓ "+strings.ToUpper(summary.Outcome)))
	default:
		fmt.Fprintln(l.writer, errorStyle.Render("✗ "+strings.ToUpper(summary.Outcome)))
	}

	fmt.Fprintf(l.writer, "  Agent: %s\n", summary.Agent)
	fmt.Fprintf(l.writer, "  Iterations: %d/%d\n", summary.Iterations, summary.MaxIterations)
	fmt.Fprintf(l.writer, "  Duration: %s\n", summary.Duration.Round(time.Second))

	if summary.AgentFailures > 0 {
		fmt.Fprintf(l.writer, "  Agent failures: %d\n", summary.AgentFailures)
	}
	if summary.VerificationFailures > 0 {
		fmt.Fprintf(l.writer, "  Verification failures: %d\n", summary.VerificationFailures)
	}

	if len(summary.Commits) > 0 {
		fmt.Fprintf(l.writer, "\n  🔀 Commits:\n")
		for _, c := range summary.Commits {
			fmt.Fprintf(l.writer, "    %s %s\n", shortHash(c.Hash), c.Subject)
		}
	}

	if summary.Error != "" {
		fmt.Fprintln(l.writer)
		fmt.Fprintln(l.writer, errorStyle.Render("  Error Details:"))
		fmt.Fprintln(l.writer, errorStyle.Render("    "+summary.Error))
	}

	fmt.Fprintln(l.writer, headerStyle.Render(rule))
	fmt.Fprintln(l.writer)
}

// ParseLogLevel converts a string log level to LogLevel type
func ParseLogLevel(level string) LogLevel {
	switch level {
	case "quiet":
		return LogLevelQuiet
	case "normal":
		return LogLevelNormal
	case "verbose":
		return LogLevelVerbose
	case "debug":
		return LogLevelDebug
	default:
		return LogLevelNormal
	}
}
