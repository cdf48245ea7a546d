package loop

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LogLevelQuiet, ParseLogLevel("quiet"))
	assert.Equal(t, LogLevelNormal, ParseLogLevel("normal"))
	assert.Equal(t, LogLevelVerbose, ParseLogLevel("verbose"))
	assert.Equal(t, LogLevelDebug, ParseLogLevel("debug"))
	assert.Equal(t, LogLevelNormal, ParseLogLevel("unknown"))
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(LogLevelQuiet, &buf)

	l.Infof("hidden info")
	l.Verbosef("hidden detail")
	l.Iteration(1, 3)
	assert.Empty(t, buf.String())

	l.Errorf("visible %s", "error")
	l.Warningf("visible warning")
	assert.Contains(t, buf.String(), "visible error")
	assert.Contains(t, buf.String(), "visible warning")
}

func TestLogger_Normal(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(LogLevelNormal, &buf)

	l.Iteration(2, 5)
	l.Infof("info line")
	l.Verbosef("detail line")
	l.Debugf("debug line")
	l.Verification("make test", false, "exit status 2")
	l.Commit(CommitInfo{Hash: "abcdef0123456789", Subject: "Fix bug"})

	out := buf.String()
	assert.Contains(t, out, "[2/5] Running agent")
	assert.Contains(t, out, "info line")
	assert.NotContains(t, out, "detail line")
	assert.NotContains(t, out, "debug line")
	assert.Contains(t, out, "verify (make test): failed")
	assert.Contains(t, out, "exit status 2")
	assert.Contains(t, out, "abcdef01 Fix bug")
}

func TestLogger_Output(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, io.Discard, NewLogger(LogLevelNormal, &buf).Output())
	assert.Equal(t, io.Writer(&buf), NewLogger(LogLevelVerbose, &buf).Output())
}

func TestLogger_Summary(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(LogLevelQuiet, &buf)

	summary := sampleSummary()
	summary.AgentFailures = 2
	l.Summary(summary)

	out := buf.String()
	assert.Contains(t, out, "RUN SUMMARY")
	assert.Contains(t, out, "BUILD_COMPLETE")
	assert.Contains(t, out, "Iterations: 2/5")
	assert.Contains(t, out, "Agent failures: 2")
	assert.Contains(t, out, "01234567 Add parser")
}
