package loop

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentCommand_Args(t *testing.T) {
	tests := []struct {
		name     string
		selector string
		flags    string
		want     []string
	}{
		{
			name:     "claude",
			selector: "claude",
			want:     []string{"-p", "--dangerously-skip-permissions", "PROMPT"},
		},
		{
			name:     "claude with flags",
			selector: "claude",
			flags:    "--model  opus --verbose",
			want:     []string{"-p", "--dangerously-skip-permissions", "--model", "opus", "--verbose", "PROMPT"},
		},
		{
			name:     "codex",
			selector: "codex",
			flags:    "--model o3",
			want:     []string{"exec", "--full-auto", "--model", "o3", "PROMPT"},
		},
		{
			name:     "gemini puts the prompt after -p",
			selector: "gemini",
			flags:    "--model pro",
			want:     []string{"--yolo", "--model", "pro", "-p", "PROMPT"},
		},
		{
			name:     "opencode",
			selector: "opencode",
			want:     []string{"run", "PROMPT"},
		},
		{
			name:     "custom executable",
			selector: "./my-agent.sh",
			flags:    "--fast",
			want:     []string{"--fast", "PROMPT"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := ParseAgentCommand(tt.selector, tt.flags)
			require.NoError(t, err)
			assert.Equal(t, tt.selector, cmd.Executable())
			if diff := cmp.Diff(tt.want, cmd.Args("PROMPT")); diff != "" {
				t.Errorf("Args (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAgentCommand_PromptIsOneArgument(t *testing.T) {
	cmd, err := ParseAgentCommand("claude", "")
	require.NoError(t, err)

	prompt := "line one\nline two with \"quotes\" and $VARS"
	args := cmd.Args(prompt)
	assert.Equal(t, prompt, args[len(args)-1])
}

func TestParseAgentCommand(t *testing.T) {
	cmd, err := ParseAgentCommand(" codex ", "")
	require.NoError(t, err)
	preset, ok := cmd.Preset()
	assert.True(t, ok)
	assert.Equal(t, PresetCodex, preset)

	cmd, err = ParseAgentCommand("aider", "")
	require.NoError(t, err)
	_, ok = cmd.Preset()
	assert.False(t, ok)

	_, err = ParseAgentCommand("  ", "")
	assert.Error(t, err)
}

func TestAgentCommand_String(t *testing.T) {
	cmd, err := ParseAgentCommand("gemini", "--model pro")
	require.NoError(t, err)
	assert.Equal(t, "gemini --yolo --model pro -p <prompt>", cmd.String())
}
