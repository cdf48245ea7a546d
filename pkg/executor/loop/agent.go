package loop

import (
	"fmt"
	"strings"
)

// AgentPreset names one of the built-in agent command shapes.
type AgentPreset string

const (
	PresetClaude   AgentPreset = "claude"
	PresetCodex    AgentPreset = "codex"
	PresetGemini   AgentPreset = "gemini"
	PresetOpenCode AgentPreset = "opencode"
)

// AgentCommand is a resolved agent invocation. It is either a known preset
// or a custom executable; the choice is made once by ParseAgentCommand.
type AgentCommand struct {
	preset AgentPreset // empty for custom executables
	name   string
	flags  []string
}

// ParseAgentCommand resolves an agent selector and a flags string.
// Any selector that is not a preset is used verbatim as the executable.
func ParseAgentCommand(selector, flags string) (AgentCommand, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return AgentCommand{}, fmt.Errorf("agent command is empty")
	}

	cmd := AgentCommand{
		name:  selector,
		flags: strings.Fields(flags),
	}
	switch p := AgentPreset(selector); p {
	case PresetClaude, PresetCodex, PresetGemini, PresetOpenCode:
		cmd.preset = p
	}
	return cmd, nil
}

// Executable returns the program looked up on PATH
func (a AgentCommand) Executable() string {
	return a.name
}

// Preset reports the preset and whether the command is one
func (a AgentCommand) Preset() (AgentPreset, bool) {
	return a.preset, a.preset != ""
}

// Args builds the argument list for one invocation with the given prompt.
func (a AgentCommand) Args(prompt string) []string {
	args := make([]string, 0, len(a.flags)+4)
	switch a.preset {
	case PresetClaude:
		args = append(args, "-p", "--dangerously-skip-permissions")
		args = append(args, a.flags...)
		args = append(args, prompt)
	case PresetCodex:
		args = append(args, "exec", "--full-auto")
		args = append(args, a.flags...)
		args = append(args, prompt)
	case PresetGemini:
		args = append(args, "--yolo")
		args = append(args, a.flags...)
		args = append(args, "-p", prompt)
	case PresetOpenCode:
		args = append(args, "run")
		args = append(args, a.flags...)
		args = append(args, prompt)
	default:
		args = append(args, a.flags...)
		args = append(args, prompt)
	}
	return args
}

// String renders the command with a placeholder in place of the prompt
func (a AgentCommand) String() string {
	return strings.Join(append([]string{a.name}, a.Args("<prompt>")...), " ")
}
