package loop

import (
	"fmt"
	"os"
)

// DefaultPromptTemplate is written when the workspace has no prompt file.
const DefaultPromptTemplate = `# Task

Describe what should be built in this repository.

# Working Rules

1.  Read IMPLEMENTATION_PLAN.md before doing anything else. Pick the single
    most important unfinished item and work on that item only.
2.  Keep the plan current: mark items done, add items you discover, and note
    anything that blocked you.
3.  Run the project's tests before committing. Commit each finished item with
    a descriptive message.
4.  Escalate to a human with forgeloop-notify when you need one:
    -   forgeloop-notify DECISION "<choice you made and why>"
    -   forgeloop-notify QUESTION "<what you need answered>"
    -   forgeloop-notify PROGRESS "<milestone reached>"

# Completion

-   When planning is finished and the plan is ready to build, add the line
    STATUS: PLANNING_COMPLETE to IMPLEMENTATION_PLAN.md.
-   When every item in the plan is implemented and tested, add the line
    STATUS: COMPLETE to IMPLEMENTATION_PLAN.md.
`

// EnsurePrompt writes DefaultPromptTemplate to path if it does not exist.
// It reports whether the file was created.
func EnsurePrompt(path string) (bool, error) {
	created, err := createExclusive(path, []byte(DefaultPromptTemplate))
	if err != nil {
		return created, fmt.Errorf("failed to create prompt file: %w", err)
	}
	return created, nil
}

// ReadPrompt returns the current prompt content
func ReadPrompt(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt file: %w", err)
	}
	return string(data), nil
}
