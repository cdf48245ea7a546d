package loop

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Markers the agent writes into the plan file to end the loop.
const (
	MarkerBuildComplete    = "STATUS: COMPLETE"
	MarkerPlanningComplete = "STATUS: PLANNING_COMPLETE"
)

// PlanStatus is what a scan of the plan file found
type PlanStatus int

const (
	PlanInProgress PlanStatus = iota
	PlanPlanningComplete
	PlanBuildComplete
)

func (s PlanStatus) String() string {
	switch s {
	case PlanPlanningComplete:
		return "planning_complete"
	case PlanBuildComplete:
		return "build_complete"
	default:
		return "in_progress"
	}
}

// ScanPlanContent checks content for the markers by plain substring search.
// When both are present the build marker wins.
func ScanPlanContent(content string) PlanStatus {
	switch {
	case strings.Contains(content, MarkerBuildComplete):
		return PlanBuildComplete
	case strings.Contains(content, MarkerPlanningComplete):
		return PlanPlanningComplete
	default:
		return PlanInProgress
	}
}

// ScanPlan reads and scans the plan file. A missing file is in progress.
func ScanPlan(path string) (PlanStatus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return PlanInProgress, nil
		}
		return PlanInProgress, fmt.Errorf("failed to read plan file: %w", err)
	}
	return ScanPlanContent(string(data)), nil
}

// EnsurePlanFile creates an empty plan file when none exists.
// An existing file is never opened for writing.
func EnsurePlanFile(path string) (bool, error) {
	return createExclusive(path, nil)
}

// createExclusive writes data to path only if path does not exist yet
func createExclusive(path string, data []byte) (bool, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		return false, err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return true, err
	}
	return true, f.Close()
}
