// Package loop implements the forgeloop driver: it runs an external coding
// agent CLI against a git workspace in bounded rounds until the agent marks
// the implementation plan as finished.
//
// Each round the driver re-reads the prompt file, hands it to the agent as a
// single argument, waits for the process to exit and then scans the plan
// file for a completion marker:
//
//	STATUS: COMPLETE            build finished, DONE notification, exit 0
//	STATUS: PLANNING_COMPLETE   plan ready, PLANNING notification, exit 0
//
// When both markers are present the build marker wins. A non-zero agent exit
// sends an ERROR notification and the round is retried after a pause. If no
// marker shows up within the iteration limit the driver sends BLOCKED and the
// run ends as exhausted.
//
// Example usage:
//
//	config := loop.DefaultConfig()
//	config.Agent = "codex"
//	config.MaxIterations = 10
//
//	driver, err := loop.NewDriver(config, loop.WithNotifier(notifier))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	outcome, err := driver.Run(ctx)
//	os.Exit(outcome.ExitCode())
//
// Preconditions:
//
// Before the first round the driver checks, in order, that the workspace is a
// git working tree, that the agent executable is on PATH, that the prompt
// file exists (a default template is written and the run stops otherwise) and
// that the plan file exists (an empty one is created).
//
// Verification:
//
// An optional shell command runs after every clean agent exit. Its result is
// logged and recorded in the run summary but never changes the control flow.
//
// Logging:
//
// Agent output and driver events are appended to .forgeloop/logs/forgeloop.log
// in the workspace. Earlier lines are never rewritten. A JSON and markdown
// summary of every finished run is written next to the log.
package loop
