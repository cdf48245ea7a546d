package loop

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/entrhq/forgeloop/pkg/logging"
	"github.com/entrhq/forgeloop/pkg/notify"
)

// Outcome is the terminal state of a run
type Outcome int

const (
	// OutcomeAborted means the run stopped on an error or cancellation
	OutcomeAborted Outcome = iota
	// OutcomeBootstrapped means the prompt was missing and the default template was written
	OutcomeBootstrapped
	// OutcomePlanComplete means the plan file carries the planning marker
	OutcomePlanComplete
	// OutcomeBuildComplete means the plan file carries the build marker
	OutcomeBuildComplete
	// OutcomeExhausted means every iteration ran without a marker appearing
	OutcomeExhausted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeBootstrapped:
		return "bootstrapped"
	case OutcomePlanComplete:
		return "plan_complete"
	case OutcomeBuildComplete:
		return "build_complete"
	case OutcomeExhausted:
		return "exhausted"
	default:
		return "aborted"
	}
}

// ExitCode maps the outcome to the process exit status
func (o Outcome) ExitCode() int {
	switch o {
	case OutcomeBootstrapped, OutcomePlanComplete, OutcomeBuildComplete:
		return 0
	default:
		return 1
	}
}

// PreconditionError is returned when the driver cannot start
type PreconditionError struct {
	Check string
	Err   error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition %s failed: %v", e.Check, e.Err)
}

// Unwrap returns the underlying error
func (e *PreconditionError) Unwrap() error {
	return e.Err
}

// Driver runs the agent in bounded rounds until the plan file says it is done
type Driver struct {
	config   *Config
	agent    AgentCommand
	runner   Runner
	notifier notify.Notifier
	runLog   *logging.Logger
	console  *Logger
	verifier *CommandVerifier
	lookPath func(string) (string, error)
	sleep    func(context.Context, time.Duration) error
	runID    string

	git     *GitManager
	summary *RunSummary
}

// Option configures a Driver
type Option func(*Driver)

// WithRunner replaces the subprocess runner
func WithRunner(r Runner) Option {
	return func(d *Driver) { d.runner = r }
}

// WithNotifier sets where escalation messages go
func WithNotifier(n notify.Notifier) Option {
	return func(d *Driver) { d.notifier = n }
}

// WithRunLog uses an already opened run log; the caller closes it
func WithRunLog(l *logging.Logger) Option {
	return func(d *Driver) { d.runLog = l }
}

// WithConsole sets the console logger
func WithConsole(l *Logger) Option {
	return func(d *Driver) { d.console = l }
}

// WithLookPath replaces exec.LookPath for the agent precondition
func WithLookPath(f func(string) (string, error)) Option {
	return func(d *Driver) { d.lookPath = f }
}

// WithSleep replaces the context-aware pause between rounds
func WithSleep(f func(context.Context, time.Duration) error) Option {
	return func(d *Driver) { d.sleep = f }
}

// WithRunID sets the run identifier used in logs and summaries
func WithRunID(id string) Option {
	return func(d *Driver) { d.runID = id }
}

// NewDriver validates config, resolves the agent command and applies options
func NewDriver(config *Config, opts ...Option) (*Driver, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	agent, err := ParseAgentCommand(config.Agent, config.Flags)
	if err != nil {
		return nil, err
	}

	d := &Driver{
		config:   config,
		agent:    agent,
		runner:   ExecRunner{},
		notifier: notify.Nop{},
		lookPath: exec.LookPath,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.console == nil {
		d.console = NewLogger(ParseLogLevel(config.Logging.Verbosity), nil)
	}
	if d.runID == "" {
		d.runID = logging.NewRunID()
	}
	d.verifier = NewCommandVerifier(config.VerifyCommand, d.runner)

	return d, nil
}

// Run checks preconditions and drives the loop to a terminal outcome.
// Preconditions and cancellation return OutcomeAborted with an error;
// every other outcome returns a nil error.
func (d *Driver) Run(ctx context.Context) (Outcome, error) {
	if d.runLog == nil {
		runLog, err := logging.NewLogger(d.config.WorkspaceDir, d.runID)
		if err != nil {
			d.console.Warningf("run log unavailable, using stderr: %v", err)
		}
		d.runLog = runLog
		defer runLog.Close()
	}

	d.summary = &RunSummary{
		RunID:         d.runID,
		Outcome:       "running",
		Agent:         d.agent.String(),
		MaxIterations: d.config.MaxIterations,
		StartTime:     time.Now(),
		Rounds:        make([]IterationRecord, 0, d.config.MaxIterations),
	}

	d.console.Header(fmt.Sprintf("forgeloop run %s", d.runID))
	d.console.Infof("Agent: %s", d.agent)
	d.console.Infof("Max iterations: %d", d.config.MaxIterations)
	if d.verifier != nil {
		d.console.Infof("Verify: %s", d.verifier.Command())
	}
	d.runLog.Infof("run started: agent=%q max_iterations=%d workspace=%s", d.agent.String(), d.config.MaxIterations, d.config.WorkspaceDir)

	bootstrapped, err := d.prepare()
	if err != nil {
		d.runLog.Errorf("%v", err)
		d.console.Errorf("%v", err)
		return OutcomeAborted, err
	}
	if bootstrapped {
		d.runLog.Infof("created %s from the default template", d.promptPath())
		d.console.Successf("Created %s from the default template. Edit it, then run forgeloop again.", d.promptPath())
		return OutcomeBootstrapped, nil
	}

	outcome, err := d.loop(ctx)
	d.finish(outcome, err)
	return outcome, err
}

// prepare runs the startup checks in order: git working tree, agent
// executable, prompt file, plan file. It reports whether the prompt had to
// be bootstrapped, in which case no iteration should run.
func (d *Driver) prepare() (bool, error) {
	gm, err := OpenGitManager(d.config.WorkspaceDir, d.config.Git)
	if err != nil {
		return false, &PreconditionError{Check: "git", Err: err}
	}
	d.git = gm

	if _, err := d.lookPath(d.agent.Executable()); err != nil {
		return false, &PreconditionError{
			Check: "agent",
			Err:   fmt.Errorf("agent command %q not found: %w", d.agent.Executable(), err),
		}
	}

	created, err := EnsurePrompt(d.promptPath())
	if err != nil {
		return false, &PreconditionError{Check: "prompt", Err: err}
	}
	if created {
		return true, nil
	}

	created, err = EnsurePlanFile(d.planPath())
	if err != nil {
		return false, &PreconditionError{Check: "plan", Err: fmt.Errorf("failed to create plan file: %w", err)}
	}
	if created {
		d.runLog.Infof("created empty plan file %s", d.planPath())
	}

	if branch, err := gm.CurrentBranch(); err == nil {
		d.summary.Branch = branch
		d.console.Verbosef("Branch: %s", branch)
	}

	return false, nil
}

func (d *Driver) loop(ctx context.Context) (Outcome, error) {
	limit := d.config.MaxIterations

	for i := 1; i <= limit; i++ {
		if err := ctx.Err(); err != nil {
			return OutcomeAborted, fmt.Errorf("run canceled: %w", err)
		}

		status, delay, err := d.runIteration(ctx, i)
		if err != nil {
			return OutcomeAborted, err
		}

		switch status {
		case PlanBuildComplete:
			d.runLog.Successf("build complete after %d iteration(s)", i)
			d.console.Successf("Build complete after %d iteration(s)", i)
			d.notifier.Notify(ctx, notify.Newf(notify.PrefixDone, "build complete after %d iteration(s)", i))
			return OutcomeBuildComplete, nil
		case PlanPlanningComplete:
			d.runLog.Successf("planning complete after %d iteration(s)", i)
			d.console.Successf("Planning complete after %d iteration(s); switch to build mode", i)
			d.notifier.Notify(ctx, notify.Newf(notify.PrefixPlanning, "planning complete after %d iteration(s); ready to build", i))
			return OutcomePlanComplete, nil
		}

		if i < limit {
			if err := d.sleep(ctx, delay); err != nil {
				return OutcomeAborted, fmt.Errorf("run canceled: %w", err)
			}
		}
	}

	d.runLog.Errorf("no completion marker after %d iterations", limit)
	d.console.Errorf("No completion marker after %d iterations", limit)
	d.notifier.Notify(ctx, notify.Newf(notify.PrefixBlocked, "no completion marker after %d iterations; needs attention", limit))
	return OutcomeExhausted, nil
}

// runIteration performs one round and returns the plan status together with
// the pause to take before the next round.
func (d *Driver) runIteration(ctx context.Context, i int) (PlanStatus, time.Duration, error) {
	limit := d.config.MaxIterations
	started := time.Now()
	record := IterationRecord{Iteration: i}
	defer func() {
		record.Duration = time.Since(started)
		d.summary.Rounds = append(d.summary.Rounds, record)
	}()
	d.summary.Iterations = i

	d.console.Iteration(i, limit)
	d.runLog.Infof("iteration %d/%d: starting", i, limit)

	headBefore, headErr := d.git.HeadCommit()
	if headErr != nil {
		d.console.Debugf("cannot read HEAD: %v", headErr)
	}

	code, err := d.invoke(ctx, i)
	record.ExitCode = code
	if err != nil {
		return PlanInProgress, 0, err
	}

	if code != 0 {
		d.summary.AgentFailures++
		d.runLog.Warnf("iteration %d: agent exited with code %d", i, code)
		d.console.Warningf("Agent exited with code %d (iteration %d/%d)", code, i, limit)
		d.notifier.Notify(ctx, notify.Newf(notify.PrefixError, "iteration %d/%d: agent exited with code %d", i, limit, code))
		return PlanInProgress, d.config.Delays.AfterFailure, nil
	}
	d.runLog.Successf("iteration %d: agent exited cleanly", i)

	d.verify(ctx, i, &record)
	if headErr == nil {
		d.reportChanges(i, headBefore, &record)
	}

	status, err := ScanPlan(d.planPath())
	if err != nil {
		d.runLog.Warnf("iteration %d: %v", i, err)
		d.console.Warningf("%v", err)
	}
	record.PlanStatus = status.String()
	d.runLog.Infof("iteration %d: plan status %s", i, status)

	return status, d.config.Delays.AfterRound, nil
}

// invoke reads the prompt and runs the agent once. An unreadable prompt or an
// agent that cannot be started yields exit code -1 so the round is retried;
// only cancellation is returned as an error.
func (d *Driver) invoke(ctx context.Context, i int) (int, error) {
	prompt, err := ReadPrompt(d.promptPath())
	if err != nil {
		d.runLog.Errorf("iteration %d: %v", i, err)
		d.console.Errorf("%v", err)
		return -1, nil
	}

	output := io.MultiWriter(d.runLog.Writer(), d.console.Output())
	code, err := d.runner.Run(ctx, d.agent.Executable(), d.agent.Args(prompt), RunOptions{
		Dir:    d.config.WorkspaceDir,
		Output: output,
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return -1, fmt.Errorf("run canceled: %w", ctxErr)
	}
	if err != nil {
		d.runLog.Errorf("iteration %d: agent did not start: %v", i, err)
		return -1, nil
	}
	return code, nil
}

// verify runs the optional verification command. The result is recorded
// and logged but never changes what the loop does next.
func (d *Driver) verify(ctx context.Context, i int, record *IterationRecord) {
	if d.verifier == nil {
		return
	}

	err := d.verifier.Execute(ctx, d.config.WorkspaceDir, io.MultiWriter(d.runLog.Writer(), d.console.Output()))
	passed := err == nil
	record.Verified = &passed

	if passed {
		d.runLog.Successf("iteration %d: verification passed: %s", i, d.verifier.Command())
		d.console.Verification(d.verifier.Command(), true, "")
		return
	}

	d.summary.VerificationFailures++
	d.runLog.Warnf("iteration %d: %v", i, err)
	d.console.Verification(d.verifier.Command(), false, err.Error())
}

// reportChanges logs the commits the agent made during the round
func (d *Driver) reportChanges(i int, headBefore string, record *IterationRecord) {
	commits, err := d.git.CommitsSince(headBefore)
	if err != nil {
		d.runLog.Warnf("iteration %d: cannot list commits: %v", i, err)
		return
	}
	if len(commits) == 0 {
		d.runLog.Infof("iteration %d: no new commits", i)
		return
	}

	for _, c := range commits {
		d.runLog.Infof("iteration %d: commit %s %s", i, shortHash(c.Hash), c.Subject)
		d.console.Commit(c)
	}
	d.summary.Commits = append(d.summary.Commits, commits...)

	files, err := d.git.ChangedFiles(headBefore)
	if err != nil {
		d.runLog.Warnf("iteration %d: cannot list changed files: %v", i, err)
		return
	}
	record.ChangedFiles = files
	if len(files) > 0 {
		d.runLog.Infof("iteration %d: changed %s", i, strings.Join(files, ", "))
		d.console.Verbosef("Changed: %s", strings.Join(files, ", "))
	}
}

func (d *Driver) finish(outcome Outcome, runErr error) {
	d.summary.EndTime = time.Now()
	d.summary.Duration = d.summary.EndTime.Sub(d.summary.StartTime)
	d.summary.Outcome = outcome.String()
	if runErr != nil {
		d.summary.Error = runErr.Error()
	}

	writer := NewSummaryWriter(filepath.Join(d.config.WorkspaceDir, logging.DirName), d.config.Summary)
	if err := writer.WriteAll(d.summary); err != nil {
		d.runLog.Warnf("failed to write run summary: %v", err)
	}

	d.runLog.Infof("run finished: outcome=%s iterations=%d/%d", outcome, d.summary.Iterations, d.config.MaxIterations)
	d.console.Summary(d.summary)
}

// Summary returns the summary of the last Run
func (d *Driver) Summary() *RunSummary {
	return d.summary
}

func (d *Driver) promptPath() string {
	return d.resolve(d.config.PromptFile)
}

func (d *Driver) planPath() string {
	return d.resolve(d.config.PlanFile)
}

func (d *Driver) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(d.config.WorkspaceDir, name)
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
