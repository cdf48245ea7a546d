// Package main provides the forgeloop command, which drives a coding agent
// CLI in a loop until the implementation plan is marked complete.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/sethvargo/go-envconfig"

	"github.com/entrhq/forgeloop/pkg/executor/loop"
	"github.com/entrhq/forgeloop/pkg/logging"
	"github.com/entrhq/forgeloop/pkg/notify"
)

const (
	version = "0.1.0"

	// defaultConfigName is picked up from the workspace when no config file is given
	defaultConfigName = ".forgeloop.yaml"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigFile    string
	Workspace     string
	MaxIterations int
	ShowVersion   bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, nil)
	stop()
	os.Exit(code)
}

// run is main without the process boundary. A nil lookuper reads the
// process environment.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, lookuper envconfig.Lookuper) int {
	cli, err := parseFlags(args, stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(stderr, "forgeloop: %v\n", err)
		}
		return 1
	}

	if cli.ShowVersion {
		fmt.Fprintf(stdout, "forgeloop v%s\n", version)
		return 0
	}

	config, err := loadConfig(ctx, cli, lookuper)
	if err != nil {
		fmt.Fprintf(stderr, "forgeloop: %v\n", err)
		return 1
	}

	console := loop.NewLogger(loop.ParseLogLevel(config.Logging.Verbosity), stdout)

	runID := logging.NewRunID()
	runLog, err := logging.NewLogger(config.WorkspaceDir, runID)
	if err != nil {
		console.Warningf("run log unavailable, using stderr: %v", err)
	}
	defer runLog.Close()

	driver, err := loop.NewDriver(config,
		loop.WithRunID(runID),
		loop.WithRunLog(runLog),
		loop.WithConsole(console),
		loop.WithNotifier(notify.New(config.Notify.URL, config.Notify.Token, runLog)),
	)
	if err != nil {
		fmt.Fprintf(stderr, "forgeloop: %v\n", err)
		return 1
	}

	outcome, err := driver.Run(ctx)
	if err != nil {
		runLog.Errorf("run failed: %v", err)
	}
	return outcome.ExitCode()
}

// parseFlags parses command line flags and the optional max_iterations argument
func parseFlags(args []string, stderr io.Writer) (*CLIConfig, error) {
	config := &CLIConfig{}

	fs := flag.NewFlagSet("forgeloop", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&config.ConfigFile, "config", "", "Path to configuration file (YAML)")
	fs.StringVar(&config.Workspace, "workspace", "", "Workspace directory (default \".\")")
	fs.BoolVar(&config.ShowVersion, "version", false, "Show version and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "forgeloop - run a coding agent until the plan is complete\n\n")
		fmt.Fprintf(stderr, "Usage: forgeloop [options] [max_iterations]\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nEnvironment:\n")
		fmt.Fprintf(stderr, "  FORGELOOP_AGENT         claude, codex, gemini, opencode or an executable (default claude)\n")
		fmt.Fprintf(stderr, "  FORGELOOP_FLAGS         extra flags passed to the agent\n")
		fmt.Fprintf(stderr, "  FORGELOOP_VERIFY_CMD    shell command run after each successful round\n")
		fmt.Fprintf(stderr, "  FORGELOOP_NOTIFY_URL    webhook for DONE/ERROR/BLOCKED/PLANNING messages\n")
		fmt.Fprintf(stderr, "  FORGELOOP_NOTIFY_TOKEN  bearer token for the webhook\n")
		fmt.Fprintf(stderr, "  FORGELOOP_VERBOSITY     quiet, normal, verbose or debug\n")
		fmt.Fprintf(stderr, "  FORGELOOP_CONFIG        configuration file\n")
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  # Up to 20 rounds with claude\n")
		fmt.Fprintf(stderr, "  forgeloop\n\n")
		fmt.Fprintf(stderr, "  # Five rounds with codex\n")
		fmt.Fprintf(stderr, "  FORGELOOP_AGENT=codex forgeloop 5\n\n")
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch fs.NArg() {
	case 0:
	case 1:
		n, err := strconv.Atoi(fs.Arg(0))
		if err != nil || n < 1 {
			fs.Usage()
			return nil, fmt.Errorf("max_iterations must be a positive integer, got %q", fs.Arg(0))
		}
		config.MaxIterations = n
	default:
		fs.Usage()
		return nil, fmt.Errorf("too many arguments")
	}

	return config, nil
}

// loadConfig layers defaults, the YAML file, the environment and the command line
func loadConfig(ctx context.Context, cli *CLIConfig, lookuper envconfig.Lookuper) (*loop.Config, error) {
	env, err := loop.LoadEnv(ctx, lookuper)
	if err != nil {
		return nil, err
	}

	workspace := cli.Workspace
	if workspace == "" {
		workspace = "."
	}

	path := cli.ConfigFile
	if path == "" {
		path = env.ConfigFile
	}
	if path == "" {
		candidate := filepath.Join(workspace, defaultConfigName)
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}

	config := loop.DefaultConfig()
	if path != "" {
		config, err = loop.LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
	}

	env.Apply(config)

	if cli.Workspace != "" || config.WorkspaceDir == "" {
		config.WorkspaceDir = workspace
	}
	if cli.MaxIterations > 0 {
		config.MaxIterations = cli.MaxIterations
	}

	abs, err := filepath.Abs(config.WorkspaceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace: %w", err)
	}
	config.WorkspaceDir = abs

	return config, nil
}
