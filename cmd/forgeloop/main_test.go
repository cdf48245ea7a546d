package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/forgeloop/pkg/executor/loop"
)

func setupWorkspace(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# Test"), 0o644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("README.md")
	require.NoError(t, err)
	_, err = wt.Commit("Initial commit", &gogit.CommitOptions{
		Author: &object.Signature{Name: "Test User", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return dir
}

func env(values map[string]string) envconfig.Lookuper {
	return envconfig.MapLookuper(values)
}

func TestRun_Help(t *testing.T) {
	for _, arg := range []string{"-h", "--help"} {
		t.Run(arg, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(context.Background(), []string{arg}, &stdout, &stderr, env(nil))
			assert.Equal(t, 1, code)
			assert.Contains(t, stderr.String(), "Usage: forgeloop")
		})
	}
}

func TestRun_InvalidMaxIterations(t *testing.T) {
	for _, arg := range []string{"0", "-3", "ten", "1.5"} {
		t.Run(arg, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(context.Background(), []string{"--", arg}, &stdout, &stderr, env(nil))
			assert.Equal(t, 1, code)
			assert.Contains(t, stderr.String(), "max_iterations")
		})
	}
}

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-version"}, &stdout, &stderr, env(nil))
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), version)
}

func TestRun_Bootstrap(t *testing.T) {
	dir := setupWorkspace(t)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-workspace", dir}, &stdout, &stderr, env(map[string]string{
		"FORGELOOP_AGENT": "sh",
	}))
	assert.Equal(t, 0, code)

	data, err := os.ReadFile(filepath.Join(dir, "PROMPT.md"))
	require.NoError(t, err)
	assert.Equal(t, loop.DefaultPromptTemplate, string(data))
}

func TestRun_NotAGitRepository(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-workspace", t.TempDir()}, &stdout, &stderr, env(map[string]string{
		"FORGELOOP_AGENT": "sh",
	}))
	assert.Equal(t, 1, code)
}

func TestRun_AgentNotFound(t *testing.T) {
	dir := setupWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "PROMPT.md"), []byte("work"), 0o644))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-workspace", dir}, &stdout, &stderr, env(map[string]string{
		"FORGELOOP_AGENT": "forgeloop-no-such-agent",
	}))
	assert.Equal(t, 1, code)
}

func TestRun_BuildComplete(t *testing.T) {
	dir := setupWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "PROMPT.md"), []byte("work"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "IMPLEMENTATION_PLAN.md"), []byte("STATUS: COMPLETE\n"), 0o644))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-workspace", dir, "3"}, &stdout, &stderr, env(map[string]string{
		"FORGELOOP_AGENT": "true",
	}))
	assert.Equal(t, 0, code)
	assert.FileExists(t, filepath.Join(dir, ".forgeloop", "logs", "forgeloop.log"))
}

func TestRun_Exhausted(t *testing.T) {
	dir := setupWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "PROMPT.md"), []byte("work"), 0o644))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-workspace", dir, "1"}, &stdout, &stderr, env(map[string]string{
		"FORGELOOP_AGENT": "false",
	}))
	assert.Equal(t, 1, code)
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".forgeloop.yaml"), []byte(`
max_iterations: 9
agent: codex
verify_command: make test
`), 0o644))

	config, err := loadConfig(context.Background(), &CLIConfig{Workspace: dir}, env(nil))
	require.NoError(t, err)
	assert.Equal(t, 9, config.MaxIterations)
	assert.Equal(t, "codex", config.Agent)
	assert.Equal(t, dir, config.WorkspaceDir)

	config, err = loadConfig(context.Background(), &CLIConfig{Workspace: dir, MaxIterations: 4}, env(map[string]string{
		"FORGELOOP_AGENT": "gemini",
	}))
	require.NoError(t, err)
	assert.Equal(t, 4, config.MaxIterations, "positional argument wins")
	assert.Equal(t, "gemini", config.Agent, "environment beats the file")
	assert.Equal(t, "make test", config.VerifyCommand, "file beats defaults")
}

func TestLoadConfig_ExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agent: opencode\n"), 0o644))

	config, err := loadConfig(context.Background(), &CLIConfig{}, env(map[string]string{
		"FORGELOOP_CONFIG": path,
	}))
	require.NoError(t, err)
	assert.Equal(t, "opencode", config.Agent)
	assert.Equal(t, 20, config.MaxIterations)
	assert.True(t, filepath.IsAbs(config.WorkspaceDir))

	_, err = loadConfig(context.Background(), &CLIConfig{ConfigFile: filepath.Join(t.TempDir(), "missing.yaml")}, env(nil))
	assert.Error(t, err)
}
