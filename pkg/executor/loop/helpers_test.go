package loop

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/entrhq/forgeloop/pkg/notify"
)

// initRepo creates a git working tree with one commit and returns its path
func initRepo(t *testing.T) (string, *gogit.Repository) {
	t.Helper()

	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	commitFile(t, dir, repo, "README.md", "# Test", "Initial commit")
	return dir, repo
}

// commitFile writes name, stages it and commits it. It returns the new hash.
func commitFile(t *testing.T, dir string, repo *gogit.Repository, name, content, message string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add(name); err != nil {
		t.Fatal(err)
	}
	hash, err := wt.Commit(message, &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  "Test User",
			Email: "test@example.com",
			When:  time.Now(),
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return hash.String()
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// agentCall is one recorded agent invocation
type agentCall struct {
	Name string
	Args []string
	Dir  string
}

// fakeRunner stands in for the agent and the verification shell.
// Calls to "sh -c" go to verify; everything else is an agent call.
type fakeRunner struct {
	mu     sync.Mutex
	calls  []agentCall
	agent  func(n int, opts RunOptions) (int, error)
	verify func(command string) int

	verifyCalls []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args []string, opts RunOptions) (int, error) {
	f.mu.Lock()
	if name == "sh" && len(args) == 2 && args[0] == "-c" {
		f.verifyCalls = append(f.verifyCalls, args[1])
		f.mu.Unlock()
		if f.verify == nil {
			return 0, nil
		}
		return f.verify(args[1]), nil
	}
	f.calls = append(f.calls, agentCall{Name: name, Args: args, Dir: opts.Dir})
	n := len(f.calls)
	f.mu.Unlock()

	if opts.Output != nil {
		fmt.Fprintf(opts.Output, "agent output %d\n", n)
	}
	if f.agent == nil {
		return 0, nil
	}
	return f.agent(n, opts)
}

func (f *fakeRunner) agentCalls() []agentCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]agentCall(nil), f.calls...)
}

// recorder collects notifications in order
type recorder struct {
	mu       sync.Mutex
	messages []notify.Message
}

func (r *recorder) notifier() notify.Notifier {
	return notify.Func(func(_ context.Context, m notify.Message) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.messages = append(r.messages, m)
	})
}

func (r *recorder) prefixes() []notify.Prefix {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Prefix, 0, len(r.messages))
	for _, m := range r.messages {
		out = append(out, m.Prefix)
	}
	return out
}

func (r *recorder) count(p notify.Prefix) int {
	n := 0
	for _, got := range r.prefixes() {
		if got == p {
			n++
		}
	}
	return n
}

func foundOnPath(string) (string, error) { return "/usr/bin/fake-agent", nil }

func noSleep(context.Context, time.Duration) error { return nil }
