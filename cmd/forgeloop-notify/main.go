// Package main provides forgeloop-notify, the escalation helper agents call
// from inside a forgeloop run to reach a human.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sethvargo/go-envconfig"

	"github.com/entrhq/forgeloop/pkg/executor/loop"
	"github.com/entrhq/forgeloop/pkg/notify"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stderr, nil))
}

// stderrLogger reports delivery failures without changing the exit code
type stderrLogger struct {
	w io.Writer
}

func (l stderrLogger) Warnf(format string, v ...interface{}) {
	fmt.Fprintf(l.w, "forgeloop-notify: "+format+"\n", v...)
}

func run(ctx context.Context, args []string, stderr io.Writer, lookuper envconfig.Lookuper) int {
	env, err := loop.LoadEnv(ctx, lookuper)
	if err != nil {
		fmt.Fprintf(stderr, "forgeloop-notify: %v\n", err)
		return 1
	}

	var url, token string
	fs := flag.NewFlagSet("forgeloop-notify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&url, "url", env.NotifyURL, "Gateway URL (FORGELOOP_NOTIFY_URL)")
	fs.StringVar(&token, "token", env.NotifyToken, "Bearer token (FORGELOOP_NOTIFY_TOKEN)")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: forgeloop-notify [options] PREFIX message...\n\n")
		fmt.Fprintf(stderr, "Prefixes: %s\n\n", notify.PrefixList())
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExample:\n")
		fmt.Fprintf(stderr, "  forgeloop-notify QUESTION \"Should the cache be per-tenant?\"\n")
	}

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if fs.NArg() < 1 {
		fs.Usage()
		return 1
	}

	prefix, err := notify.ParsePrefix(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "forgeloop-notify: %v\n", err)
		return 1
	}
	if url == "" {
		fmt.Fprintf(stderr, "forgeloop-notify: no gateway URL (set FORGELOOP_NOTIFY_URL or -url)\n")
		return 1
	}

	msg := notify.Message{Prefix: prefix, Text: strings.Join(fs.Args()[1:], " ")}
	notify.NewWebhook(url, notify.WithToken(token), notify.WithLogger(stderrLogger{w: stderr})).Notify(ctx, msg)
	return 0
}
