// Package notify delivers best-effort escalation messages to an external
// gateway. Delivery failures never reach the caller: a Notifier has no error
// return, and implementations contain their own network handling.
package notify

import (
	"context"
	"fmt"
	"strings"
)

// Prefix is the first token of every message and tells the receiver what
// kind of attention the message needs.
type Prefix string

const (
	PrefixDecision Prefix = "DECISION"
	PrefixError    Prefix = "ERROR"
	PrefixBlocked  Prefix = "BLOCKED"
	PrefixProgress Prefix = "PROGRESS"
	PrefixDone     Prefix = "DONE"
	PrefixPlanning Prefix = "PLANNING"
	PrefixQuestion Prefix = "QUESTION"
)

// Prefixes lists the full vocabulary in a stable order.
var Prefixes = []Prefix{
	PrefixDecision,
	PrefixError,
	PrefixBlocked,
	PrefixProgress,
	PrefixDone,
	PrefixPlanning,
	PrefixQuestion,
}

// ParsePrefix accepts a prefix in any case, with or without a trailing colon.
func ParsePrefix(s string) (Prefix, error) {
	p := Prefix(strings.ToUpper(strings.TrimSuffix(strings.TrimSpace(s), ":")))
	for _, known := range Prefixes {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown prefix %q (must be one of %s)", s, PrefixList())
}

// PrefixList renders the vocabulary as a comma-separated list.
func PrefixList() string {
	names := make([]string, len(Prefixes))
	for i, p := range Prefixes {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}

// Message is a single notification.
type Message struct {
	Prefix Prefix
	Text   string
}

// Newf builds a message with a formatted body.
func Newf(prefix Prefix, format string, args ...interface{}) Message {
	return Message{Prefix: prefix, Text: fmt.Sprintf(format, args...)}
}

// String renders the message as "<PREFIX>: <text>".
func (m Message) String() string {
	if m.Text == "" {
		return string(m.Prefix)
	}
	return fmt.Sprintf("%s: %s", m.Prefix, m.Text)
}

// Notifier sends messages. Notify must not block indefinitely and must not
// panic; it has no way to report failure.
type Notifier interface {
	Notify(ctx context.Context, msg Message)
}

// Nop discards every message. It is used when no gateway is configured.
type Nop struct{}

// Notify does nothing
func (Nop) Notify(context.Context, Message) {}

// Func adapts a plain function to the Notifier interface.
type Func func(ctx context.Context, msg Message)

// Notify calls f
func (f Func) Notify(ctx context.Context, msg Message) {
	f(ctx, msg)
}
