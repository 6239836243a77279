// Package tool implements the External Tool Adapter (C3): a uniform
// wrapper for invoking subprocesses (git, docker, kubectl, flux, an
// image-copy tool, a schema composer) with retry and classified error
// reporting. Observability follows the teacher's logrus usage
// (the teacher's pkg/kubernetes/argorollouts.go imports github.com/sirupsen/logrus for
// the same register: structured, leveled, one line per operation).
package tool

import (
	"bytes"
	"context"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/pleme-io/releaseforge/pkg/apperror"
	log "github.com/sirupsen/logrus"
)

// Result is what a subprocess invocation produced.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// RetryPolicy is the opt-in retry value each call site supplies (design
// note: "the retry wrapper is a reusable utility ... each call site opts
// in with a retry policy value"). Default is zero value == no retry.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// RetrySafe is the policy for tools flagged retry-safe in spec.md §4.3:
// cache push, registry push, remote-ssh build. 5 attempts, 2s doubling to
// 32s.
var RetrySafe = RetryPolicy{MaxAttempts: 5, BaseDelay: 2 * time.Second, MaxDelay: 32 * time.Second}

var transientPattern = regexp.MustCompile(`(?i)(5\d\d|connection refused|timeout|timed out|temporary failure|EOF)`)

// redactPattern matches the credential-shaped substrings a command line
// might carry so logs never leak them.
var redactPattern = regexp.MustCompile(`(?i)(token|password|secret|bearer)[=: ]\S+`)

// Invocation describes one subprocess call.
type Invocation struct {
	Tool    string
	Args    []string
	Env     []string
	Dir     string
	Stdin   string
	Timeout time.Duration
	Retry   RetryPolicy
	SafeMode bool // when false, disables retries regardless of Retry; set by each call site
}

// Adapter runs subprocesses on behalf of every other component.
type Adapter struct{}

// NewAdapter returns an Adapter. It carries no state: every invocation is
// independent, matching the "no long-lived shared mutable state between
// components" design note.
func NewAdapter() *Adapter {
	return &Adapter{}
}

// Run executes inv, retrying per inv.Retry when the failure looks
// transient and SafeMode allows it.
func (a *Adapter) Run(ctx context.Context, inv Invocation) (Result, error) {
	if _, err := exec.LookPath(inv.Tool); err != nil {
		return Result{}, apperror.Wrapf(apperror.KindToolMissing, err, "%s not found on PATH; install it and retry", inv.Tool)
	}

	attempts := 1
	backoff := (*Backoff)(nil)
	if inv.SafeMode && inv.Retry.MaxAttempts > 1 {
		attempts = inv.Retry.MaxAttempts
		backoff = NewBackoff(inv.Retry.BaseDelay, inv.Retry.MaxDelay)
	}

	var lastErr error
	var lastResult Result
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := a.runOnce(ctx, inv)
		lastResult, lastErr = result, err
		if err == nil {
			return result, nil
		}
		if apperror.KindOf(err) == apperror.KindToolTransient && attempt < attempts {
			log.WithFields(log.Fields{"tool": inv.Tool, "attempt": attempt}).
				Warnf("transient failure, retrying: %v", err)
			select {
			case <-ctx.Done():
				return lastResult, ctx.Err()
			case <-time.After(backoff.Next()):
			}
			continue
		}
		return lastResult, err
	}
	return lastResult, lastErr
}

func (a *Adapter) runOnce(ctx context.Context, inv Invocation) (Result, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if inv.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, inv.Tool, inv.Args...)
	cmd.Dir = inv.Dir
	if len(inv.Env) > 0 {
		cmd.Env = inv.Env
	}
	if inv.Stdin != "" {
		cmd.Stdin = strings.NewReader(inv.Stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.WithFields(log.Fields{"tool": inv.Tool}).Infof("running: %s", redact(commandLine(inv)))

	err := cmd.Run()
	result := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	if runCtx.Err() == context.DeadlineExceeded {
		return result, apperror.New(apperror.KindToolPermanent, inv.Tool+" timed out").
			WithDetails(tailLines(result.Stdout, 40), tailLines(result.Stderr, 40)...)
	}
	if err == nil {
		result.ExitCode = 0
		return result, nil
	}

	exitErr, isExit := err.(*exec.ExitError)
	if isExit {
		result.ExitCode = exitErr.ExitCode()
	} else {
		result.ExitCode = -1
	}

	if transientPattern.MatchString(result.Stderr) {
		return result, apperror.Wrapf(apperror.KindToolTransient, err, "%s exited %d (transient)", inv.Tool, result.ExitCode).
			WithDetails(tailLines(result.Stderr, 40)...)
	}
	return result, apperror.Wrapf(apperror.KindToolPermanent, err, "%s exited %d", inv.Tool, result.ExitCode).
		WithDetails(tailLines(result.Stderr, 40)...)
}

func commandLine(inv Invocation) string {
	return inv.Tool + " " + strings.Join(inv.Args, " ")
}

// redact replaces credential-shaped substrings with literal ***, matching
// the observability contract in spec.md §4.3.
func redact(line string) string {
	return redactPattern.ReplaceAllString(line, "***")
}

// tailLines returns at most the last n lines of s, matching the "last 40
// lines" / "last 100 lines" error-context contracts used across C3/C7.
func tailLines(s string, n int) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}
