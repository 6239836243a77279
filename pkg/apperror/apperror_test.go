package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapPreservesCauseForUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(KindToolTransient, cause, "running flux")

	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to reach the wrapped cause")
	}
	if got := err.Error(); got != "tool_transient: running flux: boom" {
		t.Fatalf("unexpected Error() string: %q", got)
	}
}

func TestWrapfFormatsMessage(t *testing.T) {
	err := Wrapf(KindConfigParse, errors.New("eof"), "parsing %s", "deploy.yaml")
	if err.Message != "parsing deploy.yaml" {
		t.Fatalf("expected formatted message, got %q", err.Message)
	}
}

func TestIsMatchesOnKindNotMessage(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", New(KindGateFailed, "gates failed for api"))

	if !errors.Is(err, New(KindGateFailed, "unrelated message")) {
		t.Fatalf("expected errors.Is to match same Kind regardless of message")
	}
	if errors.Is(err, New(KindMigrationFailed, "gates failed for api")) {
		t.Fatalf("expected errors.Is to reject a different Kind")
	}
}

func TestKindOfWalksWrappedChain(t *testing.T) {
	inner := New(KindRolloutTerminal, "pod crashlooping")
	wrapped := fmt.Errorf("verifying rollout: %w", inner)

	if got := KindOf(wrapped); got != KindRolloutTerminal {
		t.Fatalf("expected KindRolloutTerminal, got %s", got)
	}
}

func TestKindOfDefaultsToOperationalFailureForPlainErrors(t *testing.T) {
	if got := KindOf(errors.New("not ours")); got != KindOperationalFailure {
		t.Fatalf("expected KindOperationalFailure for an untyped error, got %s", got)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil error", nil, 0},
		{"config invalid", New(KindConfigInvalid, "bad product name"), 2},
		{"config parse", New(KindConfigParse, "bad yaml"), 2},
		{"repo not found", New(KindRepoNotFound, "no .git ancestor"), 2},
		{"gate failed", New(KindGateFailed, "gates failed"), 1},
		{"untyped error", errors.New("boom"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Fatalf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWithDetailsAppendsInPlace(t *testing.T) {
	err := New(KindManifestInvalid, "bad image block").WithDetails("line 12", "line 13")
	err.WithDetailsf("container %s missing", "api")

	if len(err.Details) != 3 {
		t.Fatalf("expected 3 detail lines, got %d: %v", len(err.Details), err.Details)
	}
	if err.Details[2] != "container api missing" {
		t.Fatalf("unexpected formatted detail: %q", err.Details[2])
	}
}
