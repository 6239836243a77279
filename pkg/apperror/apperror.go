// Package apperror defines the error taxonomy shared by every release
// orchestrator component. Components return errors wrapped in an *Error so
// the Release Orchestrator, the only component that renders user-facing
// output, can inspect the kind without losing the original message.
package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies an error without naming a concrete Go type, matching the
// taxonomy in the error handling design: config/tool/gate/migration/
// federation/rollout/verify failures each recover differently.
type Kind string

const (
	KindConfigInvalid      Kind = "config_invalid"
	KindConfigParse        Kind = "config_parse"
	KindRepoNotFound       Kind = "repo_not_found"
	KindToolMissing        Kind = "tool_missing"
	KindToolTransient      Kind = "tool_transient"
	KindToolPermanent      Kind = "tool_permanent"
	KindGateFailed         Kind = "gate_failed"
	KindMigrationFailed    Kind = "migration_failed"
	KindFederationFailed   Kind = "federation_failed"
	KindRolloutTerminal    Kind = "rollout_terminal"
	KindPostDeployFailed   Kind = "post_deploy_failed"
	KindManifestInvalid    Kind = "manifest_invalid"
	KindNoActiveEnvs       Kind = "no_active_environments"
	KindOperationalFailure Kind = "operational_failure"
)

// Error is the structured error value every component returns.
type Error struct {
	Kind    Kind
	Message string
	Details []string
	Cause   error
}

// New creates an Error with no cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches kind and message to an existing error, preserving it as
// Cause so errors.Unwrap/errors.Is still reach the root cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// WithDetails appends detail lines in place and returns the same pointer so
// call sites can chain: apperror.New(...).WithDetails(lines...).
func (e *Error) WithDetails(lines ...string) *Error {
	e.Details = append(e.Details, lines...)
	return e
}

// WithDetailsf appends one formatted detail line in place.
func (e *Error) WithDetailsf(format string, args ...any) *Error {
	e.Details = append(e.Details, fmt.Sprintf(format, args...))
	return e
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind, so call sites
// can do errors.Is(err, apperror.New(apperror.KindGateFailed, "")).
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// KindOf extracts the Kind from err, walking the chain, returning
// KindOperationalFailure if err does not wrap an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindOperationalFailure
}

// ExitCode maps a Kind to the process exit code for the CLI: 0 success,
// 1 operational failure, 2 configuration error. It never returns 130; an
// interrupted run is not distinguished from an operational failure.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch KindOf(err) {
	case KindConfigInvalid, KindConfigParse, KindRepoNotFound:
		return 2
	default:
		return 1
	}
}
