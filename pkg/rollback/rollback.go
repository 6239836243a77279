// Package rollback implements the Rollback Controller (C13): flips a
// service back to its previous artifact tag by invoking the Release
// Orchestrator's deploy-only inner loop, then swaps current/previous on
// success so a second rollback rolls forward. Grounded on
// original_source/cli/src/commands/product_release.rs's rollback path
// and spec.md §4.13/§7 scenario S2.
package rollback

import (
	"context"
	"time"

	"github.com/pleme-io/releaseforge/pkg/apperror"
	"github.com/pleme-io/releaseforge/pkg/artifact"
	"github.com/pleme-io/releaseforge/pkg/config"
	"github.com/pleme-io/releaseforge/pkg/release"
	"github.com/pleme-io/releaseforge/pkg/verify"
)

// Confirmer asks the operator to confirm a rollback; returns false to
// abort. Production wiring prompts on stdin/stdout, tests supply a
// canned answer.
type Confirmer func(service string) bool

// Options controls one rollback invocation.
type Options struct {
	Environment     string // specific environment; "" means every deploy target for the service
	Force           bool   // skip the confirmation prompt
	SkipHealthCheck bool
}

// Outcome is one service's rollback result.
type Outcome struct {
	Service     string
	FromTag     string
	ToTag       string
	PostDeploy  *verify.Result
	Err         error
}

// ArtifactStore is the subset of *artifact.Store rollback needs; an
// interface so tests substitute an in-memory implementation.
type ArtifactStore interface {
	Load() (artifact.Info, bool, error)
	Swap(now time.Time) (artifact.Info, error)
}

// Deployer is the subset of *release.Deployer rollback drives; matching
// release.Step's shape keeps rollback agnostic to the concrete
// production dependencies release.Deployer wires.
type Deployer interface {
	BuildSteps(cfg *config.DeployConfig, env config.Environment, imageTag, registry, gitCommit string) []release.Step
}

// Controller runs rollbacks for one or more services.
type Controller struct {
	Confirm     Confirmer
	ArtifactFor func(service string) ArtifactStore
	Deployer    Deployer
	PostDeploy  *verify.Verifier
	PostDeployConfig func(cfg *config.DeployConfig, env config.Environment) verify.Config
	Now         func() time.Time
}

func (c *Controller) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Rollback implements §4.13's five-step protocol for one service.
func (c *Controller) Rollback(ctx context.Context, cfg *config.DeployConfig, registry, gitCommit string, opts Options) Outcome {
	outcome := Outcome{Service: cfg.Service}

	if !opts.Force && c.Confirm != nil && !c.Confirm(cfg.Service) {
		outcome.Err = apperror.New(apperror.KindOperationalFailure, "rollback aborted by operator")
		return outcome
	}

	store := c.ArtifactFor(cfg.Service)
	info, ok, err := store.Load()
	if err != nil {
		outcome.Err = err
		return outcome
	}
	if !ok || info.PreviousTag == "" {
		outcome.Err = apperror.New(apperror.KindConfigInvalid, "no previous tag recorded for "+cfg.Service)
		return outcome
	}
	outcome.FromTag = info.Tag
	outcome.ToTag = info.PreviousTag

	envs, err := release.TargetEnvironments(cfg, opts.Environment)
	if err != nil {
		outcome.Err = err
		return outcome
	}

	for _, env := range envs {
		steps := c.Deployer.BuildSteps(cfg, env, info.PreviousTag, registry, gitCommit)
		if err := release.RunSteps(ctx, steps); err != nil {
			outcome.Err = err
			return outcome
		}
	}

	if _, err := store.Swap(c.now()); err != nil {
		outcome.Err = err
		return outcome
	}

	if !opts.SkipHealthCheck && c.PostDeploy != nil && c.PostDeployConfig != nil && len(envs) > 0 {
		result := c.PostDeploy.Run(ctx, c.PostDeployConfig(cfg, envs[len(envs)-1]))
		outcome.PostDeploy = &result
	}

	return outcome
}

// RollbackProduct rolls back every service in order, stopping at the
// first failure so an operator sees exactly which services reverted and
// which did not (mirrors release.RunProduct's partial-outcome shape).
func (c *Controller) RollbackProduct(ctx context.Context, services []*config.DeployConfig, registry, gitCommit string, opts Options) []Outcome {
	var outcomes []Outcome
	for _, cfg := range services {
		o := c.Rollback(ctx, cfg, registry, gitCommit, opts)
		outcomes = append(outcomes, o)
		if o.Err != nil {
			return outcomes
		}
	}
	return outcomes
}
