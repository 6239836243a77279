// Package release implements the Release Orchestrator (C12): the
// top-level state machine driving a product (or single-service) release
// through gates, image publish, per-environment deploy, artifact
// persistence, dashboards, and post-deploy verification. Grounded on
// original_source/cli/src/commands/product_release.rs (phase
// sequencing, partial-promotion semantics) and
// cli/src/commands/comprehensive_release.rs (the single-service inner
// loop this package's Deployer.BuildSteps mirrors).
//
// Where the original re-invokes its own CLI as a subprocess for the
// per-service deploy-only step (`orchestrate-release --deploy-only
// ...`), this package calls the equivalent Go function in-process: both
// run the identical step sequence, and a single binary has no need to
// fork itself to get phase isolation.
package release

import (
	"context"
	"fmt"
	"time"

	"github.com/pleme-io/releaseforge/pkg/apperror"
	"github.com/pleme-io/releaseforge/pkg/artifact"
	"github.com/pleme-io/releaseforge/pkg/config"
)

// Step is one named, ordered action within a service's deploy sequence.
// Representing steps as values (rather than hardcoding the call chain)
// lets tests assert ordering/skip behaviour without standing up a
// cluster, git remote, and GraphQL router.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// RunSteps executes steps in strict order, stopping at the first
// failure (§5 ordering guarantees: "Phases: strict order").
func RunSteps(ctx context.Context, steps []Step) error {
	for _, s := range steps {
		if err := s.Run(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.Name, err)
		}
	}
	return nil
}

// ServiceOutcome is one service's result within one environment.
type ServiceOutcome struct {
	Service     string
	Environment string
	ImageTag    string
	Err         error
}

// EnvironmentPlan is the ordered list of per-service step builders for
// one environment; Services is deploy order (§5: "typically
// databases/migrations-bearing services first so federation composition
// sees all subgraphs").
type EnvironmentPlan struct {
	Environment string
	Services    []ServicePlan
}

// ServicePlan carries a service's identity plus a lazily-built step
// sequence, so the same ServicePlan can resolve its image tag (build vs
// deploy-only) right before steps run.
type ServicePlan struct {
	Service     string
	ResolveTag  func(ctx context.Context) (string, error)
	BuildSteps  func(ctx context.Context, imageTag string) ([]Step, error)
	HealthCheck func(ctx context.Context, imageTag string) error // optional, may be nil
}

// Phase2Result is what Phase 2 (per-environment deploy) produced.
type Phase2Result struct {
	Outcomes []ServiceOutcome
}

// Ok reports whether every service in every environment deployed
// cleanly.
func (r Phase2Result) Ok() bool {
	for _, o := range r.Outcomes {
		if o.Err != nil {
			return false
		}
	}
	return true
}

// RunPhase2 deploys every environment in order, and within each
// environment every service in order, matching §5's ordering
// guarantees exactly. It stops at the first service failure: later
// services and later environments do not run, but earlier successes
// remain recorded in Outcomes (§4.12 "partial promotions are
// acceptable").
func RunPhase2(ctx context.Context, plans []EnvironmentPlan) Phase2Result {
	var result Phase2Result
	for _, envPlan := range plans {
		for _, svc := range envPlan.Services {
			tag, err := svc.ResolveTag(ctx)
			if err != nil {
				result.Outcomes = append(result.Outcomes, ServiceOutcome{Service: svc.Service, Environment: envPlan.Environment, Err: err})
				return result
			}
			steps, err := svc.BuildSteps(ctx, tag)
			if err != nil {
				result.Outcomes = append(result.Outcomes, ServiceOutcome{Service: svc.Service, Environment: envPlan.Environment, ImageTag: tag, Err: err})
				return result
			}
			if err := RunSteps(ctx, steps); err != nil {
				result.Outcomes = append(result.Outcomes, ServiceOutcome{Service: svc.Service, Environment: envPlan.Environment, ImageTag: tag, Err: err})
				return result
			}
			if svc.HealthCheck != nil {
				if err := svc.HealthCheck(ctx, tag); err != nil {
					result.Outcomes = append(result.Outcomes, ServiceOutcome{Service: svc.Service, Environment: envPlan.Environment, ImageTag: tag, Err: err})
					return result
				}
			}
			result.Outcomes = append(result.Outcomes, ServiceOutcome{Service: svc.Service, Environment: envPlan.Environment, ImageTag: tag})
		}
	}
	return result
}

// ArtifactWriter persists one service's new/previous tag pair; satisfied
// by *artifact.Store, faked in tests.
type ArtifactWriter interface {
	Write(tag string, now time.Time) (artifact.Info, error)
}

// PersistArtifacts implements Phase 3's write step: it writes every
// successfully deployed service's new tag and returns the paths written,
// so the caller can stage, commit, and push them all in one GitOps commit
// (spec.md:281). Per §4.12's failure policy, artifact tags are only
// persisted for services that completed at least their first
// environment.
func PersistArtifacts(writers map[string]ArtifactWriter, outcomes []ServiceOutcome, now time.Time) ([]string, error) {
	deployed := map[string]string{}
	for _, o := range outcomes {
		if o.Err == nil {
			deployed[o.Service] = o.ImageTag
		}
	}
	var paths []string
	for service, tag := range deployed {
		w, ok := writers[service]
		if !ok {
			continue
		}
		if _, err := w.Write(tag, now); err != nil {
			return paths, apperror.Wrapf(apperror.KindOperationalFailure, err, "persisting artifact tag for %s", service)
		}
		if located, ok := w.(interface{ Path() string }); ok {
			paths = append(paths, located.Path())
		}
	}
	return paths, nil
}

// TargetEnvironments resolves which environments a release run should
// touch, delegating to config.DeployConfig.DeploymentEnvironments so
// "all" vs a single named environment behaves identically to §8
// testable property 6.
func TargetEnvironments(cfg *config.DeployConfig, requested string) ([]config.Environment, error) {
	return cfg.DeploymentEnvironments(requested)
}

// IsBuildEnvironment reports whether env is where a fresh image gets
// built for this service (Phase 1), vs deploy-only (tag sourced from the
// artifact store).
func IsBuildEnvironment(env config.Environment) bool {
	return env.Build
}
