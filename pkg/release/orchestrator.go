package release

import (
	"context"
	"fmt"
	"time"

	"github.com/pleme-io/releaseforge/pkg/apperror"
	"github.com/pleme-io/releaseforge/pkg/artifact"
	"github.com/pleme-io/releaseforge/pkg/config"
	"github.com/pleme-io/releaseforge/pkg/dashboard"
	"github.com/pleme-io/releaseforge/pkg/gate"
	"github.com/pleme-io/releaseforge/pkg/image"
	"github.com/pleme-io/releaseforge/pkg/manifest"
	"github.com/pleme-io/releaseforge/pkg/verify"
	"k8s.io/klog/v2"
)

// Options controls one orchestrator invocation: a single service (Service
// set) or a whole product (Service empty, every ProductConfig.Services
// entry runs).
type Options struct {
	TargetEnvironment string // "all" or a specific environment name
	SkipGates         bool
	SkipDashboards    bool
	SkipPostDeploy    bool
	FailOnGateError   bool
	GitCommit         string
}

// Report is the orchestrator's final account of one run, returned to the
// CLI layer for exit-code mapping and human-readable summary printing.
type Report struct {
	Gates      *gate.Summary
	Phase2     Phase2Result
	Dashboards []string
	PostDeploy *verify.Result
}

// Orchestrator wires every component package into the phase sequence
// described by §4.12: gates, publish, per-environment deploy, persist,
// dashboards, post-deploy verification.
type Orchestrator struct {
	Resolver    *config.Resolver
	Deployer    *Deployer
	Publisher   *image.Publisher
	PostDeploy  *verify.Verifier
	ArtifactFor func(cfg *config.DeployConfig) ArtifactWriter
	Dashboards  func(cfg *config.DeployConfig) (map[string]dashboard.DashboardJSON, dashboard.Config, error)
	Gates       func(cfg *config.DeployConfig) gate.Plan
	PostDeployConfig func(cfg *config.DeployConfig, env config.Environment) verify.Config
	Now         func() time.Time
}

func apperrorGateFailure(service string) error {
	return apperror.New(apperror.KindGateFailed, "gates failed for "+service)
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// RunService executes the full phase sequence for one service: gates,
// publish (if the first target environment builds), per-environment
// deploy, artifact persistence, dashboards, post-deploy verification.
// Phases 0, 4, and 5 are best-effort: a failure there is recorded on the
// Report but does not prevent the deploy-critical Phase 2 from having
// already run.
func (o *Orchestrator) RunService(ctx context.Context, cfg *config.DeployConfig, registry string, build *image.BuildCommand, localImage, sourceSHA string, opts Options) (*Report, error) {
	report := &Report{}

	if !opts.SkipGates && o.Gates != nil {
		summary := gate.Run(ctx, o.Gates(cfg), opts.FailOnGateError)
		report.Gates = &summary
		if opts.FailOnGateError && !summary.Ok() {
			return report, apperrorGateFailure(cfg.Service)
		}
	}

	envs, err := TargetEnvironments(cfg, opts.TargetEnvironment)
	if err != nil {
		return report, err
	}

	imageTag, err := o.resolveImageTag(ctx, cfg, envs, registry, sourceSHA, build, localImage)
	if err != nil {
		return report, err
	}

	plans := make([]EnvironmentPlan, 0, len(envs))
	for _, env := range envs {
		plans = append(plans, EnvironmentPlan{
			Environment: env.Name,
			Services:    []ServicePlan{o.buildServicePlan(cfg, env, imageTag, registry, opts.GitCommit)},
		})
	}
	report.Phase2 = RunPhase2(ctx, plans)
	paths := o.finishPhases(ctx, cfg, envs, opts, report)
	if len(paths) > 0 {
		if err := o.commitArtifacts(ctx, cfg.RepoRoot, paths); err != nil {
			klog.Warningf("committing persisted artifact tags failed: %v", err)
		}
	}
	return report, nil
}

// resolveImageTag implements Phase 1's tag-resolution rule: a build
// environment publishes a fresh image and returns its tag; a deploy-only
// environment reuses whatever tag the Artifact Store already has.
func (o *Orchestrator) resolveImageTag(ctx context.Context, cfg *config.DeployConfig, envs []config.Environment, registry, sourceSHA string, build *image.BuildCommand, localImage string) (string, error) {
	if len(envs) > 0 && IsBuildEnvironment(envs[0]) && o.Publisher != nil {
		ref, err := o.Publisher.Publish(ctx, localImage, registry, sourceSHA, build, cfg.Release.AutoTag)
		if err != nil {
			return "", err
		}
		klog.V(2).Infof("published %s for %s", ref, cfg.Service)
		return image.Tag(sourceSHA), nil
	}
	if o.ArtifactFor != nil {
		if store, ok := o.ArtifactFor(cfg).(interface {
			Load() (artifact.Info, bool, error)
		}); ok {
			info, found, err := store.Load()
			if err != nil {
				return "", err
			}
			if found {
				return info.Tag, nil
			}
		}
	}
	return "", nil
}

// buildServicePlan wraps one (service, environment) pair into the
// ServicePlan shape RunPhase2 consumes, closing over the already-resolved
// image tag.
func (o *Orchestrator) buildServicePlan(cfg *config.DeployConfig, env config.Environment, imageTag, registry, gitCommit string) ServicePlan {
	tag := imageTag
	return ServicePlan{
		Service:    cfg.Service,
		ResolveTag: func(ctx context.Context) (string, error) { return tag, nil },
		BuildSteps: func(ctx context.Context, imageTag string) ([]Step, error) {
			return o.Deployer.BuildSteps(cfg, env, imageTag, registry, gitCommit), nil
		},
	}
}

// finishPhases runs Phase 3 (persist), Phase 4 (dashboards), and Phase 5
// (post-deploy verify) for one service once its slice of report.Phase2's
// outcomes is known, and returns the artifact file paths Phase 3 wrote so
// the caller can batch them into one GitOps commit (spec.md:281). A
// service with no recorded outcomes never reached Phase 2 (an earlier
// service in a shared product plan failed first) and is skipped
// entirely.
func (o *Orchestrator) finishPhases(ctx context.Context, cfg *config.DeployConfig, envs []config.Environment, opts Options, report *Report) []string {
	if len(report.Phase2.Outcomes) == 0 {
		return nil
	}
	if !report.Phase2.Ok() {
		return nil
	}

	var paths []string
	if o.ArtifactFor != nil {
		writers := map[string]ArtifactWriter{cfg.Service: o.ArtifactFor(cfg)}
		written, err := PersistArtifacts(writers, report.Phase2.Outcomes, o.now())
		if err != nil {
			klog.Warningf("artifact persistence failed for %s: %v", cfg.Service, err)
			return nil
		}
		paths = written
	}

	if !opts.SkipDashboards && o.Dashboards != nil {
		dashboards, dcfg, err := o.Dashboards(cfg)
		if err != nil {
			klog.Warningf("dashboard regeneration skipped for %s: %v", cfg.Service, err)
		} else {
			names, err := dashboard.Write(dcfg, dashboards)
			if err != nil {
				klog.Warningf("dashboard write failed for %s: %v", cfg.Service, err)
			} else {
				report.Dashboards = names
			}
		}
	}

	if !opts.SkipPostDeploy && o.PostDeploy != nil && o.PostDeployConfig != nil && len(envs) > 0 {
		last := envs[len(envs)-1]
		result := o.PostDeploy.Run(ctx, o.PostDeployConfig(cfg, last))
		report.PostDeploy = &result
	}

	return paths
}

// commitArtifacts stages, commits, and pushes every artifact file Phase 3
// wrote in one commit, matching spec.md:281 exactly. A nil Deployer/Tool
// (e.g. in tests that exercise Phase 2/3 without a git remote) makes this
// a no-op rather than an error.
func (o *Orchestrator) commitArtifacts(ctx context.Context, repoRoot string, paths []string) error {
	if o.Deployer == nil || o.Deployer.Tool == nil || len(paths) == 0 {
		return nil
	}
	msg := manifest.CommitMessage("artifacts", fmt.Sprintf("%d service(s)", len(paths)), "persist artifact tags")
	return manifest.CommitAndPush(ctx, o.Deployer.Tool, repoRoot, paths, msg)
}

// productPrep is one service's Phase 0/Phase 1 outcome, staged before the
// shared Phase 2 plan is built.
type productPrep struct {
	cfg      *config.DeployConfig
	envs     []config.Environment
	imageTag string
	registry string
}

// RunProduct executes the product-wide release: Phase 0 (gates) and
// Phase 1 (tag resolution/publish) run per service, but Phase 2 builds
// ONE combined environment-outer, service-inner plan spanning every
// service and runs it through a single RunPhase2 call, matching §4.12
// step 4 exactly ("for each env in order, for each service") -- every
// service reaches an environment before any of them is promoted to the
// next. Phase 3-5 then run per service over that service's slice of the
// shared Phase2Result.
func (o *Orchestrator) RunProduct(ctx context.Context, services []*config.DeployConfig, sourceSHA string, opts Options) ([]*Report, error) {
	reports := make(map[string]*Report, len(services))
	var preps []productPrep

	for _, cfg := range services {
		report := &Report{}
		reports[cfg.Service] = report

		if !opts.SkipGates && o.Gates != nil {
			summary := gate.Run(ctx, o.Gates(cfg), opts.FailOnGateError)
			report.Gates = &summary
			if opts.FailOnGateError && !summary.Ok() {
				return orderedReports(services, reports), apperrorGateFailure(cfg.Service)
			}
		}

		envs, err := TargetEnvironments(cfg, opts.TargetEnvironment)
		if err != nil {
			return orderedReports(services, reports), err
		}

		registry := cfg.RegistryURL()
		imageTag, err := o.resolveImageTag(ctx, cfg, envs, registry, sourceSHA, nil, cfg.Service)
		if err != nil {
			return orderedReports(services, reports), err
		}

		preps = append(preps, productPrep{cfg: cfg, envs: envs, imageTag: imageTag, registry: registry})
	}

	plans := buildProductPlans(o, preps, opts.GitCommit)
	result := RunPhase2(ctx, plans)
	for _, outcome := range result.Outcomes {
		if r, ok := reports[outcome.Service]; ok {
			r.Phase2.Outcomes = append(r.Phase2.Outcomes, outcome)
		}
	}

	var allPaths []string
	for _, p := range preps {
		allPaths = append(allPaths, o.finishPhases(ctx, p.cfg, p.envs, opts, reports[p.cfg.Service])...)
	}
	if len(allPaths) > 0 {
		repoRoot := preps[0].cfg.RepoRoot
		if err := o.commitArtifacts(ctx, repoRoot, allPaths); err != nil {
			klog.Warningf("committing persisted artifact tags failed: %v", err)
		}
	}

	return orderedReports(services, reports), nil
}

// buildProductPlans groups every prepared service's per-environment
// ServicePlan by environment name, preserving the order environments are
// first encountered (product environments are shared across services in
// the common case, so this matches the product's declared rank order).
func buildProductPlans(o *Orchestrator, preps []productPrep, gitCommit string) []EnvironmentPlan {
	order := make([]string, 0)
	byEnv := make(map[string][]ServicePlan)
	for _, p := range preps {
		for _, env := range p.envs {
			if _, seen := byEnv[env.Name]; !seen {
				order = append(order, env.Name)
			}
			byEnv[env.Name] = append(byEnv[env.Name], o.buildServicePlan(p.cfg, env, p.imageTag, p.registry, gitCommit))
		}
	}
	plans := make([]EnvironmentPlan, 0, len(order))
	for _, name := range order {
		plans = append(plans, EnvironmentPlan{Environment: name, Services: byEnv[name]})
	}
	return plans
}

// orderedReports returns each service's Report in the original services
// order, for callers that print per-service summaries.
func orderedReports(services []*config.DeployConfig, reports map[string]*Report) []*Report {
	out := make([]*Report, 0, len(services))
	for _, cfg := range services {
		out = append(out, reports[cfg.Service])
	}
	return out
}
