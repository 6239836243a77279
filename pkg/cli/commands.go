package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pleme-io/releaseforge/pkg/artifact"
	"github.com/pleme-io/releaseforge/pkg/config"
	"github.com/pleme-io/releaseforge/pkg/dashboard"
	"github.com/pleme-io/releaseforge/pkg/federation"
	"github.com/pleme-io/releaseforge/pkg/gate"
	"github.com/pleme-io/releaseforge/pkg/kubeclient"
	"github.com/pleme-io/releaseforge/pkg/manifest"
	"github.com/pleme-io/releaseforge/pkg/reconcile"
	"github.com/pleme-io/releaseforge/pkg/release"
	"github.com/pleme-io/releaseforge/pkg/rollback"
	"github.com/pleme-io/releaseforge/pkg/verify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"
)

var prereleaseCmd = &cobra.Command{
	Use:   "prerelease",
	Short: "Run the Gate Runner's pre-release validation plan for one service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(viper.GetString("service"))
		if err != nil {
			return err
		}
		adapter := newToolAdapter()
		summary := gate.Run(cmd.Context(), buildGatePlan(cfg, adapter), cfg.Gates.FailOnError)
		printGateSummary(summary)
		if !summary.Ok() {
			return fmt.Errorf("gates failed for %s", cfg.Service)
		}
		return nil
	},
}

var orchestrateReleaseCmd = &cobra.Command{
	Use:   "orchestrate-release",
	Short: "Release one service through gates, publish, deploy, and verification",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(viper.GetString("service"))
		if err != nil {
			return err
		}
		orch, err := buildOrchestrator(cfg)
		if err != nil {
			return err
		}
		sha := viper.GetString("git-commit")
		report, err := orch.RunService(cmd.Context(), cfg, cfg.RegistryURL(), nil, cfg.Service, sha, release.Options{
			TargetEnvironment: viper.GetString("env"),
			FailOnGateError:   cfg.Gates.FailOnError,
			GitCommit:         sha,
		})
		if report != nil && report.Gates != nil {
			printGateSummary(*report.Gates)
		}
		printPhase2(report)
		return err
	},
}

var productReleaseCmd = &cobra.Command{
	Use:   "product-release",
	Short: "Release every service in a product, in declared order",
	RunE: func(cmd *cobra.Command, args []string) error {
		resolver := config.NewResolver()
		repoRoot, err := repoRootFlag(resolver)
		if err != nil {
			return err
		}
		services, err := productServices(resolver, repoRoot, viper.GetString("product"))
		if err != nil {
			return err
		}
		if len(services) == 0 {
			return fmt.Errorf("product %s declares no services", viper.GetString("product"))
		}
		sha := viper.GetString("git-commit")
		// One Orchestrator serves the whole product: RunProduct builds a
		// single environment-outer, service-inner Phase 2 plan across every
		// service (§4.12 step 4), instead of promoting each service through
		// every environment before moving on to the next.
		orch, err := buildOrchestrator(services[0])
		if err != nil {
			return err
		}
		reports, err := orch.RunProduct(cmd.Context(), services, sha, release.Options{
			TargetEnvironment: viper.GetString("env"),
			FailOnGateError:   services[0].Gates.FailOnError,
			GitCommit:         sha,
		})
		for i, report := range reports {
			if report != nil && report.Gates != nil {
				printGateSummary(*report.Gates)
			}
			printPhase2(report)
			if report != nil && !report.Phase2.Ok() {
				klog.Errorf("service %s failed", services[i].Service)
			}
		}
		return err
	},
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Roll a service back to its previous artifact tag",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(viper.GetString("service"))
		if err != nil {
			return err
		}
		force := viper.GetBool("force")
		skipHealthCheck := viper.GetBool("skip-health-check")

		adapter := newToolAdapter()
		kc, err := kubeclient.NewClient(viper.GetString("kubeconfig"), cfg.KubernetesNamespace())
		if err != nil {
			return err
		}
		driver, err := newGitOpsDriver(cfg, adapter)
		if err != nil {
			return err
		}
		deployer := newDeployer(cfg, viper.GetString("k8s-root"), adapter, kc, driver, nil)

		controller := &rollback.Controller{
			Confirm: func(service string) bool {
				if force {
					return true
				}
				return confirmOnStdin(service)
			},
			ArtifactFor: func(service string) rollback.ArtifactStore {
				return artifact.NewStore(cfg.ArtifactPath()).WithLegacyYAML(cfg.ServiceConfigPath)
			},
			Deployer:         deployer,
			PostDeploy:       verify.NewVerifier(),
			PostDeployConfig: newPostDeployConfig,
		}
		outcome := controller.Rollback(cmd.Context(), cfg, cfg.RegistryURL(), viper.GetString("git-commit"), rollback.Options{
			Environment:     viper.GetString("env"),
			Force:           force,
			SkipHealthCheck: skipHealthCheck,
		})
		if outcome.Err != nil {
			return outcome.Err
		}
		fmt.Printf("rolled back %s: %s -> %s\n", cfg.Service, outcome.FromTag, outcome.ToTag)
		return nil
	},
}

var fluxReconcileCmd = &cobra.Command{
	Use:   "flux-reconcile",
	Short: "Walk the GitOps reconciliation chain for one service's environment",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(viper.GetString("service"))
		if err != nil {
			return err
		}
		adapter := newToolAdapter()
		driver, err := newGitOpsDriver(cfg, adapter)
		if err != nil {
			return err
		}
		kustomizationName := fmt.Sprintf("%s-%s", cfg.Product, cfg.Environment)
		warnings, err := reconcile.Run(cmd.Context(), driver, kustomizationName)
		for _, w := range warnings {
			klog.Warning(w)
		}
		return err
	},
}

var runMigrationsCmd = &cobra.Command{
	Use:   "run-migrations",
	Short: "Run the migration job for one service's environment",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(viper.GetString("service"))
		if err != nil {
			return err
		}
		kc, err := kubeclient.NewClient(viper.GetString("kubeconfig"), cfg.KubernetesNamespace())
		if err != nil {
			return err
		}
		controller := newMigrationController(kc)
		outcome, err := controller.Run(cmd.Context(), cfg, cfg.KubernetesNamespace(), cfg.RegistryURL(), viper.GetString("git-commit"), time.Now())
		if outcome != nil {
			fmt.Printf("migration job %s: %+v\n", outcome.JobName, outcome)
		}
		return err
	},
}

var updateFederationCmd = &cobra.Command{
	Use:   "update-federation",
	Short: "Recompose the GraphQL supergraph from every subgraph's schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		resolver := config.NewResolver()
		repoRoot, err := repoRootFlag(resolver)
		if err != nil {
			return err
		}
		product := viper.GetString("product")
		router, err := resolver.ProductFederationRouter(repoRoot, product)
		if err != nil {
			return err
		}
		if router == nil || !router.Enabled {
			return fmt.Errorf("product %s has no federation router configured", product)
		}
		adapter := newToolAdapter()
		coordinator := federation.NewCoordinator(adapter)
		coordinator.SubgraphsDir = router.SubgraphsDir
		coordinator.SupergraphPath = router.SupergraphPath
		if router.FederationVersion != "" {
			coordinator.FederationVersion = router.FederationVersion
		}
		if _, err := coordinator.PreChecks(cmd.Context()); err != nil {
			return err
		}
		composerCfg, err := coordinator.GenerateComposerConfig()
		if err != nil {
			return err
		}
		supergraph, err := coordinator.Compose(cmd.Context(), router.SupergraphPath+".config.json", composerCfg)
		if err != nil {
			return err
		}
		warnings, err := federation.PostChecks(supergraph)
		for _, w := range warnings {
			klog.Warning(w)
		}
		if err != nil {
			return err
		}
		if err := os.WriteFile(router.SupergraphPath, []byte(supergraph), 0o644); err != nil {
			return fmt.Errorf("writing composed supergraph: %w", err)
		}
		gitCommit := viper.GetString("git-commit")
		meta, err := federation.GenerateMetadata([]byte(supergraph), composerCfg, product, gitCommit, time.Now())
		if err != nil {
			return err
		}
		metadataPath := router.SupergraphPath + ".metadata.json"
		if err := federation.WriteMetadata(metadataPath, meta); err != nil {
			return err
		}
		supergraphDir := filepath.Dir(router.SupergraphPath)
		msg := manifest.CommitMessage(product, gitCommit, "recompose federation supergraph")
		return manifest.CommitAndPush(cmd.Context(), adapter, supergraphDir, []string{filepath.Base(router.SupergraphPath), filepath.Base(metadataPath)}, msg)
	},
}

var postDeployVerifyCmd = &cobra.Command{
	Use:   "post-deploy-verify",
	Short: "Run the post-deploy health, GraphQL, and smoke checks for one service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(viper.GetString("service"))
		if err != nil {
			return err
		}
		env, err := cfg.ResolveEnvironment(viper.GetString("env"))
		if err != nil {
			return err
		}
		verifier := verify.NewVerifier()
		result := verifier.Run(cmd.Context(), newPostDeployConfig(cfg, env))
		fmt.Printf("health=%v graphql=%v smoke_skipped=%v\n", result.Health.Passed, result.GraphQL.Passed, result.SmokeSkipped)
		if !result.Ok() {
			return fmt.Errorf("post-deploy verification failed for %s", cfg.Service)
		}
		return nil
	},
}

func init() {
	rollbackCmd.Flags().Bool("force", false, "Skip the rollback confirmation prompt")
	rollbackCmd.Flags().Bool("skip-health-check", false, "Skip the post-rollback Post-Deploy Verifier run")
	_ = viper.BindPFlags(rollbackCmd.Flags())
}

func buildOrchestrator(cfg *config.DeployConfig) (*release.Orchestrator, error) {
	adapter := newToolAdapter()
	kc, err := kubeclient.NewClient(viper.GetString("kubeconfig"), cfg.KubernetesNamespace())
	if err != nil {
		return nil, err
	}
	driver, err := newGitOpsDriver(cfg, adapter)
	if err != nil {
		return nil, err
	}
	resolver := config.NewResolver()
	repoRoot, _ := repoRootFlag(resolver)
	var fedRouter *config.FederationRouter
	if cfg.Federation.Enabled && repoRoot != "" {
		fedRouter, _ = resolver.ProductFederationRouter(repoRoot, cfg.Product)
	}
	k8sRoot := viper.GetString("k8s-root")
	deployer := newDeployer(cfg, k8sRoot, adapter, kc, driver, fedRouter)

	return &release.Orchestrator{
		Resolver:  resolver,
		Deployer:  deployer,
		Publisher: newImagePublisher(adapter),
		PostDeploy: verify.NewVerifier(),
		ArtifactFor: func(cfg *config.DeployConfig) release.ArtifactWriter {
			return artifact.NewStore(cfg.ArtifactPath()).WithLegacyYAML(cfg.ServiceConfigPath)
		},
		Dashboards: func(cfg *config.DeployConfig) (map[string]dashboard.DashboardJSON, dashboard.Config, error) {
			if !cfg.Dashboards.Enabled {
				return nil, dashboard.Config{}, fmt.Errorf("dashboards disabled for %s", cfg.Product)
			}
			env, err := cfg.ResolveEnvironment(cfg.Environment)
			if err != nil {
				return nil, dashboard.Config{}, err
			}
			return newDashboardFiles(cfg, cfg.Dashboards, k8sRoot, env)
		},
		Gates: func(cfg *config.DeployConfig) gate.Plan {
			return buildGatePlan(cfg, adapter)
		},
		PostDeployConfig: newPostDeployConfig,
	}, nil
}

func repoRootFlag(resolver *config.Resolver) (string, error) {
	if root := viper.GetString("repo-root"); root != "" {
		return root, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return resolver.LocateRepoRoot(wd)
}

func confirmOnStdin(service string) bool {
	fmt.Printf("Roll back %s? [y/N]: ", service)
	var answer string
	fmt.Scanln(&answer)
	return answer == "y" || answer == "Y"
}

func printGateSummary(summary gate.Summary) {
	for _, r := range summary.Passed {
		fmt.Printf("PASS %s %s\n", r.ID, r.Name)
	}
	for _, r := range summary.Skipped {
		fmt.Printf("SKIP %s %s (%s)\n", r.ID, r.Name, r.Reason)
	}
	for _, r := range summary.Failed {
		fmt.Printf("FAIL %s %s\n", r.ID, r.Name)
		for _, d := range r.Details {
			fmt.Println("  " + d)
		}
	}
}

func printPhase2(report *release.Report) {
	if report == nil {
		return
	}
	for _, o := range report.Phase2.Outcomes {
		status := "ok"
		if o.Err != nil {
			status = "failed: " + o.Err.Error()
		}
		fmt.Printf("%s/%s tag=%s %s\n", o.Environment, o.Service, o.ImageTag, status)
	}
}
