package cli

import (
	"fmt"
	"os"

	"github.com/pleme-io/releaseforge/pkg/config"
	"github.com/pleme-io/releaseforge/pkg/dashboard"
	"github.com/pleme-io/releaseforge/pkg/federation"
	"github.com/pleme-io/releaseforge/pkg/image"
	"github.com/pleme-io/releaseforge/pkg/kubeclient"
	"github.com/pleme-io/releaseforge/pkg/migration"
	"github.com/pleme-io/releaseforge/pkg/reconcile"
	"github.com/pleme-io/releaseforge/pkg/release"
	"github.com/pleme-io/releaseforge/pkg/rollout"
	"github.com/pleme-io/releaseforge/pkg/tool"
	"github.com/pleme-io/releaseforge/pkg/verify"
	"github.com/spf13/viper"
)

// resolveConfig loads the DeployConfig for the (product, service,
// environment) named by the bound persistent flags, mirroring C1's
// single entry point.
func resolveConfig(service string) (*config.DeployConfig, error) {
	resolver := config.NewResolver()
	repoRoot := viper.GetString("repo-root")
	if repoRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		repoRoot, err = resolver.LocateRepoRoot(wd)
		if err != nil {
			return nil, err
		}
	}
	return resolver.LoadForService(repoRoot, "", viper.GetString("product"), service, "")
}

// productServices loads every service a product declares, for
// product-wide commands.
func productServices(resolver *config.Resolver, repoRoot, product string) ([]*config.DeployConfig, error) {
	names, err := resolver.ProductServices(repoRoot, product)
	if err != nil {
		return nil, err
	}
	configs := make([]*config.DeployConfig, 0, len(names))
	for _, svc := range names {
		cfg, err := resolver.LoadForService(repoRoot, "", product, svc, "")
		if err != nil {
			return nil, fmt.Errorf("loading config for service %s: %w", svc, err)
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

func newToolAdapter() *tool.Adapter {
	return tool.NewAdapter()
}

// newGitOpsDriver builds the reconcile.Driver selected by the product's
// gitops.controller setting (C9's supplemented ArgoCD alternative).
func newGitOpsDriver(cfg *config.DeployConfig, adapter *tool.Adapter) (reconcile.Driver, error) {
	namespace := cfg.GitOps.KustomizationNS
	if namespace == "" {
		namespace = cfg.KubernetesNamespace()
	}
	switch cfg.GitOps.Controller {
	case config.GitOpsArgoCD:
		client, err := kubeclient.NewArgoClientFromEnv(namespace)
		if err != nil {
			return nil, err
		}
		return reconcile.NewArgoDriver(client, cfg.Product+"-"+cfg.Environment+"-root"), nil
	default:
		return reconcile.NewFluxDriver(adapter, namespace, "flux-system"), nil
	}
}

func newMigrationController(kc *kubeclient.Client) *migration.Controller {
	return migration.NewController(kc)
}

func newRolloutVerifier(kc *kubeclient.Client) *rollout.Verifier {
	return rollout.NewVerifier(kc)
}

func newFederationCoordinator(cfg *config.DeployConfig, adapter *tool.Adapter, router *config.FederationRouter) *federation.Coordinator {
	c := federation.NewCoordinator(adapter)
	if router != nil {
		c.SubgraphsDir = router.SubgraphsDir
		c.SupergraphPath = router.SupergraphPath
		if router.FederationVersion != "" {
			c.FederationVersion = router.FederationVersion
		}
	}
	c.RoutingURLFor = func(service string) string {
		subgraph := *cfg
		subgraph.Service = service
		return subgraph.FederationRoutingURL()
	}
	return c
}

func newDeployer(cfg *config.DeployConfig, k8sRoot string, adapter *tool.Adapter, kc *kubeclient.Client, driver reconcile.Driver, fedRouter *config.FederationRouter) *release.Deployer {
	d := &release.Deployer{
		Tool:         adapter,
		K8sRoot:      k8sRoot,
		GitOpsDriver: driver,
		Migration:    newMigrationController(kc),
		Rollout:      newRolloutVerifier(kc),
		KubeClient:   kc,
	}
	if cfg.Federation.Enabled {
		d.Federation = newFederationCoordinator(cfg, adapter, fedRouter)
		if fedRouter != nil {
			d.FederationReloadURL = fedRouter.ReloadAdminURL
			d.FederationRouterNamespace = fedRouter.RouterNamespace
			d.FederationRouterDeployment = fedRouter.RouterDeployment
		}
	}
	return d
}

func newImagePublisher(adapter *tool.Adapter) *image.Publisher {
	return image.NewPublisher(adapter)
}

func newPostDeployConfig(cfg *config.DeployConfig, env config.Environment) verify.Config {
	base := "https://" + cfg.Service + "." + cfg.Product + "." + env.Name + ".internal"
	return verify.Config{
		HealthURL:     base + "/health",
		GraphQLURL:    base + "/graphql",
		HealthRetries: 5,
	}
}

// newDashboardFiles regenerates every entity dashboard for one service by
// scanning its SourceDir for observed-entity annotations and rendering a
// dashboard per entity plus an overview, mirroring
// dashboards.rs's scan_entities -> generate_builtin_dashboards pipeline
// (jsonnet templates are out of scope here -- no product in this pack
// configures one, so the built-in generator is the only path exercised).
func newDashboardFiles(cfg *config.DeployConfig, settings config.DashboardSettings, k8sRoot string, env config.Environment) (map[string]dashboard.DashboardJSON, dashboard.Config, error) {
	dcfg := dashboard.Config{
		ProductName:     cfg.Product,
		DashboardFolder: cfg.Product,
		OutputDir:       k8sRoot + "/clusters/" + env.Cluster + "/products/" + cfg.Product + "-" + env.Name + "/observability",
	}
	entities, err := dashboard.ScanEntities(cfg.SourceDir)
	if err != nil {
		return nil, dcfg, fmt.Errorf("scanning %s for observed entities: %w", cfg.SourceDir, err)
	}
	return dashboard.BuildDashboards(entities, dcfg), dcfg, nil
}
