// Package config implements the Configuration Resolver: it loads the
// hierarchical global/product/service YAML, merges it with documented
// defaults, and exposes a single DeployConfig value for a
// (product, service, environment) triple. Grounded on
// original_source/cli/src/config/mod.rs (DeployConfig::load_for_service,
// registry_url, kubernetes_namespace, federation_routing_url,
// resolve_environment). The YAML is decoded with gopkg.in/yaml.v3, which
// reads the yaml struct tags below.
package config

// ServiceType is a closed sum type: the only service runtimes the
// orchestrator reasons about directly (design note: "variants at runtime
// are limited ... encoded as closed sum types").
type ServiceType string

const (
	ServiceTypeRust  ServiceType = "rust"
	ServiceTypeWeb   ServiceType = "web"
	ServiceTypeOther ServiceType = "other"
)

// DatabaseType selects the migration RUN_MODE (see pkg/migration).
type DatabaseType string

const (
	DatabasePostgres      DatabaseType = "postgres"
	DatabaseClickhouse    DatabaseType = "clickhouse"
	DatabaseElasticsearch DatabaseType = "elasticsearch"
	DatabaseDatabend      DatabaseType = "databend"
	DatabaseNone          DatabaseType = "none"
)

// GitOpsController selects the reconciliation driver implementation
// (supplemented feature: ArgoCD as an alternate GitOps controller).
type GitOpsController string

const (
	GitOpsFlux   GitOpsController = "flux"
	GitOpsArgoCD GitOpsController = "argocd"
)

// FederationConfig describes a service's participation in the GraphQL
// supergraph (C8).
type FederationConfig struct {
	Enabled         bool     `yaml:"enabled"`
	RoutingURL      string   `yaml:"routing_url"`      // template, e.g. "https://{service}.{product}.internal/graphql"
	SchemaExtractor string   `yaml:"schema_extractor"` // binary that dumps the service's subgraph schema
	ExpectedTypes   []string `yaml:"expected_types,omitempty"`
}

// ServiceConfig is the service-level YAML (service overrides product
// overrides global, §8 testable property 1).
type ServiceConfig struct {
	Name        string           `yaml:"name"`
	SourceDir   string           `yaml:"source_dir,omitempty"`
	Type        ServiceType      `yaml:"type,omitempty"`
	Database    DatabaseType     `yaml:"database,omitempty"`
	Federation  FederationConfig `yaml:"federation,omitempty"`
	Release     ReleaseConfig    `yaml:"release,omitempty"`
	Migration   MigrationConfig  `yaml:"migration,omitempty"`
	Gates       GatesConfig      `yaml:"gates,omitempty"`
	RegistryURL string           `yaml:"registry_url,omitempty"` // explicit override of the templated default
}

// ReleaseConfig controls which environments a service promotes through and
// in what order (§8 testable property 6).
type ReleaseConfig struct {
	EnvironmentOrder []string `yaml:"environment_order,omitempty"`
	// AutoTag enables the Image Publisher's rolling {arch}-latest tag
	// alongside the {arch}-{sha} tag on every push (§4.5).
	AutoTag bool `yaml:"auto_tag,omitempty"`
}

// MigrationConfig mirrors the resource defaults from
// original_source/cli/src/domain/migration.rs (MigrationResources).
type MigrationConfig struct {
	RequestsMemory      string `yaml:"requests_memory,omitempty"`
	RequestsCPU         string `yaml:"requests_cpu,omitempty"`
	LimitsMemory        string `yaml:"limits_memory,omitempty"`
	LimitsCPU           string `yaml:"limits_cpu,omitempty"`
	ActiveDeadlineSecs  int64  `yaml:"active_deadline_seconds,omitempty"`
}

// GatesConfig configures the Gate Runner (C4).
type GatesConfig struct {
	FailOnError    bool `yaml:"fail_on_error"`
	SkipBackend    bool `yaml:"skip_backend,omitempty"`
	SkipMigration  bool `yaml:"skip_migration,omitempty"`
	SkipFrontend   bool `yaml:"skip_frontend,omitempty"`
	SkipIntegration bool `yaml:"skip_integration,omitempty"`
	SkipE2E        bool `yaml:"skip_e2e,omitempty"`
}

// Environment is a deployment target: staging, production, or an alias
// such as production-a.
type Environment struct {
	Name         string `yaml:"name"`
	Alias        string `yaml:"alias,omitempty"` // resolves to Name
	Cluster      string `yaml:"cluster"`
	Rank         int    `yaml:"rank"` // promotion order, ascending
	Build        bool   `yaml:"build"` // true: fresh image built here; false: deploy-only
	Production   bool   `yaml:"production,omitempty"`
}

// ProductConfig is the product-level YAML: environments, services, shared
// infrastructure.
type ProductConfig struct {
	Name            string            `yaml:"name"`
	Environments    []Environment     `yaml:"environments"`
	Services        []string          `yaml:"services"`
	RegistryPattern string            `yaml:"registry_pattern,omitempty"`
	NamespacePattern string           `yaml:"namespace_pattern,omitempty"`
	Federation      *FederationRouter `yaml:"federation,omitempty"`
	GitOps          GitOpsSettings    `yaml:"gitops,omitempty"`
	Dashboards      DashboardSettings `yaml:"dashboards,omitempty"`
}

// FederationRouter describes the product's shared hive-router.
type FederationRouter struct {
	Enabled           bool   `yaml:"enabled"`
	SubgraphsDir      string `yaml:"subgraphs_dir,omitempty"`
	SupergraphPath    string `yaml:"supergraph_path,omitempty"`
	RouterDeployment  string `yaml:"router_deployment,omitempty"`
	RouterNamespace   string `yaml:"router_namespace,omitempty"`
	ReloadAdminURL    string `yaml:"reload_admin_url,omitempty"`
	FederationVersion string `yaml:"federation_version,omitempty"`
}

// GitOpsSettings selects and configures the reconciliation driver.
type GitOpsSettings struct {
	Controller      GitOpsController `yaml:"controller,omitempty"`
	KustomizationNS string           `yaml:"kustomization_namespace,omitempty"`
}

// DashboardSettings configures Phase 4 (supplemented feature).
type DashboardSettings struct {
	Enabled bool `yaml:"enabled,omitempty"`
}

// GlobalConfig is the repo-root cli/deploy.yaml: defaults inherited by
// every product unless overridden.
type GlobalConfig struct {
	Host             string      `yaml:"host,omitempty"`
	Org              string      `yaml:"org,omitempty"`
	Project          string      `yaml:"project,omitempty"`
	Protocol         string      `yaml:"protocol,omitempty"`
	Gates            GatesConfig `yaml:"gates,omitempty"`
	RegistryPattern  string      `yaml:"registry_pattern,omitempty"`
	NamespacePattern string      `yaml:"namespace_pattern,omitempty"`
}

// DeployConfig is the fully merged, validated value C1 produces for one
// (product, service, environment) triple. Every field is initialised from
// the most specific source that set it -- no reflection, no dynamic
// dispatch (design note: "Config precedence without reflection").
type DeployConfig struct {
	Product     string
	Service     string
	Environment string

	RepoRoot   string
	ProductDir string
	ServiceDir string

	Host     string
	Org      string
	Project  string
	Protocol string

	RegistryURLPattern   string
	NamespacePattern     string
	FederationURLPattern string

	// SourceDir is the service's application source tree, scanned by the
	// Dashboard Regenerator for observed-entity annotations (C1's
	// source_dir field, defaulting to ServiceDir when unset).
	SourceDir string

	ServiceType ServiceType
	Database    DatabaseType

	Federation FederationConfig
	Gates      GatesConfig
	Migration  MigrationConfig
	Release    ReleaseConfig
	GitOps     GitOpsSettings
	Dashboards DashboardSettings

	Environments []Environment

	ManifestRoot string // {k8s_root}/clusters/{cluster}/products/{product}-{env}/services/{service}

	// ServiceConfigPath is whichever service YAML LoadForService actually
	// read (the new {product}/deploy/{service}.yaml or the legacy
	// {service_dir}/deploy.yaml) -- the Artifact Store's read-only legacy
	// fallback source (C2).
	ServiceConfigPath string
}
