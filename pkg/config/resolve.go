package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pleme-io/releaseforge/pkg/apperror"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Resolver loads and merges deploy configuration for a repository. It
// wraps an afero.Fs instead of touching the OS directly so tests can
// substitute an in-memory filesystem, mirroring afero's role in the
// teacher's go.mod.
type Resolver struct {
	fs afero.Fs
}

// NewResolver returns a Resolver backed by the real OS filesystem.
func NewResolver() *Resolver {
	return &Resolver{fs: afero.NewOsFs()}
}

// NewResolverWithFs returns a Resolver backed by an arbitrary afero.Fs,
// used by tests with afero.NewMemMapFs().
func NewResolverWithFs(fs afero.Fs) *Resolver {
	return &Resolver{fs: fs}
}

// LocateRepoRoot ascends from dir until it finds a ".git" marker,
// implementing C1 algorithm step 1.
func (r *Resolver) LocateRepoRoot(dir string) (string, error) {
	current := dir
	for {
		marker := filepath.Join(current, ".git")
		if exists, _ := afero.Exists(r.fs, marker); exists {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", apperror.New(apperror.KindRepoNotFound, "no .git ancestor found above "+dir)
		}
		current = parent
	}
}

// locateProductDir implements C1 algorithm step 2: the repo root itself if
// it owns a product-naming deploy.yaml (standalone layout), otherwise
// {repo_root}/pkgs/products/{product} (monorepo layout).
func (r *Resolver) locateProductDir(repoRoot, product string) (string, error) {
	standalone := filepath.Join(repoRoot, "deploy.yaml")
	if exists, _ := afero.Exists(r.fs, standalone); exists {
		var pc ProductConfig
		if err := r.loadYAML(standalone, &pc); err == nil && pc.Name == product {
			return repoRoot, nil
		}
	}
	monorepo := filepath.Join(repoRoot, "pkgs", "products", product)
	if exists, _ := afero.Exists(r.fs, monorepo); exists {
		return monorepo, nil
	}
	return "", apperror.New(apperror.KindRepoNotFound, "product directory not found for "+product)
}

// LoadForService produces a validated DeployConfig for one
// (product, service, environment) triple -- C1's single public entry
// point, grounded on DeployConfig::load_for_service in
// original_source/cli/src/config/mod.rs.
func (r *Resolver) LoadForService(repoRoot, serviceDir, product, service, environment string) (*DeployConfig, error) {
	var global GlobalConfig
	globalPath := filepath.Join(repoRoot, "cli", "deploy.yaml")
	if exists, _ := afero.Exists(r.fs, globalPath); exists {
		if err := r.loadYAML(globalPath, &global); err != nil {
			return nil, apperror.Wrapf(apperror.KindConfigParse, err, "parsing %s", globalPath)
		}
	}

	productDir, err := r.locateProductDir(repoRoot, product)
	if err != nil {
		return nil, err
	}

	var productCfg ProductConfig
	productPath := filepath.Join(productDir, "deploy.yaml")
	if err := r.loadYAML(productPath, &productCfg); err != nil {
		return nil, apperror.Wrapf(apperror.KindConfigParse, err, "parsing %s", productPath)
	}
	if productCfg.Name == "" {
		productCfg.Name = product
	}

	var serviceCfg ServiceConfig
	newPath := filepath.Join(productDir, "deploy", service+".yaml")
	legacyPath := filepath.Join(serviceDir, "deploy.yaml")
	servicePath := newPath
	if exists, _ := afero.Exists(r.fs, newPath); !exists {
		if legacyExists, _ := afero.Exists(r.fs, legacyPath); legacyExists {
			servicePath = legacyPath
		}
	}
	if exists, _ := afero.Exists(r.fs, servicePath); exists {
		if err := r.loadYAML(servicePath, &serviceCfg); err != nil {
			return nil, apperror.Wrapf(apperror.KindConfigParse, err, "parsing %s", servicePath)
		}
	}
	if serviceCfg.Name == "" {
		serviceCfg.Name = service
	}

	env := environment
	if env == "" && len(productCfg.Environments) > 0 {
		env = productCfg.Environments[0].Name
	}

	cfg := merge(global, productCfg, serviceCfg, env)
	cfg.RepoRoot = repoRoot
	cfg.ProductDir = productDir
	cfg.ServiceDir = serviceDir
	cfg.ServiceConfigPath = servicePath
	if cfg.ServiceDir == "" {
		cfg.ServiceDir = filepath.Join(productDir, "services", service)
	}
	if cfg.SourceDir == "" {
		cfg.SourceDir = cfg.ServiceDir
	} else if !filepath.IsAbs(cfg.SourceDir) {
		cfg.SourceDir = filepath.Join(cfg.ServiceDir, cfg.SourceDir)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ProductServices returns the service names a product's deploy.yaml
// declares, for product-wide commands (C12's product-release mode) that
// need the full service list before calling LoadForService per service.
func (r *Resolver) ProductServices(repoRoot, product string) ([]string, error) {
	productDir, err := r.locateProductDir(repoRoot, product)
	if err != nil {
		return nil, err
	}
	var productCfg ProductConfig
	if err := r.loadYAML(filepath.Join(productDir, "deploy.yaml"), &productCfg); err != nil {
		return nil, apperror.Wrapf(apperror.KindConfigParse, err, "parsing %s/deploy.yaml", productDir)
	}
	return productCfg.Services, nil
}

// ProductFederationRouter returns the product's shared hive-router
// settings, or nil if the product has no federation router declared.
func (r *Resolver) ProductFederationRouter(repoRoot, product string) (*FederationRouter, error) {
	productDir, err := r.locateProductDir(repoRoot, product)
	if err != nil {
		return nil, err
	}
	var productCfg ProductConfig
	if err := r.loadYAML(filepath.Join(productDir, "deploy.yaml"), &productCfg); err != nil {
		return nil, apperror.Wrapf(apperror.KindConfigParse, err, "parsing %s/deploy.yaml", productDir)
	}
	return productCfg.Federation, nil
}

// ArtifactPath returns the path to the service's machine-managed artifact
// metadata file (C2's on-disk layout).
func (c *DeployConfig) ArtifactPath() string {
	return filepath.Join(c.ProductDir, "deploy", c.Service+".artifact.json")
}

// ManifestPath returns the GitOps kustomization path for one environment,
// matching spec.md's on-disk layout.
func (c *DeployConfig) ManifestPath(k8sRoot, cluster, environment string) string {
	return filepath.Join(k8sRoot, "clusters", cluster, "products", c.Product+"-"+environment, "services", c.Service, "kustomization.yaml")
}

var identifierPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// validate implements C1 algorithm step 6.
func validate(cfg *DeployConfig) error {
	if !identifierPattern.MatchString(cfg.Product) {
		return apperror.New(apperror.KindConfigInvalid, "invalid product identifier: "+cfg.Product)
	}
	if !identifierPattern.MatchString(cfg.Service) {
		return apperror.New(apperror.KindConfigInvalid, "invalid service identifier: "+cfg.Service)
	}
	if cfg.Environment == "" {
		return apperror.New(apperror.KindConfigInvalid, "no environment resolved for "+cfg.Product+"/"+cfg.Service)
	}
	if ns := cfg.KubernetesNamespace(); strings.Contains(ns, "{") {
		return apperror.New(apperror.KindConfigInvalid, fmt.Sprintf("namespace template did not fully resolve: %s", ns))
	}
	if cfg.Federation.Enabled {
		if !strings.Contains(cfg.FederationURLPattern, "{service}") && !strings.Contains(cfg.FederationURLPattern, "{product}") {
			return apperror.New(apperror.KindConfigInvalid, "federation routing url pattern must contain {service} or {product}")
		}
	}
	seen := map[string]bool{}
	for _, e := range cfg.Environments {
		if _, err := cfg.ResolveEnvironment(e.Name); err != nil {
			return err
		}
		if seen[e.Name] {
			return apperror.New(apperror.KindConfigInvalid, "duplicate environment: "+e.Name)
		}
		seen[e.Name] = true
	}
	return nil
}

func (r *Resolver) loadYAML(path string, out any) error {
	data, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}
