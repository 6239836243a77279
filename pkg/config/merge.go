package config

import "github.com/pleme-io/releaseforge/pkg/apperror"

// merge combines global, product, and service config into a DeployConfig.
// Every field is set from the most specific non-zero source: service
// overrides product overrides global (§8 testable property 1). There is no
// reflection over struct fields -- each field is merged explicitly.
func merge(global GlobalConfig, product ProductConfig, service ServiceConfig, environment string) *DeployConfig {
	cfg := &DeployConfig{
		Product:     product.Name,
		Service:     service.Name,
		Environment: environment,

		Host:     global.Host,
		Org:      global.Org,
		Project:  global.Project,
		Protocol: firstNonEmpty(global.Protocol, "https"),

		RegistryURLPattern: firstNonEmpty(service.RegistryURL, product.RegistryPattern, global.RegistryPattern),
		NamespacePattern:   firstNonEmpty(product.NamespacePattern, global.NamespacePattern),

		ServiceType: service.Type,
		Database:    service.Database,

		SourceDir: service.SourceDir,

		Federation: service.Federation,
		Migration:  service.Migration,
		Release:    service.Release,
		GitOps:     product.GitOps,
		Dashboards: product.Dashboards,

		Environments: product.Environments,
	}

	cfg.Gates = mergeGates(global.Gates, service.Gates)

	if product.Federation != nil && cfg.Federation.RoutingURL == "" {
		// product-level federation settings only seed the routing URL
		// template when the service didn't set its own.
		cfg.FederationURLPattern = product.Federation.RouterDeployment
	}
	if cfg.Federation.RoutingURL != "" {
		cfg.FederationURLPattern = cfg.Federation.RoutingURL
	}

	if cfg.ServiceType == "" {
		cfg.ServiceType = ServiceTypeOther
	}
	if cfg.Database == "" {
		cfg.Database = DatabaseNone
	}
	if cfg.Migration.ActiveDeadlineSecs == 0 {
		cfg.Migration.ActiveDeadlineSecs = 600
	}
	if cfg.Migration.RequestsMemory == "" {
		cfg.Migration.RequestsMemory = "128Mi"
	}
	if cfg.Migration.LimitsMemory == "" {
		cfg.Migration.LimitsMemory = "256Mi"
	}
	if cfg.Migration.RequestsCPU == "" {
		cfg.Migration.RequestsCPU = "100m"
	}
	if cfg.Migration.LimitsCPU == "" {
		cfg.Migration.LimitsCPU = "500m"
	}
	if cfg.GitOps.Controller == "" {
		cfg.GitOps.Controller = GitOpsFlux
	}

	return cfg
}

// mergeGates applies service overrides onto the global gate defaults.
// GatesConfig has no "unset" sentinel for booleans, so FailOnError is
// always set to true (the original's deny-by-default posture); a
// fail_on_error value in the global or service config is not read. Skip
// flags are OR'd so a skip set at either level takes effect.
func mergeGates(global, service GatesConfig) GatesConfig {
	merged := GatesConfig{
		FailOnError:     true,
		SkipBackend:     global.SkipBackend || service.SkipBackend,
		SkipMigration:   global.SkipMigration || service.SkipMigration,
		SkipFrontend:    global.SkipFrontend || service.SkipFrontend,
		SkipIntegration: global.SkipIntegration || service.SkipIntegration,
		SkipE2E:         global.SkipE2E || service.SkipE2E,
	}
	return merged
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// ResolveEnvironment resolves an environment name or alias to its canonical
// Environment. Resolution is idempotent and terminal (§8 testable property
// 5): resolving an already-canonical name returns it unchanged, and a
// cycle in the alias graph is detected rather than looping forever. An
// alias declared by another environment is followed before a name match,
// so a name that is also another environment's alias resolves to that
// environment.
func (c *DeployConfig) ResolveEnvironment(name string) (Environment, error) {
	seen := map[string]bool{}
	current := name
	for {
		if seen[current] {
			return Environment{}, apperror.New(apperror.KindConfigInvalid, "environment alias cycle detected: "+current)
		}
		seen[current] = true

		found := false
		for _, e := range c.Environments {
			if e.Alias == current && e.Name != current {
				current = e.Name
				found = true
				break
			}
		}
		if found {
			continue
		}
		for _, e := range c.Environments {
			if e.Name == current {
				return e, nil
			}
		}
		return Environment{}, apperror.New(apperror.KindConfigInvalid, "unknown environment or alias: "+name)
	}
}

// DeploymentEnvironments implements §8 testable property 6:
// GetDeploymentEnvironments("all") returns exactly the configured
// environment_order; GetDeploymentEnvironments(<specific>) returns a
// single-element slice with that environment resolved.
func (c *DeployConfig) DeploymentEnvironments(requested string) ([]Environment, error) {
	if requested == "all" || requested == "" {
		if len(c.Release.EnvironmentOrder) == 0 {
			return nil, apperror.New(apperror.KindNoActiveEnvs, "no active environments")
		}
		envs := make([]Environment, 0, len(c.Release.EnvironmentOrder))
		for _, name := range c.Release.EnvironmentOrder {
			e, err := c.ResolveEnvironment(name)
			if err != nil {
				return nil, err
			}
			envs = append(envs, e)
		}
		return envs, nil
	}
	e, err := c.ResolveEnvironment(requested)
	if err != nil {
		return nil, err
	}
	return []Environment{e}, nil
}
