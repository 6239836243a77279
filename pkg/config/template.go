package config

import "strings"

// defaultRegistryPattern and defaultNamespacePattern match §8 testable
// properties 2 and 3: host/org/project/product/service -> h/o/p/pr-s;
// product/environment -> pr-e.
const (
	defaultRegistryPattern  = "{host}/{organization}/{project}/{product}-{service}"
	defaultNamespacePattern = "{product}-{environment}"
)

// templateVars is the full placeholder set DeployConfig templates may use.
type templateVars struct {
	Host         string
	Organization string
	Project      string
	Product      string
	Service      string
	Environment  string
	Cluster      string
	Protocol     string
	Port         string
}

// render replaces every {placeholder} in pattern with the matching field of
// vars. Unknown placeholders are left verbatim so callers can detect a
// misconfigured pattern (validation step checks for at least one known
// placeholder, not that all are known).
func render(pattern string, vars templateVars) string {
	replacer := strings.NewReplacer(
		"{host}", vars.Host,
		"{organization}", vars.Organization,
		"{org}", vars.Organization,
		"{project}", vars.Project,
		"{product}", vars.Product,
		"{service}", vars.Service,
		"{environment}", vars.Environment,
		"{env}", vars.Environment,
		"{cluster}", vars.Cluster,
		"{protocol}", vars.Protocol,
		"{port}", vars.Port,
	)
	return replacer.Replace(pattern)
}

// RegistryURL renders the configured (or default) registry URL pattern.
func (c *DeployConfig) RegistryURL() string {
	pattern := c.RegistryURLPattern
	if pattern == "" {
		pattern = defaultRegistryPattern
	}
	return render(pattern, templateVars{
		Host:         c.Host,
		Organization: c.Org,
		Project:      c.Project,
		Product:      c.Product,
		Service:      c.Service,
	})
}

// KubernetesNamespace renders the configured (or default) namespace
// pattern for the resolved environment.
func (c *DeployConfig) KubernetesNamespace() string {
	pattern := c.NamespacePattern
	if pattern == "" {
		pattern = defaultNamespacePattern
	}
	return render(pattern, templateVars{
		Product:     c.Product,
		Environment: c.Environment,
	})
}

// KubernetesLabelSelector is the selector the Rollout Verifier (C10) uses
// to find a deployment's pods, e.g. "app=myproduct-api,product=myproduct".
func (c *DeployConfig) KubernetesLabelSelector() string {
	return "app=" + c.Product + "-" + c.Service + ",product=" + c.Product
}

// FederationRoutingURL renders the service's federation routing URL
// pattern, if federation is enabled.
func (c *DeployConfig) FederationRoutingURL() string {
	return render(c.FederationURLPattern, templateVars{
		Product:     c.Product,
		Service:     c.Service,
		Environment: c.Environment,
		Cluster:     c.clusterFor(c.Environment),
		Protocol:    c.Protocol,
	})
}

func (c *DeployConfig) clusterFor(envName string) string {
	for _, e := range c.Environments {
		if e.Name == envName {
			return e.Cluster
		}
	}
	return ""
}
