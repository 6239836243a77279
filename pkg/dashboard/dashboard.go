// Package dashboard implements Phase 4's observability regeneration: it
// emits a GrafanaDashboard CRD per observed entity plus the
// kustomization.yaml that lists them, so FluxCD applies dashboards the
// same way it applies every other manifest. Grounded on
// original_source/cli/src/commands/dashboards.rs
// (generate_grafana_dashboard_crd, generate_kustomization,
// write_dashboards). It only writes files: it reads no environment
// variables and makes no Grafana API calls.
package dashboard

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Entity is one observed domain entity a dashboard gets generated for
// (a database table, a queue, a cache -- whatever the product's source
// metadata enumerates).
type Entity struct {
	Name    string
	Metrics []string
}

// Config controls where generated dashboards land and how they're
// labeled.
type Config struct {
	ProductName    string
	DashboardFolder string
	Namespace      string // defaults to "observability"
	OutputDir      string
}

func (c Config) namespace() string {
	if c.Namespace == "" {
		return "observability"
	}
	return c.Namespace
}

// DashboardJSON is the caller-supplied Grafana dashboard body (already
// rendered from a template or jsonnet, kept opaque here since its shape
// is Grafana's concern, not this package's).
type DashboardJSON map[string]any

// GrafanaDashboardCRD builds the FluxCD-applied GrafanaDashboard object
// for one entity, matching generate_grafana_dashboard_crd's shape.
func GrafanaDashboardCRD(name string, dashboardJSON DashboardJSON, cfg Config) map[string]any {
	return map[string]any{
		"apiVersion": "grafana.integreatly.org/v1beta1",
		"kind":       "GrafanaDashboard",
		"metadata": map[string]any{
			"name":      name,
			"namespace": cfg.namespace(),
			"labels": map[string]any{
				"app.kubernetes.io/name":      "grafana-dashboard",
				"app.kubernetes.io/component": "observability",
				"app.kubernetes.io/part-of":   cfg.ProductName,
				"grafana.integreatly.org/folder": cfg.DashboardFolder,
			},
		},
		"spec": map[string]any{
			"instanceSelector": map[string]any{
				"matchLabels": map[string]any{"dashboards": "grafana"},
			},
			"folder": cfg.DashboardFolder,
			"json":   dashboardJSON,
		},
	}
}

// Kustomization builds the kustomization.yaml content listing every
// generated dashboard file, sorted for deterministic output.
func Kustomization(dashboardNames []string) map[string]any {
	names := append([]string(nil), dashboardNames...)
	sort.Strings(names)
	resources := make([]string, len(names))
	for i, name := range names {
		resources[i] = name + ".yaml"
	}
	return map[string]any{
		"apiVersion": "kustomize.config.k8s.io/v1beta1",
		"kind":       "Kustomization",
		"resources":  resources,
		"commonLabels": map[string]any{
			"oac.nexus.io/generated": "true",
		},
	}
}

// Write renders each entity's CRD and the kustomization.yaml to
// cfg.OutputDir, overwriting any previous generation (the set of
// dashboards is fully regenerated each run, not incrementally patched).
func Write(cfg Config, dashboards map[string]DashboardJSON) ([]string, error) {
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating dashboard output dir: %w", err)
	}

	var names []string
	for name, dash := range dashboards {
		crd := GrafanaDashboardCRD(name, dash, cfg)
		data, err := yaml.Marshal(crd)
		if err != nil {
			return nil, fmt.Errorf("serializing dashboard %s: %w", name, err)
		}
		path := filepath.Join(cfg.OutputDir, name+".yaml")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("writing %s: %w", path, err)
		}
		names = append(names, name)
	}

	kustomization := Kustomization(names)
	data, err := yaml.Marshal(kustomization)
	if err != nil {
		return nil, fmt.Errorf("serializing kustomization.yaml: %w", err)
	}
	if err := os.WriteFile(filepath.Join(cfg.OutputDir, "kustomization.yaml"), data, 0o644); err != nil {
		return nil, fmt.Errorf("writing kustomization.yaml: %w", err)
	}

	sort.Strings(names)
	return names, nil
}

// PrunedDashboards reports which previously-generated dashboard files no
// longer correspond to a currently-observed entity, so the caller can
// delete them (check_pruned_dashboards's "dashboards that would be
// pruned" result).
func PrunedDashboards(outputDir string, currentEntities []string) ([]string, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	current := make(map[string]bool, len(currentEntities))
	for _, e := range currentEntities {
		current[e] = true
	}
	var pruned []string
	for _, e := range entries {
		if e.IsDir() || e.Name() == "kustomization.yaml" {
			continue
		}
		name := e.Name()[:len(e.Name())-len(filepath.Ext(e.Name()))]
		if !current[name] {
			pruned = append(pruned, name)
		}
	}
	sort.Strings(pruned)
	return pruned, nil
}
