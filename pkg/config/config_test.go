package config

import (
	"testing"

	"github.com/spf13/afero"
)

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	if err := fs.MkdirAll(parentDir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func parentDir(path string) string {
	i := len(path) - 1
	for i >= 0 && path[i] != '/' {
		i--
	}
	if i < 0 {
		return "."
	}
	return path[:i]
}

func setupRepo(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/repo/.git/HEAD", "ref: refs/heads/main")
	writeFile(t, fs, "/repo/cli/deploy.yaml", `
host: h
org: o
project: p
`)
	writeFile(t, fs, "/repo/pkgs/products/myproduct/deploy.yaml", `
name: myproduct
environments:
  - name: staging
    cluster: staging-cluster
    rank: 0
    build: true
  - name: production
    cluster: prod-cluster
    rank: 1
    build: false
`)
	writeFile(t, fs, "/repo/pkgs/products/myproduct/deploy/api.yaml", `
name: api
type: rust
database: postgres
release:
  environment_order: ["staging", "production"]
`)
	return fs
}

func TestLoadForServiceMergePrecedence(t *testing.T) {
	fs := setupRepo(t)
	r := NewResolverWithFs(fs)

	cfg, err := r.LoadForService("/repo", "", "myproduct", "api", "staging")
	if err != nil {
		t.Fatalf("LoadForService: %v", err)
	}
	if cfg.Host != "h" || cfg.Org != "o" || cfg.Project != "p" {
		t.Fatalf("expected global fields to flow through, got %+v", cfg)
	}
	if cfg.ServiceType != ServiceTypeRust {
		t.Fatalf("expected service-level type to win, got %v", cfg.ServiceType)
	}
	if cfg.Database != DatabasePostgres {
		t.Fatalf("expected service-level database, got %v", cfg.Database)
	}
}

func TestRegistryURLTemplate(t *testing.T) {
	cfg := &DeployConfig{Host: "h", Org: "o", Project: "p", Product: "pr", Service: "s"}
	got := cfg.RegistryURL()
	want := "h/o/p/pr-s"
	if got != want {
		t.Fatalf("RegistryURL() = %q, want %q", got, want)
	}
}

func TestNamespaceTemplate(t *testing.T) {
	cfg := &DeployConfig{Product: "pr", Environment: "e"}
	got := cfg.KubernetesNamespace()
	want := "pr-e"
	if got != want {
		t.Fatalf("KubernetesNamespace() = %q, want %q", got, want)
	}
}

func TestLabelSelector(t *testing.T) {
	cfg := &DeployConfig{Product: "myproduct", Service: "api"}
	got := cfg.KubernetesLabelSelector()
	want := "app=myproduct-api,product=myproduct"
	if got != want {
		t.Fatalf("KubernetesLabelSelector() = %q, want %q", got, want)
	}
}

func TestResolveEnvironmentIdempotentAndTerminal(t *testing.T) {
	cfg := &DeployConfig{
		Environments: []Environment{
			{Name: "production-a", Alias: "prod", Cluster: "c1"},
			{Name: "staging", Cluster: "c2"},
		},
	}
	first, err := cfg.ResolveEnvironment("prod")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	second, err := cfg.ResolveEnvironment(first.Name)
	if err != nil {
		t.Fatalf("resolve again: %v", err)
	}
	if first.Name != second.Name {
		t.Fatalf("resolve(resolve(x)) != resolve(x): %q vs %q", first.Name, second.Name)
	}

	cyclic := &DeployConfig{Environments: []Environment{
		{Name: "a", Alias: "b"},
		{Name: "b", Alias: "a"},
	}}
	if _, err := cyclic.ResolveEnvironment("a"); err == nil {
		t.Fatalf("expected cycle detection error")
	}
}

func TestDeploymentEnvironmentsOrdering(t *testing.T) {
	cfg := &DeployConfig{
		Environments: []Environment{
			{Name: "staging", Cluster: "c1"},
			{Name: "production", Cluster: "c2"},
		},
		Release: ReleaseConfig{EnvironmentOrder: []string{"staging", "production"}},
	}
	all, err := cfg.DeploymentEnvironments("all")
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 2 || all[0].Name != "staging" || all[1].Name != "production" {
		t.Fatalf("unexpected order: %+v", all)
	}

	specific, err := cfg.DeploymentEnvironments("production")
	if err != nil {
		t.Fatalf("specific: %v", err)
	}
	if len(specific) != 1 || specific[0].Name != "production" {
		t.Fatalf("unexpected specific result: %+v", specific)
	}

	empty := &DeployConfig{}
	if _, err := empty.DeploymentEnvironments("all"); err == nil {
		t.Fatalf("expected error for no active environments")
	}
}
