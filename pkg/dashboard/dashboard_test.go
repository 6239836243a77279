package dashboard

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGrafanaDashboardCRDShape(t *testing.T) {
	cfg := Config{ProductName: "acme", DashboardFolder: "acme-dashboards"}
	crd := GrafanaDashboardCRD("orders", DashboardJSON{"title": "Orders"}, cfg)
	if crd["kind"] != "GrafanaDashboard" {
		t.Fatalf("unexpected kind: %v", crd["kind"])
	}
	meta := crd["metadata"].(map[string]any)
	if meta["name"] != "orders" || meta["namespace"] != "observability" {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
}

func TestKustomizationListsResourcesSorted(t *testing.T) {
	k := Kustomization([]string{"zebra", "alpha", "mid"})
	resources := k["resources"].([]string)
	want := []string{"alpha.yaml", "mid.yaml", "zebra.yaml"}
	if len(resources) != len(want) {
		t.Fatalf("unexpected resources: %v", resources)
	}
	for i := range want {
		if resources[i] != want[i] {
			t.Fatalf("resources[%d] = %q, want %q", i, resources[i], want[i])
		}
	}
}

func TestWriteProducesOneFilePerDashboardPlusKustomization(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{ProductName: "acme", DashboardFolder: "acme", OutputDir: dir}
	names, err := Write(cfg, map[string]DashboardJSON{
		"orders": {"title": "Orders"},
		"users":  {"title": "Users"},
	})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 dashboard names, got %v", names)
	}
	for _, name := range []string{"orders.yaml", "users.yaml", "kustomization.yaml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s to exist: %v", name, err)
		}
	}
}

func TestPrunedDashboardsDetectsStaleFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{OutputDir: dir}
	if _, err := Write(cfg, map[string]DashboardJSON{"orders": {}, "stale_entity": {}}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	pruned, err := PrunedDashboards(dir, []string{"orders"})
	if err != nil {
		t.Fatalf("PrunedDashboards: %v", err)
	}
	if len(pruned) != 1 || pruned[0] != "stale_entity" {
		t.Fatalf("expected [stale_entity], got %v", pruned)
	}
}
