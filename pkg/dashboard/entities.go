package dashboard

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var (
	observeEntityRe = regexp.MustCompile(`(?i)observe\s*\(\s*entity\s*=\s*"([^"]+)"`)
	tableNameRe     = regexp.MustCompile(`(?i)table_name\s*=\s*"([^"]+)"`)
)

// ScanEntities walks sourceDir for observed-entity annotations, grounded on
// original_source/cli/src/commands/dashboards.rs's scan_entities: an
// observe(entity = "...") attribute names an entity directly, and a
// table_name = "..." annotation (the original's SeaORM model convention)
// is singularized into one. A missing or unreadable sourceDir yields zero
// entities rather than an error -- a config-only service with no
// instrumented backend is a valid input, not a failure.
func ScanEntities(sourceDir string) ([]Entity, error) {
	if sourceDir == "" {
		return nil, nil
	}
	if _, err := os.Stat(sourceDir); err != nil {
		return nil, nil
	}

	seen := make(map[string]bool)
	var entities []Entity
	record := func(name string) {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		entities = append(entities, Entity{
			Name:    name,
			Metrics: []string{"operations_total", "operation_duration_seconds"},
		})
	}

	err := filepath.WalkDir(sourceDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() {
			return nil
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		content := string(data)
		for _, m := range observeEntityRe.FindAllStringSubmatch(content, -1) {
			record(m[1])
		}
		for _, m := range tableNameRe.FindAllStringSubmatch(content, -1) {
			record(strings.TrimSuffix(m[1], "s"))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entities, func(i, j int) bool { return entities[i].Name < entities[j].Name })
	return entities, nil
}

// BuildDashboards renders one DashboardJSON per observed entity plus an
// overview dashboard rolling them up, matching the panel layout of
// generate_entity_dashboard/generate_overview_dashboard (operations rate,
// p95 latency, error count, a throughput roll-up across all entities).
func BuildDashboards(entities []Entity, cfg Config) map[string]DashboardJSON {
	dashboards := make(map[string]DashboardJSON, len(entities)+1)
	prefix := cfg.ProductName

	for _, e := range entities {
		uid := fmt.Sprintf("%s-entity-%s", cfg.ProductName, e.Name)
		dashboards[uid] = DashboardJSON{
			"title": fmt.Sprintf("%s: %s Operations", cfg.DashboardFolder, strings.ToUpper(e.Name)),
			"uid":   uid,
			"tags":  []string{cfg.ProductName, "entity", e.Name},
			"panels": []map[string]any{
				{
					"title": e.Name + " Operations Rate",
					"type":  "timeseries",
					"targets": []map[string]any{{
						"expr": fmt.Sprintf("sum(rate(%s_%s_operations_total[5m])) by (operation)", prefix, e.Name),
					}},
				},
				{
					"title": e.Name + " Operation Latency (p95)",
					"type":  "timeseries",
					"targets": []map[string]any{{
						"expr": fmt.Sprintf("histogram_quantile(0.95, sum(rate(%s_%s_operation_duration_seconds_bucket[5m])) by (le, operation))", prefix, e.Name),
					}},
				},
				{
					"title": e.Name + " Errors (1h)",
					"type":  "stat",
					"targets": []map[string]any{{
						"expr": fmt.Sprintf(`sum(increase(%s_%s_operations_total{status="error"}[1h]))`, prefix, e.Name),
					}},
				},
			},
			"schemaVersion": 39,
			"refresh":       "30s",
		}
	}

	if len(entities) == 0 {
		return dashboards
	}

	panels := []map[string]any{{
		"title": "Total Throughput",
		"type":  "stat",
		"targets": []map[string]any{{
			"expr": fmt.Sprintf("sum(rate(%s_function_calls_total[5m]))", prefix),
		}},
	}}
	tags := []string{cfg.ProductName, "overview"}
	for _, e := range entities {
		panels = append(panels, map[string]any{
			"title": e.Name + " ops/s",
			"type":  "stat",
			"targets": []map[string]any{{
				"expr": fmt.Sprintf("sum(rate(%s_%s_operations_total[5m]))", prefix, e.Name),
			}},
		})
	}
	uid := cfg.ProductName + "-entity-overview"
	dashboards[uid] = DashboardJSON{
		"title":         fmt.Sprintf("%s: Entity Overview", cfg.DashboardFolder),
		"uid":           uid,
		"tags":          tags,
		"panels":        panels,
		"schemaVersion": 39,
		"refresh":       "30s",
	}
	return dashboards
}
