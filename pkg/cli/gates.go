package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pleme-io/releaseforge/pkg/config"
	"github.com/pleme-io/releaseforge/pkg/gate"
	"github.com/pleme-io/releaseforge/pkg/tool"
	"sigs.k8s.io/yaml"
)

// buildGatePlan assembles the gate list for one service, matching the
// G1-G14 table in §4.4: Backend/Frontend gates shell out to the
// service's own toolchain, Migration gates run the static checks in
// pkg/gate directly against the service's migration files.
func buildGatePlan(cfg *config.DeployConfig, adapter *tool.Adapter) gate.Plan {
	plan := gate.Plan{
		SkipBackend:     cfg.Gates.SkipBackend,
		SkipMigration:   cfg.Gates.SkipMigration,
		SkipFrontend:    cfg.Gates.SkipFrontend,
		SkipIntegration: cfg.Gates.SkipIntegration,
		SkipE2E:         cfg.Gates.SkipE2E,
	}

	run := func(toolName, dir string, args ...string) func(ctx context.Context) error {
		return func(ctx context.Context) error {
			_, err := adapter.Run(ctx, tool.Invocation{Tool: toolName, Args: args, Dir: dir})
			return err
		}
	}

	switch cfg.ServiceType {
	case config.ServiceTypeRust:
		dir := cfg.ServiceDir
		plan.Gates = append(plan.Gates,
			gate.Gate{ID: "G1", Name: "cargo check", Group: gate.GroupBackend, Run: run("cargo", dir, "check", "--all-targets")},
			gate.Gate{ID: "G2", Name: "cargo clippy", Group: gate.GroupBackend, Run: run("cargo", dir, "clippy", "--", "-D", "warnings")},
			gate.Gate{ID: "G3", Name: "cargo fmt --check", Group: gate.GroupBackend, Run: run("cargo", dir, "fmt", "--check")},
			gate.Gate{ID: "G4", Name: "cargo test", Group: gate.GroupBackend, Run: run("cargo", dir, "test")},
			gate.Gate{ID: "G5", Name: "schema export", Group: gate.GroupBackend, Run: run("cargo", dir, "run", "--bin", "schema-export")},
		)
	case config.ServiceTypeWeb:
		dir := cfg.ServiceDir
		plan.Gates = append(plan.Gates,
			gate.Gate{ID: "G9", Name: "generated-code drift", Group: gate.GroupFrontend, Run: run("npm", dir, "run", "codegen:check")},
			gate.Gate{ID: "G10", Name: "type check", Group: gate.GroupFrontend, Run: run("npm", dir, "run", "typecheck")},
			gate.Gate{ID: "G11", Name: "lint", Group: gate.GroupFrontend, Run: run("npm", dir, "run", "lint")},
			gate.Gate{ID: "G12", Name: "unit tests", Group: gate.GroupFrontend, Run: run("npm", dir, "test")},
		)
	}

	if cfg.Database != config.DatabaseNone {
		migrationsDir := filepath.Join(cfg.ServiceDir, "migrations")
		plan.Gates = append(plan.Gates,
			gate.Gate{ID: "G6", Name: "migration idempotency", Group: gate.GroupMigration, Run: runMigrationCheck(migrationsDir, checkIdempotency)},
			gate.Gate{ID: "G7", Name: "soft-delete compliance", Group: gate.GroupMigration, Run: runMigrationCheck(migrationsDir, checkSoftDelete)},
			gate.Gate{ID: "G8", Name: "schema migration safety", Group: gate.GroupMigration, Run: runMigrationCheck(migrationsDir, checkSchemaSafety)},
			gate.Gate{ID: "G8b", Name: "migration manifest completeness", Group: gate.GroupMigration, Run: runManifestCompletenessCheck(migrationsDir)},
		)
	}

	plan.Gates = append(plan.Gates,
		gate.Gate{ID: "G13", Name: "integration tests", Group: gate.GroupIntegration, Run: run("docker", cfg.ServiceDir, "compose", "-f", "docker-compose.integration.yml", "up", "--exit-code-from", "tests")},
		gate.Gate{ID: "G14", Name: "browser e2e", Group: gate.GroupE2E, Run: runE2E(adapter, cfg.ServiceDir)},
	)

	return plan
}

func runE2E(adapter *tool.Adapter, dir string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := adapter.Run(ctx, tool.Invocation{Tool: "npm", Args: []string{"run", "e2e"}, Dir: dir})
		cleanupErr := gate.E2ECleanup(ctx, adapter)
		if err != nil {
			return err
		}
		return cleanupErr
	}
}

type migrationCheckFunc func(file, content string) []gate.Issue

func checkIdempotency(file, content string) []gate.Issue { return gate.CheckIdempotency(file, content) }
func checkSoftDelete(file, content string) []gate.Issue {
	return gate.CheckSoftDeleteCompliance(file, content)
}
func checkSchemaSafety(file, content string) []gate.Issue {
	return gate.CheckSchemaMigrationSafety(file, content, gate.ClassificationSchemaOnly, false)
}

func runMigrationCheck(dir string, check migrationCheckFunc) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		var issues []gate.Issue
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			data, err := os.ReadFile(filepath.Join(dir, e.Name()))
			if err != nil {
				return err
			}
			issues = append(issues, check(e.Name(), string(data))...)
		}
		if len(issues) == 0 {
			return nil
		}
		return issuesError(issues)
	}
}

// manifestFileName is where a migrations directory declares each
// migration's risk classification. Only G8b (CheckManifestCompleteness)
// reads it; G8 checks every file as schema_only without sign-off, so
// CheckSchemaMigrationSafety's expand-contract exemption never applies.
const manifestFileName = "manifest.yaml"

// runManifestCompletenessCheck implements G8b: every migration file on
// disk must have a classification entry in migrations/manifest.yaml. A
// service with no manifest file at all is treated as not yet opted into
// classification tracking and is skipped rather than failed outright.
func runManifestCompletenessCheck(dir string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		manifest, ok, err := loadMigrationManifest(dir)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		var files []string
		for _, e := range entries {
			if e.IsDir() || e.Name() == manifestFileName {
				continue
			}
			files = append(files, e.Name())
		}
		issues := gate.CheckManifestCompleteness(files, manifest)
		if len(issues) == 0 {
			return nil
		}
		return issuesError(issues)
	}
}

func loadMigrationManifest(dir string) (map[string]gate.ManifestClassification, bool, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var manifest map[string]gate.ManifestClassification
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, false, err
	}
	return manifest, true, nil
}

func issuesError(issues []gate.Issue) error {
	lines := make([]string, len(issues))
	for i, issue := range issues {
		lines[i] = issue.String()
	}
	return fmt.Errorf("%d migration issue(s) found:\n%s", len(issues), strings.Join(lines, "\n"))
}
