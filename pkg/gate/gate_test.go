package gate

import (
	"context"
	"errors"
	"testing"
)

func passGate(id string, group Group) Gate {
	return Gate{ID: id, Name: id, Group: group, Run: func(ctx context.Context) error { return nil }}
}

func failGate(id string, group Group) Gate {
	return Gate{ID: id, Name: id, Group: group, Run: func(ctx context.Context) error { return errors.New("boom") }}
}

func TestRunAllPassing(t *testing.T) {
	plan := Plan{Gates: []Gate{
		passGate("G1", GroupBackend),
		passGate("G6", GroupMigration),
		passGate("G9", GroupFrontend),
		passGate("G13", GroupIntegration),
		passGate("G14", GroupE2E),
	}}
	summary := Run(context.Background(), plan, true)
	if !summary.Ok() {
		t.Fatalf("expected all gates to pass, failed=%v", summary.Failed)
	}
	if len(summary.Passed) != 5 {
		t.Fatalf("expected 5 passed gates, got %d", len(summary.Passed))
	}
}

func TestSkipSemanticsDisabledGroupNeverAppearsPassedOrFailed(t *testing.T) {
	plan := Plan{
		Gates: []Gate{
			passGate("G1", GroupBackend), passGate("G2", GroupBackend),
			passGate("G3", GroupBackend), passGate("G4", GroupBackend), passGate("G5", GroupBackend),
		},
		SkipBackend: true,
	}
	summary := Run(context.Background(), plan, true)
	if len(summary.Passed) != 0 || len(summary.Failed) != 0 {
		t.Fatalf("expected no passed/failed entries for a skipped group, got passed=%v failed=%v", summary.Passed, summary.Failed)
	}
	if len(summary.Skipped) != 5 {
		t.Fatalf("expected 5 skipped gates, got %d", len(summary.Skipped))
	}
	for _, r := range summary.Skipped {
		if r.Reason == "" {
			t.Errorf("expected a skip reason for %s", r.ID)
		}
	}
}

func TestSequentialGroupsSkippedAfterParallelFailureWithFailOnError(t *testing.T) {
	plan := Plan{Gates: []Gate{
		failGate("G1", GroupBackend),
		passGate("G13", GroupIntegration),
		passGate("G14", GroupE2E),
	}}
	summary := Run(context.Background(), plan, true)
	if len(summary.Failed) != 1 {
		t.Fatalf("expected exactly one failure, got %v", summary.Failed)
	}
	if len(summary.Skipped) != 2 {
		t.Fatalf("expected G13/G14 to be skipped after a fail_on_error failure, got %v", summary.Skipped)
	}
}

func TestGroupStopsAtFirstFailureWhenFailOnError(t *testing.T) {
	var ranSecond bool
	gates := []Gate{
		failGate("G1", GroupBackend),
		{ID: "G2", Group: GroupBackend, Run: func(ctx context.Context) error { ranSecond = true; return nil }},
	}
	results := runGroup(context.Background(), gates, true)
	if len(results) != 1 {
		t.Fatalf("expected only the first gate to run, got %d results", len(results))
	}
	if ranSecond {
		t.Fatalf("expected the second gate to be skipped after a fail_on_error failure")
	}
}

func TestCheckIdempotencyFlagsUnguardedDDL(t *testing.T) {
	content := "CREATE TABLE users (id int);\nCREATE TABLE IF NOT EXISTS accounts (id int);\nCREATE INDEX idx_users ON users(id);\n"
	issues := CheckIdempotency("001_init.sql", content)
	if len(issues) != 2 {
		t.Fatalf("expected 2 issues, got %d: %v", len(issues), issues)
	}
	if issues[0].Line != 1 || issues[1].Line != 3 {
		t.Fatalf("unexpected line numbers: %+v", issues)
	}
}

func TestCheckSoftDeleteComplianceAllowsSystemTables(t *testing.T) {
	content := "DELETE FROM orders WHERE id = 1;\nDELETE FROM schema_migrations WHERE version = 1;\nTRUNCATE invoices;\n"
	issues := CheckSoftDeleteCompliance("002_cleanup.sql", content)
	if len(issues) != 2 {
		t.Fatalf("expected 2 issues (orders, invoices), got %d: %v", len(issues), issues)
	}
}

func TestCheckSchemaMigrationSafetyExemptsSignedOffExpandContract(t *testing.T) {
	content := "ALTER TABLE users DROP COLUMN legacy_field;\n"
	issues := CheckSchemaMigrationSafety("003_drop.sql", content, ClassificationSchemaOnly, false)
	if len(issues) != 1 {
		t.Fatalf("expected 1 issue without sign-off, got %d", len(issues))
	}
	issues = CheckSchemaMigrationSafety("003_drop.sql", content, ClassificationSchemaAndData, true)
	if len(issues) != 0 {
		t.Fatalf("expected no issues once signed off as schema_and_data, got %d: %v", len(issues), issues)
	}
}

func TestCheckSchemaMigrationSafetyRequiresConcurrentIndex(t *testing.T) {
	unsafe := CheckSchemaMigrationSafety("x", "CREATE INDEX idx ON t(c);", ClassificationSchemaOnly, false)
	if len(unsafe) != 1 {
		t.Fatalf("expected 1 issue for a non-concurrent index, got %d", len(unsafe))
	}
	safe := CheckSchemaMigrationSafety("x", "CREATE INDEX CONCURRENTLY idx ON t(c);", ClassificationSchemaOnly, false)
	if len(safe) != 0 {
		t.Fatalf("expected no issue for a concurrent index, got %d: %v", len(safe), safe)
	}
}

func TestCheckManifestCompletenessFlagsMissingEntries(t *testing.T) {
	manifest := map[string]ManifestClassification{"001_init.sql": ClassificationSchemaOnly}
	issues := CheckManifestCompleteness([]string{"001_init.sql", "002_cleanup.sql"}, manifest)
	if len(issues) != 1 || issues[0].File != "002_cleanup.sql" {
		t.Fatalf("unexpected issues: %+v", issues)
	}
}
