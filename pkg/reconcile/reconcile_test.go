package reconcile

import (
	"context"
	"testing"
)

// fakeDriver records the order of Reconcile calls and lets a test
// pre-seed which phases exist/are ready.
type fakeDriver struct {
	existing    map[string]bool
	ready       map[string]bool
	reconciled  []string
	sourceCalls int
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{existing: map[string]bool{}, ready: map[string]bool{}}
}

func (f *fakeDriver) ReconcileSource(ctx context.Context) error {
	f.sourceCalls++
	return nil
}

func (f *fakeDriver) Exists(ctx context.Context, name string) (bool, error) {
	return f.existing[name], nil
}

func (f *fakeDriver) Ready(ctx context.Context, name string) (bool, error) {
	return f.ready[name], nil
}

func (f *fakeDriver) Reconcile(ctx context.Context, name string) error {
	f.reconciled = append(f.reconciled, name)
	return nil
}

func TestRunVisitsChainInOrderAndSkipsMissing(t *testing.T) {
	f := newFakeDriver()
	// root exists, and every phase except "databases", "bootstrap" and
	// "migrations" exists in this product's kustomization tree.
	f.existing["root"] = true
	for _, name := range []string{"init", "secrets", "governance", "app-prod"} {
		f.existing[name] = true
	}

	warnings, err := Run(context.Background(), f, "app-prod")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
	if f.sourceCalls != 1 {
		t.Fatalf("expected exactly one source reconcile, got %d", f.sourceCalls)
	}

	want := []string{"root", "init", "secrets", "governance", "app-prod"}
	if len(f.reconciled) != len(want) {
		t.Fatalf("reconciled = %v, want %v", f.reconciled, want)
	}
	for i, name := range want {
		if f.reconciled[i] != name {
			t.Errorf("reconciled[%d] = %q, want %q", i, f.reconciled[i], name)
		}
	}
}

func TestRunSkipsAlreadyReadyPhases(t *testing.T) {
	f := newFakeDriver()
	for _, name := range Chain[:len(Chain)-1] {
		f.existing[name] = true
		f.ready[name] = true
	}
	f.existing["root"] = true
	f.ready["root"] = true
	f.existing["app-staging"] = true
	f.ready["app-staging"] = false

	_, err := Run(context.Background(), f, "app-staging")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(f.reconciled) != 1 || f.reconciled[0] != "app-staging" {
		t.Fatalf("expected only app-staging to be reconciled, got %v", f.reconciled)
	}
}

func TestRunSkipsNonexistentPhasesSilently(t *testing.T) {
	f := newFakeDriver()
	f.existing["root"] = true
	f.existing["app-dev"] = true
	// none of init/secrets/databases/bootstrap/governance/migrations exist
	// for this smaller product; Run must not error on any of them.

	warnings, err := Run(context.Background(), f, "app-dev")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
	want := []string{"root", "app-dev"}
	if len(f.reconciled) != len(want) {
		t.Fatalf("reconciled = %v, want %v", f.reconciled, want)
	}
}
