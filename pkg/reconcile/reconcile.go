// Package reconcile implements the Reconciliation Driver (C9): forces the
// GitOps controller to fetch the just-pushed commit and cascade through a
// fixed dependency-ordered chain of kustomizations. Grounded on
// original_source/cli/src/commands/flux.rs (reconcile, reconcile_product_chain).
package reconcile

import (
	"context"
	"fmt"
)

// Chain is the fixed, totally-ordered phase list from §3 invariant 4 /
// §8 testable property 10. The last entry is filled in with the bare
// product-env kustomization name by Driver.ReconcileChain.
var Chain = []string{"init", "secrets", "databases", "bootstrap", "governance", "migrations", ""}

// Driver is implemented by the FluxCD and ArgoCD backends (supplemented
// feature: ArgoCD as an alternate GitOps controller).
type Driver interface {
	// ReconcileSource forces a fetch of the latest git commit.
	ReconcileSource(ctx context.Context) error
	// Exists reports whether the named kustomization exists yet.
	Exists(ctx context.Context, name string) (bool, error)
	// Ready reports whether the named kustomization has already reconciled.
	Ready(ctx context.Context, name string) (bool, error)
	// Reconcile requests a reconcile of the named kustomization.
	Reconcile(ctx context.Context, name string) error
}

// Run executes C9's algorithm: reconcile the git source, then the root
// kustomization, then walk Chain in order, skipping phases that don't
// exist yet and phases that are already ready. A reconcile failure is a
// warning here (logged via the returned []string), not fatal -- a later
// verification step (C10) catches any unrecovered failure, matching
// spec.md §4.9 step 3.
func Run(ctx context.Context, d Driver, productEnvKustomization string) (warnings []string, err error) {
	if err := d.ReconcileSource(ctx); err != nil {
		return nil, fmt.Errorf("reconciling git source: %w", err)
	}
	if err := reconcileIfNeeded(ctx, d, "root", &warnings); err != nil {
		return warnings, err
	}

	phases := make([]string, len(Chain))
	copy(phases, Chain)
	phases[len(phases)-1] = productEnvKustomization

	for _, phase := range phases {
		exists, err := d.Exists(ctx, phase)
		if err != nil {
			return warnings, fmt.Errorf("checking existence of %s: %w", phase, err)
		}
		if !exists {
			continue
		}
		ready, err := d.Ready(ctx, phase)
		if err != nil {
			return warnings, fmt.Errorf("checking readiness of %s: %w", phase, err)
		}
		if ready {
			continue
		}
		if err := d.Reconcile(ctx, phase); err != nil {
			warnings = append(warnings, fmt.Sprintf("reconcile of %s returned an error: %v", phase, err))
		}
	}
	return warnings, nil
}

func reconcileIfNeeded(ctx context.Context, d Driver, name string, warnings *[]string) error {
	ready, err := d.Ready(ctx, name)
	if err != nil {
		return fmt.Errorf("checking readiness of %s: %w", name, err)
	}
	if ready {
		return nil
	}
	if err := d.Reconcile(ctx, name); err != nil {
		*warnings = append(*warnings, fmt.Sprintf("reconcile of %s returned an error: %v", name, err))
	}
	return nil
}
