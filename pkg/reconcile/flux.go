package reconcile

import (
	"context"
	"strings"

	"github.com/pleme-io/releaseforge/pkg/tool"
)

// FluxDriver is the default GitOps backend (spec.md §6: gitops.controller
// defaults to "flux"). It shells out to the flux and kubectl CLIs via the
// External Tool Adapter, matching the teacher's exec-wrapper pattern for
// every cluster-affecting CLI call.
type FluxDriver struct {
	Adapter   *tool.Adapter
	Namespace string
	SourceRef string // the GitRepository source object name
}

// NewFluxDriver returns a FluxDriver targeting the flux-system namespace
// convention, reconciling the given GitRepository source.
func NewFluxDriver(adapter *tool.Adapter, namespace, sourceRef string) *FluxDriver {
	return &FluxDriver{Adapter: adapter, Namespace: namespace, SourceRef: sourceRef}
}

func (f *FluxDriver) ReconcileSource(ctx context.Context) error {
	_, err := f.Adapter.Run(ctx, tool.Invocation{
		Tool: "flux",
		Args: []string{"reconcile", "source", "git", f.SourceRef, "-n", f.Namespace},
	})
	return err
}

func (f *FluxDriver) Exists(ctx context.Context, name string) (bool, error) {
	_, err := f.Adapter.Run(ctx, tool.Invocation{
		Tool: "kubectl",
		Args: []string{"get", "kustomization", name, "-n", f.Namespace},
	})
	if err == nil {
		return true, nil
	}
	if strings.Contains(err.Error(), "not found") || strings.Contains(err.Error(), "NotFound") {
		return false, nil
	}
	return false, err
}

func (f *FluxDriver) Ready(ctx context.Context, name string) (bool, error) {
	result, err := f.Adapter.Run(ctx, tool.Invocation{
		Tool: "kubectl",
		Args: []string{"get", "kustomization", name, "-n", f.Namespace,
			"-o", "jsonpath={.status.conditions[?(@.type==\"Ready\")].status}"},
	})
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(result.Stdout) == "True", nil
}

func (f *FluxDriver) Reconcile(ctx context.Context, name string) error {
	_, err := f.Adapter.Run(ctx, tool.Invocation{
		Tool: "flux",
		Args: []string{"reconcile", "kustomization", name, "-n", f.Namespace},
	})
	return err
}
