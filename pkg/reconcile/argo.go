package reconcile

import (
	"context"

	"github.com/pleme-io/releaseforge/pkg/kubeclient"
)

// ArgoDriver adapts kubeclient.ArgoClient to the Driver interface so
// products with gitops.controller: argocd reconcile through the same C9
// chain-traversal algorithm as flux products.
type ArgoDriver struct {
	Client *kubeclient.ArgoClient
	// Root is the ArgoCD Application name representing the product's root
	// app-of-apps; ReconcileSource syncs it to pick up the new commit.
	Root string
}

func NewArgoDriver(client *kubeclient.ArgoClient, root string) *ArgoDriver {
	return &ArgoDriver{Client: client, Root: root}
}

func (a *ArgoDriver) ReconcileSource(ctx context.Context) error {
	return a.Client.Sync(a.Root)
}

// Exists reports whether the named Application is registered. ArgoCD has
// no separate "exists" probe; GetApplication erroring is treated as
// nonexistent, matching the flux driver's not-found-is-not-fatal contract.
func (a *ArgoDriver) Exists(ctx context.Context, name string) (bool, error) {
	_, err := a.Client.GetApplication(name)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (a *ArgoDriver) Ready(ctx context.Context, name string) (bool, error) {
	return a.Client.Ready(name)
}

func (a *ArgoDriver) Reconcile(ctx context.Context, name string) error {
	return a.Client.Sync(name)
}
