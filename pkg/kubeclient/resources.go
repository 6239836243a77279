package kubeclient

import (
	"context"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/restmapper"
)

// ResolveGVR maps a GroupVersionKind to the GroupVersionResource the
// dynamic client needs, via the discovery-backed RESTMapper. Adapted from
// the teacher's utils.go (a hardcoded resourceMap) and configuration.go's
// discoveryClient.ServerGroups walk -- using the real RESTMapper instead of
// a hand-maintained table means CRDs (FluxCD Kustomization, ArgoCD
// Application, Istio VirtualService) resolve without per-kind entries.
func (c *Client) ResolveGVR(gvk schema.GroupVersionKind) (schema.GroupVersionResource, error) {
	groupResources, err := restmapper.GetAPIGroupResources(c.Discovery)
	if err != nil {
		return schema.GroupVersionResource{}, fmt.Errorf("discovering API group resources: %w", err)
	}
	mapper := restmapper.NewDiscoveryRESTMapper(groupResources)
	mapping, err := mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
	if err != nil {
		return schema.GroupVersionResource{}, fmt.Errorf("resolving %s: %w", gvk, err)
	}
	return mapping.Resource, nil
}

// Get fetches one resource as unstructured.
func (c *Client) Get(ctx context.Context, gvk schema.GroupVersionKind, namespace, name string) (*unstructured.Unstructured, error) {
	gvr, err := c.ResolveGVR(gvk)
	if err != nil {
		return nil, err
	}
	return c.Dynamic.Resource(gvr).Namespace(namespaceOrDefault(namespace)).Get(ctx, name, metav1.GetOptions{})
}

// List fetches resources matching labelSelector (empty means all).
func (c *Client) List(ctx context.Context, gvk schema.GroupVersionKind, namespace, labelSelector string) (*unstructured.UnstructuredList, error) {
	gvr, err := c.ResolveGVR(gvk)
	if err != nil {
		return nil, err
	}
	return c.Dynamic.Resource(gvr).Namespace(namespaceOrDefault(namespace)).List(ctx, metav1.ListOptions{LabelSelector: labelSelector})
}

// CreateOrUpdate applies obj: create if it does not exist, update
// (preserving resourceVersion) otherwise. Not called elsewhere in this
// repository: C7 uses ApplyJob and the router restart uses
// SetDeploymentAnnotation.
func (c *Client) CreateOrUpdate(ctx context.Context, obj *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	gvk := obj.GroupVersionKind()
	gvr, err := c.ResolveGVR(gvk)
	if err != nil {
		return nil, err
	}
	ri := c.Dynamic.Resource(gvr).Namespace(namespaceOrDefault(obj.GetNamespace()))

	created, err := ri.Create(ctx, obj, metav1.CreateOptions{})
	if err == nil {
		return created, nil
	}
	existing, getErr := ri.Get(ctx, obj.GetName(), metav1.GetOptions{})
	if getErr != nil {
		return nil, fmt.Errorf("creating %s/%s failed (%v) and it does not already exist (%v)", gvk.Kind, obj.GetName(), err, getErr)
	}
	obj.SetResourceVersion(existing.GetResourceVersion())
	return ri.Update(ctx, obj, metav1.UpdateOptions{})
}

// Delete removes a resource, ignoring not-found.
func (c *Client) Delete(ctx context.Context, gvk schema.GroupVersionKind, namespace, name string) error {
	gvr, err := c.ResolveGVR(gvk)
	if err != nil {
		return err
	}
	err = c.Dynamic.Resource(gvr).Namespace(namespaceOrDefault(namespace)).Delete(ctx, name, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("deleting %s/%s: %w", gvk.Kind, name, err)
	}
	return nil
}

// PatchMergeJSON applies a JSON merge patch without clobbering unrelated
// fields. Not called elsewhere in this repository; the supergraph-hash
// annotation is set through SetDeploymentAnnotation.
func (c *Client) PatchMergeJSON(ctx context.Context, gvk schema.GroupVersionKind, namespace, name string, patch []byte) (*unstructured.Unstructured, error) {
	gvr, err := c.ResolveGVR(gvk)
	if err != nil {
		return nil, err
	}
	return c.Dynamic.Resource(gvr).Namespace(namespaceOrDefault(namespace)).Patch(ctx, name, types.MergePatchType, patch, metav1.PatchOptions{})
}
