package kubeclient

import (
	"context"

	"k8s.io/apimachinery/pkg/runtime/schema"
)

var virtualServiceGVK = schema.GroupVersionKind{Group: "networking.istio.io", Version: "v1beta1", Kind: "VirtualService"}

// VirtualServiceWeights returns the route destination weights configured
// on a VirtualService, keyed by subset/host. Supplemented feature: the
// Rollout Verifier's optional Istio traffic-shift check (SPEC_FULL.md) uses
// this to confirm a canary's weight matches what the release expects,
// belt-and-suspenders on top of the Deployment-readiness check. Adapted
// from the teacher's istio.go (an HTTP call to /apis/v1/istio/...) onto the
// dynamic client reading the CRD directly -- no Istio-specific typed
// client is vendored, so this stays schemaless like the teacher's
// approach.
func (c *Client) VirtualServiceWeights(ctx context.Context, namespace, name string) (map[string]int64, error) {
	obj, err := c.Get(ctx, virtualServiceGVK, namespace, name)
	if err != nil {
		return nil, err
	}
	weights := map[string]int64{}
	httpRoutes, found, err := nestedSlice(obj.Object, "spec", "http")
	if err != nil || !found {
		return weights, nil
	}
	for _, route := range httpRoutes {
		routeMap, ok := route.(map[string]any)
		if !ok {
			continue
		}
		dests, ok := routeMap["route"].([]any)
		if !ok {
			continue
		}
		for _, d := range dests {
			destMap, ok := d.(map[string]any)
			if !ok {
				continue
			}
			dest, _ := destMap["destination"].(map[string]any)
			subset, _ := dest["subset"].(string)
			weight, _ := destMap["weight"].(int64)
			weights[subset] = weight
		}
	}
	return weights, nil
}

func nestedSlice(obj map[string]any, fields ...string) ([]any, bool, error) {
	cur := any(obj)
	for _, f := range fields {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false, nil
		}
		cur, ok = m[f]
		if !ok {
			return nil, false, nil
		}
	}
	slice, ok := cur.([]any)
	return slice, ok, nil
}
