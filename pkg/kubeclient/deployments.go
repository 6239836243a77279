package kubeclient

import (
	"context"
	"encoding/json"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
)

// GetDeployment fetches a Deployment by name, polled by the Rollout
// Verifier (C10) for its diagnostic snapshot (replicas total/updated/
// ready/available/unavailable, conditions).
func (c *Client) GetDeployment(ctx context.Context, namespace, name string) (*appsv1.Deployment, error) {
	return c.Clientset.AppsV1().Deployments(namespaceOrDefault(namespace)).Get(ctx, name, metav1.GetOptions{})
}

// SetDeploymentAnnotation sets spec.template.metadata.annotations[key] via
// a JSON strategic merge patch, forcing a rollout restart on change. This
// is the low-level primitive behind the Manifest Mutator's
// set_deployment_annotation when the deployment is live in-cluster (the
// GitOps-committed YAML is mutated separately by pkg/manifest); the
// Federation Coordinator (C8) calls this to stamp supergraph.hash.
func (c *Client) SetDeploymentAnnotation(ctx context.Context, namespace, name, key, value string) error {
	patch := map[string]any{
		"spec": map[string]any{
			"template": map[string]any{
				"metadata": map[string]any{
					"annotations": map[string]string{key: value},
				},
			},
		},
	}
	data, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("encoding annotation patch: %w", err)
	}
	_, err = c.Clientset.AppsV1().Deployments(namespaceOrDefault(namespace)).Patch(
		ctx, name, types.StrategicMergePatchType, data, metav1.PatchOptions{})
	return err
}
