package kubeclient

import (
	"context"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// PodsForSelector lists pods in namespace matching a label selector, the
// primitive the Rollout Verifier (C10) polls: "fetch the list of pods
// matching app={deployment}". Adapted from the teacher's pods.go, using
// the typed clientset directly instead of an HTTP dashboard endpoint.
func (c *Client) PodsForSelector(ctx context.Context, namespace, labelSelector string) ([]corev1.Pod, error) {
	list, err := c.Clientset.CoreV1().Pods(namespaceOrDefault(namespace)).List(ctx, metav1.ListOptions{LabelSelector: labelSelector})
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

// PodLogs returns the last tailLines lines of a pod's (optionally
// container-scoped) log, used by the Migration Job Controller (C7) on
// failure.
func (c *Client) PodLogs(ctx context.Context, namespace, podName, container string, tailLines int64) (string, error) {
	opts := &corev1.PodLogOptions{TailLines: &tailLines}
	if container != "" {
		opts.Container = container
	}
	req := c.Clientset.CoreV1().Pods(namespaceOrDefault(namespace)).GetLogs(podName, opts)
	stream, err := req.Stream(ctx)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		n, readErr := stream.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if readErr != nil {
			break
		}
	}
	return string(buf), nil
}
