package kubeclient

import (
	"context"
	"sort"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// RecentEvents lists the most recent events in namespace, newest first,
// truncated to limit -- used by the Rollout Verifier's diagnostic snapshot
// (C10, "last ~10 deployment events, last ~15 related pod events").
// Adapted from the teacher's events.go (previously an HTTP call to a
// dashboard endpoint) onto the real CoreV1().Events() client.
func (c *Client) RecentEvents(ctx context.Context, namespace, fieldSelector string, limit int) ([]corev1.Event, error) {
	list, err := c.Clientset.CoreV1().Events(namespaceOrDefault(namespace)).List(ctx, metav1.ListOptions{FieldSelector: fieldSelector})
	if err != nil {
		return nil, err
	}
	items := list.Items
	sort.Slice(items, func(i, j int) bool {
		return items[i].LastTimestamp.After(items[j].LastTimestamp.Time)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}
