package rollout

import (
	"context"
	"fmt"
	"strings"

	"github.com/pleme-io/releaseforge/pkg/kubeclient"
)

// diagnose assembles the diagnostic snapshot spec.md §4.10 requires:
// deployment replica counts and conditions, pod list with per-container
// states, recent events, and canned describe/logs commands an operator
// can paste in. It never fails the caller -- diagnostics are
// best-effort context, not a precondition for verification to proceed.
func (v *Verifier) diagnose(ctx context.Context, namespace, deployment, labelSelector string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- rollout diagnostics: %s/%s ---\n", namespace, deployment)

	if dep, err := v.Client.GetDeployment(ctx, namespace, deployment); err == nil {
		status := dep.Status
		fmt.Fprintf(&b, "replicas: total=%d updated=%d ready=%d available=%d unavailable=%d\n",
			status.Replicas, status.UpdatedReplicas, status.ReadyReplicas, status.AvailableReplicas, status.UnavailableReplicas)
		for _, cond := range status.Conditions {
			fmt.Fprintf(&b, "condition: %s=%s reason=%s message=%s\n", cond.Type, cond.Status, cond.Reason, cond.Message)
		}
	} else {
		fmt.Fprintf(&b, "deployment fetch error: %v\n", err)
	}

	pods, err := v.Client.PodsForSelector(ctx, namespace, labelSelector)
	if err != nil {
		fmt.Fprintf(&b, "pod list error: %v\n", err)
	}
	for _, pod := range pods {
		fmt.Fprintf(&b, "pod %s: phase=%s\n", pod.Name, pod.Status.Phase)
		for _, cs := range pod.Status.ContainerStatuses {
			state := "running"
			reason := ""
			if cs.State.Waiting != nil {
				state, reason = "waiting", cs.State.Waiting.Reason
			} else if cs.State.Terminated != nil {
				state, reason = "terminated", cs.State.Terminated.Reason
			}
			fmt.Fprintf(&b, "  container %s: image=%s restarts=%d state=%s reason=%s\n",
				cs.Name, cs.Image, cs.RestartCount, state, reason)
		}
	}

	events, err := v.Client.RecentEvents(ctx, namespace, "", 15)
	if err == nil {
		for _, ev := range events {
			fmt.Fprintf(&b, "event: %s %s %s: %s\n", ev.LastTimestamp, ev.Type, ev.Reason, ev.Message)
		}
	}

	if weights, err := v.Client.VirtualServiceWeights(ctx, namespace, deployment); err == nil && len(weights) > 0 {
		fmt.Fprintf(&b, "istio route weights:\n")
		for subset, weight := range weights {
			fmt.Fprintf(&b, "  %s: %d\n", subset, weight)
		}
	}

	if rolloutsClient, err := v.Client.NewRolloutsClient(); err == nil {
		if status, err := kubeclient.GetRolloutStatus(ctx, rolloutsClient, namespace, deployment); err == nil {
			fmt.Fprintf(&b, "argo rollout: phase=%s replicas=%d ready=%d image=%s\n",
				status.Phase, status.Replicas, status.ReadyReplicas, status.CurrentImage)
		}
	}

	fmt.Fprintf(&b, "operator commands:\n")
	fmt.Fprintf(&b, "  kubectl -n %s describe deployment %s\n", namespace, deployment)
	fmt.Fprintf(&b, "  kubectl -n %s logs -l %s --tail=100\n", namespace, labelSelector)

	return b.String()
}
