// Package rollout implements the Rollout Verifier (C10): polls the
// Kubernetes API until a deployment's pods run the expected image tag AND
// report ready, classifying container waiting reasons as transient or
// terminal. Grounded on original_source/cli/src/commands/flux.rs
// (verify_deployment_image, wait_for_deployment, is_terminal_failure,
// gather_deployment_diagnostics, Backoff).
package rollout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pleme-io/releaseforge/pkg/apperror"
	"github.com/pleme-io/releaseforge/pkg/kubeclient"
	"github.com/pleme-io/releaseforge/pkg/tool"
	corev1 "k8s.io/api/core/v1"
)

// terminalReasons is the exact set from §3 invariant 5 / §8 testable
// property 7.
var terminalReasons = map[string]bool{
	"ImagePullBackOff":             true,
	"ErrImagePull":                 true,
	"InvalidImageName":             true,
	"ErrImageNeverPull":            true,
	"CreateContainerConfigError":   true,
	"CrashLoopBackOff":             true,
}

// IsTerminalFailure implements §8 testable property 7 exactly.
func IsTerminalFailure(reason string) bool {
	return terminalReasons[reason]
}

// RolloutSucceeded implements §8 testable property 8: success requires the
// pod's image to contain the expected SHA suffix AND the Ready condition
// to be true -- neither alone suffices.
func RolloutSucceeded(image string, ready bool, expectedSHA string) bool {
	return strings.Contains(image, expectedSHA) && ready
}

// Verifier polls pod/deployment status for one (namespace, deployment,
// expected image SHA) triple.
type Verifier struct {
	Client          *kubeclient.Client
	DiagnosticEvery time.Duration
}

// NewVerifier returns a Verifier with the default 120s diagnostic cadence.
func NewVerifier(client *kubeclient.Client) *Verifier {
	return &Verifier{Client: client, DiagnosticEvery: 120 * time.Second}
}

// Status is what one poll observed about a single pod.
type Status struct {
	PodName       string
	Image         string
	Phase         corev1.PodPhase
	Ready         bool
	WaitingReason string
	WaitingMsg    string
}

func firstContainerStatus(pod corev1.Pod) (image string, ready bool, reason, msg string) {
	ready = false
	for _, cond := range pod.Status.Conditions {
		if cond.Type == corev1.PodReady && cond.Status == corev1.ConditionTrue {
			ready = true
		}
	}
	for _, cs := range pod.Status.ContainerStatuses {
		image = cs.Image
		if cs.State.Waiting != nil {
			reason = cs.State.Waiting.Reason
			msg = cs.State.Waiting.Message
			return
		}
	}
	return
}

// Verify polls until the first pod matching labelSelector runs an image
// containing expectedSHA and reports ready (success), a terminal waiting
// reason appears on that pod (fatal), or ctx is cancelled. Other pods are
// not inspected. There is no hard timeout by
// design (§9 open question: "the spec treats 'no hard timeout' as
// authoritative").
func (v *Verifier) Verify(ctx context.Context, namespace, deployment, labelSelector, expectedSHA string) error {
	backoff := tool.NewBackoff(2*time.Second, 30*time.Second)
	lastDiagnostic := time.Now().Add(-v.DiagnosticEvery)

	for {
		pods, err := v.Client.PodsForSelector(ctx, namespace, labelSelector)
		if err != nil {
			return apperror.Wrap(apperror.KindRolloutTerminal, err, "listing pods for "+deployment)
		}

		if len(pods) > 0 {
			pod := pods[0]
			image, ready, reason, msg := firstContainerStatus(pod)

			if IsTerminalFailure(reason) {
				diag := v.diagnose(ctx, namespace, deployment, labelSelector)
				return apperror.New(apperror.KindRolloutTerminal,
					fmt.Sprintf("%s: deployment %s pod %s is in terminal state %s: %s", reason, deployment, pod.Name, reason, msg)).
					WithDetails(diag)
			}

			if RolloutSucceeded(image, ready, expectedSHA) {
				return nil
			}
		}

		if time.Since(lastDiagnostic) >= v.DiagnosticEvery {
			_ = v.diagnose(ctx, namespace, deployment, labelSelector)
			lastDiagnostic = time.Now()
		}

		select {
		case <-ctx.Done():
			return apperror.Wrap(apperror.KindOperationalFailure, ctx.Err(), "rollout verification interrupted for "+deployment)
		case <-time.After(backoff.Next()):
		}
	}
}
