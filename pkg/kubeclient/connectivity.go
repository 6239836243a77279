package kubeclient

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/remotecommand"
)

// CheckServiceConnectivity resolves "service:port" DNS-wise and, if that
// succeeds, execs a curl probe from a short-lived pod. No gate or other
// component calls it; the integration group (G13) runs docker compose
// only. Adapted from the teacher's connectivity.go, trading its
// HTTP-dashboard `MakeAPIRequest` calls for direct clientset use.
func (c *Client) CheckServiceConnectivity(ctx context.Context, namespace, serviceAddr string) error {
	host, port, err := splitServiceAddr(serviceAddr)
	if err != nil {
		return err
	}

	resolver := net.Resolver{}
	if _, err := resolver.LookupHost(ctx, host); err != nil {
		return fmt.Errorf("dns lookup for %s failed: %w", host, err)
	}

	ns := namespaceOrDefault(namespace)
	podName := "connectivity-probe-" + strconv.FormatInt(time.Now().UnixNano(), 36)
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: podName, Namespace: ns},
		Spec: corev1.PodSpec{
			RestartPolicy: corev1.RestartPolicyNever,
			Containers: []corev1.Container{{
				Name:    "probe",
				Image:   "curlimages/curl:8.9.1",
				Command: []string{"sleep", "120"},
			}},
		},
	}
	if _, err := c.Clientset.CoreV1().Pods(ns).Create(ctx, pod, metav1.CreateOptions{}); err != nil {
		return fmt.Errorf("creating probe pod: %w", err)
	}
	defer c.Clientset.CoreV1().Pods(ns).Delete(context.Background(), podName, metav1.DeleteOptions{})

	if err := c.waitForPodRunning(ctx, ns, podName, 60*time.Second); err != nil {
		return err
	}

	url := fmt.Sprintf("http://%s:%s", host, port)
	out, stderr, err := c.execInPod(ctx, ns, podName, "probe", []string{"curl", "-sS", "-o", "/dev/null", "-w", "%{http_code}", url})
	if err != nil {
		return fmt.Errorf("connectivity probe to %s failed: %w (stderr: %s)", serviceAddr, err, stderr)
	}
	_ = out
	return nil
}

func splitServiceAddr(addr string) (host, port string, err error) {
	parts := strings.SplitN(addr, ":", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("expected service:port, got %q", addr)
	}
	return parts[0], parts[1], nil
}

func (c *Client) waitForPodRunning(ctx context.Context, namespace, name string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		pod, err := c.Clientset.CoreV1().Pods(namespace).Get(ctx, name, metav1.GetOptions{})
		if err == nil && pod.Status.Phase == corev1.PodRunning {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return fmt.Errorf("pod %s did not reach Running within %s", name, timeout)
}

func (c *Client) execInPod(ctx context.Context, namespace, podName, container string, command []string) (stdout, stderr string, err error) {
	req := c.Clientset.CoreV1().RESTClient().Post().
		Resource("pods").
		Name(podName).
		Namespace(namespace).
		SubResource("exec").
		VersionedParams(&corev1.PodExecOptions{
			Container: container,
			Command:   command,
			Stdout:    true,
			Stderr:    true,
		}, scheme.ParameterCodec)

	executor, err := remotecommand.NewSPDYExecutor(c.RestConfig, "POST", req.URL())
	if err != nil {
		return "", "", err
	}
	var outBuf, errBuf bytes.Buffer
	err = executor.StreamWithContext(ctx, remotecommand.StreamOptions{Stdout: &outBuf, Stderr: &errBuf})
	return outBuf.String(), errBuf.String(), err
}
