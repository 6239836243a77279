package kubeclient

import (
	"context"
	"testing"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func TestEnsureNamespaceIsIdempotent(t *testing.T) {
	client := &Client{Clientset: fake.NewSimpleClientset()}
	ctx := context.Background()

	t.Run("creates when absent", func(t *testing.T) {
		if err := client.EnsureNamespace(ctx, "ns-1"); err != nil {
			t.Fatalf("EnsureNamespace: %v", err)
		}
		exists, err := client.NamespaceExists(ctx, "ns-1")
		if err != nil || !exists {
			t.Fatalf("expected namespace to exist, exists=%v err=%v", exists, err)
		}
	})

	t.Run("no-ops when present", func(t *testing.T) {
		if err := client.EnsureNamespace(ctx, "ns-1"); err != nil {
			t.Fatalf("second EnsureNamespace: %v", err)
		}
	})
}

func TestPodsForSelector(t *testing.T) {
	client := &Client{Clientset: fake.NewSimpleClientset(&corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "api-abc123",
			Namespace: "myproduct-staging",
			Labels:    map[string]string{"app": "myproduct-api"},
		},
	})}

	pods, err := client.PodsForSelector(context.Background(), "myproduct-staging", "app=myproduct-api")
	if err != nil {
		t.Fatalf("PodsForSelector: %v", err)
	}
	if len(pods) != 1 || pods[0].Name != "api-abc123" {
		t.Fatalf("unexpected pods: %+v", pods)
	}
}
