package manifest

import (
	"strings"
	"testing"
)

const sampleDeployment = `apiVersion: apps/v1
kind: Deployment
metadata:
  name: hive-router
  namespace: federation
spec:
  template:
    metadata:
      annotations:
        existing: keep-me
    spec:
      containers:
        - name: router
          image: registry.example.com/hive-router:old-tag
          env:
            - name: LOG_LEVEL
              value: info
`

const sampleConfigMap = `apiVersion: v1
kind: ConfigMap
metadata:
  name: router-config
data:
  key: value
`

func TestSplitJoinRoundTrips(t *testing.T) {
	content := sampleDeployment + "\n---\n" + sampleConfigMap
	docs := SplitDocuments(content)
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if JoinDocuments(docs) != content {
		t.Fatalf("join(split(x)) != x")
	}
}

func TestSetImageTag(t *testing.T) {
	docs := SplitDocuments(sampleDeployment)
	out, err := SetImageTag(docs, "Deployment", "hive-router", "router", "registry.example.com/hive-router", "amd64-abc1234")
	if err != nil {
		t.Fatalf("SetImageTag: %v", err)
	}
	if !containsLine(out[0], "image: registry.example.com/hive-router:amd64-abc1234") {
		t.Fatalf("image not updated:\n%s", out[0])
	}
	if !containsLine(out[0], "name: LOG_LEVEL") {
		t.Fatalf("unrelated env var was dropped:\n%s", out[0])
	}
}

func TestSetImageTagUnknownContainer(t *testing.T) {
	docs := SplitDocuments(sampleDeployment)
	if _, err := SetImageTag(docs, "Deployment", "hive-router", "sidecar", "r", "t"); err == nil {
		t.Fatalf("expected error for unknown container")
	}
}

func TestSetEnvVarAddsNewKey(t *testing.T) {
	docs := SplitDocuments(sampleDeployment)
	out, err := SetEnvVar(docs, "Deployment", "hive-router", "router", "FEATURE_FLAG", "on")
	if err != nil {
		t.Fatalf("SetEnvVar: %v", err)
	}
	if !containsLine(out[0], "name: FEATURE_FLAG") || !containsLine(out[0], "value: \"on\"") && !containsLine(out[0], "value: on") {
		t.Fatalf("new env var not present:\n%s", out[0])
	}
}

func TestSetEnvVarUpdatesExistingKey(t *testing.T) {
	docs := SplitDocuments(sampleDeployment)
	out, err := SetEnvVar(docs, "Deployment", "hive-router", "router", "LOG_LEVEL", "debug")
	if err != nil {
		t.Fatalf("SetEnvVar: %v", err)
	}
	if !containsLine(out[0], "value: debug") {
		t.Fatalf("env var not updated:\n%s", out[0])
	}
}

func TestSetAnnotationPreservesExistingAnnotations(t *testing.T) {
	docs := SplitDocuments(sampleDeployment)
	out, err := SetAnnotation(docs, "Deployment", "hive-router", "supergraph.hash", "0123456789abcdef")
	if err != nil {
		t.Fatalf("SetAnnotation: %v", err)
	}
	if !containsLine(out[0], "supergraph.hash: 0123456789abcdef") {
		t.Fatalf("annotation not set:\n%s", out[0])
	}
	if !containsLine(out[0], "existing: keep-me") {
		t.Fatalf("existing annotation was dropped:\n%s", out[0])
	}
}

func TestEditUnaffectedDocumentsAreUntouched(t *testing.T) {
	docs := SplitDocuments(sampleDeployment + "\n---\n" + sampleConfigMap)
	out, err := SetAnnotation(docs, "Deployment", "hive-router", "supergraph.hash", "deadbeef")
	if err != nil {
		t.Fatalf("SetAnnotation: %v", err)
	}
	if out[1] != docs[1] {
		t.Fatalf("unrelated ConfigMap document was modified:\n%s", out[1])
	}
}

func containsLine(doc, substr string) bool {
	return strings.Contains(doc, substr)
}
