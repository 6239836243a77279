package kubeclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// ArgoClient talks to an ArgoCD API server. It is the alternate GitOps
// driver backend (pkg/reconcile.ArgoDriver) for products that set
// gitops.controller: argocd instead of the default flux.
//
// Adapted from the teacher's pkg/kubernetes/argocd.go, which hardcoded a
// server URL and a bearer token as package-level variables. Those
// constants are dropped entirely: ServerURL and AuthToken are required
// constructor arguments, sourced by the caller from ARGOCD_SERVER and
// ARGOCD_AUTH_TOKEN (spec.md §6's environment-variable credential model).
type ArgoClient struct {
	ServerURL string
	AuthToken string
	Namespace string
	http      *http.Client
}

// NewArgoClientFromEnv builds an ArgoClient from ARGOCD_SERVER and
// ARGOCD_AUTH_TOKEN, failing fast if either is unset rather than falling
// back to a baked-in default.
func NewArgoClientFromEnv(namespace string) (*ArgoClient, error) {
	server := os.Getenv("ARGOCD_SERVER")
	token := os.Getenv("ARGOCD_AUTH_TOKEN")
	if server == "" || token == "" {
		return nil, fmt.Errorf("ARGOCD_SERVER and ARGOCD_AUTH_TOKEN must both be set to use the argocd gitops controller")
	}
	return &ArgoClient{
		ServerURL: server,
		AuthToken: token,
		Namespace: namespace,
		http:      &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Application is the subset of an ArgoCD Application's status this driver
// needs to classify readiness.
type Application struct {
	Metadata struct {
		Name string `json:"name"`
	} `json:"metadata"`
	Status struct {
		Sync   struct{ Status string } `json:"sync"`
		Health struct{ Status string } `json:"health"`
	} `json:"status"`
}

// GetApplication fetches one Application's status.
func (a *ArgoClient) GetApplication(name string) (*Application, error) {
	body, err := a.request("GET", "/api/v1/applications/"+name, nil)
	if err != nil {
		return nil, err
	}
	var app Application
	if err := json.Unmarshal(body, &app); err != nil {
		return nil, fmt.Errorf("decoding application %s: %w", name, err)
	}
	return &app, nil
}

// Sync requests a sync of name, the ArgoCD equivalent of a flux reconcile.
func (a *ArgoClient) Sync(name string) error {
	_, err := a.request("POST", "/api/v1/applications/"+name+"/sync", map[string]any{})
	return err
}

// Ready reports whether the named Application is Synced and Healthy.
func (a *ArgoClient) Ready(name string) (bool, error) {
	app, err := a.GetApplication(name)
	if err != nil {
		return false, err
	}
	return app.Status.Sync.Status == "Synced" && app.Status.Health.Status == "Healthy", nil
}

func (a *ArgoClient) request(method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, a.ServerURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.AuthToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("argocd request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("argocd %s %s returned %d: %s", method, path, resp.StatusCode, string(body))
	}
	return body, nil
}
