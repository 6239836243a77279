package kubeclient

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"k8s.io/client-go/tools/portforward"
	"k8s.io/client-go/transport/spdy"
)

// PortForwardOptions mirrors the teacher's pkg/kubernetes/portforward.go
// options struct, trimmed to forwarding local ports to one pod. Nothing in
// this repository calls PortForward; the Post-Deploy Verifier (C11) reaches
// its endpoints over plain HTTP.
type PortForwardOptions struct {
	Namespace string
	PodName   string
	Ports     []string // "localPort:podPort"
	ReadyChan chan struct{}
	StopChan  chan struct{}
	Out       io.Writer
	ErrOut    io.Writer
}

// PortForward forwards local ports to PodName until StopChan closes.
// Adapted near-verbatim from the teacher's pods-only code path (client-go
// portforward only supports pods directly), since that constraint is
// unchanged here.
func (c *Client) PortForward(opts PortForwardOptions) error {
	namespace := namespaceOrDefault(opts.Namespace)
	path := fmt.Sprintf("/api/v1/namespaces/%s/pods/%s/portforward", namespace, opts.PodName)

	hostURL := c.RestConfig.Host
	transport, upgrader, err := spdy.RoundTripperFor(c.RestConfig)
	if err != nil {
		return fmt.Errorf("building spdy round tripper: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, hostURL+path, nil)
	if err != nil {
		return err
	}

	dialer := spdy.NewDialer(upgrader, &http.Client{Transport: transport}, http.MethodPost, req.URL)
	fw, err := portforward.New(dialer, opts.Ports, opts.StopChan, opts.ReadyChan, opts.Out, opts.ErrOut)
	if err != nil {
		return fmt.Errorf("creating port forwarder: %w", err)
	}
	return fw.ForwardPorts()
}

// WaitReady blocks until either readyChan fires or timeout elapses.
func WaitReady(readyChan chan struct{}, timeout time.Duration) error {
	select {
	case <-readyChan:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("port-forward did not become ready within %s", timeout)
	}
}
