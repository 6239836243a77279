package kubeclient

import (
	"context"
	"fmt"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// ApplyJob creates job, tolerating AlreadyExists so a re-run with the same
// name is idempotent (C7's "fresh job name per invocation avoids
// conflict" still means ApplyJob must not hard-fail when an operator
// retries the orchestrator after a crash between create and the first
// status poll).
func (c *Client) ApplyJob(ctx context.Context, namespace string, job *batchv1.Job) (*batchv1.Job, error) {
	created, err := c.Clientset.BatchV1().Jobs(namespaceOrDefault(namespace)).Create(ctx, job, metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		return c.Clientset.BatchV1().Jobs(namespaceOrDefault(namespace)).Get(ctx, job.Name, metav1.GetOptions{})
	}
	if err != nil {
		return nil, fmt.Errorf("creating job %s: %w", job.Name, err)
	}
	return created, nil
}

// GetJob fetches the current Job status, polled by the Migration Job
// Controller (C7).
func (c *Client) GetJob(ctx context.Context, namespace, name string) (*batchv1.Job, error) {
	return c.Clientset.BatchV1().Jobs(namespaceOrDefault(namespace)).Get(ctx, name, metav1.GetOptions{})
}

// JobPod returns the (first) pod created by job, used to fetch logs on
// failure.
func (c *Client) JobPod(ctx context.Context, namespace, jobName string) (*corev1.Pod, error) {
	pods, err := c.PodsForSelector(ctx, namespace, "job-name="+jobName)
	if err != nil {
		return nil, err
	}
	if len(pods) == 0 {
		return nil, fmt.Errorf("no pod found for job %s", jobName)
	}
	return &pods[0], nil
}

// JobCondition reports whether job has reached a terminal condition and
// which one (Complete or Failed).
func JobCondition(job *batchv1.Job) (complete, failed bool) {
	for _, cond := range job.Status.Conditions {
		if cond.Type == batchv1.JobComplete && cond.Status == corev1.ConditionTrue {
			complete = true
		}
		if cond.Type == batchv1.JobFailed && cond.Status == corev1.ConditionTrue {
			failed = true
		}
	}
	return complete, failed
}
