// Package migration implements the Migration Job Controller (C7): builds a
// Kubernetes Job for a service's database migrations, waits for terminal
// state, and surfaces logs on failure. Grounded on
// original_source/cli/src/domain/migration.rs (DatabaseType::run_mode,
// MigrationConfig, MigrationResources, job_name, image_ref).
package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/pleme-io/releaseforge/pkg/apperror"
	"github.com/pleme-io/releaseforge/pkg/config"
	"github.com/pleme-io/releaseforge/pkg/kubeclient"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	"k8s.io/utils/ptr"
)

// RunMode maps a database type to the RUN_MODE environment variable a
// service's own image understands, per original_source's
// DatabaseType::run_mode. DatabaseNone means migrations are skipped
// entirely (§8 boundary behaviour: "migration controller reports
// 'skipped' without creating a job").
func RunMode(db config.DatabaseType) (mode string, skip bool) {
	switch db {
	case config.DatabasePostgres:
		return "migrate", false
	case config.DatabaseClickhouse:
		return "migrate_clickhouse", false
	case config.DatabaseElasticsearch:
		return "migrate_elasticsearch", false
	case config.DatabaseDatabend:
		return "MIGRATE", false
	default:
		return "", true
	}
}

// JobName is {service}-migration-{timestamp}, a fresh name per invocation
// so re-running never conflicts (C7 idempotence).
func JobName(service string, now time.Time) string {
	return fmt.Sprintf("%s-migration-%d", service, now.Unix())
}

// ImageRef is {registry}:{tag} -- the image the migration Job runs must
// match the just-pushed service image.
func ImageRef(registry, tag string) string {
	return fmt.Sprintf("%s:%s", registry, tag)
}

// Controller runs migrations for one service.
type Controller struct {
	Client       *kubeclient.Client
	PollInterval time.Duration
}

// NewController returns a Controller polling every 5s, per spec.md §4.7.
func NewController(client *kubeclient.Client) *Controller {
	return &Controller{Client: client, PollInterval: 5 * time.Second}
}

// Outcome is what Run reports back to the Release Orchestrator.
type Outcome struct {
	Skipped bool
	JobName string
	Logs    string
}

// Run builds and applies the migration Job for cfg/tag, then polls until
// terminal. now is injected so callers control the job-name timestamp
// deterministically in tests.
func (c *Controller) Run(ctx context.Context, cfg *config.DeployConfig, namespace, registry, tag string, now time.Time) (*Outcome, error) {
	runMode, skip := RunMode(cfg.Database)
	if skip {
		return &Outcome{Skipped: true}, nil
	}

	if err := c.Client.EnsureNamespace(ctx, namespace); err != nil {
		return nil, apperror.Wrapf(apperror.KindMigrationFailed, err, "ensuring namespace %s exists", namespace)
	}

	name := JobName(cfg.Service, now)
	job := buildJob(name, namespace, cfg, registry, tag, runMode)

	if _, err := c.Client.ApplyJob(ctx, namespace, job); err != nil {
		return nil, apperror.Wrapf(apperror.KindMigrationFailed, err, "applying migration job %s", name)
	}

	for {
		fetched, err := c.Client.GetJob(ctx, namespace, name)
		if err != nil {
			return nil, apperror.Wrapf(apperror.KindMigrationFailed, err, "polling migration job %s", name)
		}
		complete, failed := kubeclient.JobCondition(fetched)
		if complete {
			return &Outcome{JobName: name}, nil
		}
		if failed {
			logs := c.tailLogs(ctx, namespace, name)
			return nil, apperror.New(apperror.KindMigrationFailed, "migration job "+name+" failed").
				WithDetails(splitLines(logs)...)
		}
		select {
		case <-ctx.Done():
			logs := c.tailLogs(ctx, namespace, name)
			return nil, apperror.Wrap(apperror.KindMigrationFailed, ctx.Err(), "migration job "+name+" did not finish").
				WithDetails(splitLines(logs)...)
		case <-time.After(c.PollInterval):
		}
	}
}

func (c *Controller) tailLogs(ctx context.Context, namespace, jobName string) string {
	pod, err := c.Client.JobPod(ctx, namespace, jobName)
	if err != nil {
		return ""
	}
	logs, err := c.Client.PodLogs(ctx, namespace, pod.Name, "", 100)
	if err != nil {
		return ""
	}
	return logs
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	var lines []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func buildJob(name, namespace string, cfg *config.DeployConfig, registry, tag, runMode string) *batchv1.Job {
	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
			Labels: map[string]string{
				"app.kubernetes.io/component": "migration",
				"app.kubernetes.io/part-of":   cfg.Product,
			},
		},
		Spec: batchv1.JobSpec{
			BackoffLimit:            ptr.To(int32(2)),
			ActiveDeadlineSeconds:   ptr.To(cfg.Migration.ActiveDeadlineSecs),
			TTLSecondsAfterFinished: ptr.To(int32(3600)),
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: map[string]string{"job-name": name}},
				Spec: corev1.PodSpec{
					RestartPolicy: corev1.RestartPolicyNever,
					Containers: []corev1.Container{{
						Name:  "migrate",
						Image: ImageRef(registry, tag),
						Env: []corev1.EnvVar{
							{Name: "RUN_MODE", Value: runMode},
						},
						Resources: corev1.ResourceRequirements{
							Requests: corev1.ResourceList{
								corev1.ResourceMemory: resource.MustParse(cfg.Migration.RequestsMemory),
								corev1.ResourceCPU:    resource.MustParse(cfg.Migration.RequestsCPU),
							},
							Limits: corev1.ResourceList{
								corev1.ResourceMemory: resource.MustParse(cfg.Migration.LimitsMemory),
								corev1.ResourceCPU:    resource.MustParse(cfg.Migration.LimitsCPU),
							},
						},
					}},
				},
			},
		},
	}
}
