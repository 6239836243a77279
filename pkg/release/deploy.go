package release

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pleme-io/releaseforge/pkg/config"
	"github.com/pleme-io/releaseforge/pkg/federation"
	"github.com/pleme-io/releaseforge/pkg/kubeclient"
	"github.com/pleme-io/releaseforge/pkg/manifest"
	"github.com/pleme-io/releaseforge/pkg/migration"
	"github.com/pleme-io/releaseforge/pkg/reconcile"
	"github.com/pleme-io/releaseforge/pkg/rollout"
	"github.com/pleme-io/releaseforge/pkg/tool"
)

// Deployer wires the concrete, production dependencies for one service's
// per-environment deploy sequence (§4.12 phase 2, steps a-f): edit the
// manifest, commit and push it, compose federation if the service
// participates, run migrations if it owns a database, reconcile the
// GitOps controller, and verify the rollout landed.
type Deployer struct {
	Tool       *tool.Adapter
	K8sRoot    string
	GitOpsDriver reconcile.Driver
	Migration  *migration.Controller
	Federation *federation.Coordinator
	Rollout    *rollout.Verifier
	KubeClient *kubeclient.Client
	FederationReloadURL      string
	FederationRouterNamespace string
	FederationRouterDeployment string
	Now        func() time.Time
}

// deploymentResource names the Deployment manifest within a service's
// kustomization directory. The file name is fixed for every service (every
// teacher-pack example uses a Deployment); there is no per-service
// override.
const deploymentResource = "deployment.yaml"

// BuildSteps assembles the ordered Step sequence for one service in one
// environment. imageTag is already resolved (build vs deploy-only by the
// caller); cfg carries the merged per-service configuration.
func (d *Deployer) BuildSteps(cfg *config.DeployConfig, env config.Environment, imageTag, registry, gitCommit string) []Step {
	manifestDir := filepath.Dir(cfg.ManifestPath(d.K8sRoot, env.Cluster, env.Name))
	manifestFile := filepath.Join(manifestDir, deploymentResource)

	steps := []Step{
		{
			Name: "edit-manifest",
			Run: func(ctx context.Context) error {
				return d.editImageTag(manifestFile, cfg.Service, registry, imageTag)
			},
		},
		{
			Name: "commit-and-push",
			Run: func(ctx context.Context) error {
				msg := manifest.CommitMessage(cfg.Service, imageTag, "deploy to "+env.Name)
				return manifest.CommitAndPush(ctx, d.Tool, manifestDir, []string{deploymentResource}, msg)
			},
		},
	}

	if cfg.Federation.Enabled && d.Federation != nil {
		steps = append(steps, Step{
			Name: "federation-compose",
			Run: func(ctx context.Context) error {
				return d.composeFederation(ctx, cfg, gitCommit, d.FederationReloadURL)
			},
		})
	}

	if _, skip := migration.RunMode(cfg.Database); !skip && d.Migration != nil {
		steps = append(steps, Step{
			Name: "run-migrations",
			Run: func(ctx context.Context) error {
				namespace := cfg.KubernetesNamespace()
				_, err := d.Migration.Run(ctx, cfg, namespace, registry, imageTag, d.now())
				return err
			},
		})
	}

	steps = append(steps, Step{
		Name: "reconcile",
		Run: func(ctx context.Context) error {
			kustomizationName := fmt.Sprintf("%s-%s", cfg.Product, env.Name)
			_, err := reconcile.Run(ctx, d.GitOpsDriver, kustomizationName)
			return err
		},
	})

	if d.Rollout != nil {
		steps = append(steps, Step{
			Name: "verify-rollout",
			Run: func(ctx context.Context) error {
				namespace := cfg.KubernetesNamespace()
				selector := cfg.KubernetesLabelSelector()
				return d.Rollout.Verify(ctx, namespace, cfg.Service, selector, imageTag)
			},
		})
	}

	return steps
}

func (d *Deployer) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// editImageTag loads the deployment manifest, rewrites the named
// container's image, and writes it back. The manifest is a single
// document in this repo's layout (one Deployment per kustomization
// directory), so it round-trips through SplitDocuments/JoinDocuments of
// length 1.
func (d *Deployer) editImageTag(path, containerName, registry, tag string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading manifest %s: %w", path, err)
	}
	docs := manifest.SplitDocuments(string(raw))
	docs, err = manifest.SetImageTag(docs, "Deployment", containerName, containerName, registry, tag)
	if err != nil {
		return fmt.Errorf("setting image tag in %s: %w", path, err)
	}
	return os.WriteFile(path, []byte(manifest.JoinDocuments(docs)), 0o644)
}

// composeFederation regenerates the supergraph after this service's
// manifest has changed, matching the original's "recompose after every
// deploy that touches a federated service" behaviour.
func (d *Deployer) composeFederation(ctx context.Context, cfg *config.DeployConfig, gitCommit, reloadURL string) error {
	if _, err := d.Federation.PreChecks(ctx); err != nil {
		return err
	}
	composerCfg, err := d.Federation.GenerateComposerConfig()
	if err != nil {
		return err
	}
	configPath := filepath.Join(os.TempDir(), cfg.Service+"-composer-config.json")
	supergraph, err := d.Federation.Compose(ctx, configPath, composerCfg)
	if err != nil {
		return err
	}
	if _, err := federation.PostChecks(supergraph); err != nil {
		return err
	}
	supergraphPath := d.Federation.SupergraphPath
	if supergraphPath == "" {
		supergraphPath = filepath.Join(os.TempDir(), cfg.Service+"-supergraph.graphql")
	}
	if err := os.WriteFile(supergraphPath, []byte(supergraph), 0o644); err != nil {
		return fmt.Errorf("writing composed supergraph: %w", err)
	}
	meta, err := federation.GenerateMetadata([]byte(supergraph), composerCfg, cfg.Service, gitCommit, d.now())
	if err != nil {
		return err
	}
	metadataPath := supergraphPath + ".metadata.json"
	if err := federation.WriteMetadata(metadataPath, meta); err != nil {
		return err
	}
	supergraphDir := filepath.Dir(supergraphPath)
	msg := manifest.CommitMessage(cfg.Service, gitCommit, "recompose federation supergraph")
	if err := manifest.CommitAndPush(ctx, d.Tool, supergraphDir, []string{filepath.Base(supergraphPath), filepath.Base(metadataPath)}, msg); err != nil {
		return fmt.Errorf("committing composed supergraph: %w", err)
	}
	switch {
	case reloadURL != "":
		if err := federation.NotifyReload(ctx, reloadURL); err != nil {
			return err
		}
	case d.FederationRouterDeployment != "" && d.KubeClient != nil:
		// No admin reload endpoint configured: stamp the router Deployment's
		// pod template with the new supergraph hash so Kubernetes rolls it
		// and the router picks up the new file on restart.
		annotation := federation.AnnotationValue(federation.CalculateHash([]byte(supergraph)))
		if err := d.KubeClient.SetDeploymentAnnotation(ctx, d.FederationRouterNamespace, d.FederationRouterDeployment, "releaseforge.io/supergraph-hash", annotation); err != nil {
			return fmt.Errorf("restarting router deployment %s: %w", d.FederationRouterDeployment, err)
		}
	}
	return nil
}
