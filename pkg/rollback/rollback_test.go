package rollback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pleme-io/releaseforge/pkg/artifact"
	"github.com/pleme-io/releaseforge/pkg/config"
	"github.com/pleme-io/releaseforge/pkg/release"
)

type fakeStore struct {
	info    artifact.Info
	ok      bool
	loadErr error
	swapped bool
}

func (f *fakeStore) Load() (artifact.Info, bool, error) {
	if f.loadErr != nil {
		return artifact.Info{}, false, f.loadErr
	}
	return f.info, f.ok, nil
}

func (f *fakeStore) Swap(now time.Time) (artifact.Info, error) {
	f.swapped = true
	swapped := artifact.Info{Tag: f.info.PreviousTag, PreviousTag: f.info.Tag, BuiltAt: now}
	f.info = swapped
	return swapped, nil
}

type fakeDeployer struct {
	calledTags []string
	failTag    string
}

func (f *fakeDeployer) BuildSteps(cfg *config.DeployConfig, env config.Environment, imageTag, registry, gitCommit string) []release.Step {
	return []release.Step{{
		Name: "deploy",
		Run: func(ctx context.Context) error {
			f.calledTags = append(f.calledTags, imageTag)
			if imageTag == f.failTag {
				return errors.New("deploy failed")
			}
			return nil
		},
	}}
}

func testConfig() *config.DeployConfig {
	return &config.DeployConfig{
		Product: "acme",
		Service: "api",
		Release: config.ReleaseConfig{EnvironmentOrder: []string{"staging"}},
		Environments: []config.Environment{
			{Name: "staging", Cluster: "c1", Build: true},
		},
	}
}

func TestRollbackSwapsTagsOnSuccess(t *testing.T) {
	store := &fakeStore{info: artifact.Info{Tag: "def5678", PreviousTag: "abc1234"}, ok: true}
	deployer := &fakeDeployer{}
	c := &Controller{
		ArtifactFor: func(service string) ArtifactStore { return store },
		Deployer:    deployer,
	}
	outcome := c.Rollback(context.Background(), testConfig(), "registry.example.com/api", "deadbeef", Options{Environment: "staging", Force: true})
	if outcome.Err != nil {
		t.Fatalf("unexpected error: %v", outcome.Err)
	}
	if outcome.FromTag != "def5678" || outcome.ToTag != "abc1234" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if !store.swapped {
		t.Fatal("expected artifact store to be swapped")
	}
	if len(deployer.calledTags) != 1 || deployer.calledTags[0] != "abc1234" {
		t.Fatalf("expected deploy with previous tag abc1234, got %v", deployer.calledTags)
	}
}

func TestRollbackFailsFastWithNoPreviousTag(t *testing.T) {
	store := &fakeStore{info: artifact.Info{Tag: "def5678"}, ok: true}
	c := &Controller{
		ArtifactFor: func(service string) ArtifactStore { return store },
		Deployer:    &fakeDeployer{},
	}
	outcome := c.Rollback(context.Background(), testConfig(), "registry.example.com/api", "deadbeef", Options{Force: true})
	if outcome.Err == nil {
		t.Fatal("expected error for missing previous tag")
	}
	if store.swapped {
		t.Fatal("swap should not have been attempted")
	}
}

func TestRollbackAbortsWithoutForceWhenOperatorDeclines(t *testing.T) {
	store := &fakeStore{info: artifact.Info{Tag: "def5678", PreviousTag: "abc1234"}, ok: true}
	c := &Controller{
		Confirm:     func(service string) bool { return false },
		ArtifactFor: func(service string) ArtifactStore { return store },
		Deployer:    &fakeDeployer{},
	}
	outcome := c.Rollback(context.Background(), testConfig(), "registry.example.com/api", "deadbeef", Options{})
	if outcome.Err == nil {
		t.Fatal("expected abort error")
	}
	if store.swapped {
		t.Fatal("swap should not have been attempted")
	}
}

func TestRollbackDoesNotSwapWhenDeployFails(t *testing.T) {
	store := &fakeStore{info: artifact.Info{Tag: "def5678", PreviousTag: "abc1234"}, ok: true}
	deployer := &fakeDeployer{failTag: "abc1234"}
	c := &Controller{
		ArtifactFor: func(service string) ArtifactStore { return store },
		Deployer:    deployer,
	}
	outcome := c.Rollback(context.Background(), testConfig(), "registry.example.com/api", "deadbeef", Options{Force: true})
	if outcome.Err == nil {
		t.Fatal("expected deploy failure to propagate")
	}
	if store.swapped {
		t.Fatal("swap should not happen when deploy fails")
	}
}

func TestRollbackProductStopsAtFirstFailure(t *testing.T) {
	storeAPI := &fakeStore{info: artifact.Info{Tag: "def5678", PreviousTag: "abc1234"}, ok: true}
	storeWeb := &fakeStore{info: artifact.Info{Tag: "v2", PreviousTag: "v1"}, ok: true}
	deployer := &fakeDeployer{failTag: "abc1234"}
	c := &Controller{
		ArtifactFor: func(service string) ArtifactStore {
			if service == "api" {
				return storeAPI
			}
			return storeWeb
		},
		Deployer: deployer,
	}
	apiCfg := testConfig()
	webCfg := testConfig()
	webCfg.Service = "web"
	outcomes := c.RollbackProduct(context.Background(), []*config.DeployConfig{apiCfg, webCfg}, "registry.example.com", "deadbeef", Options{Environment: "staging", Force: true})
	if len(outcomes) != 1 {
		t.Fatalf("expected rollback to stop after first failing service, got %d outcomes", len(outcomes))
	}
	if outcomes[0].Err == nil {
		t.Fatal("expected first outcome to carry the deploy error")
	}
}
