package release

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pleme-io/releaseforge/pkg/artifact"
)

func step(name string, calls *[]string, fail bool) Step {
	return Step{Name: name, Run: func(ctx context.Context) error {
		*calls = append(*calls, name)
		if fail {
			return errors.New("boom")
		}
		return nil
	}}
}

func TestRunStepsStopsAtFirstFailure(t *testing.T) {
	var calls []string
	steps := []Step{
		step("a", &calls, false),
		step("b", &calls, true),
		step("c", &calls, false),
	}
	err := RunSteps(context.Background(), steps)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(calls) != 2 || calls[0] != "a" || calls[1] != "b" {
		t.Fatalf("expected steps a,b to run and c to be skipped, got %v", calls)
	}
}

func servicePlan(name string, fail bool, order *[]string) ServicePlan {
	return ServicePlan{
		Service:    name,
		ResolveTag: func(ctx context.Context) (string, error) { return "tag-" + name, nil },
		BuildSteps: func(ctx context.Context, tag string) ([]Step, error) {
			return []Step{step(name, order, fail)}, nil
		},
	}
}

func TestRunPhase2VisitsEnvironmentsAndServicesInOrder(t *testing.T) {
	var order []string
	plans := []EnvironmentPlan{
		{Environment: "staging", Services: []ServicePlan{servicePlan("api", false, &order), servicePlan("web", false, &order)}},
		{Environment: "production", Services: []ServicePlan{servicePlan("api", false, &order), servicePlan("web", false, &order)}},
	}
	result := RunPhase2(context.Background(), plans)
	if !result.Ok() {
		t.Fatalf("expected all services to succeed: %+v", result.Outcomes)
	}
	want := []string{"api", "web", "api", "web"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestRunPhase2StopsAtFirstServiceFailureAndLaterEnvironmentsDoNotRun(t *testing.T) {
	var order []string
	plans := []EnvironmentPlan{
		{Environment: "staging", Services: []ServicePlan{servicePlan("api", true, &order), servicePlan("web", false, &order)}},
		{Environment: "production", Services: []ServicePlan{servicePlan("api", false, &order)}},
	}
	result := RunPhase2(context.Background(), plans)
	if result.Ok() {
		t.Fatal("expected failure")
	}
	if len(order) != 1 || order[0] != "api" {
		t.Fatalf("expected only staging/api to run, got %v", order)
	}
	if len(result.Outcomes) != 1 || result.Outcomes[0].Err == nil {
		t.Fatalf("expected one failed outcome, got %+v", result.Outcomes)
	}
}

type fakeArtifactWriter struct {
	writes []string
	err    error
}

func (f *fakeArtifactWriter) Write(tag string, now time.Time) (artifact.Info, error) {
	if f.err != nil {
		return artifact.Info{}, f.err
	}
	f.writes = append(f.writes, tag)
	return artifact.Info{Tag: tag}, nil
}

func TestPersistArtifactsOnlyWritesSuccessfulServices(t *testing.T) {
	api := &fakeArtifactWriter{}
	web := &fakeArtifactWriter{}
	outcomes := []ServiceOutcome{
		{Service: "api", ImageTag: "abc1234"},
		{Service: "web", Err: errors.New("deploy failed")},
	}
	writers := map[string]ArtifactWriter{"api": api, "web": web}
	if _, err := PersistArtifacts(writers, outcomes, time.Now()); err != nil {
		t.Fatalf("PersistArtifacts: %v", err)
	}
	if len(api.writes) != 1 || api.writes[0] != "abc1234" {
		t.Fatalf("expected api to be written once with abc1234, got %v", api.writes)
	}
	if len(web.writes) != 0 {
		t.Fatalf("expected web to not be written, got %v", web.writes)
	}
}

func TestPersistArtifactsPropagatesWriteError(t *testing.T) {
	api := &fakeArtifactWriter{err: errors.New("disk full")}
	outcomes := []ServiceOutcome{{Service: "api", ImageTag: "abc1234"}}
	writers := map[string]ArtifactWriter{"api": api}
	if _, err := PersistArtifacts(writers, outcomes, time.Now()); err == nil {
		t.Fatal("expected error")
	}
}
