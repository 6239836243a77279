// Package gate implements the Gate Runner (C4): executes the pre-release
// validation plan in groups, with parallel fan-out across the Backend,
// Migration, and Frontend groups, followed by the sequential Integration
// and E2E groups, and aggregates a structured summary. Grounded on
// original_source/cli/src/commands/migration_validation.rs (G6-G8 static
// analysis) and cli/src/commands/prerelease.rs (gate sequencing and
// fail_on_error semantics).
package gate

import (
	"context"
	"fmt"
	"sync"

	"github.com/pleme-io/releaseforge/pkg/tool"
)

// Group names the five gate groups from spec.md §4.4.
type Group string

const (
	GroupBackend     Group = "backend"
	GroupMigration   Group = "migration"
	GroupFrontend    Group = "frontend"
	GroupIntegration Group = "integration"
	GroupE2E         Group = "e2e"
)

// Gate is one runnable validation step.
type Gate struct {
	ID    string // G1, G2, ... G14
	Name  string
	Group Group
	// Run executes the gate and returns detail lines on failure (truncated
	// to ~20 by the caller per spec.md §4.4 outputs).
	Run func(ctx context.Context) error
}

// Result is one gate's outcome.
type Result struct {
	ID      string
	Name    string
	Group   Group
	Passed  bool
	Skipped bool
	Reason  string   // why skipped
	Details []string // failure detail lines, truncated to 20
}

// Summary is C4's output: the GateSummary spec.md §4.4 names.
type Summary struct {
	Passed  []Result
	Failed  []Result
	Skipped []Result
}

// Ok reports whether every run gate passed (skipped gates don't count
// against this).
func (s Summary) Ok() bool {
	return len(s.Failed) == 0
}

const maxDetailLines = 20

func truncate(lines []string) []string {
	if len(lines) <= maxDetailLines {
		return lines
	}
	return lines[:maxDetailLines]
}

// Plan is the set of gates to run and which groups are skipped, derived
// from config.GatesConfig.
type Plan struct {
	Gates       []Gate
	SkipBackend bool
	SkipMigration bool
	SkipFrontend  bool
	SkipIntegration bool
	SkipE2E       bool
}

func (p Plan) skipReason(g Group) (bool, string) {
	switch g {
	case GroupBackend:
		return p.SkipBackend, "skip_backend=true (disabled)"
	case GroupMigration:
		return p.SkipMigration, "skip_migration=true (disabled)"
	case GroupFrontend:
		return p.SkipFrontend, "skip_frontend=true (disabled)"
	case GroupIntegration:
		return p.SkipIntegration, "skip_integration=true (disabled)"
	case GroupE2E:
		return p.SkipE2E, "skip_e2e=true (disabled)"
	default:
		return false, ""
	}
}

func gatesInGroup(gates []Gate, group Group) []Gate {
	var out []Gate
	for _, g := range gates {
		if g.Group == group {
			out = append(out, g)
		}
	}
	return out
}

// runGroup runs every gate in the group in strict sequence (§5: "gates
// within one group run sequentially; they share working directories and
// tooling"), stopping the group early once fail_on_error and a failure
// have both occurred.
func runGroup(ctx context.Context, gates []Gate, failFast bool) []Result {
	var results []Result
	for _, g := range gates {
		err := g.Run(ctx)
		if err == nil {
			results = append(results, Result{ID: g.ID, Name: g.Name, Group: g.Group, Passed: true})
			continue
		}
		results = append(results, Result{
			ID: g.ID, Name: g.Name, Group: g.Group,
			Details: truncate(splitDetailLines(err.Error())),
		})
		if failFast {
			break
		}
	}
	return results
}

func splitDetailLines(s string) []string {
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

// Run executes plan's gates per spec.md §4.4/§5: Backend, Migration, and
// Frontend groups fan out concurrently and are joined before Integration
// and E2E run sequentially after them.
func Run(ctx context.Context, plan Plan, failOnError bool) Summary {
	var summary Summary

	parallelGroups := []Group{GroupBackend, GroupMigration, GroupFrontend}
	sequentialGroups := []Group{GroupIntegration, GroupE2E}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, group := range parallelGroups {
		group := group
		skip, reason := plan.skipReason(group)
		gates := gatesInGroup(plan.Gates, group)
		if skip {
			mu.Lock()
			for _, g := range gates {
				summary.Skipped = append(summary.Skipped, Result{ID: g.ID, Name: g.Name, Group: g.Group, Skipped: true, Reason: reason})
			}
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			results := runGroup(ctx, gates, failOnError)
			mu.Lock()
			defer mu.Unlock()
			appendResults(&summary, results)
		}()
	}
	wg.Wait()

	for _, group := range sequentialGroups {
		skip, reason := plan.skipReason(group)
		gates := gatesInGroup(plan.Gates, group)
		if skip {
			for _, g := range gates {
				summary.Skipped = append(summary.Skipped, Result{ID: g.ID, Name: g.Name, Group: g.Group, Skipped: true, Reason: reason})
			}
			continue
		}
		if failOnError && !summary.Ok() {
			for _, g := range gates {
				summary.Skipped = append(summary.Skipped, Result{ID: g.ID, Name: g.Name, Group: g.Group, Skipped: true, Reason: "earlier gate failed (fail_on_error=true)"})
			}
			continue
		}
		appendResults(&summary, runGroup(ctx, gates, failOnError))
	}

	return summary
}

func appendResults(summary *Summary, results []Result) {
	for _, r := range results {
		if r.Passed {
			summary.Passed = append(summary.Passed, r)
		} else {
			summary.Failed = append(summary.Failed, r)
		}
	}
}

// E2ECleanup implements §4.4's "G14 resource discipline": regardless of
// success, failure, or timeout, prune orphaned containers and images.
// Callers defer this immediately after constructing the E2E gate.
func E2ECleanup(ctx context.Context, adapter *tool.Adapter) error {
	_, containerErr := adapter.Run(ctx, tool.Invocation{Tool: "docker", Args: []string{"container", "prune", "-f"}})
	_, imageErr := adapter.Run(ctx, tool.Invocation{Tool: "docker", Args: []string{"image", "prune", "-f"}})
	if containerErr != nil {
		return fmt.Errorf("pruning containers: %w", containerErr)
	}
	if imageErr != nil {
		return fmt.Errorf("pruning images: %w", imageErr)
	}
	return nil
}
