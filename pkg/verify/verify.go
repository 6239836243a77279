// Package verify implements the Post-Deploy Verifier (C11): confirms a
// freshly deployed service is externally healthy via a health endpoint
// check, a GraphQL introspection check, and a configurable set of smoke
// queries. Grounded on
// original_source/cli/src/commands/post_deploy_verification.rs
// (verify_health_endpoint, verify_graphql_endpoint, verify_smoke_queries).
package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pleme-io/releaseforge/pkg/tool"
)

// SmokeQuery is one configurable post-deploy smoke check.
type SmokeQuery struct {
	Name        string
	Query       string
	ExpectField string
}

// CheckResult is one check's pass/fail outcome.
type CheckResult struct {
	Name      string
	Passed    bool
	LatencyMS int64
	Error     string
}

// Result is C11's aggregate output.
type Result struct {
	Health      CheckResult
	GraphQL     CheckResult
	SmokeSkipped bool
	Smoke       []CheckResult
}

// Ok reports whether every check that ran passed.
func (r Result) Ok() bool {
	if !r.Health.Passed || !r.GraphQL.Passed {
		return false
	}
	for _, s := range r.Smoke {
		if !s.Passed {
			return false
		}
	}
	return true
}

// Verifier runs the checks over HTTP.
type Verifier struct {
	HTTP *http.Client
}

// NewVerifier returns a Verifier with a 10s default HTTP timeout.
func NewVerifier() *Verifier {
	return &Verifier{HTTP: &http.Client{Timeout: 10 * time.Second}}
}

// Config controls which checks run and against what endpoints.
type Config struct {
	HealthURL          string
	GraphQLURL         string
	HealthRetries      int
	SmokeQueriesEnabled bool
	SmokeQueries       []SmokeQuery
}

// Run executes the health, GraphQL introspection, and (if enabled)
// smoke checks in that order, matching §4.11's check ordering.
func (v *Verifier) Run(ctx context.Context, cfg Config) Result {
	var result Result
	result.Health = v.checkHealth(ctx, cfg.HealthURL, cfg.HealthRetries)
	result.GraphQL = v.checkGraphQLIntrospection(ctx, cfg.GraphQLURL)

	if !cfg.SmokeQueriesEnabled {
		result.SmokeSkipped = true
		return result
	}
	for _, q := range cfg.SmokeQueries {
		result.Smoke = append(result.Smoke, v.checkSmokeQuery(ctx, cfg.GraphQLURL, q))
	}
	return result
}

// checkHealth implements the health-endpoint check: HTTP GET, expect
// 2xx, retrying up to `retries` times with exponential backoff.
func (v *Verifier) checkHealth(ctx context.Context, url string, retries int) CheckResult {
	backoff := tool.NewBackoff(1*time.Second, 10*time.Second)
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		start := time.Now()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err == nil {
			resp, doErr := v.HTTP.Do(req)
			latency := time.Since(start).Milliseconds()
			if doErr == nil {
				resp.Body.Close()
				if resp.StatusCode >= 200 && resp.StatusCode < 300 {
					return CheckResult{Name: "health", Passed: true, LatencyMS: latency}
				}
				lastErr = fmt.Errorf("health endpoint returned %d", resp.StatusCode)
			} else {
				lastErr = doErr
			}
		} else {
			lastErr = err
		}
		if attempt < retries {
			select {
			case <-ctx.Done():
				return CheckResult{Name: "health", Error: ctx.Err().Error()}
			case <-time.After(backoff.Next()):
			}
		}
	}
	return CheckResult{Name: "health", Error: lastErr.Error()}
}

type graphqlRequest struct {
	Query string `json:"query"`
}

type graphqlResponse struct {
	Data   map[string]any `json:"data"`
	Errors []any          `json:"errors"`
}

func (v *Verifier) postGraphQL(ctx context.Context, url, query string) (graphqlResponse, int64, error) {
	start := time.Now()
	body, err := json.Marshal(graphqlRequest{Query: query})
	if err != nil {
		return graphqlResponse{}, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return graphqlResponse{}, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.HTTP.Do(req)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return graphqlResponse{}, latency, err
	}
	defer resp.Body.Close()

	var parsed graphqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return graphqlResponse{}, latency, fmt.Errorf("decoding graphql response: %w", err)
	}
	return parsed, latency, nil
}

// checkGraphQLIntrospection POSTs `{ __typename }` and expects a data
// field with no errors.
func (v *Verifier) checkGraphQLIntrospection(ctx context.Context, url string) CheckResult {
	resp, latency, err := v.postGraphQL(ctx, url, "{ __typename }")
	if err != nil {
		return CheckResult{Name: "graphql_introspection", LatencyMS: latency, Error: err.Error()}
	}
	if len(resp.Errors) > 0 {
		return CheckResult{Name: "graphql_introspection", LatencyMS: latency, Error: fmt.Sprintf("graphql returned %d error(s)", len(resp.Errors))}
	}
	if resp.Data == nil {
		return CheckResult{Name: "graphql_introspection", LatencyMS: latency, Error: "graphql response had no data field"}
	}
	return CheckResult{Name: "graphql_introspection", Passed: true, LatencyMS: latency}
}

// checkSmokeQuery passes iff data.{expect_field} is present.
func (v *Verifier) checkSmokeQuery(ctx context.Context, url string, q SmokeQuery) CheckResult {
	resp, latency, err := v.postGraphQL(ctx, url, q.Query)
	if err != nil {
		return CheckResult{Name: q.Name, LatencyMS: latency, Error: err.Error()}
	}
	if len(resp.Errors) > 0 {
		return CheckResult{Name: q.Name, LatencyMS: latency, Error: fmt.Sprintf("smoke query %q returned errors", q.Name)}
	}
	if _, ok := resp.Data[q.ExpectField]; !ok {
		return CheckResult{Name: q.Name, LatencyMS: latency, Error: fmt.Sprintf("expected field %q not present in response", q.ExpectField)}
	}
	return CheckResult{Name: q.Name, Passed: true, LatencyMS: latency}
}
