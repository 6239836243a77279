package verify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRunAllChecksPass(t *testing.T) {
	health := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer health.Close()

	graphql := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphqlRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		if req.Query == "{ __typename }" {
			json.NewEncoder(w).Encode(graphqlResponse{Data: map[string]any{"__typename": "Query"}})
			return
		}
		json.NewEncoder(w).Encode(graphqlResponse{Data: map[string]any{"__schema": map[string]any{}}})
	}))
	defer graphql.Close()

	v := NewVerifier()
	cfg := Config{
		HealthURL:  health.URL,
		GraphQLURL: graphql.URL,
		SmokeQueriesEnabled: true,
		SmokeQueries: []SmokeQuery{{Name: "schema-smoke", Query: "{ __schema { types { name } } }", ExpectField: "__schema"}},
	}
	result := v.Run(context.Background(), cfg)
	if !result.Ok() {
		t.Fatalf("expected all checks to pass: %+v", result)
	}
}

func TestHealthCheckFailsOn5xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	v := NewVerifier()
	result := v.checkHealth(context.Background(), server.URL, 0)
	if result.Passed {
		t.Fatalf("expected health check to fail on 503")
	}
}

func TestGraphQLIntrospectionFailsOnErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(graphqlResponse{Errors: []any{"boom"}})
	}))
	defer server.Close()

	v := NewVerifier()
	result := v.checkGraphQLIntrospection(context.Background(), server.URL)
	if result.Passed {
		t.Fatalf("expected introspection check to fail when errors are present")
	}
}

func TestSmokeQueryFailsWhenExpectedFieldMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(graphqlResponse{Data: map[string]any{"other": 1}})
	}))
	defer server.Close()

	v := NewVerifier()
	result := v.checkSmokeQuery(context.Background(), server.URL, SmokeQuery{Name: "q", Query: "{ other }", ExpectField: "expected"})
	if result.Passed {
		t.Fatalf("expected smoke query to fail when expected field is absent")
	}
}

func TestSmokeQueriesCanBeDisabled(t *testing.T) {
	health := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) }))
	defer health.Close()
	graphql := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(graphqlResponse{Data: map[string]any{"__typename": "Query"}})
	}))
	defer graphql.Close()

	v := NewVerifier()
	result := v.Run(context.Background(), Config{HealthURL: health.URL, GraphQLURL: graphql.URL, SmokeQueriesEnabled: false})
	if !result.SmokeSkipped {
		t.Fatalf("expected smoke queries to be marked skipped")
	}
	if len(result.Smoke) != 0 {
		t.Fatalf("expected no smoke results when disabled")
	}
	if !result.Ok() {
		t.Fatalf("disabled smoke queries should not fail the overall result")
	}
}
