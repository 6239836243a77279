package federation

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"testing"
	"time"
)

func TestCalculateHashMatchesStdlibSha256(t *testing.T) {
	content := []byte("type Query { hello: String }")
	sum := sha256.Sum256(content)
	want := hex.EncodeToString(sum[:])
	if got := CalculateHash(content); got != want {
		t.Fatalf("CalculateHash() = %q, want %q", got, want)
	}
}

func TestCountGraphQLTypes(t *testing.T) {
	schema := `
type Query {
  hello: String
}
input CreateUserInput {
  name: String
}
enum Role {
  ADMIN
  USER
}
interface Node {
  id: ID!
}
scalar DateTime
`
	if got := CountGraphQLTypes([]byte(schema)); got != 4 {
		t.Fatalf("CountGraphQLTypes() = %d, want 4", got)
	}
}

func TestAnnotationValueTruncatesTo16Chars(t *testing.T) {
	hash := "0123456789abcdef0123456789abcdef"
	if got := AnnotationValue(hash); got != "0123456789abcdef" {
		t.Fatalf("AnnotationValue() = %q", got)
	}
	if got := AnnotationValue("short"); got != "short" {
		t.Fatalf("AnnotationValue() on a short hash should return it unchanged, got %q", got)
	}
}

func TestPostChecksRejectsEmptyAndUndersizedSupergraphs(t *testing.T) {
	if _, err := PostChecks(""); err == nil {
		t.Fatalf("expected error for empty supergraph")
	}
	if _, err := PostChecks("schema { query: Query }"); err == nil {
		t.Fatalf("expected error for undersized supergraph")
	}
}

func TestPostChecksWarnsWithoutFederationDirectivesButDoesNotFail(t *testing.T) {
	padding := make([]byte, minSupergraphSize)
	for i := range padding {
		padding[i] = ' '
	}
	supergraph := "schema { query: Query }" + string(padding)
	warnings, err := PostChecks(supergraph)
	if err != nil {
		t.Fatalf("PostChecks returned an error: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected exactly one warning about missing federation directives, got %v", warnings)
	}
}

func TestPostChecksPassesCleanlyWithFederationDirectives(t *testing.T) {
	padding := make([]byte, minSupergraphSize)
	for i := range padding {
		padding[i] = ' '
	}
	supergraph := "schema { query: Query } @join__graph(name: \"api\")" + string(padding)
	warnings, err := PostChecks(supergraph)
	if err != nil {
		t.Fatalf("PostChecks returned an error: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
}

func TestGenerateMetadataComputesPerSubgraphInfo(t *testing.T) {
	dir := t.TempDir()
	schemaPath := dir + "/api.graphql"
	content := []byte("type Query { hello: String }\n")
	if err := os.WriteFile(schemaPath, content, 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	cfg := ComposerConfig{
		FederationVersion: "2",
		Subgraphs:         []SubgraphEntry{{ServiceName: "api", RoutingURL: "https://api.internal/graphql", SchemaPath: schemaPath}},
	}
	supergraph := []byte("supergraph bytes")
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	meta, err := GenerateMetadata(supergraph, cfg, "api", "abc1234", now)
	if err != nil {
		t.Fatalf("GenerateMetadata: %v", err)
	}
	if meta.SupergraphHash != CalculateHash(supergraph) {
		t.Fatalf("supergraph hash mismatch")
	}
	info, ok := meta.Services["api"]
	if !ok {
		t.Fatalf("expected a services entry for api")
	}
	if info.SchemaHash != CalculateHash(content) || info.TypeCount != 1 {
		t.Fatalf("unexpected subgraph info: %+v", info)
	}
}
