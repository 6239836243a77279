// Package federation implements the Federation Coordinator (C8): keeps a
// GraphQL supergraph schema consistent with the set of deployed
// subgraphs. Grounded on
// original_source/cli/src/commands/supergraph_verification.rs
// (SupergraphMetadata::generate, calculate_hash, count_graphql_types) and
// cli/src/commands/federation.rs (pre/post-composition checks, the
// composer invocation, and the hive-router deployment annotation).
package federation

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pleme-io/releaseforge/pkg/apperror"
	"github.com/pleme-io/releaseforge/pkg/tool"
)

// SubgraphEntry is one composer-config entry per *.graphql file.
type SubgraphEntry struct {
	ServiceName string `json:"name"`
	RoutingURL  string `json:"routing_url"`
	SchemaPath  string `json:"schema_path"`
}

// ComposerConfig is written as the input the composer CLI reads.
type ComposerConfig struct {
	FederationVersion string          `json:"federation_version"`
	Subgraphs         []SubgraphEntry `json:"subgraphs"`
}

// ServiceSchemaInfo is one subgraph's contribution to supergraph metadata.
type ServiceSchemaInfo struct {
	SchemaHash   string `json:"schema_hash"`
	SchemaSize   int64  `json:"schema_size"`
	TypeCount    int    `json:"type_count"`
	RoutingURL   string `json:"routing_url"`
}

// Metadata is the sidecar JSON persisted next to supergraph.graphql,
// giving every composition a deterministic, auditable fingerprint.
type Metadata struct {
	SupergraphHash    string                       `json:"supergraph_hash"`
	ComposedAt        string                       `json:"composed_at"`
	GitCommit         string                       `json:"git_commit"`
	TriggeringService string                       `json:"triggering_service"`
	Services          map[string]ServiceSchemaInfo `json:"services"`
	FederationVersion string                       `json:"federation_version"`
}

// Coordinator runs the federation composition pipeline for one product.
type Coordinator struct {
	Adapter      *tool.Adapter
	ComposerCLI  string // defaults to "rover"
	SubgraphsDir string
	SupergraphPath string
	RoutingURLFor func(service string) string
	FederationVersion string
}

// NewCoordinator returns a Coordinator using the rover CLI.
func NewCoordinator(adapter *tool.Adapter) *Coordinator {
	return &Coordinator{Adapter: adapter, ComposerCLI: "rover", FederationVersion: "2"}
}

// PreChecks implements step 1 of §4.8: subgraphs directory exists, at
// least one schema file present, composer CLI available, every schema
// file non-empty.
func (c *Coordinator) PreChecks(ctx context.Context) ([]string, error) {
	var checks []string
	info, err := os.Stat(c.SubgraphsDir)
	if err != nil || !info.IsDir() {
		return nil, apperror.New(apperror.KindFederationFailed, "subgraphs directory not found: "+c.SubgraphsDir)
	}
	checks = append(checks, "subgraphs directory exists")

	files, err := listSchemaFiles(c.SubgraphsDir)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindFederationFailed, err, "listing subgraph schema files")
	}
	if len(files) == 0 {
		return nil, apperror.New(apperror.KindFederationFailed, "no .graphql subgraph schema files found in "+c.SubgraphsDir)
	}
	checks = append(checks, fmt.Sprintf("%d subgraph schema file(s) found", len(files)))

	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, apperror.Wrap(apperror.KindFederationFailed, err, "reading "+f)
		}
		if len(bytes.TrimSpace(data)) == 0 {
			return nil, apperror.New(apperror.KindFederationFailed, "schema file is empty: "+f)
		}
	}
	checks = append(checks, "all schema files are non-empty")

	if _, err := c.Adapter.Run(ctx, tool.Invocation{Tool: c.ComposerCLI, Args: []string{"--version"}}); err != nil {
		return nil, apperror.Wrap(apperror.KindFederationFailed, err, "composer CLI not available: "+c.ComposerCLI)
	}
	checks = append(checks, "composer CLI available")

	return checks, nil
}

func listSchemaFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".graphql") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// GenerateComposerConfig implements step 2: one entry per subgraph
// schema file, routing URL computed from RoutingURLFor.
func (c *Coordinator) GenerateComposerConfig() (ComposerConfig, error) {
	files, err := listSchemaFiles(c.SubgraphsDir)
	if err != nil {
		return ComposerConfig{}, apperror.Wrap(apperror.KindFederationFailed, err, "listing subgraph schema files")
	}
	cfg := ComposerConfig{FederationVersion: c.FederationVersion}
	for _, f := range files {
		service := strings.TrimSuffix(filepath.Base(f), ".graphql")
		cfg.Subgraphs = append(cfg.Subgraphs, SubgraphEntry{
			ServiceName: service,
			RoutingURL:  c.RoutingURLFor(service),
			SchemaPath:  f,
		})
	}
	return cfg, nil
}

// Compose implements step 3: write the composer config, invoke the
// composer, capture its stdout as the supergraph.
func (c *Coordinator) Compose(ctx context.Context, configPath string, cfg ComposerConfig) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", apperror.Wrap(apperror.KindFederationFailed, err, "encoding composer config")
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return "", apperror.Wrap(apperror.KindFederationFailed, err, "writing composer config")
	}

	result, err := c.Adapter.Run(ctx, tool.Invocation{Tool: c.ComposerCLI, Args: []string{"supergraph", "compose", "--config", configPath}})
	if err != nil {
		return "", apperror.Wrap(apperror.KindFederationFailed, err, "composer failed").WithDetails(strings.Split(result.Stderr, "\n")...)
	}
	return result.Stdout, nil
}

const minSupergraphSize = 1024 // 1 KiB, per §4.8 post-check 4

// PostChecks implements step 4: non-empty, >1KiB, contains "schema",
// warns (does not fail) if no federation directive is present.
func PostChecks(supergraph string) (warnings []string, err error) {
	if strings.TrimSpace(supergraph) == "" {
		return nil, apperror.New(apperror.KindFederationFailed, "composed supergraph is empty")
	}
	if len(supergraph) < minSupergraphSize {
		return nil, apperror.New(apperror.KindFederationFailed, fmt.Sprintf("composed supergraph is only %d bytes, expected at least %d", len(supergraph), minSupergraphSize))
	}
	if !strings.Contains(supergraph, "schema") {
		return nil, apperror.New(apperror.KindFederationFailed, "composed supergraph does not contain a schema definition")
	}
	if !strings.Contains(supergraph, "@join__") && !strings.Contains(supergraph, "@link") {
		warnings = append(warnings, "no federation directives found (expected @join__ or @link)")
	}
	return warnings, nil
}

// CalculateHash is the SHA-256 hex digest of content.
func CalculateHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// CountGraphQLTypes counts top-level type/input/enum/interface
// definitions, matching count_graphql_types's leading-token scan.
func CountGraphQLTypes(content []byte) int {
	count := 0
	for _, line := range strings.Split(string(content), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "type ") || strings.HasPrefix(trimmed, "input ") ||
			strings.HasPrefix(trimmed, "enum ") || strings.HasPrefix(trimmed, "interface ") {
			count++
		}
	}
	return count
}

// GenerateMetadata implements step 5: hash the composed supergraph,
// capture per-subgraph hash/size/type-count, and return the value to be
// written as supergraph-metadata.json.
func GenerateMetadata(supergraphBytes []byte, cfg ComposerConfig, triggeringService, gitCommit string, now time.Time) (Metadata, error) {
	meta := Metadata{
		SupergraphHash:    CalculateHash(supergraphBytes),
		ComposedAt:        now.UTC().Format(time.RFC3339),
		GitCommit:         gitCommit,
		TriggeringService: triggeringService,
		Services:          map[string]ServiceSchemaInfo{},
		FederationVersion: cfg.FederationVersion,
	}
	for _, sub := range cfg.Subgraphs {
		data, err := os.ReadFile(sub.SchemaPath)
		if err != nil {
			return Metadata{}, apperror.Wrap(apperror.KindFederationFailed, err, "reading "+sub.SchemaPath)
		}
		meta.Services[sub.ServiceName] = ServiceSchemaInfo{
			SchemaHash: CalculateHash(data),
			SchemaSize: int64(len(data)),
			TypeCount:  CountGraphQLTypes(data),
			RoutingURL: sub.RoutingURL,
		}
	}
	return meta, nil
}

// WriteMetadata persists meta as pretty-printed JSON at path.
func WriteMetadata(path string, meta Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return apperror.Wrap(apperror.KindFederationFailed, err, "encoding supergraph metadata")
	}
	return os.WriteFile(path, data, 0o644)
}

// AnnotationValue is the first 16 hex chars of the supergraph hash --
// short enough to read in `kubectl describe`, long enough to be
// collision-proof in practice.
func AnnotationValue(supergraphHash string) string {
	if len(supergraphHash) < 16 {
		return supergraphHash
	}
	return supergraphHash[:16]
}

// NotifyReload implements step 9: an optional POST to the router's
// admin reload endpoint. A failure here is a warning, never fatal
// (§4.8 failure semantics).
func NotifyReload(ctx context.Context, adminURL string) error {
	if adminURL == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(adminURL, "/")+"/admin/reload-supergraph", nil)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("reload endpoint returned %d", resp.StatusCode)
	}
	return nil
}
