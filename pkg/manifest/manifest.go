// Package manifest implements the Manifest Mutator (C6): applies small,
// targeted edits to Kubernetes YAML manifests checked into a GitOps repo
// -- set a container's image tag, set an environment variable, set a pod
// template annotation -- without reformatting documents it doesn't touch.
// Grounded on original_source/cli/src/commands/federation.rs's
// multi-document split-by-"---", parse-by-kind, patch, rejoin pattern
// (there reused for the hive-router Deployment's supergraph.hash
// annotation).
package manifest

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const docSeparator = "\n---\n"

// SplitDocuments breaks a multi-document YAML file into its constituent
// documents, dropping blank ones, matching the original's
// `split("\n---\n").filter(not empty)`.
func SplitDocuments(content string) []string {
	var docs []string
	for _, doc := range strings.Split(content, "\n---\n") {
		if strings.TrimSpace(doc) != "" {
			docs = append(docs, doc)
		}
	}
	return docs
}

// JoinDocuments is SplitDocuments' inverse.
func JoinDocuments(docs []string) string {
	return strings.Join(docs, docSeparator)
}

// findDocument returns the index of the document whose top-level `kind`
// and `metadata.name` match, or -1 if none does.
func findDocument(docs []string, kind, name string) (int, *yaml.Node, error) {
	for i, doc := range docs {
		var root yaml.Node
		if err := yaml.Unmarshal([]byte(doc), &root); err != nil {
			return -1, nil, fmt.Errorf("parsing document %d: %w", i, err)
		}
		if len(root.Content) == 0 {
			continue
		}
		body := root.Content[0]
		if mapValue(body, "kind") == kind && mapValue(mapNode(body, "metadata"), "name") == name {
			return i, body, nil
		}
	}
	return -1, nil, nil
}

// mapNode returns the value node for key within a mapping node, or nil.
func mapNode(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func mapValue(m *yaml.Node, key string) string {
	v := mapNode(m, key)
	if v == nil {
		return ""
	}
	return v.Value
}

// setMapValue sets key=value within mapping node m, creating the scalar
// entry if it doesn't already exist, and preserving every other key.
func setMapValue(m *yaml.Node, key, value string) {
	if v := mapNode(m, key); v != nil {
		v.Value = value
		v.Tag = "!!str"
		return
	}
	m.Content = append(m.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: key},
		&yaml.Node{Kind: yaml.ScalarNode, Value: value, Tag: "!!str"})
}

// ensureMapNode returns the mapping node at key within m, creating an
// empty one if absent.
func ensureMapNode(m *yaml.Node, key string) *yaml.Node {
	if v := mapNode(m, key); v != nil {
		return v
	}
	empty := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: key}, empty)
	return empty
}

// seqItems returns the items of a sequence node, or nil.
func seqItems(n *yaml.Node) []*yaml.Node {
	if n == nil || n.Kind != yaml.SequenceNode {
		return nil
	}
	return n.Content
}

func podTemplateContainers(doc *yaml.Node) []*yaml.Node {
	spec := mapNode(doc, "spec")
	template := mapNode(spec, "template")
	tmplSpec := mapNode(template, "spec")
	containers := mapNode(tmplSpec, "containers")
	return seqItems(containers)
}

func findContainer(doc *yaml.Node, name string) *yaml.Node {
	for _, c := range podTemplateContainers(doc) {
		if mapValue(c, "name") == name {
			return c
		}
	}
	return nil
}

func serialize(docs []string, index int, doc *yaml.Node) ([]string, error) {
	var buf strings.Builder
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("serializing document %d: %w", index, err)
	}
	_ = enc.Close()
	out := append([]string(nil), docs...)
	out[index] = strings.TrimRight(buf.String(), "\n")
	return out, nil
}

// SetImageTag rewrites the named container's image to repo:tag in the
// document identified by (kind, name).
func SetImageTag(docs []string, kind, name, container, repo, tag string) ([]string, error) {
	idx, doc, err := findDocument(docs, kind, name)
	if err != nil {
		return nil, err
	}
	if idx < 0 {
		return nil, fmt.Errorf("no %s named %s found in manifest", kind, name)
	}
	c := findContainer(doc, container)
	if c == nil {
		return nil, fmt.Errorf("no container named %s in %s/%s", container, kind, name)
	}
	setMapValue(c, "image", fmt.Sprintf("%s:%s", repo, tag))
	return serialize(docs, idx, doc)
}

// SetEnvVar sets (or adds) an environment variable on the named
// container.
func SetEnvVar(docs []string, kind, name, container, key, value string) ([]string, error) {
	idx, doc, err := findDocument(docs, kind, name)
	if err != nil {
		return nil, err
	}
	if idx < 0 {
		return nil, fmt.Errorf("no %s named %s found in manifest", kind, name)
	}
	c := findContainer(doc, container)
	if c == nil {
		return nil, fmt.Errorf("no container named %s in %s/%s", container, kind, name)
	}
	env := mapNode(c, "env")
	if env == nil {
		env = &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		c.Content = append(c.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: "env"}, env)
	}
	for _, e := range env.Content {
		if mapValue(e, "name") == key {
			setMapValue(e, "value", value)
			return serialize(docs, idx, doc)
		}
	}
	entry := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	setMapValue(entry, "name", key)
	setMapValue(entry, "value", value)
	env.Content = append(env.Content, entry)
	return serialize(docs, idx, doc)
}

// SetAnnotation sets a pod-template annotation on the named workload,
// the same edit the hive-router deployment's supergraph.hash stamp
// performs.
func SetAnnotation(docs []string, kind, name, key, value string) ([]string, error) {
	idx, doc, err := findDocument(docs, kind, name)
	if err != nil {
		return nil, err
	}
	if idx < 0 {
		return nil, fmt.Errorf("no %s named %s found in manifest", kind, name)
	}
	spec := ensureMapNode(doc, "spec")
	template := ensureMapNode(spec, "template")
	metadata := ensureMapNode(template, "metadata")
	annotations := ensureMapNode(metadata, "annotations")
	setMapValue(annotations, key, value)
	return serialize(docs, idx, doc)
}
