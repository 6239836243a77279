// Package image implements the Image Publisher (C5): gets a service's
// container image into its registry under the release tag, either by
// reusing a prebuilt local image (tagged during an earlier gate) or by
// invoking a build, then pushing. Grounded on
// original_source/cli/src/commands/product_release.rs
// (check_local_image_exists, push_prebuilt_image).
package image

import (
	"context"
	"fmt"
	"strings"

	"github.com/pleme-io/releaseforge/pkg/apperror"
	"github.com/pleme-io/releaseforge/pkg/tool"
)

// Tag renders the architecture-qualified tag the registry expects, e.g.
// "amd64-abc1234".
func Tag(sha string) string {
	return "amd64-" + sha
}

// LatestTag renders the architecture-qualified rolling tag pushed
// alongside the SHA tag when auto-tagging is enabled (spec.md §4.5).
func LatestTag() string {
	return "amd64-latest"
}

// Ref joins a registry path and tag into a pullable reference.
func Ref(registry, tag string) string {
	return fmt.Sprintf("%s:%s", registry, tag)
}

// BuildCommand is the build-and-push invocation the caller supplies for
// services with no prebuilt image (spec.md §6's "build" hook per
// service); nil means "no local build available," which makes this
// publish attempt fail rather than silently skip.
type BuildCommand struct {
	Tool string
	Args []string
	Dir  string
}

// Publisher runs docker (or an equivalent OCI CLI) through the External
// Tool Adapter to push a service's image for one release.
type Publisher struct {
	Adapter *tool.Adapter
	// CLI is the image tool, "docker" by default; configurable so the
	// rest of the pack's ecosystem tools (e.g. podman, skopeo) can stand
	// in without code changes.
	CLI string
}

// NewPublisher returns a Publisher using the docker CLI.
func NewPublisher(adapter *tool.Adapter) *Publisher {
	return &Publisher{Adapter: adapter, CLI: "docker"}
}

// localImageID returns the first image ID `docker images -q localName`
// reports, or "" if none exists.
func (p *Publisher) localImageID(ctx context.Context, localName string) (string, error) {
	result, err := p.Adapter.Run(ctx, tool.Invocation{Tool: p.CLI, Args: []string{"images", "-q", localName}})
	if err != nil {
		return "", err
	}
	out := strings.TrimSpace(result.Stdout)
	if out == "" {
		return "", nil
	}
	return strings.SplitN(out, "\n", 2)[0], nil
}

// tagAndPush tags imageID as registry:tag and pushes it.
func (p *Publisher) tagAndPush(ctx context.Context, imageID, registry, tag string) error {
	fullTag := Ref(registry, tag)
	if _, err := p.Adapter.Run(ctx, tool.Invocation{Tool: p.CLI, Args: []string{"tag", imageID, fullTag}}); err != nil {
		return fmt.Errorf("tagging %s: %w", fullTag, err)
	}
	if _, err := p.Adapter.Run(ctx, tool.Invocation{
		Tool: p.CLI, Args: []string{"push", fullTag}, Retry: tool.RetrySafe, SafeMode: true,
	}); err != nil {
		return fmt.Errorf("pushing %s: %w", fullTag, err)
	}
	return nil
}

// PushPrebuilt tags the already-built localName image with registry:tag
// and pushes it, avoiding a redundant build when one ran during an
// earlier gate (E2E or frontend build gates can leave an image loaded
// into the local docker daemon). When autoTag is enabled it additionally
// tags and pushes the rolling {arch}-latest tag against the same image
// (spec.md §4.5's "always pushes two tags per architecture").
func (p *Publisher) PushPrebuilt(ctx context.Context, localName, registry, tag string, autoTag bool) error {
	imageID, err := p.localImageID(ctx, localName)
	if err != nil {
		return fmt.Errorf("checking for local image %s: %w", localName, err)
	}
	if imageID == "" {
		return apperror.New(apperror.KindOperationalFailure, "no local image found for "+localName)
	}

	if err := p.tagAndPush(ctx, imageID, registry, tag); err != nil {
		return err
	}
	if autoTag {
		if err := p.tagAndPush(ctx, imageID, registry, LatestTag()); err != nil {
			return fmt.Errorf("auto-tagging %s as %s: %w", localName, LatestTag(), err)
		}
	}
	return nil
}

// BuildAndPush runs build, then tags and pushes its output image under
// registry:tag (and registry:{arch}-latest when autoTag is set), for
// services with no prebuilt image available.
func (p *Publisher) BuildAndPush(ctx context.Context, build BuildCommand, localName, registry, tag string, autoTag bool) error {
	if _, err := p.Adapter.Run(ctx, tool.Invocation{
		Tool: build.Tool, Args: build.Args, Dir: build.Dir, Retry: tool.RetrySafe, SafeMode: true,
	}); err != nil {
		return fmt.Errorf("building image: %w", err)
	}
	return p.PushPrebuilt(ctx, localName, registry, tag, autoTag)
}

// Publish picks prebuilt-reuse over a fresh build whenever a matching
// local image already exists, implementing the original's "Phase 1
// reuses those prebuilt images when available, avoiding redundant
// builds" rule. build may be nil when the service has no build step
// configured (e.g. a config-only deploy-once service). autoTag mirrors
// the service's release.auto_tag setting.
func (p *Publisher) Publish(ctx context.Context, localName, registry, sha string, build *BuildCommand, autoTag bool) (ref string, err error) {
	tag := Tag(sha)
	imageID, err := p.localImageID(ctx, localName)
	if err != nil {
		return "", fmt.Errorf("checking for local image %s: %w", localName, err)
	}
	if imageID != "" {
		if err := p.PushPrebuilt(ctx, localName, registry, tag, autoTag); err != nil {
			return "", err
		}
		return Ref(registry, tag), nil
	}
	if build == nil {
		return "", apperror.New(apperror.KindOperationalFailure,
			"no prebuilt image for "+localName+" and no build configured")
	}
	if err := p.BuildAndPush(ctx, *build, localName, registry, tag, autoTag); err != nil {
		return "", err
	}
	return Ref(registry, tag), nil
}
