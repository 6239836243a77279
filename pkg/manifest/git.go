package manifest

import (
	"context"
	"fmt"
	"strings"

	"github.com/pleme-io/releaseforge/pkg/apperror"
	"github.com/pleme-io/releaseforge/pkg/tool"
)

// CommitAndPush stages files, commits with message if there's anything
// staged, and pushes. A clean `git diff --cached --quiet` (nothing
// staged) is not an error: it means the manifest edit round-tripped to
// the same bytes, matching the original's "No changes to commit
// (already at this version)" short-circuit.
//
// Grounded on original_source/cli/src/commands/nix_builder.rs's
// commit_and_push_release.
func CommitAndPush(ctx context.Context, adapter *tool.Adapter, repoDir string, files []string, message string) error {
	if len(files) == 0 {
		return apperror.New(apperror.KindManifestInvalid, "commit_and_push requires at least one file")
	}

	addArgs := append([]string{"add"}, files...)
	if _, err := adapter.Run(ctx, tool.Invocation{Tool: "git", Args: addArgs, Dir: repoDir}); err != nil {
		return fmt.Errorf("staging release files: %w", err)
	}

	_, diffErr := adapter.Run(ctx, tool.Invocation{
		Tool: "git", Args: []string{"diff", "--cached", "--quiet"}, Dir: repoDir,
	})
	if diffErr == nil {
		return nil
	}

	if _, err := adapter.Run(ctx, tool.Invocation{
		Tool: "git", Args: []string{"commit", "-m", message}, Dir: repoDir,
	}); err != nil {
		return fmt.Errorf("committing release changes: %w", err)
	}

	if _, err := adapter.Run(ctx, tool.Invocation{
		Tool: "git", Args: []string{"push"}, Dir: repoDir, Retry: tool.RetrySafe, SafeMode: true,
	}); err != nil {
		return fmt.Errorf("pushing release changes: %w", err)
	}
	return nil
}

// CommitMessage builds the standard chore(release) commit message the
// original emits for tag-bump commits.
func CommitMessage(component, newTag, detail string) string {
	if detail == "" {
		return fmt.Sprintf("chore(release): update %s to %s", component, newTag)
	}
	return fmt.Sprintf("chore(release): update %s to %s\n\n%s", component, newTag, strings.TrimSpace(detail))
}
