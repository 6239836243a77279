package image

import (
	"context"
	"testing"

	"github.com/pleme-io/releaseforge/pkg/apperror"
	"github.com/pleme-io/releaseforge/pkg/tool"
)

func TestTagAndRef(t *testing.T) {
	if got := Tag("abc1234"); got != "amd64-abc1234" {
		t.Fatalf("Tag() = %q", got)
	}
	if got := Ref("r.io/o/p/api", "amd64-abc1234"); got != "r.io/o/p/api:amd64-abc1234" {
		t.Fatalf("Ref() = %q", got)
	}
}

func TestPublishFailsFastWithNoPrebuiltAndNoBuild(t *testing.T) {
	p := &Publisher{Adapter: tool.NewAdapter(), CLI: "true"}
	_, err := p.Publish(context.Background(), "app-api", "r.io/o/p/api", "abc1234", nil, false)
	if err == nil {
		t.Fatalf("expected an error when no prebuilt image and no build is configured")
	}
	if apperror.KindOf(err) != apperror.KindOperationalFailure {
		t.Fatalf("expected KindOperationalFailure, got %v", apperror.KindOf(err))
	}
}
