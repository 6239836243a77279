package migration

import (
	"testing"
	"time"

	"github.com/pleme-io/releaseforge/pkg/config"
)

func TestRunMode(t *testing.T) {
	cases := []struct {
		db       config.DatabaseType
		wantMode string
		wantSkip bool
	}{
		{config.DatabasePostgres, "migrate", false},
		{config.DatabaseClickhouse, "migrate_clickhouse", false},
		{config.DatabaseElasticsearch, "migrate_elasticsearch", false},
		{config.DatabaseDatabend, "MIGRATE", false},
		{config.DatabaseNone, "", true},
	}
	for _, tc := range cases {
		mode, skip := RunMode(tc.db)
		if mode != tc.wantMode || skip != tc.wantSkip {
			t.Errorf("RunMode(%v) = (%q, %v), want (%q, %v)", tc.db, mode, skip, tc.wantMode, tc.wantSkip)
		}
	}
}

func TestJobNameIsFreshPerInvocation(t *testing.T) {
	t1 := time.Unix(1000, 0)
	t2 := time.Unix(1001, 0)
	if JobName("api", t1) == JobName("api", t2) {
		t.Fatalf("expected distinct job names for distinct timestamps")
	}
}

func TestImageRef(t *testing.T) {
	got := ImageRef("r.io/o/p/app-api", "amd64-abc1234")
	want := "r.io/o/p/app-api:amd64-abc1234"
	if got != want {
		t.Fatalf("ImageRef() = %q, want %q", got, want)
	}
}
