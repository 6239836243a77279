package tool

import (
	"context"
	"testing"
	"time"
)

func TestBackoffDoublesAndCaps(t *testing.T) {
	b := NewBackoff(2*time.Second, 30*time.Second)
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 30 * time.Second, 30 * time.Second}
	for i, w := range want {
		got := b.Next()
		if got != w {
			t.Fatalf("step %d: got %v want %v", i, got, w)
		}
	}
}

func TestRedactHidesCredentials(t *testing.T) {
	line := "skopeo copy --dest-creds token=abc123secret docker://x"
	got := redact(line)
	if got == line {
		t.Fatalf("expected redaction to change the line")
	}
	if contains(got, "abc123secret") {
		t.Fatalf("credential leaked: %s", got)
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (func() bool {
		for i := 0; i+len(substr) <= len(s); i++ {
			if s[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	})()
}

func TestTailLinesTruncates(t *testing.T) {
	s := "a\nb\nc\nd\ne"
	got := tailLines(s, 2)
	if len(got) != 2 || got[0] != "d" || got[1] != "e" {
		t.Fatalf("unexpected tail: %+v", got)
	}
}

func TestRunMissingToolIsFatal(t *testing.T) {
	a := NewAdapter()
	_, err := a.Run(context.Background(), Invocation{Tool: "definitely-not-a-real-binary-xyz"})
	if err == nil {
		t.Fatalf("expected error for missing tool")
	}
}
