package artifact

import (
	"testing"
	"time"

	"github.com/spf13/afero"
)

func TestWriteLoadRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewStoreWithFs(fs, "/deploy/api.artifact.json")

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if _, err := store.Write("abc1234", now); err != nil {
		t.Fatalf("first write: %v", err)
	}
	later := now.Add(time.Hour)
	written, err := store.Write("def5678", later)
	if err != nil {
		t.Fatalf("second write: %v", err)
	}
	if written.Tag != "def5678" || written.PreviousTag != "abc1234" {
		t.Fatalf("unexpected write result: %+v", written)
	}

	loaded, ok, err := store.Load()
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if loaded != written {
		t.Fatalf("round trip mismatch: loaded=%+v written=%+v", loaded, written)
	}
}

func TestSwapIsOwnInverse(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewStoreWithFs(fs, "/deploy/api.artifact.json")
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	if _, err := store.Write("abc1234", now); err != nil {
		t.Fatalf("write 1: %v", err)
	}
	if _, err := store.Write("def5678", now); err != nil {
		t.Fatalf("write 2: %v", err)
	}

	afterFirstSwap, err := store.Swap(now)
	if err != nil {
		t.Fatalf("first swap: %v", err)
	}
	if afterFirstSwap.Tag != "abc1234" || afterFirstSwap.PreviousTag != "def5678" {
		t.Fatalf("unexpected state after first swap: %+v", afterFirstSwap)
	}

	afterSecondSwap, err := store.Swap(now)
	if err != nil {
		t.Fatalf("second swap: %v", err)
	}
	if afterSecondSwap.Tag != "def5678" || afterSecondSwap.PreviousTag != "abc1234" {
		t.Fatalf("second swap should invert the first: %+v", afterSecondSwap)
	}
}

func TestLoadMissingFileIsNotError(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewStoreWithFs(fs, "/deploy/api.artifact.json")
	_, ok, err := store.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false for missing file")
	}
}

func TestSwapWithoutPreviousErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewStoreWithFs(fs, "/deploy/api.artifact.json")
	now := time.Now().UTC()
	if _, err := store.Write("abc1234", now); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := store.Swap(now); err == nil {
		t.Fatalf("expected error swapping with no previous tag")
	}
}
