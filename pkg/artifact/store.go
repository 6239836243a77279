// Package artifact implements the Artifact Store (C2): atomic persistence
// of per-service build-output metadata. Grounded on the JSON sidecar
// described in spec.md §3/§6 and on original_source's artifact tag model
// (build-once, promote-many). Uses afero so tests substitute an in-memory
// filesystem, matching the teacher's go.mod choice of afero for fs access.
package artifact

import (
	"encoding/json"
	"time"

	"github.com/pleme-io/releaseforge/pkg/apperror"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

// Info is the on-disk artifact metadata for one service.
type Info struct {
	Tag          string    `json:"tag"`
	PreviousTag  string    `json:"previous_tag"`
	BuiltAt      time.Time `json:"built_at"`
}

// Store reads and writes Info values to a machine-managed JSON file
// alongside human-edited config.
type Store struct {
	fs         afero.Fs
	path       string
	legacyPath string
}

// NewStore returns a Store backed by the real filesystem for the given
// artifact file path.
func NewStore(path string) *Store {
	return &Store{fs: afero.NewOsFs(), path: path}
}

// NewStoreWithFs returns a Store backed by an arbitrary afero.Fs, used by
// tests.
func NewStoreWithFs(fs afero.Fs, path string) *Store {
	return &Store{fs: fs, path: path}
}

// Path returns the JSON sidecar path this Store writes to, so callers can
// batch multiple services' artifact files into one GitOps commit (C12
// Phase 3: "stage, commit, push all artifact files in one commit").
func (s *Store) Path() string {
	return s.path
}

// WithLegacyYAML sets a read-only fallback source: a service YAML file
// that may carry an embedded "artifact:" block in the old pre-sidecar
// schema. Per spec.md's resolved Open Question, JSON is canonical and the
// legacy block is read-only -- Write and Swap never touch legacyPath.
func (s *Store) WithLegacyYAML(path string) *Store {
	s.legacyPath = path
	return s
}

// Load reads the current artifact metadata. It tries the JSON sidecar
// first; if that file doesn't exist, it falls back to the legacy
// YAML-embedded "artifact:" block (if a legacy path was configured),
// matching spec.md step 5 ("load from the JSON sidecar if present,
// otherwise from a legacy embedded block in the service YAML"). A
// missing file is not an error: it reports ok=false so callers (C5's
// prebuilt-reuse check, C12's deploy-only tag resolution) can
// distinguish "never built" from a read failure.
func (s *Store) Load() (info Info, ok bool, err error) {
	exists, err := afero.Exists(s.fs, s.path)
	if err != nil {
		return Info{}, false, apperror.Wrap(apperror.KindConfigInvalid, err, "checking artifact file")
	}
	if !exists {
		return s.loadLegacy()
	}
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return Info{}, false, apperror.Wrap(apperror.KindConfigInvalid, err, "reading artifact file")
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return Info{}, false, apperror.Wrap(apperror.KindConfigParse, err, "parsing artifact file "+s.path)
	}
	return info, true, nil
}

// loadLegacy reads the "artifact:" block embedded in legacyPath, if one
// was configured and the file declares it. Never writes to legacyPath:
// migration off the legacy schema happens the next time Write runs.
func (s *Store) loadLegacy() (Info, bool, error) {
	if s.legacyPath == "" {
		return Info{}, false, nil
	}
	exists, err := afero.Exists(s.fs, s.legacyPath)
	if err != nil {
		return Info{}, false, apperror.Wrap(apperror.KindConfigInvalid, err, "checking legacy artifact source")
	}
	if !exists {
		return Info{}, false, nil
	}
	data, err := afero.ReadFile(s.fs, s.legacyPath)
	if err != nil {
		return Info{}, false, apperror.Wrap(apperror.KindConfigInvalid, err, "reading legacy artifact source")
	}
	var embedded struct {
		Artifact *Info `json:"artifact"`
	}
	if err := yaml.Unmarshal(data, &embedded); err != nil {
		return Info{}, false, apperror.Wrap(apperror.KindConfigParse, err, "parsing legacy artifact block in "+s.legacyPath)
	}
	if embedded.Artifact == nil {
		return Info{}, false, nil
	}
	return *embedded.Artifact, true, nil
}

// Write persists tag as current, demoting the existing current to
// previous, stamping built_at now. The write is atomic: a temp file is
// written then renamed over the target, so a crash mid-write never leaves
// a half-written artifact file (§3 invariant 2, §4.2 guarantees).
func (s *Store) Write(tag string, now time.Time) (Info, error) {
	existing, _, err := s.Load()
	if err != nil {
		return Info{}, err
	}
	info := Info{
		Tag:         tag,
		PreviousTag: existing.Tag,
		BuiltAt:     now,
	}
	if err := s.writeAtomic(info); err != nil {
		return Info{}, err
	}
	return info, nil
}

// Swap exchanges current and previous tags -- the rollback primitive (C13).
// Two sequential swaps are a no-op on tags (§3 invariant 2).
func (s *Store) Swap(now time.Time) (Info, error) {
	existing, ok, err := s.Load()
	if err != nil {
		return Info{}, err
	}
	if !ok || existing.PreviousTag == "" {
		return Info{}, apperror.New(apperror.KindConfigInvalid, "no previous tag to roll back to")
	}
	swapped := Info{
		Tag:         existing.PreviousTag,
		PreviousTag: existing.Tag,
		BuiltAt:     now,
	}
	if err := s.writeAtomic(swapped); err != nil {
		return Info{}, err
	}
	return swapped, nil
}

// writeAtomic writes info as canonical-ordered, pretty-printed JSON via a
// write-temp-then-rename so concurrent readers never observe a partial
// file (§4.2).
func (s *Store) writeAtomic(info Info) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return apperror.Wrap(apperror.KindConfigInvalid, err, "encoding artifact info")
	}
	data = append(data, '\n')

	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return apperror.Wrap(apperror.KindConfigInvalid, err, "writing temp artifact file")
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		return apperror.Wrap(apperror.KindConfigInvalid, err, "renaming artifact file into place")
	}
	return nil
}
