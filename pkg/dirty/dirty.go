// Package dirty records which batch inputs changed since the last run.
// Each input is tracked by the hash of its content together with a
// signature of the options it was analysed with, so changing either makes
// the input dirty again.
package dirty

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/minio/highwayhash"
)

// DefaultStateFile is the state filename written inside the output directory.
const DefaultStateFile = ".sgraph-state.json"

const stateVersion = 1

var hashKey = []byte("sgraph-input-state-key-000000000")

// fileState is the recorded state of one input.
type fileState struct {
	Path      string `json:"path"`
	Hash      string `json:"hash"`
	Signature string `json:"signature"`
	LastSeen  int64  `json:"last_seen"` // Unix timestamp
}

// stateData is the on-disk JSON structure.
type stateData struct {
	Version int         `json:"version"`
	Files   []fileState `json:"files"`
}

// Tracker tracks inputs by content hash. It is safe for concurrent use.
type Tracker struct {
	mu    sync.RWMutex
	files map[string]fileState
	path  string
	now   func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithStateFile sets the file Load and Save use.
func WithStateFile(path string) Option {
	return func(t *Tracker) {
		t.path = path
	}
}

// New creates a Tracker whose state lives in dir.
func New(dir string, opts ...Option) *Tracker {
	t := &Tracker{
		files: make(map[string]fileState),
		path:  filepath.Join(dir, DefaultStateFile),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Hash computes the content hash of the file at path.
func Hash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer f.Close()

	h, err := highwayhash.New(hashKey)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash file %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Check hashes the input at full and reports whether it differs from what
// was recorded for rel under signature. The returned hash is passed to
// Record once the input has been processed.
func (t *Tracker) Check(ctx context.Context, rel, full, signature string) (bool, string, error) {
	if err := ctx.Err(); err != nil {
		return false, "", err
	}
	hash, err := Hash(full)
	if err != nil {
		return false, "", err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	existing, ok := t.files[rel]
	return !ok || existing.Hash != hash || existing.Signature != signature, hash, nil
}

// Record stores the state of a processed input.
func (t *Tracker) Record(rel, hash, signature string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.files[rel] = fileState{
		Path:      rel,
		Hash:      hash,
		Signature: signature,
		LastSeen:  t.now().Unix(),
	}
}

// Forget drops rel, making it dirty on the next Check.
func (t *Tracker) Forget(rel string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.files, rel)
}

// Count returns the number of tracked inputs.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.files)
}

// Save persists the state file, creating its directory.
func (t *Tracker) Save() error {
	if err := os.MkdirAll(filepath.Dir(t.path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	f, err := os.Create(t.path)
	if err != nil {
		return fmt.Errorf("failed to create state file: %w", err)
	}
	if err := t.SaveTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load restores the state file. A missing file leaves the tracker empty.
func (t *Tracker) Load() error {
	f, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open state file: %w", err)
	}
	defer f.Close()
	return t.LoadFrom(f)
}

// SaveTo writes the state to w, sorted by path.
func (t *Tracker) SaveTo(w io.Writer) error {
	t.mu.RLock()
	files := make([]fileState, 0, len(t.files))
	for _, state := range t.files {
		files = append(files, state)
	}
	t.mu.RUnlock()
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(stateData{Version: stateVersion, Files: files}); err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	return nil
}

// LoadFrom reads state written by SaveTo. State from another version is
// discarded.
func (t *Tracker) LoadFrom(r io.Reader) error {
	var data stateData
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return fmt.Errorf("failed to decode state: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.files = make(map[string]fileState, len(data.Files))
	if data.Version != stateVersion {
		return nil
	}
	for _, state := range data.Files {
		t.files[state.Path] = state
	}
	return nil
}
