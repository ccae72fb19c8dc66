// Package state tracks per-model run state in a JSON file: compiled SQL
// checksums, row counts, and last-run timestamps. The checksum feeds
// changed-only runs; everything else is observability.
package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/quarrydata/quarry/pkg/core"
)

// File is the on-disk run state, keyed by model name.
type File struct {
	UpdatedAt time.Time              `json:"updated_at"`
	Models    map[string]*ModelState `json:"models"`
}

// ModelState snapshots one model's last successful run.
type ModelState struct {
	Name     string    `json:"name"`
	LastRun  time.Time `json:"last_run"`
	RowCount int64     `json:"row_count,omitempty"`
	// Checksum is the SHA256 of the compiled SQL at run time.
	Checksum string `json:"checksum"`
	// Config snapshots the materialization settings the run used.
	Config ModelStateConfig `json:"config"`
}

// ModelStateConfig is the materialization configuration snapshot.
type ModelStateConfig struct {
	Materialized   core.Materialization     `json:"materialized"`
	Schema         string                   `json:"schema,omitempty"`
	UniqueKey      []string                 `json:"unique_key,omitempty"`
	Strategy       core.IncrementalStrategy `json:"incremental_strategy,omitempty"`
	OnSchemaChange core.OnSchemaChange      `json:"on_schema_change,omitempty"`
}

// New returns an empty state file.
func New() *File {
	return &File{
		UpdatedAt: time.Now().UTC(),
		Models:    make(map[string]*ModelState),
	}
}

// Load reads the state file at path. A missing file yields a fresh state.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	if f.Models == nil {
		f.Models = make(map[string]*ModelState)
	}
	return &f, nil
}

// Save writes the state file, creating parent directories as needed.
func (f *File) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}

// Get returns the state for a model, or nil.
func (f *File) Get(name string) *ModelState {
	return f.Models[name]
}

// Update records a model's successful run. rowCount < 0 means unavailable.
func (f *File) Update(m *core.CompiledModel, rowCount int64) {
	ms := &ModelState{
		Name:     m.Name,
		LastRun:  time.Now().UTC(),
		Checksum: Checksum(m.SQL),
		Config: ModelStateConfig{
			Materialized:   m.Materialization,
			Schema:         m.Schema,
			UniqueKey:      m.UniqueKey,
			Strategy:       m.Strategy,
			OnSchemaChange: m.OnSchemaChange,
		},
	}
	if rowCount >= 0 {
		ms.RowCount = rowCount
	}
	f.Models[m.Name] = ms
	f.UpdatedAt = time.Now().UTC()
}

// IsModified reports whether a model's SQL changed since its last recorded
// run. Unknown models count as modified.
func (f *File) IsModified(name, currentChecksum string) bool {
	ms, ok := f.Models[name]
	if !ok {
		return true
	}
	return ms.Checksum != currentChecksum
}

// Checksum returns the hex SHA256 of s.
func Checksum(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
