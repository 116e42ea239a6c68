// Package manifest implements the run manifest: a JSON file mapping each
// source document's content hash to the content hashes of the outputs last
// produced from it. An output whose current content still matches the
// recorded hash is up to date and is skipped by the pipeline.
//
// The manifest is stored in the working directory as translation_manifest.json.
package manifest

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/ZaguanLabs/transctl"
)

// FileName is the manifest file name inside the working directory.
const FileName = "translation_manifest.json"

// Version is the manifest format version.
const Version = 1

// Entry lists the outputs produced from one source, keyed by absolute
// output path.
type Entry struct {
	Outputs map[string]string `json:"outputs"`
}

// File is the on-disk manifest structure.
type File struct {
	Version int              `json:"version"`
	Sources map[string]Entry `json:"sources"` // source content hash -> outputs
}

func emptyFile() *File {
	return &File{Version: Version, Sources: make(map[string]Entry)}
}

// Manifest is a loaded run manifest. It is not safe for use by several
// processes at once.
type Manifest struct {
	mu      sync.Mutex
	path    string
	file    *File // nil when no manifest exists on disk yet
	active  string
	entry   *Entry
	updated bool
	logger  *slog.Logger
}

var _ transctl.Manifest = (*Manifest)(nil)

// Option configures a Manifest.
type Option func(*Manifest)

// WithLogger sets the logger used for rebuild and purge messages.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manifest) {
		m.logger = l
	}
}

// Load reads the manifest from dir. A missing file is not an error: every
// output is then considered out of date.
func Load(dir string, opts ...Option) (*Manifest, error) {
	m := &Manifest{
		path:   filepath.Join(dir, FileName),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}

	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, &transctl.ManifestError{Message: "read failed", Path: m.path, Cause: err}
	}

	f := emptyFile()
	if err := json.Unmarshal(data, f); err != nil {
		return nil, &transctl.ManifestError{Message: "parse failed", Path: m.path, Cause: err}
	}
	if f.Sources == nil {
		f.Sources = make(map[string]Entry)
	}
	m.file = f
	return m, nil
}

// Path returns the manifest file path.
func (m *Manifest) Path() string {
	return m.path
}

// Sources returns a copy of the loaded source entries, nil when no manifest
// exists on disk.
func (m *Manifest) Sources() map[string]Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.file == nil {
		return nil
	}
	out := make(map[string]Entry, len(m.file.Sources))
	for k, e := range m.file.Sources {
		outputs := make(map[string]string, len(e.Outputs))
		for p, h := range e.Outputs {
			outputs[p] = h
		}
		out[k] = Entry{Outputs: outputs}
	}
	return out
}

// BindSource hashes the content of path and selects the matching entry for
// the following IsOutputValid calls.
func (m *Manifest) BindSource(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &transctl.ManifestError{Message: "read source failed", Path: path, Cause: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.active = transctl.HashText(string(data))
	m.entry = nil
	if m.file == nil {
		return nil
	}
	if e, ok := m.file.Sources[m.active]; ok {
		m.entry = &e
	}
	return nil
}

// Bound returns the content hash of the bound source, "" before BindSource.
func (m *Manifest) Bound() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// IsOutputValid reports whether path exists and its content hash equals the
// one recorded for the bound source.
func (m *Manifest) IsOutputValid(path string) bool {
	m.mu.Lock()
	entry := m.entry
	m.mu.Unlock()

	if entry == nil {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	want, ok := entry.Outputs[abs]
	if !ok {
		return false
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return false
	}
	return transctl.HashText(string(data)) == want
}

// MarkUpdated records that an output was (re)computed during this run.
func (m *Manifest) MarkUpdated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updated = true
}

// Updated reports whether MarkUpdated was called since the last write.
func (m *Manifest) Updated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updated
}

// Rebuild replaces the whole manifest with the current state of pairs and
// writes it. Inputs and outputs missing on disk are left out. Nothing is
// written unless an output was updated or force is set.
func (m *Manifest) Rebuild(pairs []transctl.OutputPair, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.updated && !force {
		m.logger.Debug("manifest unchanged", "path", m.path)
		return nil
	}

	f := emptyFile()
	sourceHashes := make(map[string]string)
	for _, pair := range pairs {
		hash, ok := sourceHashes[pair.Input]
		if !ok {
			data, err := os.ReadFile(pair.Input)
			if err != nil {
				continue
			}
			hash = transctl.HashText(string(data))
			sourceHashes[pair.Input] = hash
		}

		entry, ok := f.Sources[hash]
		if !ok {
			entry = Entry{Outputs: make(map[string]string)}
			f.Sources[hash] = entry
		}

		abs, err := filepath.Abs(pair.Output)
		if err != nil {
			return &transctl.ManifestError{Message: "resolve output path", Path: pair.Output, Cause: err}
		}
		data, err := os.ReadFile(abs)
		if err != nil {
			continue
		}
		entry.Outputs[abs] = transctl.HashText(string(data))
	}

	if err := m.write(f); err != nil {
		return err
	}
	m.logger.Info("manifest rebuilt", "path", m.path, "sources", len(f.Sources))
	return nil
}

// Purge writes an empty manifest, so every output is recomputed on the
// next run.
func (m *Manifest) Purge() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.write(emptyFile()); err != nil {
		return err
	}
	m.logger.Warn("manifest purged", "path", m.path)
	return nil
}

// write persists f and makes it the loaded manifest. Callers hold m.mu.
func (m *Manifest) write(f *File) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return &transctl.ManifestError{Message: "encode failed", Path: m.path, Cause: err}
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return &transctl.ManifestError{Message: "write failed", Path: m.path, Cause: err}
	}

	// Readers never see a partially written manifest.
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return &transctl.ManifestError{Message: "write failed", Path: m.path, Cause: err}
	}
	if err := os.Rename(tmp, m.path); err != nil {
		_ = os.Remove(tmp)
		return &transctl.ManifestError{Message: "write failed", Path: m.path, Cause: err}
	}

	m.file = f
	m.updated = false
	m.entry = nil
	if e, ok := f.Sources[m.active]; ok && m.active != "" {
		m.entry = &e
	}
	return nil
}
