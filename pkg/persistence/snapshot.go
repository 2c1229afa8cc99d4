package persistence

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/qtilities/qtilities-go/pkg/codec"
	"github.com/qtilities/qtilities-go/pkg/observer"
)

// ManifestVersion is the current version of the manifest file format.
const ManifestVersion = 1

// ManifestFile is the manifest file name inside a store directory.
const ManifestFile = "manifest.json"

// Snapshot store errors.
var (
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrInvalidName      = errors.New("invalid snapshot name")
	ErrUnknownFormat    = errors.New("unknown snapshot format")
	ErrManifestTooNew   = errors.New("manifest version not supported")
	ErrExportFailed     = errors.New("export failed")
)

// Format selects the codec form of a snapshot file.
type Format string

const (
	FormatBinary Format = "binary"
	FormatTree   Format = "tree"
)

func (f Format) extension() (string, error) {
	switch f {
	case FormatBinary:
		return ".qbin", nil
	case FormatTree:
		return ".qtree.yaml", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
	}
}

// Manifest lists the snapshots of a store.
type Manifest struct {
	// Version is the manifest file format version.
	Version int `json:"version"`

	// SavedAt is when the manifest was last written.
	SavedAt time.Time `json:"saved_at"`

	// Snapshots are sorted by name.
	Snapshots []Snapshot `json:"snapshots,omitempty"`
}

// Find returns the snapshot with the given name.
func (m *Manifest) Find(name string) (Snapshot, bool) {
	for _, s := range m.Snapshots {
		if s.Name == name {
			return s, true
		}
	}
	return Snapshot{}, false
}

func (m *Manifest) put(s Snapshot) {
	for i := range m.Snapshots {
		if m.Snapshots[i].Name == s.Name {
			m.Snapshots[i] = s
			return
		}
	}
	m.Snapshots = append(m.Snapshots, s)
	sort.Slice(m.Snapshots, func(i, j int) bool { return m.Snapshots[i].Name < m.Snapshots[j].Name })
}

func (m *Manifest) remove(name string) (Snapshot, bool) {
	for i, s := range m.Snapshots {
		if s.Name == name {
			m.Snapshots = append(m.Snapshots[:i], m.Snapshots[i+1:]...)
			return s, true
		}
	}
	return Snapshot{}, false
}

// Snapshot describes one saved export.
type Snapshot struct {
	// Name identifies the snapshot within the store.
	Name string `json:"name"`

	// File is the export file name, relative to the store directory.
	File string `json:"file"`

	// Format is the codec form of the file.
	Format Format `json:"format"`

	// FormatVersion is the codec format version written.
	FormatVersion string `json:"format_version"`

	// Observer is the name of the exported observer.
	Observer string `json:"observer"`

	// Subjects is the number of subject records in the export.
	Subjects int `json:"subjects"`

	// SessionID is the session of the manager that saved the snapshot.
	SessionID string `json:"session_id,omitempty"`

	// SavedAt is when the snapshot was written.
	SavedAt time.Time `json:"saved_at"`
}

// SnapshotStore saves and loads observer exports in a directory.
type SnapshotStore struct {
	mu  sync.Mutex
	dir string
}

// NewSnapshotStore creates a store rooted at dir. The directory is created
// on the first Save.
func NewSnapshotStore(dir string) *SnapshotStore {
	return &SnapshotStore{dir: dir}
}

// Dir returns the store directory.
func (s *SnapshotStore) Dir() string { return s.dir }

// Save exports obs under name, replacing an existing snapshot of that name.
// An export that leaves subjects out (Incomplete) is still saved.
func (s *SnapshotStore) Save(name string, obs *observer.Observer, format Format, opts codec.Options) (*Snapshot, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	ext, err := format.extension()
	if err != nil {
		return nil, err
	}
	if obs == nil {
		return nil, codec.ErrNilObserver
	}

	var buf bytes.Buffer
	var res codec.Result
	switch format {
	case FormatBinary:
		res, err = codec.ExportBinary(&buf, obs, opts)
	case FormatTree:
		res, err = codec.ExportTree(&buf, obs, opts)
	}
	if !res.OK() {
		return nil, fmt.Errorf("%w: %s: %v", ErrExportFailed, res, err)
	}

	// Read back what was written so the manifest records the negotiated
	// version and the subject count.
	doc, _, derr := decode(bytes.NewReader(buf.Bytes()), format)
	if derr != nil {
		return nil, fmt.Errorf("%w: %v", ErrExportFailed, derr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, err
	}
	m, err := s.readManifest()
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = &Manifest{}
	}

	snap := Snapshot{
		Name:          name,
		File:          name + ext,
		Format:        format,
		FormatVersion: doc.Version.String(),
		Observer:      obs.ObjectName(),
		Subjects:      doc.Subjects(),
		SessionID:     obs.Manager().SessionID(),
		SavedAt:       time.Now(),
	}
	if old, ok := m.Find(name); ok && old.File != snap.File {
		if err := removeFile(filepath.Join(s.dir, old.File)); err != nil {
			return nil, err
		}
	}
	if err := writeFile(filepath.Join(s.dir, snap.File), buf.Bytes()); err != nil {
		return nil, err
	}
	m.put(snap)
	if err := s.writeManifest(m); err != nil {
		return nil, err
	}

	obs.Manager().Logger().Info("snapshot saved",
		"name", name, "format", string(format), "version", snap.FormatVersion,
		"subjects", snap.Subjects, "result", res.String())
	return &snap, nil
}

// Load imports the named snapshot into target. The result is that of the
// import; see codec.ImportTree.
func (s *SnapshotStore) Load(name string, target *observer.Observer, opts codec.Options) (codec.Result, error) {
	snap, err := s.Snapshot(name)
	if err != nil {
		return codec.Failed, err
	}

	f, err := os.Open(filepath.Join(s.dir, snap.File))
	if err != nil {
		return codec.Failed, err
	}
	defer f.Close()

	switch snap.Format {
	case FormatBinary:
		return codec.ImportBinary(f, target, opts)
	case FormatTree:
		return codec.ImportTree(f, target, opts)
	default:
		return codec.Failed, fmt.Errorf("%w: %q", ErrUnknownFormat, string(snap.Format))
	}
}

// Document decodes the named snapshot without importing it.
func (s *SnapshotStore) Document(name string) (*codec.Document, error) {
	snap, err := s.Snapshot(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.dir, snap.File))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, _, err := decode(f, snap.Format)
	return doc, err
}

// Snapshot returns the manifest entry for name.
func (s *SnapshotStore) Snapshot(name string) (Snapshot, error) {
	m, err := s.Manifest()
	if err != nil {
		return Snapshot{}, err
	}
	if m != nil {
		if snap, ok := m.Find(name); ok {
			return snap, nil
		}
	}
	return Snapshot{}, fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
}

// Manifest reads the manifest.
// Returns nil, nil if the store has no manifest yet.
func (s *SnapshotStore) Manifest() (*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readManifest()
}

// Remove deletes the named snapshot and its file.
func (s *SnapshotStore) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.readManifest()
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
	}
	snap, ok := m.remove(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
	}
	if err := removeFile(filepath.Join(s.dir, snap.File)); err != nil {
		return err
	}
	return s.writeManifest(m)
}

// Clear removes every snapshot and the manifest.
func (s *SnapshotStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.readManifest()
	if err != nil || m == nil {
		return err
	}
	for _, snap := range m.Snapshots {
		if err := removeFile(filepath.Join(s.dir, snap.File)); err != nil {
			return err
		}
	}
	return removeFile(filepath.Join(s.dir, ManifestFile))
}

func (s *SnapshotStore) readManifest() (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, ManifestFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	m := &Manifest{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, err
	}
	if m.Version > ManifestVersion {
		return nil, fmt.Errorf("%w: %d", ErrManifestTooNew, m.Version)
	}
	return m, nil
}

func (s *SnapshotStore) writeManifest(m *Manifest) error {
	m.Version = ManifestVersion
	m.SavedAt = time.Now()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return writeFile(filepath.Join(s.dir, ManifestFile), data)
}

func decode(r io.Reader, format Format) (*codec.Document, codec.Result, error) {
	if format == FormatBinary {
		return codec.DecodeBinary(r)
	}
	return codec.DecodeTree(r)
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// writeFile replaces path through a temporary file in the same directory.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func removeFile(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
