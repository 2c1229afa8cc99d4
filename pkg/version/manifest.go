package version

import (
	"embed"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed formats/*.yaml
var formatFS embed.FS

// Record names used in manifests.
const (
	RecordObserver = "observer"
	RecordSubject  = "subject"
	RecordProperty = "property"
)

// Manifest describes what a format version writes.
type Manifest struct {
	Version     string              `yaml:"version"`
	Description string              `yaml:"description"`
	Records     map[string][]string `yaml:"records"`
}

// Has returns true if the version carries field in record.
func (m *Manifest) Has(record, field string) bool {
	return slices.Contains(m.Records[record], field)
}

// Fields returns the fields of record, sorted.
func (m *Manifest) Fields(record string) []string {
	out := slices.Clone(m.Records[record])
	sort.Strings(out)
	return out
}

// Added returns the fields of record that m carries and older does not.
func (m *Manifest) Added(older *Manifest, record string) []string {
	var out []string
	for _, f := range m.Fields(record) {
		if !older.Has(record, f) {
			out = append(out, f)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Cache
// ---------------------------------------------------------------------------

var (
	cacheMu sync.RWMutex
	cache   = make(map[string]*Manifest)
)

// LoadManifest loads the manifest of a format version (e.g. "1.1").
func LoadManifest(ver string) (*Manifest, error) {
	cacheMu.RLock()
	if m, ok := cache[ver]; ok {
		cacheMu.RUnlock()
		return m, nil
	}
	cacheMu.RUnlock()

	data, err := formatFS.ReadFile("formats/" + ver + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("format version %q not found: %w", ver, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing format manifest %q: %w", ver, err)
	}
	if m.Version != ver {
		return nil, fmt.Errorf("format manifest %q declares version %q", ver, m.Version)
	}

	cacheMu.Lock()
	cache[ver] = &m
	cacheMu.Unlock()

	return &m, nil
}

// LoadCurrentManifest loads the manifest of the current format version.
func LoadCurrentManifest() (*Manifest, error) {
	return LoadManifest(Current)
}

// AvailableVersions returns the versions of all embedded manifests, oldest first.
func AvailableVersions() ([]string, error) {
	entries, err := formatFS.ReadDir("formats")
	if err != nil {
		return nil, fmt.Errorf("reading formats directory: %w", err)
	}

	var versions []FormatVersion
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".yaml") {
			continue
		}
		v, err := Parse(strings.TrimSuffix(name, ".yaml"))
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].Less(versions[j]) })

	out := make([]string, len(versions))
	for i, v := range versions {
		out[i] = v.String()
	}
	return out, nil
}
