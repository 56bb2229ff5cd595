// Package registry loads and indexes the compromised-package dataset used by
// every scanner: package names mapped to known-bad version specifiers, plus
// SHA-256 digests of known malicious files. The store is read-only after load
// and safe for concurrent lookups.
package registry

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// Package is one compromised package entry in the dataset.
type Package struct {
	Name        string   `json:"name"`
	BadVersions []string `json:"badVersions"`
}

// FileHash is one known-malicious file digest entry.
type FileHash struct {
	Digest string `json:"digest"`
	Label  string `json:"label,omitempty"`
}

// Data is the on-disk schema of the compromised-package dataset.
type Data struct {
	SchemaVersion       int        `json:"schemaVersion,omitempty"`
	Packages            []Package  `json:"packages"`
	MaliciousFileHashes []FileHash `json:"maliciousFileHashes"`
}

// LoadError indicates the dataset could not be loaded or failed validation.
// A scan cannot proceed without a registry, so this error is fatal.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("registry %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

var digestRe = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Store is the indexed, immutable registry built from a Data document.
type Store struct {
	badVersions map[string][]string
	hashLabels  map[string]string
}

// New validates a Data document and builds the indexed store.
func New(data Data) (*Store, error) {
	s := &Store{
		badVersions: make(map[string][]string, len(data.Packages)),
		hashLabels:  make(map[string]string, len(data.MaliciousFileHashes)),
	}

	for i, pkg := range data.Packages {
		if pkg.Name == "" {
			return nil, fmt.Errorf("packages[%d]: missing name", i)
		}
		if len(pkg.BadVersions) == 0 {
			return nil, fmt.Errorf("packages[%d] (%s): no bad versions listed", i, pkg.Name)
		}
		for j, spec := range pkg.BadVersions {
			if strings.TrimSpace(spec) == "" {
				return nil, fmt.Errorf("packages[%d] (%s): empty version specifier at index %d", i, pkg.Name, j)
			}
		}
		s.badVersions[pkg.Name] = append(s.badVersions[pkg.Name], pkg.BadVersions...)
	}

	for i, fh := range data.MaliciousFileHashes {
		digest := strings.ToLower(strings.TrimSpace(fh.Digest))
		if !digestRe.MatchString(digest) {
			return nil, fmt.Errorf("maliciousFileHashes[%d]: %q is not a sha256 hex digest", i, fh.Digest)
		}
		s.hashLabels[digest] = fh.Label
	}

	return s, nil
}

// Parse decodes and validates a dataset from r. The source name is only used
// for error attribution.
func Parse(r io.Reader, source string) (*Store, error) {
	var data Data
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, &LoadError{Source: source, Err: fmt.Errorf("decode: %w", err)}
	}
	s, err := New(data)
	if err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}
	return s, nil
}

// Load reads and validates a dataset from a local file.
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Source: path, Err: err}
	}
	defer func() { _ = f.Close() }()
	return Parse(f, path)
}

// Lookup returns the known-bad version specifiers for a package name, or nil
// if the package is not in the dataset.
func (s *Store) Lookup(name string) []string {
	return s.badVersions[name]
}

// Has reports whether the package name appears in the dataset at all.
func (s *Store) Has(name string) bool {
	_, ok := s.badVersions[name]
	return ok
}

// IsMaliciousHash reports whether digest is a known malicious file hash.
// The digest is matched case-insensitively.
func (s *Store) IsMaliciousHash(digest string) bool {
	_, ok := s.hashLabels[strings.ToLower(digest)]
	return ok
}

// HashLabel returns the display label for a known malicious digest.
func (s *Store) HashLabel(digest string) (string, bool) {
	label, ok := s.hashLabels[strings.ToLower(digest)]
	return label, ok
}

// PackageCount returns the number of compromised packages tracked.
func (s *Store) PackageCount() int { return len(s.badVersions) }

// HashCount returns the number of malicious file digests tracked.
func (s *Store) HashCount() int { return len(s.hashLabels) }
