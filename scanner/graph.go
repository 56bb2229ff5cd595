package scanner

import "fmt"

// Provenance records whether a dependency is declared by the project itself
// or pulled in by another dependency.
type Provenance string

const (
	ProvenanceDirect     Provenance = "direct"
	ProvenanceTransitive Provenance = "transitive"
)

// LockKind identifies the file a dependency edge was read from.
type LockKind string

const (
	LockNpm      LockKind = "package-lock.json"
	LockYarn     LockKind = "yarn.lock"
	LockPnpm     LockKind = "pnpm-lock.yaml"
	LockManifest LockKind = "package.json"
)

// DependencyEdge is one resolved dependency occurrence. Multiple edges may
// reference the same package name at different versions (diamond
// dependencies); they are never collapsed before matching.
type DependencyEdge struct {
	Name    string `json:"name"`
	Version string `json:"version"`

	// DeclaredOnly marks edges whose version is a declared range with no
	// lockfile pin. These carry weaker matching confidence downstream.
	DeclaredOnly bool `json:"declaredOnly,omitempty"`

	Provenance Provenance `json:"provenance"`
	File       string     `json:"file"`
	Lock       LockKind   `json:"lock"`
}

func (e DependencyEdge) String() string {
	return fmt.Sprintf("%s@%s", e.Name, e.Version)
}

// DependencyGraph is the normalized output of the manifest resolver.
type DependencyGraph struct {
	Edges []DependencyEdge

	// Direct holds the package names declared in the project manifest.
	Direct map[string]bool
}

// Limitation records a scope the scan could not cover: an unparsable
// manifest, an unreadable path, a truncated history walk. Limitations never
// abort a scan, but a report carrying any must be marked partial.
type Limitation struct {
	Path   string `json:"path,omitempty"`
	Detail string `json:"detail"`
}
