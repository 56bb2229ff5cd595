package scanner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"wormscan/log"
)

// manifest is the subset of package.json the resolver needs.
type manifest struct {
	Name            string            `json:"name"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
	Scripts         map[string]string `json:"scripts"`
}

// lockDialect is one supported lockfile format, selected by the presence of
// its filename in the project root.
type lockDialect struct {
	filename string
	kind     LockKind
	parse    func(path string) ([]lockEntry, error)
}

var lockDialects = []lockDialect{
	{filename: "package-lock.json", kind: LockNpm, parse: parseNpmLock},
	{filename: "npm-shrinkwrap.json", kind: LockNpm, parse: parseNpmLock},
	{filename: "yarn.lock", kind: LockYarn, parse: parseYarnLock},
	{filename: "pnpm-lock.yaml", kind: LockPnpm, parse: parsePnpmLock},
}

func readManifest(path string) (*manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &m, nil
}

// Resolve parses the project manifest and any present lockfiles into one
// normalized dependency graph. Unparsable files are skipped and recorded as
// limitations; they never abort resolution.
func Resolve(projectRoot string) (*DependencyGraph, []Limitation) {
	graph := &DependencyGraph{Direct: make(map[string]bool)}
	var limitations []Limitation

	declared := make(map[string]string)
	manifestPath := filepath.Join(projectRoot, "package.json")
	m, err := readManifest(manifestPath)
	switch {
	case err == nil:
		for name, rng := range m.Dependencies {
			declared[name] = rng
			graph.Direct[name] = true
		}
		for name, rng := range m.DevDependencies {
			declared[name] = rng
			graph.Direct[name] = true
		}
	case os.IsNotExist(err):
		// A lockfile-only tree is still scannable.
	default:
		limitations = append(limitations, Limitation{Path: manifestPath, Detail: err.Error()})
	}

	// One edge per unique (name, version, declaring file) triple.
	seen := make(map[string]bool)
	pinned := make(map[string]bool)

	addEdge := func(e DependencyEdge) {
		key := fmt.Sprintf("%s|%s|%s", e.Name, e.Version, e.File)
		if seen[key] {
			return
		}
		seen[key] = true
		graph.Edges = append(graph.Edges, e)
	}

	for _, dialect := range lockDialects {
		lockPath := filepath.Join(projectRoot, dialect.filename)
		if _, err := os.Stat(lockPath); err != nil {
			continue
		}
		entries, err := dialect.parse(lockPath)
		if err != nil {
			log.Warnf("Skipping %s: %v", lockPath, err)
			limitations = append(limitations, Limitation{Path: lockPath, Detail: err.Error()})
			continue
		}
		for _, entry := range entries {
			provenance := ProvenanceTransitive
			if graph.Direct[entry.Name] {
				provenance = ProvenanceDirect
				pinned[entry.Name] = true
			}
			addEdge(DependencyEdge{
				Name:       entry.Name,
				Version:    entry.Version,
				Provenance: provenance,
				File:       lockPath,
				Lock:       dialect.kind,
			})
		}
	}

	// Direct dependencies no lockfile pinned fall back to declared-only
	// edges: the range itself, flagged as lower-confidence downstream.
	for name, rng := range declared {
		if pinned[name] {
			continue
		}
		addEdge(DependencyEdge{
			Name:         name,
			Version:      rng,
			DeclaredOnly: true,
			Provenance:   ProvenanceDirect,
			File:         manifestPath,
			Lock:         LockManifest,
		})
	}

	return graph, limitations
}
