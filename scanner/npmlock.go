package scanner

import (
	"encoding/json"
	"os"
	"path"
	"strings"
)

// lockEntry is one pinned (name, version) pair read from a lockfile.
type lockEntry struct {
	Name    string
	Version string
}

type npmLockDependency struct {
	Version      string                       `json:"version"`
	Dependencies map[string]npmLockDependency `json:"dependencies,omitempty"`
}

type npmLockPackage struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type npmLockfile struct {
	LockfileVersion int `json:"lockfileVersion"`
	// Packages is the npm v7+ (lockfileVersion 2/3) format.
	Packages map[string]npmLockPackage `json:"packages,omitempty"`
	// Dependencies is the legacy npm v6 nested format.
	Dependencies map[string]npmLockDependency `json:"dependencies,omitempty"`
}

// extractNpmPackageName recovers the package name from an npm v7 package
// path such as "node_modules/@scope/name".
func extractNpmPackageName(namePath string) string {
	maybeScope := path.Base(path.Dir(namePath))
	pkgName := path.Base(namePath)
	if strings.HasPrefix(maybeScope, "@") {
		pkgName = maybeScope + "/" + pkgName
	}
	return pkgName
}

func parseNpmLockPackages(packages map[string]npmLockPackage) []lockEntry {
	entries := make([]lockEntry, 0, len(packages))
	for namePath, detail := range packages {
		// The empty key describes the root project itself.
		if namePath == "" {
			continue
		}
		name := detail.Name
		if name == "" {
			name = extractNpmPackageName(namePath)
		}
		if name == "" || detail.Version == "" {
			continue
		}
		entries = append(entries, lockEntry{Name: name, Version: detail.Version})
	}
	return entries
}

func parseNpmLockDependencies(deps map[string]npmLockDependency) []lockEntry {
	var entries []lockEntry
	for name, detail := range deps {
		if detail.Dependencies != nil {
			entries = append(entries, parseNpmLockDependencies(detail.Dependencies)...)
		}
		version := detail.Version
		// Aliased packages record the real name and version in the version
		// field, e.g. "npm:string-width@^4.2.0".
		if strings.HasPrefix(version, "npm:") {
			if i := strings.LastIndex(version, "@"); i > 4 {
				name = version[4:i]
				version = version[i+1:]
			}
		}
		// "file:" dependencies have no resolvable version.
		if strings.HasPrefix(version, "file:") || version == "" {
			continue
		}
		entries = append(entries, lockEntry{Name: name, Version: version})
	}
	return entries
}

// parseNpmLock reads a package-lock.json (or npm-shrinkwrap.json) and
// returns every pinned package, in both the v7+ and legacy v6 formats.
func parseNpmLock(lockPath string) ([]lockEntry, error) {
	raw, err := os.ReadFile(lockPath)
	if err != nil {
		return nil, &ParseError{Path: lockPath, Err: err}
	}

	var lock npmLockfile
	if err := json.Unmarshal(raw, &lock); err != nil {
		return nil, &ParseError{Path: lockPath, Err: err}
	}

	if lock.Packages != nil {
		return parseNpmLockPackages(lock.Packages), nil
	}
	return parseNpmLockDependencies(lock.Dependencies), nil
}
