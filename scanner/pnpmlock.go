package scanner

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type pnpmLockPackage struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type pnpmLockfile struct {
	Version  float64                    `yaml:"lockfileVersion"`
	Packages map[string]pnpmLockPackage `yaml:"packages,omitempty"`
}

// pnpm writes lockfileVersion as a number up to v5 and as a string from v6,
// so decoding goes through a string-keyed shadow type first.
type pnpmLockfileShadow struct {
	Version  string                     `yaml:"lockfileVersion"`
	Packages map[string]pnpmLockPackage `yaml:"packages,omitempty"`
}

// UnmarshalYAML is a custom unmarshalling function handling v6+ lockfiles.
func (l *pnpmLockfile) UnmarshalYAML(unmarshal func(any) error) error {
	var shadow pnpmLockfileShadow
	if err := unmarshal(&shadow); err != nil {
		return err
	}
	parsed, err := strconv.ParseFloat(shadow.Version, 64)
	if err != nil {
		return err
	}
	l.Version = parsed
	l.Packages = shadow.Packages
	return nil
}

var (
	pnpmNumberStartRe = regexp.MustCompile(`^\d`)
	// Looks for "name@version", where name may itself contain "@".
	pnpmNameVersionRe = regexp.MustCompile(`^(.+)@([\w.-]+)(?:\(|$)`)
)

// parsePnpmDependencyPath extracts the package name and version from a pnpm
// dependency path, across the v5 (/name/version), v6 (/name@version) and
// v9 (name@version) key formats.
func parsePnpmDependencyPath(depPath string, lockfileVersion float64) (string, string, error) {
	if strings.HasPrefix(depPath, "file:") {
		// file dependencies never encode a version in their path
		return "", "", nil
	}

	if lockfileVersion >= 9.0 {
		depPath = strings.Trim(depPath, "'")
		depPath, isScoped := strings.CutPrefix(depPath, "@")
		name, version, _ := strings.Cut(depPath, "@")
		if isScoped {
			name = "@" + name
		}
		return name, version, nil
	}

	parts := strings.Split(depPath, "/")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("invalid dependency path: %v", depPath)
	}
	parts = parts[1:]

	var name string
	if strings.HasPrefix(parts[0], "@") {
		name = strings.Join(parts[:2], "/")
		parts = parts[2:]
	} else {
		name = parts[0]
		parts = parts[1:]
	}

	version := ""
	if len(parts) != 0 {
		version = parts[0]
	}
	if version == "" {
		if m := pnpmNameVersionRe.FindStringSubmatch(name); len(m) == 3 {
			name, version = m[1], m[2]
		}
	}
	if version == "" || !pnpmNumberStartRe.MatchString(version) {
		return "", "", nil
	}

	// strip peer-dependency hash suffixes, e.g. 1.2.3_react@17.0.0
	if i := strings.Index(version, "_"); i != -1 {
		version = version[:i]
	}
	return name, version, nil
}

// parsePnpmLock reads a pnpm-lock.yaml and returns every pinned package.
func parsePnpmLock(lockPath string) ([]lockEntry, error) {
	raw, err := os.ReadFile(lockPath)
	if err != nil {
		return nil, &ParseError{Path: lockPath, Err: err}
	}

	var lock pnpmLockfile
	if err := yaml.Unmarshal(raw, &lock); err != nil {
		return nil, &ParseError{Path: lockPath, Err: err}
	}

	entries := make([]lockEntry, 0, len(lock.Packages))
	for depPath, pkg := range lock.Packages {
		name, version, err := parsePnpmDependencyPath(depPath, lock.Version)
		if err != nil {
			continue
		}
		// explicit name/version fields take priority over the path
		if pkg.Name != "" {
			name = pkg.Name
		}
		if pkg.Version != "" {
			version = pkg.Version
		}
		if name == "" || version == "" {
			continue
		}
		entries = append(entries, lockEntry{Name: name, Version: version})
	}
	return entries, nil
}
