package scanner

import (
	"bufio"
	"os"
	"regexp"
	"strings"
)

// Version matcher regex.
// Format for yarn.lock v1: `  version "0.0.1"`
// Format for yarn.lock v2: `  version: 0.0.1`
var yarnVersionRe = regexp.MustCompile(`^ {2}"?version"?:? "?([\w-.+]+)"?$`)

func shouldSkipYarnLine(line string) bool {
	line = strings.TrimSpace(line)
	return line == "" || strings.HasPrefix(line, "#")
}

// yarn.lock files define packages as a header line followed by indented
// property lines:
//
//	header:
//	  prop1 value1
//	  prop2 value2
type yarnPackageGroup struct {
	header string
	props  []string
}

func groupYarnPackages(scanner *bufio.Scanner) []*yarnPackageGroup {
	var result []*yarnPackageGroup
	var current *yarnPackageGroup

	for scanner.Scan() {
		line := scanner.Text()
		if shouldSkipYarnLine(line) {
			continue
		}

		// An unindented line starts a new package description.
		if !strings.HasPrefix(line, " ") {
			if current != nil {
				result = append(result, current)
			}
			current = &yarnPackageGroup{header: line}
		} else if current != nil {
			current.props = append(current.props, line)
		}
	}
	if current != nil {
		result = append(result, current)
	}
	return result
}

// extractYarnPackageName recovers the package name from a group header such
// as `"@scope/name@^1.0.0", "@scope/name@^1.2.0":`.
func extractYarnPackageName(header string) string {
	str := strings.TrimPrefix(header, "\"")
	str = strings.TrimSuffix(str, ":")
	str, _, _ = strings.Cut(str, ",")

	isScoped := strings.HasPrefix(str, "@")
	if isScoped {
		str = strings.TrimPrefix(str, "@")
	}
	name, right, _ := strings.Cut(str, "@")

	// Aliased entries carry an npm: redirection, e.g. name@npm:other@1.2.3.
	if strings.HasPrefix(right, "npm:") && strings.Contains(right, "@") {
		return extractYarnPackageName(strings.TrimPrefix(right, "npm:"))
	}

	if isScoped {
		name = "@" + name
	}
	return strings.TrimSuffix(name, "\"")
}

func yarnPackageVersion(props []string) string {
	for _, p := range props {
		if m := yarnVersionRe.FindStringSubmatch(p); m != nil {
			return m[1]
		}
	}
	return ""
}

// parseYarnLock reads a yarn.lock in either the v1 or v2 text format and
// returns every pinned package.
func parseYarnLock(lockPath string) ([]lockEntry, error) {
	f, err := os.Open(lockPath)
	if err != nil {
		return nil, &ParseError{Path: lockPath, Err: err}
	}
	defer func() { _ = f.Close() }()

	groups := groupYarnPackages(bufio.NewScanner(f))

	entries := make([]lockEntry, 0, len(groups))
	for _, group := range groups {
		if group.header == "__metadata:" {
			// Yarn v2 bookkeeping, not a package.
			continue
		}
		if strings.HasSuffix(group.header, "@workspace:.\":") {
			// The root package itself.
			continue
		}
		name := extractYarnPackageName(group.header)
		version := yarnPackageVersion(group.props)
		if name == "" || version == "" {
			continue
		}
		entries = append(entries, lockEntry{Name: name, Version: version})
	}
	return entries, nil
}
