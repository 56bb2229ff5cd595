package scanner

import (
	"fmt"
	"regexp"

	"deps.dev/util/semver"

	"wormscan/registry"
)

var versionLiteralRe = regexp.MustCompile(`\d+\.\d+\.\d+(?:-[0-9A-Za-z.-]+)?`)

// declaredOverlaps reports whether a declared version range could resolve to
// a known-bad specifier. This is weaker evidence than a pinned match: the
// range merely admits the bad version.
func declaredOverlaps(declaredRange, spec string) bool {
	c, cerr := semver.NPM.ParseConstraint(declaredRange)

	// The common registry case is an exact bad version; test whether the
	// declared range admits it.
	if v, err := semver.NPM.Parse(spec); err == nil && cerr == nil {
		return c.MatchVersion(v)
	}

	// A range-shaped specifier is approximated by testing each version
	// literal it mentions against the declared range, e.g. ">=1.2.3 <1.3.0"
	// against "^1.2.0" via 1.2.3.
	if cerr == nil {
		for _, lit := range versionLiteralRe.FindAllString(spec, -1) {
			if v, err := semver.NPM.Parse(lit); err == nil && c.MatchVersion(v) {
				return true
			}
		}
	}

	// Last resort: the declared range's base version against the specifier.
	return Satisfies(spec, cleanVersion(declaredRange))
}

// Match cross-references every dependency edge against the registry and
// emits a compromised-dependency finding for each edge whose resolved
// version satisfies a known-bad specifier.
func Match(graph *DependencyGraph, reg *registry.Store) []Finding {
	var findings []Finding

	for _, edge := range graph.Edges {
		specs := reg.Lookup(edge.Name)
		if len(specs) == 0 {
			continue
		}

		var matched string
		for _, spec := range specs {
			if edge.DeclaredOnly {
				if declaredOverlaps(edge.Version, spec) {
					matched = spec
					break
				}
			} else if Satisfies(spec, edge.Version) {
				matched = spec
				break
			}
		}
		if matched == "" {
			continue
		}

		severity := SeverityHigh
		if edge.Provenance == ProvenanceDirect {
			severity = SeverityCritical
		}
		evidence := fmt.Sprintf("%s dependency %s pinned by %s matches bad specifier %q",
			edge.Provenance, edge, edge.Lock, matched)
		if edge.DeclaredOnly {
			// A range overlap without a lockfile pin is weaker evidence.
			severity = severity.Downgrade()
			evidence = fmt.Sprintf("%s dependency %s declared in %s (no lockfile pin) overlaps bad specifier %q",
				edge.Provenance, edge, edge.Lock, matched)
		}

		f := newFinding(KindCompromisedDependency, severity, edge.String(), edge.File, evidence)
		f.Package = edge.Name
		f.Version = edge.Version
		findings = append(findings, f)
	}

	return findings
}
