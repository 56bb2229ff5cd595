package scanner

import (
	"regexp"
	"strings"

	"deps.dev/util/semver"
)

// exactVersionRe matches a literal version specifier, optionally carrying a
// pre-release qualifier.
var exactVersionRe = regexp.MustCompile(`^v?\d+\.\d+\.\d+(-[0-9A-Za-z.-]+)?$`)

// splitRelease splits a version into its release triple and pre-release
// qualifier, dropping build metadata entirely.
func splitRelease(v string) (release, pre string) {
	v, _, _ = strings.Cut(v, "+")
	release, pre, _ = strings.Cut(v, "-")
	return release, pre
}

// cleanVersion strips range operators from the front of a declared version
// so that "^1.2.0" or "~1.2.0" yields "1.2.0".
func cleanVersion(v string) string {
	return strings.TrimLeft(strings.TrimSpace(v), "^~<>=v ")
}

// Satisfies reports whether an exact resolved version is matched by a
// known-bad version specifier. A specifier is either a literal version, an
// npm range expression (comparators, caret, tilde, hyphen ranges), or a
// wildcard-prefix range such as "1.2.x".
//
// Pre-release policy: only the release triple is compared. A specifier
// without a pre-release qualifier matches every pre-release variant of that
// release; a pre-release-qualified specifier requires that exact
// pre-release. Build metadata is ignored on both sides.
func Satisfies(specifier, version string) bool {
	spec := strings.TrimSpace(specifier)
	ver := strings.TrimSpace(version)
	if spec == "" || ver == "" {
		return false
	}

	verRelease, verPre := splitRelease(strings.TrimPrefix(ver, "v"))

	if exactVersionRe.MatchString(spec) {
		specRelease, specPre := splitRelease(strings.TrimPrefix(spec, "v"))
		if !sameRelease(specRelease, verRelease) {
			return false
		}
		if specPre != "" {
			return specPre == verPre
		}
		return true
	}

	return constraintMatches(spec, verRelease)
}

// sameRelease compares two release triples, preferring semantic comparison
// and falling back to string equality for versions npm cannot parse.
func sameRelease(a, b string) bool {
	av, err1 := semver.NPM.Parse(a)
	bv, err2 := semver.NPM.Parse(b)
	if err1 != nil || err2 != nil {
		return a == b
	}
	return av.Compare(bv) == 0
}

// constraintMatches tests a release triple against an npm range expression.
func constraintMatches(spec, verRelease string) bool {
	c, err := semver.NPM.ParseConstraint(spec)
	if err != nil {
		return false
	}
	v, err := semver.NPM.Parse(verRelease)
	if err != nil {
		return false
	}
	return c.MatchVersion(v)
}
