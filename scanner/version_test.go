package scanner

import "testing"

func TestSatisfies(t *testing.T) {
	tests := []struct {
		name      string
		specifier string
		version   string
		want      bool
	}{
		{name: "exact match", specifier: "1.2.3", version: "1.2.3", want: true},
		{name: "exact mismatch", specifier: "1.2.3", version: "1.2.4", want: false},
		{name: "v prefix on version", specifier: "1.2.3", version: "v1.2.3", want: true},
		{name: "v prefix on specifier", specifier: "v1.2.3", version: "1.2.3", want: true},
		{name: "empty specifier", specifier: "", version: "1.2.3", want: false},
		{name: "empty version", specifier: "1.2.3", version: "", want: false},

		// Pre-release policy: an unqualified specifier matches every
		// pre-release variant of its release triple.
		{name: "unqualified spec matches prerelease", specifier: "1.2.3", version: "1.2.3-beta.1", want: true},
		{name: "unqualified spec matches rc", specifier: "1.2.3", version: "1.2.3-rc.0", want: true},
		{name: "qualified spec requires exact prerelease", specifier: "1.2.3-beta.1", version: "1.2.3-beta.1", want: true},
		{name: "qualified spec rejects other prerelease", specifier: "1.2.3-beta.1", version: "1.2.3-beta.2", want: false},
		{name: "qualified spec rejects release", specifier: "1.2.3-beta.1", version: "1.2.3", want: false},

		// Build metadata is ignored on both sides.
		{name: "build metadata on version", specifier: "1.2.3", version: "1.2.3+build.99", want: true},
		{name: "build metadata with prerelease", specifier: "1.2.3-beta.1", version: "1.2.3-beta.1+exp.sha", want: true},

		// Range specifiers.
		{name: "caret range hit", specifier: "^1.2.0", version: "1.4.9", want: true},
		{name: "caret range miss", specifier: "^1.2.0", version: "2.0.0", want: false},
		{name: "tilde range hit", specifier: "~1.2.0", version: "1.2.9", want: true},
		{name: "tilde range miss", specifier: "~1.2.0", version: "1.3.0", want: false},
		{name: "comparator range hit", specifier: ">=1.0.0 <2.0.0", version: "1.5.0", want: true},
		{name: "comparator range miss", specifier: ">=1.0.0 <2.0.0", version: "2.0.0", want: false},
		{name: "wildcard range hit", specifier: "1.2.x", version: "1.2.7", want: true},
		{name: "wildcard range miss", specifier: "1.2.x", version: "1.3.0", want: false},
		{name: "hyphen range hit", specifier: "1.2.3 - 1.4.0", version: "1.3.5", want: true},

		{name: "garbage specifier", specifier: "not-a-version", version: "1.2.3", want: false},
		{name: "garbage version against range", specifier: "^1.0.0", version: "not-a-version", want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Satisfies(tc.specifier, tc.version); got != tc.want {
				t.Errorf("Satisfies(%q, %q) = %t, want %t", tc.specifier, tc.version, got, tc.want)
			}
		})
	}
}

func TestCleanVersion(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"^1.2.0", "1.2.0"},
		{"~1.2.0", "1.2.0"},
		{">=1.2.0", "1.2.0"},
		{"v1.2.0", "1.2.0"},
		{" 1.2.0 ", "1.2.0"},
		{"1.2.0", "1.2.0"},
	}
	for _, tc := range tests {
		if got := cleanVersion(tc.input); got != tc.want {
			t.Errorf("cleanVersion(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestSplitRelease(t *testing.T) {
	tests := []struct {
		input       string
		wantRelease string
		wantPre     string
	}{
		{"1.2.3", "1.2.3", ""},
		{"1.2.3-beta.1", "1.2.3", "beta.1"},
		{"1.2.3+build", "1.2.3", ""},
		{"1.2.3-rc.1+build", "1.2.3", "rc.1"},
	}
	for _, tc := range tests {
		release, pre := splitRelease(tc.input)
		if release != tc.wantRelease || pre != tc.wantPre {
			t.Errorf("splitRelease(%q) = (%q, %q), want (%q, %q)", tc.input, release, pre, tc.wantRelease, tc.wantPre)
		}
	}
}
