package scanner

import (
	"testing"

	"wormscan/registry"
)

func newTestRegistry(t *testing.T, data registry.Data) *registry.Store {
	t.Helper()
	s, err := registry.New(data)
	if err != nil {
		t.Fatalf("registry.New() error: %v", err)
	}
	return s
}

func TestMatchPinnedDirect(t *testing.T) {
	reg := newTestRegistry(t, registry.Data{
		Packages: []registry.Package{{Name: "left-pad", BadVersions: []string{"1.2.3"}}},
	})
	graph := &DependencyGraph{
		Edges: []DependencyEdge{
			{Name: "left-pad", Version: "1.2.3", Provenance: ProvenanceDirect, File: "package-lock.json", Lock: LockNpm},
			{Name: "express", Version: "4.18.0", Provenance: ProvenanceDirect, File: "package-lock.json", Lock: LockNpm},
		},
		Direct: map[string]bool{"left-pad": true, "express": true},
	}

	findings := Match(graph, reg)
	if len(findings) != 1 {
		t.Fatalf("Match() = %d findings, want 1", len(findings))
	}

	f := findings[0]
	if f.Kind != KindCompromisedDependency {
		t.Errorf("Kind = %s, want %s", f.Kind, KindCompromisedDependency)
	}
	if f.Severity != SeverityCritical {
		t.Errorf("Severity = %s, want critical for a pinned direct match", f.Severity)
	}
	if f.Subject != "left-pad@1.2.3" {
		t.Errorf("Subject = %q, want left-pad@1.2.3", f.Subject)
	}
	if f.Package != "left-pad" || f.Version != "1.2.3" {
		t.Errorf("Package/Version = %q/%q, want left-pad/1.2.3", f.Package, f.Version)
	}
	if f.Path != "package-lock.json" {
		t.Errorf("Path = %q, want the declaring lockfile", f.Path)
	}
}

func TestMatchTransitiveSeverity(t *testing.T) {
	reg := newTestRegistry(t, registry.Data{
		Packages: []registry.Package{{Name: "tiny-dep", BadVersions: []string{"0.1.0"}}},
	})
	graph := &DependencyGraph{
		Edges: []DependencyEdge{
			{Name: "tiny-dep", Version: "0.1.0", Provenance: ProvenanceTransitive, File: "package-lock.json", Lock: LockNpm},
		},
		Direct: map[string]bool{},
	}

	findings := Match(graph, reg)
	if len(findings) != 1 {
		t.Fatalf("Match() = %d findings, want 1", len(findings))
	}
	if findings[0].Severity != SeverityHigh {
		t.Errorf("Severity = %s, want high for a transitive match", findings[0].Severity)
	}
}

func TestMatchDeclaredOnlyDowngrades(t *testing.T) {
	reg := newTestRegistry(t, registry.Data{
		Packages: []registry.Package{{Name: "left-pad", BadVersions: []string{"1.2.3"}}},
	})
	graph := &DependencyGraph{
		Edges: []DependencyEdge{
			// The declared range ^1.2.0 admits the bad 1.2.3 but nothing pins
			// it; confidence drops one level.
			{Name: "left-pad", Version: "^1.2.0", DeclaredOnly: true, Provenance: ProvenanceDirect, File: "package.json", Lock: LockManifest},
		},
		Direct: map[string]bool{"left-pad": true},
	}

	findings := Match(graph, reg)
	if len(findings) != 1 {
		t.Fatalf("Match() = %d findings, want 1", len(findings))
	}
	if findings[0].Severity != SeverityHigh {
		t.Errorf("Severity = %s, want high (critical downgraded) for declared-only", findings[0].Severity)
	}
}

func TestMatchDeclaredOnlyNoOverlap(t *testing.T) {
	reg := newTestRegistry(t, registry.Data{
		Packages: []registry.Package{{Name: "left-pad", BadVersions: []string{"2.0.0"}}},
	})
	graph := &DependencyGraph{
		Edges: []DependencyEdge{
			{Name: "left-pad", Version: "^1.2.0", DeclaredOnly: true, Provenance: ProvenanceDirect, File: "package.json", Lock: LockManifest},
		},
		Direct: map[string]bool{"left-pad": true},
	}

	if findings := Match(graph, reg); len(findings) != 0 {
		t.Errorf("Match() = %v, want none: ^1.2.0 never resolves to 2.0.0", findings)
	}
}

func TestMatchDeclaredRangeAgainstRangeSpecifier(t *testing.T) {
	reg := newTestRegistry(t, registry.Data{
		Packages: []registry.Package{{Name: "left-pad", BadVersions: []string{">=1.2.3 <1.3.0"}}},
	})
	graph := &DependencyGraph{
		Edges: []DependencyEdge{
			// Neither side is exact: the declared ^1.2.0 admits 1.2.3, which
			// the bad range names as its lower bound.
			{Name: "left-pad", Version: "^1.2.0", DeclaredOnly: true, Provenance: ProvenanceDirect, File: "package.json", Lock: LockManifest},
		},
		Direct: map[string]bool{"left-pad": true},
	}

	findings := Match(graph, reg)
	if len(findings) != 1 {
		t.Fatalf("Match() = %d findings, want 1 for overlapping ranges", len(findings))
	}
	if findings[0].Severity != SeverityHigh {
		t.Errorf("Severity = %s, want high for declared-only", findings[0].Severity)
	}
}

func TestMatchPrereleaseVariant(t *testing.T) {
	reg := newTestRegistry(t, registry.Data{
		Packages: []registry.Package{{Name: "left-pad", BadVersions: []string{"1.2.3"}}},
	})
	graph := &DependencyGraph{
		Edges: []DependencyEdge{
			{Name: "left-pad", Version: "1.2.3-beta.1", Provenance: ProvenanceDirect, File: "package-lock.json", Lock: LockNpm},
		},
		Direct: map[string]bool{"left-pad": true},
	}

	findings := Match(graph, reg)
	if len(findings) != 1 {
		t.Fatalf("Match() = %d findings, want 1: unqualified bad specifier matches pre-release variants", len(findings))
	}
}

func TestMatchDiamondVersions(t *testing.T) {
	reg := newTestRegistry(t, registry.Data{
		Packages: []registry.Package{{Name: "shared", BadVersions: []string{"1.0.1"}}},
	})
	graph := &DependencyGraph{
		Edges: []DependencyEdge{
			{Name: "shared", Version: "1.0.0", Provenance: ProvenanceTransitive, File: "package-lock.json", Lock: LockNpm},
			{Name: "shared", Version: "1.0.1", Provenance: ProvenanceTransitive, File: "package-lock.json", Lock: LockNpm},
		},
		Direct: map[string]bool{},
	}

	findings := Match(graph, reg)
	if len(findings) != 1 {
		t.Fatalf("Match() = %d findings, want 1: only the bad occurrence flags", len(findings))
	}
	if findings[0].Subject != "shared@1.0.1" {
		t.Errorf("Subject = %q, want shared@1.0.1", findings[0].Subject)
	}
}
