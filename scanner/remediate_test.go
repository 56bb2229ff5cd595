package scanner

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func planFixture(t *testing.T) (string, *Report) {
	t.Helper()
	dir := t.TempDir()
	writeTestFile(t, dir, "package.json", `{
  "name": "fixture",
  "dependencies": {
    "left-pad": "^1.2.0",
    "express": "^4.18.0"
  }
}`)
	writeTestFile(t, dir, "bundle.js", payloadContent)

	dep := newFinding(KindCompromisedDependency, SeverityCritical, "left-pad@1.2.3",
		filepath.Join(dir, "package-lock.json"), "bad")
	dep.Package = "left-pad"
	dep.Version = "1.2.3"

	mal := newFinding(KindMaliciousFile, SeverityCritical, filepath.Join(dir, "bundle.js"),
		filepath.Join(dir, "bundle.js"), "hash match")
	mal.Digest = payloadDigest()

	ioc := newFinding(KindIOCMatch, SeverityMedium, filepath.Join(dir, "app.js"),
		filepath.Join(dir, "app.js"), "marker")
	hist := newFinding(KindHistoryAnomaly, SeverityMedium, "deadbeef", "", "fingerprint")

	return dir, Aggregate(dir, []Finding{dep, mal, ioc, hist}, nil)
}

func TestPlanOnlyConfirmedFindings(t *testing.T) {
	dir, report := planFixture(t)

	actions := Plan(report, dir)
	if len(actions) != 2 {
		t.Fatalf("Plan() = %d actions, want 2 (uninstall + quarantine)", len(actions))
	}

	kinds := make(map[ActionKind]bool)
	for _, a := range actions {
		kinds[a.Kind] = true
		if a.Guard == "" {
			t.Errorf("action %v has no pre-flight guard", a)
		}
	}
	if !kinds[ActionUninstall] || !kinds[ActionQuarantine] {
		t.Errorf("actions = %v, want one uninstall and one quarantine", actions)
	}
}

func TestExecuteUninstall(t *testing.T) {
	dir, report := planFixture(t)

	var uninstalls []Action
	for _, a := range Plan(report, dir) {
		if a.Kind == ActionUninstall {
			uninstalls = append(uninstalls, a)
		}
	}
	results := Execute(uninstalls)
	if len(results) != 1 || results[0].Outcome != OutcomeSucceeded {
		t.Fatalf("Execute() = %+v, want one success", results)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		t.Fatal(err)
	}
	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("manifest unparsable after uninstall: %v", err)
	}
	if _, still := m.Dependencies["left-pad"]; still {
		t.Error("left-pad still declared after uninstall")
	}
	if _, kept := m.Dependencies["express"]; !kept {
		t.Error("unrelated dependency removed by uninstall")
	}
}

func TestExecuteQuarantine(t *testing.T) {
	dir, report := planFixture(t)

	var quarantines []Action
	for _, a := range Plan(report, dir) {
		if a.Kind == ActionQuarantine {
			quarantines = append(quarantines, a)
		}
	}
	results := Execute(quarantines)
	if len(results) != 1 || results[0].Outcome != OutcomeSucceeded {
		t.Fatalf("Execute() = %+v, want one success", results)
	}

	if _, err := os.Stat(filepath.Join(dir, "bundle.js")); !os.IsNotExist(err) {
		t.Error("payload still present at its original path")
	}
	if _, err := os.Stat(filepath.Join(dir, "bundle.js.quarantined")); err != nil {
		t.Errorf("quarantined file missing: %v", err)
	}
}

func TestExecuteConcurrentModification(t *testing.T) {
	dir, report := planFixture(t)
	actions := Plan(report, dir)

	// The manifest changes between planning and execution; its action must
	// fail without touching the file, while the quarantine still succeeds.
	writeTestFile(t, dir, "package.json", `{"dependencies": {"left-pad": "^1.2.0"}}`)

	results := Execute(actions)
	for _, r := range results {
		switch r.Action.Kind {
		case ActionUninstall:
			if r.Outcome != OutcomeFailed {
				t.Errorf("uninstall outcome = %s, want failed after external edit", r.Outcome)
			}
			if !strings.Contains(r.Error, "changed since planning") {
				t.Errorf("uninstall error = %q, want a concurrent modification error", r.Error)
			}
		case ActionQuarantine:
			if r.Outcome != OutcomeSucceeded {
				t.Errorf("quarantine outcome = %s, want succeeded despite the sibling failure", r.Outcome)
			}
		}
	}

	// The externally edited manifest must be left untouched.
	raw, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "left-pad") {
		t.Error("failed uninstall modified the manifest anyway")
	}
}

func TestExecuteTargetDeleted(t *testing.T) {
	dir, report := planFixture(t)
	actions := Plan(report, dir)

	if err := os.Remove(filepath.Join(dir, "package.json")); err != nil {
		t.Fatal(err)
	}

	results := Execute(actions)
	for _, r := range results {
		if r.Action.Kind == ActionUninstall && r.Outcome != OutcomeFailed {
			t.Errorf("uninstall outcome = %s, want failed for a deleted target", r.Outcome)
		}
	}
}

func TestExecuteSequentialSameTarget(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "package.json", `{
  "dependencies": {"bad-one": "1.0.0", "bad-two": "2.0.0", "good": "3.0.0"}
}`)

	f1 := newFinding(KindCompromisedDependency, SeverityCritical, "bad-one@1.0.0", "lock", "bad")
	f1.Package = "bad-one"
	f2 := newFinding(KindCompromisedDependency, SeverityCritical, "bad-two@2.0.0", "lock", "bad")
	f2.Package = "bad-two"

	report := Aggregate(dir, []Finding{f1, f2}, nil)
	results := Execute(Plan(report, dir))

	// Two uninstalls on the same manifest run in sequence; the second must
	// not trip over the first one's own edit.
	for _, r := range results {
		if r.Outcome != OutcomeSucceeded {
			t.Errorf("uninstall of %s = %s (%s), want succeeded", r.Action.Package, r.Outcome, r.Error)
		}
	}

	raw, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		t.Fatal(err)
	}
	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	if len(m.Dependencies) != 1 || m.Dependencies["good"] == "" {
		t.Errorf("dependencies after uninstalls = %v, want only the good one", m.Dependencies)
	}
}

func TestPlanSkipsUnremediableKinds(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "package.json", `{"dependencies": {}}`)

	ioc := newFinding(KindIOCMatch, SeverityCritical, "a.js", "a.js", "even escalated IOCs stay report-only")
	hist := newFinding(KindHistoryAnomaly, SeverityHigh, "deadbeef", "", "fingerprint")

	report := Aggregate(dir, []Finding{ioc, hist}, nil)
	if actions := Plan(report, dir); len(actions) != 0 {
		t.Errorf("Plan() = %v, want none for IOC and history findings", actions)
	}
}

func TestExecuteUninstallAbsentPackage(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "package.json", `{"dependencies": {"other": "1.0.0"}}`)

	f := newFinding(KindCompromisedDependency, SeverityCritical, "ghost@1.0.0", "lock", "bad")
	f.Package = "ghost"
	report := Aggregate(dir, []Finding{f}, nil)

	results := Execute(Plan(report, dir))
	if len(results) != 1 || results[0].Outcome != OutcomeSkipped {
		t.Errorf("Execute() = %+v, want a skip for a package the manifest does not declare", results)
	}
}
