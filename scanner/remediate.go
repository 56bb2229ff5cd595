package scanner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"wormscan/log"
)

// ActionKind is what a remediation action does to its target.
type ActionKind string

const (
	ActionUninstall  ActionKind = "uninstall"
	ActionQuarantine ActionKind = "quarantine-file"
)

// Outcome is the recorded result of executing one action.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// Action is one planned remediation step. The Guard is the SHA-256 of the
// target's content at plan time; execution re-verifies it immediately
// before acting so a concurrently modified target fails that one action
// instead of corrupting it.
type Action struct {
	Kind    ActionKind `json:"kind"`
	Package string     `json:"package,omitempty"`
	Target  string     `json:"target"`
	Guard   string     `json:"guard,omitempty"`
}

// ActionResult records one action's outcome. A partial failure across the
// plan is reported per action, never treated as total failure.
type ActionResult struct {
	Action  Action  `json:"action"`
	Outcome Outcome `json:"outcome"`
	Error   string  `json:"error,omitempty"`
}

// Plan computes the removal actions for a report. Only compromised
// dependencies and hash-verified malicious files are remediable; IOC
// matches and history anomalies carry too much false-positive risk and are
// reported only.
func Plan(report *Report, projectRoot string) []Action {
	var actions []Action
	seen := make(map[string]bool)

	manifestPath := filepath.Join(projectRoot, "package.json")
	manifestGuard, _ := hashFile(manifestPath)

	for _, f := range report.Findings {
		switch f.Kind {
		case KindCompromisedDependency:
			if f.Package == "" || seen["uninstall|"+f.Package] {
				continue
			}
			seen["uninstall|"+f.Package] = true
			actions = append(actions, Action{
				Kind:    ActionUninstall,
				Package: f.Package,
				Target:  manifestPath,
				Guard:   manifestGuard,
			})
		case KindMaliciousFile:
			if f.Path == "" || seen["quarantine|"+f.Path] {
				continue
			}
			seen["quarantine|"+f.Path] = true
			actions = append(actions, Action{
				Kind:   ActionQuarantine,
				Target: f.Path,
				Guard:  f.Digest,
			})
		}
	}
	return actions
}

// verifyGuard re-hashes the target and compares against the pre-flight
// guard recorded at plan time.
func verifyGuard(action Action) error {
	digest, err := hashFile(action.Target)
	if err != nil {
		return &ConcurrentModificationError{Target: action.Target, Reason: fmt.Sprintf("unreadable: %v", err)}
	}
	if action.Guard == "" || digest != action.Guard {
		return &ConcurrentModificationError{Target: action.Target, Reason: "content changed since planning"}
	}
	return nil
}

func executeUninstall(action Action) ActionResult {
	if err := verifyGuard(action); err != nil {
		return ActionResult{Action: action, Outcome: OutcomeFailed, Error: err.Error()}
	}

	raw, err := os.ReadFile(action.Target)
	if err != nil {
		return ActionResult{Action: action, Outcome: OutcomeFailed, Error: err.Error()}
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ActionResult{Action: action, Outcome: OutcomeFailed, Error: fmt.Sprintf("parse manifest: %v", err)}
	}

	removed := false
	for _, section := range []string{"dependencies", "devDependencies"} {
		rawSection, ok := doc[section]
		if !ok {
			continue
		}
		var deps map[string]string
		if err := json.Unmarshal(rawSection, &deps); err != nil {
			continue
		}
		if _, ok := deps[action.Package]; !ok {
			continue
		}
		delete(deps, action.Package)
		updated, err := json.Marshal(deps)
		if err != nil {
			return ActionResult{Action: action, Outcome: OutcomeFailed, Error: err.Error()}
		}
		doc[section] = updated
		removed = true
	}
	if !removed {
		return ActionResult{Action: action, Outcome: OutcomeSkipped, Error: "package not declared in manifest"}
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return ActionResult{Action: action, Outcome: OutcomeFailed, Error: err.Error()}
	}
	out = append(out, '\n')
	if err := os.WriteFile(action.Target, out, 0o644); err != nil {
		return ActionResult{Action: action, Outcome: OutcomeFailed, Error: err.Error()}
	}

	log.Infof("Uninstalled %s from %s", action.Package, action.Target)
	return ActionResult{Action: action, Outcome: OutcomeSucceeded}
}

func executeQuarantine(action Action) ActionResult {
	if err := verifyGuard(action); err != nil {
		return ActionResult{Action: action, Outcome: OutcomeFailed, Error: err.Error()}
	}

	quarantined := action.Target + ".quarantined"
	if err := os.Rename(action.Target, quarantined); err != nil {
		return ActionResult{Action: action, Outcome: OutcomeFailed, Error: err.Error()}
	}

	log.Infof("Quarantined %s -> %s", action.Target, quarantined)
	return ActionResult{Action: action, Outcome: OutcomeSucceeded}
}

func executeAction(action Action) ActionResult {
	switch action.Kind {
	case ActionUninstall:
		return executeUninstall(action)
	case ActionQuarantine:
		return executeQuarantine(action)
	default:
		return ActionResult{Action: action, Outcome: OutcomeSkipped, Error: "unknown action kind"}
	}
}

// Execute runs the plan. Actions touching the same target are serialized to
// avoid corrupting it; actions on disjoint targets run concurrently. Each
// outcome is recorded independently.
func Execute(actions []Action) []ActionResult {
	results := make([]ActionResult, len(actions))

	byTarget := make(map[string][]int)
	for i, action := range actions {
		byTarget[action.Target] = append(byTarget[action.Target], i)
	}

	var wg sync.WaitGroup
	for _, indices := range byTarget {
		wg.Add(1)
		go func(indices []int) {
			defer wg.Done()
			// Our own successful edits move the target's digest; refresh the
			// guard so later actions in the group only fail on external edits.
			guardOverride := ""
			for _, i := range indices {
				action := actions[i]
				if guardOverride != "" {
					action.Guard = guardOverride
				}
				results[i] = executeAction(action)
				if results[i].Outcome == OutcomeSucceeded && action.Kind == ActionUninstall {
					if digest, err := hashFile(action.Target); err == nil {
						guardOverride = digest
					}
				}
			}
		}(indices)
	}
	wg.Wait()

	return results
}
