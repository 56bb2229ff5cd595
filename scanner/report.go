package scanner

import (
	"encoding/json"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Verdict is the overall classification of a scanned project.
type Verdict string

const (
	VerdictClean       Verdict = "clean"
	VerdictSuspicious  Verdict = "suspicious"
	VerdictCompromised Verdict = "compromised"
)

// Report is the merged, deduplicated, severity-ranked scan output.
type Report struct {
	ScanID    string    `json:"scanId"`
	Root      string    `json:"root"`
	Timestamp time.Time `json:"timestamp"`

	Findings    []Finding    `json:"findings"`
	Limitations []Limitation `json:"limitations,omitempty"`

	// Partial marks a report whose coverage was limited. A partial report
	// must never be presented as a clean verdict without qualification.
	Partial bool `json:"partial"`

	Counts  map[Kind]int `json:"counts"`
	Verdict Verdict      `json:"verdict"`
}

// Aggregate merges the scanners' findings into one report: deduplicates by
// finding identifier, merges evidence for the same subject, escalates
// corroborated IOC matches, and sorts deterministically.
func Aggregate(root string, findings []Finding, limitations []Limitation) *Report {
	byID := make(map[string]*Finding)
	var order []string

	for _, f := range findings {
		if existing, ok := byID[f.ID]; ok {
			existing.Evidence = mergeEvidence(existing.Evidence, f.Evidence)
			if f.Severity.Rank() > existing.Severity.Rank() {
				existing.Severity = f.Severity
			}
			continue
		}
		clone := f
		byID[f.ID] = &clone
		order = append(order, f.ID)
	}

	// Paths implicated by hash or dependency evidence corroborate IOC
	// matches on the same file, escalating them to critical.
	strongPaths := make(map[string]bool)
	for _, id := range order {
		f := byID[id]
		if (f.Kind == KindCompromisedDependency || f.Kind == KindMaliciousFile) && f.Path != "" {
			strongPaths[f.Path] = true
		}
	}
	for _, id := range order {
		f := byID[id]
		if f.Kind == KindIOCMatch && strongPaths[f.Path] && f.Severity != SeverityCritical {
			f.Severity = SeverityCritical
			f.Evidence = mergeEvidence(f.Evidence, []string{"corroborated by a registry match on the same file"})
		}
	}

	merged := make([]Finding, 0, len(order))
	for _, id := range order {
		merged = append(merged, *byID[id])
	}
	sort.Slice(merged, func(i, j int) bool {
		fi, fj := merged[i], merged[j]
		if ri, rj := fi.Severity.Rank(), fj.Severity.Rank(); ri != rj {
			return ri > rj
		}
		if fi.Subject != fj.Subject {
			return fi.Subject < fj.Subject
		}
		return fi.Kind < fj.Kind
	})

	counts := make(map[Kind]int)
	verdict := VerdictClean
	for _, f := range merged {
		counts[f.Kind]++
		if f.Severity == SeverityCritical {
			verdict = VerdictCompromised
		} else if verdict == VerdictClean {
			verdict = VerdictSuspicious
		}
	}

	return &Report{
		ScanID:      uuid.NewString(),
		Root:        root,
		Timestamp:   time.Now().UTC(),
		Findings:    merged,
		Limitations: limitations,
		Partial:     len(limitations) > 0,
		Counts:      counts,
		Verdict:     verdict,
	}
}

func mergeEvidence(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	for _, e := range a {
		seen[e] = true
	}
	for _, e := range b {
		if !seen[e] {
			a = append(a, e)
			seen[e] = true
		}
	}
	return a
}

// ExportJSON writes the report to a JSON file.
func (r *Report) ExportJSON(filename string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0o644)
}

// ExportReportsJSON writes a batch of reports to one JSON file.
func ExportReportsJSON(filename string, reports []*Report) error {
	data, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0o644)
}
