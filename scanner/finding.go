// Package scanner implements the detection and matching engine: dependency
// resolution across lockfile dialects, matching against the compromised
// package registry, file signature verification, IOC pattern scanning,
// git history analysis, aggregation and remediation planning.
package scanner

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Kind classifies a finding by the component that produced it.
type Kind string

const (
	KindCompromisedDependency Kind = "compromised-dependency"
	KindMaliciousFile         Kind = "malicious-file"
	KindIOCMatch              Kind = "ioc-match"
	KindHistoryAnomaly        Kind = "history-anomaly"
)

// Severity ranks how strongly a finding indicates compromise.
type Severity string

const (
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank returns an integer rank for comparison (medium=1, critical=3).
func (s Severity) Rank() int {
	switch s {
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	default:
		return 0
	}
}

// Downgrade returns the severity one level lower. Medium is the floor.
func (s Severity) Downgrade() Severity {
	switch s {
	case SeverityCritical:
		return SeverityHigh
	case SeverityHigh:
		return SeverityMedium
	default:
		return SeverityMedium
	}
}

// Finding is the unit of detection output. Findings are immutable after
// creation; the aggregator owns them for the rest of the scan.
type Finding struct {
	ID       string   `json:"id"`
	Kind     Kind     `json:"kind"`
	Severity Severity `json:"severity"`

	// Subject is the implicated package@version, file path, or commit/branch
	// reference, depending on Kind.
	Subject string `json:"subject"`

	// Path is the file the finding is attached to, when there is one: the
	// declaring manifest for dependency findings, the matched file for file
	// and IOC findings. Used for cross-component corroboration.
	Path string `json:"path,omitempty"`

	// Package and Version are set for compromised-dependency findings so the
	// remediation planner does not have to re-parse the subject.
	Package string `json:"package,omitempty"`
	Version string `json:"version,omitempty"`

	// Digest is set for malicious-file findings.
	Digest string `json:"digest,omitempty"`

	Evidence []string `json:"evidence"`
}

// findingID derives the stable identifier used to deduplicate findings
// across re-scans of the same tree.
func findingID(kind Kind, subject, path string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s", kind, subject, path)))
	return hex.EncodeToString(sum[:8])
}

// newFinding builds a finding with its stable identifier filled in.
func newFinding(kind Kind, severity Severity, subject, path string, evidence ...string) Finding {
	return Finding{
		ID:       findingID(kind, subject, path),
		Kind:     kind,
		Severity: severity,
		Subject:  subject,
		Path:     path,
		Evidence: evidence,
	}
}
