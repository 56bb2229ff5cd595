package scanner

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/karrick/godirwalk"
)

// IOCRule is one worm-characteristic content rule. Rules are data, not
// code: new worm variants are added here without touching the scan loop.
// Severity is capped at medium; corroboration with a hash or dependency
// match escalates at the aggregator, not here.
type IOCRule struct {
	Name        string
	Pattern     *regexp.Regexp
	Description string
	Severity    Severity
}

// DefaultIOCRules covers the Shai-Hulud campaigns: exfiltration endpoints,
// worm markers, secret-harvesting invocations, loader scripts, obfuscation
// and hardcoded tokens.
func DefaultIOCRules() []IOCRule {
	return []IOCRule{
		{
			Name:        "exfil-endpoint",
			Pattern:     regexp.MustCompile(`(?i)(webhook\.site|requestbin\.com|pipedream\.net|hookbin\.com|beeceptor\.com)`),
			Description: "reference to a known exfiltration endpoint",
			Severity:    SeverityMedium,
		},
		{
			Name:        "campaign-webhook-id",
			Pattern:     regexp.MustCompile(`bb8ca5f6-4175-45d2-b042-fc9ebb8170b7`),
			Description: "hardcoded webhook identifier from the Shai-Hulud campaign",
			Severity:    SeverityMedium,
		},
		{
			Name:        "worm-marker",
			Pattern:     regexp.MustCompile(`(?i)(shai[-_]?hulud|sha1hulud)`),
			Description: "Shai-Hulud worm marker string",
			Severity:    SeverityMedium,
		},
		{
			Name:        "secret-harvester",
			Pattern:     regexp.MustCompile(`(?i)trufflehog`),
			Description: "TruffleHog secret-harvesting invocation",
			Severity:    SeverityMedium,
		},
		{
			Name:        "suspicious-postinstall",
			Pattern:     regexp.MustCompile(`(?i)"(?:pre|post)?install"\s*:\s*"[^"]*(node\s+bundle\.js|curl[^"]*\|\s*(?:ba)?sh|setup_bun\.js|bun_environment)`),
			Description: "install script running a worm loader",
			Severity:    SeverityMedium,
		},
		{
			Name:        "bun-loader",
			Pattern:     regexp.MustCompile(`(downloadAndSetupBun|bun\.sh/install|bun_environment\.js|setup_bun\.js)`),
			Description: "Bun-based loader used by the second campaign",
			Severity:    SeverityMedium,
		},
		{
			Name:        "workflow-injection",
			Pattern:     regexp.MustCompile(`github\.event\.discussion\.body`),
			Description: "workflow command injection via discussion body",
			Severity:    SeverityMedium,
		},
		{
			Name:        "hardcoded-token",
			Pattern:     regexp.MustCompile(`(ghp|gho|ghs|ghr)_[A-Za-z0-9]{36}|npm_[A-Za-z0-9]{36}`),
			Description: "hardcoded access token, possible harvested credential",
			Severity:    SeverityMedium,
		},
		{
			Name:        "hex-obfuscation",
			Pattern:     regexp.MustCompile(`_0x[0-9a-f]{4,}.*(?:eval\(|Function\()`),
			Description: "hex-renamed identifiers combined with dynamic evaluation",
			Severity:    SeverityMedium,
		},
	}
}

// wormFilenames are exact names the worm drops. A name match alone is an
// IOC, not a hash match, so it is reported here rather than by the file
// signature scanner.
var wormFilenames = map[string]string{
	"bun_environment.js":      "main worm payload filename",
	"setup_bun.js":            "worm loader filename",
	"truffleSecrets.json":     "harvested-secrets drop file",
	"cloud.json":              "exfiltration drop file",
	"contents.json":           "exfiltration drop file",
	"environment.json":        "exfiltration drop file",
	"shai-hulud-workflow.yml": "worm workflow filename",
	"shaihuludworkflow.yml":   "worm workflow filename",
}

// wormDirnames are directories the worm creates.
var wormDirnames = map[string]string{
	".truffler-cache": "hidden TruffleHog binary cache created by the worm",
}

// textExtensions bound the IOC scan to text-readable content.
var textExtensions = map[string]struct{}{
	".js": {}, ".mjs": {}, ".cjs": {}, ".ts": {}, ".json": {},
	".yml": {}, ".yaml": {}, ".sh": {}, ".bash": {}, ".zsh": {},
	".lock": {}, ".txt": {}, ".env": {},
}

// IOCScanner applies the rule set to text files in the project tree.
type IOCScanner struct {
	rules   []IOCRule
	deep    bool
	maxSize int64

	mu          sync.Mutex
	findings    []Finding
	limitations []Limitation
}

// NewIOCScanner builds an IOC scanner with the given rule set; nil selects
// the default rules.
func NewIOCScanner(rules []IOCRule, deep bool, maxSize int64) *IOCScanner {
	if rules == nil {
		rules = DefaultIOCRules()
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return &IOCScanner{rules: rules, deep: deep, maxSize: maxSize}
}

// addFinding records a match, folding repeated hits on the same file into
// one finding that carries every rule's evidence.
func (s *IOCScanner) addFinding(f Finding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.findings {
		if s.findings[i].ID == f.ID {
			s.findings[i].Evidence = mergeEvidence(s.findings[i].Evidence, f.Evidence)
			return
		}
	}
	s.findings = append(s.findings, f)
}

func (s *IOCScanner) addLimitation(l Limitation) {
	s.mu.Lock()
	s.limitations = append(s.limitations, l)
	s.mu.Unlock()
}

func truncateLine(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// looksBinary sniffs the first bytes for a NUL, the cheap binary heuristic.
func looksBinary(head []byte) bool {
	return bytes.IndexByte(head, 0) != -1
}

func (s *IOCScanner) scanFile(path string) {
	info, err := os.Lstat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}
	if info.Size() > s.maxSize {
		s.addLimitation(Limitation{Path: path, Detail: fmt.Sprintf("ioc scan skipped: %d bytes exceeds size ceiling", info.Size())})
		return
	}

	f, err := os.Open(path)
	if err != nil {
		s.addLimitation(Limitation{Path: path, Detail: (&AccessError{Path: path, Err: err}).Error()})
		return
	}
	defer func() { _ = f.Close() }()

	head := make([]byte, 512)
	n, _ := f.Read(head)
	if looksBinary(head[:n]) {
		s.addLimitation(Limitation{Path: path, Detail: "ioc scan skipped: binary content"})
		return
	}
	if _, err := f.Seek(0, 0); err != nil {
		return
	}

	lineScanner := bufio.NewScanner(f)
	lineScanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNum := 0
	for lineScanner.Scan() {
		lineNum++
		line := lineScanner.Text()
		for _, rule := range s.rules {
			if !rule.Pattern.MatchString(line) {
				continue
			}
			s.addFinding(newFinding(KindIOCMatch, rule.Severity, path, path,
				fmt.Sprintf("%s at line %d: %s", rule.Description, lineNum, truncateLine(strings.TrimSpace(line), 160))))
		}
	}
}

// Scan walks projectRoot applying the IOC rules and filename indicators.
func (s *IOCScanner) Scan(projectRoot string) ([]Finding, []Limitation) {
	err := godirwalk.Walk(projectRoot, &godirwalk.Options{
		Unsorted:            true,
		FollowSymbolicLinks: false,
		Callback: func(path string, de *godirwalk.Dirent) error {
			name := de.Name()
			if de.IsDir() {
				if desc, bad := wormDirnames[name]; bad {
					s.addFinding(newFinding(KindIOCMatch, SeverityMedium, path, path, desc))
				}
				if _, skip := skipDirs[name]; skip {
					return godirwalk.SkipThis
				}
				if _, heavy := deepOnlyDirs[name]; heavy && !s.deep {
					return godirwalk.SkipThis
				}
				return nil
			}
			if desc, bad := wormFilenames[name]; bad {
				s.addFinding(newFinding(KindIOCMatch, SeverityMedium, path, path, desc))
			}
			ext := strings.ToLower(filepath.Ext(name))
			if _, ok := textExtensions[ext]; ok {
				s.scanFile(path)
			}
			return nil
		},
		ErrorCallback: func(path string, err error) godirwalk.ErrorAction {
			s.addLimitation(Limitation{Path: path, Detail: (&AccessError{Path: path, Err: err}).Error()})
			return godirwalk.SkipNode
		},
	})
	if err != nil {
		s.addLimitation(Limitation{Path: projectRoot, Detail: err.Error()})
	}
	return s.findings, s.limitations
}
