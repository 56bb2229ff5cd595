package scanner

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// DefaultMaxCommits bounds how far back the history analyzer walks.
const DefaultMaxCommits = 50

// suspiciousBranchWords flag a branch outright.
var suspiciousBranchWords = []string{"shai-hulud", "exfiltrate", "malware", "backdoor"}

// migrationQualifiers make a "-migration" branch suspicious. The worm uses
// migration-suffixed forks to flip private repositories public; legitimate
// migration branches must not be flagged.
var migrationQualifiers = []string{"shai", "hulud", "worm", "malicious"}

// suspiciousCommitPatterns are campaign fingerprints matched against commit
// messages.
var suspiciousCommitPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)shai-hulud`),
	regexp.MustCompile(`(?i)add.*bundle\.js`),
	regexp.MustCompile(`(?i)postinstall.*malicious`),
	regexp.MustCompile(`(?i)trufflehog`),
	regexp.MustCompile(`(?i)webhook\.site`),
	regexp.MustCompile(`(?i)exfiltrat`),
	regexp.MustCompile(`(?i)malicious.*package`),
	regexp.MustCompile(`(?i)backdoor`),
}

func isSuspiciousBranch(name string) bool {
	lower := strings.ToLower(name)
	for _, word := range suspiciousBranchWords {
		if strings.Contains(lower, word) {
			return true
		}
	}
	if strings.Contains(lower, "migration") {
		for _, q := range migrationQualifiers {
			if strings.Contains(lower, q) {
				return true
			}
		}
	}
	return false
}

func isSuspiciousTouchedFile(name string) bool {
	lower := strings.ToLower(name)
	base := path.Base(lower)
	switch {
	case strings.Contains(base, "bundle.js"),
		strings.Contains(lower, "shai-hulud"),
		strings.Contains(lower, "malware"),
		strings.Contains(lower, "backdoor"),
		strings.Contains(base, "postinstall") && strings.HasSuffix(base, ".js"):
		return true
	}
	return false
}

// hashRegistry is the subset of the registry store the analyzer needs;
// split out so tests can stub it.
type hashRegistry interface {
	IsMaliciousHash(digest string) bool
	HashLabel(digest string) (string, bool)
}

// HistoryAnalyzer walks local git metadata for worm anomaly patterns. The
// analyzer is a no-op on trees without version control and tolerates
// shallow or partial history without failing.
type HistoryAnalyzer struct {
	reg        hashRegistry
	maxCommits int
	maxBlob    int64
}

// NewHistoryAnalyzer builds a history analyzer. maxCommits <= 0 applies the
// default depth ceiling.
func NewHistoryAnalyzer(reg hashRegistry, maxCommits int) *HistoryAnalyzer {
	if maxCommits <= 0 {
		maxCommits = DefaultMaxCommits
	}
	return &HistoryAnalyzer{reg: reg, maxCommits: maxCommits, maxBlob: DefaultMaxFileSize}
}

func (a *HistoryAnalyzer) checkReferences(repo *git.Repository, findings *[]Finding) error {
	refs, err := repo.References()
	if err != nil {
		return err
	}
	return refs.ForEach(func(ref *plumbing.Reference) error {
		if !ref.Name().IsBranch() && !ref.Name().IsRemote() {
			return nil
		}
		short := ref.Name().Short()
		if isSuspiciousBranch(short) {
			*findings = append(*findings, newFinding(KindHistoryAnomaly, SeverityMedium, short, "",
				fmt.Sprintf("branch %q matches worm naming convention", short)))
		}
		return nil
	})
}

func (a *HistoryAnalyzer) checkRemotes(repo *git.Repository, findings *[]Finding) error {
	remotes, err := repo.Remotes()
	if err != nil {
		return err
	}
	for _, remote := range remotes {
		for _, url := range remote.Config().URLs {
			if strings.Contains(strings.ToLower(url), "shai-hulud") {
				*findings = append(*findings, newFinding(KindHistoryAnomaly, SeverityMedium, remote.Config().Name, "",
					fmt.Sprintf("remote %q points at worm repository %s", remote.Config().Name, url)))
			}
		}
	}
	return nil
}

// checkCommitBlob digests a touched file's blob in the commit tree. A
// commit introducing a known-bad digest is a strong signal even if the file
// was later removed from the working tree.
func (a *HistoryAnalyzer) checkCommitBlob(c *object.Commit, name string, findings *[]Finding) {
	tree, err := c.Tree()
	if err != nil {
		return
	}
	f, err := tree.File(name)
	if err != nil || f.Size > a.maxBlob {
		return
	}
	r, err := f.Reader()
	if err != nil {
		return
	}
	defer func() { _ = r.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return
	}
	digest := hex.EncodeToString(h.Sum(nil))
	if !a.reg.IsMaliciousHash(digest) {
		return
	}
	label, _ := a.reg.HashLabel(digest)
	evidence := fmt.Sprintf("commit introduced %s with known-malicious sha256 %s", name, digest)
	if label != "" {
		evidence += fmt.Sprintf(" (%s)", label)
	}
	ff := newFinding(KindHistoryAnomaly, SeverityHigh, shortHash(c.Hash), name, evidence)
	ff.Digest = digest
	*findings = append(*findings, ff)
}

func shortHash(h plumbing.Hash) string {
	return h.String()[:8]
}

func (a *HistoryAnalyzer) checkCommit(c *object.Commit, findings *[]Finding) {
	subject := shortHash(c.Hash)
	message := strings.TrimSpace(c.Message)

	for _, pattern := range suspiciousCommitPatterns {
		if pattern.MatchString(message) {
			*findings = append(*findings, newFinding(KindHistoryAnomaly, SeverityMedium, subject, "",
				fmt.Sprintf("commit message matches campaign fingerprint %q: %s", pattern.String(), truncateLine(message, 120))))
			break
		}
	}

	author := strings.ToLower(c.Author.Name + " " + c.Author.Email)
	if strings.Contains(author, "shai-hulud") || strings.Contains(author, "sha1hulud") {
		*findings = append(*findings, newFinding(KindHistoryAnomaly, SeverityMedium, subject, "",
			fmt.Sprintf("commit author %q matches campaign fingerprint", strings.TrimSpace(c.Author.Name+" <"+c.Author.Email+">"))))
	}

	stats, err := c.Stats()
	if err != nil {
		// Partial history; skip file analysis for this commit.
		return
	}
	for _, stat := range stats {
		if isSuspiciousTouchedFile(stat.Name) {
			*findings = append(*findings, newFinding(KindHistoryAnomaly, SeverityMedium, subject, stat.Name,
				fmt.Sprintf("commit touches suspicious file %s", stat.Name)))
		}
		if isCandidate(path.Base(stat.Name)) {
			a.checkCommitBlob(c, stat.Name, findings)
		}
	}
}

// Analyze walks the repository at projectRoot. A tree without version
// control yields an empty result, not an error.
func (a *HistoryAnalyzer) Analyze(projectRoot string) ([]Finding, []Limitation) {
	repo, err := git.PlainOpen(projectRoot)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, nil
		}
		return nil, []Limitation{{Path: projectRoot, Detail: fmt.Sprintf("history unavailable: %v", err)}}
	}

	var findings []Finding
	var limitations []Limitation

	if err := a.checkReferences(repo, &findings); err != nil {
		limitations = append(limitations, Limitation{Path: projectRoot, Detail: fmt.Sprintf("branch listing failed: %v", err)})
	}
	if err := a.checkRemotes(repo, &findings); err != nil {
		limitations = append(limitations, Limitation{Path: projectRoot, Detail: fmt.Sprintf("remote listing failed: %v", err)})
	}

	iter, err := repo.Log(&git.LogOptions{})
	if err != nil {
		// An empty or unborn repository has no log; degrade, don't fail.
		return findings, limitations
	}

	count := 0
	err = iter.ForEach(func(c *object.Commit) error {
		if count >= a.maxCommits {
			return storer.ErrStop
		}
		count++
		a.checkCommit(c, &findings)
		return nil
	})
	if err != nil && !errors.Is(err, storer.ErrStop) {
		limitations = append(limitations, Limitation{Path: projectRoot, Detail: fmt.Sprintf("history walk truncated: %v", err)})
	}

	return findings, limitations
}
