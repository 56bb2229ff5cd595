package scanner

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/gobwas/glob"
	"github.com/karrick/godirwalk"

	"wormscan/registry"
)

// DefaultMaxFileSize bounds the size of files the content scanners will
// hash or read. Larger files are skipped and recorded as limitations.
const DefaultMaxFileSize = 10 * 1024 * 1024

// skipDirs are conventionally-ignored heavy directories the walkers do not
// descend into by default.
var skipDirs = map[string]struct{}{
	".git": {}, ".svn": {}, ".hg": {}, "__pycache__": {},
	".cache": {}, ".next": {}, ".venv": {}, "venv": {},
	".tox": {}, ".pytest_cache": {}, ".mypy_cache": {},
	"coverage": {}, ".nyc_output": {}, ".parcel-cache": {},
	".turbo": {}, ".vercel": {}, ".netlify": {}, "__MACOSX": {},
}

// deepOnlyDirs hold installed dependency trees. They are skipped by default
// to bound cost but walked on request, since infected payloads live there.
var deepOnlyDirs = map[string]struct{}{
	"node_modules": {}, "vendor": {}, "dist": {}, "build": {},
}

// candidateGlobs select the files worth hashing: bundle-like artifacts and
// the loader filenames the worm ships under.
var candidateGlobs = []glob.Glob{
	glob.MustCompile("bundle*.js"),
	glob.MustCompile("bun_environment.js"),
	glob.MustCompile("setup_bun.js"),
	glob.MustCompile("verify.js"),
	glob.MustCompile("*.min.js"),
}

// FileScanner walks the project tree, digests candidate files and compares
// the digests against the registry's malicious-hash set.
type FileScanner struct {
	reg     *registry.Store
	deep    bool
	maxSize int64
	workers int

	mu          sync.Mutex
	findings    []Finding
	limitations []Limitation
}

// NewFileScanner builds a file signature scanner. workers <= 0 selects a
// single-threaded walk; maxSize <= 0 applies the default ceiling.
func NewFileScanner(reg *registry.Store, deep bool, workers int, maxSize int64) *FileScanner {
	if workers <= 0 {
		workers = 1
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return &FileScanner{reg: reg, deep: deep, maxSize: maxSize, workers: workers}
}

func (s *FileScanner) addFinding(f Finding) {
	s.mu.Lock()
	s.findings = append(s.findings, f)
	s.mu.Unlock()
}

func (s *FileScanner) addLimitation(l Limitation) {
	s.mu.Lock()
	s.limitations = append(s.limitations, l)
	s.mu.Unlock()
}

func isCandidate(name string) bool {
	for _, g := range candidateGlobs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// hashFile computes the file's SHA-256 content digest.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (s *FileScanner) processFile(path string) {
	info, err := os.Lstat(path)
	if err != nil {
		s.addLimitation(Limitation{Path: path, Detail: (&AccessError{Path: path, Err: err}).Error()})
		return
	}
	// Never follow symbolic links; a link pointing outside the project root
	// must not widen the scan.
	if !info.Mode().IsRegular() {
		return
	}
	if info.Size() > s.maxSize {
		s.addLimitation(Limitation{Path: path, Detail: fmt.Sprintf("skipped: %d bytes exceeds size ceiling", info.Size())})
		return
	}

	digest, err := hashFile(path)
	if err != nil {
		s.addLimitation(Limitation{Path: path, Detail: (&AccessError{Path: path, Err: err}).Error()})
		return
	}

	if s.reg.IsMaliciousHash(digest) {
		label, _ := s.reg.HashLabel(digest)
		evidence := fmt.Sprintf("sha256 %s matches known malicious file", digest)
		if label != "" {
			evidence += fmt.Sprintf(" (%s)", label)
		}
		f := newFinding(KindMaliciousFile, SeverityCritical, path, path, evidence)
		f.Digest = digest
		s.addFinding(f)
	}
}

// Scan walks projectRoot and returns malicious-file findings plus the paths
// the scan could not cover.
func (s *FileScanner) Scan(projectRoot string) ([]Finding, []Limitation) {
	fileChan := make(chan string, 1024)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range fileChan {
				s.processFile(path)
			}
		}()
	}

	err := godirwalk.Walk(projectRoot, &godirwalk.Options{
		Unsorted:            true,
		FollowSymbolicLinks: false,
		Callback: func(path string, de *godirwalk.Dirent) error {
			name := de.Name()
			if de.IsDir() {
				if _, skip := skipDirs[name]; skip {
					return godirwalk.SkipThis
				}
				if _, heavy := deepOnlyDirs[name]; heavy && !s.deep {
					return godirwalk.SkipThis
				}
				return nil
			}
			if !isCandidate(name) {
				return nil
			}
			fileChan <- path
			return nil
		},
		ErrorCallback: func(path string, err error) godirwalk.ErrorAction {
			s.addLimitation(Limitation{Path: path, Detail: (&AccessError{Path: path, Err: err}).Error()})
			return godirwalk.SkipNode
		},
	})

	close(fileChan)
	wg.Wait()

	if err != nil {
		s.addLimitation(Limitation{Path: projectRoot, Detail: err.Error()})
	}
	return s.findings, s.limitations
}
