package scanner

import (
	"sync"

	"wormscan/log"
	"wormscan/registry"
)

// Options configure one scan invocation.
type Options struct {
	// Deep walks into dependency-install directories such as node_modules.
	Deep bool
	// Workers sizes the file-hashing pool.
	Workers int
	// MaxFileSize caps the bytes any content scanner reads per file.
	MaxFileSize int64
	// MaxCommits caps the history walk depth.
	MaxCommits int
	// SkipHistory disables the history analyzer entirely.
	SkipHistory bool
	// Rules overrides the IOC rule set; nil selects the defaults.
	Rules []IOCRule
}

type scanResult struct {
	findings    []Finding
	limitations []Limitation
}

// Run executes one full scan of projectRoot against the registry and
// returns the aggregated report. The file, IOC and history scanners run
// concurrently alongside manifest resolution; the package matcher waits for
// the resolved graph. Each task writes only to its private finding list,
// merged at the aggregator.
func Run(projectRoot string, reg *registry.Store, opts Options) *Report {
	results := make(chan scanResult, 4)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		fs := NewFileScanner(reg, opts.Deep, opts.Workers, opts.MaxFileSize)
		findings, limitations := fs.Scan(projectRoot)
		results <- scanResult{findings, limitations}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		ioc := NewIOCScanner(opts.Rules, opts.Deep, opts.MaxFileSize)
		findings, limitations := ioc.Scan(projectRoot)
		results <- scanResult{findings, limitations}
	}()

	if !opts.SkipHistory {
		wg.Add(1)
		go func() {
			defer wg.Done()
			analyzer := NewHistoryAnalyzer(reg, opts.MaxCommits)
			findings, limitations := analyzer.Analyze(projectRoot)
			results <- scanResult{findings, limitations}
		}()
	}

	// Resolution must complete before matching; it runs on this goroutine
	// while the independent scanners proceed.
	graph, resolveLimitations := Resolve(projectRoot)
	log.Debugf("Resolved %d dependency edges in %s", len(graph.Edges), projectRoot)
	matchFindings := Match(graph, reg)

	wg.Wait()
	close(results)

	findings := matchFindings
	limitations := resolveLimitations
	for r := range results {
		findings = append(findings, r.findings...)
		limitations = append(limitations, r.limitations...)
	}

	return Aggregate(projectRoot, findings, limitations)
}
