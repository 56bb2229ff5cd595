package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"wormscan/scanner"
)

var (
	scanPath    string
	deepScan    bool
	skipHistory bool
	maxCommits  int
	remediate   bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a project tree for worm compromise indicators",
	Long: `Scan a project tree for indicators of the self-propagating npm worm.

The scan cross-references every installed and declared dependency against
the compromised-package registry, hashes payload-candidate files against
known-malicious digests, greps source and config files for worm IOC
patterns, and walks local git history for infection fingerprints. The
four detectors run in parallel and their results are merged into a single
deduplicated report.

Exit codes: 0 clean, 1 suspicious, 2 compromised, 3 scan error.

Examples:
  wormscan scan                        # Scan current directory
  wormscan scan -p /path/to/project    # Scan specific path
  wormscan scan --deep                 # Also walk node_modules, dist, build
  wormscan scan --skip-history         # Skip git history analysis
  wormscan scan --remediate            # Uninstall/quarantine confirmed hits
  wormscan scan -j report.json         # Export the report to JSON`,
	Run: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVarP(&scanPath, "path", "p", "", "Path to scan (default: current directory)")
	scanCmd.Flags().BoolVar(&deepScan, "deep", false, "Walk into node_modules, vendor, dist, build")
	scanCmd.Flags().BoolVar(&skipHistory, "skip-history", false, "Skip git history analysis")
	scanCmd.Flags().IntVar(&maxCommits, "max-commits", scanner.DefaultMaxCommits, "History walk depth ceiling")
	scanCmd.Flags().BoolVar(&remediate, "remediate", false, "Uninstall compromised packages and quarantine malicious files")
}

func runScan(cmd *cobra.Command, args []string) {
	if scanPath == "" {
		var err error
		scanPath, err = os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s[ERROR]%s Failed to get current directory: %v\n", ColorRed, ColorReset, err)
			os.Exit(ExitScanError)
		}
	}

	if _, err := os.Stat(scanPath); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "%s[ERROR]%s Path does not exist: %s\n", ColorRed, ColorReset, scanPath)
		os.Exit(ExitScanError)
	}

	reg, err := loadRegistry()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s[ERROR]%s No usable compromised-package dataset: %v\n", ColorRed, ColorReset, err)
		os.Exit(ExitScanError)
	}
	fmt.Printf("%s[INFO]%s Registry loaded: %d packages, %d malicious file hashes\n",
		ColorBlue, ColorReset, reg.PackageCount(), reg.HashCount())

	report := scanner.Run(scanPath, reg, scanner.Options{
		Deep:        deepScan,
		Workers:     workers,
		MaxCommits:  maxCommits,
		SkipHistory: skipHistory,
	})

	printReport(report)

	if outputJSON != "" {
		if err := report.ExportJSON(outputJSON); err != nil {
			fmt.Fprintf(os.Stderr, "%s[ERROR]%s Failed to export JSON: %v\n", ColorRed, ColorReset, err)
			os.Exit(ExitScanError)
		}
		fmt.Printf("\n%s[INFO]%s Report exported to: %s\n", ColorBlue, ColorReset, outputJSON)
	}

	if remediate {
		runRemediation(report, scanPath)
	}

	switch report.Verdict {
	case scanner.VerdictCompromised:
		os.Exit(ExitCompromised)
	case scanner.VerdictSuspicious:
		os.Exit(ExitSuspicious)
	}
}

func severityColor(s scanner.Severity) string {
	switch s {
	case scanner.SeverityCritical:
		return ColorRed
	case scanner.SeverityHigh:
		return ColorPurple
	default:
		return ColorYellow
	}
}

func printReport(report *scanner.Report) {
	fmt.Printf("\n%s%s══════════════════════════════════════════════════════════════════%s\n", ColorBold, ColorCyan, ColorReset)
	fmt.Printf("%s%s  SCAN REPORT  %s%s\n", ColorBold, ColorCyan, report.Root, ColorReset)
	fmt.Printf("%s%s══════════════════════════════════════════════════════════════════%s\n", ColorBold, ColorCyan, ColorReset)

	for _, f := range report.Findings {
		c := severityColor(f.Severity)
		fmt.Printf("\n%s[%s]%s %s (%s)\n", c, strings.ToUpper(string(f.Severity)), ColorReset, f.Subject, f.Kind)
		if f.Package != "" {
			fmt.Printf("  Package:  %s@%s\n", f.Package, f.Version)
		}
		if f.Path != "" {
			fmt.Printf("  Path:     %s\n", f.Path)
		}
		if f.Digest != "" {
			fmt.Printf("  SHA-256:  %s\n", f.Digest)
		}
		for _, e := range f.Evidence {
			fmt.Printf("  Evidence: %s\n", e)
		}
	}

	if len(report.Limitations) > 0 {
		fmt.Printf("\n%s[WARN]%s Coverage was partial:\n", ColorYellow, ColorReset)
		for _, l := range report.Limitations {
			fmt.Printf("  • %s: %s\n", l.Path, l.Detail)
		}
	}

	fmt.Println()
	switch report.Verdict {
	case scanner.VerdictCompromised:
		fmt.Printf("%s%s⚠️  VERDICT: COMPROMISED (%d findings) - IMMEDIATE ACTION REQUIRED%s\n",
			ColorBold, ColorRed, len(report.Findings), ColorReset)
	case scanner.VerdictSuspicious:
		fmt.Printf("%s%sVERDICT: SUSPICIOUS (%d findings) - review the evidence above%s\n",
			ColorBold, ColorYellow, len(report.Findings), ColorReset)
	default:
		if report.Partial {
			fmt.Printf("%sVERDICT: CLEAN (partial coverage, see warnings above)%s\n", ColorGreen, ColorReset)
		} else {
			fmt.Printf("%s✅ VERDICT: CLEAN%s\n", ColorGreen, ColorReset)
		}
	}
}

func runRemediation(report *scanner.Report, projectRoot string) {
	actions := scanner.Plan(report, projectRoot)
	if len(actions) == 0 {
		fmt.Printf("\n%s[INFO]%s Nothing to remediate: no confirmed compromises\n", ColorBlue, ColorReset)
		return
	}

	fmt.Printf("\n%s[INFO]%s Executing %d remediation action(s)...\n", ColorBlue, ColorReset, len(actions))
	results := scanner.Execute(actions)

	failed := 0
	for _, r := range results {
		switch r.Outcome {
		case scanner.OutcomeSucceeded:
			fmt.Printf("  %s✔%s %s %s\n", ColorGreen, ColorReset, r.Action.Kind, r.Action.Target)
		case scanner.OutcomeSkipped:
			fmt.Printf("  %s-%s %s %s: %s\n", ColorYellow, ColorReset, r.Action.Kind, r.Action.Target, r.Error)
		case scanner.OutcomeFailed:
			failed++
			fmt.Printf("  %s✘%s %s %s: %s\n", ColorRed, ColorReset, r.Action.Kind, r.Action.Target, r.Error)
		}
	}
	if failed > 0 {
		fmt.Printf("\n%s[WARN]%s %d remediation action(s) failed; re-run the scan and retry\n", ColorYellow, ColorReset, failed)
	}
}
