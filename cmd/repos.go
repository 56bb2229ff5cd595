package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"wormscan/scanner"
)

var reposFile string

var reposCmd = &cobra.Command{
	Use:   "repos [path...]",
	Short: "Scan multiple repository checkouts",
	Long: `Scan a batch of local repository checkouts in one run.

Each path gets a full scan (dependency matching, file hashing, IOC scan,
history analysis) against a single shared registry load. The worst
verdict across all checkouts drives the exit code.

Examples:
  wormscan repos ~/src/api ~/src/web
  wormscan repos -f checkouts.txt        # One path per line, # comments
  wormscan repos -f checkouts.txt -j out.json`,
	Run: runRepos,
}

func init() {
	rootCmd.AddCommand(reposCmd)

	reposCmd.Flags().StringVarP(&reposFile, "file", "f", "", "File listing checkout paths, one per line")
	reposCmd.Flags().BoolVar(&deepScan, "deep", false, "Walk into node_modules, vendor, dist, build")
	reposCmd.Flags().BoolVar(&skipHistory, "skip-history", false, "Skip git history analysis")
	reposCmd.Flags().IntVar(&maxCommits, "max-commits", scanner.DefaultMaxCommits, "History walk depth ceiling")
}

func readRepoList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var paths []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		paths = append(paths, line)
	}
	return paths, sc.Err()
}

func runRepos(cmd *cobra.Command, args []string) {
	paths := args
	if reposFile != "" {
		listed, err := readRepoList(reposFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s[ERROR]%s Failed to read checkout list: %v\n", ColorRed, ColorReset, err)
			os.Exit(ExitScanError)
		}
		paths = append(paths, listed...)
	}
	if len(paths) == 0 {
		fmt.Fprintf(os.Stderr, "%s[ERROR]%s No checkout paths given\n", ColorRed, ColorReset)
		os.Exit(ExitScanError)
	}

	reg, err := loadRegistry()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s[ERROR]%s No usable compromised-package dataset: %v\n", ColorRed, ColorReset, err)
		os.Exit(ExitScanError)
	}
	fmt.Printf("%s[INFO]%s Registry loaded: %d packages, %d malicious file hashes\n",
		ColorBlue, ColorReset, reg.PackageCount(), reg.HashCount())

	worst := scanner.VerdictClean
	var reports []*scanner.Report
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			fmt.Fprintf(os.Stderr, "%s[WARN]%s Skipping %s: %v\n", ColorYellow, ColorReset, path, err)
			continue
		}
		report := scanner.Run(path, reg, scanner.Options{
			Deep:        deepScan,
			Workers:     workers,
			MaxCommits:  maxCommits,
			SkipHistory: skipHistory,
		})
		reports = append(reports, report)
		printReport(report)

		switch report.Verdict {
		case scanner.VerdictCompromised:
			worst = scanner.VerdictCompromised
		case scanner.VerdictSuspicious:
			if worst == scanner.VerdictClean {
				worst = scanner.VerdictSuspicious
			}
		}
	}

	if outputJSON != "" {
		if err := scanner.ExportReportsJSON(outputJSON, reports); err != nil {
			fmt.Fprintf(os.Stderr, "%s[ERROR]%s Failed to export JSON: %v\n", ColorRed, ColorReset, err)
			os.Exit(ExitScanError)
		}
		fmt.Printf("\n%s[INFO]%s Reports exported to: %s\n", ColorBlue, ColorReset, outputJSON)
	}

	switch worst {
	case scanner.VerdictCompromised:
		os.Exit(ExitCompromised)
	case scanner.VerdictSuspicious:
		os.Exit(ExitSuspicious)
	}
}
