package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"wormscan/log"
	"wormscan/registry"
)

var (
	// Global flags
	workers      int
	outputJSON   string
	offline      bool
	verbose      bool
	registryPath string
	registryURL  string
	fallbackPath string

	// Version info
	Version   = "1.0.0"
	BuildDate = "2026-08-23"
)

// ANSI colors
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorPurple = "\033[35m"
	ColorCyan   = "\033[36m"
	ColorBold   = "\033[1m"
)

// Exit codes surfaced to the invoking shell.
const (
	ExitClean       = 0
	ExitSuspicious  = 1
	ExitCompromised = 2
	ExitScanError   = 3
)

var rootCmd = &cobra.Command{
	Use:   "wormscan",
	Short: "🐛 npm supply chain worm scanner",
	Long: fmt.Sprintf(`%s%s

 __      _____  _ __ _ __ ___  ___  ___ __ _ _ __
 \ \ /\ / / _ \| '__| '_ ' _ \/ __|/ __/ _' | '_ \
  \ V  V / (_) | |  | | | | | \__ \ (_| (_| | | | |
   \_/\_/ \___/|_|  |_| |_| |_|___/\___\__,_|_| |_|

%s%s  Self-propagating npm supply chain worm detection%s

Detects infections of the self-replicating npm worm campaign, including:
  • Compromised packages resolved from lockfiles and manifests
  • Malicious payload files verified by SHA-256 digest
  • Worm indicators of compromise: exfiltration endpoints, webhook
    beacons, credential harvesters, injected workflows
  • Git history anomalies: migration branches, campaign commits,
    known-bad blobs introduced and later removed

Example usage:
  wormscan scan                      # Scan current directory
  wormscan scan -p /path/to/project  # Scan a specific project
  wormscan scan --deep               # Walk into node_modules too
  wormscan scan --remediate          # Remove confirmed compromises
  wormscan check lodash@4.17.21      # Check one package@version
  wormscan repos -f checkouts.txt    # Scan many checkouts at once
`, ColorBold, ColorCyan, ColorReset, ColorBold, ColorReset),
	Version: Version,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(ExitScanError)
	}
}

// loadRegistry resolves the compromised-package dataset per the global
// flags: explicit path, then cache, then remote, then local fallback.
func loadRegistry() (*registry.Store, error) {
	url := registryURL
	if offline {
		url = ""
	}
	cacheDir, err := os.Getwd()
	if err != nil {
		cacheDir = "."
	}
	return registry.Get(registryPath, url, cacheDir, fallbackPath)
}

func init() {
	// Default workers: 2x CPU cores, minimum 8
	defaultWorkers := runtime.NumCPU() * 2
	if defaultWorkers < 8 {
		defaultWorkers = 8
	}

	// Global persistent flags
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "w", defaultWorkers, "Number of worker goroutines")
	rootCmd.PersistentFlags().StringVarP(&outputJSON, "json", "j", "", "Export the report to a JSON file")
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "Run in offline mode (cache or local dataset only)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringVar(&registryPath, "registry", "", "Local compromised-package dataset path")
	rootCmd.PersistentFlags().StringVar(&registryURL, "registry-url", registry.DefaultURL, "Remote dataset URL")
	rootCmd.PersistentFlags().StringVar(&fallbackPath, "registry-fallback", "affected-packages.json", "Fallback dataset path")

	cobra.OnInitialize(func() {
		log.SetLogger(&log.DefaultLogger{Verbose: verbose})
	})

	runtime.GOMAXPROCS(runtime.NumCPU())
}
