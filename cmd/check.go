package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"wormscan/scanner"
)

var checkCmd = &cobra.Command{
	Use:   "check [package@version]",
	Short: "Check one npm package against the compromised-package registry",
	Long: `Check whether a specific npm package and version is known compromised.

Version comparison follows the scanner's matching rules: exact versions
compare by their release triple (pre-release variants of a listed release
match too), and range specifiers match when the range admits a listed
bad version.

Examples:
  wormscan check lodash@4.17.21
  wormscan check @ctrl/tinycolor@4.1.1
  wormscan check left-pad`,
	Args: cobra.MaximumNArgs(1),
	Run:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) {
	if len(args) == 0 {
		fmt.Printf("%s[ERROR]%s Please provide a package name to check\n", ColorRed, ColorReset)
		fmt.Println("Example: wormscan check lodash@4.17.21")
		return
	}

	input := args[0]
	var pkgName, pkgVersion string

	// Parse package@version; idx > 0 keeps the @ of scoped names intact.
	if idx := strings.LastIndex(input, "@"); idx > 0 {
		pkgName = input[:idx]
		pkgVersion = input[idx+1:]
	} else {
		pkgName = input
	}

	reg, err := loadRegistry()
	if err != nil {
		fmt.Printf("%s[ERROR]%s No usable compromised-package dataset: %v\n", ColorRed, ColorReset, err)
		return
	}
	fmt.Printf("%s[INFO]%s Registry loaded: %d packages\n\n", ColorGreen, ColorReset, reg.PackageCount())

	badVersions := reg.Lookup(pkgName)
	if !reg.Has(pkgName) {
		fmt.Printf("%s✅ SAFE: %s is NOT in the registry%s\n", ColorGreen, pkgName, ColorReset)
		return
	}

	if pkgVersion == "" {
		fmt.Printf("%s%s⚠️  WARNING: %s has compromised versions!%s\n", ColorBold, ColorYellow, pkgName, ColorReset)
		fmt.Printf("\nCompromised versions:\n")
		for _, v := range badVersions {
			fmt.Printf("  • %s@%s\n", pkgName, v)
		}
		return
	}

	for _, bad := range badVersions {
		if scanner.Satisfies(bad, pkgVersion) {
			fmt.Printf("%s%s⚠️  COMPROMISED: %s@%s is in the registry!%s\n", ColorBold, ColorRed, pkgName, pkgVersion, ColorReset)
			fmt.Println("\nThis package version is a known worm-compromised release.")
			fmt.Println("DO NOT install or use this version.")
			return
		}
	}
	fmt.Printf("%s✅ SAFE: %s@%s is NOT in the registry%s\n", ColorGreen, pkgName, pkgVersion, ColorReset)
	fmt.Printf("\nHowever, note that %s has compromised versions: %v\n", pkgName, badVersions)
}
