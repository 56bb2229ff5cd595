package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s%swormscan %s%s (built %s)\n", ColorBold, ColorCyan, Version, ColorReset, BuildDate)
		fmt.Printf("  %s, %s/%s, %d CPUs\n", runtime.Version(), runtime.GOOS, runtime.GOARCH, runtime.NumCPU())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
