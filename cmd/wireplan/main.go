package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"wireplan/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "wireplan",
	Short: "Compile-time dependency wiring planner",
	Long:  `wireplan analyzes module snapshots and generates deterministic wiring tables`,
}

func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(synthCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().Int("max-diagnostics", 100, "maximum number of diagnostics to show")
	rootCmd.PersistentFlags().Int("jobs", 0, "parallel analysis workers (0 = all CPUs)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// useColor resolves the --color tri-state against the output terminal.
func useColor(mode string, f *os.File) bool {
	switch mode {
	case "on", "always":
		return true
	case "off", "never":
		return false
	}
	return isTerminal(f)
}
