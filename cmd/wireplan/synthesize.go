package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"wireplan/internal/cache"
	"wireplan/internal/diag"
	"wireplan/internal/diagfmt"
	"wireplan/internal/pipeline"
	"wireplan/internal/source"
	"wireplan/internal/ui"
	"wireplan/internal/version"
)

var (
	synthNoCache  bool
	synthCacheDir string
	synthFormat   string
	checkFormat   string
)

func init() {
	synthCmd.Flags().BoolVar(&synthNoCache, "no-cache", false, "disable plan memoization")
	synthCmd.Flags().StringVar(&synthCacheDir, "cache-dir", "", "override the plan cache location")
	synthCmd.Flags().StringVar(&synthFormat, "format", "pretty", "diagnostics format (pretty|json)")
	checkCmd.Flags().StringVar(&checkFormat, "format", "pretty", "diagnostics format (pretty|json)")
}

var synthCmd = &cobra.Command{
	Use:   "synth [path]",
	Short: "Analyze snapshots and generate wiring tables",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manifest, res, fs, err := runAnalysis(cmd, args, synthCache(), synthFormat)
		if err != nil {
			return err
		}
		if res.Bag.HasErrors() {
			return fmt.Errorf("synthesis failed: %d error(s)", countErrors(res))
		}

		outDir := manifest.Config.Output.Dir
		if !filepath.IsAbs(outDir) {
			outDir = filepath.Join(manifest.Root, outDir)
		}
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
		for _, artifact := range res.Artifacts {
			target := filepath.Join(outDir, artifact.Name)
			if err := os.WriteFile(target, artifact.Data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", target, err)
			}
		}

		quiet, _ := cmd.Root().PersistentFlags().GetBool("quiet")
		if !quiet && synthFormat != "json" {
			renderSummary(cmd, res, fs)
		}
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check [path]",
	Short: "Analyze snapshots without writing artifacts",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, res, fs, err := runAnalysis(cmd, args, nil, checkFormat)
		if err != nil {
			return err
		}
		if res.Bag.HasErrors() {
			return fmt.Errorf("check failed: %d error(s)", countErrors(res))
		}
		quiet, _ := cmd.Root().PersistentFlags().GetBool("quiet")
		if !quiet && checkFormat != "json" {
			renderSummary(cmd, res, fs)
		}
		return nil
	},
}

// runAnalysis resolves the manifest, runs the pipeline, and prints
// diagnostics. Execution errors come back as error; plan defects land in
// res.Bag and the caller decides the exit status.
func runAnalysis(cmd *cobra.Command, args []string, c *cache.Disk, format string) (*projectManifest, *pipeline.Result, *source.FileSet, error) {
	startDir := "."
	if len(args) > 0 && args[0] != "" {
		startDir = args[0]
	}
	manifest, err := loadProjectManifest(startDir)
	if err != nil {
		return nil, nil, nil, err
	}
	paths, err := snapshotPaths(manifest)
	if err != nil {
		return nil, nil, nil, err
	}

	maxDiag, _ := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	jobs, _ := cmd.Root().PersistentFlags().GetInt("jobs")
	colorMode, _ := cmd.Root().PersistentFlags().GetString("color")
	colorize := useColor(colorMode, os.Stderr)
	color.NoColor = !colorize

	fs := source.NewFileSetWithBase(manifest.Root)
	res, err := pipeline.Run(cmd.Context(), fs, pipeline.Options{
		Paths:                paths,
		Origin:               manifest.Config.Package.Name,
		Package:              manifest.Config.Output.Package,
		ToolVersion:          version.Version,
		ExcludedCapabilities: manifest.Config.Analysis.ExcludeCapabilities,
		ActivationFirst:      manifest.Config.Activate.First,
		ActivationLast:       manifest.Config.Activate.Last,
		Jobs:                 jobs,
		MaxDiagnostics:       maxDiag,
		Cache:                c,
	})
	if err != nil {
		return manifest, res, fs, err
	}

	if format == "json" {
		jerr := diagfmt.JSON(os.Stdout, res.Bag, fs, diagfmt.JSONOpts{
			IncludePositions: true,
			IncludeNotes:     true,
			Max:              maxDiag,
		})
		if jerr != nil {
			return manifest, res, fs, jerr
		}
	} else if res.Bag.Len() > 0 {
		diagfmt.Pretty(os.Stderr, res.Bag, fs, diagfmt.PrettyOpts{
			Color:     colorize,
			ShowNotes: true,
		})
	}
	return manifest, res, fs, nil
}

func renderSummary(cmd *cobra.Command, res *pipeline.Result, fs *source.FileSet) {
	width := 80
	if isTerminal(os.Stdout) {
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
			width = w
		}
	}
	origin := ""
	if res.Snapshot != nil {
		origin = res.Snapshot.Origin
	}
	ui.Render(cmd.OutOrStdout(), ui.Summary{
		Origin:   origin,
		Merged:   res.Merged,
		Bag:      res.Bag,
		CacheHit: res.CacheHit,
		Width:    width,
	})
}

func countErrors(res *pipeline.Result) int {
	return res.Bag.CountBySeverity(diag.SevError)
}

// synthCache opens the plan cache unless disabled.
func synthCache() *cache.Disk {
	if synthNoCache {
		return nil
	}
	var (
		c   *cache.Disk
		err error
	)
	if synthCacheDir != "" {
		c, err = cache.OpenAt(synthCacheDir)
	} else {
		c, err = cache.Open("wireplan")
	}
	if err != nil {
		// A broken cache dir degrades to uncached synthesis.
		return nil
	}
	return c
}
