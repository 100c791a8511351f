package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"wireplan/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the plan cache",
}

var cacheCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove every memoized plan",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := synthCacheDir
		var (
			c   *cache.Disk
			err error
		)
		if dir != "" {
			c, err = cache.OpenAt(dir)
		} else {
			c, err = cache.Open("wireplan")
		}
		if err != nil {
			return fmt.Errorf("failed to open cache: %w", err)
		}
		if err := c.DropAll(); err != nil {
			return fmt.Errorf("failed to drop cache: %w", err)
		}
		quiet, _ := cmd.Root().PersistentFlags().GetBool("quiet")
		if !quiet {
			fmt.Fprintln(os.Stdout, "plan cache cleared")
		}
		return nil
	},
}

func init() {
	cacheCleanCmd.Flags().StringVar(&synthCacheDir, "cache-dir", "", "override the plan cache location")
	cacheCmd.AddCommand(cacheCleanCmd)
}
