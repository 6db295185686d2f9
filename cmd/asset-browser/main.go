package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"asset-browser/internal/catalog"
	"asset-browser/internal/logging"
	"asset-browser/internal/scan"
	"asset-browser/internal/startup"
	"asset-browser/internal/thumbs"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles the dependencies a CLI command needs. The caller must defer
// app.Close().
type app struct {
	config  *startup.Config
	catalog *catalog.Catalog
	cache   *thumbs.Cache
	scanner *scan.Scanner
}

func (a *app) Close() {
	if err := a.catalog.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to close catalog: %v\n", err)
	}
}

// newApp resolves config and opens the catalog without the serve-mode
// startup banner.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := startup.LoadConfigQuiet()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	cat, err := catalog.New(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}

	cache := thumbs.NewCache(cfg.ThumbnailDir)
	return &app{
		config:  cfg,
		catalog: cat,
		cache:   cache,
		scanner: scan.NewScanner(cat, cache, cfg.ThumbnailSize),
	}, nil
}

var rootCmd = &cobra.Command{
	Use:   "asset-browser",
	Short: "3D asset catalog and thumbnail service",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			logging.SetLevel(logging.LevelDebug)
		}
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan [FOLDER]",
	Short: "Scan a folder into the catalog",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recursive, _ := cmd.Flags().GetBool("recursive")
		forceThumbs, _ := cmd.Flags().GetBool("force-thumbs")

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		folder := a.config.AssetRoot
		if len(args) > 0 {
			folder = args[0]
		}
		if folder == "" {
			return fmt.Errorf("no folder given and ASSET_ROOT is not configured")
		}
		folder, err = filepath.Abs(folder)
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}

		result := a.scanner.ScanFolder(cmd.Context(), folder, scan.ScanOptions{
			Recursive:   recursive,
			ForceThumbs: forceThumbs,
			OnProgress: func(path string, index, total int) {
				fmt.Printf("[%d/%d] %s\n", index, total, path)
			},
		})

		for _, e := range result.Errors {
			fmt.Fprintf(os.Stderr, "error: %s\n", e)
		}
		fmt.Printf("Scanned %d file(s): %d new, %d updated, %d skipped, %d thumbnail(s) in %v\n",
			result.TotalFiles, result.NewAssets, result.UpdatedAssets,
			result.SkippedAssets, result.ThumbnailsGenerated,
			result.Duration.Truncate(time.Millisecond))
		if len(result.Errors) > 0 {
			return fmt.Errorf("scan finished with %d error(s)", len(result.Errors))
		}
		return nil
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls [FOLDER]",
	Short: "Preview a folder without writing to the catalog",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		folder := a.config.AssetRoot
		if len(args) > 0 {
			folder = args[0]
		}
		if folder == "" {
			return fmt.Errorf("no folder given and ASSET_ROOT is not configured")
		}
		folder, err = filepath.Abs(folder)
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}

		records, err := a.scanner.QuickScan(cmd.Context(), folder)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No model files found.")
			return nil
		}

		for _, rec := range records {
			// "C" marks files already in the catalog.
			indicator := " "
			if rec.ID != 0 {
				indicator = "C"
			}
			line := fmt.Sprintf("%s  %-40s  %10s", indicator, rec.FileName, rec.FileSize)
			if rec.Comment != "" {
				line += "  # " + rec.Comment
			}
			fmt.Println(line)
		}
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search KEYWORD",
	Short: "Search the catalog by file name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		assets, err := a.catalog.SearchAssets(cmd.Context(), args[0], limit)
		if err != nil {
			return err
		}
		if len(assets) == 0 {
			fmt.Println("No matches.")
			return nil
		}

		for _, asset := range assets {
			fmt.Printf("%-40s  %10s  %s\n", asset.FileName, asset.FileSize, asset.FilePath)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show catalog statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.catalog.GetStatistics(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Assets:           %d\n", stats.TotalAssets)
		fmt.Printf("With thumbnail:   %d\n", stats.AssetsWithThumb)
		if len(stats.ByExtension) > 0 {
			exts := make([]string, 0, len(stats.ByExtension))
			for ext := range stats.ByExtension {
				exts = append(exts, ext)
			}
			sort.Strings(exts)
			fmt.Println("By extension:")
			for _, ext := range exts {
				fmt.Printf("  %-8s %d\n", ext, stats.ByExtension[ext])
			}
		}

		if _, human, err := a.cache.CacheSize(); err == nil {
			fmt.Printf("Thumbnail cache:  %s\n", human)
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage catalog settings",
}

var configGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Read a setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		value, err := a.catalog.GetConfig(cmd.Context(), args[0], "")
		if err != nil {
			return err
		}
		fmt.Println(value)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Write a setting",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.catalog.SetConfig(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("%s = %s\n", args[0], args[1])
		return nil
	},
}

var configDelCmd = &cobra.Command{
	Use:   "del KEY",
	Short: "Delete a setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		return a.catalog.DeleteConfig(cmd.Context(), args[0])
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the thumbnail cache",
}

var cacheSizeCmd = &cobra.Command{
	Use:   "size",
	Short: "Show thumbnail cache size",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		bytes, human, err := a.cache.CacheSize()
		if err != nil {
			return err
		}
		fmt.Printf("%s (%d bytes) in %s\n", human, bytes, a.cache.Dir())
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all cached thumbnails",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		deleted, err := a.cache.ClearCache()
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d thumbnail(s)\n", deleted)
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove records whose files no longer exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		removed, err := a.catalog.SweepMissing(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d record(s)\n", removed)
		return nil
	},
}

var thumbsCmd = &cobra.Command{
	Use:   "thumbs",
	Short: "Manage thumbnails",
}

var thumbsWarmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Regenerate missing or stale thumbnails",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		warmer := scan.NewWarmer(a.catalog, a.cache, a.scanner, nil, a.config.ThumbnailSize)
		warmer.Force = force

		result, err := warmer.Run(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Warmed %d asset(s): %d generated, %d skipped, %d failed in %v\n",
			result.Total, result.Generated, result.Skipped, result.Failed,
			result.Duration.Truncate(time.Millisecond))
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show build information",
	Run: func(cmd *cobra.Command, args []string) {
		info := startup.GetBuildInfo()
		fmt.Printf("asset-browser %s\n", info.Version)
		fmt.Printf("  commit:     %s\n", info.Commit)
		fmt.Printf("  built:      %s\n", info.BuildTime)
		fmt.Printf("  go version: %s\n", info.GoVersion)
		fmt.Printf("  platform:   %s/%s\n", info.OS, info.Arch)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	scanCmd.Flags().BoolP("recursive", "r", true, "Recurse into subdirectories")
	scanCmd.Flags().Bool("force-thumbs", false, "Regenerate thumbnails even when fresh")
	rootCmd.AddCommand(scanCmd)

	rootCmd.AddCommand(lsCmd)

	searchCmd.Flags().IntP("limit", "n", 50, "Maximum number of results")
	rootCmd.AddCommand(searchCmd)

	rootCmd.AddCommand(statsCmd)

	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configDelCmd)
	rootCmd.AddCommand(configCmd)

	cacheCmd.AddCommand(cacheSizeCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)

	rootCmd.AddCommand(sweepCmd)

	thumbsWarmCmd.Flags().Bool("force", false, "Regenerate every thumbnail")
	thumbsCmd.AddCommand(thumbsWarmCmd)
	rootCmd.AddCommand(thumbsCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
