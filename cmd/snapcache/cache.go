package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/unkn0wn-root/snapcache"
	"github.com/unkn0wn-root/snapcache/client"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the local cache",
	Long: `Manage cached vision results, listings and inventories.

Entries expire on their own per category; these commands drop or seed them
ahead of time.`,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all cached data",
	Long:  `Remove every entry under the configured prefix from both cache layers.`,
	Args:  cobra.NoArgs,
	RunE:  withApp(runCacheClear),
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate CATEGORY ARG...",
	Short: "Drop specific entries",
	Long: `Drop cached entries so the next request refetches them.

  snapcache cache invalidate inventory USER_ID...
  snapcache cache invalidate visionData IMAGE...`,
	Args: cobra.MinimumNArgs(2),
	RunE: withApp(runCacheInvalidate),
}

var cachePreloadCmd = &cobra.Command{
	Use:   "preload USER_ID=ITEMS_JSON...",
	Short: "Seed inventories",
	Long: `Seed the inventory cache from JSON files, each holding an array of items.
Files are loaded in parallel.`,
	Args: cobra.MinimumNArgs(1),
	RunE: withApp(runCachePreload),
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheInvalidateCmd)
	cacheCmd.AddCommand(cachePreloadCmd)
}

func runCacheClear(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
	if err := a.cached.ClearAll(ctx); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cleared all entries under %q\n", a.store.Prefix())
	return nil
}

func runCacheInvalidate(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
	cat := snapcache.Category(args[0])
	switch cat {
	case snapcache.Inventory:
		for _, id := range args[1:] {
			if err := a.cached.InvalidateInventory(ctx, id); err != nil {
				return fmt.Errorf("invalidate %s: %w", id, err)
			}
		}
	case snapcache.VisionData:
		images, err := loadImages(args[1:])
		if err != nil {
			return err
		}
		if err := a.cached.InvalidateVision(ctx, images); err != nil {
			return err
		}
	default:
		return fmt.Errorf("cannot invalidate category %q (use %s or %s)", cat, snapcache.Inventory, snapcache.VisionData)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Invalidated")
	return nil
}

func runCachePreload(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
	type job struct{ user, path string }
	jobs := make([]job, 0, len(args))
	for _, arg := range args {
		user, path, ok := strings.Cut(arg, "=")
		if !ok || user == "" || path == "" || path == "-" {
			return fmt.Errorf("expected USER_ID=FILE, got %q", arg)
		}
		jobs = append(jobs, job{user, path})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, j := range jobs {
		g.Go(func() error {
			var items client.InventoryItems
			if err := readJSON(j.path, nil, &items); err != nil {
				return err
			}
			if err := a.cached.PreloadInventory(gctx, j.user, items); err != nil {
				return fmt.Errorf("preload %s: %w", j.user, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Preloaded %d inventories\n", len(jobs))
	return nil
}
