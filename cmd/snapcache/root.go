package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "snapcache",
	Short: "Cached vision and listing client",
	Long: `snapcache analyzes product photos and generates marketplace listings through
the remote API, caching results in memory and on disk so repeated requests for
the same photos are free.

Common usage:
  snapcache analyze shoe1.jpg shoe2.jpg        # Vision analysis, printed as JSON
  snapcache listing vision.json                # Listings for a vision record
  snapcache validate price "12,50"             # Normalize a user price
  snapcache cache clear                        # Drop every cached entry`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("SNAPCACHE_CONFIG"), "path to config file (default: built-in settings)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// withApp builds the app for a command and tears it down afterwards.
func withApp(run func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, err := newApp(ctx, configPath)
		if err != nil {
			return err
		}
		runErr := run(ctx, a, cmd, args)

		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Close(closeCtx); err != nil && runErr == nil {
			return err
		}
		return runErr
	}
}
