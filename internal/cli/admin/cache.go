package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cloo-solutions/agentrag/internal/config"
	"github.com/spf13/cobra"
)

var errMemoryCache = errors.New("CACHE_BACKEND is memory: the cache lives in the server process, use DELETE /cache or GET /cache/stats instead")

// CacheCmd returns the cache command group
func CacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the semantic cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete every cache entry",
		RunE:  runCacheClear,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Print cache statistics as JSON",
		RunE:  runCacheStats,
	})

	return cmd
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	d, err := setup(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	if d.cfg.CacheBackend == config.CacheBackendMemory {
		return errMemoryCache
	}
	if err := d.newCache().Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
	return nil
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	d, err := setup(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	if d.cfg.CacheBackend == config.CacheBackendMemory {
		return errMemoryCache
	}
	stats, err := d.newCache().Stats(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}
