package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/libdine/libdine/internal/app"
	"github.com/libdine/libdine/internal/config"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newCacheCmd(opts *options) *cobra.Command {
	var proxyCache bool
	target := func() *config.Config {
		if proxyCache {
			return opts.cfg.ProxyConfig()
		}
		return opts.cfg
	}

	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the request cache",
	}
	cacheCmd.PersistentFlags().BoolVar(&proxyCache, "proxy", false, "act on the proxy's cache file (server.cache_file)")

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show where the cache lives and what it holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cacheStatus(cmd.OutOrStdout(), target())
		},
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete the cache file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cacheClear(cmd.OutOrStdout(), target())
		},
	})

	return cacheCmd
}

func cacheStatus(w io.Writer, cfg *config.Config) error {
	fmt.Fprintf(w, "Backend:  %s\n", cfg.Cache.Backend)
	fmt.Fprintf(w, "Location: %s\n", cfg.Cache.File)

	info, err := os.Stat(cfg.Cache.File)
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(w, "Entries:  0 (no cache file)")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat cache file: %w", err)
	}

	persister, err := app.NewPersister(cfg)
	if err != nil {
		return err
	}
	if closer, ok := persister.(io.Closer); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				logrus.Errorf("Failed to close cache: %v", err)
			}
		}()
	}

	fmt.Fprintf(w, "Entries:  %d\n", len(persister.Load()))
	fmt.Fprintf(w, "Size:     %s\n", humanize.Bytes(uint64(info.Size())))
	fmt.Fprintf(w, "Modified: %s\n", humanize.Time(info.ModTime()))
	return nil
}

func cacheClear(w io.Writer, cfg *config.Config) error {
	err := os.Remove(cfg.Cache.File)
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(w, "Cache is already empty.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to remove cache file: %w", err)
	}
	logrus.Debugf("Removed %s", cfg.Cache.File)
	fmt.Fprintln(w, "Cache cleared.")
	return nil
}
