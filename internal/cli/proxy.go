package cli

import (
	"github.com/libdine/libdine/internal/app"
	"github.com/libdine/libdine/internal/cache"
	"github.com/libdine/libdine/internal/proxy"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newProxyCmd(opts *options) *cobra.Command {
	var port int

	proxyCmd := &cobra.Command{
		Use:   "proxy",
		Short: "Run a forward HTTP proxy that answers GET requests from the cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg.ProxyConfig()
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			a, err := app.New(cfg, nil, cache.WithMetrics(cache.NewMetrics(reg)))
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					logrus.Errorf("Failed to close cache: %v", err)
				}
			}()

			server, err := proxy.New(cfg, a.Cache, reg)
			if err != nil {
				return err
			}
			return server.Start()
		},
	}

	proxyCmd.Flags().IntVarP(&port, "port", "p", 0, "listen port, overrides server.port")
	return proxyCmd
}
