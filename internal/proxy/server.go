package proxy

import (
	"fmt"
	"net/http"

	"github.com/libdine/libdine/internal/cache"
	"github.com/libdine/libdine/internal/config"

	"github.com/elazarl/goproxy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Server represents the caching proxy server
type Server struct {
	config *config.Config
	cache  *cache.RequestCache
	rules  []Rule
	proxy  *goproxy.ProxyHttpServer
}

// New creates a new proxy server answering through c. When gatherer is not
// nil its metrics are served at /metrics for direct (non-proxy) requests.
func New(cfg *config.Config, c *cache.RequestCache, gatherer prometheus.Gatherer) (*Server, error) {
	if c == nil {
		return nil, fmt.Errorf("request cache is required")
	}

	s := &Server{
		config: cfg,
		cache:  c,
		rules:  rulesFromConfig(cfg),
		proxy:  goproxy.NewProxyHttpServer(),
	}

	s.proxy.Logger = logrus.StandardLogger()
	s.proxy.Verbose = logrus.IsLevelEnabled(logrus.DebugLevel)
	s.proxy.OnRequest().DoFunc(s.handleRequest)

	mux := http.NewServeMux()
	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "This is a proxy server. Does not respond to non-proxy requests.", http.StatusInternalServerError)
	})
	s.proxy.NonproxyHandler = mux

	return s, nil
}

// GetProxy returns the underlying proxy handler (exported for testing)
func (s *Server) GetProxy() *goproxy.ProxyHttpServer {
	return s.proxy
}

// Start starts the proxy server
func (s *Server) Start() error {
	logrus.Infof("Starting caching proxy on port %d", s.config.Server.Port)
	logrus.Infof("Cache file: %s", s.cache.Location())
	logrus.Infof("Rules mode: %s", s.config.Rules.Mode)

	return http.ListenAndServe(fmt.Sprintf(":%d", s.config.Server.Port), s.proxy)
}
