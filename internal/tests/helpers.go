// Package tests holds end-to-end tests running the whole stack against local
// upstream servers.
package tests

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/libdine/libdine/internal/cache"
	"github.com/libdine/libdine/internal/config"
	"github.com/libdine/libdine/internal/proxy"

	"github.com/prometheus/client_golang/prometheus"
)

const testAPIKey = "test-key"

const directoryPage = `<html><body><ul>
<li class="css-77qsxv"><a href="/locations-and-hours/hatcher-library"><span>Hatcher Library</span></a></li>
<li class="css-77qsxv"><a href="/locations-and-hours/clark-library"><span>Clark Library</span></a></li>
</ul></body></html>`

const hatcherPage = `<html><body>
<h1 class="css-1xx2irx-StyledHeading e1tlxttt0">Hatcher Library</h1>
<p class="css-733d4y-StyledText ettiaw90">The main humanities library.</p>
<address>Address913 S. University Ave, Ann Arbor, MI 48109View on Google Maps</address>
</body></html>`

const clarkPage = `<html><body>
<h1 class="css-1xx2irx-StyledHeading e1tlxttt0">Clark Library</h1>
<p class="css-733d4y-StyledText ettiaw90">Maps and data.</p>
<address>Address2800 Plymouth Rd, Building 18, Room G018, Ann Arbor, MI 48109View on Google Maps</address>
</body></html>`

const searchPayload = `{"businesses": [
 {"name": "Frita Batidos", "rating": 4.5, "display_phone": "(734) 761-2882", "url": "https://yelp.example/frita",
  "location": {"display_address": ["117 W Washington St", "Ann Arbor, MI 48104"]}},
 {"name": "Zingerman's Delicatessen", "rating": 4, "display_phone": "(734) 663-3354", "url": "https://yelp.example/zingermans",
  "location": {"display_address": ["422 Detroit St", "Ann Arbor, MI 48104"]}}
], "total": 2}`

// upstream serves the library pages and the business search, counting every
// request it answers
type upstream struct {
	*httptest.Server
	hits atomic.Int64
}

// fixture_upstream creates a test upstream server
func fixture_upstream() *upstream {
	u := &upstream{}
	mux := http.NewServeMux()
	page := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(body))
		}
	}
	mux.HandleFunc("/locations-and-hours", page(directoryPage))
	mux.HandleFunc("/locations-and-hours/hatcher-library", page(hatcherPage))
	mux.HandleFunc("/locations-and-hours/clark-library", page(clarkPage))
	mux.HandleFunc("/v3/businesses/search", func(w http.ResponseWriter, requ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if requ.Header.Get("Authorization") != "Bearer "+testAPIKey {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error": {"code": "TOKEN_MISSING", "description": "You didn't provide an API key."}}`))
			return
		}
		_, _ = w.Write([]byte(searchPayload))
	})
	mux.HandleFunc("/api/", func(w http.ResponseWriter, requ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"message": "Hello from upstream", "path": %q}`, requ.URL.Path)
	})

	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, requ *http.Request) {
		u.hits.Add(1)
		mux.ServeHTTP(w, requ)
	}))
	return u
}

// fixture_config creates a test config pointing at upstreamURL with optional rules
func fixture_config(upstreamURL string, tempDir string, rules *config.RulesConfig) *config.Config {
	cfg := config.Default()
	cfg.Cache.File = filepath.Join(tempDir, cache.DefaultFilename)
	cfg.Cache.Delay = "0s"
	cfg.Libraries.BaseURL = upstreamURL
	cfg.Yelp.Endpoint = upstreamURL + "/v3/businesses/search"
	cfg.Yelp.APIKey = testAPIKey

	if rules != nil {
		cfg.Rules = *rules
	}

	return cfg
}

// fixture_cache opens the request cache configured by cfg
func fixture_cache(cfg *config.Config) *cache.RequestCache {
	return cache.New(cache.NewDisk(cfg.Cache.File), 0)
}

// fixture_proxy creates a proxy server with the given config and returns the server, test server, and HTTP client
func fixture_proxy(cfg *config.Config, c *cache.RequestCache, gatherer prometheus.Gatherer) (*proxy.Server, *httptest.Server, *http.Client, error) {
	proxyServer, err := proxy.New(cfg, c, gatherer)
	if err != nil {
		return nil, nil, nil, err
	}

	// Create test proxy HTTP server using goproxy
	proxyTestServer := httptest.NewServer(proxyServer.GetProxy())

	// Create HTTP client that uses our proxy
	proxyURL, _ := url.Parse(proxyTestServer.URL)
	client := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyURL(proxyURL),
		},
		Timeout: 10 * time.Second,
	}

	return proxyServer, proxyTestServer, client, nil
}
