package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/libdine/libdine/internal/app"
	"github.com/libdine/libdine/internal/cache"
	"github.com/libdine/libdine/internal/cache/httpcache"
	"github.com/libdine/libdine/internal/config"
	"github.com/libdine/libdine/internal/menu"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runSession(t *testing.T, cfg *config.Config, input string) string {
	t.Helper()
	a, err := app.New(cfg, nil)
	require.NoError(t, err)
	defer func() { require.NoError(t, a.Close()) }()

	var out bytes.Buffer
	err = menu.New(strings.NewReader(input), &out, a.Libraries, a.Restaurants).
		WithCache(a.Cache).
		Run(context.Background())
	require.NoError(t, err)
	return out.String()
}

func TestMenuSessionIntegration(t *testing.T) {
	upstream := fixture_upstream()
	defer upstream.Close()

	cfg := fixture_config(upstream.URL, t.TempDir(), nil)
	input := strings.Join([]string{"yes", "1", "yes", "2", "back", "back", "2", "exit"}, "\n") + "\n"

	t.Run("first session fetches upstream", func(t *testing.T) {
		out := runSession(t, cfg, input)

		assert.Contains(t, out, "[1] hatcher library")
		assert.Contains(t, out, "[2] clark library")
		assert.Contains(t, out, "Hatcher Library locates at 913 S. University Ave, Ann Arbor, MI 48109. The main humanities library.")
		assert.Contains(t, out, "[2] Zingerman's Delicatessen")
		assert.Contains(t, out, "Zingerman's Delicatessen locates at 422 Detroit St.")
		assert.Contains(t, out, "Its rating level is 4.0.")
		assert.Contains(t, out, "Clark Library locates at 2800 Plymouth Rd, Ann Arbor, MI 48109. Maps and data.")

		// directory, two library pages and one search
		assert.Equal(t, int64(4), upstream.hits.Load())
	})

	t.Run("second session is served from the cache file", func(t *testing.T) {
		out := runSession(t, cfg, input)

		assert.Contains(t, out, "Zingerman's Delicatessen locates at 422 Detroit St.")
		assert.Equal(t, int64(4), upstream.hits.Load())
	})

	t.Run("cache file holds canonical keys", func(t *testing.T) {
		store := cache.NewDisk(cfg.Cache.File).Load()
		assert.Len(t, store, 4)
		assert.Contains(t, store, upstream.URL+"/locations-and-hours")
		assert.Contains(t, store, upstream.URL+"/v3/businesses/search?"+
			"limit=10_location=913 S. University Ave, Ann Arbor, MI 48109_radius=1000_term=restaurants")
	})
}

func TestMenuSessionSQLiteIntegration(t *testing.T) {
	upstream := fixture_upstream()
	defer upstream.Close()

	cfg := fixture_config(upstream.URL, t.TempDir(), nil)
	cfg.Cache.Backend = "sqlite"
	cfg.Cache.File = strings.TrimSuffix(cfg.Cache.File, ".json") + ".db"
	input := strings.Join([]string{"yes", "1", "yes", "1", "exit"}, "\n") + "\n"

	out := runSession(t, cfg, input)
	assert.Contains(t, out, "Frita Batidos locates at 117 W Washington St.")
	assert.Equal(t, int64(3), upstream.hits.Load())

	out = runSession(t, cfg, input)
	assert.Contains(t, out, "Frita Batidos locates at 117 W Washington St.")
	assert.Equal(t, int64(3), upstream.hits.Load())
}

func TestSearchErrorsAreNotCached(t *testing.T) {
	upstream := fixture_upstream()
	defer upstream.Close()

	cfg := fixture_config(upstream.URL, t.TempDir(), nil)
	cfg.Yelp.APIKey = ""
	input := strings.Join([]string{"yes", "1", "yes", "yes", "exit"}, "\n") + "\n"

	out := runSession(t, cfg, input)

	assert.Equal(t, 2, strings.Count(out, "[ERROR]"))
	// directory, library page and two rejected searches
	assert.Equal(t, int64(4), upstream.hits.Load())
	assert.Len(t, cache.NewDisk(cfg.Cache.File).Load(), 2)
}

func TestSessionWarnsWhenCacheIsUnwritable(t *testing.T) {
	upstream := fixture_upstream()
	defer upstream.Close()

	dir := t.TempDir()
	cfg := fixture_config(upstream.URL, dir, nil)
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	cfg.Cache.File = filepath.Join(blocker, "cache.json")
	input := strings.Join([]string{"yes", "1", "yes", "1", "exit"}, "\n") + "\n"

	out := runSession(t, cfg, input)

	assert.Contains(t, out, "Frita Batidos locates at 117 W Washington St.")
	assert.Equal(t, 1, strings.Count(out, "[WARNING]"))
}

func TestProxyIntegration(t *testing.T) {
	upstream := fixture_upstream()
	defer upstream.Close()

	cfg := fixture_config(upstream.URL, t.TempDir(), nil)
	c := fixture_cache(cfg)

	_, proxyTestServer, client, err := fixture_proxy(cfg, c, nil)
	require.NoError(t, err)
	defer proxyTestServer.Close()

	t.Run("first request - cache miss", func(t *testing.T) {
		resp, err := client.Get(upstream.URL + "/api/test")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "MISS", resp.Header.Get("X-Cache"))

		body, _ := io.ReadAll(resp.Body)
		assert.Contains(t, string(body), "Hello from upstream")
	})

	t.Run("second request - cache hit", func(t *testing.T) {
		resp, err := client.Get(upstream.URL + "/api/test")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "HIT", resp.Header.Get("X-Cache"))

		body, _ := io.ReadAll(resp.Body)
		assert.Contains(t, string(body), "Hello from upstream")
		assert.Equal(t, int64(1), upstream.hits.Load())
	})

	t.Run("verify cache file holds the response", func(t *testing.T) {
		store := cache.NewDisk(cfg.Cache.File).Load()
		require.Contains(t, store, "GET "+upstream.URL+"/api/test")
		assert.NotContains(t, store, upstream.URL+"/api/test")

		var dump string
		require.NoError(t, json.Unmarshal(store["GET "+upstream.URL+"/api/test"], &dump))
		assert.True(t, strings.HasPrefix(dump, "---HTTP-RESPONSE---\n"))
	})

	t.Run("non-200 responses are relayed but not cached", func(t *testing.T) {
		for range 2 {
			resp, err := client.Get(upstream.URL + "/missing")
			require.NoError(t, err)
			_ = resp.Body.Close()

			assert.Equal(t, http.StatusNotFound, resp.StatusCode)
			assert.Equal(t, "MISS", resp.Header.Get("X-Cache"))
		}
		assert.Equal(t, int64(3), upstream.hits.Load())
		assert.Equal(t, 1, c.Len())
	})
}

func TestProxyAndFetcherShareCache(t *testing.T) {
	proxyGet := func(t *testing.T, client *http.Client, target string) (*http.Response, string) {
		t.Helper()
		resp, err := client.Get(target)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp, string(body)
	}

	t.Run("proxy first", func(t *testing.T) {
		upstream := fixture_upstream()
		defer upstream.Close()

		cfg := fixture_config(upstream.URL, t.TempDir(), nil)
		c := fixture_cache(cfg)
		_, proxyTestServer, client, err := fixture_proxy(cfg, c, nil)
		require.NoError(t, err)
		defer proxyTestServer.Close()
		target := upstream.URL + "/locations-and-hours"

		resp, body := proxyGet(t, client, target)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "MISS", resp.Header.Get("X-Cache"))
		assert.Contains(t, body, "Hatcher Library")

		page, err := httpcache.New(c, nil).GetText(context.Background(), target)
		require.NoError(t, err)
		assert.False(t, strings.HasPrefix(page, httpcache.PREFIX))
		assert.Contains(t, page, `class="css-77qsxv"`)

		resp, _ = proxyGet(t, client, target)
		assert.Equal(t, "HIT", resp.Header.Get("X-Cache"))
		assert.Equal(t, int64(2), upstream.hits.Load())
		assert.Equal(t, 2, c.Len())
	})

	t.Run("fetcher first", func(t *testing.T) {
		upstream := fixture_upstream()
		defer upstream.Close()

		cfg := fixture_config(upstream.URL, t.TempDir(), nil)
		c := fixture_cache(cfg)
		_, proxyTestServer, client, err := fixture_proxy(cfg, c, nil)
		require.NoError(t, err)
		defer proxyTestServer.Close()
		target := upstream.URL + "/locations-and-hours"

		_, err = httpcache.New(c, nil).GetText(context.Background(), target)
		require.NoError(t, err)

		resp, body := proxyGet(t, client, target)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "MISS", resp.Header.Get("X-Cache"))
		assert.Contains(t, body, "Hatcher Library")

		page, err := httpcache.New(c, nil).GetText(context.Background(), target)
		require.NoError(t, err)
		assert.Contains(t, page, `class="css-77qsxv"`)
		assert.Equal(t, int64(2), upstream.hits.Load())
	})
}

func TestProxyIntegrationWithCustomRules(t *testing.T) {
	upstream := fixture_upstream()
	defer upstream.Close()

	// whitelist another host only, so nothing from upstream is cached
	customRules := &config.RulesConfig{
		Mode: "whitelist",
		Rules: []config.CacheRule{
			{
				BaseURI: "https://example.com",
				Methods: []string{"GET"},
			},
		},
	}

	cfg := fixture_config(upstream.URL, t.TempDir(), customRules)
	c := fixture_cache(cfg)

	_, proxyTestServer, client, err := fixture_proxy(cfg, c, nil)
	require.NoError(t, err)
	defer proxyTestServer.Close()

	for range 2 {
		resp, err := client.Get(upstream.URL + "/api/test")
		require.NoError(t, err)
		_ = resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, resp.Header.Get("X-Cache"))
	}
	assert.Equal(t, int64(2), upstream.hits.Load())
	assert.Equal(t, 0, c.Len())
}

func TestProxyMetrics(t *testing.T) {
	upstream := fixture_upstream()
	defer upstream.Close()

	cfg := fixture_config(upstream.URL, t.TempDir(), nil)
	reg := prometheus.NewRegistry()
	c := cache.New(cache.NewDisk(cfg.Cache.File), 0, cache.WithMetrics(cache.NewMetrics(reg)))

	_, proxyTestServer, client, err := fixture_proxy(cfg, c, reg)
	require.NoError(t, err)
	defer proxyTestServer.Close()

	for range 2 {
		resp, err := client.Get(upstream.URL + "/api/metrics")
		require.NoError(t, err)
		_ = resp.Body.Close()
	}

	// direct requests reach the non-proxy handler
	resp, err := http.Get(proxyTestServer.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `libdine_cache_lookups_total{result="hit"} 1`)
	assert.Contains(t, string(body), `libdine_cache_lookups_total{result="miss"} 1`)
	assert.Contains(t, string(body), "libdine_cache_entries 1")
}
