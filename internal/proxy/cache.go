package proxy

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/libdine/libdine/internal/cache"
	"github.com/libdine/libdine/internal/cache/httpcache"

	"github.com/elazarl/goproxy"
	"github.com/sirupsen/logrus"
)

// errUncacheable marks an upstream response that is relayed but not stored
var errUncacheable = errors.New("upstream response is not cacheable")

// shouldBeCached determines if a request goes through the cache based on rules
func (s *Server) shouldBeCached(requ *http.Request) bool {
	if requ.Method != http.MethodGet {
		return false
	}

	matched := false
	for _, rule := range s.rules {
		if rule.Match(requ) {
			matched = true
			break
		}
	}

	if s.config.Rules.Mode == "whitelist" {
		return matched
	} else {
		return !matched
	}
}

// handleRequest answers cacheable requests from the request cache, fetching
// and storing them upstream on a miss. Other requests are left to goproxy.
func (s *Server) handleRequest(requ *http.Request, ctx *goproxy.ProxyCtx) (*http.Request, *http.Response) {
	if !s.shouldBeCached(requ) {
		logrus.Debugf("Not caching %s %s (caching disabled by rules)", requ.Method, requ.URL)
		return requ, nil
	}

	key := httpcache.GenerateKey(requ)
	miss := false
	var passthrough *http.Response

	dump, err := cache.FetchText(s.cache, key, func() (string, error) {
		miss = true
		resp, err := ctx.RoundTrip(outgoing(requ))
		if err != nil {
			return "", err
		}
		if resp.StatusCode != http.StatusOK {
			passthrough = resp
			return "", fmt.Errorf("%w: status %d", errUncacheable, resp.StatusCode)
		}
		defer func() {
			if err := resp.Body.Close(); err != nil {
				logrus.Errorf("Failed to close upstream body: %v", err)
			}
		}()
		return httpcache.Serialize(resp)
	})

	switch {
	case errors.Is(err, errUncacheable) && passthrough != nil:
		passthrough.Header.Set("X-Cache", "MISS")
		logrus.Infof("Forwarded request: %s %s -> %d (not cached)", requ.Method, requ.URL, passthrough.StatusCode)
		return requ, passthrough
	case errors.Is(err, cache.ErrPersist) && dump != "":
		logrus.Errorf("Failed to cache response for %s: %v", requ.URL, err)
	case err != nil:
		logrus.Errorf("Failed to fetch %s: %v", requ.URL, err)
		return requ, goproxy.NewResponse(requ, goproxy.ContentTypeText, http.StatusBadGateway, err.Error())
	}

	resp, err := httpcache.Deserialize(dump)
	if err != nil {
		logrus.Errorf("Failed to read cached response for %s: %v", requ.URL, err)
		return requ, goproxy.NewResponse(requ, goproxy.ContentTypeText, http.StatusInternalServerError, err.Error())
	}
	resp.Request = requ

	if miss {
		resp.Header.Set("X-Cache", "MISS")
		logrus.Infof("Forwarded request: %s %s -> %d", requ.Method, requ.URL, resp.StatusCode)
	} else {
		resp.Header.Set("X-Cache", "HIT")
		logrus.Infof("Serving from cache: %s", requ.URL)
	}
	return requ, resp
}
