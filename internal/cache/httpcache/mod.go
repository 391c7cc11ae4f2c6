// Package httpcache routes outbound HTTP requests through the request cache.
package httpcache

import (
	"net/http"
	"time"

	"github.com/libdine/libdine/internal/cache"
)

// DefaultTimeout bounds a single upstream request
const DefaultTimeout = 30 * time.Second

// New returns an HTTPCache using client, or a client with DefaultTimeout if nil
func New(c *cache.RequestCache, client *http.Client) *HTTPCache {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &HTTPCache{
		cache:  c,
		client: client,
	}
}
