package httpcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/libdine/libdine/internal/cache"

	"github.com/sirupsen/logrus"
)

// StatusError reports a non-success upstream status
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// HTTPCache issues GET requests through a RequestCache
type HTTPCache struct {
	cache  *cache.RequestCache
	client *http.Client
}

// GenerateKey returns the cache key of a proxied request: the method
// followed by the canonical URL. The method is always present, so these keys
// never collide with the bare URL keys of GetText and GetJSON.
func GenerateKey(request *http.Request) string {
	method := request.Method
	if method == "" {
		method = http.MethodGet
	}
	return method + " " + cache.KeyFromURL(request.URL)
}

// GetText returns the body of the page at pageURL, keyed by the URL itself
func (d *HTTPCache) GetText(ctx context.Context, pageURL string) (string, error) {
	return keepUnpersisted(cache.FetchText(d.cache, pageURL, func() (string, error) {
		body, err := d.get(ctx, pageURL, nil)
		if err != nil {
			return "", err
		}
		return string(body), nil
	}))
}

// GetJSON returns the decoded JSON payload of base with params, keyed by the
// canonical key of base and params. header is sent but never part of the key.
func (d *HTTPCache) GetJSON(ctx context.Context, base string, params map[string]string, header http.Header) (json.RawMessage, error) {
	key := cache.Key(base, params)
	return keepUnpersisted(d.cache.FetchOrPopulate(key, func() (json.RawMessage, error) {
		target, err := withQuery(base, params)
		if err != nil {
			return nil, err
		}
		body, err := d.get(ctx, target, header)
		if err != nil {
			return nil, err
		}
		if !json.Valid(body) {
			return nil, fmt.Errorf("malformed JSON from %s", base)
		}
		return json.RawMessage(body), nil
	}))
}

// keepUnpersisted logs a failed cache write and keeps the fetched value
func keepUnpersisted[T any](value T, err error) (T, error) {
	if errors.Is(err, cache.ErrPersist) {
		logrus.Errorf("Failed to save cache: %v", err)
		return value, nil
	}
	return value, err
}

func (d *HTTPCache) get(ctx context.Context, target string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to request %s: %w", target, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logrus.Errorf("Failed to close response body: %v", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: stripQuery(target), StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	logrus.Debugf("Fetched %s -> %d (%d bytes)", stripQuery(target), resp.StatusCode, len(body))
	return body, nil
}

func withQuery(base string, params map[string]string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", base, err)
	}
	q := u.Query()
	for name, value := range params {
		q.Set(name, value)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// stripQuery keeps parameters such as locations out of logs and errors
func stripQuery(target string) string {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		return target[:i]
	}
	return target
}
