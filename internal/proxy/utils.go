package proxy

import (
	"fmt"
	"net/http"
)

func getTargetURL(r *http.Request) string {
	if r.URL.IsAbs() {
		return r.URL.String()
	}

	// Reconstruct URL from Host header
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	return fmt.Sprintf("%s://%s%s", scheme, r.Host, r.URL.String())
}

// outgoing prepares a copy of a proxied request for the upstream round trip
func outgoing(requ *http.Request) *http.Request {
	out := requ.Clone(requ.Context())
	out.RequestURI = ""
	out.Header.Del("Proxy-Connection")
	out.Header.Del("Proxy-Authorization")
	return out
}
