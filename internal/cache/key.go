package cache

import (
	"net/url"
	"sort"
	"strings"
)

// keyConnector joins the sorted parameter fragments of a key
const keyConnector = "_"

// Key builds the canonical key for a request to base with the given
// parameters. Fragments are formatted as name=value and sorted, so the key
// does not depend on the order the parameters were supplied in.
func Key(base string, params map[string]string) string {
	fragments := make([]string, 0, len(params))
	for name, value := range params {
		fragments = append(fragments, name+"="+value)
	}
	return joinKey(base, fragments)
}

// KeyFromValues is Key for multi-valued parameters: each value contributes
// its own fragment.
func KeyFromValues(base string, values url.Values) string {
	var fragments []string
	for name, vs := range values {
		for _, v := range vs {
			fragments = append(fragments, name+"="+v)
		}
	}
	return joinKey(base, fragments)
}

// KeyFromURL splits u into its base locator and query and canonicalizes it
func KeyFromURL(u *url.URL) string {
	base := *u
	base.RawQuery = ""
	base.ForceQuery = false
	base.Fragment = ""
	return KeyFromValues(base.String(), u.Query())
}

func joinKey(base string, fragments []string) string {
	if len(fragments) == 0 {
		return base
	}
	sort.Strings(fragments)
	return base + "?" + strings.Join(fragments, keyConnector)
}
