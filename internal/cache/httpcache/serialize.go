package httpcache

import (
	"bufio"
	"bytes"
	"fmt"
	"net/http"
	"net/http/httputil"
	"strings"
)

const PREFIX = "---HTTP-RESPONSE---\n"

// Serialize dumps the full response (status line, headers, body) as text.
// The body of resp is consumed and replaced so resp remains readable.
func Serialize(resp *http.Response) (string, error) {
	b, err := httputil.DumpResponse(resp, true)
	if err != nil {
		return "", err
	}

	return PREFIX + string(b), nil
}

// Deserialize parses text produced by Serialize back into a response
func Deserialize(s string) (*http.Response, error) {
	if !strings.HasPrefix(s, PREFIX) {
		got := s
		if len(got) > len(PREFIX) {
			got = got[:len(PREFIX)]
		}
		return nil, fmt.Errorf("invalid prefix: expected '%s', got '%s'", PREFIX, got)
	}

	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader([]byte(s[len(PREFIX):]))), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize response: %w", err)
	}

	return resp, nil
}
