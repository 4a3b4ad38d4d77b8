package server

import (
	"net/http"
	"net/url"
)

// newUpstreamClient builds the client used to reach the agent backend.
func newUpstreamClient() *http.Client {
	return &http.Client{
		// No timeout — streaming responses can be long-lived
		Timeout: 0,
		// Don't follow redirects
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// prepareUpstreamHeaders sets the headers for a turn request. Compression
// is refused so the frame decoder sees the raw line protocol.
func prepareUpstreamHeaders(h http.Header, apiKey string) {
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "text/plain")
	h.Del("Accept-Encoding")
	if apiKey != "" {
		h.Set("Authorization", "Bearer "+apiKey)
	}
}

func buildTargetURL(baseURL, path string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		u = &url.URL{Scheme: "http", Host: "localhost:8765"}
	}
	u.Path = path
	return u.String()
}
