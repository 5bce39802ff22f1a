package httputil

import (
	"crypto/tls"
	"net/http"
	"net/url"
	"time"

	"velomarkt/config"
)

type Clients struct {
	Scraping *http.Client // proxied, for source platforms
	API      *http.Client // direct, for internal services
}

// NewClients builds the shared HTTP clients. The scraping client routes
// through the residential proxy, disables HTTP/2 (some source platforms
// fingerprint it) and never follows redirects so delist redirects stay
// visible to the caller.
func NewClients(proxyCfg *config.ProxyConfig) *Clients {
	transport := &http.Transport{
		ForceAttemptHTTP2: false,
		TLSNextProto:      make(map[string]func(string, *tls.Conn) http.RoundTripper),
	}
	if proxyCfg.URL != "" {
		if proxyURL, err := url.Parse(proxyCfg.URL); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	scraping := &http.Client{
		Timeout:   15 * time.Second,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &Clients{
		Scraping: scraping,
		API:      &http.Client{Timeout: 30 * time.Second},
	}
}
