// Package http builds the HTTP clients used to talk to the console.
package http

import (
	"crypto/tls"
	nethttp "net/http"
	"os"

	"golang.org/x/net/http2"

	"github.com/incidentops/console/internal/constants"
)

// NewClient creates the HTTP client used for console API requests.
//
// Key characteristics:
//   - Proxy settings from the environment (HTTP_PROXY, HTTPS_PROXY, NO_PROXY)
//   - Pooled connections sized for a single console host
//   - HTTP/2 with a runtime opt-out (DISABLE_HTTP2=true)
//   - No client-level timeout; per-request deadlines come from contexts,
//     which keeps long downloads and long polls from being cut off
func NewClient() (*nethttp.Client, error) {
	tr := &nethttp.Transport{
		Proxy: nethttp.ProxyFromEnvironment,

		MaxIdleConns:        constants.HTTPMaxIdleConns,
		MaxIdleConnsPerHost: constants.HTTPMaxIdleConnsPerHost,
		IdleConnTimeout:     constants.HTTPIdleConnTimeout,

		TLSHandshakeTimeout:   constants.HTTPTLSHandshakeTimeout,
		ExpectContinueTimeout: constants.HTTPExpectContinueTimeout,

		ForceAttemptHTTP2: true,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return nil, err
	}

	// Runtime toggle for HTTP/2, useful when a middlebox mishandles
	// multiplexed streams.
	if os.Getenv("DISABLE_HTTP2") == "true" {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
	}

	return &nethttp.Client{Transport: tr}, nil
}
