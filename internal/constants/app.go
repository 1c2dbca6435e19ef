// Package constants defines shared tuning values for the console client.
package constants

import (
	"time"
)

// Table engine defaults
const (
	// DefaultPageSize - items requested per fetch by both table engines.
	// Matches the console API's default list window.
	DefaultPageSize = 50

	// ScrollCheckInterval - how often the incremental table checks whether
	// its loading sentinel is visible and another page should be fetched.
	ScrollCheckInterval = 100 * time.Millisecond

	// AutoRefreshInterval - how often a short (less than one page) unfiltered
	// incremental table re-fetches its first page to pick up new items.
	AutoRefreshInterval = 5 * time.Second

	// DefaultFetchTimeout - upper bound on a single provider fetch. A fetch
	// that exceeds it is reported as a failed fetch; already-rendered rows
	// are kept.
	DefaultFetchTimeout = 60 * time.Second
)

// Polling defaults
const (
	// DefaultPollInterval - delay between settled poll requests.
	DefaultPollInterval = 1 * time.Second

	// PollTerminalState - the state value that ends a poll when no custom
	// condition is supplied.
	PollTerminalState = "FINISHED"
)

// HTTP client configuration
const (
	// APIRoot - path prefix for every console API request.
	APIRoot = "/api/"

	// ReasonHeader - carries the request reason on POST requests, where a
	// query parameter would be lost in the body encoding. Base64-encoded.
	ReasonHeader = "X-Console-Reason"

	// UnauthorizedSubjectHeader / UnauthorizedReasonHeader - set by the
	// console on 403 responses to identify what was denied and why.
	UnauthorizedSubjectHeader = "X-Console-Unauthorized-Subject"
	UnauthorizedReasonHeader  = "X-Console-Unauthorized-Reason"

	// HTTPIdleConnTimeout - how long idle connections stay pooled.
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - TLS handshake deadline.
	HTTPTLSHandshakeTimeout = 30 * time.Second

	// HTTPExpectContinueTimeout - wait for a 100-continue response.
	HTTPExpectContinueTimeout = 5 * time.Second

	// HTTPMaxIdleConns / HTTPMaxIdleConnsPerHost - connection pool sizing.
	// The client talks to a single console host, so the per-host pool is
	// what matters in practice.
	HTTPMaxIdleConns        = 64
	HTTPMaxIdleConnsPerHost = 16
)

// Transport retry configuration (retryablehttp). Retries happen below the
// API surface; the polling primitive and the table engines never retry.
const (
	// TransportRetryMax - attempts beyond the first request.
	TransportRetryMax = 3

	// TransportRetryWaitMin - initial backoff delay.
	TransportRetryWaitMin = 500 * time.Millisecond

	// TransportRetryWaitMax - backoff ceiling.
	TransportRetryWaitMax = 10 * time.Second
)

// Event bus configuration
const (
	// EventBusDefaultBuffer - per-subscriber channel buffer.
	EventBusDefaultBuffer = 256

	// EventBusMaxBuffer - cap on caller-requested buffer sizes.
	EventBusMaxBuffer = 4096
)
