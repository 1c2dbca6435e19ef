package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"

	"github.com/incidentops/console/internal/constants"
	"github.com/incidentops/console/internal/events"
)

// DownloadFile streams the resource at path into w and returns the number
// of bytes written.
//
// A HEAD request with the same path and parameters runs first to verify the
// resource is accessible. A 403 on the pre-check is surfaced as an
// UnauthorizedError carrying the subject and reason the console put in its
// response headers, and an unauthorized event is published for interested
// collaborators. Only after the pre-check passes does the streaming GET
// start, so a download never half-fails into w on a denied resource.
func (c *Client) DownloadFile(ctx context.Context, path string, params url.Values, w io.Writer) (int64, error) {
	if resp, err := c.Head(ctx, path, params); err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode == nethttp.StatusForbidden && resp != nil {
			subject := resp.Header.Get(constants.UnauthorizedSubjectHeader)
			reason := resp.Header.Get(constants.UnauthorizedReasonHeader)
			if c.bus != nil {
				c.bus.Publish(events.NewUnauthorizedEvent(path, subject, reason))
			}
			return 0, &UnauthorizedError{Path: path, Subject: subject, Reason: reason}
		}
		return 0, fmt.Errorf("download pre-check failed: %w", err)
	}

	if c.bus != nil {
		c.bus.Publish(events.NewDownloadEvent(events.EventDownloadStarted, path, 0, nil))
	}

	n, err := c.stream(ctx, path, params, w)
	if err != nil {
		if c.bus != nil {
			c.bus.Publish(events.NewDownloadEvent(events.EventDownloadFailed, path, n, err))
		}
		return n, err
	}

	if c.bus != nil {
		c.bus.Publish(events.NewDownloadEvent(events.EventDownloadCompleted, path, n, nil))
	}
	return n, nil
}

// stream issues a GET and copies the raw body into w without buffering it
// in memory. Unlike Get, the body is not decoded.
func (c *Client) stream(ctx context.Context, path string, params url.Values, w io.Writer) (int64, error) {
	merged := url.Values{}
	for k, vs := range params {
		merged[k] = vs
	}
	if reason := ReasonFrom(ctx); reason != "" {
		merged.Set("reason", reason)
	}

	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, c.buildURL(path, merged), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, &StatusError{
			Method:     nethttp.MethodGet,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("download interrupted after %d bytes: %w", n, err)
	}
	return n, nil
}
