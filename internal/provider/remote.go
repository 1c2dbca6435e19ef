package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/incidentops/console/internal/api"
)

// RemoteProvider serves pages from a console list endpoint. The endpoint is
// expected to accept offset/count/filter/with_total_count query parameters
// and answer with {"items": [...], "offset": n, "total_count": n}.
//
// Filter matching happens server-side; the provider passes the token
// through untouched and trusts the console's matching.
type RemoteProvider struct {
	client *api.Client
	path   string

	// TransformItems, when set, post-processes each fetched page's items
	// before they are handed to the caller. An error fails the fetch.
	TransformItems func(items []interface{}) ([]interface{}, error)
}

// NewRemoteProvider creates a provider over the list endpoint at path,
// e.g. "clients/C.1/flows".
func NewRemoteProvider(client *api.Client, path string) *RemoteProvider {
	return &RemoteProvider{client: client, path: path}
}

// listResponse is the console's list endpoint wire shape.
type listResponse struct {
	Items      []interface{} `json:"items"`
	Offset     int           `json:"offset"`
	TotalCount *int          `json:"total_count"`
}

// FetchItems fetches an unfiltered page from the console.
func (p *RemoteProvider) FetchItems(ctx context.Context, offset, count int, withTotal bool) (*Page, error) {
	params := url.Values{
		"offset": []string{strconv.Itoa(offset)},
		"count":  []string{strconv.Itoa(count)},
	}
	if withTotal {
		params.Set("with_total_count", "1")
	}

	page, err := p.fetch(ctx, params)
	if err != nil {
		return nil, err
	}
	if !withTotal {
		page.TotalCount = nil
	}
	// The offset is the one we asked for, regardless of what came back.
	page.Offset = offset
	return page, nil
}

// FetchFilteredItems fetches a filtered page. TotalCount is never populated
// for filtered fetches.
func (p *RemoteProvider) FetchFilteredItems(ctx context.Context, filter string, offset, count int) (*Page, error) {
	params := url.Values{
		"offset": []string{strconv.Itoa(offset)},
		"count":  []string{strconv.Itoa(count)},
		"filter": []string{filter},
	}

	page, err := p.fetch(ctx, params)
	if err != nil {
		return nil, err
	}
	page.TotalCount = nil
	page.Offset = offset
	return page, nil
}

func (p *RemoteProvider) fetch(ctx context.Context, params url.Values) (*Page, error) {
	resp, err := p.client.Get(ctx, p.path, params)
	if err != nil {
		return nil, err
	}

	var decoded listResponse
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode list response from %s: %w", p.path, err)
	}

	items := decoded.Items
	if items == nil {
		items = []interface{}{}
	}

	if p.TransformItems != nil {
		items, err = p.TransformItems(items)
		if err != nil {
			return nil, fmt.Errorf("transform items: %w", err)
		}
	}

	return &Page{
		Items:      items,
		TotalCount: decoded.TotalCount,
	}, nil
}
