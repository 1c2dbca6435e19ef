package provider

import (
	"context"
	"errors"
	nethttp "net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/incidentops/console/internal/api"
	"github.com/incidentops/console/internal/config"
)

func newRemote(t *testing.T, handler nethttp.Handler) *RemoteProvider {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.NewConfig()
	cfg.URL = srv.URL
	cfg.APIToken = "tok"

	client, err := api.NewClient(cfg, api.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatal(err)
	}
	return NewRemoteProvider(client, "clients/C.1/events")
}

func TestRemoteFetchItemsQueryShape(t *testing.T) {
	var gotQuery url.Values
	p := newRemote(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(`{"items":["a","b"],"offset":10,"total_count":42}`))
	}))

	page, err := p.FetchItems(context.Background(), 10, 2, true)
	if err != nil {
		t.Fatalf("FetchItems() error = %v", err)
	}

	if gotQuery.Get("offset") != "10" || gotQuery.Get("count") != "2" {
		t.Errorf("query = %v", gotQuery)
	}
	if gotQuery.Get("with_total_count") != "1" {
		t.Errorf("with_total_count missing: %v", gotQuery)
	}
	if len(page.Items) != 2 {
		t.Errorf("items = %v", page.Items)
	}
	if page.TotalCount == nil || *page.TotalCount != 42 {
		t.Errorf("TotalCount = %v, want 42", page.TotalCount)
	}
	if page.Offset != 10 {
		t.Errorf("Offset = %d, want 10", page.Offset)
	}
}

func TestRemoteFetchItemsWithoutTotalOmitsParam(t *testing.T) {
	var gotQuery url.Values
	p := newRemote(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		gotQuery = r.URL.Query()
		// Some servers echo a total anyway; the provider must drop it.
		w.Write([]byte(`{"items":[],"offset":0,"total_count":9}`))
	}))

	page, err := p.FetchItems(context.Background(), 0, 5, false)
	if err != nil {
		t.Fatalf("FetchItems() error = %v", err)
	}
	if gotQuery.Has("with_total_count") {
		t.Errorf("with_total_count should not be sent: %v", gotQuery)
	}
	if page.TotalCount != nil {
		t.Error("TotalCount should be nil when not requested")
	}
}

func TestRemoteFetchFilteredItemsPassesToken(t *testing.T) {
	var gotQuery url.Values
	p := newRemote(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(`{"items":["match"],"offset":0}`))
	}))

	page, err := p.FetchFilteredItems(context.Background(), "powershell", 0, 50)
	if err != nil {
		t.Fatalf("FetchFilteredItems() error = %v", err)
	}
	if gotQuery.Get("filter") != "powershell" {
		t.Errorf("filter param = %q", gotQuery.Get("filter"))
	}
	if page.TotalCount != nil {
		t.Error("TotalCount must never be set on filtered fetches")
	}
}

func TestRemoteFetchSurfacesServerError(t *testing.T) {
	p := newRemote(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		nethttp.Error(w, "boom", nethttp.StatusInternalServerError)
	}))

	if _, err := p.FetchItems(context.Background(), 0, 5, false); err == nil {
		t.Fatal("FetchItems() should fail on 500")
	}
}

func TestRemoteTransformItems(t *testing.T) {
	p := newRemote(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Write([]byte(`{"items":["a","b"],"offset":0}`))
	}))
	p.TransformItems = func(items []interface{}) ([]interface{}, error) {
		out := make([]interface{}, len(items))
		for i, it := range items {
			out[i] = "seen:" + it.(string)
		}
		return out, nil
	}

	page, err := p.FetchItems(context.Background(), 0, 2, false)
	if err != nil {
		t.Fatalf("FetchItems() error = %v", err)
	}
	if page.Items[0] != "seen:a" || page.Items[1] != "seen:b" {
		t.Errorf("items = %v", page.Items)
	}
}

func TestRemoteTransformErrorFailsFetch(t *testing.T) {
	p := newRemote(t, nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Write([]byte(`{"items":["a"],"offset":0}`))
	}))
	transformErr := errors.New("bad record")
	p.TransformItems = func(items []interface{}) ([]interface{}, error) {
		return nil, transformErr
	}

	_, err := p.FetchItems(context.Background(), 0, 1, false)
	if !errors.Is(err, transformErr) {
		t.Errorf("error = %v, want wrapped transform error", err)
	}
}
