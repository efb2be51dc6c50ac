package textapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shiurlab/shiur-core/internal/core/domain"
)

func testClient(ts *httptest.Server) *Client {
	cfg := DefaultConfig(ts.URL)
	cfg.RequestsPerSecond = 0 // no throttling in tests
	cfg.Timeout = 5 * time.Second
	return NewClient(cfg)
}

func TestFetchText_NestedArrays(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("lang") != "he" || r.URL.Query().Get("context") != "0" {
			t.Errorf("expected lang=he&context=0, got %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ref": "Shulchan Arukh, Orach Chayim 24", "he": ["פסקה", ["תת", "פסקה"]]}`))
	}))
	defer ts.Close()

	payload, err := testClient(ts).FetchText(context.Background(), "Shulchan Arukh, Orach Chayim 24")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload.Ref != "Shulchan Arukh, Orach Chayim 24" {
		t.Errorf("unexpected ref %q", payload.Ref)
	}
	nested, ok := payload.He.([]any)
	if !ok || len(nested) != 2 {
		t.Errorf("expected nested array preserved, got %T", payload.He)
	}
}

func TestFetchText_HeFromVersions(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ref": "Tur, Orach Chayim 24", "versions": [{"language": "he", "text": "טקסט"}]}`))
	}))
	defer ts.Close()

	payload, err := testClient(ts).FetchText(context.Background(), "Tur, Orach Chayim 24")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload.He != "טקסט" {
		t.Errorf("hebrew should be taken from versions, got %v", payload.He)
	}
}

func TestFetchText_MissingHe(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ref": "Some Ref"}`))
	}))
	defer ts.Close()

	_, err := testClient(ts).FetchText(context.Background(), "Some Ref")
	if !errors.Is(err, domain.ErrUpstreamSchema) {
		t.Errorf("expected schema drift error, got %v", err)
	}
}

func TestFetchText_NotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	_, err := testClient(ts).FetchText(context.Background(), "No Such Ref 1:1")
	if !errors.Is(err, domain.ErrUpstreamNotFound) {
		t.Errorf("expected upstream not found, got %v", err)
	}
}

func TestFetchLinks_BareArray(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"refs": ["Tur, Orach Chayim 24"], "anchorRef": "Shulchan Arukh, Orach Chayim 24:1"}]`))
	}))
	defer ts.Close()

	entries, err := testClient(ts).FetchLinks(context.Background(), "Shulchan Arukh, Orach Chayim 24:1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	refs := entries[0].AllRefs()
	if len(refs) != 2 {
		t.Errorf("expected refs + anchorRef collected, got %v", refs)
	}
}

func TestFetchLinks_WrappedObject(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"links": [{"expandedRefs0": ["Beit Yosef, Orach Chayim 24:1"]}]}`))
	}))
	defer ts.Close()

	entries, err := testClient(ts).FetchLinks(context.Background(), "ref")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || len(entries[0].ExpandedRefs0) != 1 {
		t.Errorf("wrapped links should decode, got %+v", entries)
	}
}

func TestFetchIndex(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"schema": {"lengths": [697, 1683]}}`))
	}))
	defer ts.Close()

	info, err := testClient(ts).FetchIndex(context.Background(), "Shulchan Arukh, Orach Chayim")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(info.Lengths) != 2 || info.Lengths[0] != 697 {
		t.Errorf("unexpected lengths: %v", info.Lengths)
	}
}
