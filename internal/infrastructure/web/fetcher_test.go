package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFetchParsesDocumentAndSendsUserAgent(t *testing.T) {
	t.Parallel()

	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`<html><head><title>Reef Trust</title></head></html>`))
	}))
	t.Cleanup(srv.Close)

	f := NewFetcher(srv.Client(), "", 0)
	doc, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if title := doc.Find("title").Text(); title != "Reef Trust" {
		t.Fatalf("unexpected title %q", title)
	}
	if !strings.HasPrefix(gotUA, "Mozilla/5.0") {
		t.Fatalf("unexpected user agent %q", gotUA)
	}
}

func TestFetchRejectsNon2xx(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	_, err := NewFetcher(srv.Client(), "test-agent", time.Second).Fetch(context.Background(), srv.URL)
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected 404 error, got %v", err)
	}
}

func TestFetchDecodesDeclaredCharset(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=ISO-8859-1")
		// "Énergie Café" in Latin-1.
		_, _ = w.Write([]byte("<html><head><title>\xc9nergie Caf\xe9</title></head></html>"))
	}))
	t.Cleanup(srv.Close)

	doc, err := NewFetcher(srv.Client(), "", 0).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if title := doc.Find("title").Text(); title != "Énergie Café" {
		t.Fatalf("unexpected title %q", title)
	}
}
