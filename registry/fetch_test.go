package registry_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"wormscan/registry"
)

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(validDataset))
	}))
	defer srv.Close()

	s, raw, err := registry.Fetch(srv.URL)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if s.PackageCount() != 2 {
		t.Errorf("PackageCount() = %d, want 2", s.PackageCount())
	}
	if string(raw) != validDataset {
		t.Error("Fetch() raw bytes do not round-trip the served document")
	}
}

func TestFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if _, _, err := registry.Fetch(srv.URL); err == nil {
		t.Fatal("Fetch() of a 404 succeeded, want error")
	}
}

func TestGetPrefersExplicitSource(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "explicit.json")
	if err := os.WriteFile(source, []byte(validDataset), 0o644); err != nil {
		t.Fatal(err)
	}

	// The remote would fail; an explicit source must short-circuit it.
	s, err := registry.Get(source, "http://127.0.0.1:1/unreachable", dir, "")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if s.PackageCount() != 2 {
		t.Errorf("PackageCount() = %d, want 2", s.PackageCount())
	}
}

func TestGetCachesRemote(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte(validDataset))
	}))
	defer srv.Close()

	dir := t.TempDir()
	if _, err := registry.Get("", srv.URL, dir, ""); err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if hits != 1 {
		t.Fatalf("remote hit %d times, want 1", hits)
	}
	if _, err := os.Stat(filepath.Join(dir, registry.CacheFilename)); err != nil {
		t.Fatalf("cache file not written: %v", err)
	}

	// A second call must be served from the cache.
	if _, err := registry.Get("", srv.URL, dir, ""); err != nil {
		t.Fatalf("Get() from cache error: %v", err)
	}
	if hits != 1 {
		t.Errorf("remote hit %d times after cached call, want 1", hits)
	}
}

func TestGetFallsBack(t *testing.T) {
	dir := t.TempDir()
	fallback := filepath.Join(dir, "fallback.json")
	if err := os.WriteFile(fallback, []byte(validDataset), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := registry.Get("", "http://127.0.0.1:1/unreachable", dir, fallback)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !s.Has("left-pad") {
		t.Error("fallback dataset not loaded")
	}
}

func TestGetOffline(t *testing.T) {
	dir := t.TempDir()
	fallback := filepath.Join(dir, "fallback.json")
	if err := os.WriteFile(fallback, []byte(validDataset), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := registry.Get("", "", dir, fallback)
	if err != nil {
		t.Fatalf("Get() offline error: %v", err)
	}
	if !s.Has("left-pad") {
		t.Error("offline fallback dataset not loaded")
	}

	if _, err := registry.Get("", "", t.TempDir(), ""); err == nil {
		t.Error("Get() offline with no sources succeeded, want error")
	}
}
