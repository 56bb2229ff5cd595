package registry

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"wormscan/log"
)

// DefaultURL is the canonical location of the affected-packages dataset.
const DefaultURL = "https://raw.githubusercontent.com/Amruth-SV/shai-hulud-scanner/main/affected-packages.json"

// CacheFilename is the dataset cache written next to the working directory.
const CacheFilename = "affected-packages-cache.json"

const httpTimeout = 30 * time.Second

// Fetch downloads and validates the dataset from url. The raw document bytes
// are returned alongside the store so callers can cache them verbatim.
func Fetch(url string) (*Store, []byte, error) {
	client := &http.Client{Timeout: httpTimeout}
	resp, err := client.Get(url)
	if err != nil {
		return nil, nil, &LoadError{Source: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, &LoadError{Source: url, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &LoadError{Source: url, Err: err}
	}

	s, err := Parse(bytes.NewReader(raw), url)
	if err != nil {
		return nil, nil, err
	}
	return s, raw, nil
}

// SaveCache writes the raw dataset document to the cache file in dir.
func SaveCache(dir string, raw []byte) error {
	path := filepath.Join(dir, CacheFilename)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("cache dataset: %w", err)
	}
	return nil
}

// Get resolves the dataset in order of preference: an explicit local source
// path, the cache file in cacheDir, the remote URL (cached on success), and
// finally fallbackPath. Only when every source fails does Get return an
// error; that error is fatal to the scan.
func Get(source, url, cacheDir, fallbackPath string) (*Store, error) {
	if source != "" {
		return Load(source)
	}

	cachePath := filepath.Join(cacheDir, CacheFilename)
	if s, err := Load(cachePath); err == nil {
		log.Infof("Using cached dataset %s (%d packages)", cachePath, s.PackageCount())
		return s, nil
	}

	if url == "" {
		// Offline mode: no cache, no remote; only the fallback can help.
		if fallbackPath != "" {
			return Load(fallbackPath)
		}
		return nil, &LoadError{Source: cachePath, Err: errors.New("no cached dataset and remote fetch disabled")}
	}

	s, raw, err := Fetch(url)
	if err == nil {
		log.Infof("Fetched dataset from %s (%d packages)", url, s.PackageCount())
		if cerr := SaveCache(cacheDir, raw); cerr != nil {
			log.Warnf("Failed to cache dataset: %v", cerr)
		}
		return s, nil
	}
	log.Warnf("Remote dataset fetch failed: %v", err)

	if fallbackPath != "" {
		s, lerr := Load(fallbackPath)
		if lerr == nil {
			log.Infof("Using local dataset %s (%d packages)", fallbackPath, s.PackageCount())
			return s, nil
		}
		log.Warnf("Local dataset fallback failed: %v", lerr)
	}

	return nil, err
}
