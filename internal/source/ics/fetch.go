// Package ics implements the calendar data source interface on top of
// per-participant ICS feeds: conditional HTTP fetch with a disk-backed
// cache, VEVENT parsing, and recurrence expansion windowed to one day.
package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	appLog "focuscal/internal/log"
)

// Feed is one participant's ICS subscription.
type Feed struct {
	// ParticipantID identifies the participant this feed belongs to.
	ParticipantID string
	// URL is the ICS endpoint.
	URL string
}

// fetchResult is the outcome of fetching a single feed.
type fetchResult struct {
	Body      []byte
	FromCache bool // true if the cached body was reused (304 or network failure)
}

// cacheMeta holds HTTP cache metadata for a single feed URL.
type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// fetcher downloads feeds honoring ETag / Last-Modified, keeping the
// last good body on disk so transient network failures degrade to
// slightly stale availability instead of a failed participant.
type fetcher struct {
	client   *http.Client
	cacheDir string
}

func newFetcher(cacheDir string) *fetcher {
	if cacheDir == "" {
		cacheDir = "./var/feed-cache"
	}
	return &fetcher{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		cacheDir: cacheDir,
	}
}

func (f *fetcher) fetch(ctx context.Context, feed Feed) (fetchResult, error) {
	if feed.URL == "" {
		return fetchResult{}, errors.New("feed URL is empty")
	}

	cachePath := f.cachePathForURL(feed.URL)
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return fetchResult{}, err
	}

	meta, _ := loadCacheMeta(cachePath)
	cachedBody, _ := os.ReadFile(filepath.Join(cachePath, "body.ics"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return fetchResult{}, err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	appLog.Debug("feed fetch start", "participant", feed.ParticipantID, "url", redactURL(feed.URL))

	resp, err := f.client.Do(req)
	if err != nil {
		if len(cachedBody) > 0 {
			appLog.Error("feed fetch network error, using cached body", err,
				"participant", feed.ParticipantID, "url", redactURL(feed.URL))
			return fetchResult{Body: cachedBody, FromCache: true}, nil
		}
		return fetchResult{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fetchResult{}, readErr
		}

		newMeta := cacheMeta{
			URL:          feed.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			UpdatedAt:    time.Now().UTC(),
		}
		if err := saveCache(cachePath, newMeta, body); err != nil {
			appLog.Error("feed cache save failed", err, "participant", feed.ParticipantID)
		}

		appLog.Info("feed fetch success", "participant", feed.ParticipantID,
			"url", redactURL(feed.URL), "from_cache", false)
		return fetchResult{Body: body}, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return fetchResult{}, errors.New("304 Not Modified but no cached body available")
		}
		appLog.Debug("feed not modified; using cache", "participant", feed.ParticipantID)
		return fetchResult{Body: cachedBody, FromCache: true}, nil

	default:
		if len(cachedBody) > 0 {
			appLog.Error("feed fetch non-OK, using cached body", errors.New(resp.Status),
				"participant", feed.ParticipantID, "status", resp.StatusCode)
			return fetchResult{Body: cachedBody, FromCache: true}, nil
		}
		return fetchResult{}, errors.New(resp.Status)
	}
}

func (f *fetcher) cachePathForURL(feedURL string) string {
	sum := sha256.Sum256([]byte(feedURL))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadCacheMeta(cachePath string) (cacheMeta, error) {
	var meta cacheMeta
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheMeta{}, err
	}
	return meta, nil
}

func saveCache(cachePath string, meta cacheMeta, body []byte) error {
	// Write body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body.ics"), body, 0o600); err != nil {
		return err
	}
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL hides path and query of a feed URL for logging; feed URLs
// commonly embed access tokens.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "ics://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
