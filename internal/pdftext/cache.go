package pdftext

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// DefaultTTL is how long a downloaded PDF is served without revalidation.
	DefaultTTL         = 24 * time.Hour
	partialSuffix      = ".part"
	metaSuffix         = ".meta"
	defaultHTTPTimeout = 90 * time.Second
)

var arxivIDPattern = regexp.MustCompile(`(?i)arxiv\.org/(?:abs|pdf)/([0-9a-z.\-/]+?)(?:\.pdf)?$`)

// CacheConfig configures a Cache.
type CacheConfig struct {
	Dir        string
	HTTPClient *http.Client
	// TTL defaults to DefaultTTL.
	TTL    time.Duration
	Logger *log.Logger
}

// Cache keeps downloaded PDFs on disk. Stale files are revalidated with
// If-None-Match/If-Modified-Since and interrupted downloads resume with Range.
type Cache struct {
	dir    string
	client *http.Client
	ttl    time.Duration
	logger *log.Logger
}

type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag"`
	LastModified string    `json:"lastModified"`
	CachedAt     time.Time `json:"cachedAt"`
	Size         int64     `json:"size"`
}

type entry struct {
	pdf  string
	meta string
	part string
}

// NewCache creates the cache directory.
func NewCache(cfg CacheConfig) (*Cache, error) {
	if cfg.Dir == "" {
		return nil, errors.New("pdftext: cache dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create pdf cache: %w", err)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Cache{dir: cfg.Dir, client: client, ttl: ttl, logger: logger}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Fetch returns the local path of the PDF at pdfURL, downloading it when the
// cached copy is missing or stale. A stale copy is returned if revalidation fails.
func (c *Cache) Fetch(ctx context.Context, pdfURL string) (string, error) {
	e := c.entryFor(pdfURL)

	info, statErr := os.Stat(e.pdf)
	if statErr == nil && info.Size() > 0 && time.Since(info.ModTime()) < c.ttl {
		return e.pdf, nil
	}
	if statErr != nil {
		info = nil
	}

	meta, _ := readMeta(e.meta)
	path, err := c.download(ctx, pdfURL, e, meta, info)
	if err == nil {
		return path, nil
	}
	if info != nil && info.Size() > 0 {
		c.logger.Warn("pdf revalidation failed, serving stale copy", "url", pdfURL, "err", err)
		return e.pdf, nil
	}
	return "", err
}

func (c *Cache) download(ctx context.Context, pdfURL string, e entry, meta cacheMeta, current os.FileInfo) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pdfURL, nil)
	if err != nil {
		return "", fmt.Errorf("build pdf request: %w", err)
	}
	haveCopy := current != nil && current.Size() > 0
	if haveCopy {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	var resumeFrom int64
	if info, err := os.Stat(e.part); err == nil && info.Size() > 0 {
		resumeFrom = info.Size()
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", resumeFrom))
		switch {
		case meta.ETag != "":
			req.Header.Set("If-Range", meta.ETag)
		case meta.LastModified != "":
			req.Header.Set("If-Range", meta.LastModified)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download pdf: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		if haveCopy {
			meta.CachedAt = time.Now().UTC()
			now := time.Now()
			_ = os.Chtimes(e.pdf, now, now)
			if err := writeMeta(e.meta, meta); err != nil {
				return "", err
			}
			c.logger.Debug("pdf not modified", "url", pdfURL)
			return e.pdf, nil
		}
		return c.download(ctx, pdfURL, e, cacheMeta{}, nil)
	case http.StatusOK:
		return c.store(resp, e, false)
	case http.StatusPartialContent:
		return c.store(resp, e, resumeFrom > 0)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("pdf download failed: %s (%s)", resp.Status, strings.TrimSpace(string(body)))
	}
}

func (c *Cache) store(resp *http.Response, e entry, appendPartial bool) (string, error) {
	flags := os.O_CREATE | os.O_WRONLY
	if appendPartial {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(e.part, flags, 0o644)
	if err != nil {
		return "", fmt.Errorf("open partial pdf: %w", err)
	}
	written, err := io.Copy(file, resp.Body)
	if err != nil {
		file.Close()
		return "", fmt.Errorf("write partial pdf: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(e.part, e.pdf); err != nil {
		return "", fmt.Errorf("finalize pdf: %w", err)
	}

	meta := cacheMeta{
		URL:          resp.Request.URL.String(),
		ETag:         resp.Header.Get("Etag"),
		LastModified: resp.Header.Get("Last-Modified"),
		CachedAt:     time.Now().UTC(),
	}
	if info, err := os.Stat(e.pdf); err == nil {
		meta.Size = info.Size()
	}
	if err := writeMeta(e.meta, meta); err != nil {
		return "", err
	}
	c.logger.Debug("pdf cached", "url", meta.URL, "bytes", written, "resumed", appendPartial)
	return e.pdf, nil
}

func (c *Cache) entryFor(pdfURL string) entry {
	key := cacheKey(pdfURL)
	return entry{
		pdf:  filepath.Join(c.dir, key+".pdf"),
		meta: filepath.Join(c.dir, key+metaSuffix),
		part: filepath.Join(c.dir, key+partialSuffix),
	}
}

// cacheKey names files after the arXiv id when the URL has one.
func cacheKey(pdfURL string) string {
	if m := arxivIDPattern.FindStringSubmatch(strings.TrimSpace(pdfURL)); len(m) > 1 {
		return strings.NewReplacer("/", "-", ":", "-", "..", "-").Replace(m[1])
	}
	sum := sha1.Sum([]byte(pdfURL))
	return hex.EncodeToString(sum[:])
}

func readMeta(path string) (cacheMeta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cacheMeta{}, err
	}
	var meta cacheMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheMeta{}, err
	}
	return meta, nil
}

func writeMeta(path string, meta cacheMeta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write pdf meta: %w", err)
	}
	return nil
}
