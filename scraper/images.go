package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/go-scrape-catalog/parser"
)

// ImageStore saves product images under <root>/<category>/.
type ImageStore struct {
	client  *Client
	root    string
	dirs    *lru.Cache[string, struct{}]
	metrics *Metrics

	saved int64
}

// NewImageStore remembers up to cacheSize created directories so repeated
// saves into the same category skip MkdirAll.
func NewImageStore(client *Client, root string, cacheSize int, metrics *Metrics) (*ImageStore, error) {
	dirs, err := lru.New[string, struct{}](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create dir cache: %w", err)
	}
	return &ImageStore{
		client:  client,
		root:    root,
		dirs:    dirs,
		metrics: metrics,
	}, nil
}

// Save downloads imageURL into the category directory, overwriting any
// existing file. When filename is empty the last URL path segment is used.
//
// A non-success HTTP status is not an error: nothing is written and the
// returned path is empty. Transport and filesystem failures are returned.
func (s *ImageStore) Save(ctx context.Context, imageURL, category, filename string) (string, error) {
	if strings.TrimSpace(imageURL) == "" {
		return "", errors.New("image: empty url")
	}

	dir := filepath.Join(s.root, parser.SanitizeFilename(category))
	if err := s.ensureDir(dir); err != nil {
		return "", err
	}

	if filename == "" {
		filename = parser.FilenameFromURL(imageURL)
	}
	filename = parser.SanitizeFilename(filename)
	if filename == "" {
		return "", fmt.Errorf("image %s: cannot derive filename", imageURL)
	}

	page, err := s.client.Fetch(ctx, phaseImage, imageURL)
	if err != nil {
		if code := StatusCode(err); code != 0 {
			slog.Debug("image not saved",
				slog.String("url", imageURL),
				slog.Int("status", code),
			)
			return "", nil
		}
		return "", err
	}

	target := filepath.Join(dir, filename)
	if err := os.WriteFile(target, page.Body, 0o644); err != nil {
		return "", fmt.Errorf("write image %q: %w", target, err)
	}

	atomic.AddInt64(&s.saved, 1)
	s.metrics.IncImages()
	slog.Debug("image saved",
		slog.String("url", page.URL),
		slog.Int("status", page.StatusCode),
		slog.Int("bytes", len(page.Body)),
		slog.String("path", target),
	)
	return target, nil
}

// Saved returns the number of images written.
func (s *ImageStore) Saved() int {
	return int(atomic.LoadInt64(&s.saved))
}

func (s *ImageStore) ensureDir(dir string) error {
	if s.dirs.Contains(dir) {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	s.dirs.Add(dir, struct{}{})
	return nil
}
