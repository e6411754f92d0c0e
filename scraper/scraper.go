package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/parser"
	"github.com/aluiziolira/go-scrape-catalog/pipeline"
)

// Scraper crawls the catalog category by category.
type Scraper struct {
	cfg     *config.Config
	client  *Client
	images  *ImageStore
	Metrics *Metrics

	pageCount  int64
	errorCount int64

	mu           sync.Mutex
	failedURLs   []string
	errorsByType map[string]int
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	metrics := NewMetrics()
	client, err := NewClient(cfg, metrics)
	if err != nil {
		return nil, err
	}
	images, err := NewImageStore(client, cfg.ImagesDir, cfg.DirCacheSize, metrics)
	if err != nil {
		return nil, err
	}

	return &Scraper{
		cfg:          cfg,
		client:       client,
		images:       images,
		Metrics:      metrics,
		errorsByType: make(map[string]int),
	}, nil
}

// Run discovers categories and scrapes each one in order, handing every
// non-empty category to w. Per-product and per-category failures are logged
// and counted; they never abort the run.
func (s *Scraper) Run(ctx context.Context, p *pipeline.Pipeline, w pipeline.OutputWriter) (*models.RunResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	result := &models.RunResult{StartTime: start}

	categories, err := s.DiscoverCategories(ctx)
	if err != nil {
		s.reportFailure(s.cfg.BaseURL, err)
		slog.Error("category discovery failed",
			slog.String("url", s.cfg.BaseURL),
			slog.Any("error", err),
		)
	}
	result.CategoryCount = len(categories)
	if len(categories) == 0 {
		slog.Info("no categories found", slog.String("url", s.cfg.BaseURL))
	}

	for _, category := range categories {
		if ctx.Err() != nil {
			slog.Info("run cancelled, skipping remaining categories")
			break
		}
		s.scrapeCategory(ctx, p, w, category, result)
	}

	result.EndTime = time.Now()
	result.ImageCount = s.images.Saved()
	result.ErrorCount = int(atomic.LoadInt64(&s.errorCount))
	result.FailedURLs = s.snapshotFailedURLs()
	result.ErrorsByType = s.snapshotErrors()
	result.RequestCount = s.client.Requests()
	result.PageCount = int(atomic.LoadInt64(&s.pageCount))
	result.OutputFiles = w.Files()
	return result, nil
}

func (s *Scraper) scrapeCategory(ctx context.Context, p *pipeline.Pipeline, w pipeline.OutputWriter, category models.CategoryRef, result *models.RunResult) {
	slog.Info("processing category", slog.String("category", category.Name))

	productURLs, err := s.ProductURLs(ctx, category.ListingURL)
	if err != nil {
		s.reportFailure(category.ListingURL, err)
		slog.Error("category pagination failed",
			slog.String("category", category.Name),
			slog.String("url", category.ListingURL),
			slog.Any("error", err),
		)
		return
	}

	results, err := p.Run(ctx, productURLs, s.processProduct)
	if err != nil {
		slog.Error("pipeline run failed", slog.String("category", category.Name), slog.Any("error", err))
		return
	}
	if ctx.Err() != nil {
		slog.Info("run cancelled, category not written", slog.String("category", category.Name))
		return
	}

	records := make([]*models.ProductRecord, 0, len(results))
	for _, res := range results {
		if res.Err != nil {
			s.reportFailure(res.URL, res.Err)
			s.Metrics.IncProductFailed()
			continue
		}
		records = append(records, res.Record)
		s.Metrics.IncItems()
	}
	result.TotalCount += len(records)

	if len(records) == 0 {
		slog.Info("no data to write for category", slog.String("category", category.Name))
		return
	}
	if err := w.Write(category.Name, records); err != nil {
		s.countError("write")
		slog.Error("writing category failed",
			slog.String("category", category.Name),
			slog.Any("error", err),
		)
		return
	}
	result.CategoriesWritten++
	s.Metrics.IncCategoriesWritten()
	slog.Info("category written",
		slog.String("category", category.Name),
		slog.Int("records", len(records)),
	)
}

// DiscoverCategories fetches the homepage and lists its sidebar categories.
func (s *Scraper) DiscoverCategories(ctx context.Context) ([]models.CategoryRef, error) {
	page, err := s.client.Fetch(ctx, phaseHomepage, s.cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	doc, err := parser.Document(page.Body)
	if err != nil {
		return nil, err
	}
	return parser.DiscoverCategories(doc, s.cfg.BaseURL)
}

// ProductURLs follows the next-page links from listingURL and returns every
// product URL in page order. There is no page cap or cycle detection; a
// failing page fails the whole category.
func (s *Scraper) ProductURLs(ctx context.Context, listingURL string) ([]string, error) {
	var urls []string
	current := listingURL
	for current != "" {
		page, err := s.client.Fetch(ctx, phaseListing, current)
		if err != nil {
			return nil, err
		}
		atomic.AddInt64(&s.pageCount, 1)

		doc, err := parser.Document(page.Body)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", current, err)
		}
		listing, err := parser.ParseListingPage(doc, current)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", current, err)
		}
		urls = append(urls, listing.ProductURLs...)
		current = listing.NextURL
	}
	return urls, nil
}

// processProduct logs each product as soon as it finishes; the ordered join in
// scrapeCategory only does the accounting.
func (s *Scraper) processProduct(ctx context.Context, productURL string) (*models.ProductRecord, error) {
	record, err := s.ScrapeProduct(ctx, productURL)
	if err != nil {
		slog.Error("failed to scrape product",
			slog.String("url", productURL),
			slog.Any("error", err),
		)
		return nil, err
	}
	slog.Info("scraped product",
		slog.String("title", record.Title),
		slog.String("url", productURL),
	)
	return record, nil
}

// ScrapeProduct fetches and extracts one product page, then saves its image
// named after the title.
func (s *Scraper) ScrapeProduct(ctx context.Context, productURL string) (*models.ProductRecord, error) {
	page, err := s.client.Fetch(ctx, phaseProduct, productURL)
	if err != nil {
		return nil, err
	}
	slog.Debug("product page fetched",
		slog.String("url", page.URL),
		slog.Int("status", page.StatusCode),
	)
	doc, err := parser.Document(page.Body)
	if err != nil {
		return nil, fmt.Errorf("product %s: %w", productURL, err)
	}
	record, err := parser.ExtractProduct(doc, productURL)
	if err != nil {
		return nil, fmt.Errorf("product %s: %w", productURL, err)
	}

	filename := parser.ImageFilename(record.Title, s.cfg.ImageExtension)
	if _, err := s.images.Save(ctx, record.ImageURL, record.Category, filename); err != nil {
		return nil, fmt.Errorf("product %s: %w", productURL, err)
	}
	return record, nil
}

func (s *Scraper) reportFailure(url string, err error) {
	label := s.countError(errorTypeLabel(err))
	s.mu.Lock()
	s.failedURLs = append(s.failedURLs, url)
	s.mu.Unlock()
	slog.Debug("failure recorded", slog.String("url", url), slog.String("error_type", label))
}

func (s *Scraper) countError(label string) string {
	atomic.AddInt64(&s.errorCount, 1)
	s.mu.Lock()
	s.errorsByType[label]++
	s.mu.Unlock()
	s.Metrics.IncError(label)
	return label
}

func (s *Scraper) snapshotFailedURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.failedURLs))
	copy(out, s.failedURLs)
	return out
}

func (s *Scraper) snapshotErrors() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.errorsByType))
	for k, v := range s.errorsByType {
		out[k] = v
	}
	return out
}
