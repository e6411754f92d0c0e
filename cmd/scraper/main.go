package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/pipeline"
	"github.com/aluiziolira/go-scrape-catalog/scraper"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	defaultCfg := config.DefaultConfig()
	parallelDefault := envIntOrExit("SCRAPER_PARALLEL", defaultCfg.Parallelism)
	outputDefault := envStringOr("SCRAPER_OUTPUT_DIR", defaultCfg.OutputDir)
	imagesDefault := envStringOr("SCRAPER_IMAGES_DIR", defaultCfg.ImagesDir)
	formatDefault := envStringOr("SCRAPER_FORMAT", defaultCfg.OutputFormat)
	dsnDefault := envStringOr("SCRAPER_SQLITE_DSN", defaultCfg.SQLiteDSN)
	baseDefault := envStringOr("SCRAPER_BASE_URL", defaultCfg.BaseURL)
	metricsDefault := envStringOr("SCRAPER_METRICS_ADDR", defaultCfg.MetricsAddr)
	verboseDefault := defaultCfg.Verbose
	if value, ok, err := config.EnvBool("SCRAPER_VERBOSE"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid SCRAPER_VERBOSE: %v\n", err)
		os.Exit(1)
	} else if ok {
		verboseDefault = value
	}

	parallelism := flag.Int("parallel", parallelDefault, "Number of products fetched concurrently (1 = sequential)")
	delayMs := flag.Int("delay", 0, "Delay between requests (milliseconds)")
	randomDelayMs := flag.Int("random-delay", 0, "Random jitter added to delay (milliseconds)")
	timeoutMs := flag.Int("timeout", int(defaultCfg.Timeout/time.Millisecond), "Per-request timeout (milliseconds)")
	respectRobots := flag.Bool("respect-robots", false, "Respect robots.txt directives")
	outputDir := flag.String("output", outputDefault, "Directory for per-category output files")
	imagesDir := flag.String("images", imagesDefault, "Directory for downloaded product images")
	outputFormat := flag.String("format", formatDefault, "Output format: csv, json, dual, sqlite, or all")
	sqliteDSN := flag.String("sqlite-dsn", dsnDefault, "SQLite database used by -format sqlite")
	verbose := flag.Bool("v", verboseDefault, "Enable verbose logging")
	baseURL := flag.String("base-url", baseDefault, "Catalog homepage to crawl")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := config.DefaultConfig()
	cfg.BaseURL = *baseURL
	cfg.Parallelism = *parallelism
	cfg.Delay = time.Duration(*delayMs) * time.Millisecond
	cfg.RandomDelay = time.Duration(*randomDelayMs) * time.Millisecond
	cfg.Timeout = time.Duration(*timeoutMs) * time.Millisecond
	cfg.RespectRobotsTxt = *respectRobots
	cfg.OutputDir = *outputDir
	cfg.ImagesDir = *imagesDir
	cfg.OutputFormat = strings.ToLower(*outputFormat)
	cfg.SQLiteDSN = *sqliteDSN
	cfg.Verbose = *verbose
	cfg.MetricsAddr = *metricsAddr
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("starting scrape",
		slog.String("base_url", cfg.BaseURL),
		slog.Int("workers", cfg.Parallelism),
		slog.String("format", cfg.OutputFormat),
	)

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, finishing in-flight products")
	}()

	writer, err := createWriter(ctx, cfg)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" && s.Metrics != nil {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	p := pipeline.NewPipeline(cfg.Parallelism)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	result, err := s.Run(ctx, p, writer)
	if err != nil {
		slog.Error("scraping failed", slog.Any("error", err))
		os.Exit(1)
	}

	if err := p.Close(); err != nil {
		slog.Error("pipeline shutdown failed", slog.Any("error", err))
		os.Exit(1)
	}

	if err := writer.Validate(); err != nil {
		slog.Error("output validation failed", slog.Any("error", err))
		os.Exit(1)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(result)
}

func envIntOrExit(key string, fallback int) int {
	value, ok, err := config.EnvInt(key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid %s: %v\n", key, err)
		os.Exit(1)
	}
	if !ok {
		return fallback
	}
	return value
}

func envStringOr(key, fallback string) string {
	if value, ok := config.EnvString(key); ok {
		return value
	}
	return fallback
}

func createWriter(ctx context.Context, cfg *config.Config) (pipeline.OutputWriter, error) {
	switch cfg.OutputFormat {
	case "json":
		return pipeline.NewJSONWriter(cfg.OutputDir)
	case "csv":
		return pipeline.NewCSVWriter(cfg.OutputDir)
	case "dual":
		jsonDir := filepath.Join(cfg.OutputDir, "jsonl")
		return pipeline.NewDualWriter(cfg.OutputDir, jsonDir)
	case "sqlite":
		return pipeline.NewSQLiteWriter(ctx, cfg.SQLiteDSN)
	case "all":
		csvWriter, err := pipeline.NewCSVWriter(cfg.OutputDir)
		if err != nil {
			return nil, err
		}
		jsonWriter, err := pipeline.NewJSONWriter(filepath.Join(cfg.OutputDir, "jsonl"))
		if err != nil {
			return nil, err
		}
		sqliteWriter, err := pipeline.NewSQLiteWriter(ctx, cfg.SQLiteDSN)
		if err != nil {
			return nil, err
		}
		return pipeline.NewMultiWriter([]string{"csv", "json", "sqlite"}, csvWriter, jsonWriter, sqliteWriter)
	default:
		return nil, fmt.Errorf("unsupported format: %s", cfg.OutputFormat)
	}
}

func printSummary(result *models.RunResult) {
	separator := "--------------------------------------------------"
	duration := result.EndTime.Sub(result.StartTime)
	itemsPerSec := 0.0
	if duration.Seconds() > 0 {
		itemsPerSec = float64(result.TotalCount) / duration.Seconds()
	}

	fmt.Println("\n" + separator)
	fmt.Println("Scrape complete")
	fmt.Printf("  Categories:    %d found, %d written\n", result.CategoryCount, result.CategoriesWritten)
	fmt.Printf("  Products:      %d\n", result.TotalCount)
	fmt.Printf("  Images:        %d\n", result.ImageCount)
	fmt.Printf("  Pages:         %d\n", result.PageCount)
	fmt.Printf("  Requests:      %d\n", result.RequestCount)
	fmt.Printf("  Errors:        %d\n", result.ErrorCount)
	fmt.Printf("  Failed URLs:   %d\n", len(result.FailedURLs))
	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", result.ErrorsByType)
	}
	fmt.Printf("  Duration:      %v\n", duration)
	fmt.Printf("  Items/sec:     %.2f\n", itemsPerSec)
	for _, file := range result.OutputFiles {
		fmt.Printf("  Output:        %s\n", file)
	}
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
