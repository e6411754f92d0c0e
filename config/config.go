package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds scraper configuration.
type Config struct {
	BaseURL          string
	Parallelism      int
	Delay            time.Duration
	RandomDelay      time.Duration
	Timeout          time.Duration
	OutputDir        string
	OutputFormat     string // csv, json, dual, sqlite, or all
	SQLiteDSN        string
	ImagesDir        string
	ImageExtension   string
	DirCacheSize     int
	UserAgent        string
	Verbose          bool
	RespectRobotsTxt bool
	MetricsAddr      string
}

// DefaultConfig returns conservative defaults for the demo target.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:          "https://books.toscrape.com/index.html",
		Parallelism:      1,
		Delay:            0,
		RandomDelay:      0,
		Timeout:          10 * time.Second,
		OutputDir:        "csv_data",
		OutputFormat:     "csv",
		SQLiteDSN:        "csv_data/products.db",
		ImagesDir:        "images",
		ImageExtension:   ".jpg",
		DirCacheSize:     128,
		UserAgent:        "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		Verbose:          false,
		RespectRobotsTxt: false,
		MetricsAddr:      "",
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output dir cannot be empty")
	}
	switch c.OutputFormat {
	case "csv", "json", "dual":
	case "sqlite", "all":
		if c.SQLiteDSN == "" {
			return fmt.Errorf("sqlite dsn cannot be empty for sqlite output")
		}
	default:
		return fmt.Errorf("output format must be csv, json, dual, sqlite, or all")
	}
	if c.ImagesDir == "" {
		return fmt.Errorf("images dir cannot be empty")
	}
	if c.ImageExtension != "" && !strings.HasPrefix(c.ImageExtension, ".") {
		return fmt.Errorf("image extension %q must start with a dot", c.ImageExtension)
	}
	if c.DirCacheSize <= 0 {
		return fmt.Errorf("dir cache size must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}
