package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/gocolly/colly/v2"
)

// Request phases, used as the metrics label.
const (
	phaseHomepage = "homepage"
	phaseListing  = "listing"
	phaseProduct  = "product"
	phaseImage    = "image"
)

// Keys stored on the per-request colly context.
const (
	ctxPhase    = "phase"
	ctxStart    = "start"
	ctxResponse = "response"
	ctxStatus   = "status"
)

// Page is a successfully fetched response.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
}

// Client issues blocking GET requests through a shared colly collector.
// It is safe for concurrent use.
type Client struct {
	collector *colly.Collector
	metrics   *Metrics

	requestCount int64
}

// NewClient builds a client configured from cfg.
func NewClient(cfg *config.Config, metrics *Metrics) (*Client, error) {
	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	// colly truncates bodies above 10 MiB without an error; images must be whole.
	collector.MaxBodySize = 0
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Parallelism,
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	c := &Client{
		collector: collector,
		metrics:   metrics,
	}
	c.configureHandlers()
	return c, nil
}

func (c *Client) configureHandlers() {
	c.collector.OnRequest(func(r *colly.Request) {
		r.Ctx.Put(ctxStart, time.Now())
		current := atomic.AddInt64(&c.requestCount, 1)
		c.metrics.IncRequest(r.Ctx.Get(ctxPhase))
		if current%50 == 0 {
			slog.Debug("scraper request progress",
				slog.Int64("requests", current),
				slog.String("url", r.URL.String()),
			)
		}
	})

	c.collector.OnResponse(func(r *colly.Response) {
		c.observe(r)
		r.Ctx.Put(ctxResponse, r)
	})

	c.collector.OnError(func(r *colly.Response, err error) {
		if r == nil {
			return
		}
		c.observe(r)
		if r.Ctx != nil {
			r.Ctx.Put(ctxStatus, r.StatusCode)
		}
	})
}

func (c *Client) observe(r *colly.Response) {
	if r.Ctx == nil {
		return
	}
	if start, ok := r.Ctx.GetAny(ctxStart).(time.Time); ok {
		c.metrics.ObserveDuration(time.Since(start))
	}
}

// Fetch performs a GET and returns the body of a successful response.
// Failures are classified into the typed errors of this package; StatusCode
// reports whether a response arrived.
func (c *Client) Fetch(ctx context.Context, phase, rawURL string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(rawURL) == "" {
		return nil, errors.New("fetch: empty url")
	}

	reqCtx := colly.NewContext()
	reqCtx.Put(ctxPhase, phase)

	if err := c.collector.Request(http.MethodGet, rawURL, nil, reqCtx, nil); err != nil {
		status, _ := reqCtx.GetAny(ctxStatus).(int)
		return nil, fmt.Errorf("fetch %s: %w", rawURL, classifyError(err, status))
	}

	resp, ok := reqCtx.GetAny(ctxResponse).(*colly.Response)
	if !ok {
		return nil, fmt.Errorf("fetch %s: no response received", rawURL)
	}
	return &Page{
		URL:        rawURL,
		StatusCode: resp.StatusCode,
		Body:       resp.Body,
	}, nil
}

// Requests returns the number of requests issued so far.
func (c *Client) Requests() int {
	return int(atomic.LoadInt64(&c.requestCount))
}
