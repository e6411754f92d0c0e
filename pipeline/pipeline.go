package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

var (
	// ErrPipelineClosed is returned when Run is called after shutdown.
	ErrPipelineClosed = errors.New("pipeline: closed")
)

// ProcessFunc turns one product URL into a record.
type ProcessFunc func(ctx context.Context, url string) (*models.ProductRecord, error)

// Result is the outcome for one product URL. Exactly one of Record and Err is set.
type Result struct {
	URL    string
	Record *models.ProductRecord
	Err    error
}

// Pipeline runs a batch of product URLs on a bounded set of workers and
// joins the results back into input order.
type Pipeline struct {
	workers int

	metrics metrics

	mu     sync.Mutex // guards closed
	closed bool

	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// NewPipeline builds a pipeline with the given worker count.
func NewPipeline(workers int) *Pipeline {
	if workers <= 0 {
		workers = 1
	}
	return &Pipeline{
		workers:  workers,
		shutdown: make(chan struct{}),
	}
}

// Run processes urls and returns one Result per URL, in the same order.
// A failure or panic in fn only affects its own Result. URLs not yet started
// when ctx is cancelled get ctx.Err() as their error.
func (p *Pipeline) Run(ctx context.Context, urls []string, fn ProcessFunc) ([]Result, error) {
	if p.isClosed() {
		return nil, ErrPipelineClosed
	}
	results := make([]Result, len(urls))
	if len(urls) == 0 {
		return results, nil
	}

	workers := p.workers
	if workers > len(urls) {
		workers = len(urls)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = p.process(ctx, urls[idx], fn)
			}
		}()
	}

	dispatched := 0
feed:
	for dispatched < len(urls) {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- dispatched:
			dispatched++
		}
	}
	close(jobs)
	wg.Wait()

	for i := dispatched; i < len(urls); i++ {
		results[i] = Result{URL: urls[i], Err: ctx.Err()}
	}
	return results, nil
}

// Close prevents further runs and stops metrics reporting.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.shutdownOnce.Do(func() {
		close(p.shutdown)
	})
	return nil
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

// StartMetricsReporting emits periodic progress logs.
func (p *Pipeline) StartMetricsReporting(interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				metrics := p.GetMetrics()
				slog.Info("pipeline progress",
					slog.Int64("processed", metrics["processed_products"].(int64)),
					slog.Int64("failed", metrics["failed_products"].(int64)),
				)
			case <-p.shutdown:
				return
			}
		}
	}()
}

func (p *Pipeline) process(ctx context.Context, url string, fn ProcessFunc) (res Result) {
	res.URL = url
	defer func() {
		if r := recover(); r != nil {
			res.Record = nil
			res.Err = fmt.Errorf("panic processing %s: %v", url, r)
		}
		if res.Err != nil {
			p.metrics.incrementFailed()
			return
		}
		p.metrics.incrementProcessed()
	}()

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	record, err := fn(ctx, url)
	if err == nil && record == nil {
		err = fmt.Errorf("no record produced for %s", url)
	}
	if err != nil {
		res.Err = err
		return res
	}
	res.Record = record
	return res
}

func (p *Pipeline) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type metrics struct {
	mu        sync.Mutex
	processed int64
	failed    int64
}

func (m *metrics) incrementProcessed() {
	m.mu.Lock()
	m.processed++
	m.mu.Unlock()
}

func (m *metrics) incrementFailed() {
	m.mu.Lock()
	m.failed++
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	return map[string]interface{}{
		"processed_products": m.processed,
		"failed_products":    m.failed,
	}
}
