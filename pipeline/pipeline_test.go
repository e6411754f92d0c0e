package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

func productURL(i int) string {
	return "http://example.test/book/" + strconv.Itoa(i)
}

func echoRecord(_ context.Context, url string) (*models.ProductRecord, error) {
	return &models.ProductRecord{PageURL: url, Title: "Book"}, nil
}

func TestPipelineRunPreservesOrder(t *testing.T) {
	p := NewPipeline(8)
	defer p.Close()

	urls := make([]string, 100)
	for i := range urls {
		urls[i] = productURL(i)
	}

	// Later URLs finish first.
	slowFirst := func(ctx context.Context, url string) (*models.ProductRecord, error) {
		n, _ := strconv.Atoi(url[len("http://example.test/book/"):])
		time.Sleep(time.Duration(100-n) * 50 * time.Microsecond)
		return echoRecord(ctx, url)
	}

	results, err := p.Run(context.Background(), urls, slowFirst)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(results) != len(urls) {
		t.Fatalf("results = %d, want %d", len(results), len(urls))
	}
	for i, res := range results {
		if res.URL != urls[i] || res.Record == nil || res.Record.PageURL != urls[i] {
			t.Fatalf("result %d = %+v, want url %s", i, res, urls[i])
		}
	}
}

func TestPipelineIsolatesFailures(t *testing.T) {
	p := NewPipeline(3)
	defer p.Close()

	urls := []string{productURL(1), productURL(2), productURL(3), productURL(4)}
	boom := errors.New("boom")
	fn := func(ctx context.Context, url string) (*models.ProductRecord, error) {
		switch url {
		case productURL(2):
			return nil, boom
		case productURL(3):
			panic("unexpected markup")
		}
		return echoRecord(ctx, url)
	}

	results, err := p.Run(context.Background(), urls, fn)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if results[0].Err != nil || results[3].Err != nil {
		t.Fatalf("healthy urls failed: %v / %v", results[0].Err, results[3].Err)
	}
	if !errors.Is(results[1].Err, boom) {
		t.Fatalf("result 1 err = %v, want boom", results[1].Err)
	}
	if results[2].Err == nil || results[2].Record != nil {
		t.Fatalf("panic should become an error, got %+v", results[2])
	}

	metrics := p.GetMetrics()
	if metrics["processed_products"].(int64) != 2 || metrics["failed_products"].(int64) != 2 {
		t.Fatalf("metrics = %v", metrics)
	}
}

func TestPipelineNilRecordIsFailure(t *testing.T) {
	p := NewPipeline(1)
	defer p.Close()

	results, err := p.Run(context.Background(), []string{productURL(1)}, func(context.Context, string) (*models.ProductRecord, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if results[0].Err == nil {
		t.Fatalf("expected error for nil record")
	}
}

func TestPipelineSequentialWithOneWorker(t *testing.T) {
	p := NewPipeline(1)
	defer p.Close()

	var inFlight, maxInFlight int32
	fn := func(ctx context.Context, url string) (*models.ProductRecord, error) {
		n := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)
		for {
			seen := atomic.LoadInt32(&maxInFlight)
			if n <= seen || atomic.CompareAndSwapInt32(&maxInFlight, seen, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		return echoRecord(ctx, url)
	}

	urls := []string{productURL(1), productURL(2), productURL(3), productURL(4)}
	if _, err := p.Run(context.Background(), urls, fn); err != nil {
		t.Fatalf("run: %v", err)
	}
	if maxInFlight != 1 {
		t.Fatalf("max in flight = %d, want 1", maxInFlight)
	}
}

func TestPipelineCancelledContext(t *testing.T) {
	p := NewPipeline(2)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	urls := make([]string, 10)
	for i := range urls {
		urls[i] = productURL(i)
	}
	var calls int32
	fn := func(ctx context.Context, url string) (*models.ProductRecord, error) {
		atomic.AddInt32(&calls, 1)
		return echoRecord(ctx, url)
	}

	results, err := p.Run(ctx, urls, fn)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for i, res := range results {
		if !errors.Is(res.Err, context.Canceled) {
			t.Fatalf("result %d err = %v, want context.Canceled", i, res.Err)
		}
	}
	if calls != 0 {
		t.Fatalf("process func called %d times after cancel", calls)
	}
}

func TestPipelineClosed(t *testing.T) {
	p := NewPipeline(1)
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := p.Run(context.Background(), []string{productURL(1)}, echoRecord); !errors.Is(err, ErrPipelineClosed) {
		t.Fatalf("expected ErrPipelineClosed, got %v", err)
	}
}

func BenchmarkPipeline_Throughput(b *testing.B) {
	for _, workers := range []int{1, 4, 16} {
		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			p := NewPipeline(workers)
			defer p.Close()

			urls := make([]string, 256)
			for i := range urls {
				urls[i] = productURL(i)
			}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := p.Run(context.Background(), urls, echoRecord); err != nil {
					b.Fatalf("run: %v", err)
				}
			}
		})
	}
}
