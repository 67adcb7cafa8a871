package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// maxLatencyMicros bounds the latency histograms at one minute
const maxLatencyMicros = 60_000_000

type loadConfig struct {
	BaseURL   string
	Desk      string
	Size      int
	Workers   int
	Requests  int
	RateLimit float64
	Cleanup   bool
}

// loadResult holds the merged latencies of every request
type loadResult struct {
	Latency  *hdrhistogram.Histogram
	Requests int
	Errors   []error
	Duration time.Duration
	PerRoute map[string]int
}

type request struct {
	name string
	path string
	body any
}

func main() {
	addr := flag.String("addr", "http://localhost:8080", "Server base URL")
	desk := flag.String("desk", "load-test", "Desk created for the run")
	size := flag.Int("size", 500, "Orders generated before the run")
	workers := flag.Int("workers", 50, "Concurrent workers")
	requests := flag.Int("requests", 100, "Requests per worker")
	limit := flag.Float64("rate", 200, "Requests per second across all workers")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := runLoad(ctx, http.DefaultClient, loadConfig{
		BaseURL:   *addr,
		Desk:      *desk,
		Size:      *size,
		Workers:   *workers,
		Requests:  *requests,
		RateLimit: *limit,
		Cleanup:   true,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Load test failed")
	}

	printSummary(os.Stdout, result)
	if len(result.Errors) > 0 {
		logger.Error().Err(result.Errors[0]).Int("errors", len(result.Errors)).Msg("First error")
		os.Exit(1)
	}
}

func runLoad(ctx context.Context, client *http.Client, cfg loadConfig) (*loadResult, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	deskBase := base + "/desks/" + cfg.Desk

	if err := post(ctx, client, base+"/desks", map[string]any{"name": cfg.Desk}); err != nil {
		return nil, fmt.Errorf("create desk: %w", err)
	}
	if cfg.Cleanup {
		defer func() {
			req, err := http.NewRequestWithContext(context.Background(), http.MethodDelete, deskBase, nil)
			if err == nil {
				if resp, err := client.Do(req); err == nil {
					resp.Body.Close()
				}
			}
		}()
	}

	if err := post(ctx, client, deskBase+"/orders/generate", map[string]int{"count": cfg.Size}); err != nil {
		return nil, fmt.Errorf("generate orders: %w", err)
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), max(1, int(cfg.RateLimit)))

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		result = &loadResult{
			Latency:  hdrhistogram.New(1, maxLatencyMicros, 3),
			PerRoute: make(map[string]int),
		}
	)

	start := time.Now()
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			rnd := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))
			latency := hdrhistogram.New(1, maxLatencyMicros, 3)
			routes := make(map[string]int)
			var errs []error

			for i := 0; i < cfg.Requests; i++ {
				if err := limiter.Wait(ctx); err != nil {
					errs = append(errs, fmt.Errorf("rate limiter: %w", err))
					break
				}

				req := nextRequest(rnd, cfg.Size)
				began := time.Now()
				err := post(ctx, client, deskBase+req.path, req.body)
				_ = latency.RecordValue(max(1, time.Since(began).Microseconds()))
				routes[req.name]++
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", req.name, err))
				}
			}

			mu.Lock()
			defer mu.Unlock()
			result.Latency.Merge(latency)
			for name, n := range routes {
				result.PerRoute[name] += n
				result.Requests += n
			}
			result.Errors = append(result.Errors, errs...)
		}(w)
	}

	wg.Wait()
	result.Duration = time.Since(start)
	return result, nil
}

// nextRequest picks a search or sort. Searches are four times as frequent
// as sorts.
func nextRequest(rnd *rand.Rand, size int) request {
	switch n := rnd.Intn(10); {
	case n < 4:
		return request{name: "search-linear", path: "/search/linear", body: map[string]int{"courier_id": 100 + rnd.Intn(900)}}
	case n < 8:
		return request{name: "search-binary", path: "/search/binary", body: map[string]int{"order_id": 1 + rnd.Intn(max(size, 1))}}
	case n < 9:
		return request{name: "sort-bubble", path: "/sort/bubble"}
	default:
		return request{name: "sort-insertion", path: "/sort/insertion"}
	}
}

func post(ctx context.Context, client *http.Client, url string, body any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return errors.New(resp.Status)
	}
	return nil
}

func printSummary(w io.Writer, r *loadResult) {
	fmt.Fprintf(w, "Load test completed in %v\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Requests: %d, errors: %d\n", r.Requests, len(r.Errors))
	if r.Duration > 0 {
		fmt.Fprintf(w, "Throughput: %.1f req/s\n", float64(r.Requests)/r.Duration.Seconds())
	}
	for _, name := range []string{"search-linear", "search-binary", "sort-bubble", "sort-insertion"} {
		fmt.Fprintf(w, "  %-15s %d\n", name, r.PerRoute[name])
	}
	fmt.Fprintf(w, "Latency µs: p50=%d p90=%d p99=%d max=%d mean=%.1f\n",
		r.Latency.ValueAtQuantile(50),
		r.Latency.ValueAtQuantile(90),
		r.Latency.ValueAtQuantile(99),
		r.Latency.Max(),
		r.Latency.Mean(),
	)
}
