// Command api_load polls a holdings endpoint from many workers and reports
// status codes and latency percentiles.
//
// Every /api/balances request fans out to the exchange, so keep -workers low
// against a real key to stay inside the request weight limits.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"
)

type stats struct {
	mu        sync.Mutex
	statuses  map[int]int
	errs      int
	latencies []time.Duration
}

func (s *stats) record(status int, took time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.errs++
		return
	}
	s.statuses[status]++
	s.latencies = append(s.latencies, took)
}

func (s *stats) percentile(p float64) time.Duration {
	if len(s.latencies) == 0 {
		return 0
	}
	idx := int(float64(len(s.latencies)-1) * p)
	return s.latencies[idx]
}

func main() {
	var (
		targetURL    string
		workers      int
		testDuration time.Duration
		interval     time.Duration
		timeout      time.Duration
	)

	flag.StringVar(&targetURL, "url", "http://localhost:8080/api/prices", "endpoint URL")
	flag.IntVar(&workers, "workers", 4, "number of concurrent pollers")
	flag.DurationVar(&testDuration, "dur", 30*time.Second, "test duration (0 for until interrupted)")
	flag.DurationVar(&interval, "interval", time.Second, "pause between requests of one worker")
	flag.DurationVar(&timeout, "timeout", 60*time.Second, "per-request timeout")
	flag.Parse()

	if workers <= 0 {
		log.Fatalf("invalid workers: %d", workers)
	}

	log.Printf("starting load: url=%s workers=%d duration=%s interval=%s", targetURL, workers, testDuration, interval)

	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: workers,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if testDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, testDuration)
		defer cancel()
	}

	st := &stats{statuses: make(map[int]int)}
	start := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				status, took, err := poll(ctx, client, targetURL)
				if ctx.Err() != nil {
					return
				}
				st.record(status, took, err)

				select {
				case <-ctx.Done():
					return
				case <-time.After(interval):
				}
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	st.mu.Lock()
	defer st.mu.Unlock()
	sort.Slice(st.latencies, func(i, j int) bool { return st.latencies[i] < st.latencies[j] })

	total := len(st.latencies)
	fmt.Printf("done: requests=%d errors=%d elapsed=%s req/s=%.2f\n",
		total, st.errs, elapsed.Truncate(time.Millisecond), float64(total)/elapsed.Seconds())
	for code, n := range st.statuses {
		fmt.Printf("  status %d: %d\n", code, n)
	}
	fmt.Printf("  p50=%s p90=%s p99=%s\n", st.percentile(0.5), st.percentile(0.9), st.percentile(0.99))
}

func poll(ctx context.Context, client *http.Client, url string) (int, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, 0, err
	}
	started := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return 0, 0, err
	}
	return resp.StatusCode, time.Since(started), nil
}
