// Command loadtest replays a query file against the classify service and
// reports throughput, latency percentiles and cache behaviour.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	K           int
	Queries     []QueryLine
}

// QueryLine is one "queryID term term ..." line of the query file.
type QueryLine struct {
	ID   string
	Text string
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the classify service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	k := flag.Int("k", 0, "neighbors per query (service default when 0)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <queries>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	queries, err := loadQueries(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading queries: %v\n", err)
		os.Exit(1)
	}
	if len(queries) == 0 {
		fmt.Fprintln(os.Stderr, "query file has no queries")
		os.Exit(1)
	}

	cfg := Config{
		BaseURL:     *baseURL,
		Concurrency: *concurrency,
		Duration:    *duration,
		K:           *k,
		Queries:     queries,
	}

	fmt.Println("=== Classify Service Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Queries:     %d\n", len(cfg.Queries))
	fmt.Println()

	stats := runLoadTest(cfg)
	if !printReport(os.Stdout, stats, cfg.Duration) {
		os.Exit(1)
	}
}

func loadQueries(path string) ([]QueryLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseQueries(bufio.NewScanner(f))
}

func parseQueries(scanner *bufio.Scanner) ([]QueryLine, error) {
	var queries []QueryLine
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		queries = append(queries, QueryLine{ID: fields[0], Text: strings.Join(fields[1:], " ")})
	}
	return queries, scanner.Err()
}

func classifyURL(base string, q QueryLine, k int) string {
	v := url.Values{}
	v.Set("id", q.ID)
	v.Set("q", q.Text)
	if k > 0 {
		v.Set("k", fmt.Sprint(k))
	}
	return strings.TrimSuffix(base, "/") + "/api/v1/classify?" + v.Encode()
}

func runLoadTest(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for i := workerID; ctx.Err() == nil; i++ {
				q := cfg.Queries[i%len(cfg.Queries)]
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, classifyURL(cfg.BaseURL, q, cfg.K), nil)
				if err != nil {
					stats.RecordRequest(0, 0, err, nil)
					continue
				}
				start := time.Now()
				resp, err := client.Do(req)
				elapsed := time.Since(start)
				if err != nil {
					if ctx.Err() == nil {
						stats.RecordRequest(elapsed, 0, err, nil)
					}
					continue
				}
				var body classifyBody
				if resp.StatusCode == http.StatusOK {
					if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
						resp.Body.Close()
						stats.RecordRequest(elapsed, resp.StatusCode, err, nil)
						continue
					}
				}
				resp.Body.Close()
				stats.RecordRequest(elapsed, resp.StatusCode, nil, &body)
			}
		}(w)
	}
	wg.Wait()
	return stats
}
