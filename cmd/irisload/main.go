// Irisload is a concurrent load generator for iris-server. It cycles through
// a set of query strings, checks that every 200 response is a well-formed
// <irises> document and reports throughput, status codes and latency
// percentiles.
//
// Usage:
//
//	go run ./cmd/irisload --url http://localhost:3000 --concurrency 20 --requests 2000
//	go run ./cmd/irisload --url http://localhost:3000 --query "variety=true" --query "min_petal_length=4.5" --out summary.json
package main

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var defaultQueries = []string{
	"",
	"variety=true",
	"min_petal_length=4.5",
	"min_petal_length=4.5&variety=true",
	"min_petal_length=abc",
}

type options struct {
	url         string
	queries     []string
	concurrency int
	requests    int
	timeout     time.Duration
	out         string
}

type result struct {
	status   int
	flowers  int
	duration time.Duration
	err      error
}

type summary struct {
	Target        string         `json:"target"`
	Requests      int            `json:"requests"`
	Concurrency   int            `json:"concurrency"`
	Failures      int            `json:"failures"`
	DurationMS    int64          `json:"duration_ms"`
	ThroughputRPS float64        `json:"throughput_rps"`
	StatusCodes   map[int]int    `json:"status_codes"`
	Flowers       map[string]int `json:"flowers_per_query"`
	P50MS         float64        `json:"p50_ms"`
	P90MS         float64        `json:"p90_ms"`
	P99MS         float64        `json:"p99_ms"`
}

type irises struct {
	XMLName xml.Name   `xml:"irises"`
	Flowers []struct{} `xml:"flower"`
}

func main() {
	opts := options{}

	cmd := &cobra.Command{
		Use:   "irisload",
		Short: "Generate load against iris-server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			if len(opts.queries) == 0 {
				opts.queries = defaultQueries
			}
			if err := opts.validate(); err != nil {
				return err
			}

			s, err := runLoad(cmd.Context(), opts)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), s)

			if opts.out != "" {
				if err := writeSummary(opts.out, s); err != nil {
					return err
				}
			}
			if s.Failures > 0 {
				return fmt.Errorf("%d requests failed", s.Failures)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.url, "url", "http://localhost:3000", "server base URL")
	flags.StringArrayVar(&opts.queries, "query", nil, "query string to cycle through, repeatable")
	flags.IntVar(&opts.concurrency, "concurrency", 10, "number of concurrent workers")
	flags.IntVar(&opts.requests, "requests", 100, "total number of requests to send")
	flags.DurationVar(&opts.timeout, "timeout", 10*time.Second, "per-request timeout")
	flags.StringVar(&opts.out, "out", "", "write a JSON summary to this file")

	if err := cmd.Execute(); err != nil {
		os.Exit(2)
	}
}

func (o options) validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.url, validation.Required, is.URL),
		validation.Field(&o.queries, validation.Required),
		validation.Field(&o.concurrency, validation.Required, validation.Min(1)),
		validation.Field(&o.requests, validation.Required, validation.Min(1)),
		validation.Field(&o.timeout, validation.Required),
	)
}

func runLoad(ctx context.Context, opts options) (summary, error) {
	client := &http.Client{Timeout: opts.timeout}
	base := strings.TrimRight(opts.url, "?")

	results := make([]result, opts.requests)
	flowers := make(map[string]int)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.concurrency)

	start := time.Now()
	for i := 0; i < opts.requests; i++ {
		idx := i
		query := opts.queries[idx%len(opts.queries)]
		g.Go(func() error {
			res := fetch(gctx, client, base, query)
			results[idx] = res

			if res.err == nil && res.status == http.StatusOK {
				mu.Lock()
				flowers[query] = res.flowers
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary{}, err
	}
	elapsed := time.Since(start)

	s := summary{
		Target:        base,
		Requests:      opts.requests,
		Concurrency:   opts.concurrency,
		DurationMS:    elapsed.Milliseconds(),
		ThroughputRPS: float64(opts.requests) / elapsed.Seconds(),
		StatusCodes:   make(map[int]int),
		Flowers:       flowers,
	}

	latencies := make([]time.Duration, 0, len(results))
	for _, r := range results {
		latencies = append(latencies, r.duration)
		if r.err != nil {
			s.Failures++
			continue
		}
		s.StatusCodes[r.status]++
		if r.status != http.StatusOK {
			s.Failures++
		}
	}

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	s.P50MS = percentileMS(latencies, 0.50)
	s.P90MS = percentileMS(latencies, 0.90)
	s.P99MS = percentileMS(latencies, 0.99)

	return s, nil
}

func fetch(ctx context.Context, client *http.Client, base, query string) result {
	target := base
	if query != "" {
		target += "?" + query
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return result{err: err}
	}

	resp, err := client.Do(req)
	if err != nil {
		return result{err: err, duration: time.Since(start)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	res := result{status: resp.StatusCode, duration: time.Since(start), err: err}
	if err != nil || resp.StatusCode != http.StatusOK {
		return res
	}

	var doc irises
	if err := xml.Unmarshal(body, &doc); err != nil {
		res.err = fmt.Errorf("decode response: %w", err)
		return res
	}
	res.flowers = len(doc.Flowers)

	return res
}

func percentileMS(sorted []time.Duration, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p)
	return float64(sorted[idx].Microseconds()) / 1000.0
}

func printSummary(w io.Writer, s summary) {
	fmt.Fprintln(w, "--- Load Test Summary ---")
	fmt.Fprintf(w, "Target: %s\n", s.Target)
	fmt.Fprintf(w, "Requests: %d  Concurrency: %d  Failures: %d\n", s.Requests, s.Concurrency, s.Failures)
	fmt.Fprintf(w, "Duration: %dms  Throughput: %.2f req/s\n", s.DurationMS, s.ThroughputRPS)

	fmt.Fprintln(w, "\nStatus codes:")
	codes := make([]int, 0, len(s.StatusCodes))
	for code := range s.StatusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "  %d -> %d\n", code, s.StatusCodes[code])
	}

	fmt.Fprintln(w, "\nFlowers per query:")
	queries := make([]string, 0, len(s.Flowers))
	for q := range s.Flowers {
		queries = append(queries, q)
	}
	sort.Strings(queries)
	for _, q := range queries {
		fmt.Fprintf(w, "  %q -> %d\n", q, s.Flowers[q])
	}

	fmt.Fprintf(w, "\nLatency: p50=%.3fms p90=%.3fms p99=%.3fms\n", s.P50MS, s.P90MS, s.P99MS)
}

func writeSummary(path string, s summary) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create summary: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
