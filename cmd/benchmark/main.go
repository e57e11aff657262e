package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds the benchmark settings
var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
	owner       string
	accounts    int
	idPrefix    string
	replayRate  float64
)

// Metrics
var (
	totalRequests uint64
	success201    uint64
	fail409       uint64 // Conflicts (Aborts)
	fail422       uint64 // Insufficient balance or key mismatch
	failOther     uint64
	replays       uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot")
	flag.StringVar(&owner, "owner", "bench-user", "X-User-ID that owns the seeded accounts")
	flag.IntVar(&accounts, "accounts", 1000, "Number of seeded benchmark accounts")
	flag.StringVar(&idPrefix, "prefix", "bench-", "Seeded account id prefix")
	flag.Float64Var(&replayRate, "replay", 0.05, "Fraction of requests that resend the previous idempotency key")
}

func main() {
	flag.Parse()
	if accounts < 2 {
		log.Fatal("need at least two accounts")
	}
	log.Printf("Starting Benchmark: %s | Workers: %d | Duration: %s", workload, concurrency, duration)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(&wg, i, start)
	}

	wg.Wait()
	printResults(time.Since(start))
}

type transferPayload struct {
	FromAccountID string `json:"from_account_id"`
	ToAccountID   string `json:"to_account_id"`
	Amount        string `json:"amount"`
	Description   string `json:"description"`
	Date          string `json:"date"`
}

func worker(wg *sync.WaitGroup, id int, start time.Time) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	var lastKey string
	var lastBody []byte
	for n := 0; time.Since(start) < duration; n++ {
		key, body := lastKey, lastBody
		if key == "" || rand.Float64() >= replayRate {
			from, to := generateAccounts()
			key = fmt.Sprintf("bench-%d-%d-%d", id, n, time.Now().UnixNano())
			body, _ = json.Marshal(transferPayload{
				FromAccountID: from,
				ToAccountID:   to,
				Amount:        "1.00",
				Description:   "benchmark",
				Date:          time.Now().UTC().Format(time.RFC3339),
			})
		} else {
			atomic.AddUint64(&replays, 1)
		}
		lastKey, lastBody = key, body

		req, _ := http.NewRequest(http.MethodPost, targetURL+"/api/v1/transfers", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-User-ID", owner)
		req.Header.Set("Idempotency-Key", key)

		resp, err := client.Do(req)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch resp.StatusCode {
		case http.StatusCreated:
			atomic.AddUint64(&success201, 1)
		case http.StatusConflict:
			atomic.AddUint64(&fail409, 1)
		case http.StatusUnprocessableEntity:
			atomic.AddUint64(&fail422, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
}

func generateAccounts() (string, string) {
	if workload == "hotspot" {
		// Hotspot: 90% of traffic goes to the first two accounts
		if rand.Float32() < 0.90 {
			if rand.Float32() < 0.5 {
				return accountID(1), accountID(2)
			}
			return accountID(2), accountID(1)
		}
	}

	// Uniform Random
	a := rand.Intn(accounts) + 1
	b := rand.Intn(accounts) + 1
	for a == b {
		b = rand.Intn(accounts) + 1
	}
	return accountID(a), accountID(b)
}

func accountID(n int) string {
	return fmt.Sprintf("%s%d", idPrefix, n)
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	s201 := atomic.LoadUint64(&success201)
	f409 := atomic.LoadUint64(&fail409)
	f422 := atomic.LoadUint64(&fail422)
	fErr := atomic.LoadUint64(&failOther)

	tps := float64(total) / d.Seconds()
	abortRate := 0.0
	if total > 0 {
		abortRate = float64(f409) / float64(total) * 100
	}

	results := map[string]interface{}{
		"workload":        workload,
		"duration_sec":    d.Seconds(),
		"total_requests":  total,
		"throughput_tps":  tps,
		"success_created": s201,
		"replayed_keys":   atomic.LoadUint64(&replays),
		"aborts_conflict": f409,
		"abort_rate_pct":  abortRate,
		"rejected_422":    f422,
		"errors":          fErr,
	}

	// Print JSON for the python plotter to consume
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	filename := fmt.Sprintf("results_%s.json", workload)
	file, err := os.Create(filename)
	if err != nil {
		log.Printf("Unable to write %s: %v", filename, err)
		return
	}
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
