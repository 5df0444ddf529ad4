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

	"github.com/google/uuid"
	"github.com/punchamoorthee/transactflow/internal/auth"
)

var (
	targetURL      string
	concurrency    int
	duration       time.Duration
	workload       string
	totalAccounts  int
	identityFormat string
	amount         string
	jwtSecret      string
	replayPct      float64
)

// Metrics
var (
	totalRequests uint64
	success201    uint64 // Created
	success200    uint64 // Idempotent replays
	fail409       uint64 // Conflicts
	fail422       uint64 // Insufficient balance
	fail429       uint64 // Throttled
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot")
	flag.IntVar(&totalAccounts, "accounts", 1000, "Number of seeded accounts")
	flag.StringVar(&identityFormat, "format", "user%04d@example.com", "fmt pattern for account identities")
	flag.StringVar(&amount, "amount", "1.00", "Amount per transfer")
	flag.StringVar(&jwtSecret, "jwt-secret", os.Getenv("JWT_SECRET"), "Secret used to mint bearer tokens")
	flag.Float64Var(&replayPct, "replay", 0.05, "Fraction of requests that reuse the previous Idempotency-Key")
}

func main() {
	flag.Parse()
	if jwtSecret == "" {
		log.Fatal("jwt secret required: set JWT_SECRET or -jwt-secret")
	}
	log.Printf("Starting Benchmark: %s | Workers: %d | Duration: %s", workload, concurrency, duration)

	tokens := auth.NewTokenManager(jwtSecret, duration+time.Hour)
	cache := &tokenCache{tokens: tokens, issued: make(map[string]string)}

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(&wg, start, cache)
	}

	wg.Wait()
	printResults(time.Since(start))
}

type tokenCache struct {
	mu     sync.Mutex
	tokens *auth.TokenManager
	issued map[string]string
}

func (c *tokenCache) get(identity string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.issued[identity]; ok {
		return t, nil
	}
	t, _, err := c.tokens.Issue(identity)
	if err != nil {
		return "", err
	}
	c.issued[identity] = t
	return t, nil
}

func worker(wg *sync.WaitGroup, start time.Time, cache *tokenCache) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	var lastKey string
	var lastFrom int
	var lastBody []byte
	for time.Since(start) < duration {
		from, to := generateAccounts()
		key := uuid.New().String()
		body, _ := json.Marshal(map[string]string{
			"receiverIdentity": identity(to),
			"amount":           amount,
		})

		// Occasionally resend the previous request to exercise replay
		if lastKey != "" && rand.Float64() < replayPct {
			key, body, from = lastKey, lastBody, lastFrom
		}
		lastKey, lastBody, lastFrom = key, body, from

		token, err := cache.get(identity(from))
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		req, _ := http.NewRequest(http.MethodPost, targetURL+"/api/transactions/transfer", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
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
		case http.StatusOK:
			atomic.AddUint64(&success200, 1)
		case http.StatusConflict:
			atomic.AddUint64(&fail409, 1)
		case http.StatusUnprocessableEntity:
			atomic.AddUint64(&fail422, 1)
		case http.StatusTooManyRequests:
			atomic.AddUint64(&fail429, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
}

func identity(n int) string {
	return fmt.Sprintf(identityFormat, n)
}

func generateAccounts() (int, int) {
	if workload == "hotspot" {
		// Hotspot: 90% of traffic goes between the first two accounts
		if rand.Float32() < 0.90 {
			if rand.Float32() < 0.5 {
				return 1, 2
			}
			return 2, 1
		}
	}

	a := rand.Intn(totalAccounts) + 1
	b := rand.Intn(totalAccounts) + 1
	for a == b {
		b = rand.Intn(totalAccounts) + 1
	}
	return a, b
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	s201 := atomic.LoadUint64(&success201)
	s200 := atomic.LoadUint64(&success200)
	f409 := atomic.LoadUint64(&fail409)
	f422 := atomic.LoadUint64(&fail422)
	f429 := atomic.LoadUint64(&fail429)
	fErr := atomic.LoadUint64(&failOther)

	tps := float64(total) / d.Seconds()
	var abortRate float64
	if total > 0 {
		abortRate = float64(f409) / float64(total) * 100
	}

	results := map[string]interface{}{
		"workload":             workload,
		"duration_sec":         d.Seconds(),
		"total_requests":       total,
		"throughput_tps":       tps,
		"success_created":      s201,
		"success_replay":       s200,
		"aborts_conflict":      f409,
		"abort_rate_pct":       abortRate,
		"insufficient_balance": f422,
		"throttled":            f429,
		"errors":               fErr,
	}

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
