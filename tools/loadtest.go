package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/stat"
)

var (
	requestCount   int64
	successCount   int64
	failCount      int64
	tamperingCount int64
	latencies      []float64 // seconds
	latenciesLock  sync.Mutex
)

type prediction struct {
	Status     string  `json:"status"`
	IsAnomaly  bool    `json:"is_anomaly"`
	Confidence float64 `json:"confidence"`
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run tools/loadtest.go <url> [workers] [duration] [tamper_ratio]")
		fmt.Println("Example: go run tools/loadtest.go http://localhost:8000/predict 50 30s 0.05")
		os.Exit(1)
	}

	url := os.Args[1]
	workers := 50
	duration := 30 * time.Second
	tamperRatio := 0.05

	if len(os.Args) > 2 {
		fmt.Sscanf(os.Args[2], "%d", &workers)
	}
	if len(os.Args) > 3 {
		if d, err := time.ParseDuration(os.Args[3]); err == nil {
			duration = d
		}
	}
	if len(os.Args) > 4 {
		fmt.Sscanf(os.Args[4], "%g", &tamperRatio)
	}

	fmt.Printf("Load Test Configuration:\n")
	fmt.Printf("  URL:          %s\n", url)
	fmt.Printf("  Workers:      %d\n", workers)
	fmt.Printf("  Duration:     %v\n", duration)
	fmt.Printf("  Tamper ratio: %.2f\n\n", tamperRatio)

	latencies = make([]float64, 0, 10000)
	startTime := time.Now()
	endTime := startTime.Add(duration)

	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        workers,
			MaxIdleConnsPerHost: workers,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for time.Now().Before(endTime) {
				sendRequest(client, url, vibration(rng, tamperRatio))
			}
		}(int64(i))
	}

	wg.Wait()
	printResults(time.Since(startTime))
}

// vibration returns a normal reading in [0, 2) or, with probability
// tamperRatio, a spike well above the baseline.
func vibration(rng *rand.Rand, tamperRatio float64) float64 {
	if rng.Float64() < tamperRatio {
		return 10 + rng.Float64()*90
	}
	return rng.Float64() * 2
}

func sendRequest(client *http.Client, url string, value float64) {
	body, _ := json.Marshal(map[string]float64{"vibration_val": value})
	req, _ := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := client.Do(req)
	latency := time.Since(start)

	atomic.AddInt64(&requestCount, 1)

	if err != nil {
		atomic.AddInt64(&failCount, 1)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		atomic.AddInt64(&failCount, 1)
		return
	}

	var p prediction
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		atomic.AddInt64(&failCount, 1)
		return
	}
	atomic.AddInt64(&successCount, 1)
	if p.IsAnomaly {
		atomic.AddInt64(&tamperingCount, 1)
	}

	latenciesLock.Lock()
	latencies = append(latencies, latency.Seconds())
	latenciesLock.Unlock()
}

func printResults(duration time.Duration) {
	total := atomic.LoadInt64(&requestCount)
	success := atomic.LoadInt64(&successCount)
	failed := atomic.LoadInt64(&failCount)
	tampering := atomic.LoadInt64(&tamperingCount)

	latenciesLock.Lock()
	sorted := make([]float64, len(latencies))
	copy(sorted, latencies)
	latenciesLock.Unlock()
	sort.Float64s(sorted)

	fmt.Println("\n==========================================")
	fmt.Println("Load Test Results")
	fmt.Println("==========================================")
	fmt.Printf("Duration:       %v\n", duration)
	fmt.Printf("Total Requests: %d\n", total)
	fmt.Printf("Successful:     %d\n", success)
	fmt.Printf("Failed:         %d\n", failed)
	fmt.Printf("Tampering:      %d\n", tampering)
	if total > 0 {
		fmt.Printf("Success Rate:   %.2f%%\n", float64(success)/float64(total)*100)
	}
	fmt.Printf("Requests/sec:   %.2f\n", float64(total)/duration.Seconds())

	if len(sorted) == 0 {
		fmt.Println("==========================================")
		return
	}

	seconds := func(s float64) time.Duration { return time.Duration(s * float64(time.Second)) }
	fmt.Println("\nLatency Statistics:")
	fmt.Printf("  Min:          %v\n", seconds(sorted[0]))
	fmt.Printf("  Max:          %v\n", seconds(sorted[len(sorted)-1]))
	fmt.Printf("  Average:      %v\n", seconds(stat.Mean(sorted, nil)))
	fmt.Printf("  p50:          %v\n", seconds(stat.Quantile(0.50, stat.Empirical, sorted, nil)))
	fmt.Printf("  p95:          %v\n", seconds(stat.Quantile(0.95, stat.Empirical, sorted, nil)))
	fmt.Printf("  p99:          %v\n", seconds(stat.Quantile(0.99, stat.Empirical, sorted, nil)))
	fmt.Println("==========================================")
}
