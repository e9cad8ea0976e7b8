// cmd/simulate is a small load generator exercising the HTTP surface the
// way a real client would: open a handful of accounts, then fire
// concurrent transfers between them, the same shape as dev/simulator's
// original deposit/withdraw generator adapted to the double-entry
// transfer API (SPEC_FULL §4.4) and reporting basic latency/outcome
// counts instead of writing to the old prometheus-text metrics package.
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
)

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var baseURL = getenv("BASE_URL", "http://localhost:8080")

type accountResponse struct {
	ID string `json:"id"`
}

func openAccount(owner, currency string) (string, error) {
	body, _ := json.Marshal(map[string]string{"ownerName": owner, "currency": currency})
	resp, err := http.Post(baseURL+"/accounts", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("open account: unexpected status %d", resp.StatusCode)
	}
	var out accountResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func transfer(source, dest string, amountMinorUnits int64, currency string) (int, time.Duration, error) {
	body, _ := json.Marshal(map[string]interface{}{
		"reference":            uuid.NewString(),
		"sourceAccountId":      source,
		"destinationAccountId": dest,
		"amountMinorUnits":     amountMinorUnits,
		"currency":             currency,
	})
	req, err := http.NewRequest(http.MethodPost, baseURL+"/transfers", bytes.NewReader(body))
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", uuid.NewString())

	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		return 0, duration, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, duration, nil
}

func main() {
	accounts := flag.Int("accounts", 10, "number of accounts to open")
	workers := flag.Int("workers", 20, "number of concurrent transfer workers")
	transfersPer := flag.Int("transfers-per-worker", 50, "transfers issued per worker")
	currency := flag.String("currency", "USD", "currency for opened accounts")
	flag.Parse()

	ownerNames := make([]string, *accounts)
	ids := make([]string, *accounts)
	for i := range ownerNames {
		ownerNames[i] = fmt.Sprintf("sim-owner-%d", i)
	}

	for i, owner := range ownerNames {
		id, err := openAccount(owner, *currency)
		if err != nil {
			log.Fatalf("failed to open account %s: %v", owner, err)
		}
		ids[i] = id
	}
	log.Printf("opened %d accounts against %s", len(ids), baseURL)

	var succeeded, failed int64
	var totalLatency int64
	var wg sync.WaitGroup
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for w := 0; w < *workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < *transfersPer; i++ {
				src := ids[rng.Intn(len(ids))]
				dst := ids[rng.Intn(len(ids))]
				if src == dst {
					continue
				}
				status, duration, err := transfer(src, dst, 100, *currency)
				atomic.AddInt64(&totalLatency, duration.Microseconds())
				if err != nil || (status != http.StatusOK && status != http.StatusCreated) {
					atomic.AddInt64(&failed, 1)
					continue
				}
				atomic.AddInt64(&succeeded, 1)
			}
		}()
	}
	wg.Wait()

	total := succeeded + failed
	var avgMicros int64
	if total > 0 {
		avgMicros = totalLatency / total
	}
	log.Printf("done: %d succeeded, %d failed, avg latency %dus", succeeded, failed, avgMicros)
}
