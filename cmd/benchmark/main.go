// Benchmark tool for load-testing a running Milepost server.
//
// Usage:
//   go run cmd/benchmark/main.go -url http://localhost:8080 -loads 5000
//
// This tool:
//   1. Generates a synthetic fleet of loads and ingests them
//   2. Drives concurrent /evaluate requests across the baseline metrics
//   3. Reports throughput and latency percentiles
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// loadRequest mirrors the /loads ingest payload.
type loadRequest struct {
	LoadID       string     `json:"load_id"`
	LoadType     string     `json:"load_type"`
	LoadStatus   string     `json:"load_status"`
	Mode         string     `json:"mode"`
	Carrier      carrier    `json:"carrier"`
	ContractType string     `json:"contract_type"`
	LengthOfHaul haul       `json:"length_of_haul"`
	Charges      *charges   `json:"charges,omitempty"`
	Tender       tender     `json:"tender"`
	Stops        []stop     `json:"stops"`
	Metadata     metadata   `json:"metadata"`
}

type carrier struct {
	CarrierID string `json:"carrier_id"`
	SCAC      string `json:"scac"`
	Name      string `json:"name"`
}

type haul struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

type charges struct {
	LineItems []chargeItem `json:"line_items"`
}

type chargeItem struct {
	ChargeType string `json:"charge_type"`
	Amount     money  `json:"amount"`
}

type money struct {
	Currency string  `json:"currency"`
	Value    float64 `json:"value"`
}

type tender struct {
	TenderedAt time.Time  `json:"tendered_at"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	Status     string     `json:"status"`
}

type stop struct {
	StopID      string      `json:"stop_id"`
	Sequence    int         `json:"sequence"`
	StopType    string      `json:"stop_type"`
	LoadingType string      `json:"loading_type"`
	Location    location    `json:"location"`
	Appointment appointment `json:"appointment"`
	Actual      *actual     `json:"actual,omitempty"`
}

type location struct {
	LocationID   string `json:"location_id"`
	LocationCode string `json:"location_code"`
	City         string `json:"city"`
	State        string `json:"state"`
}

type appointment struct {
	Type              string    `json:"type"`
	ScheduledEarliest time.Time `json:"scheduled_earliest"`
	ScheduledLatest   time.Time `json:"scheduled_latest"`
}

type actual struct {
	Arrival   time.Time `json:"arrival"`
	Departure time.Time `json:"departure"`
}

type metadata struct {
	CreatedAt time.Time `json:"created_at"`
	IsTest    bool      `json:"is_test"`
}

// evaluateRequest mirrors the /evaluate payload.
type evaluateRequest struct {
	MetricCode  string `json:"metric_code"`
	BypassCache bool   `json:"bypass_cache,omitempty"`
}

var metricCodes = []string{
	"OTP_EXACT", "OTP_15MIN", "OTP_60MIN",
	"OTD_EXACT", "OTD_15MIN",
	"CPM_ALL_IN", "CPM_LINEHAUL",
	"TENDER_ACCEPTANCE_RATE", "TENDER_RESPONSE_TIME",
	"FTAR", "AVG_DWELL_TIME", "COST_INDEX",
}

var carriers = []carrier{
	{CarrierID: "bench_swift", SCAC: "SWFT", Name: "Swift Logistics"},
	{CarrierID: "bench_knight", SCAC: "KNXT", Name: "Knight Express"},
	{CarrierID: "bench_hunt", SCAC: "JBHT", Name: "Hunt Transport"},
	{CarrierID: "bench_werner", SCAC: "WERN", Name: "Werner Freight"},
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Milepost base URL")
	loadCount := flag.Int("loads", 5000, "Synthetic loads to ingest")
	requests := flag.Int("requests", 10000, "Evaluate requests to send")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	bypassCache := flag.Bool("bypass-cache", false, "Force recomputation on every request")
	seed := flag.Int64("seed", 42, "Random seed for the synthetic fleet")
	flag.Parse()

	fmt.Println("MILEPOST BENCHMARK")
	fmt.Printf("\nMilepost URL: %s\n", *baseURL)
	fmt.Printf("Loads:        %d\n", *loadCount)
	fmt.Printf("Requests:     %d\n", *requests)
	fmt.Printf("Workers:      %d\n", *workers)
	fmt.Printf("Bypass cache: %v\n", *bypassCache)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Milepost not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Milepost is running:")
		fmt.Println("  go run cmd/milepost/main.go")
		os.Exit(1)
	}
	fmt.Println("Milepost is healthy")

	rng := rand.New(rand.NewSource(*seed))

	fmt.Printf("\nIngesting %d synthetic loads...\n", *loadCount)
	start := time.Now()
	ingested, errs := ingestLoads(*baseURL, *loadCount, *workers, rng)
	fmt.Printf("Ingested %d loads in %v (%d errors)\n", ingested, time.Since(start).Round(time.Millisecond), errs)

	fmt.Printf("\nRunning %d evaluate requests with %d workers...\n", *requests, *workers)
	start = time.Now()
	latencies, evalErrs := runEvaluations(*baseURL, *requests, *workers, *bypassCache)
	duration := time.Since(start)

	printResults(latencies, evalErrs, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// syntheticLoad builds one delivered load with plausible timing noise.
func syntheticLoad(i int, rng *rand.Rand) loadRequest {
	car := carriers[rng.Intn(len(carriers))]
	created := time.Now().UTC().Add(-time.Duration(rng.Intn(90*24)) * time.Hour)

	tendered := created.Add(-2 * time.Hour)
	accepted := tendered.Add(time.Duration(5+rng.Intn(600)) * time.Minute)

	makeStop := func(id string, seq int, stopType string, loc location, at time.Time) stop {
		// Up to four hours late, skewed toward on time
		lateness := time.Duration(rng.ExpFloat64()*float64(30*time.Minute)) % (4 * time.Hour)
		arrival := at.Add(lateness)
		departure := arrival.Add(time.Duration(30+rng.Intn(180)) * time.Minute)
		return stop{
			StopID:      id,
			Sequence:    seq,
			StopType:    stopType,
			LoadingType: "LIVE",
			Location:    loc,
			Appointment: appointment{
				Type:              "APPOINTMENT",
				ScheduledEarliest: at,
				ScheduledLatest:   at.Add(2 * time.Hour),
			},
			Actual: &actual{Arrival: arrival, Departure: departure},
		}
	}

	origin := benchLocations[rng.Intn(len(benchLocations))]
	dest := benchLocations[rng.Intn(len(benchLocations))]
	for dest.LocationCode == origin.LocationCode {
		dest = benchLocations[rng.Intn(len(benchLocations))]
	}

	pickupAt := created.Add(4 * time.Hour)
	deliveryAt := pickupAt.Add(time.Duration(8+rng.Intn(48)) * time.Hour)

	miles := 100 + rng.Float64()*2400
	lineHaul := miles * (1.8 + rng.Float64())
	fuel := miles * 0.45

	return loadRequest{
		LoadID:       fmt.Sprintf("bench-%06d", i),
		LoadType:     "SHIPMENT",
		LoadStatus:   "DELIVERED",
		Mode:         "TRUCKLOAD",
		Carrier:      car,
		ContractType: "CONTRACT_PRIMARY",
		LengthOfHaul: haul{Value: miles, Unit: "MILES"},
		Charges: &charges{
			LineItems: []chargeItem{
				{ChargeType: "LINE_HAUL", Amount: money{Currency: "USD", Value: lineHaul}},
				{ChargeType: "FUEL_SURCHARGE", Amount: money{Currency: "USD", Value: fuel}},
			},
		},
		Tender: tender{
			TenderedAt: tendered,
			AcceptedAt: &accepted,
			Status:     "ACCEPTED",
		},
		Stops: []stop{
			makeStop(fmt.Sprintf("bench-%06d-p", i), 1, "PICKUP", origin, pickupAt),
			makeStop(fmt.Sprintf("bench-%06d-d", i), 2, "DELIVERY", dest, deliveryAt),
		},
		Metadata: metadata{CreatedAt: created, IsTest: false},
	}
}

var benchLocations = []location{
	{LocationID: "loc_chi", LocationCode: "CHI", City: "Chicago", State: "IL"},
	{LocationID: "loc_dal", LocationCode: "DAL", City: "Dallas", State: "TX"},
	{LocationID: "loc_atl", LocationCode: "ATL", City: "Atlanta", State: "GA"},
	{LocationID: "loc_lax", LocationCode: "LAX", City: "Los Angeles", State: "CA"},
	{LocationID: "loc_nwk", LocationCode: "NWK", City: "Newark", State: "NJ"},
}

func ingestLoads(baseURL string, count, workers int, rng *rand.Rand) (int64, int64) {
	// Pre-generate so the RNG stays deterministic across worker counts
	loads := make([]loadRequest, count)
	for i := range loads {
		loads[i] = syntheticLoad(i, rng)
	}

	var ingested, errs int64
	jobs := make(chan loadRequest, workers)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for load := range jobs {
				body, _ := json.Marshal(load)
				resp, err := http.Post(baseURL+"/loads", "application/json", bytes.NewReader(body))
				if err != nil {
					atomic.AddInt64(&errs, 1)
					continue
				}
				resp.Body.Close()
				if resp.StatusCode != http.StatusCreated {
					atomic.AddInt64(&errs, 1)
					continue
				}
				atomic.AddInt64(&ingested, 1)
			}
		}()
	}

	for _, load := range loads {
		jobs <- load
	}
	close(jobs)
	wg.Wait()

	return ingested, errs
}

func runEvaluations(baseURL string, requests, workers int, bypassCache bool) ([]time.Duration, int64) {
	var errs int64
	var mu sync.Mutex
	latencies := make([]time.Duration, 0, requests)

	jobs := make(chan string, workers)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for code := range jobs {
				body, _ := json.Marshal(evaluateRequest{MetricCode: code, BypassCache: bypassCache})
				start := time.Now()
				resp, err := http.Post(baseURL+"/evaluate", "application/json", bytes.NewReader(body))
				elapsed := time.Since(start)
				if err != nil {
					atomic.AddInt64(&errs, 1)
					continue
				}
				resp.Body.Close()
				if resp.StatusCode != http.StatusOK {
					atomic.AddInt64(&errs, 1)
					continue
				}
				mu.Lock()
				latencies = append(latencies, elapsed)
				mu.Unlock()
			}
		}()
	}

	for i := 0; i < requests; i++ {
		jobs <- metricCodes[i%len(metricCodes)]
	}
	close(jobs)
	wg.Wait()

	return latencies, errs
}

func printResults(latencies []time.Duration, errs int64, duration time.Duration) {
	fmt.Println("\nRESULTS")
	fmt.Printf("  Completed:  %d\n", len(latencies))
	fmt.Printf("  Errors:     %d\n", errs)
	fmt.Printf("  Duration:   %v\n", duration.Round(time.Millisecond))

	if len(latencies) == 0 {
		return
	}

	fmt.Printf("  Throughput: %.1f req/s\n", float64(len(latencies))/duration.Seconds())

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	pct := func(p float64) time.Duration {
		idx := int(p * float64(len(latencies)-1))
		return latencies[idx]
	}

	var total time.Duration
	for _, l := range latencies {
		total += l
	}

	fmt.Println("\nLATENCY")
	fmt.Printf("  mean: %v\n", (total / time.Duration(len(latencies))).Round(time.Microsecond))
	fmt.Printf("  p50:  %v\n", pct(0.50).Round(time.Microsecond))
	fmt.Printf("  p95:  %v\n", pct(0.95).Round(time.Microsecond))
	fmt.Printf("  p99:  %v\n", pct(0.99).Round(time.Microsecond))
	fmt.Printf("  max:  %v\n", latencies[len(latencies)-1].Round(time.Microsecond))
}
