package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/quantfork/tradeflow/internal/auth"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	numOrders     = 50
	numTrades     = 120
	numSnapshots  = 30
	numWorkers    = 5
	serverAddress = "http://localhost:8080"
	strategyID    = "sim-strategy"
	portfolioID   = "sim-portfolio"
)

var (
	tokenAddresses = []string{
		"0x6b175474e89094c44da98b954eedeac495271d0f",
		"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
		"0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
		"0x514910771af9ca656af840dff83e8264ecf986ca",
	}
	orderTypes = []string{"MARKET", "LIMIT"}
)

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes min, max, mean, median and 95th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0
	}

	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))
	median = rs.durations[len(rs.durations)/2]

	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p95 = rs.durations[p95idx]

	return
}

// simulationClient handles HTTP communication with the API
type simulationClient struct {
	baseURL   string
	authToken string
	client    *http.Client

	statsMu sync.Mutex
	stats   map[string]*routeStats
}

// newSimulationClient creates a client and authenticates with the API
func newSimulationClient() (*simulationClient, error) {
	sc := &simulationClient{
		baseURL: serverAddress,
		client:  &http.Client{Timeout: 10 * time.Second},
		stats: map[string]*routeStats{
			"auth":     {name: "Authentication"},
			"create":   {name: "Create Order"},
			"cancel":   {name: "Cancel Order"},
			"status":   {name: "Update Status"},
			"active":   {name: "Active Orders"},
			"trade":    {name: "Record Trade"},
			"snapshot": {name: "Record Snapshot"},
			"report":   {name: "Performance Report"},
		},
	}

	token, err := sc.authenticate()
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	sc.authToken = token

	return sc, nil
}

func (sc *simulationClient) record(route string, start time.Time, err error) {
	sc.statsMu.Lock()
	defer sc.statsMu.Unlock()
	rs := sc.stats[route]
	rs.addDuration(time.Since(start))
	if err != nil {
		rs.failures++
	}
}

// authenticate performs API authentication and returns a JWT token
func (sc *simulationClient) authenticate() (string, error) {
	start := time.Now()

	credentials := map[string]string{
		"api_key":    auth.TestAPIKey,
		"api_secret": auth.TestAPISecret,
	}

	var result struct {
		Token string `json:"jwt_token"`
	}
	err := sc.post("/api/v1/auth/token", credentials, &result)
	sc.record("auth", start, err)
	if err != nil {
		return "", err
	}

	return result.Token, nil
}

// post sends a JSON POST request and decodes the data envelope into out
func (sc *simulationClient) post(path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, sc.baseURL+path, bytes.NewBuffer(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if sc.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+sc.authToken)
	}

	return sc.do(req, out)
}

func (sc *simulationClient) request(method, path string, body interface{}, out interface{}) error {
	var reader *bytes.Buffer = bytes.NewBuffer(nil)
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewBuffer(payload)
	}

	req, err := http.NewRequest(method, sc.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+sc.authToken)

	return sc.do(req, out)
}

func (sc *simulationClient) do(req *http.Request, out interface{}) error {
	resp, err := sc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s %s failed with status %d", req.Method, req.URL.Path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return err
	}
	if envelope.Data != nil {
		return json.Unmarshal(envelope.Data, out)
	}
	return nil
}

// createOrder submits a new order and returns its id
func (sc *simulationClient) createOrder() (string, error) {
	start := time.Now()

	body := map[string]interface{}{
		"token_address": tokenAddresses[rand.Intn(len(tokenAddresses))],
		"amount":        decimal.NewFromFloat(rand.Float64()*10 + 0.1).Round(6),
		"price":         decimal.NewFromFloat(rand.Float64()*2000 + 1).Round(6),
		"order_type":    orderTypes[rand.Intn(len(orderTypes))],
	}

	var order struct {
		OrderID string `json:"order_id"`
	}
	err := sc.request(http.MethodPost, "/api/v1/orders", body, &order)
	sc.record("create", start, err)
	if err != nil {
		return "", err
	}

	return order.OrderID, nil
}

// cancelOrder cancels an active order
func (sc *simulationClient) cancelOrder(orderID string) error {
	start := time.Now()
	err := sc.request(http.MethodDelete, "/api/v1/orders/"+orderID, nil, nil)
	sc.record("cancel", start, err)
	return err
}

// fillOrder marks an active order as filled
func (sc *simulationClient) fillOrder(orderID string) error {
	start := time.Now()
	err := sc.request(http.MethodPatch, "/api/v1/orders/"+orderID+"/status", map[string]string{"status": "FILLED"}, nil)
	sc.record("status", start, err)
	return err
}

// activeOrders fetches the current active-order snapshot
func (sc *simulationClient) activeOrders() (int, error) {
	start := time.Now()
	var orders []json.RawMessage
	err := sc.request(http.MethodGet, "/api/v1/orders", nil, &orders)
	sc.record("active", start, err)
	return len(orders), err
}

// recordTrade posts a synthetic executed trade
func (sc *simulationClient) recordTrade(executedAt time.Time) error {
	start := time.Now()

	initial := decimal.NewFromFloat(rand.Float64()*5000 + 100).Round(2)
	// Roughly 55% winners with pnl up to 5% of the basis either way
	pnlFraction := rand.Float64() * 0.05
	if rand.Float64() > 0.55 {
		pnlFraction = -pnlFraction
	}
	pnl := initial.Mul(decimal.NewFromFloat(pnlFraction)).Round(2)

	body := map[string]interface{}{
		"strategy_id":   strategyID,
		"portfolio_id":  portfolioID,
		"token_address": tokenAddresses[rand.Intn(len(tokenAddresses))],
		"pnl":           pnl,
		"initial_value": initial,
		"executed_at":   executedAt,
	}
	err := sc.request(http.MethodPost, "/api/v1/internal/trades", body, nil)
	sc.record("trade", start, err)
	return err
}

// recordSnapshot posts a portfolio valuation
func (sc *simulationClient) recordSnapshot(value decimal.Decimal, at time.Time) error {
	start := time.Now()
	body := map[string]interface{}{
		"portfolio_id": portfolioID,
		"total_value":  value,
		"timestamp":    at,
	}
	err := sc.request(http.MethodPost, "/api/v1/internal/snapshots", body, nil)
	sc.record("snapshot", start, err)
	return err
}

// fetchReport pulls the combined performance report
func (sc *simulationClient) fetchReport() (json.RawMessage, error) {
	start := time.Now()
	var report json.RawMessage
	path := fmt.Sprintf("/api/v1/analytics/report?strategy_id=%s&portfolio_id=%s", strategyID, portfolioID)
	err := sc.request(http.MethodGet, path, nil, &report)
	sc.record("report", start, err)
	return report, err
}

// runOrderLifecycle drives create/fill/cancel traffic through the API
func runOrderLifecycle(sc *simulationClient) {
	var wg sync.WaitGroup
	orderCh := make(chan string, numOrders)

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < numOrders/numWorkers; i++ {
				orderID, err := sc.createOrder()
				if err != nil {
					log.Error().Err(err).Msg("create order failed")
					continue
				}
				orderCh <- orderID
			}
		}()
	}
	wg.Wait()
	close(orderCh)

	var orderIDs []string
	for id := range orderCh {
		orderIDs = append(orderIDs, id)
	}

	// Fill roughly two thirds, cancel the rest
	for i, id := range orderIDs {
		var err error
		if i%3 == 0 {
			err = sc.cancelOrder(id)
		} else {
			err = sc.fillOrder(id)
		}
		if err != nil {
			log.Error().Err(err).Str("order_id", id).Msg("order transition failed")
		}
	}

	remaining, err := sc.activeOrders()
	if err != nil {
		log.Error().Err(err).Msg("fetching active orders failed")
		return
	}
	log.Info().
		Int("created", len(orderIDs)).
		Int("remaining_active", remaining).
		Msg("order lifecycle phase complete")
}

// runAnalyticsFeed posts synthetic trades and snapshots, then pulls a report
func runAnalyticsFeed(sc *simulationClient) {
	now := time.Now()

	for i := 0; i < numTrades; i++ {
		executedAt := now.Add(-time.Duration(numTrades-i) * time.Hour)
		if err := sc.recordTrade(executedAt); err != nil {
			log.Error().Err(err).Msg("record trade failed")
		}
	}

	value := decimal.NewFromInt(100000)
	for i := 0; i < numSnapshots; i++ {
		drift := decimal.NewFromFloat(1 + (rand.Float64()-0.45)*0.02)
		value = value.Mul(drift).Round(2)
		at := now.Add(-time.Duration(numSnapshots-i) * 24 * time.Hour)
		if err := sc.recordSnapshot(value, at); err != nil {
			log.Error().Err(err).Msg("record snapshot failed")
		}
	}

	report, err := sc.fetchReport()
	if err != nil {
		log.Error().Err(err).Msg("fetching report failed")
		return
	}
	log.Info().RawJSON("report", report).Msg("performance report")
}

// printStats logs per-route latency statistics
func (sc *simulationClient) printStats() {
	sc.statsMu.Lock()
	defer sc.statsMu.Unlock()

	for _, rs := range sc.stats {
		if rs.totalCalls == 0 {
			continue
		}
		min, max, mean, median, p95 := rs.calculate()
		log.Info().
			Str("route", rs.name).
			Int("calls", rs.totalCalls).
			Int("failures", rs.failures).
			Dur("min", min).
			Dur("max", max).
			Dur("mean", mean).
			Dur("median", median).
			Dur("p95", p95).
			Msg("route statistics")
	}
}

func main() {
	log.Info().Msg("starting simulation")

	sc, err := newSimulationClient()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize simulation client")
	}

	runOrderLifecycle(sc)
	runAnalyticsFeed(sc)
	sc.printStats()

	log.Info().Msg("simulation complete")
}
