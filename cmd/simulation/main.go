package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bidmaster/auction-api/internal/types"
)

const (
	minBidsPerBidder = 5
	maxBidsPerBidder = 25
	serverAddress    = "http://localhost:8080"
)

// Seeded bidder credentials; the admin account drives lifecycle calls.
var bidders = []struct {
	UserID string
	Secret string
}{
	{"U002", "user123"},
	{"U003", "user123"},
	{"U004", "user123"},
}

var adminCredentials = struct {
	UserID string
	Secret string
}{"U001", "password"}

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

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
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
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// bidderClient handles HTTP communication with the auction API for one bidder
type bidderClient struct {
	baseURL   string
	userID    string
	authToken string
	client    *http.Client

	mu    sync.Mutex
	stats map[string]*routeStats
}

// newBidderClient authenticates one bidder and prepares performance tracking
func newBidderClient(userID, secret string) (*bidderClient, error) {
	bc := &bidderClient{
		baseURL: serverAddress,
		userID:  userID,
		client:  &http.Client{Timeout: 10 * time.Second},
		stats: map[string]*routeStats{
			"auth":  {name: "Authentication"},
			"items": {name: "List Items"},
			"bid":   {name: "Place Bid"},
			"me":    {name: "Fresh User"},
		},
	}

	token, err := bc.authenticate(userID, secret)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate %s: %w", userID, err)
	}
	bc.authToken = token
	return bc, nil
}

func (bc *bidderClient) track(route string, start time.Time, failed bool) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	rs := bc.stats[route]
	rs.addDuration(time.Since(start))
	if failed {
		rs.failures++
	}
}

// authenticate performs credential login and returns a JWT token
func (bc *bidderClient) authenticate(userID, secret string) (string, error) {
	start := time.Now()
	failed := false
	defer func() { bc.track("auth", start, failed) }()

	body, err := json.Marshal(map[string]string{
		"user_id": userID,
		"secret":  secret,
	})
	if err != nil {
		failed = true
		return "", err
	}

	resp, err := bc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/login", bc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		failed = true
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		failed = true
		return "", fmt.Errorf("login failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			Token string `json:"jwt_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		failed = true
		return "", err
	}
	return result.Data.Token, nil
}

// listItems retrieves all auction items
func (bc *bidderClient) listItems() ([]types.BiddingItem, error) {
	start := time.Now()
	failed := false
	defer func() { bc.track("items", start, failed) }()

	req, err := http.NewRequest("GET", fmt.Sprintf("%s/api/v1/items", bc.baseURL), nil)
	if err != nil {
		failed = true
		return nil, err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", bc.authToken))

	resp, err := bc.client.Do(req)
	if err != nil {
		failed = true
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		failed = true
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		failed = true
		return nil, fmt.Errorf("list items failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Data []types.BiddingItem `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		failed = true
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return result.Data, nil
}

// bidOutcome classifies what the API said about one bid attempt
type bidOutcome string

const (
	outcomeAccepted     bidOutcome = "ACCEPTED"
	outcomeTie          bidOutcome = "TIE"
	outcomeTooLow       bidOutcome = "TOO_LOW"
	outcomeCooldown     bidOutcome = "COOLDOWN"
	outcomeClosed       bidOutcome = "CLOSED"
	outcomeInsufficient bidOutcome = "INSUFFICIENT"
	outcomeError        bidOutcome = "ERROR"
)

// placeBid submits one bid and classifies the outcome from the response
func (bc *bidderClient) placeBid(itemID string, amount int64) (bidOutcome, error) {
	start := time.Now()
	failed := false
	defer func() { bc.track("bid", start, failed) }()

	body, err := json.Marshal(map[string]int64{"amount": amount})
	if err != nil {
		failed = true
		return outcomeError, err
	}

	req, err := http.NewRequest(
		"POST",
		fmt.Sprintf("%s/api/v1/items/%s/bids", bc.baseURL, itemID),
		bytes.NewBuffer(body),
	)
	if err != nil {
		failed = true
		return outcomeError, err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", bc.authToken))
	req.Header.Set("Content-Type", "application/json")

	resp, err := bc.client.Do(req)
	if err != nil {
		failed = true
		return outcomeError, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		failed = true
		return outcomeError, fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("response", string(respBody)).Msg("Place bid response")

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			IsTie bool `json:"is_tie"`
		} `json:"data"`
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		failed = true
		return outcomeError, fmt.Errorf("failed to decode response: %w", err)
	}

	if result.Success {
		if result.Data.IsTie {
			return outcomeTie, nil
		}
		return outcomeAccepted, nil
	}

	switch {
	case result.Error.Code == "COOLDOWN_ACTIVE":
		return outcomeCooldown, nil
	case strings.Contains(result.Error.Message, "below current highest"):
		return outcomeTooLow, nil
	case strings.Contains(result.Error.Message, "market window closed"):
		return outcomeClosed, nil
	case strings.Contains(result.Error.Message, "insufficient wallet"):
		return outcomeInsufficient, nil
	}
	failed = true
	return outcomeError, fmt.Errorf("bid rejected: %s", result.Error.Message)
}

// walletBalance fetches the bidder's fresh wallet balance
func (bc *bidderClient) walletBalance() (int64, error) {
	start := time.Now()
	failed := false
	defer func() { bc.track("me", start, failed) }()

	req, err := http.NewRequest("GET", fmt.Sprintf("%s/api/v1/me", bc.baseURL), nil)
	if err != nil {
		failed = true
		return 0, err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", bc.authToken))

	resp, err := bc.client.Do(req)
	if err != nil {
		failed = true
		return 0, err
	}
	defer resp.Body.Close()

	var result struct {
		Data types.User `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		failed = true
		return 0, err
	}
	return result.Data.WalletBalance, nil
}

// printPerformanceStats renders the per-route latency table
func (bc *bidderClient) printPerformanceStats() {
	fmt.Printf("\nRoute performance for %s\n", bc.userID)
	fmt.Println(strings.Repeat("-", 72))
	for _, rs := range bc.stats {
		if rs.totalCalls == 0 {
			continue
		}
		min, max, mean, median, p95, p99 := rs.calculate()
		fmt.Printf("%-16s calls=%-4d failures=%-3d min=%v max=%v mean=%v median=%v p95=%v p99=%v\n",
			rs.name, rs.totalCalls, rs.failures,
			min.Round(time.Microsecond), max.Round(time.Microsecond),
			mean.Round(time.Microsecond), median.Round(time.Microsecond),
			p95.Round(time.Microsecond), p99.Round(time.Microsecond))
	}
}

// simulationStats aggregates bid outcomes across all bidders
type simulationStats struct {
	mu        sync.Mutex
	StartTime time.Time
	TotalBids int
	Outcomes  map[bidOutcome]int
}

func (s *simulationStats) record(outcome bidOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TotalBids++
	s.Outcomes[outcome]++
}

// runBidder drives one bidder: list items, pick one, bid around the current
// highest so the run exercises accepts, ties, rejections and cooldowns.
func runBidder(bc *bidderClient, numBids int, stats *simulationStats, wg *sync.WaitGroup) {
	defer wg.Done()

	for i := 0; i < numBids; i++ {
		items, err := bc.listItems()
		if err != nil || len(items) == 0 {
			log.Error().Err(err).Str("user_id", bc.userID).Msg("Failed to list items")
			stats.record(outcomeError)
			continue
		}

		item := items[rand.Intn(len(items))]

		// Bias amounts around the current highest: some ties, some raises,
		// some deliberately too low.
		var amount int64
		switch rand.Intn(5) {
		case 0:
			amount = item.HighestBidAmount // exact match: tie path
		case 1:
			amount = item.HighestBidAmount - int64(rand.Intn(50)+1) // rejected
		default:
			amount = item.HighestBidAmount + int64(rand.Intn(200)+1)
		}

		outcome, err := bc.placeBid(item.ItemID, amount)
		if err != nil {
			log.Error().Err(err).Str("user_id", bc.userID).Str("item_id", item.ItemID).Msg("Bid attempt errored")
		}
		stats.record(outcome)

		log.Info().
			Str("user_id", bc.userID).
			Str("item_id", item.ItemID).
			Int64("amount", amount).
			Str("outcome", string(outcome)).
			Msg("Bid attempt")

		// Random sleep between bids; occasionally shorter than the cooldown
		// window on purpose.
		time.Sleep(time.Duration(rand.Intn(2000)) * time.Millisecond)
	}

	if balance, err := bc.walletBalance(); err == nil {
		log.Info().Str("user_id", bc.userID).Int64("wallet_balance", balance).Msg("Final wallet balance")
	}
}

func main() {
	stats := &simulationStats{
		StartTime: time.Now(),
		Outcomes:  make(map[bidOutcome]int),
	}

	// Admin session proves the lifecycle surface is reachable before bidding
	admin, err := newBidderClient(adminCredentials.UserID, adminCredentials.Secret)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to authenticate admin")
	}
	if items, err := admin.listItems(); err != nil {
		log.Fatal().Err(err).Msg("Failed to list items")
	} else {
		log.Info().Int("items", len(items)).Msg("Auction catalogue loaded")
	}

	clients := make([]*bidderClient, 0, len(bidders))
	for _, b := range bidders {
		bc, err := newBidderClient(b.UserID, b.Secret)
		if err != nil {
			log.Fatal().Err(err).Str("user_id", b.UserID).Msg("Failed to authenticate bidder")
		}
		clients = append(clients, bc)
	}

	var wg sync.WaitGroup
	for _, bc := range clients {
		numBids := rand.Intn(maxBidsPerBidder-minBidsPerBidder) + minBidsPerBidder
		wg.Add(1)
		go runBidder(bc, numBids, stats, &wg)
	}
	wg.Wait()

	// Print summary
	duration := time.Since(stats.StartTime)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("AUCTION SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Total bid attempts: %d over %v\n\n", stats.TotalBids, duration.Round(time.Millisecond))

	for outcome, count := range stats.Outcomes {
		barLength := 0
		if stats.TotalBids > 0 {
			barLength = int(float64(count) / float64(stats.TotalBids) * 20)
		}
		fmt.Printf("%-14s: %s (%d)\n", outcome, strings.Repeat("#", barLength), count)
	}

	for _, bc := range clients {
		bc.printPerformanceStats()
	}

	log.Info().
		Int("total_bids", stats.TotalBids).
		Dur("duration", duration).
		Msg("Simulation completed")
}
