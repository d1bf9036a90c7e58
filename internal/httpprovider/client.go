// Package httpprovider implements the generic REST BlockchainProvider
// used for every chain without a dedicated node client: rate limiting,
// bounded retry with exponential backoff, and a three-state circuit
// breaker wrapped around a plain net/http client. Grounded on the
// upstream service's BlockchairProvider.
package httpprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rawblock/kyt-engine/internal/chainconfig"
	"github.com/rawblock/kyt-engine/internal/kyt"
	"github.com/rawblock/kyt-engine/internal/provider"
)

// breakerState is the circuit breaker's tagged variant, per spec.md §9
// ("Circuit-breaker state is a tagged variant ... rather than a string").
type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerOpen:
		return "OPEN"
	case breakerHalfOpen:
		return "HALF_OPEN"
	default:
		return "CLOSED"
	}
}

// circuitBreaker wraps provider calls with consecutive-failure tripping,
// grounded on the upstream CircuitBreaker class.
type circuitBreaker struct {
	mu               sync.Mutex
	failureThreshold int
	recoveryTimeout  time.Duration
	failures         int
	lastFailure      time.Time
	state            breakerState
}

func newCircuitBreaker(threshold int, recovery time.Duration) *circuitBreaker {
	return &circuitBreaker{failureThreshold: threshold, recoveryTimeout: recovery, state: breakerClosed}
}

// allow reports whether a call may proceed, transitioning OPEN -> HALF_OPEN
// once the recovery timeout has elapsed.
func (b *circuitBreaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case breakerOpen:
		if time.Since(b.lastFailure) >= b.recoveryTimeout {
			b.state = breakerHalfOpen
			return true
		}
		return false
	default:
		return true
	}
}

func (b *circuitBreaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.state = breakerClosed
}

func (b *circuitBreaker) onFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.lastFailure = time.Now()
	if b.failures >= b.failureThreshold {
		if b.state != breakerOpen {
			log.Printf("[Provider] circuit breaker OPEN after %d failures", b.failures)
		}
		b.state = breakerOpen
	}
}

func (b *circuitBreaker) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.String()
}

// Config tunes the rate limiter, retry budget, and breaker.
type Config struct {
	BaseURL           string
	APIKey            string
	RequestsPerSecond float64
	MaxRetries        int
	RetryDelay        time.Duration
	Timeout           time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaseURL:           "https://api.blockchair.com",
		RequestsPerSecond: 10.0,
		MaxRetries:        3,
		RetryDelay:        time.Second,
		Timeout:           30 * time.Second,
	}
}

// Client is the generic rate-limited, retrying, circuit-broken REST
// BlockchainProvider for every chain without a specialized node client.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *circuitBreaker

	rateMu       sync.Mutex
	minInterval  time.Duration
	lastRequest  time.Time

	requestCount int64
	countMu      sync.Mutex
}

var _ provider.BlockchainProvider = (*Client)(nil)

// New builds a Client. A zero Config.RequestsPerSecond etc. is replaced
// with DefaultConfig's values.
func New(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Client{
		cfg:         cfg,
		http:        &http.Client{Timeout: cfg.Timeout},
		breaker:     newCircuitBreaker(5, 60*time.Second),
		minInterval: time.Duration(float64(time.Second) / cfg.RequestsPerSecond),
	}
}

func (c *Client) Name() string { return "http" }

func (c *Client) SupportedChains() []string { return chainconfig.Default.Slugs() }

func (c *Client) SupportsChain(chain string) bool { return chainconfig.Default.Supports(chain) }

// pace enforces a single-flight-per-host minimum interval between
// requests, grounded on blockchair.py::_rate_limit.
func (c *Client) pace() {
	c.rateMu.Lock()
	defer c.rateMu.Unlock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < c.minInterval {
		time.Sleep(c.minInterval - elapsed)
	}
	c.lastRequest = time.Now()
}

// request performs one GET with retry/backoff and circuit-breaker
// bookkeeping, grounded on blockchair.py::_request.
func (c *Client) request(ctx context.Context, path string, params url.Values) (map[string]any, error) {
	if !c.breaker.allow() {
		return nil, kyt.NewError(kyt.KindProviderTerminal, "", "circuit breaker open", nil)
	}

	if c.cfg.APIKey != "" {
		if params == nil {
			params = url.Values{}
		}
		params.Set("key", c.cfg.APIKey)
	}

	fullURL := strings.TrimRight(c.cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	var lastErr error
	delay := c.cfg.RetryDelay

	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		c.pace()
		c.countMu.Lock()
		c.requestCount++
		c.countMu.Unlock()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, kyt.NewError(kyt.KindProviderTransient, "", "building request", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "kyt-engine/1.0")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			c.breaker.onFailure()
			if ctx.Err() != nil {
				return nil, kyt.NewError(kyt.KindCancelled, "", "request cancelled", ctx.Err())
			}
			if attempt < c.cfg.MaxRetries-1 {
				time.Sleep(delay)
				delay *= 2
				continue
			}
			return nil, kyt.NewError(kyt.KindProviderTerminal, "", "timeout/transport exhausted retries", lastErr)
		}

		body, status := resp.Body, resp.StatusCode
		var parsed map[string]any
		decodeErr := json.NewDecoder(body).Decode(&parsed)
		body.Close()

		switch {
		case status == http.StatusTooManyRequests:
			retryAfter := c.cfg.RetryDelay.Seconds()
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if f, err := strconv.ParseFloat(ra, 64); err == nil {
					retryAfter = f
				}
			}
			if attempt < c.cfg.MaxRetries-1 {
				time.Sleep(time.Duration(retryAfter*float64(time.Second)) * time.Duration(1<<attempt))
				continue
			}
			return nil, kyt.NewRateLimited("", retryAfter)

		case status == http.StatusNotFound:
			return map[string]any{"data": nil}, nil

		case status >= 500:
			lastErr = fmt.Errorf("server error %d", status)
			c.breaker.onFailure()
			if attempt < c.cfg.MaxRetries-1 {
				time.Sleep(delay)
				delay *= 2
				continue
			}
			return nil, kyt.NewError(kyt.KindProviderTerminal, "", lastErr.Error(), lastErr)

		case status >= 400:
			return nil, kyt.NewError(kyt.KindInvalidTransaction, "", fmt.Sprintf("status %d", status), nil)

		default:
			c.breaker.onSuccess()
			if decodeErr != nil {
				return nil, kyt.NewError(kyt.KindProviderTransient, "", "decoding response", decodeErr)
			}
			return parsed, nil
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return map[string]any{}, nil
}

func (c *Client) chainOrErr(chain string) (chainconfig.Config, error) {
	cc, ok := chainconfig.Default.Lookup(chain)
	if !ok {
		return chainconfig.Config{}, kyt.NewError(kyt.KindUnsupportedChain, chain, "chain not registered", nil)
	}
	return cc, nil
}

func (c *Client) GetTx(ctx context.Context, chain, txID string) (*kyt.Transaction, error) {
	cc, err := c.chainOrErr(chain)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("%s/dashboards/transaction/%s", cc.Slug, txID)
	data, err := c.request(ctx, path, nil)
	if err != nil {
		return nil, err
	}

	txData, _ := data["data"].(map[string]any)
	if txData == nil {
		return nil, kyt.NewError(kyt.KindTxNotFound, chain, txID, nil)
	}
	raw := findCaseInsensitive(txData, txID)
	if raw == nil {
		return nil, kyt.NewError(kyt.KindTxNotFound, chain, txID, nil)
	}

	txInfo, _ := raw["transaction"].(map[string]any)
	if cc.Kind == chainconfig.UTXO {
		return parseUTXOTx(txID, chain, raw, txInfo), nil
	}
	return parseAccountTx(txID, chain, cc, raw, txInfo), nil
}

func (c *Client) GetTxInputs(ctx context.Context, chain, txID string) ([]provider.TxInputRef, error) {
	cc, err := c.chainOrErr(chain)
	if err != nil {
		return nil, err
	}
	if cc.Kind != chainconfig.UTXO {
		return nil, nil
	}
	tx, err := c.GetTx(ctx, chain, txID)
	if err != nil {
		return nil, err
	}
	refs := make([]provider.TxInputRef, 0, len(tx.Inputs))
	for _, in := range tx.Inputs {
		if in.Address != "" && in.PrevTxID != "" {
			refs = append(refs, provider.TxInputRef{Address: in.Address, PrevTxID: in.PrevTxID})
		}
	}
	return refs, nil
}

func (c *Client) GetInternalTxs(ctx context.Context, chain, txID string) ([]kyt.InternalTx, error) {
	cc, err := c.chainOrErr(chain)
	if err != nil {
		return nil, err
	}
	if !cc.HasInternalTxs {
		return nil, nil
	}
	tx, err := c.GetTx(ctx, chain, txID)
	if err != nil {
		return nil, err
	}
	return tx.Internals, nil
}

func (c *Client) GetAddressMetadata(ctx context.Context, chain, address string) (*kyt.AddressMetadata, error) {
	cc, err := c.chainOrErr(chain)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("%s/dashboards/address/%s", cc.Slug, address)
	data, err := c.request(ctx, path, nil)
	if err != nil {
		return nil, err
	}

	addrData, _ := data["data"].(map[string]any)
	if addrData == nil {
		return &kyt.AddressMetadata{Address: address, Chain: chain}, nil
	}
	addrInfo := findCaseInsensitive(addrData, address)
	if addrInfo == nil {
		for _, v := range addrData {
			if m, ok := v.(map[string]any); ok {
				addrInfo = m
				break
			}
		}
	}
	if addrInfo == nil {
		return &kyt.AddressMetadata{Address: address, Chain: chain}, nil
	}

	addressObj, _ := addrInfo["address"].(map[string]any)

	tags := provider.ExtractTags(addrInfo)
	labels := provider.ExtractLabels(addrInfo)

	divisor := math10(cc.NativeDecimals)
	balance := asFloat(addressObj["balance"]) / divisor

	return &kyt.AddressMetadata{
		Address:    address,
		Chain:      chain,
		Tags:       tags,
		Labels:     labels,
		Balance:    balance,
		TxCount:    int(asFloat(addressObj["transaction_count"])),
		FirstSeen:  parseTime(addressObj["first_seen_receiving"]),
		LastSeen:   parseTime(addressObj["last_seen_receiving"]),
		IsContract: addressObj["type"] == "contract",
		Context:    addrInfo,
	}, nil
}

func (c *Client) IsContract(ctx context.Context, chain, address string) (bool, error) {
	cc, err := c.chainOrErr(chain)
	if err != nil {
		return false, err
	}
	if cc.Kind == chainconfig.UTXO {
		return false, nil
	}
	md, err := c.GetAddressMetadata(ctx, chain, address)
	if err != nil {
		return false, err
	}
	return md.IsContract, nil
}

func (c *Client) HealthCheck(ctx context.Context) provider.Health {
	c.countMu.Lock()
	count := c.requestCount
	c.countMu.Unlock()

	_, err := c.request(ctx, "stats", nil)
	if err != nil {
		return provider.Health{
			Status: "unhealthy", Provider: c.Name(), Breaker: c.breaker.String(),
			RequestCount: count, Responsive: false, Error: err.Error(),
		}
	}
	return provider.Health{
		Status: "healthy", Provider: c.Name(), Breaker: c.breaker.String(),
		RequestCount: count, Responsive: true,
	}
}

func (c *Client) Close() error { return nil }
