package workers

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"car-advisor/internal/config"
	"car-advisor/internal/logging"
	"car-advisor/internal/logging/types"
)

// ErrCircuitOpen is returned by Wait while a domain's circuit breaker is open
var ErrCircuitOpen = fmt.Errorf("circuit breaker open")

// DomainLimiter represents rate limiting for a specific domain
type DomainLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	requests int64
	failures int64
	mu       sync.RWMutex
}

// CircuitBreaker represents a circuit breaker for a domain
type CircuitBreaker struct {
	maxFailures  int
	resetTimeout time.Duration
	failureCount int
	lastFailTime time.Time
	state        CircuitState
	mu           sync.Mutex
}

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

// LimiterOptions tunes the per-domain limits
type LimiterOptions struct {
	RequestsPerMinute int
	Burst             int
	MaxFailures       int
	ResetTimeout      time.Duration
}

// RateLimiter manages rate limiting and circuit breaking per marketplace domain.
// It is shared by all marketplace clients of the process.
type RateLimiter struct {
	opts            LimiterOptions
	domainLimiters  map[string]*DomainLimiter
	circuitBreakers map[string]*CircuitBreaker
	mu              sync.RWMutex
	logger          types.Logger
	cleanupTicker   *time.Ticker
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

// NewRateLimiter creates a rate limiter from the scraper config section
func NewRateLimiter(cfg *config.Config) *RateLimiter {
	return NewRateLimiterWithOptions(LimiterOptions{
		RequestsPerMinute: cfg.Scraper.RateLimit,
		Burst:             cfg.Scraper.Burst,
	})
}

// NewRateLimiterWithOptions creates a new rate limiter instance
func NewRateLimiterWithOptions(opts LimiterOptions) *RateLimiter {
	if opts.RequestsPerMinute <= 0 {
		opts.RequestsPerMinute = 1200
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = 5
	}
	if opts.ResetTimeout <= 0 {
		opts.ResetTimeout = 30 * time.Second
	}

	rl := &RateLimiter{
		opts:            opts,
		domainLimiters:  make(map[string]*DomainLimiter),
		circuitBreakers: make(map[string]*CircuitBreaker),
		logger:          logging.GetGlobalLogger().WithField("component", "rate_limiter"),
		cleanupTicker:   time.NewTicker(5 * time.Minute),
		stopCleanup:     make(chan struct{}),
	}

	go rl.cleanupRoutine()

	return rl
}

// Wait blocks until a request to the URL's domain is permitted by the rate limiter.
// It fails immediately when the domain's circuit is open.
func (rl *RateLimiter) Wait(ctx context.Context, rawURL string) error {
	domain := ExtractDomainFromURL(rawURL)

	rl.mu.Lock()
	closed := rl.isCircuitClosed(domain)
	limiter := rl.getDomainLimiter(domain)
	rl.mu.Unlock()

	if !closed {
		rl.logger.Debug("Request rejected by circuit breaker", map[string]interface{}{"domain": domain})
		return fmt.Errorf("%s: %w", domain, ErrCircuitOpen)
	}

	if err := limiter.limiter.Wait(ctx); err != nil {
		return err
	}

	limiter.mu.Lock()
	limiter.requests++
	limiter.lastSeen = time.Now()
	limiter.mu.Unlock()

	return nil
}

// RecordSuccess records a successful request for the URL's domain
func (rl *RateLimiter) RecordSuccess(rawURL string) {
	domain := ExtractDomainFromURL(rawURL)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if cb, exists := rl.circuitBreakers[domain]; exists {
		cb.mu.Lock()
		if cb.state == CircuitHalfOpen {
			rl.logger.Info("Circuit breaker closed after successful request", map[string]interface{}{"domain": domain})
		}
		cb.state = CircuitClosed
		cb.failureCount = 0
		cb.mu.Unlock()
	}
}

// RecordFailure records a failed request for the URL's domain
func (rl *RateLimiter) RecordFailure(rawURL string, err error) {
	domain := ExtractDomainFromURL(rawURL)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, exists := rl.domainLimiters[domain]; exists {
		limiter.mu.Lock()
		limiter.failures++
		limiter.mu.Unlock()
	}

	cb := rl.getCircuitBreaker(domain)
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	cb.lastFailTime = time.Now()

	// a failed probe in half-open reopens immediately
	if cb.state == CircuitHalfOpen || (cb.state == CircuitClosed && cb.failureCount >= cb.maxFailures) {
		cb.state = CircuitOpen
		fields := map[string]interface{}{
			"domain":   domain,
			"failures": cb.failureCount,
		}
		if err != nil {
			fields["error"] = err.Error()
		}
		rl.logger.Warn("Circuit breaker opened due to failures", fields)
	}
}

// getDomainLimiter gets or creates a rate limiter for a domain; callers hold rl.mu
func (rl *RateLimiter) getDomainLimiter(domain string) *DomainLimiter {
	if limiter, exists := rl.domainLimiters[domain]; exists {
		return limiter
	}

	// requests per minute converted to requests per second
	rps := rate.Limit(float64(rl.opts.RequestsPerMinute) / 60.0)

	limiter := &DomainLimiter{
		limiter:  rate.NewLimiter(rps, rl.opts.Burst),
		lastSeen: time.Now(),
	}
	rl.domainLimiters[domain] = limiter

	rl.logger.Debug("Created new domain rate limiter", map[string]interface{}{
		"domain": domain,
		"rate":   float64(rps),
		"burst":  rl.opts.Burst,
	})

	return limiter
}

// getCircuitBreaker gets or creates a circuit breaker for a domain; callers hold rl.mu
func (rl *RateLimiter) getCircuitBreaker(domain string) *CircuitBreaker {
	if cb, exists := rl.circuitBreakers[domain]; exists {
		return cb
	}

	cb := &CircuitBreaker{
		maxFailures:  rl.opts.MaxFailures,
		resetTimeout: rl.opts.ResetTimeout,
		state:        CircuitClosed,
	}
	rl.circuitBreakers[domain] = cb

	return cb
}

// isCircuitClosed checks if the circuit breaker allows requests; callers hold rl.mu
func (rl *RateLimiter) isCircuitClosed(domain string) bool {
	cb := rl.getCircuitBreaker(domain)

	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed, CircuitHalfOpen:
		return true
	case CircuitOpen:
		if time.Since(cb.lastFailTime) > cb.resetTimeout {
			cb.state = CircuitHalfOpen
			rl.logger.Info("Circuit breaker transitioned to half-open", map[string]interface{}{"domain": domain})
			return true
		}
		return false
	default:
		return false
	}
}

// GetDomainStats returns statistics for a specific domain
func (rl *RateLimiter) GetDomainStats(domain string) map[string]interface{} {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	return rl.domainStats(strings.ToLower(domain))
}

func (rl *RateLimiter) domainStats(domain string) map[string]interface{} {
	stats := make(map[string]interface{})

	if limiter, exists := rl.domainLimiters[domain]; exists {
		limiter.mu.RLock()
		stats["requests"] = limiter.requests
		stats["failures"] = limiter.failures
		stats["last_seen"] = limiter.lastSeen
		stats["limit"] = float64(limiter.limiter.Limit())
		stats["burst"] = limiter.limiter.Burst()
		limiter.mu.RUnlock()
	}

	if cb, exists := rl.circuitBreakers[domain]; exists {
		cb.mu.Lock()
		stats["circuit_state"] = cb.state.String()
		stats["failure_count"] = cb.failureCount
		stats["max_failures"] = cb.maxFailures
		stats["last_fail_time"] = cb.lastFailTime
		cb.mu.Unlock()
	}

	return stats
}

// GetAllStats returns statistics for all domains
func (rl *RateLimiter) GetAllStats() map[string]map[string]interface{} {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	domains := make(map[string]bool)
	for domain := range rl.domainLimiters {
		domains[domain] = true
	}
	for domain := range rl.circuitBreakers {
		domains[domain] = true
	}

	allStats := make(map[string]map[string]interface{}, len(domains))
	for domain := range domains {
		allStats[domain] = rl.domainStats(domain)
	}

	return allStats
}

// cleanupRoutine periodically cleans up old unused limiters
func (rl *RateLimiter) cleanupRoutine() {
	for {
		select {
		case <-rl.cleanupTicker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			rl.cleanupTicker.Stop()
			return
		}
	}
}

// cleanup removes old unused limiters and circuit breakers
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	removedCount := 0

	for domain, limiter := range rl.domainLimiters {
		limiter.mu.RLock()
		lastSeen := limiter.lastSeen
		limiter.mu.RUnlock()

		if lastSeen.Before(cutoff) {
			delete(rl.domainLimiters, domain)
			removedCount++
		}
	}

	for domain, cb := range rl.circuitBreakers {
		cb.mu.Lock()
		idle := cb.state == CircuitClosed && cb.lastFailTime.Before(cutoff)
		cb.mu.Unlock()

		if idle {
			delete(rl.circuitBreakers, domain)
		}
	}

	if removedCount > 0 {
		rl.logger.Info("Cleaned up unused rate limiters", map[string]interface{}{"removed_count": removedCount})
	}
}

// Stop stops the rate limiter and cleanup routine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// String returns string representation of CircuitState
func (cs CircuitState) String() string {
	switch cs {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ExtractDomainFromURL extracts the lower-cased host from a URL string. Bare
// domains are accepted as well.
func ExtractDomainFromURL(urlStr string) string {
	if !strings.Contains(urlStr, "://") {
		urlStr = "https://" + urlStr
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "unknown"
	}

	domain := parsedURL.Hostname()
	if domain == "" {
		return "unknown"
	}

	return strings.ToLower(domain)
}
