// Package circuitbreaker provides a defensive mechanism against wildly
// implausible quotes reaching the serving path.
package circuitbreaker

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/ring-price-oracle/internal/model"
)

// State represents the current state of the circuit breaker
type State int

// Circuit breaker states
const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Tripped, fresh quotes rejected
	StateHalfOpen              // Testing if sources have recovered
)

// Thresholds defines the limits that will trigger the circuit breaker
type Thresholds struct {
	// Maximum plausible USD price for the tracked token
	MaxPrice float64 `json:"max_price"`

	// Maximum allowed relative change versus the last good quote (0.5 = 50%)
	MaxPriceChange float64 `json:"max_price_change"`

	// Minimum confidence a quote must carry to pass
	MinConfidence float64 `json:"min_confidence"`
}

// CircuitBreaker implements the circuit breaker pattern over resolved quotes.
// A tripped breaker keeps serving the last good quote until the cooldown
// elapses and a fresh quote passes checks again.
type CircuitBreaker struct {
	thresholds Thresholds

	state    State
	lastTrip time.Time

	resetDelay       time.Duration
	successCount     int
	successThreshold int

	lastGood *model.PriceQuote

	onTripCallback func(reason string, quote model.PriceQuote)

	mu sync.RWMutex
}

// New creates a new CircuitBreaker with the provided thresholds
func New(t Thresholds) *CircuitBreaker {
	return &CircuitBreaker{
		thresholds:       t,
		state:            StateClosed,
		resetDelay:       5 * time.Minute,
		successThreshold: 3,
	}
}

// WithResetDelay sets a custom reset delay and returns the circuit breaker
func (cb *CircuitBreaker) WithResetDelay(delay time.Duration) *CircuitBreaker {
	cb.resetDelay = delay
	return cb
}

// WithSuccessThreshold sets the number of passing quotes needed to close the circuit
func (cb *CircuitBreaker) WithSuccessThreshold(threshold int) *CircuitBreaker {
	cb.successThreshold = threshold
	return cb
}

// WithTripCallback sets a callback function that is called when the circuit trips
func (cb *CircuitBreaker) WithTripCallback(callback func(reason string, quote model.PriceQuote)) *CircuitBreaker {
	cb.onTripCallback = callback
	return cb
}

// Check evaluates a freshly resolved quote against the thresholds. If the
// circuit is open and the cooldown has not elapsed, the quote is rejected
// outright; callers fall back to LastGoodQuote.
func (cb *CircuitBreaker) Check(quote model.PriceQuote) error {
	cb.mu.RLock()
	state := cb.state
	lastTripTime := cb.lastTrip
	cb.mu.RUnlock()

	if state == StateOpen {
		if time.Since(lastTripTime) > cb.resetDelay {
			cb.transitionToHalfOpen()
		} else {
			return errors.New("circuit breaker open: system protection engaged")
		}
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	price, ok := quote.ParsedPrice()
	if !ok {
		reason := fmt.Sprintf("quote price %q does not parse", quote.Price)
		cb.trip(reason, quote)
		return errors.New(reason)
	}

	if quote.Confidence < cb.thresholds.MinConfidence {
		reason := fmt.Sprintf("quote confidence below minimum: %f < %f",
			quote.Confidence, cb.thresholds.MinConfidence)
		cb.trip(reason, quote)
		return errors.New(reason)
	}

	if cb.thresholds.MaxPrice > 0 && price > cb.thresholds.MaxPrice {
		reason := fmt.Sprintf("price exceeds maximum threshold: %f > %f",
			price, cb.thresholds.MaxPrice)
		cb.trip(reason, quote)
		return errors.New(reason)
	}

	if cb.thresholds.MaxPriceChange > 0 && cb.lastGood != nil {
		if lastPrice, ok := cb.lastGood.ParsedPrice(); ok && lastPrice > 0 {
			changeRatio := math.Abs(price-lastPrice) / lastPrice
			if changeRatio > cb.thresholds.MaxPriceChange {
				reason := fmt.Sprintf("price change too drastic: %.2f%% (threshold: %.2f%%)",
					changeRatio*100, cb.thresholds.MaxPriceChange*100)
				cb.trip(reason, quote)
				return errors.New(reason)
			}
		}
	}

	logrus.Debug("Circuit breaker checks passed")

	good := quote
	cb.lastGood = &good

	if cb.state == StateHalfOpen {
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.state = StateClosed
			cb.successCount = 0
			logrus.Info("Circuit breaker closed: sources have recovered")
		}
	}

	return nil
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreaker) GetState() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Reset forcibly resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.successCount = 0
	logrus.Info("Circuit breaker manually reset to closed state")
}

// LastGoodQuote returns the most recent quote that passed checks, or nil.
func (cb *CircuitBreaker) LastGoodQuote() *model.PriceQuote {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	if cb.lastGood == nil {
		return nil
	}
	quote := *cb.lastGood
	return &quote
}

// transitionToHalfOpen changes the circuit state to half-open for testing recovery
func (cb *CircuitBreaker) transitionToHalfOpen() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen {
		cb.state = StateHalfOpen
		cb.successCount = 0
		logrus.Info("Circuit breaker half-open: testing source recovery")
	}
}

// trip sets the circuit breaker to open state with the current time
func (cb *CircuitBreaker) trip(reason string, quote model.PriceQuote) {
	cb.state = StateOpen
	cb.lastTrip = time.Now()
	logrus.Warnf("Circuit breaker tripped: %s", reason)

	if cb.onTripCallback != nil {
		go cb.onTripCallback(reason, quote)
	}
}
