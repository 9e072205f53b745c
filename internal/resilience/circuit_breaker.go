package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

type CircuitBreakerConfig struct {
	Enabled          bool          `yaml:"enabled" mapstructure:"enabled"`
	MaxRequests      uint32        `yaml:"max_requests" mapstructure:"max_requests"`
	Interval         time.Duration `yaml:"interval" mapstructure:"interval"`
	Timeout          time.Duration `yaml:"timeout" mapstructure:"timeout"`
	FailureThreshold uint32        `yaml:"failure_threshold" mapstructure:"failure_threshold"`
}

// CircuitBreakerManager hands out one breaker per named dependency. Errors
// accepted by the ignore predicate count as successes, so client errors
// such as a missing page never trip a breaker.
type CircuitBreakerManager struct {
	config   CircuitBreakerConfig
	breakers map[string]*gobreaker.CircuitBreaker
	mutex    sync.RWMutex
	logger   zerolog.Logger
	ignore   func(error) bool
}

func NewCircuitBreakerManager(config CircuitBreakerConfig, logger zerolog.Logger, ignore func(error) bool) *CircuitBreakerManager {
	if ignore == nil {
		ignore = func(error) bool { return false }
	}
	return &CircuitBreakerManager{
		config:   config,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		logger:   logger,
		ignore:   ignore,
	}
}

func (cbm *CircuitBreakerManager) GetBreaker(serviceName string) *gobreaker.CircuitBreaker {
	if !cbm.config.Enabled {
		return nil
	}

	cbm.mutex.RLock()
	breaker, exists := cbm.breakers[serviceName]
	cbm.mutex.RUnlock()

	if exists {
		return breaker
	}

	cbm.mutex.Lock()
	defer cbm.mutex.Unlock()

	if breaker, exists := cbm.breakers[serviceName]; exists {
		return breaker
	}

	threshold := cbm.config.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	settings := gobreaker.Settings{
		Name:        serviceName,
		MaxRequests: cbm.config.MaxRequests,
		Interval:    cbm.config.Interval,
		Timeout:     cbm.config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			cbm.logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker changed state")
		},
		IsSuccessful: func(err error) bool {
			return err == nil || cbm.ignore(err)
		},
	}

	breaker = gobreaker.NewCircuitBreaker(settings)
	cbm.breakers[serviceName] = breaker

	return breaker
}

func (cbm *CircuitBreakerManager) ExecuteWithContext(ctx context.Context, serviceName string, fn func(context.Context) (any, error)) (any, error) {
	breaker := cbm.GetBreaker(serviceName)
	if breaker == nil {
		return fn(ctx)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	return breaker.Execute(func() (any, error) {
		return fn(ctx)
	})
}

func (cbm *CircuitBreakerManager) GetState(serviceName string) gobreaker.State {
	cbm.mutex.RLock()
	defer cbm.mutex.RUnlock()

	if breaker, exists := cbm.breakers[serviceName]; exists {
		return breaker.State()
	}

	return gobreaker.StateClosed
}

func (cbm *CircuitBreakerManager) IsEnabled() bool {
	return cbm.config.Enabled
}

func IsCircuitBreakerError(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
