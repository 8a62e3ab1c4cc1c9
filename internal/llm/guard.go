package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ErrUnavailable is returned while the breaker is open.
var ErrUnavailable = errors.New("llm temporarily unavailable")

type GuardConfig struct {
	Name           string
	RequestsPerSec float64 // <= 0 disables rate limiting
	Burst          int
	// MaxFailures consecutive failures open the breaker for OpenFor.
	MaxFailures uint32
	OpenFor     time.Duration
}

// Guard wraps a FieldExtractor with a token-bucket limiter and a circuit
// breaker so a failing provider is not hammered by the worker pool.
type Guard struct {
	next    FieldExtractor
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

func NewGuard(next FieldExtractor, cfg GuardConfig, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Name == "" {
		cfg.Name = "llm"
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 3
	}
	if cfg.OpenFor <= 0 {
		cfg.OpenFor = 30 * time.Second
	}

	limit := rate.Inf
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
	}

	st := gobreaker.Settings{
		Name:     cfg.Name,
		Interval: 60 * time.Second,
		Timeout:  cfg.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("llm.breaker.state_change", "name", name, "from", from.String(), "to", to.String())
		},
	}

	return &Guard{
		next:    next,
		limiter: rate.NewLimiter(limit, cfg.Burst),
		breaker: gobreaker.NewCircuitBreaker(st),
		logger:  logger,
	}
}

func (g *Guard) ExtractRecord(ctx context.Context, req ExtractRequest) (ExtractResult, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return ExtractResult{}, fmt.Errorf("llm rate limit: %w", err)
	}
	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.next.ExtractRecord(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		g.logger.Warn("llm.breaker.rejected", "contract_id", req.ContractID, "state", g.breaker.State().String())
		return ExtractResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		return ExtractResult{}, err
	}
	return out.(ExtractResult), nil
}

// State reports the breaker state, for health output.
func (g *Guard) State() string {
	return g.breaker.State().String()
}
