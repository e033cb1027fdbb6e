package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
)

var ErrUnavailable = errors.New("payment processor is unavailable")

type BreakerSettings struct {
	// Timeout bounds every processor call.
	Timeout time.Duration
	// MaxFailures is the number of consecutive failures that opens the breaker.
	MaxFailures uint32
	// Cooldown is how long the breaker stays open before letting a trial request through.
	Cooldown time.Duration
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{Timeout: 10 * time.Second, MaxFailures: 5, Cooldown: 30 * time.Second}
}

// GuardedProcessor wraps a Processor with a per-call timeout and a circuit breaker.
type GuardedProcessor struct {
	next    Processor
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker[*Intent]
}

func NewGuardedProcessor(next Processor, s BreakerSettings) *GuardedProcessor {
	cb := gobreaker.NewCircuitBreaker[*Intent](gobreaker.Settings{
		Name:        "payment-processor",
		MaxRequests: 1,
		Timeout:     s.Cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= s.MaxFailures
		},
		// ответы процессора по существу (нет такого intent, отказ карты) не ломают цепь
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrIntentNotFound) || errors.Is(err, ErrCardDeclined)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("payment: circuit breaker state changed")
		},
	})

	return &GuardedProcessor{next: next, timeout: s.Timeout, cb: cb}
}

func (g *GuardedProcessor) CreateIntent(ctx context.Context, params CreateParams) (*Intent, error) {
	return g.execute(ctx, func(ctx context.Context) (*Intent, error) {
		return g.next.CreateIntent(ctx, params)
	})
}

func (g *GuardedProcessor) RetrieveIntent(ctx context.Context, id string) (*Intent, error) {
	return g.execute(ctx, func(ctx context.Context) (*Intent, error) {
		return g.next.RetrieveIntent(ctx, id)
	})
}

func (g *GuardedProcessor) ConfirmIntent(ctx context.Context, id string, params ConfirmParams) (*Intent, error) {
	return g.execute(ctx, func(ctx context.Context) (*Intent, error) {
		return g.next.ConfirmIntent(ctx, id, params)
	})
}

func (g *GuardedProcessor) execute(ctx context.Context, call func(context.Context) (*Intent, error)) (*Intent, error) {
	intent, err := g.cb.Execute(func() (*Intent, error) {
		if g.timeout <= 0 {
			return call(ctx)
		}
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		return call(callCtx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return intent, err
}
