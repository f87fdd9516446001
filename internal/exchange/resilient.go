package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/Quoter/internal/audit"
	"github.com/Alias1177/Quoter/internal/model"
)

// Resilient wraps an Exchange with a bounded constant-delay retry policy.
// Every failed attempt is reported at warning severity; exhausting the budget
// is reported critical and surfaces as ErrUnavailable. Venue rejections are
// structurally non-retryable and fail on the first attempt.
//
// The policy is deliberately simple: fixed delay, no jitter, no exponential
// growth. At a once-per-minute cycle cadence there is nothing to gain from
// backing off further.
type Resilient struct {
	next       Exchange
	maxRetries int
	retryDelay time.Duration
	sink       audit.Sink
	logger     zerolog.Logger
}

// NewResilient wraps next with maxRetries total attempts spaced retryDelay
// apart. Failure reports go to sink as well as the log.
func NewResilient(next Exchange, maxRetries int, retryDelay time.Duration, sink audit.Sink) *Resilient {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Resilient{
		next:       next,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		sink:       sink,
		logger:     log.With().Str("component", "resilient_exchange").Logger(),
	}
}

// do runs op with the retry policy. The operation closure writes its result
// into variables captured by the caller, mirroring how the HTTP platform
// client threads responses through backoff.Retry.
func (r *Resilient) do(ctx context.Context, name string, op func() error) error {
	attempt := 0
	wrapped := func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if IsVenueRejected(err) {
			r.logger.Error().Err(err).Str("operation", name).Msg("venue rejected, not retrying")
			r.sink.Record(audit.SeverityError, fmt.Sprintf("%s rejected by venue: %v", name, err))
			return backoff.Permanent(err)
		}
		r.logger.Warn().
			Err(err).
			Str("operation", name).
			Int("attempt", attempt).
			Int("max_retries", r.maxRetries).
			Msg("exchange call failed, retrying")
		r.sink.Record(audit.SeverityWarning,
			fmt.Sprintf("%s failed: %v. Attempt %d of %d", name, err, attempt, r.maxRetries))
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.retryDelay), uint64(r.maxRetries-1)),
		ctx,
	)

	if err := backoff.Retry(wrapped, policy); err != nil {
		if IsVenueRejected(err) {
			return err
		}
		r.logger.Error().Err(err).Str("operation", name).Msg("max retries reached")
		r.sink.Record(audit.SeverityCritical, fmt.Sprintf("max retries reached: %s failed", name))
		return fmt.Errorf("%s after %d attempts: %v: %w", name, attempt, err, ErrUnavailable)
	}
	return nil
}

func (r *Resilient) FetchCandles(ctx context.Context, pair, timeframe string, limit int) ([]model.Candle, error) {
	var candles []model.Candle
	err := r.do(ctx, "fetch candles", func() error {
		var err error
		candles, err = r.next.FetchCandles(ctx, pair, timeframe, limit)
		return err
	})
	return candles, err
}

func (r *Resilient) FetchBalance(ctx context.Context) (model.Balance, error) {
	var balance model.Balance
	err := r.do(ctx, "fetch balance", func() error {
		var err error
		balance, err = r.next.FetchBalance(ctx)
		return err
	})
	return balance, err
}

func (r *Resilient) FetchTicker(ctx context.Context, pair string) (model.Ticker, error) {
	var ticker model.Ticker
	err := r.do(ctx, "fetch ticker", func() error {
		var err error
		ticker, err = r.next.FetchTicker(ctx, pair)
		return err
	})
	return ticker, err
}

func (r *Resilient) FetchOpenOrders(ctx context.Context, pair string) ([]model.Order, error) {
	var orders []model.Order
	err := r.do(ctx, "fetch open orders", func() error {
		var err error
		orders, err = r.next.FetchOpenOrders(ctx, pair)
		return err
	})
	return orders, err
}

func (r *Resilient) PlaceLimitOrder(ctx context.Context, pair string, side model.Side, amount, price float64) (model.Order, error) {
	var order model.Order
	err := r.do(ctx, fmt.Sprintf("place %s limit order", side), func() error {
		var err error
		order, err = r.next.PlaceLimitOrder(ctx, pair, side, amount, price)
		return err
	})
	return order, err
}

func (r *Resilient) PlaceMarketOrder(ctx context.Context, pair string, side model.Side, amount float64) (model.Order, error) {
	var order model.Order
	err := r.do(ctx, fmt.Sprintf("place %s market order", side), func() error {
		var err error
		order, err = r.next.PlaceMarketOrder(ctx, pair, side, amount)
		return err
	})
	return order, err
}

func (r *Resilient) CancelOrder(ctx context.Context, id, pair string) error {
	return r.do(ctx, "cancel order", func() error {
		return r.next.CancelOrder(ctx, id, pair)
	})
}

func (r *Resilient) FetchOrderStatus(ctx context.Context, id, pair string) (model.Order, error) {
	var order model.Order
	err := r.do(ctx, "fetch order status", func() error {
		var err error
		order, err = r.next.FetchOrderStatus(ctx, id, pair)
		return err
	})
	return order, err
}
