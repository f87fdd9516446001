package agent

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/Quoter/internal/audit"
	"github.com/Alias1177/Quoter/internal/config"
	"github.com/Alias1177/Quoter/internal/exchange"
	"github.com/Alias1177/Quoter/internal/indicator"
	"github.com/Alias1177/Quoter/internal/lifecycle"
	"github.com/Alias1177/Quoter/internal/model"
	"github.com/Alias1177/Quoter/internal/quote"
	"github.com/Alias1177/Quoter/internal/rebalance"
)

// ErrMarketData marks a cycle aborted because candle data could not be
// fetched within the retry budget. Without market data no quoting decision is
// possible, so the driver treats this as fatal to the process.
var ErrMarketData = errors.New("market data unavailable")

// Agent owns one trading pair's decision loop. All per-cycle state is local
// to Cycle; the only state carried across cycles lives in the rebalancer.
type Agent struct {
	cfg        *config.Config
	exchange   exchange.Exchange
	sink       audit.Sink
	quoter     *quote.Model
	lifecycle  *lifecycle.Manager
	rebalancer *rebalance.Rebalancer
	logger     zerolog.Logger
}

// New wires the core components around an exchange client that already
// carries the retry policy.
func New(cfg *config.Config, ex exchange.Exchange, sink audit.Sink) *Agent {
	return &Agent{
		cfg:      cfg,
		exchange: ex,
		sink:     sink,
		quoter:   quote.New(cfg.BaseSpread, cfg.IndicatorPeriod),
		lifecycle: lifecycle.New(ex, sink, lifecycle.Options{
			Pair:            cfg.Pair,
			OrderAmount:     cfg.OrderAmount,
			SpreadThreshold: cfg.SpreadThreshold,
			SellNudge:       cfg.SellNudge,
		}),
		rebalancer: rebalance.New(ex, sink, rebalance.Options{
			Pair:            cfg.Pair,
			OrderAmount:     cfg.OrderAmount,
			MinNotional:     cfg.MinNotional,
			MinQuoteReserve: cfg.MinQuoteReserve,
		}),
		logger: log.With().Str("component", "agent").Logger(),
	}
}

// Run executes cycles at the configured interval until the context is
// cancelled or market data becomes unavailable.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info().
		Str("pair", a.cfg.Pair).
		Dur("interval", a.cfg.CycleInterval).
		Msg("starting quoting loop")

	ticker := time.NewTicker(a.cfg.CycleInterval)
	defer ticker.Stop()

	for {
		if err := a.Cycle(ctx); err != nil {
			if errors.Is(err, ErrMarketData) {
				a.sink.Record(audit.SeverityCritical, "Failed to fetch OHLCV data. Exiting...")
				return err
			}
			a.logger.Error().Err(err).Msg("cycle aborted")
		}

		select {
		case <-ctx.Done():
			a.logger.Info().Msg("shutdown requested")
			return nil
		case <-ticker.C:
		}
	}
}

// Cycle runs one complete decision pass: refresh tracking, fetch market data,
// quote, rebalance, then maintain the resting orders. Errors other than
// ErrMarketData abort only the current cycle.
func (a *Agent) Cycle(ctx context.Context) error {
	// Reclaim the exclusion set before anything can sweep orders.
	a.rebalancer.Refresh(ctx)

	candles, err := a.exchange.FetchCandles(ctx, a.cfg.Pair, a.cfg.Timeframe, a.cfg.CandleLimit)
	if err != nil {
		if exchange.IsVenueRejected(err) {
			return fmt.Errorf("fetch candles: %w", err)
		}
		return fmt.Errorf("%w: %v", ErrMarketData, err)
	}

	q, err := a.quoter.Quote(candles)
	if err != nil {
		if errors.Is(err, indicator.ErrInsufficientHistory) {
			a.sink.Record(audit.SeverityWarning, "Insufficient candle history, skipping cycle")
			return nil
		}
		return fmt.Errorf("compute quote: %w", err)
	}

	a.reportDrift(ctx, q)

	balance, err := a.exchange.FetchBalance(ctx)
	if err != nil {
		a.sink.Record(audit.SeverityError, fmt.Sprintf("Balance unavailable, skipping cycle: %v", err))
		return nil
	}

	issued, err := a.rebalancer.Run(ctx, balance, q)
	if err != nil {
		// A failed correction does not invalidate the quote; keep going with
		// the balances we have.
		a.logger.Error().Err(err).Msg("rebalance failed")
		a.sink.Record(audit.SeverityError, fmt.Sprintf("Rebalance failed: %v", err))
	}
	if issued {
		// The market order moved funds; decisions below need fresh numbers.
		balance, err = a.exchange.FetchBalance(ctx)
		if err != nil {
			a.sink.Record(audit.SeverityError, fmt.Sprintf("Balance unavailable after rebalance, skipping cycle: %v", err))
			return nil
		}
	}

	result, err := a.lifecycle.Run(ctx, q, balance, a.rebalancer.Exclusions())
	if err != nil {
		return fmt.Errorf("lifecycle: %w", err)
	}

	a.logger.Info().
		Bool("acted", result.Acted).
		Float64("spread_pct", result.SpreadPct).
		Int("canceled", result.Canceled).
		Int("placed", len(result.Placed)).
		Int("skipped", len(result.Skipped)).
		Int("tracked_rebalance", a.rebalancer.Tracked()).
		Msg("cycle complete")

	return nil
}

// reportDrift compares the model's reference price with the venue's last
// trade and records the deviation. Ticker failures are not worth aborting a
// cycle over.
func (a *Agent) reportDrift(ctx context.Context, q model.Quote) {
	ticker, err := a.exchange.FetchTicker(ctx, a.cfg.Pair)
	if err != nil {
		a.logger.Warn().Err(err).Msg("ticker unavailable, skipping drift report")
		return
	}
	if ticker.Last == 0 {
		return
	}
	driftPct := math.Abs(q.Reference-ticker.Last) / ticker.Last * 100
	a.sink.Record(audit.SeverityInfo, fmt.Sprintf(
		"Reference price %.8f vs last trade %.8f (drift %.2f%%)", q.Reference, ticker.Last, driftPct))
}
