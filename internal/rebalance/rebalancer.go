package rebalance

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/Quoter/internal/audit"
	"github.com/Alias1177/Quoter/internal/exchange"
	"github.com/Alias1177/Quoter/internal/model"
)

// Rebalancer restores tradable capacity when one side of the pair is starved
// by issuing a corrective market order. It is the only component with state
// that survives a cycle: the mapping of in-flight corrective orders, which
// doubles as the lifecycle manager's cancellation exclusion set.
//
// Policy: balance-threshold. A correction fires when the base balance cannot
// cover the minimum tradable amount (market buy) or the quote balance cannot
// fund it (market sell). At most one corrective order per cycle.
type Rebalancer struct {
	exchange        exchange.Exchange
	sink            audit.Sink
	pair            string
	orderAmount     float64
	minNotional     float64
	minQuoteReserve float64
	tracked         map[string]model.RebalanceOrder
	logger          zerolog.Logger
}

// Options configures a Rebalancer.
type Options struct {
	Pair            string
	OrderAmount     float64
	MinNotional     float64 // smallest order value the venue accepts, in quote currency
	MinQuoteReserve float64 // quote balance kept untouchable by corrections
}

// New creates a rebalancer on top of ex, which is expected to already carry
// the retry policy.
func New(ex exchange.Exchange, sink audit.Sink, opts Options) *Rebalancer {
	return &Rebalancer{
		exchange:        ex,
		sink:            sink,
		pair:            opts.Pair,
		orderAmount:     opts.OrderAmount,
		minNotional:     opts.MinNotional,
		minQuoteReserve: opts.MinQuoteReserve,
		tracked:         make(map[string]model.RebalanceOrder),
		logger:          log.With().Str("component", "rebalance").Logger(),
	}
}

// Refresh re-fetches the status of every tracked order and drops entries the
// exchange reports closed or cancelled, reclaiming the exclusion set. Must
// run before the lifecycle manager's cancellation sweep each cycle.
func (r *Rebalancer) Refresh(ctx context.Context) {
	for id, tracked := range r.tracked {
		order, err := r.exchange.FetchOrderStatus(ctx, id, r.pair)
		if err != nil {
			// Keep the entry: an order of unknown state must stay excluded
			// from the sweep rather than risk cancelling it spuriously.
			r.logger.Warn().Err(err).Str("order_id", id).Msg("tracked order status unavailable")
			continue
		}
		switch order.Status {
		case model.StatusClosed, model.StatusCanceled:
			delete(r.tracked, id)
			r.sink.Record(audit.SeverityInfo, fmt.Sprintf(
				"Rebalance %s order %s is %s, no longer tracked", tracked.Side, id, order.Status))
		default:
			tracked.Status = order.Status
			r.tracked[id] = tracked
		}
	}
}

// Exclusions returns a copy of the tracked order ids. The lifecycle manager
// passes this set into its cancellation sweep.
func (r *Rebalancer) Exclusions() map[string]struct{} {
	set := make(map[string]struct{}, len(r.tracked))
	for id := range r.tracked {
		set[id] = struct{}{}
	}
	return set
}

// Tracked reports how many corrective orders are currently in flight.
func (r *Rebalancer) Tracked() int {
	return len(r.tracked)
}

// Run evaluates the balance snapshot against the quote and issues at most one
// corrective market order. It returns true if an order was issued, signalling
// the caller to re-fetch balances before further decisions.
func (r *Rebalancer) Run(ctx context.Context, balance model.Balance, q model.Quote) (bool, error) {
	if q.Sell <= 0 || q.Buy <= 0 {
		return false, fmt.Errorf("rebalance: non-positive quote prices")
	}

	if len(r.tracked) > 0 {
		// A correction is still in flight; stacking another on top would
		// double-correct once both fill.
		r.logger.Debug().Int("in_flight", len(r.tracked)).Msg("correction pending, skipping rebalance")
		return false, nil
	}

	// The smallest amount worth trading: the configured order size, or more
	// if the venue's minimum notional demands it.
	minAmount := math.Max(r.orderAmount, r.minNotional/q.Sell)

	spendable := balance.QuoteTotal - r.minQuoteReserve
	if spendable < 0 {
		spendable = 0
	}

	switch {
	case balance.BaseTotal < minAmount && spendable >= minAmount*q.Buy:
		return r.issue(ctx, model.SideBuy, minAmount)
	case spendable < minAmount*q.Buy && balance.BaseTotal >= minAmount:
		return r.issue(ctx, model.SideSell, minAmount)
	}
	return false, nil
}

func (r *Rebalancer) issue(ctx context.Context, side model.Side, amount float64) (bool, error) {
	order, err := r.exchange.PlaceMarketOrder(ctx, r.pair, side, amount)
	if err != nil {
		if exchange.IsVenueRejected(err) {
			// Non-retryable; drop the attempt and let the cycle continue.
			r.sink.Record(audit.SeverityError, fmt.Sprintf(
				"Rebalance %s order rejected: %v", side, err))
			return false, nil
		}
		return false, fmt.Errorf("rebalance %s: %w", side, err)
	}

	status := order.Status
	if status == "" {
		status = model.StatusOpen
	}
	r.tracked[order.ID] = model.RebalanceOrder{
		OrderID: order.ID,
		Side:    side,
		Amount:  amount,
		Status:  status,
	}
	r.sink.Record(audit.SeverityInfo, fmt.Sprintf(
		"Placed rebalance %s market order: ID=%s, Amount=%.8f", side, order.ID, amount))
	return true, nil
}
