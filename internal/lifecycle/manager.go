package lifecycle

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/Quoter/internal/audit"
	"github.com/Alias1177/Quoter/internal/exchange"
	"github.com/Alias1177/Quoter/internal/model"
)

// Manager maintains the resting buy/sell orders for one pair. Per cycle it
// either leaves the book alone (spread below threshold) or cancels and
// re-places both sides around the fresh quote. It holds no state between
// cycles.
type Manager struct {
	exchange        exchange.Exchange
	sink            audit.Sink
	pair            string
	orderAmount     float64
	spreadThreshold float64
	sellNudge       float64
	logger          zerolog.Logger
}

// Options configures a Manager.
type Options struct {
	Pair            string
	OrderAmount     float64
	SpreadThreshold float64 // minimum spread percentage to act on
	SellNudge       float64 // multiplier applied to the sell price, e.g. 1.005
}

// Skip reports a side that was not quoted this cycle and why.
type Skip struct {
	Side   model.Side
	Reason string
}

// Result summarizes one cycle's lifecycle decision.
type Result struct {
	Acted     bool
	SpreadPct float64
	Canceled  int
	Placed    []model.Order
	Skipped   []Skip
}

// New creates a lifecycle manager on top of ex, which is expected to already
// carry the retry policy.
func New(ex exchange.Exchange, sink audit.Sink, opts Options) *Manager {
	if opts.SellNudge == 0 {
		opts.SellNudge = 1.0
	}
	return &Manager{
		exchange:        ex,
		sink:            sink,
		pair:            opts.Pair,
		orderAmount:     opts.OrderAmount,
		spreadThreshold: opts.SpreadThreshold,
		sellNudge:       opts.SellNudge,
		logger:          log.With().Str("component", "lifecycle").Logger(),
	}
}

// Run executes one lifecycle pass for the given quote and balance snapshot.
// Orders whose ids appear in exclude are never cancelled; the caller passes
// the rebalancer's tracked set so in-flight corrective orders survive the
// sweep.
func (m *Manager) Run(ctx context.Context, q model.Quote, balance model.Balance, exclude map[string]struct{}) (Result, error) {
	result := Result{SpreadPct: q.SpreadPercentage()}

	if result.SpreadPct < m.spreadThreshold {
		// No-churn policy: on quiet markets existing orders keep resting
		// instead of being flapped around a near-zero spread.
		m.sink.Record(audit.SeverityInfo, fmt.Sprintf(
			"Spread (%.2f%%) is less than %.2f%%. Not placing orders.",
			result.SpreadPct, m.spreadThreshold))
		return result, nil
	}
	result.Acted = true

	canceled, err := m.cancelSweep(ctx, exclude)
	result.Canceled = canceled
	if err != nil {
		return result, err
	}

	// Buy side: full configured size or nothing, no partial fallback.
	if balance.QuoteTotal >= m.orderAmount*q.Buy {
		order, err := m.exchange.PlaceLimitOrder(ctx, m.pair, model.SideBuy, m.orderAmount, q.Buy)
		if err != nil {
			m.reportPlacementFailure(model.SideBuy, err)
			if !exchange.IsVenueRejected(err) {
				return result, err
			}
		} else {
			result.Placed = append(result.Placed, order)
			m.sink.Record(audit.SeverityInfo, fmt.Sprintf(
				"Placed buy order: ID=%s, Price=%.8f, Amount=%.8f", order.ID, order.Price, order.Amount))
		}
	} else {
		skip := Skip{Side: model.SideBuy, Reason: fmt.Sprintf(
			"insufficient quote balance: have %.8f, need %.8f", balance.QuoteTotal, m.orderAmount*q.Buy)}
		result.Skipped = append(result.Skipped, skip)
		m.sink.Record(audit.SeverityWarning, "Skipping buy order: "+skip.Reason)
	}

	// Sell side, nudged slightly above the quote to avoid crossing the buy
	// order just placed. The asymmetry is intentional.
	sellPrice := q.Sell * m.sellNudge
	if balance.BaseTotal >= m.orderAmount {
		order, err := m.exchange.PlaceLimitOrder(ctx, m.pair, model.SideSell, m.orderAmount, sellPrice)
		if err != nil {
			m.reportPlacementFailure(model.SideSell, err)
			if !exchange.IsVenueRejected(err) {
				return result, err
			}
		} else {
			result.Placed = append(result.Placed, order)
			m.sink.Record(audit.SeverityInfo, fmt.Sprintf(
				"Placed sell order: ID=%s, Price=%.8f, Amount=%.8f", order.ID, order.Price, order.Amount))
		}
	} else {
		skip := Skip{Side: model.SideSell, Reason: fmt.Sprintf(
			"insufficient base balance: have %.8f, need %.8f", balance.BaseTotal, m.orderAmount)}
		result.Skipped = append(result.Skipped, skip)
		m.sink.Record(audit.SeverityWarning, "Skipping sell order: "+skip.Reason)
	}

	return result, nil
}

// cancelSweep cancels every open order for the pair except the excluded ids.
func (m *Manager) cancelSweep(ctx context.Context, exclude map[string]struct{}) (int, error) {
	open, err := m.exchange.FetchOpenOrders(ctx, m.pair)
	if err != nil {
		return 0, fmt.Errorf("cancel sweep: %w", err)
	}

	canceled := 0
	for _, order := range open {
		if _, tracked := exclude[order.ID]; tracked {
			m.logger.Debug().Str("order_id", order.ID).Msg("skipping tracked rebalance order")
			continue
		}
		if err := m.exchange.CancelOrder(ctx, order.ID, m.pair); err != nil {
			return canceled, fmt.Errorf("cancel order %s: %w", order.ID, err)
		}
		canceled++
		m.sink.Record(audit.SeverityInfo, fmt.Sprintf(
			"Canceled order: ID=%s, Price=%.8f, Amount=%.8f", order.ID, order.Price, order.Amount))
	}
	return canceled, nil
}

func (m *Manager) reportPlacementFailure(side model.Side, err error) {
	m.logger.Error().Err(err).Str("side", string(side)).Msg("order placement failed")
	m.sink.Record(audit.SeverityError, fmt.Sprintf("Failed to place %s order: %v", side, err))
}
