package exchange

import (
	"context"

	"github.com/Alias1177/Quoter/internal/model"
)

// Exchange is the set of primitive operations the agent needs from a trading
// venue. Implementations return venue-owned state; the agent keeps at most a
// transient per-cycle view of it.
type Exchange interface {
	FetchCandles(ctx context.Context, pair, timeframe string, limit int) ([]model.Candle, error)
	FetchBalance(ctx context.Context) (model.Balance, error)
	FetchTicker(ctx context.Context, pair string) (model.Ticker, error)
	FetchOpenOrders(ctx context.Context, pair string) ([]model.Order, error)
	PlaceLimitOrder(ctx context.Context, pair string, side model.Side, amount, price float64) (model.Order, error)
	PlaceMarketOrder(ctx context.Context, pair string, side model.Side, amount float64) (model.Order, error)
	CancelOrder(ctx context.Context, id, pair string) error
	FetchOrderStatus(ctx context.Context, id, pair string) (model.Order, error)
}
