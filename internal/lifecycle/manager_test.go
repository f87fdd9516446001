package lifecycle

import (
	"context"
	"strconv"
	"testing"

	"github.com/Alias1177/Quoter/internal/audit"
	"github.com/Alias1177/Quoter/internal/model"
)

type placement struct {
	side   model.Side
	amount float64
	price  float64
}

// fakeExchange records order management calls.
type fakeExchange struct {
	open     []model.Order
	canceled []string
	placed   []placement
	placeErr error
	nextID   int
}

func (f *fakeExchange) FetchCandles(context.Context, string, string, int) ([]model.Candle, error) {
	return nil, nil
}

func (f *fakeExchange) FetchBalance(context.Context) (model.Balance, error) {
	return model.Balance{}, nil
}

func (f *fakeExchange) FetchTicker(context.Context, string) (model.Ticker, error) {
	return model.Ticker{}, nil
}

func (f *fakeExchange) FetchOpenOrders(context.Context, string) ([]model.Order, error) {
	return f.open, nil
}

func (f *fakeExchange) PlaceLimitOrder(_ context.Context, pair string, side model.Side, amount, price float64) (model.Order, error) {
	if f.placeErr != nil {
		return model.Order{}, f.placeErr
	}
	f.placed = append(f.placed, placement{side: side, amount: amount, price: price})
	f.nextID++
	return model.Order{
		ID:     strconv.Itoa(f.nextID),
		Pair:   pair,
		Side:   side,
		Price:  price,
		Amount: amount,
		Status: model.StatusOpen,
	}, nil
}

func (f *fakeExchange) PlaceMarketOrder(context.Context, string, model.Side, float64) (model.Order, error) {
	return model.Order{}, nil
}

func (f *fakeExchange) CancelOrder(_ context.Context, id, _ string) error {
	f.canceled = append(f.canceled, id)
	return nil
}

func (f *fakeExchange) FetchOrderStatus(context.Context, string, string) (model.Order, error) {
	return model.Order{}, nil
}

func testQuote() model.Quote {
	// ~2.65% quoted spread around 101.
	return model.Quote{Reference: 101, Buy: 99.66, Sell: 102.34, Spread: 0.01326}
}

func newManager(f *fakeExchange) *Manager {
	return New(f, audit.Nop{}, Options{
		Pair:            "XCAD_USDT",
		OrderAmount:     15,
		SpreadThreshold: 1.3,
		SellNudge:       1.005,
	})
}

func TestRunPlacesBothSides(t *testing.T) {
	fake := &fakeExchange{
		open: []model.Order{
			{ID: "stale-1", Side: model.SideBuy, Price: 98, Amount: 15},
			{ID: "stale-2", Side: model.SideSell, Price: 104, Amount: 15},
		},
	}
	m := newManager(fake)

	balance := model.Balance{QuoteTotal: 5000, BaseTotal: 100}
	result, err := m.Run(context.Background(), testQuote(), balance, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !result.Acted {
		t.Fatal("Run() should act when spread exceeds threshold")
	}
	if len(fake.canceled) != 2 {
		t.Errorf("canceled %d orders, want 2", len(fake.canceled))
	}
	if len(result.Placed) != 2 {
		t.Fatalf("placed %d orders, want 2", len(result.Placed))
	}

	buy, sell := fake.placed[0], fake.placed[1]
	if buy.side != model.SideBuy || buy.price != 99.66 {
		t.Errorf("buy placement = %+v, want buy at 99.66", buy)
	}
	if sell.side != model.SideSell {
		t.Errorf("sell placement = %+v, want sell side", sell)
	}
	// The sell price carries the self-fill nudge.
	want := 102.34 * 1.005
	if sell.price != want {
		t.Errorf("sell price = %v, want %v", sell.price, want)
	}
}

func TestRunNoActionBelowThreshold(t *testing.T) {
	fake := &fakeExchange{
		open: []model.Order{{ID: "resting", Side: model.SideBuy, Price: 98, Amount: 15}},
	}
	m := newManager(fake)

	// NATR=0 with a 0.6% base spread: ~1.2% quoted, below the 1.3% gate.
	q := model.Quote{Reference: 100, Buy: 99.4, Sell: 100.6, Spread: 0.006}
	result, err := m.Run(context.Background(), q, model.Balance{QuoteTotal: 5000, BaseTotal: 100}, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.Acted {
		t.Error("Run() must not act below the spread threshold")
	}
	if len(fake.canceled) != 0 {
		t.Errorf("canceled %d orders, want 0 (no-churn)", len(fake.canceled))
	}
	if len(fake.placed) != 0 {
		t.Errorf("placed %d orders, want 0", len(fake.placed))
	}
}

func TestRunSkipsBuyOnEmptyQuoteBalance(t *testing.T) {
	fake := &fakeExchange{}
	m := newManager(fake)

	result, err := m.Run(context.Background(), testQuote(), model.Balance{QuoteTotal: 0, BaseTotal: 100}, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(result.Placed) != 1 || result.Placed[0].Side != model.SideSell {
		t.Fatalf("Placed = %+v, want only the sell side", result.Placed)
	}
	if len(result.Skipped) != 1 || result.Skipped[0].Side != model.SideBuy {
		t.Fatalf("Skipped = %+v, want buy side with a shortfall reason", result.Skipped)
	}
}

func TestRunSkipsSellOnEmptyBaseBalance(t *testing.T) {
	fake := &fakeExchange{}
	m := newManager(fake)

	result, err := m.Run(context.Background(), testQuote(), model.Balance{QuoteTotal: 5000, BaseTotal: 1}, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(result.Placed) != 1 || result.Placed[0].Side != model.SideBuy {
		t.Fatalf("Placed = %+v, want only the buy side", result.Placed)
	}
	if len(result.Skipped) != 1 || result.Skipped[0].Side != model.SideSell {
		t.Fatalf("Skipped = %+v, want sell side", result.Skipped)
	}
}

func TestRunSweepHonorsExclusions(t *testing.T) {
	fake := &fakeExchange{
		open: []model.Order{
			{ID: "resting-quote", Side: model.SideBuy, Price: 98, Amount: 15},
			{ID: "rebalance-market", Side: model.SideBuy, Price: 0, Amount: 15},
		},
	}
	m := newManager(fake)

	exclude := map[string]struct{}{"rebalance-market": {}}
	if _, err := m.Run(context.Background(), testQuote(), model.Balance{QuoteTotal: 5000, BaseTotal: 100}, exclude); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(fake.canceled) != 1 || fake.canceled[0] != "resting-quote" {
		t.Fatalf("canceled = %v, want only resting-quote", fake.canceled)
	}
}
