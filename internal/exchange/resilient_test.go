package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Alias1177/Quoter/internal/audit"
	"github.com/Alias1177/Quoter/internal/model"
)

// flakyExchange fails the first failures calls of every operation, then
// succeeds. Only the methods used by the tests return data.
type flakyExchange struct {
	failures int
	err      error
	calls    int
}

func (f *flakyExchange) attempt() error {
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	return nil
}

func (f *flakyExchange) FetchCandles(context.Context, string, string, int) ([]model.Candle, error) {
	if err := f.attempt(); err != nil {
		return nil, err
	}
	return []model.Candle{{Close: 100}}, nil
}

func (f *flakyExchange) FetchBalance(context.Context) (model.Balance, error) {
	if err := f.attempt(); err != nil {
		return model.Balance{}, err
	}
	return model.Balance{QuoteTotal: 100, BaseTotal: 10}, nil
}

func (f *flakyExchange) FetchTicker(context.Context, string) (model.Ticker, error) {
	return model.Ticker{}, f.attempt()
}

func (f *flakyExchange) FetchOpenOrders(context.Context, string) ([]model.Order, error) {
	return nil, f.attempt()
}

func (f *flakyExchange) PlaceLimitOrder(context.Context, string, model.Side, float64, float64) (model.Order, error) {
	if err := f.attempt(); err != nil {
		return model.Order{}, err
	}
	return model.Order{ID: "1"}, nil
}

func (f *flakyExchange) PlaceMarketOrder(context.Context, string, model.Side, float64) (model.Order, error) {
	if err := f.attempt(); err != nil {
		return model.Order{}, err
	}
	return model.Order{ID: "2"}, nil
}

func (f *flakyExchange) CancelOrder(context.Context, string, string) error {
	return f.attempt()
}

func (f *flakyExchange) FetchOrderStatus(context.Context, string, string) (model.Order, error) {
	if err := f.attempt(); err != nil {
		return model.Order{}, err
	}
	return model.Order{ID: "3", Status: model.StatusOpen}, nil
}

// recordingSink captures audit records for assertions.
type recordingSink struct {
	severities []audit.Severity
	messages   []string
}

func (s *recordingSink) Record(severity audit.Severity, message string) {
	s.severities = append(s.severities, severity)
	s.messages = append(s.messages, message)
}

func (s *recordingSink) Close() error { return nil }

func (s *recordingSink) count(severity audit.Severity) int {
	n := 0
	for _, sev := range s.severities {
		if sev == severity {
			n++
		}
	}
	return n
}

func TestResilientSucceedsAfterRetries(t *testing.T) {
	fake := &flakyExchange{failures: 2, err: errors.New("connection reset")}
	sink := &recordingSink{}
	r := NewResilient(fake, 5, time.Millisecond, sink)

	candles, err := r.FetchCandles(context.Background(), "XCAD_USDT", "1m", 100)
	if err != nil {
		t.Fatalf("FetchCandles() error = %v", err)
	}
	if len(candles) != 1 {
		t.Fatalf("FetchCandles() returned %d candles, want 1", len(candles))
	}
	if fake.calls != 3 {
		t.Errorf("attempts = %d, want 3", fake.calls)
	}
	if got := sink.count(audit.SeverityWarning); got != 2 {
		t.Errorf("warning records = %d, want 2", got)
	}
}

func TestResilientExhaustsRetryBudget(t *testing.T) {
	fake := &flakyExchange{failures: 100, err: errors.New("timeout")}
	sink := &recordingSink{}
	r := NewResilient(fake, 5, time.Millisecond, sink)

	_, err := r.FetchCandles(context.Background(), "XCAD_USDT", "1m", 100)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("FetchCandles() error = %v, want ErrUnavailable", err)
	}
	if fake.calls != 5 {
		t.Errorf("attempts = %d, want 5", fake.calls)
	}
	if got := sink.count(audit.SeverityWarning); got != 5 {
		t.Errorf("warning records = %d, want 5", got)
	}
	if got := sink.count(audit.SeverityCritical); got != 1 {
		t.Errorf("critical records = %d, want 1", got)
	}
}

func TestResilientVenueRejectionFailsFast(t *testing.T) {
	rejection := &VenueRejectedError{Status: 400, Label: "INVALID_PARAM_VALUE", Message: "amount below minimum"}
	fake := &flakyExchange{failures: 100, err: rejection}
	sink := &recordingSink{}
	r := NewResilient(fake, 5, time.Millisecond, sink)

	_, err := r.PlaceLimitOrder(context.Background(), "XCAD_USDT", model.SideBuy, 15, 1.0)
	if !IsVenueRejected(err) {
		t.Fatalf("PlaceLimitOrder() error = %v, want venue rejection", err)
	}
	if errors.Is(err, ErrUnavailable) {
		t.Error("venue rejection must not be reported as unavailable")
	}
	if fake.calls != 1 {
		t.Errorf("attempts = %d, want 1 (no retry budget spent)", fake.calls)
	}
	if got := sink.count(audit.SeverityError); got != 1 {
		t.Errorf("error records = %d, want 1", got)
	}
}

func TestResilientContextCancellation(t *testing.T) {
	fake := &flakyExchange{failures: 100, err: errors.New("timeout")}
	r := NewResilient(fake, 5, 50*time.Millisecond, &recordingSink{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := r.FetchBalance(ctx); err == nil {
		t.Fatal("FetchBalance() expected error after context cancellation")
	}
	if fake.calls >= 5 {
		t.Errorf("attempts = %d, want fewer than budget after cancellation", fake.calls)
	}
}
