package model

// Side identifies the direction of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderStatus is the exchange-reported lifecycle state of an order.
type OrderStatus string

const (
	StatusOpen     OrderStatus = "open"
	StatusClosed   OrderStatus = "closed"
	StatusCanceled OrderStatus = "cancelled"
	StatusUnknown  OrderStatus = "unknown"
)

// Order is a transient local view of an exchange-owned order. The agent never
// caches these across cycles; open orders are re-fetched every time.
type Order struct {
	ID     string      `json:"id"`
	Pair   string      `json:"pair"`
	Side   Side        `json:"side"`
	Price  float64     `json:"price"`
	Amount float64     `json:"amount"`
	Status OrderStatus `json:"status"`
}

// RebalanceOrder is an in-flight corrective market order tracked by the fund
// rebalancer until the exchange reports it closed or cancelled.
type RebalanceOrder struct {
	OrderID string      `json:"order_id"`
	Side    Side        `json:"side"`
	Amount  float64     `json:"amount"`
	Status  OrderStatus `json:"status"`
}

// Balance is a point-in-time snapshot of the two currencies of the traded
// pair. It must be re-fetched every cycle, never assumed stable.
type Balance struct {
	QuoteTotal float64 `json:"quote_total"`
	BaseTotal  float64 `json:"base_total"`
}
