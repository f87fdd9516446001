package model

import "time"

// Candle represents a single OHLCV price candle.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume,omitempty"`
}

// Ticker carries the last traded price for a pair.
type Ticker struct {
	Pair string  `json:"pair"`
	Last float64 `json:"last"`
}
