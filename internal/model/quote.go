package model

// IndicatorSnapshot holds the indicator values a quote was derived from.
type IndicatorSnapshot struct {
	RSI  float64 `json:"rsi"`
	NATR float64 `json:"natr"`
}

// Quote is a single cycle's pricing decision: a momentum-adjusted reference
// price with buy/sell quotes spread around it by recent volatility.
// Whenever Spread > 0, Buy < Reference < Sell holds.
type Quote struct {
	Reference  float64           `json:"reference"`
	Buy        float64           `json:"buy"`
	Sell       float64           `json:"sell"`
	Spread     float64           `json:"spread"`
	Indicators IndicatorSnapshot `json:"indicators"`
}

// SpreadPercentage is the distance between the quoted prices relative to the
// reference price, expressed in percent.
func (q Quote) SpreadPercentage() float64 {
	if q.Reference == 0 {
		return 0
	}
	return (q.Sell - q.Buy) / q.Reference * 100
}
