package models

import "time"

// IndexQuote is a quote for one market index proxy.
type IndexQuote struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	PercentChange float64 `json:"percent_change"`
}

// Mover is one entry in the top gainers/losers lists.
type Mover struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	PercentChange float64 `json:"percent_change"`
}

// Sentiment holds bullish/bearish/neutral percentages over the watch-list.
// The three values always sum to exactly 100.
type Sentiment struct {
	Bullish int `json:"bullish"`
	Bearish int `json:"bearish"`
	Neutral int `json:"neutral"`
}

// MarketStats aggregates cross-sectional statistics over the watch-list.
type MarketStats struct {
	TotalVolume   float64 `json:"total_volume"`
	AvgChange     float64 `json:"avg_change"`
	Volatility    float64 `json:"volatility"` // stddev of percent changes
	AdvancerCount int     `json:"advancers"`
	DeclinerCount int     `json:"decliners"`
}

// MarketOverview is the aggregator's full snapshot.
type MarketOverview struct {
	Indices     []IndexQuote `json:"indices"`
	TopGainers  []Mover      `json:"top_gainers"`
	TopLosers   []Mover      `json:"top_losers"`
	Sentiment   Sentiment    `json:"sentiment"`
	Stats       MarketStats  `json:"stats"`
	LastUpdated time.Time    `json:"last_updated"`
}
