package models

import "time"

// PriceBar represents one daily OHLCV record, oldest-first ordering per symbol.
type PriceBar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Date returns the bar's trading date in YYYY-MM-DD form.
func (b PriceBar) Date() string {
	return b.Time.Format("2006-01-02")
}

// Quote is the latest session summary for a symbol.
type Quote struct {
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Current       float64 `json:"close"`
	PrevClose     float64 `json:"prev_close"`
	PercentChange float64 `json:"percent_change"`
}

// IntradayPoint is one (timestamp, price) sample of the current session.
// Timestamp is unix milliseconds to match chart consumers.
type IntradayPoint struct {
	Timestamp int64   `json:"timestamp"`
	Price     float64 `json:"price"`
}

// SearchResult is one symbol lookup match enriched with quote data.
type SearchResult struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	MarketCap     string  `json:"marketCap"`
	Volume        string  `json:"volume"`
}

// CompanyProfile holds the provider's company metadata for a symbol.
type CompanyProfile struct {
	Name      string
	MarketCap float64 // millions, provider convention
}

// LiveTrade is one tick from the realtime trade stream.
type LiveTrade struct {
	Symbol    string
	Timestamp int64 // unix seconds
	Price     float64
	Volume    float64
}
