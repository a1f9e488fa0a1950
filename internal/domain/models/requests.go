package models

// AddStockRequest is the body of POST /api/add-stock.
type AddStockRequest struct {
	Symbol string `json:"symbol" validate:"required,min=1,max=10"`
}

// AddStockResponse echoes the onboarded symbol with a first-look estimate.
type AddStockResponse struct {
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	CurrentPrice float64 `json:"currentPrice"`
	Prediction   float64 `json:"prediction"` // estimated next price
	Confidence   float64 `json:"confidence"` // percent, 0-100
	Direction    string  `json:"direction"`
}
