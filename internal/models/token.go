package models

// TokenStats is the market snapshot served by the statistics aggregator.
// Only Price is guaranteed; the on-chain strategy leaves the rest zero.
type TokenStats struct {
	Price             float64 `json:"price"`
	MarketCap         float64 `json:"marketCap"`
	Liquidity         float64 `json:"liquidity"`
	Holders           int64   `json:"holders"`
	CirculatingSupply float64 `json:"circSupply"`
}
