package models

// Instrument maps an asset id to the symbol a market-data provider knows it
// by. Assets without an instrument are looked up by their own symbol.
type Instrument struct {
	Base
	AssetID        string `gorm:"not null;uniqueIndex" json:"asset_id"`
	Name           string `json:"name"`
	Provider       string `gorm:"not null" json:"provider"`
	ProviderSymbol string `gorm:"not null" json:"provider_symbol"`
	Exchange       string `json:"exchange,omitempty"`
	Currency       string `gorm:"not null;size:3" json:"currency"`
}
