package domain

import "time"

// Token represents a marketplace-listed token.
// Corresponds to the tokens table in PostgreSQL; Address is the unique key.
type Token struct {
	Address         string // PRIMARY KEY, contract address
	Ticker          string
	ShortName       string // marketplace short identifier used in detail URLs
	Name            string
	Description     string
	TotalSupply     float64
	MintedAt        *time.Time
	CreatorAddress  string
	Website         string
	Telegram        string
	Twitter         string
	ImageURL        string
	IsScam          bool    // last assessment decision
	ScamProbability float64 // last assessment score
	LastUpdated     time.Time
}

// Holder is a single entry of a token's holder distribution.
type Holder struct {
	Address string
	Amount  float64
	Percent float64 // percentage of total supply, non-negative
}

// Transaction is a single on-chain transfer of a token.
type Transaction struct {
	Hash        string
	FromAddress string
	ToAddress   string
	Amount      float64
	Timestamp   time.Time
}
