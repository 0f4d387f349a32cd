package domain

import "time"

// SocialLink is a social-media reference attached to a token profile.
type SocialLink struct {
	Type        string // lowercase platform name: "telegram", "twitter", "website"
	URL         string
	Description string
	CreatedAt   *time.Time // channel creation date when the platform exposes it
}

// Liquidity is a snapshot of a token's pooled liquidity.
type Liquidity struct {
	USD float64
}

// TokenProfile is the full picture of a token assembled from all remote
// sources. It is an immutable input to risk scoring: analyzers never mutate
// it. Absent data is represented by empty slices / nil pointers, never by
// an error.
type TokenProfile struct {
	Address     string
	Ticker      string
	ShortName   string
	Name        string
	Description string

	// Holders are expected sorted descending by Percent. The risk engine
	// re-sorts a copy before concentration checks, so unsorted feeds are
	// still scored correctly.
	Holders      []Holder
	Socials      []SocialLink
	Transactions []Transaction
	Reactions    map[string]int
	Liquidity    *Liquidity // nil when the liquidity source had no data
}
