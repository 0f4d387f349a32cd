package domain

import "time"

// CandidateToken is a token name seen in chat text but not yet confirmed on
// the marketplace. Corresponds to the candidate_tokens table; Name is the
// unique key. Confidence grows with repeated mentions (capped at 1.0) until
// the candidate is either reconciled against the marketplace or surfaced to
// operators as an unmatched high-confidence find.
type CandidateToken struct {
	Name          string // PRIMARY KEY, extracted candidate name
	Ticker        string
	Message       string // originating message text
	MentionCount  int
	Confidence    float64 // in [0, 1]
	FoundOnMarket bool
	TokenAddress  *string // set once reconciled to a marketplace token
	FirstSeenAt   time.Time
	LastMentioned time.Time
	NotifiedAt    *time.Time // set when the new-candidate alert fired
}
