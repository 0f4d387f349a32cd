package domain

// FactorKind identifies the sub-analyzer a risk factor came from.
type FactorKind string

const (
	FactorFakeChannel  FactorKind = "FAKE_CHANNEL"
	FactorHolders      FactorKind = "HOLDERS"
	FactorLiquidity    FactorKind = "LIQUIDITY"
	FactorTransactions FactorKind = "TRANSACTIONS"
	FactorDescription  FactorKind = "DESCRIPTION"
)

// RiskFactor is a single human-readable risk finding tagged with its origin
// and the sub-score it contributed, so downstream consumers never need to
// re-parse message text.
type RiskFactor struct {
	Kind    FactorKind
	Message string
	Score   float64
}

// RiskAssessment is the outcome of scoring a token profile.
// Computed fresh on every scan; never persisted incrementally.
type RiskAssessment struct {
	Score   float64 // in [0, 1], unweighted mean of five sub-scores
	IsScam  bool    // Score >= configured threshold
	Factors []RiskFactor
}
