package discovery

import (
	"time"

	"cryptspider/internal/domain"
)

// Weights distributes relevance across the five scoring components.
// Nominally sums to 1.0; the composite is a plain sum, so out-of-range
// component inputs can push it past 1.0.
type Weights struct {
	Mentions    float64
	Members     float64
	Activity    float64
	Description float64
	Age         float64
}

// DefaultWeights mirror the production tuning.
func DefaultWeights() Weights {
	return Weights{
		Mentions:    0.4,
		Members:     0.2,
		Activity:    0.15,
		Description: 0.15,
		Age:         0.1,
	}
}

// InitialRelevance is assigned to a channel on registration, before any
// scan has produced component data.
const InitialRelevance = 0.5

// Score computes channel relevance as the weighted sum of mention
// density, member scale, scan recency, description keyword density and
// an age band. keywordHits counts keyword occurrences in the channel
// description.
func Score(ch *domain.Channel, keywordHits int, w Weights, now time.Time) float64 {
	mentions := clamp01(float64(ch.MentionCount)/10) * w.Mentions
	members := clamp01(float64(ch.MemberCount)/10000) * w.Members

	// Unweighted 0.5 defaults for unscanned/undescribed channels keep a
	// fresh registration near InitialRelevance instead of near zero.
	activity := 0.5
	if ch.LastScannedAt != nil {
		days := now.Sub(*ch.LastScannedAt).Hours() / 24
		activity = max64(0.1, 1-days/30) * w.Activity
	}

	description := 0.5
	if ch.Description != "" {
		description = clamp01(float64(keywordHits)/5) * w.Description
	}

	age := 0.5 * w.Age
	if ch.CreatedAt != nil {
		days := now.Sub(*ch.CreatedAt).Hours() / 24
		var band float64
		switch {
		case days < 7:
			band = 0.2
		case days < 30:
			band = 0.5
		case days < 365:
			band = 0.9 // peak preference for established but not ancient
		default:
			band = 0.7
		}
		age = band * w.Age
	}

	return mentions + members + activity + description + age
}

func clamp01(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}

func max64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
