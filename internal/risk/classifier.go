package risk

import "context"

// Sentiment is a classifier verdict over message or description text.
type Sentiment struct {
	Label      string  // e.g. "very negative", "neutral"
	Confidence float64 // in [0, 1]
}

// Classifier scores community sentiment around a token. Implementations
// may call out to an ML model; errors degrade to a skipped sub-check.
type Classifier interface {
	Classify(ctx context.Context, text string) (Sentiment, error)
}

// FixedClassifier always returns the same sentiment. The zero value is a
// neutral classifier that never raises the description score.
type FixedClassifier struct {
	Sentiment Sentiment
}

func (f FixedClassifier) Classify(_ context.Context, _ string) (Sentiment, error) {
	if f.Sentiment.Label == "" {
		return Sentiment{Label: "neutral"}, nil
	}
	return f.Sentiment, nil
}
