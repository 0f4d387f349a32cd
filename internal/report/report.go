// Package report produces human-readable token risk summaries.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"cryptspider/internal/domain"
	"cryptspider/internal/logger"
)

const defaultTimeout = 30 * time.Second

const systemPrompt = "Ты аналитик крипто-токенов. По данным о токене и факторам риска " +
	"составь короткий отчёт (3-5 предложений) на русском языке: что за токен, " +
	"какие признаки риска обнаружены и насколько им стоит доверять. Без вступлений."

// Generator produces a narrative report for a token assessment.
type Generator interface {
	Generate(ctx context.Context, token *domain.Token, assessment domain.RiskAssessment) (string, error)
}

// OpenAIGenerator implements Generator with a chat-completion model.
type OpenAIGenerator struct {
	client  openai.Client
	model   openai.ChatModel
	timeout time.Duration
	log     *logger.Logger
}

// NewOpenAIGenerator creates a generator for the given API key and model.
func NewOpenAIGenerator(apiKey, model string) *OpenAIGenerator {
	return &OpenAIGenerator{
		client:  openai.NewClient(option.WithAPIKey(apiKey)),
		model:   openai.ChatModel(model),
		timeout: defaultTimeout,
		log:     logger.Get().With("component", "report"),
	}
}

// Generate asks the model for a narrative summary. A generation failure
// degrades to a plain factor listing so alerts never go out empty.
func (g *OpenAIGenerator) Generate(ctx context.Context, token *domain.Token, assessment domain.RiskAssessment) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(promptFor(token, assessment)),
		},
	})
	if err != nil {
		g.log.Warnf("report generation for %s failed: %v", token.Ticker, err)
		return FallbackReport(token, assessment), nil
	}
	if len(resp.Choices) == 0 {
		return FallbackReport(token, assessment), nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// FallbackReport renders a plain-text factor listing used when model
// generation is unavailable.
func FallbackReport(token *domain.Token, assessment domain.RiskAssessment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Токен %s (%s): вероятность скама %.0f%%.", token.Name, token.Ticker, assessment.Score*100)
	for _, f := range assessment.Factors {
		fmt.Fprintf(&b, " %s.", strings.TrimSuffix(f.Message, "."))
	}
	return b.String()
}

func promptFor(token *domain.Token, assessment domain.RiskAssessment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Токен: %s (%s)\n", token.Name, token.Ticker)
	if token.Description != "" {
		fmt.Fprintf(&b, "Описание: %s\n", token.Description)
	}
	fmt.Fprintf(&b, "Оценка риска: %.2f\n", assessment.Score)
	b.WriteString("Факторы риска:\n")
	for _, f := range assessment.Factors {
		fmt.Fprintf(&b, "- [%s] %s (%.2f)\n", f.Kind, f.Message, f.Score)
	}
	return b.String()
}

// NoopGenerator returns the fallback report without calling any model.
// Used when no API key is configured.
type NoopGenerator struct{}

func (NoopGenerator) Generate(_ context.Context, token *domain.Token, assessment domain.RiskAssessment) (string, error) {
	return FallbackReport(token, assessment), nil
}

// Verify interface compliance at compile time.
var (
	_ Generator = (*OpenAIGenerator)(nil)
	_ Generator = NoopGenerator{}
)
