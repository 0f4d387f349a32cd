// Package notify delivers operator alerts through a Telegram bot.
package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"cryptspider/internal/domain"
	"cryptspider/internal/logger"
)

const (
	maxReasons        = 5
	tokenDescLimit    = 200
	channelDescLimit  = 150
	maxFloodRetries   = 1
	defaultFloodPause = 30 * time.Second
)

// Notifier sends operator alerts. Implementations must be safe for
// concurrent use.
type Notifier interface {
	// ScamAlert announces a token that crossed the scam threshold.
	ScamAlert(ctx context.Context, token *domain.Token, assessment domain.RiskAssessment, report string) error

	// ChannelAlert announces a newly discovered high-relevance channel.
	ChannelAlert(ctx context.Context, ch *domain.Channel) error

	// CandidateAlert announces a candidate token mentioned in chats but
	// not yet listed on the marketplace.
	CandidateAlert(ctx context.Context, c *domain.CandidateToken) error
}

// BotNotifier implements Notifier over the Telegram bot API.
type BotNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *logger.Logger
}

// NewBotNotifier authorizes the bot and returns a notifier that posts to
// the given chat.
func NewBotNotifier(token string, chatID int64) (*BotNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("authorize bot: %w", err)
	}
	return &BotNotifier{
		bot:    bot,
		chatID: chatID,
		log:    logger.Get().With("component", "notify"),
	}, nil
}

// ScamAlert announces a token that crossed the scam threshold.
func (n *BotNotifier) ScamAlert(ctx context.Context, token *domain.Token, assessment domain.RiskAssessment, report string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "🚨 <b>Скам-предупреждение</b> 🚨\n\n")
	fmt.Fprintf(&b, "Токен: <b>%s</b> (%s)\n", html.EscapeString(token.Name), html.EscapeString(token.Ticker))
	fmt.Fprintf(&b, "Вероятность скама: <b>%.1f%%</b>\n\n", assessment.Score*100)

	if len(assessment.Factors) > 0 {
		b.WriteString("<b>Причины:</b>\n")
		for i, f := range assessment.Factors {
			if i == maxReasons {
				fmt.Fprintf(&b, "...и еще %d причин\n", len(assessment.Factors)-maxReasons)
				break
			}
			fmt.Fprintf(&b, "%d. %s\n", i+1, html.EscapeString(f.Message))
		}
	}

	if report != "" {
		fmt.Fprintf(&b, "\n%s\n", html.EscapeString(truncate(report, tokenDescLimit)))
	}
	b.WriteString("\n⚠️ <b>Будьте осторожны при инвестировании!</b>")

	return n.send(ctx, b.String())
}

// ChannelAlert announces a newly discovered high-relevance channel.
func (n *BotNotifier) ChannelAlert(ctx context.Context, ch *domain.Channel) error {
	title := ch.Title
	if title == "" {
		title = ch.Username
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📡 <b>Обнаружен новый релевантный канал!</b>\n\n")
	fmt.Fprintf(&b, "Канал: <b>@%s</b>\n", html.EscapeString(ch.Username))
	fmt.Fprintf(&b, "Название: %s\n", html.EscapeString(title))
	fmt.Fprintf(&b, "Релевантность: %.2f\n", ch.RelevanceScore)
	fmt.Fprintf(&b, "Участников: %d\n", ch.MemberCount)

	if ch.Description != "" {
		fmt.Fprintf(&b, "\n<b>Описание:</b>\n%s\n", html.EscapeString(truncate(ch.Description, channelDescLimit)))
	}
	b.WriteString("\n🔍 <i>В этом канале часто обсуждаются крипто-токены.</i>")

	return n.send(ctx, b.String())
}

// CandidateAlert announces an unlisted candidate token.
func (n *BotNotifier) CandidateAlert(ctx context.Context, c *domain.CandidateToken) error {
	var b strings.Builder
	fmt.Fprintf(&b, "🆕 <b>Новый потенциальный токен обнаружен!</b>\n\n")
	fmt.Fprintf(&b, "Название: <b>%s</b>\n", html.EscapeString(c.Name))
	fmt.Fprintf(&b, "Уверенность: %.2f\n", c.Confidence)
	fmt.Fprintf(&b, "Упоминаний: %d\n", c.MentionCount)

	if c.Message != "" {
		fmt.Fprintf(&b, "\n<b>Информация:</b>\n%s\n", html.EscapeString(truncate(c.Message, tokenDescLimit)))
	}
	b.WriteString("\n🔍 <i>Этот токен еще не появился на маркетплейсе, но активно обсуждается в Telegram.</i>")

	return n.send(ctx, b.String())
}

// send posts an HTML message, retrying once after a flood-wait pause.
func (n *BotNotifier) send(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	for attempt := 0; ; attempt++ {
		_, err := n.bot.Send(msg)
		if err == nil {
			return nil
		}

		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 && attempt < maxFloodRetries {
			pause := time.Duration(apiErr.RetryAfter) * time.Second
			if pause <= 0 {
				pause = defaultFloodPause
			}
			n.log.Warnf("flood limit hit, pausing %s", pause)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pause):
				continue
			}
		}
		return fmt.Errorf("send notification: %w", err)
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-3]) + "..."
}

// Verify interface compliance at compile time.
var _ Notifier = (*BotNotifier)(nil)
