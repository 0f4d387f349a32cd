// Package extract pulls token mentions and channel links out of free-form
// chat text.
package extract

import (
	"regexp"
	"sort"
	"strings"
)

// Mention phrasing observed in launch-announcement channels, RU and EN.
// Each pattern captures the token name in group 1.
var tokenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)запуск\s+токена\s+([a-zA-Z0-9]+)`),
	regexp.MustCompile(`(?i)новый\s+токен\s+([a-zA-Z0-9]+)`),
	regexp.MustCompile(`(?i)листинг\s+на\s+\S+\s+([a-zA-Z0-9]+)`),
	regexp.MustCompile(`(?i)токен\s+([a-zA-Z0-9]+)\s+скоро`),
	regexp.MustCompile(`(?i)пресейл\s+([a-zA-Z0-9]+)`),
	regexp.MustCompile(`(?i)airdrop\s+([a-zA-Z0-9]+)`),
	regexp.MustCompile(`(?i)private\s+sale\s+([a-zA-Z0-9]+)`),
}

// "TICKER (Full Name)" style mentions.
var tickerPattern = regexp.MustCompile(`\b([A-Z]{2,10})\s+\(([^)]+)\)`)

var channelLinkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:https?://)?t\.me/([a-zA-Z0-9_]+)`),
	regexp.MustCompile(`@([a-zA-Z0-9_]{5,})`),
	regexp.MustCompile(`(?:https?://)?t\.me/\+([a-zA-Z0-9_-]+)`),
	regexp.MustCompile(`(?:https?://)?t\.me/joinchat/([a-zA-Z0-9_-]+)`),
}

// Extractor scans message text for token mentions and channel links.
// Safe for concurrent use.
type Extractor struct {
	keywords []string // lowercased gate terms
}

// NewExtractor creates an extractor gated on the given keyword list.
// A message without any keyword yields no token mentions.
func NewExtractor(keywords []string) *Extractor {
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.TrimSpace(strings.ToLower(k))
		if k != "" {
			lowered = append(lowered, k)
		}
	}
	return &Extractor{keywords: lowered}
}

// TokenMentions returns candidate token names found in text, deduplicated
// and sorted. Extraction only runs when the text contains at least one
// gate keyword; this keeps incidental capitalized words in off-topic
// messages from becoming candidates.
func (e *Extractor) TokenMentions(text string) []string {
	if !e.hasKeyword(text) {
		return nil
	}

	seen := make(map[string]struct{})
	for _, p := range tokenPatterns {
		for _, m := range p.FindAllStringSubmatch(text, -1) {
			seen[m[1]] = struct{}{}
		}
	}
	for _, m := range tickerPattern.FindAllStringSubmatch(text, -1) {
		seen[m[1]] = struct{}{}
	}

	return sortedKeys(seen)
}

// ChannelLinks returns channel usernames and invite hashes found in text,
// deduplicated and sorted. The literal "joinchat" path segment captured by
// the generic t.me pattern is filtered out.
func (e *Extractor) ChannelLinks(text string) []string {
	seen := make(map[string]struct{})
	for _, p := range channelLinkPatterns {
		for _, m := range p.FindAllStringSubmatch(text, -1) {
			if m[1] == "joinchat" {
				continue
			}
			seen[m[1]] = struct{}{}
		}
	}

	return sortedKeys(seen)
}

// KeywordHits counts how many gate keywords appear in text.
// Used for channel description relevance.
func (e *Extractor) KeywordHits(text string) int {
	lowered := strings.ToLower(text)
	n := 0
	for _, k := range e.keywords {
		if strings.Contains(lowered, k) {
			n++
		}
	}
	return n
}

func (e *Extractor) hasKeyword(text string) bool {
	lowered := strings.ToLower(text)
	for _, k := range e.keywords {
		if strings.Contains(lowered, k) {
			return true
		}
	}
	return false
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
