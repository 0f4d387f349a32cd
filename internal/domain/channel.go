package domain

import "time"

// ChannelSource records how a channel entered the monitored set.
type ChannelSource string

const (
	SourceSeed          ChannelSource = "SEED"
	SourceTokenSocial   ChannelSource = "TOKEN_SOCIAL"
	SourceHiddenLink    ChannelSource = "HIDDEN_LINK"
	SourceMessageLink   ChannelSource = "MESSAGE_LINK"
	SourceKeywordSearch ChannelSource = "KEYWORD_SEARCH"
)

// Channel is a monitored chat channel.
// Corresponds to the channels table in PostgreSQL; ChannelID is the unique
// platform identifier. A channel is created on first observation, mutated
// on every scan, and retired (IsActive=false) by the cleanup pass — never
// deleted. Retirement is one-way: inactive channels are not re-activated
// automatically.
type Channel struct {
	ChannelID      string // PRIMARY KEY, platform-assigned identifier
	Username       string
	Title          string
	Description    string
	MemberCount    int
	CreatedAt      *time.Time // channel creation date, nil if unknown
	AddedAt        time.Time
	LastScannedAt  *time.Time // nil until the first scan
	IsActive       bool
	RelevanceScore float64 // 0.0–1.0+; additive factors may exceed 1.0
	MentionCount   int     // cumulative token mentions observed
	Source         ChannelSource
	SourceDetails  string
}

// Scanned reports whether the channel has ever been scanned.
func (c *Channel) Scanned() bool {
	return c.LastScannedAt != nil
}
