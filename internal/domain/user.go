package domain

import (
	"strconv"
	"strings"
	"time"
)

// SourceType tells how the user reached the bot.
type SourceType string

const (
	SourceDirectLink SourceType = "direct_link"
	SourcePostLink   SourceType = "post_link"
)

// PostLinkPayloadPrefix prefixes /start payloads of post deep links.
const PostLinkPayloadPrefix = "post_short_link_id-"

// User is the per-chat user record.
type User struct {
	ID           int64
	ChatID       int64
	SourceType   SourceType
	IsBotBlocked bool
	HasContact   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ParseStartPayload extracts the post short link id from a /start payload.
// ok is false for any payload that is not a post deep link.
func ParseStartPayload(payload string) (postID int64, ok bool) {
	payload = strings.TrimSpace(payload)
	if !strings.HasPrefix(payload, PostLinkPayloadPrefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(payload, PostLinkPayloadPrefix), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// SourceFromStartPayload infers the user source from a /start payload.
func SourceFromStartPayload(payload string) SourceType {
	if _, ok := ParseStartPayload(payload); ok {
		return SourcePostLink
	}
	return SourceDirectLink
}
