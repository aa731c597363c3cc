package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/logger"

	"github.com/redis/go-redis/v9"
)

// DefaultMembershipTTL is how long a positive membership answer is trusted.
const DefaultMembershipTTL = 10 * time.Minute

// MemberLookup is the provider call behind MembershipChecker.
type MemberLookup interface {
	IsChannelMember(ctx context.Context, channel string, userID int64) (bool, error)
}

// MembershipChecker answers "is this user subscribed to the channel" with a Redis cache
// of positive answers. A nil Redis client disables caching; an empty channel disables the check.
type MembershipChecker struct {
	lookup  MemberLookup
	rdb     redis.Cmdable
	channel string
	ttl     time.Duration
	log     *logger.Logger
}

// NewMembershipChecker creates a checker for channel.
func NewMembershipChecker(lookup MemberLookup, rdb redis.Cmdable, channel string, log *logger.Logger) *MembershipChecker {
	return &MembershipChecker{
		lookup:  lookup,
		rdb:     rdb,
		channel: channel,
		ttl:     DefaultMembershipTTL,
		log:     log,
	}
}

// Channel returns the configured announcement channel.
func (m *MembershipChecker) Channel() string {
	return m.channel
}

// IsMember checks membership. fresh skips the cache read.
func (m *MembershipChecker) IsMember(ctx context.Context, userID int64, fresh bool) (bool, error) {
	if m.channel == "" {
		return true, nil
	}

	key := fmt.Sprintf("tg:member:%s:%d", m.channel, userID)
	if m.rdb != nil && !fresh {
		if v, err := m.rdb.Get(ctx, key).Result(); err == nil && v == "1" {
			return true, nil
		} else if err != nil && err != redis.Nil {
			m.log.WithContext(ctx).Warn("membership cache read failed", "error", err)
		}
	}

	ok, err := m.lookup.IsChannelMember(ctx, m.channel, userID)
	if err != nil {
		return false, err
	}

	if m.rdb != nil {
		if ok {
			if err := m.rdb.Set(ctx, key, "1", m.ttl).Err(); err != nil {
				m.log.WithContext(ctx).Warn("membership cache write failed", "error", err)
			}
		} else {
			m.rdb.Del(ctx, key)
		}
	}
	return ok, nil
}
