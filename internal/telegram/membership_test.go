package telegram

import (
	"context"
	"testing"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLookup struct {
	member bool
	calls  int
}

func (l *countingLookup) IsChannelMember(context.Context, string, int64) (bool, error) {
	l.calls++
	return l.member, nil
}

func TestMembershipCachesPositiveAnswers(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	lookup := &countingLookup{member: true}
	checker := NewMembershipChecker(lookup, rdb, "@wewall", logger.Nop())
	ctx := context.Background()

	ok, err := checker.IsMember(ctx, 5, false)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = checker.IsMember(ctx, 5, false)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, lookup.calls)

	lookup.member = false
	ok, err = checker.IsMember(ctx, 5, true)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, lookup.calls)
	assert.False(t, mr.Exists("tg:member:@wewall:5"))
}

func TestMembershipWithoutChannel(t *testing.T) {
	lookup := &countingLookup{}
	ok, err := NewMembershipChecker(lookup, nil, "", logger.Nop()).IsMember(context.Background(), 5, false)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, lookup.calls)
}
