// Package postlink serves promotional posts reached through /start deep links.
// Posts are immutable once created, so reads go through an in-process cache.
package postlink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/skip2/go-qrcode"
	"golang.org/x/sync/singleflight"

	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/internal/domain"
	"github.com/mmdev2003/real-estate-ai-tg-bot-sub001/platform/logger"
)

// CacheTTL is how long a post stays in the read cache.
const CacheTTL = time.Hour

const qrSize = 256

// Store persists posts.
type Store interface {
	CreatePostShortLink(ctx context.Context, link domain.PostShortLink) (domain.PostShortLink, error)
	GetPostShortLink(ctx context.Context, id int64) (domain.PostShortLink, error)
}

// Created is the result of registering a post.
type Created struct {
	Post     domain.PostShortLink
	DeepLink string
	QRPNG    []byte
}

// Service creates and reads posts.
type Service struct {
	store       Store
	cache       *bigcache.BigCache
	group       singleflight.Group
	botUsername string
	log         *logger.Logger
}

// NewCache builds the read cache used by the service.
func NewCache(ctx context.Context) (*bigcache.BigCache, error) {
	cfg := bigcache.DefaultConfig(CacheTTL)
	cfg.Verbose = false
	return bigcache.New(ctx, cfg)
}

// NewService creates the service. cache may be nil to disable caching.
func NewService(store Store, cache *bigcache.BigCache, botUsername string, log *logger.Logger) *Service {
	return &Service{store: store, cache: cache, botUsername: botUsername, log: log}
}

// DeepLink is the bot link that opens the post.
func DeepLink(botUsername string, id int64) string {
	return fmt.Sprintf("https://t.me/%s?start=%s%d", botUsername, domain.PostLinkPayloadPrefix, id)
}

// Create stores a post and returns its deep link with a QR code of it.
func (s *Service) Create(ctx context.Context, link domain.PostShortLink) (Created, error) {
	post, err := s.store.CreatePostShortLink(ctx, link)
	if err != nil {
		return Created{}, fmt.Errorf("create post short link: %w", err)
	}
	s.put(post)

	deepLink := DeepLink(s.botUsername, post.ID)
	png, err := qrcode.Encode(deepLink, qrcode.Medium, qrSize)
	if err != nil {
		return Created{}, fmt.Errorf("encode qr code: %w", err)
	}
	return Created{Post: post, DeepLink: deepLink, QRPNG: png}, nil
}

// Get returns a post, reading through the cache. Concurrent misses for one id share a query.
func (s *Service) Get(ctx context.Context, id int64) (domain.PostShortLink, error) {
	if post, ok := s.cached(id); ok {
		return post, nil
	}

	v, err, _ := s.group.Do(strconv.FormatInt(id, 10), func() (any, error) {
		post, err := s.store.GetPostShortLink(ctx, id)
		if err != nil {
			return domain.PostShortLink{}, err
		}
		s.put(post)
		return post, nil
	})
	if err != nil {
		return domain.PostShortLink{}, err
	}
	return v.(domain.PostShortLink), nil
}

func (s *Service) cached(id int64) (domain.PostShortLink, bool) {
	if s.cache == nil {
		return domain.PostShortLink{}, false
	}
	data, err := s.cache.Get(strconv.FormatInt(id, 10))
	if err != nil {
		if !errors.Is(err, bigcache.ErrEntryNotFound) {
			s.log.Warn("post cache read failed", "post_id", id, "error", err)
		}
		return domain.PostShortLink{}, false
	}
	var post domain.PostShortLink
	if err := json.Unmarshal(data, &post); err != nil {
		s.log.Warn("post cache entry corrupt", "post_id", id, "error", err)
		return domain.PostShortLink{}, false
	}
	return post, true
}

func (s *Service) put(post domain.PostShortLink) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(post)
	if err != nil {
		return
	}
	if err := s.cache.Set(strconv.FormatInt(post.ID, 10), data); err != nil {
		s.log.Warn("post cache write failed", "post_id", post.ID, "error", err)
	}
}
