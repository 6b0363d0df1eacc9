// Package cache はRedisによるセッション参照のキャッシュを提供する。
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/guildhall/internal/model"
)

const sessionKeyPrefix = "guildhall:session:"

// SessionSource はキャッシュミス時のセッション取得元。
// repository.SessionRepositoryの部分集合として定義する。
type SessionSource interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// cachedSession はRedisに保存するセッションのJSON表現。
type cachedSession struct {
	ProfileID string    `json:"profile_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionCache はセッション検索結果をRedisにキャッシュするSessionSource。
// Redisの障害時は取得元へフォールバックする。
type SessionCache struct {
	client *redis.Client
	source SessionSource
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisClient はURLからRedisクライアントを生成し、疎通を確認する。
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("Redis URLの解析に失敗しました: %w", err)
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("Redisへの接続に失敗しました: %w", err)
	}
	return client, nil
}

// NewSessionCache はSessionCacheを生成する。
// キャッシュの有効期間はttlとセッション自体の残り有効期間の短い方になる。
func NewSessionCache(client *redis.Client, source SessionSource, ttl time.Duration) *SessionCache {
	return &SessionCache{
		client: client,
		source: source,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (c *SessionCache) key(id string) string {
	return sessionKeyPrefix + id
}

// FindByID はセッションを取得する。見つからないか期限切れの場合はnilを返す。
func (c *SessionCache) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if sess, ok := c.lookup(ctx, id); ok {
		return sess, nil
	}

	sess, err := c.source.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}

	c.store(ctx, sess)
	return sess, nil
}

func (c *SessionCache) lookup(ctx context.Context, id string) (*model.Session, bool) {
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		slog.Warn("session cache lookup failed",
			slog.String("error", err.Error()),
		)
		return nil, false
	}

	var cs cachedSession
	if err := json.Unmarshal(data, &cs); err != nil {
		slog.Warn("session cache entry is corrupted",
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	if !cs.ExpiresAt.After(c.now()) {
		return nil, false
	}

	return &model.Session{
		ID:        id,
		ProfileID: cs.ProfileID,
		ExpiresAt: cs.ExpiresAt,
		CreatedAt: cs.CreatedAt,
	}, true
}

func (c *SessionCache) store(ctx context.Context, sess *model.Session) {
	ttl := c.ttl
	if remaining := sess.ExpiresAt.Sub(c.now()); remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return
	}

	data, err := json.Marshal(cachedSession{
		ProfileID: sess.ProfileID,
		ExpiresAt: sess.ExpiresAt,
		CreatedAt: sess.CreatedAt,
	})
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(sess.ID), data, ttl).Err(); err != nil {
		slog.Warn("session cache store failed",
			slog.String("error", err.Error()),
		)
	}
}
