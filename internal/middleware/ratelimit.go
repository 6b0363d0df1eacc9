package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/guildhall/internal/model"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // API全般のレート（req/sec）。120/60 = 2 req/sec
	GeneralBurst    int           // API全般のバーストサイズ
	InviteRate      rate.Limit    // 招待コード利用のレート（req/sec）。10/60
	InviteBurst     int           // 招待コード利用のバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// API全般 120 req/min/profile、招待コード利用 10 req/min/profile
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(120.0 / 60.0), // 2 req/sec
		GeneralBurst:    120,
		InviteRate:      rate.Limit(10.0 / 60.0), // ~0.167 req/sec
		InviteBurst:     10,
		CleanupInterval: 5 * time.Minute,
	}
}

// NewRateLimiterConfig は1分あたりのリクエスト数からレート制限設定を生成する。
// 0以下の値はデフォルトを使う。
func NewRateLimiterConfig(generalPerMin, invitePerMin int) RateLimiterConfig {
	cfg := DefaultRateLimiterConfig()
	if generalPerMin > 0 {
		cfg.GeneralRate = rate.Limit(float64(generalPerMin) / 60.0)
		cfg.GeneralBurst = generalPerMin
	}
	if invitePerMin > 0 {
		cfg.InviteRate = rate.Limit(float64(invitePerMin) / 60.0)
		cfg.InviteBurst = invitePerMin
	}
	return cfg
}

// profileBuckets はプロフィールIDごとのトークンバケットを1種類分保持する。
type profileBuckets struct {
	kind  string
	limit rate.Limit
	burst int

	mu      sync.Mutex
	entries map[string]*bucketEntry
}

type bucketEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

func newProfileBuckets(kind string, limit rate.Limit, burst int) *profileBuckets {
	return &profileBuckets{
		kind:    kind,
		limit:   limit,
		burst:   burst,
		entries: make(map[string]*bucketEntry),
	}
}

// allow はプロフィールのバケットからトークンを1つ消費できるかを返す。
func (b *profileBuckets) allow(profileID string, now time.Time) bool {
	b.mu.Lock()
	e, ok := b.entries[profileID]
	if !ok {
		e = &bucketEntry{limiter: rate.NewLimiter(b.limit, b.burst)}
		b.entries[profileID] = e
	}
	e.lastAccess = now
	b.mu.Unlock()

	return e.limiter.AllowN(now, 1)
}

// sweep はcutoffより前に最後にアクセスされたバケットを削除する。
func (b *profileBuckets) sweep(cutoff time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for profileID, e := range b.entries {
		if e.lastAccess.Before(cutoff) {
			delete(b.entries, profileID)
		}
	}
}

func (b *profileBuckets) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// middleware はこのバケットでレート制限するミドルウェアを返す。
// リクエストコンテキストにプロフィールIDが含まれている必要がある（SessionMiddlewareの後に配置）。
func (b *profileBuckets) middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			profileID, err := ProfileIDFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			if !b.allow(profileID, time.Now()) {
				writeRateLimitResponse(w, b.limit)
				slog.Warn("rate limit exceeded",
					slog.String("profile_id", profileID),
					slog.String("limit_type", b.kind),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimiter はプロフィールごとのレート制限を管理する。
// API全般と招待コード利用の2つのバケットは互いに独立している。
type RateLimiter struct {
	cleanupInterval time.Duration
	general         *profileBuckets
	invite          *profileBuckets
	stopCh          chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		cleanupInterval: config.CleanupInterval,
		general:         newProfileBuckets("general", config.GeneralRate, config.GeneralBurst),
		invite:          newProfileBuckets("invite", config.InviteRate, config.InviteBurst),
		stopCh:          make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return rl.general.middleware()
}

// InviteMiddleware は招待コード利用専用のレート制限ミドルウェアを返す。
func (rl *RateLimiter) InviteMiddleware() func(next http.Handler) http.Handler {
	return rl.invite.middleware()
}

// GeneralLimiterCount は現在管理されているAPI全般リミッターのエントリ数を返す。
func (rl *RateLimiter) GeneralLimiterCount() int {
	return rl.general.size()
}

// InviteLimiterCount は現在管理されている招待コード利用リミッターのエントリ数を返す。
func (rl *RateLimiter) InviteLimiterCount() int {
	return rl.invite.size()
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			rl.cleanup(now)
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセスからCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup(now time.Time) {
	cutoff := now.Add(-2 * rl.cleanupInterval)
	rl.general.sweep(cutoff)
	rl.invite.sweep(cutoff)
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	// Retry-Afterの算出: 1トークンが補充されるまでの秒数
	retryAfterSec := int(math.Ceil(1.0 / float64(r)))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     "RATE_LIMIT_EXCEEDED",
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   fmt.Sprintf("%d秒ほど待ってから再度お試しください。", retryAfterSec),
	})
}
