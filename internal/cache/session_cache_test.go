package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/hitoshi/guildhall/internal/model"
)

type mockSessionSource struct {
	calls      int
	findByIDFn func(ctx context.Context, id string) (*model.Session, error)
}

func (m *mockSessionSource) FindByID(ctx context.Context, id string) (*model.Session, error) {
	m.calls++
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func setupCache(t *testing.T, source SessionSource, ttl time.Duration) (*SessionCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisClient: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return NewSessionCache(client, source, ttl), mr
}

func TestSessionCache_HitAfterMiss(t *testing.T) {
	expires := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	source := &mockSessionSource{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{ID: id, ProfileID: "profile-1", ExpiresAt: expires}, nil
		},
	}
	c, mr := setupCache(t, source, 5*time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		sess, err := c.FindByID(ctx, "sess-1")
		if err != nil {
			t.Fatalf("FindByID: %v", err)
		}
		if sess.ProfileID != "profile-1" || !sess.ExpiresAt.Equal(expires) {
			t.Errorf("session = %+v", sess)
		}
	}
	if source.calls != 1 {
		t.Errorf("source calls = %d, want 1", source.calls)
	}
	if ttl := mr.TTL(sessionKeyPrefix + "sess-1"); ttl != 5*time.Minute {
		t.Errorf("TTL = %v, want 5m", ttl)
	}
}

// TestSessionCache_TTLCappedBySessionExpiry はセッションの残り期間がキャッシュTTLを上限づけることを検証する。
func TestSessionCache_TTLCappedBySessionExpiry(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	source := &mockSessionSource{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{ID: id, ProfileID: "profile-1", ExpiresAt: now.Add(time.Minute)}, nil
		},
	}
	c, mr := setupCache(t, source, time.Hour)
	c.now = func() time.Time { return now }

	if _, err := c.FindByID(context.Background(), "sess-short"); err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if ttl := mr.TTL(sessionKeyPrefix + "sess-short"); ttl != time.Minute {
		t.Errorf("TTL = %v, want 1m", ttl)
	}
}

func TestSessionCache_MissingSessionNotCached(t *testing.T) {
	source := &mockSessionSource{}
	c, mr := setupCache(t, source, time.Minute)

	sess, err := c.FindByID(context.Background(), "unknown")
	if err != nil || sess != nil {
		t.Fatalf("FindByID = %v, %v; want nil, nil", sess, err)
	}
	if mr.Exists(sessionKeyPrefix + "unknown") {
		t.Error("missing session should not be cached")
	}
}

func TestSessionCache_ExpiredEntryIgnored(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	source := &mockSessionSource{}
	c, mr := setupCache(t, source, time.Hour)
	c.now = func() time.Time { return now }

	mr.Set(sessionKeyPrefix+"old", `{"profile_id":"p-1","expires_at":"2026-05-01T11:00:00Z"}`)

	sess, err := c.FindByID(context.Background(), "old")
	if err != nil || sess != nil {
		t.Fatalf("FindByID = %v, %v; want nil, nil", sess, err)
	}
	if source.calls != 1 {
		t.Errorf("expired entry should fall through to source, calls = %d", source.calls)
	}
}

func TestSessionCache_SourceErrorIsReturned(t *testing.T) {
	wantErr := errors.New("db down")
	source := &mockSessionSource{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return nil, wantErr
		},
	}
	c, _ := setupCache(t, source, time.Minute)

	if _, err := c.FindByID(context.Background(), "sess-1"); !errors.Is(err, wantErr) {
		t.Errorf("error = %v, want %v", err, wantErr)
	}
}

// TestSessionCache_RedisDownFallsBack はRedisがエラーを返す間も取得元から結果を返すことを検証する。
func TestSessionCache_RedisDownFallsBack(t *testing.T) {
	source := &mockSessionSource{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{ID: id, ProfileID: "profile-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}
	c, mr := setupCache(t, source, time.Minute)
	mr.SetError("ERR injected failure")

	sess, err := c.FindByID(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if sess == nil || sess.ProfileID != "profile-1" {
		t.Errorf("session = %+v", sess)
	}
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	if _, err := NewRedisClient(context.Background(), "not-a-url"); err == nil {
		t.Error("expected error for invalid URL")
	}
}

var _ SessionSource = (*SessionCache)(nil)
