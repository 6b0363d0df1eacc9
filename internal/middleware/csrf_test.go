package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCSRFMiddleware_SafeMethodSetsCookie(t *testing.T) {
	handler := NewCSRFMiddleware(CSRFConfig{})(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/profiles/me", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var found bool
	for _, c := range w.Result().Cookies() {
		if c.Name == csrfCookieName {
			found = true
			if c.HttpOnly {
				t.Error("CSRF cookie must be readable from the frontend")
			}
			if len(c.Value) != 64 {
				t.Errorf("token length = %d, want 64", len(c.Value))
			}
		}
	}
	if !found {
		t.Error("expected CSRF cookie on safe request")
	}
}

func TestCSRFMiddleware_StateChangingRequests(t *testing.T) {
	tests := []struct {
		name       string
		cookie     string
		header     string
		wantStatus int
	}{
		{name: "一致", cookie: "tok", header: "tok", wantStatus: http.StatusOK},
		{name: "Cookieなし", header: "tok", wantStatus: http.StatusForbidden},
		{name: "ヘッダーなし", cookie: "tok", wantStatus: http.StatusForbidden},
		{name: "不一致", cookie: "tok", header: "other", wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewCSRFMiddleware(CSRFConfig{})(okHandler())

			req := httptest.NewRequest(http.MethodPost, "/api/invites/abc", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set(csrfHeaderName, tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusForbidden {
				var body ErrorResponseBody
				if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
					t.Fatalf("failed to decode body: %v", err)
				}
				if body.Code != "CSRF_TOKEN_INVALID" {
					t.Errorf("code = %q, want CSRF_TOKEN_INVALID", body.Code)
				}
			}
		})
	}
}

// TestCSRFTokenHandler_ReusesExistingCookie は既存のトークンを再発行せずに返すことを検証する。
func TestCSRFTokenHandler_ReusesExistingCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing"})
	w := httptest.NewRecorder()
	NewCSRFTokenHandler(CSRFConfig{}).ServeHTTP(w, req)

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Token != "existing" {
		t.Errorf("token = %q, want existing", body.Token)
	}
	if len(w.Result().Cookies()) != 0 {
		t.Error("existing token should not be reissued")
	}
}

func TestCSRFTokenHandler_IssuesNewToken(t *testing.T) {
	w := httptest.NewRecorder()
	NewCSRFTokenHandler(CSRFConfig{CookieSecure: true}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || !cookies[0].Secure {
		t.Fatalf("cookies = %+v, want one secure CSRF cookie", cookies)
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Token != cookies[0].Value {
		t.Errorf("token %q does not match cookie %q", body.Token, cookies[0].Value)
	}
}

// TestCSRFTokenHandler_ReportsHeaderName はフロントエンドが使うヘッダー名を返すことを検証する。
func TestCSRFTokenHandler_ReportsHeaderName(t *testing.T) {
	w := httptest.NewRecorder()
	NewCSRFTokenHandler(CSRFConfig{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))

	var body csrfTokenResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Header != "X-CSRF-Token" {
		t.Errorf("header = %q, want X-CSRF-Token", body.Header)
	}
}

func TestCSRFIssuer_CookieLifetime(t *testing.T) {
	tests := []struct {
		name       string
		ttl        time.Duration
		wantMaxAge int
	}{
		{"未指定は24時間", 0, 86400},
		{"指定値を使う", time.Hour, 3600},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issuer := newCSRFIssuer(CSRFConfig{TokenTTL: tt.ttl, CookieDomain: "guildhall.example.com"})
			w := httptest.NewRecorder()
			if _, err := issuer.current(w, httptest.NewRequest(http.MethodGet, "/", nil)); err != nil {
				t.Fatalf("current() error = %v", err)
			}

			cookies := w.Result().Cookies()
			if len(cookies) != 1 {
				t.Fatalf("cookies = %d, want 1", len(cookies))
			}
			if cookies[0].MaxAge != tt.wantMaxAge {
				t.Errorf("MaxAge = %d, want %d", cookies[0].MaxAge, tt.wantMaxAge)
			}
			if cookies[0].SameSite != http.SameSiteStrictMode {
				t.Errorf("SameSite = %v, want Strict", cookies[0].SameSite)
			}
		})
	}
}

// TestCSRFIssuer_GenerationFailure は乱数生成に失敗した場合にCookieを設定しないことを検証する。
func TestCSRFIssuer_GenerationFailure(t *testing.T) {
	issuer := newCSRFIssuer(CSRFConfig{})
	issuer.newToken = func() (string, error) { return "", errors.New("entropy exhausted") }

	w := httptest.NewRecorder()
	if _, err := issuer.current(w, httptest.NewRequest(http.MethodGet, "/", nil)); err == nil {
		t.Fatal("current() should fail when token generation fails")
	}
	if len(w.Result().Cookies()) != 0 {
		t.Error("no cookie should be set on failure")
	}
}
