package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/guildhall/internal/model"
)

const (
	// csrfCookieName はCSRFトークンを保持するCookieの名前。
	// フロントエンドがJavaScriptで読んでヘッダーに載せるため、HttpOnlyにしない。
	csrfCookieName = "csrf_token"

	// csrfHeaderName は状態変更リクエストでトークンを送るヘッダー名。
	csrfHeaderName = "X-CSRF-Token"

	// defaultCSRFTokenTTL はCSRFConfig.TokenTTLが未指定の場合のCookie有効期間。
	defaultCSRFTokenTTL = 24 * time.Hour
)

// CSRFConfig はCSRFミドルウェアの設定。
type CSRFConfig struct {
	CookieSecure bool
	CookieDomain string
	TokenTTL     time.Duration // 0の場合は24時間
}

// csrfIssuer はダブルサブミット方式のトークンCookieを発行・検証する。
type csrfIssuer struct {
	config   CSRFConfig
	newToken func() (string, error)
}

func newCSRFIssuer(config CSRFConfig) *csrfIssuer {
	if config.TokenTTL <= 0 {
		config.TokenTTL = defaultCSRFTokenTTL
	}
	return &csrfIssuer{config: config, newToken: generateCSRFToken}
}

// current はリクエストのCookieにあるトークンを返す。なければ新規に発行してCookieを設定する。
func (c *csrfIssuer) current(w http.ResponseWriter, r *http.Request) (string, error) {
	if cookie, err := r.Cookie(csrfCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	token, err := c.newToken()
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		Domain:   c.config.CookieDomain,
		MaxAge:   int(c.config.TokenTTL / time.Second),
		HttpOnly: false,
		Secure:   c.config.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
	return token, nil
}

// verify はCookieとヘッダーのトークンを定数時間で比較し、失敗理由を返す。成功時は空文字を返す。
func (c *csrfIssuer) verify(r *http.Request) string {
	cookie, err := r.Cookie(csrfCookieName)
	if err != nil || cookie.Value == "" {
		return "missing_cookie_token"
	}
	header := r.Header.Get(csrfHeaderName)
	if header == "" {
		return "missing_header_token"
	}
	if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) != 1 {
		return "token_mismatch"
	}
	return ""
}

// NewCSRFMiddleware はダブルサブミット方式のCSRF対策ミドルウェアを返す。
// 安全なメソッド（GET, HEAD, OPTIONS）は検証せず、トークンCookieがなければ発行する。
// それ以外のメソッドはCookieとX-CSRF-Tokenヘッダーの一致を必須とし、不一致は403を返す。
func NewCSRFMiddleware(config CSRFConfig) func(next http.Handler) http.Handler {
	issuer := newCSRFIssuer(config)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				if _, err := issuer.current(w, r); err != nil {
					slog.Error("failed to issue CSRF token", slog.String("error", err.Error()))
				}
				next.ServeHTTP(w, r)
				return
			}

			if reason := issuer.verify(r); reason != "" {
				slog.Warn("CSRF validation failed",
					slog.String("reason", reason),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewCSRFTokenInvalidError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// csrfTokenResponse はCSRFトークン取得エンドポイントのレスポンス。
type csrfTokenResponse struct {
	Token  string `json:"token"`
	Header string `json:"header"`
}

// NewCSRFTokenHandler はCSRFトークン取得エンドポイントのハンドラーを返す。
// GET /api/csrf-token
// 既存のトークンCookieがあればその値を、なければ新規発行した値を返す。
func NewCSRFTokenHandler(config CSRFConfig) http.Handler {
	issuer := newCSRFIssuer(config)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := issuer.current(w, r)
		if err != nil {
			slog.Error("failed to issue CSRF token", slog.String("error", err.Error()))
			WriteInternalServerError(w)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(csrfTokenResponse{Token: token, Header: csrfHeaderName}); err != nil {
			slog.Error("failed to encode CSRF token response", slog.String("error", err.Error()))
		}
	})
}

// isSafeMethod はHTTPメソッドが読み取り専用かどうかを判定する。
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// generateCSRFToken は32バイトの乱数を16進文字列にしたトークンを生成する。
func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
