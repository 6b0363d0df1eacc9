// Package security はユーザー入力の無害化を提供する。
//
// NameSanitizer はサーバー名などの表示名からHTMLを取り除き、
// プレーンテキストとして保存できる形に正規化する。
// bluemondayのStrictPolicyで全タグを除去した上で、エスケープを戻して空白を詰める。
package security

import (
	"html"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// NameSanitizerService は表示名の無害化のインターフェースを定義する。
type NameSanitizerService interface {
	// SanitizeName はHTMLタグを除去し、連続する空白を1つに詰めた表示名を返す。
	SanitizeName(raw string) string
	// SanitizeImageURL はhttpsの絶対URLであればそのまま返し、それ以外は空文字列を返す。
	SanitizeImageURL(raw string) string
}

// nameSanitizer はNameSanitizerServiceの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type nameSanitizer struct {
	policy *bluemonday.Policy
}

// NewNameSanitizer はNameSanitizerServiceの新しいインスタンスを生成する。
func NewNameSanitizer() *nameSanitizer {
	return &nameSanitizer{policy: bluemonday.StrictPolicy()}
}

// SanitizeName はHTMLタグを除去した表示名を返す。
func (s *nameSanitizer) SanitizeName(raw string) string {
	stripped := html.UnescapeString(s.policy.Sanitize(raw))
	return strings.Join(strings.Fields(stripped), " ")
}

// SanitizeImageURL はhttpsの絶対URLのみを通す。
func (s *nameSanitizer) SanitizeImageURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return ""
	}
	return u.String()
}

// NameLength は表示名の文字数（ルーン数）を返す。
func NameLength(name string) int {
	return utf8.RuneCountInString(name)
}
