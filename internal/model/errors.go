// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, invite, membership, conversation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidInvite      = "INVALID_INVITE"
	ErrCodeInviteNotFound     = "INVITE_NOT_FOUND"
	ErrCodeAlreadyMember      = "ALREADY_MEMBER"
	ErrCodeConversationExists = "CONVERSATION_EXISTS"
	ErrCodeSelfConversation   = "SELF_CONVERSATION"
	ErrCodeNotAMember         = "NOT_A_MEMBER"
	ErrCodeServerNotFound     = "SERVER_NOT_FOUND"
	ErrCodeChannelNotFound    = "CHANNEL_NOT_FOUND"
	ErrCodeMemberNotFound     = "MEMBER_NOT_FOUND"
	ErrCodeProfileNotFound    = "PROFILE_NOT_FOUND"
	ErrCodeInsufficientRole   = "INSUFFICIENT_ROLE"
	ErrCodeInvalidServerName  = "INVALID_SERVER_NAME"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeCSRFTokenInvalid   = "CSRF_TOKEN_INVALID"
)

// HasCode はerrチェーン内のAPIErrorが指定コードを持つかどうかを返す。
func HasCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// NewInvalidInviteError は空または不正な招待コードのエラーを生成する。
func NewInvalidInviteError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInvite,
		Message:  "招待コードが指定されていません。",
		Category: "validation",
		Action:   "招待リンクを確認してください。",
	}
}

// NewInviteNotFoundError は招待コードに対応するサーバーが存在しない場合のエラーを生成する。
func NewInviteNotFoundError(code string) *APIError {
	return &APIError{
		Code:     ErrCodeInviteNotFound,
		Message:  fmt.Sprintf("招待コードに対応するサーバーが見つかりません: %s", code),
		Category: "invite",
		Action:   "招待リンクが再発行されていないか、送信者に確認してください。",
	}
}

// NewAlreadyMemberError はメンバー作成が(profile, server)の一意制約に違反した場合のエラーを生成する。
// 招待処理の内部で解決され、呼び出し元には返らない。
func NewAlreadyMemberError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyMember,
		Message:  "既にこのサーバーのメンバーです。",
		Category: "membership",
		Action:   "サーバーを開いてください。",
	}
}

// NewConversationExistsError は会話作成がメンバー組の一意制約に違反した場合のエラーを生成する。
// 会話解決処理の内部で解決され、呼び出し元には返らない。
func NewConversationExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeConversationExists,
		Message:  "このメンバー間の会話は既に存在します。",
		Category: "conversation",
		Action:   "既存の会話を開いてください。",
	}
}

// NewSelfConversationError は自分自身との会話を解決しようとした場合のエラーを生成する。
func NewSelfConversationError() *APIError {
	return &APIError{
		Code:     ErrCodeSelfConversation,
		Message:  "自分自身との会話は作成できません。",
		Category: "conversation",
		Action:   "別のメンバーを選択してください。",
	}
}

// NewNotAMemberError は閲覧者がサーバーのメンバーでない場合のエラーを生成する。
func NewNotAMemberError(serverID string) *APIError {
	return &APIError{
		Code:     ErrCodeNotAMember,
		Message:  fmt.Sprintf("このサーバーのメンバーではありません: %s", serverID),
		Category: "membership",
		Action:   "招待リンクからサーバーに参加してください。",
	}
}

// NewServerNotFoundError はサーバーが存在しない場合のエラーを生成する。
func NewServerNotFoundError(serverID string) *APIError {
	return &APIError{
		Code:     ErrCodeServerNotFound,
		Message:  fmt.Sprintf("指定されたサーバーが見つかりません: %s", serverID),
		Category: "membership",
		Action:   "サーバーIDを確認してください。",
	}
}

// NewChannelNotFoundError はチャンネルが存在しない場合のエラーを生成する。
func NewChannelNotFoundError(channelID string) *APIError {
	return &APIError{
		Code:     ErrCodeChannelNotFound,
		Message:  fmt.Sprintf("指定されたチャンネルが見つかりません: %s", channelID),
		Category: "membership",
		Action:   "チャンネルIDを確認してください。",
	}
}

// NewMemberNotFoundError はメンバーが存在しない場合のエラーを生成する。
func NewMemberNotFoundError(memberID string) *APIError {
	return &APIError{
		Code:     ErrCodeMemberNotFound,
		Message:  fmt.Sprintf("指定されたメンバーが見つかりません: %s", memberID),
		Category: "conversation",
		Action:   "メンバー一覧から相手を選び直してください。",
	}
}

// NewProfileNotFoundError はプロフィールが見つからない場合のエラーを生成する。
func NewProfileNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeProfileNotFound,
		Message:  "プロフィールが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewInsufficientRoleError は操作に必要な役割を持たない場合のエラーを生成する。
func NewInsufficientRoleError(role MemberRole) *APIError {
	return &APIError{
		Code:     ErrCodeInsufficientRole,
		Message:  fmt.Sprintf("この操作を行う権限がありません（現在の役割: %s）。", role),
		Category: "membership",
		Action:   "サーバー管理者に依頼してください。",
	}
}

// NewInvalidServerNameError はサーバー名が不正な場合のエラーを生成する。
func NewInvalidServerNameError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidServerName,
		Message:  fmt.Sprintf("無効なサーバー名です: %s", reason),
		Category: "validation",
		Action:   "1文字以上100文字以内のサーバー名を入力してください。",
	}
}

// NewUnauthorizedError はセッションがない場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewCSRFTokenInvalidError は状態変更リクエストのCSRFトークン検証に失敗した場合のエラーを生成する。
func NewCSRFTokenInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFTokenInvalid,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}
