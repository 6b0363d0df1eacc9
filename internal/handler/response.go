// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/guildhall/internal/middleware"
	"github.com/hitoshi/guildhall/internal/model"
)

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// requireProfile はコンテキストのプロフィールIDを返す。
// 取得できない場合は401を書き込みfalseを返す。
func requireProfile(w http.ResponseWriter, r *http.Request) (string, bool) {
	profileID, err := middleware.ProfileIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return "", false
	}
	return profileID, true
}

// handleServiceError はサービス層から返されたエラーをHTTPレスポンスに変換する。
// serverIDはリダイレクト先の算出に使う。サーバー文脈のないルートでは空でよい。
func handleServiceError(w http.ResponseWriter, err error, serverID string) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponseWithRedirect(w, mapAPIErrorToHTTPStatus(apiErr), apiErr, redirectFor(apiErr, serverID))
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeInvalidInvite, model.ErrCodeInvalidServerName, model.ErrCodeSelfConversation:
		return http.StatusBadRequest
	case model.ErrCodeNotAMember, model.ErrCodeInsufficientRole:
		return http.StatusForbidden
	case model.ErrCodeInviteNotFound, model.ErrCodeServerNotFound, model.ErrCodeChannelNotFound,
		model.ErrCodeMemberNotFound, model.ErrCodeProfileNotFound:
		return http.StatusNotFound
	case model.ErrCodeAlreadyMember, model.ErrCodeConversationExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// redirectFor はクライアントが遷移すべきパスを返す。遷移不要なら空文字を返す。
func redirectFor(apiErr *model.APIError, serverID string) string {
	switch apiErr.Code {
	case model.ErrCodeInviteNotFound, model.ErrCodeNotAMember, model.ErrCodeServerNotFound, model.ErrCodeSelfConversation:
		return "/"
	case model.ErrCodeMemberNotFound, model.ErrCodeChannelNotFound:
		if serverID == "" {
			return "/"
		}
		return serverPath(serverID)
	default:
		return ""
	}
}

// serverPath はサーバー画面のパスを返す。
func serverPath(serverID string) string {
	return "/servers/" + serverID
}
