package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// InviteServiceInterface は招待コード利用のサービスインターフェース。
type InviteServiceInterface interface {
	RedeemInvite(ctx context.Context, profileID, inviteCode string) (string, error)
}

// InviteHandler は招待リンクのHTTPハンドラー。
type InviteHandler struct {
	service InviteServiceInterface
}

// NewInviteHandler はInviteHandlerを生成する。
func NewInviteHandler(service InviteServiceInterface) *InviteHandler {
	return &InviteHandler{service: service}
}

type redeemResponse struct {
	ServerID   string `json:"server_id"`
	RedirectTo string `json:"redirect_to"`
}

// Redeem は招待コードでサーバーに参加する。既に参加済みでも同じ結果を返す。
// POST /api/invites/{inviteCode}
func (h *InviteHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	profileID, ok := requireProfile(w, r)
	if !ok {
		return
	}

	serverID, err := h.service.RedeemInvite(r.Context(), profileID, chi.URLParam(r, "inviteCode"))
	if err != nil {
		handleServiceError(w, err, "")
		return
	}

	writeJSON(w, http.StatusOK, redeemResponse{
		ServerID:   serverID,
		RedirectTo: serverPath(serverID),
	})
}
