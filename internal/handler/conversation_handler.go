package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/guildhall/internal/conversation"
	"github.com/hitoshi/guildhall/internal/model"
)

// ConversationServiceInterface は1対1会話のサービスインターフェース。
type ConversationServiceInterface interface {
	OpenConversation(ctx context.Context, profileID, serverID, peerMemberID string) (*conversation.Opened, error)
}

// ConversationHandler はダイレクトメッセージ画面のHTTPハンドラー。
type ConversationHandler struct {
	service ConversationServiceInterface
}

// NewConversationHandler はConversationHandlerを生成する。
func NewConversationHandler(service ConversationServiceInterface) *ConversationHandler {
	return &ConversationHandler{service: service}
}

type participantResponse struct {
	MemberID    string  `json:"member_id"`
	ProfileID   string  `json:"profile_id"`
	Name        string  `json:"name"`
	ImageURL    string  `json:"image_url,omitempty"`
	Role        string  `json:"role"`
	RoleDisplay Display `json:"role_display"`
}

type conversationResponse struct {
	ID        string              `json:"id"`
	ServerID  string              `json:"server_id"`
	Self      participantResponse `json:"self"`
	Other     participantResponse `json:"other"`
	CreatedAt time.Time           `json:"created_at"`
}

// Open は閲覧者とメンバー間の会話を取得または作成する。
// POST /api/servers/{serverID}/conversations/{memberID}
func (h *ConversationHandler) Open(w http.ResponseWriter, r *http.Request) {
	profileID, ok := requireProfile(w, r)
	if !ok {
		return
	}
	serverID := chi.URLParam(r, "serverID")

	opened, err := h.service.OpenConversation(r.Context(), profileID, serverID, chi.URLParam(r, "memberID"))
	if err != nil {
		handleServiceError(w, err, serverID)
		return
	}

	writeJSON(w, http.StatusOK, conversationResponse{
		ID:        opened.Conversation.ID,
		ServerID:  serverID,
		Self:      toParticipantResponse(opened.Self),
		Other:     toParticipantResponse(opened.Other),
		CreatedAt: opened.Conversation.CreatedAt,
	})
}

func toParticipantResponse(m model.MemberWithProfile) participantResponse {
	return participantResponse{
		MemberID:    m.ID,
		ProfileID:   m.ProfileID,
		Name:        m.Profile.Name,
		ImageURL:    m.Profile.ImageURL,
		Role:        string(m.Role),
		RoleDisplay: RoleDisplay(m.Role),
	}
}
