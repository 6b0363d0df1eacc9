package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/guildhall/internal/model"
	"github.com/hitoshi/guildhall/internal/rbac"
	"github.com/hitoshi/guildhall/internal/visibility"
)

// CommunityServiceInterface はサーバー作成と招待コード再発行のサービスインターフェース。
type CommunityServiceInterface interface {
	CreateServer(ctx context.Context, profileID, name, imageURL string) (*model.Server, error)
	RegenerateInviteCode(ctx context.Context, profileID, serverID string) (*model.Server, error)
}

// VisibilityServiceInterface はサーバー表示と認可のサービスインターフェース。
type VisibilityServiceInterface interface {
	ComputeView(ctx context.Context, serverID, profileID string) (*visibility.View, error)
	AuthorizeChannel(ctx context.Context, serverID, channelID, profileID string) (*visibility.ChannelAccess, error)
}

// ServerHandler はサーバー画面のHTTPハンドラー。
type ServerHandler struct {
	community  CommunityServiceInterface
	visibility VisibilityServiceInterface
	baseURL    string
}

// NewServerHandler はServerHandlerを生成する。baseURLは招待URLの組み立てに使う。
func NewServerHandler(community CommunityServiceInterface, vis VisibilityServiceInterface, baseURL string) *ServerHandler {
	return &ServerHandler{
		community:  community,
		visibility: vis,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

type createServerRequest struct {
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
}

type serverResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ImageURL   string `json:"image_url,omitempty"`
	OwnerID    string `json:"owner_profile_id"`
	InviteCode string `json:"invite_code,omitempty"`
	InviteURL  string `json:"invite_url,omitempty"`
}

type channelResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

type channelSectionResponse struct {
	Type string `json:"type"`
	Display
	Channels []channelResponse `json:"channels"`
}

type memberResponse struct {
	ID          string  `json:"id"`
	ProfileID   string  `json:"profile_id"`
	Name        string  `json:"name"`
	ImageURL    string  `json:"image_url,omitempty"`
	Role        string  `json:"role"`
	RoleDisplay Display `json:"role_display"`
}

type viewerResponse struct {
	MemberID    string   `json:"member_id"`
	Role        string   `json:"role"`
	RoleDisplay Display  `json:"role_display"`
	Permissions []string `json:"permissions"`
}

type membersSectionResponse struct {
	Display
	Members []memberResponse `json:"members"`
}

type viewResponse struct {
	Server   serverResponse           `json:"server"`
	Viewer   viewerResponse           `json:"viewer"`
	Sections []channelSectionResponse `json:"sections"`
	Members  membersSectionResponse   `json:"members"`
}

type channelPageResponse struct {
	Server  string          `json:"server_id"`
	Channel channelResponse `json:"channel"`
	Viewer  viewerResponse  `json:"viewer"`
}

// CreateServer はサーバーを作成する。作成者はADMINになる。
// POST /api/servers
func (h *ServerHandler) CreateServer(w http.ResponseWriter, r *http.Request) {
	profileID, ok := requireProfile(w, r)
	if !ok {
		return
	}

	var req createServerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleServiceError(w, model.NewInvalidServerNameError("リクエストボディが不正です"), "")
		return
	}

	server, err := h.community.CreateServer(r.Context(), profileID, req.Name, req.ImageURL)
	if err != nil {
		handleServiceError(w, err, "")
		return
	}

	writeJSON(w, http.StatusCreated, h.toServerResponse(server, true))
}

// View はサーバー画面の表示情報を返す。
// GET /api/servers/{serverID}/view
func (h *ServerHandler) View(w http.ResponseWriter, r *http.Request) {
	profileID, ok := requireProfile(w, r)
	if !ok {
		return
	}
	serverID := chi.URLParam(r, "serverID")

	view, err := h.visibility.ComputeView(r.Context(), serverID, profileID)
	if err != nil {
		handleServiceError(w, err, serverID)
		return
	}

	resp := viewResponse{
		Server:   h.toServerResponse(view.Server, rbac.Can(view.Role, rbac.ActionInvite)),
		Viewer:   toViewerResponse(view.ViewerMemberID, view.Role),
		Sections: make([]channelSectionResponse, 0, len(model.ChannelTypes)),
		Members: membersSectionResponse{
			Display: membersSection,
			Members: make([]memberResponse, 0, len(view.Members)),
		},
	}
	for _, t := range model.ChannelTypes {
		section := channelSectionResponse{
			Type:     string(t),
			Display:  ChannelSection(t),
			Channels: make([]channelResponse, 0, len(view.Group(t))),
		}
		for _, c := range view.Group(t) {
			section.Channels = append(section.Channels, toChannelResponse(c))
		}
		resp.Sections = append(resp.Sections, section)
	}
	for _, m := range view.Members {
		resp.Members.Members = append(resp.Members.Members, memberResponse{
			ID:          m.ID,
			ProfileID:   m.ProfileID,
			Name:        m.Profile.Name,
			ImageURL:    m.Profile.ImageURL,
			Role:        string(m.Role),
			RoleDisplay: RoleDisplay(m.Role),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// RegenerateInviteCode は招待コードを再発行する。
// POST /api/servers/{serverID}/invite-code
func (h *ServerHandler) RegenerateInviteCode(w http.ResponseWriter, r *http.Request) {
	profileID, ok := requireProfile(w, r)
	if !ok {
		return
	}
	serverID := chi.URLParam(r, "serverID")

	server, err := h.community.RegenerateInviteCode(r.Context(), profileID, serverID)
	if err != nil {
		handleServiceError(w, err, serverID)
		return
	}

	writeJSON(w, http.StatusOK, h.toServerResponse(server, true))
}

// Channel はチャンネル画面を開く権限を確認し、チャンネル情報を返す。
// GET /api/servers/{serverID}/channels/{channelID}
func (h *ServerHandler) Channel(w http.ResponseWriter, r *http.Request) {
	profileID, ok := requireProfile(w, r)
	if !ok {
		return
	}
	serverID := chi.URLParam(r, "serverID")

	access, err := h.visibility.AuthorizeChannel(r.Context(), serverID, chi.URLParam(r, "channelID"), profileID)
	if err != nil {
		handleServiceError(w, err, serverID)
		return
	}

	writeJSON(w, http.StatusOK, channelPageResponse{
		Server:  serverID,
		Channel: toChannelResponse(*access.Channel),
		Viewer:  toViewerResponse(access.Member.ID, access.Member.Role),
	})
}

// toServerResponse はサーバーをレスポンス型に変換する。
// withInviteがfalseの場合は招待コードを含めない。
func (h *ServerHandler) toServerResponse(s *model.Server, withInvite bool) serverResponse {
	resp := serverResponse{
		ID:       s.ID,
		Name:     s.Name,
		ImageURL: s.ImageURL,
		OwnerID:  s.ProfileID,
	}
	if withInvite {
		resp.InviteCode = s.InviteCode
		resp.InviteURL = h.baseURL + "/invite/" + s.InviteCode
	}
	return resp
}

func toChannelResponse(c model.Channel) channelResponse {
	return channelResponse{
		ID:        c.ID,
		Name:      c.Name,
		Type:      string(c.Type),
		CreatedAt: c.CreatedAt,
	}
}

func toViewerResponse(memberID string, role model.MemberRole) viewerResponse {
	perms := rbac.Permissions(role)
	names := make([]string, len(perms))
	for i, p := range perms {
		names[i] = string(p)
	}
	return viewerResponse{
		MemberID:    memberID,
		Role:        string(role),
		RoleDisplay: RoleDisplay(role),
		Permissions: names,
	}
}
