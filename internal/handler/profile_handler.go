package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/guildhall/internal/model"
)

// ProfileFinder はプロフィール取得のインターフェース。
type ProfileFinder interface {
	FindByID(ctx context.Context, id string) (*model.Profile, error)
}

// ProfileHandler はプロフィールのHTTPハンドラー。
type ProfileHandler struct {
	profiles ProfileFinder
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(profiles ProfileFinder) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

type profileResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Me はログイン中のプロフィールを返す。
// GET /api/profiles/me
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	profileID, ok := requireProfile(w, r)
	if !ok {
		return
	}

	profile, err := h.profiles.FindByID(r.Context(), profileID)
	if err != nil {
		handleServiceError(w, err, "")
		return
	}
	if profile == nil {
		handleServiceError(w, model.NewProfileNotFoundError(), "")
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{
		ID:       profile.ID,
		Name:     profile.Name,
		ImageURL: profile.ImageURL,
		Email:    profile.Email,
	})
}
