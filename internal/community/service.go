// Package community はサーバーの作成と招待コード管理のドメインロジックを提供する。
package community

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/guildhall/internal/model"
	"github.com/hitoshi/guildhall/internal/rbac"
	"github.com/hitoshi/guildhall/internal/repository"
	"github.com/hitoshi/guildhall/internal/security"
)

const (
	// maxServerNameLength はサーバー名の最大文字数。
	maxServerNameLength = 100
	// maxInviteCodeAttempts は招待コード衝突時の再試行を含む最大試行回数。
	maxInviteCodeAttempts = 3
	// defaultChannelName はサーバー作成時に用意するテキストチャンネル名。
	defaultChannelName = "general"
)

// Sanitizer は表示名の無害化のインターフェース。
type Sanitizer interface {
	SanitizeName(raw string) string
	SanitizeImageURL(raw string) string
}

// Service はサーバー管理のサービス層。
type Service struct {
	serverRepo repository.ServerRepository
	memberRepo repository.MemberRepository
	sanitizer  Sanitizer
	newCode    func() string
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	serverRepo repository.ServerRepository,
	memberRepo repository.MemberRepository,
	sanitizer Sanitizer,
) *Service {
	return &Service{
		serverRepo: serverRepo,
		memberRepo: memberRepo,
		sanitizer:  sanitizer,
		newCode:    func() string { return uuid.New().String() },
	}
}

// CreateServer はサーバーを作成する。
// 作成者はADMINメンバーとなり、"general" テキストチャンネルが同時に作られる。
func (s *Service) CreateServer(ctx context.Context, profileID, name, imageURL string) (*model.Server, error) {
	if profileID == "" {
		return nil, model.NewUnauthorizedError()
	}

	cleanName := s.sanitizer.SanitizeName(name)
	if cleanName == "" {
		return nil, model.NewInvalidServerNameError("名前が空です")
	}
	if security.NameLength(cleanName) > maxServerNameLength {
		return nil, model.NewInvalidServerNameError(fmt.Sprintf("%d文字を超えています", maxServerNameLength))
	}
	cleanImage := s.sanitizer.SanitizeImageURL(imageURL)

	for attempt := 1; attempt <= maxInviteCodeAttempts; attempt++ {
		now := time.Now()
		server := &model.Server{
			ID:         uuid.New().String(),
			Name:       cleanName,
			ImageURL:   cleanImage,
			InviteCode: s.newCode(),
			ProfileID:  profileID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		owner := &model.Member{
			ID:        uuid.New().String(),
			Role:      model.RoleAdmin,
			ProfileID: profileID,
			ServerID:  server.ID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		channel := &model.Channel{
			ID:        uuid.New().String(),
			Name:      defaultChannelName,
			Type:      model.ChannelTypeText,
			ProfileID: profileID,
			ServerID:  server.ID,
			CreatedAt: now,
			UpdatedAt: now,
		}

		err := s.serverRepo.CreateWithOwner(ctx, server, owner, channel)
		if err == nil {
			slog.Info("サーバーを作成しました", "serverID", server.ID, "profileID", profileID)
			return server, nil
		}
		if !errors.Is(err, repository.ErrInviteCodeTaken) {
			return nil, fmt.Errorf("サーバーの作成に失敗しました: %w", err)
		}
		slog.Warn("招待コードが衝突したため再生成します", "attempt", attempt)
	}

	return nil, fmt.Errorf("招待コードの生成に%d回失敗しました", maxInviteCodeAttempts)
}

// RegenerateInviteCode はサーバーの招待コードを新しいものに差し替える。
// 招待権限（ADMINまたはMODERATOR）を持つメンバーのみ実行できる。
func (s *Service) RegenerateInviteCode(ctx context.Context, profileID, serverID string) (*model.Server, error) {
	if profileID == "" {
		return nil, model.NewUnauthorizedError()
	}
	serverID = strings.TrimSpace(serverID)

	member, err := s.memberRepo.FindByServerAndProfile(ctx, serverID, profileID)
	if err != nil {
		return nil, fmt.Errorf("メンバーの確認に失敗しました: %w", err)
	}
	if member == nil {
		return nil, model.NewNotAMemberError(serverID)
	}
	if !rbac.Can(member.Role, rbac.ActionInvite) {
		return nil, model.NewInsufficientRoleError(member.Role)
	}

	for attempt := 1; attempt <= maxInviteCodeAttempts; attempt++ {
		server, err := s.serverRepo.UpdateInviteCode(ctx, serverID, s.newCode())
		if err == nil {
			if server == nil {
				return nil, model.NewServerNotFoundError(serverID)
			}
			slog.Info("招待コードを再発行しました", "serverID", serverID, "profileID", profileID)
			return server, nil
		}
		if !errors.Is(err, repository.ErrInviteCodeTaken) {
			return nil, fmt.Errorf("招待コードの再発行に失敗しました: %w", err)
		}
		slog.Warn("招待コードが衝突したため再生成します", "serverID", serverID, "attempt", attempt)
	}

	return nil, fmt.Errorf("招待コードの生成に%d回失敗しました", maxInviteCodeAttempts)
}
