// Package invite は招待コードによるサーバー参加のドメインロジックを提供する。
package invite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/guildhall/internal/metrics"
	"github.com/hitoshi/guildhall/internal/model"
	"github.com/hitoshi/guildhall/internal/repository"
)

// Service は招待コード利用のサービス層。
// 同一プロフィールによる同時利用でもメンバー行は1件だけ作られる。
type Service struct {
	serverRepo repository.ServerRepository
	memberRepo repository.MemberRepository
	metrics    metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
// mcがnilの場合はメトリクスを記録しない。
func NewService(
	serverRepo repository.ServerRepository,
	memberRepo repository.MemberRepository,
	mc metrics.MetricsCollector,
) *Service {
	if mc == nil {
		mc = metrics.NopCollector{}
	}
	return &Service{
		serverRepo: serverRepo,
		memberRepo: memberRepo,
		metrics:    mc,
	}
}

// RedeemInvite は招待コードを使ってプロフィールをサーバーに参加させ、サーバーIDを返す。
// フロー: 参加済みチェック（高速経路） → 招待コード解決 → GUESTメンバー作成
// メンバー作成が一意制約に違反した場合は、先に作成された行を読み直して同じサーバーIDを返す。
func (s *Service) RedeemInvite(ctx context.Context, profileID, inviteCode string) (string, error) {
	if profileID == "" {
		return "", model.NewUnauthorizedError()
	}
	code := strings.TrimSpace(inviteCode)
	if code == "" {
		return "", model.NewInvalidInviteError()
	}

	// 1. 既に参加済みならそのサーバーを返す
	joined, err := s.serverRepo.FindByInviteCodeAndProfile(ctx, code, profileID)
	if err != nil {
		return "", fmt.Errorf("参加済みサーバーの確認に失敗しました: %w", err)
	}
	if joined != nil {
		s.metrics.RecordInviteRedeemed(metrics.OutcomeExisting)
		return joined.ID, nil
	}

	// 2. 招待コードからサーバーを解決
	server, err := s.serverRepo.FindByInviteCode(ctx, code)
	if err != nil {
		return "", fmt.Errorf("招待コードの解決に失敗しました: %w", err)
	}
	if server == nil {
		return "", model.NewInviteNotFoundError(code)
	}

	// 3. GUESTとしてメンバーを作成
	now := time.Now()
	member := &model.Member{
		ID:        uuid.New().String(),
		Role:      model.RoleGuest,
		ProfileID: profileID,
		ServerID:  server.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.memberRepo.Create(ctx, member)
	switch {
	case err == nil:
		s.metrics.RecordInviteRedeemed(metrics.OutcomeCreated)
		slog.Info("招待コードでサーバーに参加しました", "serverID", server.ID, "profileID", profileID, "memberID", member.ID)
		return server.ID, nil
	case model.HasCode(err, model.ErrCodeAlreadyMember):
		return s.resolveRace(ctx, code, profileID, server.ID)
	case errors.Is(err, repository.ErrServerGone):
		return "", model.NewInviteNotFoundError(code)
	default:
		return "", fmt.Errorf("メンバーの作成に失敗しました: %w", err)
	}
}

// resolveRace は同時実行で先に作成されたメンバー行を読み直す。
func (s *Service) resolveRace(ctx context.Context, code, profileID, serverID string) (string, error) {
	joined, err := s.serverRepo.FindByInviteCodeAndProfile(ctx, code, profileID)
	if err != nil {
		return "", fmt.Errorf("参加済みサーバーの再確認に失敗しました: %w", err)
	}
	if joined == nil {
		// 読み直しまでの間に招待コードが再発行された場合はメンバー行で確認する
		member, err := s.memberRepo.FindByServerAndProfile(ctx, serverID, profileID)
		if err != nil {
			return "", fmt.Errorf("メンバーの再確認に失敗しました: %w", err)
		}
		if member == nil {
			return "", fmt.Errorf("一意制約違反後にメンバーが見つかりません: server=%s profile=%s", serverID, profileID)
		}
		joined = &model.Server{ID: member.ServerID}
	}

	s.metrics.RecordInviteRedeemed(metrics.OutcomeRace)
	slog.Warn("招待コードの同時利用を既存メンバーで解決しました", "serverID", joined.ID, "profileID", profileID)
	return joined.ID, nil
}
