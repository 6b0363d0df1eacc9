// Package conversation はメンバー間の1対1会話を一意に解決するドメインロジックを提供する。
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/guildhall/internal/metrics"
	"github.com/hitoshi/guildhall/internal/model"
	"github.com/hitoshi/guildhall/internal/repository"
)

// Opened は閲覧者から見た会話を表す。
type Opened struct {
	Conversation *model.ConversationWithMembers
	Self         model.MemberWithProfile // 閲覧者側の参加者
	Other        model.MemberWithProfile // 相手側の参加者（プロフィール付き）
}

// Resolver は会話解決のサービス層。
// 同じメンバー組に対する同時実行でも会話は1件だけ作られる。
type Resolver struct {
	convRepo   repository.ConversationRepository
	memberRepo repository.MemberRepository
	metrics    metrics.MetricsCollector
}

// NewResolver はResolverの新しいインスタンスを生成する。
// mcがnilの場合はメトリクスを記録しない。
func NewResolver(
	convRepo repository.ConversationRepository,
	memberRepo repository.MemberRepository,
	mc metrics.MetricsCollector,
) *Resolver {
	if mc == nil {
		mc = metrics.NopCollector{}
	}
	return &Resolver{
		convRepo:   convRepo,
		memberRepo: memberRepo,
		metrics:    mc,
	}
}

// ResolveConversation は2人のメンバー間の会話を返す。存在しなければmemberAを1人目として作成する。
// 作成が一意制約に違反した場合は先に作成された会話を読み直して返す。
// 返す会話には両スロットのメンバーとプロフィールが結合されている。
func (r *Resolver) ResolveConversation(ctx context.Context, memberA, memberB string) (*model.ConversationWithMembers, error) {
	if memberA == "" {
		return nil, model.NewMemberNotFoundError(memberA)
	}
	if memberB == "" {
		return nil, model.NewMemberNotFoundError(memberB)
	}
	if memberA == memberB {
		return nil, model.NewSelfConversationError()
	}

	existing, err := r.convRepo.FindByMembers(ctx, memberA, memberB)
	if err != nil {
		return nil, fmt.Errorf("会話の検索に失敗しました: %w", err)
	}
	if existing != nil {
		r.metrics.RecordConversationResolved(metrics.OutcomeExisting)
		return existing, nil
	}

	now := time.Now()
	conv := &model.Conversation{
		ID:          uuid.New().String(),
		MemberOneID: memberA,
		MemberTwoID: memberB,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	outcome := metrics.OutcomeCreated
	err = r.convRepo.Create(ctx, conv)
	switch {
	case err == nil:
		slog.Info("会話を作成しました", "conversationID", conv.ID, "memberOne", memberA, "memberTwo", memberB)
	case model.HasCode(err, model.ErrCodeConversationExists):
		outcome = metrics.OutcomeRace
		slog.Warn("会話の同時作成を既存の会話で解決しました", "memberOne", memberA, "memberTwo", memberB)
	case errors.Is(err, repository.ErrMemberGone):
		return nil, model.NewMemberNotFoundError(r.missingMember(ctx, memberA, memberB))
	default:
		return nil, fmt.Errorf("会話の作成に失敗しました: %w", err)
	}

	joined, err := r.convRepo.FindByMembers(ctx, memberA, memberB)
	if err != nil {
		return nil, fmt.Errorf("会話の再取得に失敗しました: %w", err)
	}
	if joined == nil {
		return nil, fmt.Errorf("作成した会話が見つかりません: %s/%s", memberA, memberB)
	}

	r.metrics.RecordConversationResolved(outcome)
	return joined, nil
}

// missingMember は外部キー違反の原因となった、存在しないメンバーのIDを返す。
// どちらも見つかる場合（確認までに再作成された等）はmemberBを返す。
func (r *Resolver) missingMember(ctx context.Context, memberA, memberB string) string {
	for _, id := range []string{memberA, memberB} {
		m, err := r.memberRepo.FindByID(ctx, id)
		if err != nil {
			slog.Warn("削除されたメンバーの特定に失敗しました", "memberID", id, "error", err)
			continue
		}
		if m == nil {
			return id
		}
	}
	return memberB
}

// OpenConversation は閲覧者とサーバー内の相手メンバーとの会話を開く。
// 閲覧者がサーバーのメンバーでなければNOT_A_MEMBER、相手が同じサーバーにいなければMEMBER_NOT_FOUNDを返す。
func (r *Resolver) OpenConversation(ctx context.Context, profileID, serverID, peerMemberID string) (*Opened, error) {
	if profileID == "" {
		return nil, model.NewUnauthorizedError()
	}

	self, err := r.memberRepo.FindByServerAndProfile(ctx, serverID, profileID)
	if err != nil {
		return nil, fmt.Errorf("閲覧者メンバーの取得に失敗しました: %w", err)
	}
	if self == nil {
		r.metrics.RecordAccessDenied(model.ErrCodeNotAMember)
		return nil, model.NewNotAMemberError(serverID)
	}

	peer, err := r.memberRepo.FindByID(ctx, peerMemberID)
	if err != nil {
		return nil, fmt.Errorf("相手メンバーの取得に失敗しました: %w", err)
	}
	if peer == nil || peer.ServerID != serverID {
		return nil, model.NewMemberNotFoundError(peerMemberID)
	}

	conv, err := r.ResolveConversation(ctx, self.ID, peer.ID)
	if err != nil {
		return nil, err
	}

	opened := &Opened{
		Conversation: conv,
		Other:        conv.Counterpart(profileID),
	}
	if conv.MemberOneID == self.ID {
		opened.Self = conv.MemberOne
	} else {
		opened.Self = conv.MemberTwo
	}
	return opened, nil
}
