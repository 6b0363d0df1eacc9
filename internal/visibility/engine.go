// Package visibility は閲覧者の役割と、サーバー内で閲覧者に見えるチャンネル・メンバーを計算する。
package visibility

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hitoshi/guildhall/internal/metrics"
	"github.com/hitoshi/guildhall/internal/model"
	"github.com/hitoshi/guildhall/internal/rbac"
	"github.com/hitoshi/guildhall/internal/repository"
)

// View は1リクエスト分のサーバー表示情報を表す。
// 各チャンネル群は作成日時の昇順で、空の場合もある。
type View struct {
	Server         *model.Server
	ViewerMemberID string
	Role           model.MemberRole
	Permissions    []rbac.Action
	Text           []model.Channel
	Audio          []model.Channel
	Video          []model.Channel
	Members        []model.MemberWithProfile // 閲覧者自身を除く
}

// Group は指定種別のチャンネル群を返す。
func (v *View) Group(t model.ChannelType) []model.Channel {
	switch t {
	case model.ChannelTypeText:
		return v.Text
	case model.ChannelTypeAudio:
		return v.Audio
	case model.ChannelTypeVideo:
		return v.Video
	default:
		return nil
	}
}

// ChannelAccess はチャンネルへのアクセスが認可された結果を表す。
type ChannelAccess struct {
	Channel *model.Channel
	Member  *model.Member
}

// Engine は役割と可視性を計算するサービス層。状態を持たない。
type Engine struct {
	serverRepo  repository.ServerRepository
	memberRepo  repository.MemberRepository
	channelRepo repository.ChannelRepository
	metrics     metrics.MetricsCollector
}

// NewEngine はEngineの新しいインスタンスを生成する。
// mcがnilの場合はメトリクスを記録しない。
func NewEngine(
	serverRepo repository.ServerRepository,
	memberRepo repository.MemberRepository,
	channelRepo repository.ChannelRepository,
	mc metrics.MetricsCollector,
) *Engine {
	if mc == nil {
		mc = metrics.NopCollector{}
	}
	return &Engine{
		serverRepo:  serverRepo,
		memberRepo:  memberRepo,
		channelRepo: channelRepo,
		metrics:     mc,
	}
}

// ComputeView はサーバーと閲覧者プロフィールから表示情報を計算する。
// 閲覧者がメンバーでなければ空のビューではなくNOT_A_MEMBERを返す。
func (e *Engine) ComputeView(ctx context.Context, serverID, profileID string) (*View, error) {
	start := time.Now()
	if profileID == "" {
		return nil, model.NewUnauthorizedError()
	}

	server, err := e.serverRepo.FindByID(ctx, serverID)
	if err != nil {
		return nil, fmt.Errorf("サーバーの取得に失敗しました: %w", err)
	}
	if server == nil {
		return nil, model.NewServerNotFoundError(serverID)
	}

	members, err := e.memberRepo.ListByServerWithProfiles(ctx, serverID)
	if err != nil {
		return nil, fmt.Errorf("メンバー一覧の取得に失敗しました: %w", err)
	}

	var viewer *model.MemberWithProfile
	visible := make([]model.MemberWithProfile, 0, len(members))
	for i := range members {
		if members[i].ProfileID == profileID {
			viewer = &members[i]
			continue
		}
		visible = append(visible, members[i])
	}
	if viewer == nil {
		e.metrics.RecordAccessDenied(model.ErrCodeNotAMember)
		return nil, model.NewNotAMemberError(serverID)
	}
	sort.SliceStable(visible, func(i, j int) bool { return rbac.Less(visible[i].Member, visible[j].Member) })

	channels, err := e.channelRepo.ListByServer(ctx, serverID)
	if err != nil {
		return nil, fmt.Errorf("チャンネル一覧の取得に失敗しました: %w", err)
	}
	sortChannels(channels)

	view := &View{
		Server:         server,
		ViewerMemberID: viewer.ID,
		Role:           viewer.Role,
		Permissions:    rbac.Permissions(viewer.Role),
		Text:           []model.Channel{},
		Audio:          []model.Channel{},
		Video:          []model.Channel{},
		Members:        visible,
	}
	for _, c := range channels {
		switch c.Type {
		case model.ChannelTypeText:
			view.Text = append(view.Text, c)
		case model.ChannelTypeAudio:
			view.Audio = append(view.Audio, c)
		case model.ChannelTypeVideo:
			view.Video = append(view.Video, c)
		}
	}

	e.metrics.RecordViewComputed(time.Since(start))
	return view, nil
}

// AuthorizeChannel は閲覧者がサーバーのチャンネルを開けるかを確認する。
// チャンネルが存在しないか別サーバーのものならCHANNEL_NOT_FOUND、
// 閲覧者がメンバーでなければNOT_A_MEMBERを返す。
func (e *Engine) AuthorizeChannel(ctx context.Context, serverID, channelID, profileID string) (*ChannelAccess, error) {
	if profileID == "" {
		return nil, model.NewUnauthorizedError()
	}

	member, err := e.memberRepo.FindByServerAndProfile(ctx, serverID, profileID)
	if err != nil {
		return nil, fmt.Errorf("メンバーの確認に失敗しました: %w", err)
	}
	if member == nil {
		e.metrics.RecordAccessDenied(model.ErrCodeNotAMember)
		return nil, model.NewNotAMemberError(serverID)
	}

	channel, err := e.channelRepo.FindByID(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("チャンネルの取得に失敗しました: %w", err)
	}
	if channel == nil || channel.ServerID != serverID {
		return nil, model.NewChannelNotFoundError(channelID)
	}
	if !rbac.Can(member.Role, rbac.ActionView) {
		e.metrics.RecordAccessDenied(model.ErrCodeInsufficientRole)
		return nil, model.NewInsufficientRoleError(member.Role)
	}

	return &ChannelAccess{Channel: channel, Member: member}, nil
}

// sortChannels はチャンネルを作成日時、IDの順に安定ソートする。
func sortChannels(channels []model.Channel) {
	sort.SliceStable(channels, func(i, j int) bool {
		if !channels[i].CreatedAt.Equal(channels[j].CreatedAt) {
			return channels[i].CreatedAt.Before(channels[j].CreatedAt)
		}
		return channels[i].ID < channels[j].ID
	})
}
