// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/guildhall/internal/model"
)

var (
	// ErrInviteCodeTaken は招待コードが他のサーバーで使用済みの場合に返る。
	ErrInviteCodeTaken = errors.New("invite code already taken")
	// ErrServerGone はメンバー作成時に参照先のサーバーが存在しない場合に返る。
	ErrServerGone = errors.New("referenced server no longer exists")
	// ErrMemberGone は会話作成時に参照先のメンバーが存在しない場合に返る。
	ErrMemberGone = errors.New("referenced member no longer exists")
)

// ProfileRepository はプロフィールの参照インターフェース。
// プロフィールの作成・更新は外部のIDプロバイダー連携側が行う。
type ProfileRepository interface {
	// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Profile, error)
}

// ServerRepository はサーバーの永続化インターフェース。
type ServerRepository interface {
	// FindByID は指定IDのサーバーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Server, error)

	// FindByInviteCode は招待コードでサーバーを検索する。見つからない場合はnilを返す。
	FindByInviteCode(ctx context.Context, inviteCode string) (*model.Server, error)

	// FindByInviteCodeAndProfile は招待コードが一致し、かつ指定プロフィールの
	// メンバー行を持つサーバーを検索する。見つからない場合はnilを返す。
	FindByInviteCodeAndProfile(ctx context.Context, inviteCode, profileID string) (*model.Server, error)

	// CreateWithOwner はサーバー、所有者メンバー、初期チャンネルを同一トランザクションで作成する。
	// 招待コードが衝突した場合はErrInviteCodeTakenを返す。
	CreateWithOwner(ctx context.Context, server *model.Server, owner *model.Member, channel *model.Channel) error

	// UpdateInviteCode はサーバーの招待コードを差し替え、更新後のサーバーを返す。
	// サーバーが存在しない場合はnil、コードが衝突した場合はErrInviteCodeTakenを返す。
	UpdateInviteCode(ctx context.Context, serverID, inviteCode string) (*model.Server, error)
}

// MemberRepository はメンバーの永続化インターフェース。
type MemberRepository interface {
	// FindByID は指定IDのメンバーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Member, error)

	// FindByServerAndProfile はサーバーとプロフィールの組でメンバーを検索する。
	// 見つからない場合はnilを返す。
	FindByServerAndProfile(ctx context.Context, serverID, profileID string) (*model.Member, error)

	// Create はメンバーを作成する。
	// (profile, server) の一意制約に違反した場合はALREADY_MEMBERのAPIErrorを、
	// サーバーが存在しない場合はErrServerGoneを返す。
	Create(ctx context.Context, member *model.Member) error

	// ListByServerWithProfiles はサーバーの全メンバーをプロフィール付きで返す。
	// 役割順位、参加日時、IDの順に並ぶ。
	ListByServerWithProfiles(ctx context.Context, serverID string) ([]model.MemberWithProfile, error)
}

// ChannelRepository はチャンネルの参照インターフェース。
type ChannelRepository interface {
	// FindByID は指定IDのチャンネルを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Channel, error)

	// ListByServer はサーバーの全チャンネルを作成日時の昇順（同時刻はID順）で返す。
	ListByServer(ctx context.Context, serverID string) ([]model.Channel, error)
}

// ConversationRepository は1対1の会話の永続化インターフェース。
type ConversationRepository interface {
	// FindByMembers は2人のメンバー間の会話を、スロットの向きを問わず検索する。
	// 両スロットのメンバーとプロフィールを結合して返す。見つからない場合はnilを返す。
	FindByMembers(ctx context.Context, memberA, memberB string) (*model.ConversationWithMembers, error)

	// Create は会話を作成する。
	// メンバー組の一意制約に違反した場合はCONVERSATION_EXISTSのAPIErrorを、
	// メンバーが存在しない場合はErrMemberGoneを返す。
	Create(ctx context.Context, conversation *model.Conversation) error
}

// SessionRepository はセッションデータの永続化インターフェース。
// セッションの発行は認証層が行うため、ここでは参照と期限切れの掃除だけを扱う。
type SessionRepository interface {
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteExpired はbefore時点で期限切れのセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
