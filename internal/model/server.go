// Package model はドメインモデルを定義する。
package model

import "time"

// Server はコミュニティ（サーバー）を表す。
// InviteCodeは全サーバーで一意であり、再発行できる。
type Server struct {
	ID         string
	Name       string
	ImageURL   string
	InviteCode string
	ProfileID  string // 所有者
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// MemberRole はサーバー内でのメンバーの役割を表す。
type MemberRole string

const (
	// RoleAdmin はサーバー管理者。
	RoleAdmin MemberRole = "ADMIN"
	// RoleModerator はモデレーター。
	RoleModerator MemberRole = "MODERATOR"
	// RoleGuest は一般メンバー。招待コードで参加したメンバーの初期値。
	RoleGuest MemberRole = "GUEST"
)

// Valid は定義済みの役割かどうかを返す。
func (r MemberRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleModerator, RoleGuest:
		return true
	default:
		return false
	}
}

// Member はProfileとServerを結ぶ参加情報を表す。
// (ProfileID, ServerID) の組はストア側の一意制約で1件に保たれる。
type Member struct {
	ID        string
	Role      MemberRole
	ProfileID string
	ServerID  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MemberWithProfile はメンバーと対応するプロフィールを結合したモデル。
type MemberWithProfile struct {
	Member
	Profile Profile
}

// ChannelType はチャンネルの種別を表す。
type ChannelType string

const (
	// ChannelTypeText はテキストチャンネル。
	ChannelTypeText ChannelType = "TEXT"
	// ChannelTypeAudio は音声チャンネル。
	ChannelTypeAudio ChannelType = "AUDIO"
	// ChannelTypeVideo はビデオチャンネル。
	ChannelTypeVideo ChannelType = "VIDEO"
)

// ChannelTypes は全チャンネル種別を表示順に並べたもの。
var ChannelTypes = []ChannelType{ChannelTypeText, ChannelTypeAudio, ChannelTypeVideo}

// Valid は定義済みのチャンネル種別かどうかを返す。
func (t ChannelType) Valid() bool {
	switch t {
	case ChannelTypeText, ChannelTypeAudio, ChannelTypeVideo:
		return true
	default:
		return false
	}
}

// Channel はサーバー配下のチャンネルを表す。
// CreatedAtは表示順の安定したソートキーとして使う。
type Channel struct {
	ID        string
	Name      string
	Type      ChannelType
	ProfileID string // 作成者
	ServerID  string
	CreatedAt time.Time
	UpdatedAt time.Time
}
