// Package rbac はサーバー内の役割ごとの権限と表示順位を定義する。
package rbac

import "github.com/hitoshi/guildhall/internal/model"

// Action はサーバー内で役割によって許可される操作を表す。
type Action string

const (
	ActionView           Action = "view"
	ActionInvite         Action = "invite"
	ActionManageChannels Action = "manage_channels"
	ActionManageMembers  Action = "manage_members"
	ActionManageServer   Action = "manage_server"
)

// Actions は全操作を権限一覧の表示順に並べたもの。
var Actions = []Action{
	ActionView,
	ActionInvite,
	ActionManageChannels,
	ActionManageMembers,
	ActionManageServer,
}

// Can は役割が操作を許可されているかを返す。未知の役割は何も許可されない。
func Can(role model.MemberRole, action Action) bool {
	switch role {
	case model.RoleAdmin:
		return true
	case model.RoleModerator:
		return action == ActionView || action == ActionInvite || action == ActionManageChannels
	case model.RoleGuest:
		return action == ActionView
	default:
		return false
	}
}

// Permissions は役割に許可された操作の一覧を返す。
func Permissions(role model.MemberRole) []Action {
	var actions []Action
	for _, a := range Actions {
		if Can(role, a) {
			actions = append(actions, a)
		}
	}
	return actions
}

// Rank はメンバー一覧での役割の表示順位を返す（小さいほど上位）。
// ADMIN=0, MODERATOR=1, GUEST=2。未知の役割は最後に並ぶ。
func Rank(role model.MemberRole) int {
	switch role {
	case model.RoleAdmin:
		return 0
	case model.RoleModerator:
		return 1
	case model.RoleGuest:
		return 2
	default:
		return 3
	}
}

// Less はメンバーの表示順を決める。役割順位、参加日時、IDの順に比較する。
func Less(a, b model.Member) bool {
	if ra, rb := Rank(a.Role), Rank(b.Role); ra != rb {
		return ra < rb
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
