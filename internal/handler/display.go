package handler

import "github.com/hitoshi/guildhall/internal/model"

// Display は画面表示用のラベルとアイコン名。
type Display struct {
	Label string `json:"label"`
	Icon  string `json:"icon,omitempty"`
}

var channelSections = map[model.ChannelType]Display{
	model.ChannelTypeText:  {Label: "Text Chat", Icon: "hash"},
	model.ChannelTypeAudio: {Label: "Voice Chat", Icon: "mic"},
	model.ChannelTypeVideo: {Label: "Video Chat", Icon: "video"},
}

var roleDisplays = map[model.MemberRole]Display{
	model.RoleAdmin:     {Label: "Admin", Icon: "shield-alert"},
	model.RoleModerator: {Label: "Moderator", Icon: "shield-check"},
	model.RoleGuest:     {Label: "Guest"},
}

// membersSection はメンバー一覧セクションの表示。
var membersSection = Display{Label: "Members", Icon: "users"}

// ChannelSection はチャンネル種別のセクション表示を返す。
func ChannelSection(t model.ChannelType) Display {
	if d, ok := channelSections[t]; ok {
		return d
	}
	return Display{Label: string(t)}
}

// RoleDisplay は役割の表示を返す。GUESTはアイコンを持たない。
func RoleDisplay(r model.MemberRole) Display {
	if d, ok := roleDisplays[r]; ok {
		return d
	}
	return Display{Label: string(r)}
}
