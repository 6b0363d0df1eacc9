// Package model はドメインモデルを定義する。
package model

import "time"

// Conversation は2人のメンバー間のダイレクトメッセージを表す。
// {MemberOneID, MemberTwoID} は順序を問わず一意で、MemberOneID != MemberTwoID。
type Conversation struct {
	ID          string
	MemberOneID string
	MemberTwoID string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ConversationWithMembers は会話と両スロットのメンバー・プロフィールを結合したモデル。
type ConversationWithMembers struct {
	Conversation
	MemberOne MemberWithProfile
	MemberTwo MemberWithProfile
}

// Counterpart は指定プロフィールから見た相手側の参加者を返す。
// 指定プロフィールがMemberOneでなければMemberOneを返す。
func (c *ConversationWithMembers) Counterpart(profileID string) MemberWithProfile {
	if c.MemberOne.ProfileID == profileID {
		return c.MemberTwo
	}
	return c.MemberOne
}
