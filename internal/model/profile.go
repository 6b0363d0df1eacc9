// Package model はドメインモデルを定義する。
package model

import "time"

// Profile は利用者を表す。
// 外部のIDプロバイダー連携側が作成し、このサービスからは参照のみ行う。
type Profile struct {
	ID        string
	Name      string
	ImageURL  string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Session はプロフィールのログインセッションを表す。
type Session struct {
	ID        string
	ProfileID string
	ExpiresAt time.Time
	CreatedAt time.Time
}
