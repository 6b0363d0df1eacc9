package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/guildhall/internal/model"
)

// PostgresMemberRepo はPostgreSQLを使用したメンバーリポジトリ。
type PostgresMemberRepo struct {
	db *sql.DB
}

// NewPostgresMemberRepo はPostgresMemberRepoを生成する。
func NewPostgresMemberRepo(db *sql.DB) *PostgresMemberRepo {
	return &PostgresMemberRepo{db: db}
}

// FindByID は指定IDのメンバーを取得する。見つからない場合はnilを返す。
func (r *PostgresMemberRepo) FindByID(ctx context.Context, id string) (*model.Member, error) {
	m := &model.Member{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, role, profile_id, server_id, created_at, updated_at FROM members WHERE id = $1`,
		id,
	).Scan(&m.ID, &m.Role, &m.ProfileID, &m.ServerID, &m.CreatedAt, &m.UpdatedAt)

	if err == sql.ErrNoRows || isMalformedID(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("メンバーの取得に失敗しました: %w", err)
	}
	return m, nil
}

// FindByServerAndProfile はサーバーとプロフィールの組でメンバーを検索する。見つからない場合はnilを返す。
func (r *PostgresMemberRepo) FindByServerAndProfile(ctx context.Context, serverID, profileID string) (*model.Member, error) {
	m := &model.Member{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, role, profile_id, server_id, created_at, updated_at
		 FROM members WHERE server_id = $1 AND profile_id = $2`,
		serverID, profileID,
	).Scan(&m.ID, &m.Role, &m.ProfileID, &m.ServerID, &m.CreatedAt, &m.UpdatedAt)

	if err == sql.ErrNoRows || isMalformedID(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("サーバーとプロフィールによるメンバーの検索に失敗しました: %w", err)
	}
	return m, nil
}

// Create はメンバーを作成する。
// 一意制約 (profile_id, server_id) が同時実行時の重複作成を防ぐ。
func (r *PostgresMemberRepo) Create(ctx context.Context, member *model.Member) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO members (id, role, profile_id, server_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		member.ID, member.Role, member.ProfileID, member.ServerID, member.CreatedAt, member.UpdatedAt,
	)
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return model.NewAlreadyMemberError()
	case isForeignKeyViolation(err):
		return ErrServerGone
	default:
		return fmt.Errorf("メンバーの作成に失敗しました: %w", err)
	}
}

// ListByServerWithProfiles はサーバーの全メンバーをプロフィール付きで返す。
func (r *PostgresMemberRepo) ListByServerWithProfiles(ctx context.Context, serverID string) ([]model.MemberWithProfile, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT m.id, m.role, m.profile_id, m.server_id, m.created_at, m.updated_at,
		        p.id, p.name, p.image_url, p.email, p.created_at, p.updated_at
		 FROM members m
		 JOIN profiles p ON p.id = m.profile_id
		 WHERE m.server_id = $1
		 ORDER BY CASE m.role WHEN 'ADMIN' THEN 0 WHEN 'MODERATOR' THEN 1 ELSE 2 END,
		          m.created_at ASC, m.id ASC`,
		serverID,
	)
	if isMalformedID(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("メンバー一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var members []model.MemberWithProfile
	for rows.Next() {
		var mp model.MemberWithProfile
		if err := rows.Scan(
			&mp.ID, &mp.Role, &mp.ProfileID, &mp.ServerID, &mp.CreatedAt, &mp.UpdatedAt,
			&mp.Profile.ID, &mp.Profile.Name, &mp.Profile.ImageURL, &mp.Profile.Email, &mp.Profile.CreatedAt, &mp.Profile.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("メンバー行の読み取りに失敗しました: %w", err)
		}
		members = append(members, mp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("メンバー一覧の走査に失敗しました: %w", err)
	}
	return members, nil
}

var _ MemberRepository = (*PostgresMemberRepo)(nil)
