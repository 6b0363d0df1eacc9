package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/guildhall/internal/model"
)

// PostgresConversationRepo はPostgreSQLを使用した会話リポジトリ。
type PostgresConversationRepo struct {
	db *sql.DB
}

// NewPostgresConversationRepo はPostgresConversationRepoを生成する。
func NewPostgresConversationRepo(db *sql.DB) *PostgresConversationRepo {
	return &PostgresConversationRepo{db: db}
}

// FindByMembers は2人のメンバー間の会話を両方の向きで検索し、両スロットのメンバーとプロフィールを結合して返す。
func (r *PostgresConversationRepo) FindByMembers(ctx context.Context, memberA, memberB string) (*model.ConversationWithMembers, error) {
	c := &model.ConversationWithMembers{}
	one, two := &c.MemberOne, &c.MemberTwo
	err := r.db.QueryRowContext(ctx,
		`SELECT c.id, c.member_one_id, c.member_two_id, c.created_at, c.updated_at,
		        m1.id, m1.role, m1.profile_id, m1.server_id, m1.created_at, m1.updated_at,
		        p1.id, p1.name, p1.image_url, p1.email, p1.created_at, p1.updated_at,
		        m2.id, m2.role, m2.profile_id, m2.server_id, m2.created_at, m2.updated_at,
		        p2.id, p2.name, p2.image_url, p2.email, p2.created_at, p2.updated_at
		 FROM conversations c
		 JOIN members m1 ON m1.id = c.member_one_id
		 JOIN profiles p1 ON p1.id = m1.profile_id
		 JOIN members m2 ON m2.id = c.member_two_id
		 JOIN profiles p2 ON p2.id = m2.profile_id
		 WHERE (c.member_one_id = $1 AND c.member_two_id = $2)
		    OR (c.member_one_id = $2 AND c.member_two_id = $1)`,
		memberA, memberB,
	).Scan(
		&c.ID, &c.MemberOneID, &c.MemberTwoID, &c.CreatedAt, &c.UpdatedAt,
		&one.ID, &one.Role, &one.ProfileID, &one.ServerID, &one.CreatedAt, &one.UpdatedAt,
		&one.Profile.ID, &one.Profile.Name, &one.Profile.ImageURL, &one.Profile.Email, &one.Profile.CreatedAt, &one.Profile.UpdatedAt,
		&two.ID, &two.Role, &two.ProfileID, &two.ServerID, &two.CreatedAt, &two.UpdatedAt,
		&two.Profile.ID, &two.Profile.Name, &two.Profile.ImageURL, &two.Profile.Email, &two.Profile.CreatedAt, &two.Profile.UpdatedAt,
	)

	if err == sql.ErrNoRows || isMalformedID(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("メンバー組による会話の検索に失敗しました: %w", err)
	}
	return c, nil
}

// Create は会話を作成する。
// 順序を問わないメンバー組の一意インデックスが同時実行時の重複作成を防ぐ。
func (r *PostgresConversationRepo) Create(ctx context.Context, conv *model.Conversation) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO conversations (id, member_one_id, member_two_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		conv.ID, conv.MemberOneID, conv.MemberTwoID, conv.CreatedAt, conv.UpdatedAt,
	)
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return model.NewConversationExistsError()
	case isForeignKeyViolation(err):
		return ErrMemberGone
	default:
		return fmt.Errorf("会話の作成に失敗しました: %w", err)
	}
}

var _ ConversationRepository = (*PostgresConversationRepo)(nil)
