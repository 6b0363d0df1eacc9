package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/guildhall/internal/model"
)

const serverColumns = `s.id, s.name, s.image_url, s.invite_code, s.profile_id, s.created_at, s.updated_at`

// PostgresServerRepo はPostgreSQLを使用したサーバーリポジトリ。
type PostgresServerRepo struct {
	db *sql.DB
}

// NewPostgresServerRepo はPostgresServerRepoを生成する。
func NewPostgresServerRepo(db *sql.DB) *PostgresServerRepo {
	return &PostgresServerRepo{db: db}
}

func scanServer(row *sql.Row) (*model.Server, error) {
	s := &model.Server{}
	err := row.Scan(&s.ID, &s.Name, &s.ImageURL, &s.InviteCode, &s.ProfileID, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows || isMalformedID(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// FindByID は指定IDのサーバーを取得する。見つからない場合はnilを返す。
func (r *PostgresServerRepo) FindByID(ctx context.Context, id string) (*model.Server, error) {
	s, err := scanServer(r.db.QueryRowContext(ctx,
		`SELECT `+serverColumns+` FROM servers s WHERE s.id = $1`,
		id,
	))
	if err != nil {
		return nil, fmt.Errorf("サーバーの取得に失敗しました: %w", err)
	}
	return s, nil
}

// FindByInviteCode は招待コードでサーバーを検索する。見つからない場合はnilを返す。
func (r *PostgresServerRepo) FindByInviteCode(ctx context.Context, inviteCode string) (*model.Server, error) {
	s, err := scanServer(r.db.QueryRowContext(ctx,
		`SELECT `+serverColumns+` FROM servers s WHERE s.invite_code = $1`,
		inviteCode,
	))
	if err != nil {
		return nil, fmt.Errorf("招待コードによるサーバーの検索に失敗しました: %w", err)
	}
	return s, nil
}

// FindByInviteCodeAndProfile は招待コードが一致し、指定プロフィールが既に参加しているサーバーを検索する。
func (r *PostgresServerRepo) FindByInviteCodeAndProfile(ctx context.Context, inviteCode, profileID string) (*model.Server, error) {
	s, err := scanServer(r.db.QueryRowContext(ctx,
		`SELECT `+serverColumns+`
		 FROM servers s
		 JOIN members m ON m.server_id = s.id
		 WHERE s.invite_code = $1 AND m.profile_id = $2`,
		inviteCode, profileID,
	))
	if err != nil {
		return nil, fmt.Errorf("参加済みサーバーの検索に失敗しました: %w", err)
	}
	return s, nil
}

// CreateWithOwner はサーバー、所有者メンバー、初期チャンネルを同一トランザクションで作成する。
func (r *PostgresServerRepo) CreateWithOwner(ctx context.Context, server *model.Server, owner *model.Member, channel *model.Channel) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO servers (id, name, image_url, invite_code, profile_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		server.ID, server.Name, server.ImageURL, server.InviteCode, server.ProfileID, server.CreatedAt, server.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) && violatedConstraint(err) == "servers_invite_code_key" {
			return ErrInviteCodeTaken
		}
		return fmt.Errorf("サーバーの作成に失敗しました: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO members (id, role, profile_id, server_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		owner.ID, owner.Role, owner.ProfileID, owner.ServerID, owner.CreatedAt, owner.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("所有者メンバーの作成に失敗しました: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO channels (id, name, type, profile_id, server_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		channel.ID, channel.Name, channel.Type, channel.ProfileID, channel.ServerID, channel.CreatedAt, channel.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("初期チャンネルの作成に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpdateInviteCode はサーバーの招待コードを差し替え、更新後のサーバーを返す。
func (r *PostgresServerRepo) UpdateInviteCode(ctx context.Context, serverID, inviteCode string) (*model.Server, error) {
	s, err := scanServer(r.db.QueryRowContext(ctx,
		`UPDATE servers s SET invite_code = $2, updated_at = now()
		 WHERE s.id = $1
		 RETURNING `+serverColumns,
		serverID, inviteCode,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrInviteCodeTaken
		}
		return nil, fmt.Errorf("招待コードの更新に失敗しました: %w", err)
	}
	return s, nil
}

var _ ServerRepository = (*PostgresServerRepo)(nil)
