package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/guildhall/internal/model"
)

// PostgresChannelRepo はPostgreSQLを使用したチャンネルリポジトリ。
type PostgresChannelRepo struct {
	db *sql.DB
}

// NewPostgresChannelRepo はPostgresChannelRepoを生成する。
func NewPostgresChannelRepo(db *sql.DB) *PostgresChannelRepo {
	return &PostgresChannelRepo{db: db}
}

// FindByID は指定IDのチャンネルを取得する。見つからない場合はnilを返す。
func (r *PostgresChannelRepo) FindByID(ctx context.Context, id string) (*model.Channel, error) {
	c := &model.Channel{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, type, profile_id, server_id, created_at, updated_at FROM channels WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Name, &c.Type, &c.ProfileID, &c.ServerID, &c.CreatedAt, &c.UpdatedAt)

	if err == sql.ErrNoRows || isMalformedID(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("チャンネルの取得に失敗しました: %w", err)
	}
	return c, nil
}

// ListByServer はサーバーの全チャンネルを作成日時の昇順で返す。
func (r *PostgresChannelRepo) ListByServer(ctx context.Context, serverID string) ([]model.Channel, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, type, profile_id, server_id, created_at, updated_at
		 FROM channels
		 WHERE server_id = $1
		 ORDER BY created_at ASC, id ASC`,
		serverID,
	)
	if isMalformedID(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("チャンネル一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var channels []model.Channel
	for rows.Next() {
		var c model.Channel
		if err := rows.Scan(&c.ID, &c.Name, &c.Type, &c.ProfileID, &c.ServerID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("チャンネル行の読み取りに失敗しました: %w", err)
		}
		channels = append(channels, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("チャンネル一覧の走査に失敗しました: %w", err)
	}
	return channels, nil
}

var _ ChannelRepository = (*PostgresChannelRepo)(nil)
