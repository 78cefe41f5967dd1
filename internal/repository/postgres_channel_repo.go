package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/hitoshi/sitecache/internal/model"
)

// channelTreeQuery は起点チャンネルから再帰的に子孫をたどり、
// 深さが[$3, $4]の範囲にあるチャンネルIDを前順で返す。
// 兄弟間の順序は (taxis, id) の昇順。
// parent_idが循環していても、経路上で訪問済みのチャンネルはたどらない。
const channelTreeQuery = `
WITH RECURSIVE tree AS (
	SELECT id, 0 AS depth, ARRAY[taxis, id] AS path, ARRAY[id] AS visited
	FROM cms_channels
	WHERE site_id = $1 AND id = $2
	UNION ALL
	SELECT c.id, t.depth + 1, t.path || ARRAY[c.taxis, c.id], t.visited || c.id
	FROM cms_channels c
	JOIN tree t ON c.parent_id = t.id
	WHERE c.site_id = $1 AND NOT c.id = ANY(t.visited)
)
SELECT id FROM tree
WHERE depth BETWEEN $3 AND $4
ORDER BY path`

// PostgresChannelRepo はPostgreSQLを使用したチャンネルリポジトリ。
type PostgresChannelRepo struct {
	db Querier
}

// NewPostgresChannelRepo はPostgresChannelRepoを生成する。
func NewPostgresChannelRepo(db Querier) *PostgresChannelRepo {
	return &PostgresChannelRepo{db: db}
}

// FindByID は指定IDのチャンネルを取得する。見つからない場合はnilを返す。
func (r *PostgresChannelRepo) FindByID(ctx context.Context, id int) (*model.Channel, error) {
	ch := &model.Channel{}
	var tableName sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT id, site_id, parent_id, channel_name, table_name, taxis
		 FROM cms_channels WHERE id = $1`,
		id,
	).Scan(&ch.ID, &ch.SiteID, &ch.ParentID, &ch.ChannelName, &tableName, &ch.Taxis)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("チャンネルの取得に失敗しました: %w", err)
	}

	ch.TableName = nullStringValue(tableName)
	return ch, nil
}

// GetTableName はチャンネルのコンテンツテーブル名を返す。
// チャンネル固有のテーブルが未設定の場合はサイトの既定テーブルを返す。
func (r *PostgresChannelRepo) GetTableName(ctx context.Context, site *model.Site, channelID int) (string, error) {
	ch, err := r.FindByID(ctx, channelID)
	if err != nil {
		return "", err
	}
	if ch == nil {
		return "", nil
	}
	return ch.ContentTableName(site), nil
}

// GetChannelIDs はscopeに従ってチャンネルIDを列挙する。
func (r *PostgresChannelRepo) GetChannelIDs(ctx context.Context, siteID, channelID int, scope model.ScopeType) ([]int, error) {
	minDepth, maxDepth, err := scopeDepth(scope)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, channelTreeQuery, siteID, channelID, minDepth, maxDepth)
	if err != nil {
		return nil, fmt.Errorf("チャンネルツリーの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	ids := make([]int, 0)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("チャンネルID行の読み取りに失敗しました: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("チャンネルツリーの走査に失敗しました: %w", err)
	}
	return ids, nil
}

// scopeDepth はscopeを起点からの深さの範囲に変換する。
func scopeDepth(scope model.ScopeType) (minDepth, maxDepth int, err error) {
	switch scope {
	case model.ScopeSelf:
		return 0, 0, nil
	case model.ScopeChildren:
		return 1, 1, nil
	case model.ScopeDescendant:
		return 1, math.MaxInt32, nil
	case model.ScopeAll:
		return 0, math.MaxInt32, nil
	default:
		return 0, 0, fmt.Errorf("未知のスコープです: %q", scope)
	}
}

var _ ChannelRepository = (*PostgresChannelRepo)(nil)
