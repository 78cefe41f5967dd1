package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/sitecache/internal/model"
)

// PostgresSiteRepo はPostgreSQLを使用したサイトリポジトリ。
type PostgresSiteRepo struct {
	db Querier
}

// NewPostgresSiteRepo はPostgresSiteRepoを生成する。
func NewPostgresSiteRepo(db Querier) *PostgresSiteRepo {
	return &PostgresSiteRepo{db: db}
}

// FindByID は指定IDのサイトを取得する。見つからない場合はnilを返す。
func (r *PostgresSiteRepo) FindByID(ctx context.Context, id int) (*model.Site, error) {
	site := &model.Site{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, site_name, table_name, page_size
		 FROM cms_sites WHERE id = $1`,
		id,
	).Scan(&site.ID, &site.SiteName, &site.TableName, &site.PageSize)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("サイトの取得に失敗しました: %w", err)
	}
	return site, nil
}

// List は全サイトをID順に返す。
func (r *PostgresSiteRepo) List(ctx context.Context) ([]*model.Site, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, site_name, table_name, page_size
		 FROM cms_sites ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("サイト一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var sites []*model.Site
	for rows.Next() {
		site := &model.Site{}
		if err := rows.Scan(&site.ID, &site.SiteName, &site.TableName, &site.PageSize); err != nil {
			return nil, fmt.Errorf("サイト行の読み取りに失敗しました: %w", err)
		}
		sites = append(sites, site)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("サイト一覧の走査に失敗しました: %w", err)
	}
	return sites, nil
}

var _ SiteRepository = (*PostgresSiteRepo)(nil)
