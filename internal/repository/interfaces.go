// Package repository はデータ永続化のインターフェースとPostgreSQL実装を定義する。
package repository

import (
	"context"
	"database/sql"

	"github.com/hitoshi/sitecache/internal/model"
	"github.com/hitoshi/sitecache/internal/query"
)

// Querier はSQLの読み取り系メソッドを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Executor はquery.Specをコンテンツテーブルに対して実行するインターフェース。
// キャッシュは扱わない。キャッシュを経由する読み取りはContentTableが行う。
//
// 契約:
//   - 並行呼び出しに対して安全であること。
//   - ストレージの障害はそのまま（ラップして）呼び出し元に返し、リトライしない。
//   - 一覧系は該当行がない場合に空のスライス（nilではない）を返す。
type Executor interface {
	// Count はSpecの条件に一致する行数を返す。
	Count(ctx context.Context, table string, spec query.Spec) (int, error)

	// SelectSummaries はSpecの条件・並び順でContentSummaryを返す。取得列は固定。
	SelectSummaries(ctx context.Context, table string, spec query.Spec) ([]model.ContentSummary, error)

	// SelectContents はSpecの条件・並び順・件数上限でContentを返す。取得列は固定。
	SelectContents(ctx context.Context, table string, spec query.Spec) ([]*model.Content, error)

	// SelectContent は主キーでContentを1件取得する。見つからない場合はnilを返す。
	SelectContent(ctx context.Context, table string, contentID int) (*model.Content, error)

	// SelectInts はSpecで選択した1列を整数として返す。
	SelectInts(ctx context.Context, table string, spec query.Spec) ([]int, error)
}

// SiteRepository はサイトの参照インターフェース。
type SiteRepository interface {
	// FindByID は指定IDのサイトを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int) (*model.Site, error)

	// List は全サイトをID順に返す。
	List(ctx context.Context) ([]*model.Site, error)
}

// ChannelRepository はチャンネルツリーの参照インターフェース。
type ChannelRepository interface {
	// FindByID は指定IDのチャンネルを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int) (*model.Channel, error)

	// GetTableName はチャンネルのコンテンツテーブル名を返す。
	// チャンネルが存在しない場合は空文字を返す。
	GetTableName(ctx context.Context, site *model.Site, channelID int) (string, error)

	// GetChannelIDs はscopeに従ってチャンネルIDを列挙する。
	// 順序はツリーの前順（兄弟間はTaxis昇順・ID昇順）。
	GetChannelIDs(ctx context.Context, siteID, channelID int, scope model.ScopeType) ([]int, error)
}
