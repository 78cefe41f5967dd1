// Package model はドメインモデルを定義する。
package model

// Site はテナントとなるサイトを表す。
// TableNameはチャンネル固有のテーブルが指定されていない場合に使用する既定のコンテンツテーブル。
type Site struct {
	ID        int    `json:"id"`
	SiteName  string `json:"site_name"`
	TableName string `json:"table_name"`
	PageSize  int    `json:"page_size"` // エンティティ一括キャッシュの上限件数
}

// Channel はサイト内のチャンネルツリーのノードを表す。
type Channel struct {
	ID          int    `json:"id"`
	SiteID      int    `json:"site_id"`
	ParentID    int    `json:"parent_id"` // ルートの場合は0
	ChannelName string `json:"channel_name"`
	TableName   string `json:"table_name"` // 空の場合はサイトの既定テーブル
	Taxis       int    `json:"taxis"`
}

// ContentTableName はチャンネルのコンテンツが格納されるテーブル名を返す。
// チャンネル固有のテーブルが未設定の場合はサイトの既定テーブルを返す。
func (c *Channel) ContentTableName(site *Site) string {
	if c != nil && c.TableName != "" {
		return c.TableName
	}
	if site == nil {
		return ""
	}
	return site.TableName
}

// ScopeType はチャンネルツリーの列挙範囲を表す。
type ScopeType string

const (
	// ScopeSelf は指定チャンネルのみ。
	ScopeSelf ScopeType = "self"
	// ScopeChildren は直下の子チャンネルのみ。
	ScopeChildren ScopeType = "children"
	// ScopeDescendant は指定チャンネルを含まない全子孫。
	ScopeDescendant ScopeType = "descendant"
	// ScopeAll は指定チャンネルとその全子孫。
	ScopeAll ScopeType = "all"
)
