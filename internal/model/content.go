package model

import "time"

// ソースID。プレビュー由来の行は通常の一覧から除外する。
const (
	SourceDefault = 0
	SourcePreview = -99
)

// Content はチャンネルのコンテンツテーブルの1行を表す。
// IDはテーブル内でのみ一意であり、同一性は(テーブル名, ID)で決まる。
type Content struct {
	ID           int       `json:"id"`
	SiteID       int       `json:"site_id"`
	ChannelID    int       `json:"channel_id"`
	Title        string    `json:"title"`
	Summary      string    `json:"summary"`
	Body         string    `json:"body"`
	Checked      bool      `json:"checked"`
	SourceID     int       `json:"source_id"`
	Taxis        int       `json:"taxis"`
	AddDate      time.Time `json:"add_date"`
	LastEditDate time.Time `json:"last_edit_date"`
}

// ContentSummary は一覧・件数キャッシュ用のContentの射影。
type ContentSummary struct {
	ID        int  `json:"id"`
	ChannelID int  `json:"channel_id"`
	Checked   bool `json:"checked"`
}
