package query

import (
	"time"

	"github.com/hitoshi/sitecache/internal/model"
)

// コンテンツテーブルの列名。
const (
	ColumnID           = "id"
	ColumnSiteID       = "site_id"
	ColumnChannelID    = "channel_id"
	ColumnTitle        = "title"
	ColumnSummary      = "summary"
	ColumnBody         = "body"
	ColumnChecked      = "checked"
	ColumnSourceID     = "source_id"
	ColumnTaxis        = "taxis"
	ColumnAddDate      = "add_date"
	ColumnLastEditDate = "last_edit_date"
)

// ContentColumns はContentの全列を読み取り順に並べたもの。
var ContentColumns = []string{
	ColumnID, ColumnSiteID, ColumnChannelID, ColumnTitle, ColumnSummary, ColumnBody,
	ColumnChecked, ColumnSourceID, ColumnTaxis, ColumnAddDate, ColumnLastEditDate,
}

// SummaryColumns はContentSummaryの列。
var SummaryColumns = []string{ColumnID, ColumnChannelID, ColumnChecked}

// ChannelScope はサイト・チャンネル単位の標準条件を返す。
// プレビュー由来の行を除外し、Taxis降順・ID降順で並べる。
func ChannelScope(siteID, channelID int) Spec {
	return New().
		Where(ColumnSiteID, siteID).
		Where(ColumnChannelID, channelID).
		WhereNot(ColumnSourceID, model.SourcePreview).
		OrderByDesc(ColumnTaxis, ColumnID)
}

// Summaries は標準条件をContentSummaryの列に射影したSpecを返す。
func Summaries(siteID, channelID int) Spec {
	return ChannelScope(siteID, channelID).Select(SummaryColumns...)
}

// WithChecked はcheckedが指定された場合のみ公開状態の条件を追加する。
func WithChecked(s Spec, checked *bool) Spec {
	if checked == nil {
		return s
	}
	return s.Where(ColumnChecked, *checked)
}

// WithPeriod はisPeriodsがtrueの場合のみ追加日時の範囲条件を追加する。
// 境界は日単位で比較する。時刻部分は切り捨て、終了日はその日全体を含めるため
// 翌日0時との「より小さい」で比較する。
func WithPeriod(s Spec, isPeriods bool, from, to *time.Time) Spec {
	if !isPeriods {
		return s
	}
	if from != nil {
		s = s.WhereOp(ColumnAddDate, OpGte, startOfDay(*from))
	}
	if to != nil {
		s = s.WhereOp(ColumnAddDate, OpLt, startOfDay(*to).AddDate(0, 0, 1))
	}
	return s
}

// startOfDay はtと同じロケーションでのその日の0時を返す。
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// CheckedSince はsince以降に編集された公開済みコンテンツを持つチャンネルIDを重複なく取得するSpecを返す。
func CheckedSince(siteID int, since time.Time) Spec {
	return New().
		Select(ColumnChannelID).
		Distinct().
		Where(ColumnSiteID, siteID).
		WhereTrue(ColumnChecked).
		WhereOp(ColumnLastEditDate, OpGt, since).
		OrderBy(ColumnChannelID)
}
