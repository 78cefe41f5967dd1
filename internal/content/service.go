// Package content はサイト・チャンネル単位のコンテンツ読み取りとキャッシュの事前投入を提供する。
package content

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/sitecache/internal/cachekey"
	"github.com/hitoshi/sitecache/internal/metrics"
	"github.com/hitoshi/sitecache/internal/model"
	"github.com/hitoshi/sitecache/internal/query"
	"github.com/hitoshi/sitecache/internal/repository"
)

// DateParser は日付文字列を解釈するインターフェース。
type DateParser interface {
	Parse(s string) (time.Time, error)
}

// Options はServiceの動作設定。
type Options struct {
	// Concurrency はチャンネル単位の処理の最大並行数。1以下の場合は逐次実行する。
	Concurrency int
	// Now は現在時刻を返す関数。nilの場合はtime.Nowを使う。
	Now func() time.Time
}

// defaultPageSize はサイトのページサイズが未設定の場合に使う値。
const defaultPageSize = 20

// Service はキャッシュを経由したコンテンツの読み取りサービス。
//
// テーブル名が空、IDが0以下、サイトやチャンネルがnilの場合は
// ストレージに問い合わせず空の結果を返す。これはエラーではない。
// ストレージの障害はそのまま呼び出し元に返し、リトライしない。
type Service struct {
	tables   *repository.ContentTables
	channels repository.ChannelRepository
	dates    DateParser
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
	opts     Options
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	tables *repository.ContentTables,
	channels repository.ChannelRepository,
	dates DateParser,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	opts Options,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		tables:   tables,
		channels: channels,
		dates:    dates,
		metrics:  collector,
		logger:   logger,
		opts:     opts,
	}
}

// Count はチャンネルのコンテンツ件数を返す（承認状態を問わず、プレビューは除く）。
func (s *Service) Count(ctx context.Context, site *model.Site, channel *model.Channel) (int, error) {
	if site == nil || channel == nil {
		return 0, nil
	}
	table := channel.ContentTableName(site)
	if table == "" {
		return 0, nil
	}

	spec := query.ChannelScope(site.ID, channel.ID).
		CachingGet(cachekey.CountKey(table, site.ID, channel.ID))
	return s.tables.Get(table).Count(ctx, spec)
}

// GetEntity はテーブルと主キーでコンテンツを取得する。見つからない場合はnilを返す。
func (s *Service) GetEntity(ctx context.Context, table string, contentID int) (*model.Content, error) {
	if table == "" || contentID <= 0 {
		return nil, nil
	}

	spec := query.New().CachingGet(cachekey.EntityKey(table, contentID))
	return s.tables.Get(table).Get(ctx, contentID, spec)
}

// GetContent はチャンネルのテーブルを解決してからコンテンツを取得する。
func (s *Service) GetContent(ctx context.Context, site *model.Site, channelID, contentID int) (*model.Content, error) {
	if site == nil || contentID <= 0 {
		return nil, nil
	}

	table, err := s.channels.GetTableName(ctx, site, channelID)
	if err != nil {
		return nil, err
	}
	return s.GetEntity(ctx, table, contentID)
}

// GetSummaries はチャンネルのコンテンツサマリーをTaxis降順・ID降順で返す。
// isAllContentsがtrueの場合は子孫チャンネルを含めて集約する。
func (s *Service) GetSummaries(ctx context.Context, site *model.Site, channel *model.Channel, isAllContents bool) ([]model.ContentSummary, error) {
	if site == nil || channel == nil {
		return nil, nil
	}
	if isAllContents {
		return s.aggregateSummaries(ctx, site, channel)
	}
	return s.channelSummaries(ctx, site, channel)
}

// channelSummaries は1チャンネル分のサマリーをリストキー経由で取得する。
func (s *Service) channelSummaries(ctx context.Context, site *model.Site, channel *model.Channel) ([]model.ContentSummary, error) {
	table := channel.ContentTableName(site)
	if table == "" {
		return nil, nil
	}

	spec := query.Summaries(site.ID, channel.ID).
		CachingGet(cachekey.ListKey(table, site.ID, channel.ID))
	return s.tables.Get(table).GetSummaries(ctx, spec)
}

// GetContentIDs はチャンネルのコンテンツIDを一覧の順で返す。
// キャッシュされたサマリーから導出し、個別のクエリは発行しない。
func (s *Service) GetContentIDs(ctx context.Context, site *model.Site, channel *model.Channel) ([]int, error) {
	summaries, err := s.GetSummaries(ctx, site, channel, false)
	if err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(summaries))
	for _, summary := range summaries {
		ids = append(ids, summary.ID)
	}
	return ids, nil
}

// GetContentIDsChecked は承認済みのコンテンツIDを一覧の順で返す。
func (s *Service) GetContentIDsChecked(ctx context.Context, site *model.Site, channel *model.Channel) ([]int, error) {
	summaries, err := s.GetSummaries(ctx, site, channel, false)
	if err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(summaries))
	for _, summary := range summaries {
		if summary.Checked {
			ids = append(ids, summary.ID)
		}
	}
	return ids, nil
}

// GetContentIDsFiltered は期間・承認状態で絞り込んだコンテンツIDを返す。
// 条件の組み合わせが無数にあるためキャッシュしない。
// 日付の解釈に失敗した場合はクエリを組み立てずにエラーを返す。
func (s *Service) GetContentIDsFiltered(
	ctx context.Context,
	site *model.Site,
	channel *model.Channel,
	isPeriods bool,
	dateFrom, dateTo string,
	checked *bool,
) ([]int, error) {
	if site == nil || channel == nil {
		return nil, nil
	}

	var from, to *time.Time
	if isPeriods {
		var err error
		if from, err = s.parseDate(dateFrom); err != nil {
			return nil, err
		}
		if to, err = s.parseDate(dateTo); err != nil {
			return nil, err
		}
	}

	table := channel.ContentTableName(site)
	if table == "" {
		return nil, nil
	}

	spec := query.WithPeriod(
		query.WithChecked(query.ChannelScope(site.ID, channel.ID), checked),
		isPeriods, from, to,
	).Select(query.ColumnID)
	return s.tables.Get(table).GetInts(ctx, spec)
}

// parseDate は空文字をnil（境界なし）として扱う。
func (s *Service) parseDate(value string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	t, err := s.dates.Parse(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.NewInvalidDateError(value), err)
	}
	return &t, nil
}

// GetChannelIDsCheckedByRecentEdit は直近hours時間以内に編集された
// 承認済みコンテンツを持つチャンネルIDを重複なく返す。キャッシュしない。
func (s *Service) GetChannelIDsCheckedByRecentEdit(ctx context.Context, site *model.Site, hours int) ([]int, error) {
	if site == nil || site.TableName == "" {
		return nil, nil
	}

	since := s.opts.Now().Add(-time.Duration(hours) * time.Hour)
	return s.tables.Get(site.TableName).GetInts(ctx, query.CheckedSince(site.ID, since))
}
