package content

import (
	"context"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/sitecache/internal/cachekey"
	"github.com/hitoshi/sitecache/internal/model"
	"github.com/hitoshi/sitecache/internal/query"
)

// aggregateSummaries はチャンネル自身と全子孫のサマリーを連結して返す。
// チャンネルの順序はChannelRepositoryの列挙順に従い、重複は除かない。
func (s *Service) aggregateSummaries(ctx context.Context, site *model.Site, channel *model.Channel) ([]model.ContentSummary, error) {
	channelIDs, err := s.channels.GetChannelIDs(ctx, site.ID, channel.ID, model.ScopeAll)
	if err != nil {
		return nil, err
	}
	if len(channelIDs) == 0 {
		return nil, nil
	}

	parts := make([][]model.ContentSummary, len(channelIDs))
	err = s.forEach(ctx, len(channelIDs), func(ctx context.Context, i int) error {
		ch, err := s.channels.FindByID(ctx, channelIDs[i])
		if err != nil {
			return err
		}
		if ch == nil {
			return nil
		}
		parts[i], err = s.channelSummaries(ctx, site, ch)
		return err
	})
	if err != nil {
		return nil, err
	}

	return slices.Concat(parts...), nil
}

// CacheAllListsAndCounts は各チャンネルのリストキーと件数キーを1回のクエリで投入する。
// どちらかのキーがすでに存在するチャンネルは何もしない。
func (s *Service) CacheAllListsAndCounts(ctx context.Context, site *model.Site, channels []*model.Channel) error {
	if site == nil {
		return nil
	}

	return s.forEach(ctx, len(channels), func(ctx context.Context, i int) error {
		ch := channels[i]
		if ch == nil {
			return nil
		}
		table := ch.ContentTableName(site)
		if table == "" {
			return nil
		}

		t := s.tables.Get(table)
		mgr := t.CacheManager()
		listKey := cachekey.ListKey(table, site.ID, ch.ID)
		countKey := cachekey.CountKey(table, site.ID, ch.ID)

		listExists, err := mgr.Exists(ctx, listKey)
		if err != nil {
			return err
		}
		countExists, err := mgr.Exists(ctx, countKey)
		if err != nil {
			return err
		}
		if listExists || countExists {
			s.logger.Debug("キャッシュ済みのためスキップ",
				slog.Int("site_id", site.ID),
				slog.Int("channel_id", ch.ID),
			)
			return nil
		}

		summaries, err := t.GetSummaries(ctx, query.Summaries(site.ID, ch.ID))
		if err != nil {
			return err
		}
		if err := mgr.Put(ctx, listKey, summaries); err != nil {
			return err
		}
		if err := mgr.Put(ctx, countKey, len(summaries)); err != nil {
			return err
		}
		s.metrics.RecordEntriesPrimed("list", 1)
		s.metrics.RecordEntriesPrimed("count", 1)
		return nil
	})
}

// CacheAllEntities は各チャンネルの先頭ページのコンテンツをエンティティキーに投入する。
// 一覧の先頭のコンテンツがすでにキャッシュされているチャンネルは何もしない。
func (s *Service) CacheAllEntities(ctx context.Context, site *model.Site, channels []*model.Channel) error {
	if site == nil {
		return nil
	}
	pageSize := site.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	return s.forEach(ctx, len(channels), func(ctx context.Context, i int) error {
		ch := channels[i]
		if ch == nil {
			return nil
		}
		table := ch.ContentTableName(site)
		if table == "" {
			return nil
		}

		summaries, err := s.channelSummaries(ctx, site, ch)
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			return nil
		}

		t := s.tables.Get(table)
		mgr := t.CacheManager()
		exists, err := mgr.Exists(ctx, cachekey.EntityKey(table, summaries[0].ID))
		if err != nil {
			return err
		}
		if exists {
			return nil
		}

		contents, err := t.GetContents(ctx, query.ChannelScope(site.ID, ch.ID).Limit(pageSize))
		if err != nil {
			return err
		}
		for _, c := range contents {
			if err := mgr.Put(ctx, cachekey.EntityKey(table, c.ID), c); err != nil {
				return err
			}
		}
		s.metrics.RecordEntriesPrimed("entity", len(contents))
		return nil
	})
}

// forEach はfnを0..n-1について最大Concurrency並行で実行する。
// 最初のエラーで残りの処理をキャンセルし、そのエラーを返す。
// 結果はインデックスで書き戻すため、呼び出し側の順序は保たれる。
func (s *Service) forEach(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	for i := range n {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(ctx, i)
		})
	}
	return g.Wait()
}
