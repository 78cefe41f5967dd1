// Package warm は最近編集されたチャンネルのキャッシュを定期的に事前投入するワーカーを提供する。
package warm

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/hitoshi/sitecache/internal/metrics"
	"github.com/hitoshi/sitecache/internal/model"
	"github.com/hitoshi/sitecache/internal/repository"
)

// ContentWarmer はキャッシュの事前投入を行うインターフェース。
// content.Serviceが満たす。
type ContentWarmer interface {
	GetChannelIDsCheckedByRecentEdit(ctx context.Context, site *model.Site, hours int) ([]int, error)
	CacheAllListsAndCounts(ctx context.Context, site *model.Site, channels []*model.Channel) error
	CacheAllEntities(ctx context.Context, site *model.Site, channels []*model.Channel) error
}

// Config はSchedulerの動作設定。
type Config struct {
	// MaxConcurrency は同時に処理するサイト数の上限。
	MaxConcurrency int
	// RecentHours は対象とする編集の遡り時間。
	RecentHours int
	// SitesPerSecond はサイト処理の開始ペース。0以下の場合は制限しない。
	SitesPerSecond float64
	// FailureBackoff は失敗したサイトを次に処理するまでの初回待機時間。
	FailureBackoff time.Duration
	// MaxFailureBackoff は待機時間の上限。
	MaxFailureBackoff time.Duration
}

// Scheduler はキャッシュの事前投入をサイクル単位で実行する。
// サイトごとに直近で編集されたチャンネルを求め、一覧・件数・先頭ページのエンティティを投入する。
type Scheduler struct {
	siteRepo    repository.SiteRepository
	channelRepo repository.ChannelRepository
	warmer      ContentWarmer
	logger      *slog.Logger
	metrics     metrics.MetricsCollector
	limiter     *rate.Limiter
	backoff     *backoffTracker
	cfg         Config
	now         func() time.Time
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// MaxConcurrencyが0以下の場合は4、RecentHoursが0以下の場合は1を使用する。
func NewScheduler(
	siteRepo repository.SiteRepository,
	channelRepo repository.ChannelRepository,
	warmer ContentWarmer,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
	cfg Config,
) *Scheduler {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	if cfg.RecentHours <= 0 {
		cfg.RecentHours = 1
	}
	if cfg.FailureBackoff <= 0 {
		cfg.FailureBackoff = time.Minute
	}
	if cfg.MaxFailureBackoff < cfg.FailureBackoff {
		cfg.MaxFailureBackoff = time.Hour
	}
	if collector == nil {
		collector = metrics.Nop{}
	}

	limit := rate.Inf
	if cfg.SitesPerSecond > 0 {
		limit = rate.Limit(cfg.SitesPerSecond)
	}

	return &Scheduler{
		siteRepo:    siteRepo,
		channelRepo: channelRepo,
		warmer:      warmer,
		logger:      logger,
		metrics:     collector,
		limiter:     rate.NewLimiter(limit, 1),
		backoff:     newBackoffTracker(cfg.FailureBackoff, cfg.MaxFailureBackoff),
		cfg:         cfg,
		now:         time.Now,
	}
}

// Start はinterval間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("キャッシュウォーマーを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.cfg.MaxConcurrency),
		slog.Int("recent_hours", s.cfg.RecentHours),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("ウォームサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("キャッシュウォーマーを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("ウォームサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は全サイトについて1回ずつウォームを実行する。
// サイト単位の失敗はログに記録してバックオフし、サイクル全体のエラーにはしない。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()
	logger := s.logger.With(slog.String("run_id", uuid.NewString()))

	sites, err := s.siteRepo.List(ctx)
	if err != nil {
		return err
	}

	if len(sites) == 0 {
		logger.Info("ウォーム対象のサイトはありません")
		return nil
	}

	logger.Info("ウォームサイクルを開始します",
		slog.Int("site_count", len(sites)),
	)

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, s.cfg.MaxConcurrency)
	var wg sync.WaitGroup
	var warmed atomic.Int64

	for _, site := range sites {
		if !s.backoff.ready(site.ID, s.now()) {
			logger.Debug("バックオフ中のためサイトをスキップします",
				slog.Int("site_id", site.ID),
			)
			continue
		}
		if err := s.limiter.Wait(ctx); err != nil {
			wg.Wait()
			return err
		}

		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(site *model.Site) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			n, err := s.warmSite(ctx, site)
			if err != nil {
				nextAt := s.backoff.failure(site.ID, s.now())
				logger.Error("サイトのウォームに失敗しました",
					slog.Int("site_id", site.ID),
					slog.String("site_name", site.SiteName),
					slog.Time("next_attempt_at", nextAt),
					slog.String("error", err.Error()),
				)
				return
			}
			s.backoff.success(site.ID)
			warmed.Add(int64(n))
		}(site)
	}

	wg.Wait()

	duration := time.Since(start)
	s.metrics.RecordWarmCycle(duration, int(warmed.Load()))
	logger.Info("ウォームサイクルが完了しました",
		slog.Int("site_count", len(sites)),
		slog.Int64("channel_count", warmed.Load()),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// warmSite は1サイト分のウォームを行い、対象チャンネル数を返す。
func (s *Scheduler) warmSite(ctx context.Context, site *model.Site) (int, error) {
	ids, err := s.warmer.GetChannelIDsCheckedByRecentEdit(ctx, site, s.cfg.RecentHours)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	channels := make([]*model.Channel, 0, len(ids))
	for _, id := range ids {
		ch, err := s.channelRepo.FindByID(ctx, id)
		if err != nil {
			return 0, err
		}
		if ch == nil {
			continue
		}
		channels = append(channels, ch)
	}

	if err := s.warmer.CacheAllListsAndCounts(ctx, site, channels); err != nil {
		return 0, err
	}
	if err := s.warmer.CacheAllEntities(ctx, site, channels); err != nil {
		return 0, err
	}
	return len(channels), nil
}
