package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hitoshi/sitecache/internal/metrics"
	"github.com/hitoshi/sitecache/internal/model"
	"github.com/hitoshi/sitecache/internal/query"
)

const tracerName = "github.com/hitoshi/sitecache/internal/repository"

// PostgresExecutor はPostgreSQLに対してquery.Specを実行するExecutor。
// 1回のラウンドトリップごとにOpenTelemetryのスパンを作成し、レイテンシを記録する。
type PostgresExecutor struct {
	db      Querier
	tracer  trace.Tracer
	metrics metrics.MetricsCollector
}

// NewPostgresExecutor はPostgresExecutorを生成する。
// collectorがnilの場合はメトリクスを記録しない。
func NewPostgresExecutor(db Querier, collector metrics.MetricsCollector) *PostgresExecutor {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &PostgresExecutor{
		db:      db,
		tracer:  otel.Tracer(tracerName),
		metrics: collector,
	}
}

// observe はスパンを開始し、終了時に呼ぶ関数を返す。
func (e *PostgresExecutor) observe(ctx context.Context, op, table string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "content."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.sql.table", table),
		),
	)
	return ctx, func(err error) {
		e.metrics.RecordQueryLatency(op, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// Count はSpecの条件に一致する行数を返す。
func (e *PostgresExecutor) Count(ctx context.Context, table string, spec query.Spec) (n int, err error) {
	ctx, done := e.observe(ctx, "count", table)
	defer func() { done(err) }()

	sqlText, args := spec.CountSQL(table)
	if err = e.db.QueryRowContext(ctx, sqlText, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("コンテンツ件数の取得に失敗しました (%s): %w", table, err)
	}
	return n, nil
}

// SelectSummaries はContentSummaryの一覧を返す。
func (e *PostgresExecutor) SelectSummaries(ctx context.Context, table string, spec query.Spec) (summaries []model.ContentSummary, err error) {
	ctx, done := e.observe(ctx, "summaries", table)
	defer func() { done(err) }()

	sqlText, args := spec.Select(query.SummaryColumns...).SelectSQL(table)
	rows, err := e.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("コンテンツサマリーの取得に失敗しました (%s): %w", table, err)
	}
	defer rows.Close()

	summaries = make([]model.ContentSummary, 0)
	for rows.Next() {
		var s model.ContentSummary
		if err = rows.Scan(&s.ID, &s.ChannelID, &s.Checked); err != nil {
			return nil, fmt.Errorf("コンテンツサマリー行の読み取りに失敗しました (%s): %w", table, err)
		}
		summaries = append(summaries, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("コンテンツサマリーの走査に失敗しました (%s): %w", table, err)
	}
	return summaries, nil
}

// SelectContents はContentの一覧を返す。
func (e *PostgresExecutor) SelectContents(ctx context.Context, table string, spec query.Spec) (contents []*model.Content, err error) {
	ctx, done := e.observe(ctx, "contents", table)
	defer func() { done(err) }()

	sqlText, args := spec.Select(query.ContentColumns...).SelectSQL(table)
	rows, err := e.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("コンテンツ一覧の取得に失敗しました (%s): %w", table, err)
	}
	defer rows.Close()

	contents = make([]*model.Content, 0)
	for rows.Next() {
		c, scanErr := scanContent(rows)
		if scanErr != nil {
			err = scanErr
			return nil, fmt.Errorf("コンテンツ行の読み取りに失敗しました (%s): %w", table, err)
		}
		contents = append(contents, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("コンテンツ一覧の走査に失敗しました (%s): %w", table, err)
	}
	return contents, nil
}

// SelectContent は主キーでContentを1件取得する。見つからない場合はnilを返す。
func (e *PostgresExecutor) SelectContent(ctx context.Context, table string, contentID int) (c *model.Content, err error) {
	ctx, done := e.observe(ctx, "content", table)
	defer func() { done(err) }()

	sqlText, args := query.New().
		Select(query.ContentColumns...).
		Where(query.ColumnID, contentID).
		SelectSQL(table)

	c, err = scanContent(e.db.QueryRowContext(ctx, sqlText, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("コンテンツの取得に失敗しました (%s, id=%d): %w", table, contentID, err)
	}
	return c, nil
}

// SelectInts はSpecで選択した1列を整数として返す。
func (e *PostgresExecutor) SelectInts(ctx context.Context, table string, spec query.Spec) (ids []int, err error) {
	ctx, done := e.observe(ctx, "ints", table)
	defer func() { done(err) }()

	if cols := spec.Columns(); len(cols) != 1 {
		err = fmt.Errorf("整数列の取得には1列の選択が必要です: %v", cols)
		return nil, err
	}

	sqlText, args := spec.SelectSQL(table)
	rows, err := e.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("ID一覧の取得に失敗しました (%s): %w", table, err)
	}
	defer rows.Close()

	ids = make([]int, 0)
	for rows.Next() {
		var id int
		if err = rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ID行の読み取りに失敗しました (%s): %w", table, err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ID一覧の走査に失敗しました (%s): %w", table, err)
	}
	return ids, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通部分。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanContent はquery.ContentColumnsの順に1行を読み取る。
func scanContent(row rowScanner) (*model.Content, error) {
	c := &model.Content{}
	var title, summary, body sql.NullString
	var addDate, lastEditDate sql.NullTime

	if err := row.Scan(
		&c.ID, &c.SiteID, &c.ChannelID, &title, &summary, &body,
		&c.Checked, &c.SourceID, &c.Taxis, &addDate, &lastEditDate,
	); err != nil {
		return nil, err
	}

	c.Title = nullStringValue(title)
	c.Summary = nullStringValue(summary)
	c.Body = nullStringValue(body)
	if addDate.Valid {
		c.AddDate = addDate.Time
	}
	if lastEditDate.Valid {
		c.LastEditDate = lastEditDate.Time
	}
	return c, nil
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ Executor = (*PostgresExecutor)(nil)
