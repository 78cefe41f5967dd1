package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/hitoshi/sitecache/internal/model"
	"github.com/hitoshi/sitecache/internal/query"
)

// MemoryExecutor はメモリ上の行に対してquery.Specを評価するExecutor。
// 複数パッケージのテストで共有するテストダブルで、本番の配線では使用しない。
// 操作ごとの呼び出し回数を記録する。
type MemoryExecutor struct {
	mu     sync.Mutex
	tables map[string][]*model.Content
	calls  map[string]int
	err    error
}

// NewMemoryExecutor は空のMemoryExecutorを生成する。
func NewMemoryExecutor() *MemoryExecutor {
	return &MemoryExecutor{
		tables: make(map[string][]*model.Content),
		calls:  make(map[string]int),
	}
}

// Insert はテーブルに行を追加する。
func (m *MemoryExecutor) Insert(table string, contents ...*model.Content) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range contents {
		cp := *c
		m.tables[table] = append(m.tables[table], &cp)
	}
}

// Update は同じIDの行を置き換える。キャッシュは無効化されない。
func (m *MemoryExecutor) Update(table string, content *model.Content) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.tables[table] {
		if c.ID == content.ID {
			cp := *content
			m.tables[table][i] = &cp
			return
		}
	}
}

// FailWith は以降のすべての操作がerrを返すようにする。nilで解除する。
func (m *MemoryExecutor) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls は指定操作の呼び出し回数を返す。
// 操作名は "count", "summaries", "contents", "content", "ints"。
func (m *MemoryExecutor) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// TotalCalls は全操作の呼び出し回数の合計を返す。
func (m *MemoryExecutor) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// begin は呼び出しを記録し、注入されたエラーを返す。呼び出し側でロックを保持すること。
func (m *MemoryExecutor) begin(ctx context.Context, op string) error {
	m.calls[op]++
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.err
}

// Count はSpecの条件に一致する行数を返す。
func (m *MemoryExecutor) Count(ctx context.Context, table string, spec query.Spec) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, "count"); err != nil {
		return 0, err
	}
	return len(m.filter(table, spec.Predicates())), nil
}

// SelectSummaries はContentSummaryの一覧を返す。
func (m *MemoryExecutor) SelectSummaries(ctx context.Context, table string, spec query.Spec) ([]model.ContentSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, "summaries"); err != nil {
		return nil, err
	}

	rows := m.selectRows(table, spec)
	summaries := make([]model.ContentSummary, 0, len(rows))
	for _, c := range rows {
		summaries = append(summaries, model.ContentSummary{ID: c.ID, ChannelID: c.ChannelID, Checked: c.Checked})
	}
	return summaries, nil
}

// SelectContents はContentの一覧を返す。
func (m *MemoryExecutor) SelectContents(ctx context.Context, table string, spec query.Spec) ([]*model.Content, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, "contents"); err != nil {
		return nil, err
	}

	rows := m.selectRows(table, spec)
	contents := make([]*model.Content, 0, len(rows))
	for _, c := range rows {
		cp := *c
		contents = append(contents, &cp)
	}
	return contents, nil
}

// SelectContent は主キーでContentを1件取得する。見つからない場合はnilを返す。
func (m *MemoryExecutor) SelectContent(ctx context.Context, table string, contentID int) (*model.Content, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, "content"); err != nil {
		return nil, err
	}

	for _, c := range m.tables[table] {
		if c.ID == contentID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

// SelectInts はSpecで選択した1列を整数として返す。
func (m *MemoryExecutor) SelectInts(ctx context.Context, table string, spec query.Spec) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ctx, "ints"); err != nil {
		return nil, err
	}

	cols := spec.Columns()
	if len(cols) != 1 {
		return nil, fmt.Errorf("整数列の取得には1列の選択が必要です: %v", cols)
	}

	ids := make([]int, 0)
	seen := make(map[int]bool)
	for _, c := range m.selectRows(table, spec) {
		v, ok := columnValue(c, cols[0])
		if !ok {
			return nil, fmt.Errorf("未知の列です: %s", cols[0])
		}
		id, ok := v.(int)
		if !ok {
			return nil, fmt.Errorf("整数ではない列です: %s", cols[0])
		}
		if spec.IsDistinct() {
			if seen[id] {
				continue
			}
			seen[id] = true
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// selectRows は条件・並び順・件数上限を適用した行を返す。
func (m *MemoryExecutor) selectRows(table string, spec query.Spec) []*model.Content {
	rows := m.filter(table, spec.Predicates())

	orders := spec.Orders()
	if len(orders) > 0 {
		slices.SortStableFunc(rows, func(a, b *model.Content) int {
			for _, o := range orders {
				av, _ := columnValue(a, o.Column)
				bv, _ := columnValue(b, o.Column)
				c, _ := compareValues(av, bv)
				if o.Desc {
					c = -c
				}
				if c != 0 {
					return c
				}
			}
			return 0
		})
	}

	if n := spec.MaxRows(); n > 0 && len(rows) > n {
		rows = rows[:n]
	}
	return rows
}

func (m *MemoryExecutor) filter(table string, predicates []query.Predicate) []*model.Content {
	var rows []*model.Content
	for _, c := range m.tables[table] {
		if matchAll(c, predicates) {
			rows = append(rows, c)
		}
	}
	return rows
}

func matchAll(c *model.Content, predicates []query.Predicate) bool {
	for _, p := range predicates {
		v, ok := columnValue(c, p.Column)
		if !ok {
			return false
		}
		cmpResult, ok := compareValues(v, p.Value)
		if !ok {
			return false
		}
		if !opHolds(p.Op, cmpResult) {
			return false
		}
	}
	return true
}

func opHolds(op query.Op, c int) bool {
	switch op {
	case query.OpEq:
		return c == 0
	case query.OpNe:
		return c != 0
	case query.OpGt:
		return c > 0
	case query.OpGte:
		return c >= 0
	case query.OpLt:
		return c < 0
	case query.OpLte:
		return c <= 0
	default:
		return false
	}
}

func columnValue(c *model.Content, column string) (any, bool) {
	switch column {
	case query.ColumnID:
		return c.ID, true
	case query.ColumnSiteID:
		return c.SiteID, true
	case query.ColumnChannelID:
		return c.ChannelID, true
	case query.ColumnTitle:
		return c.Title, true
	case query.ColumnSummary:
		return c.Summary, true
	case query.ColumnBody:
		return c.Body, true
	case query.ColumnChecked:
		return c.Checked, true
	case query.ColumnSourceID:
		return c.SourceID, true
	case query.ColumnTaxis:
		return c.Taxis, true
	case query.ColumnAddDate:
		return c.AddDate, true
	case query.ColumnLastEditDate:
		return c.LastEditDate, true
	default:
		return nil, false
	}
}

// compareValues は同じ型の値を比較する。型が異なる場合はfalseを返す。
func compareValues(a, b any) (int, bool) {
	switch av := a.(type) {
	case int:
		bv, ok := b.(int)
		return cmp.Compare(av, bv), ok
	case string:
		bv, ok := b.(string)
		return cmp.Compare(av, bv), ok
	case bool:
		bv, ok := b.(bool)
		return cmp.Compare(boolRank(av), boolRank(bv)), ok
	case time.Time:
		bv, ok := b.(time.Time)
		return av.Compare(bv), ok
	default:
		return 0, false
	}
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ Executor = (*MemoryExecutor)(nil)
