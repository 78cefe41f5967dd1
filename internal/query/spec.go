// Package query はコンテンツテーブルに対する検索条件を不変な値として組み立てる。
//
// Specの各メソッドは新しいSpecを返し、レシーバを変更しない。
// 組み立てたSpecはrepository.Executorに渡されて実行される。
// キャッシュキーが付与されたSpecは読み取り時にキャッシュを経由する。
package query

import "slices"

// Op は比較演算子を表す。
type Op string

const (
	OpEq  Op = "="
	OpNe  Op = "<>"
	OpGt  Op = ">"
	OpGte Op = ">="
	OpLt  Op = "<"
	OpLte Op = "<="
)

// Predicate はWHERE句の1条件を表す。条件はすべてANDで結合される。
type Predicate struct {
	Column string
	Op     Op
	Value  any
}

// Order はORDER BY句の1要素を表す。
type Order struct {
	Column string
	Desc   bool
}

// Spec は検索条件・並び順・件数上限・キャッシュキーをまとめた不変な値。
// ゼロ値は全列・条件なしの検索を表す。
type Spec struct {
	columns    []string
	distinct   bool
	predicates []Predicate
	orders     []Order
	limit      int
	cacheKey   string
}

// New は空のSpecを返す。
func New() Spec {
	return Spec{}
}

// Select は取得する列を置き換えたSpecを返す。
func (s Spec) Select(columns ...string) Spec {
	s.columns = slices.Clone(columns)
	return s
}

// Distinct は重複を除外するSpecを返す。
func (s Spec) Distinct() Spec {
	s.distinct = true
	return s
}

// Where は column = value の条件を追加したSpecを返す。
func (s Spec) Where(column string, value any) Spec {
	return s.WhereOp(column, OpEq, value)
}

// WhereNot は column <> value の条件を追加したSpecを返す。
func (s Spec) WhereNot(column string, value any) Spec {
	return s.WhereOp(column, OpNe, value)
}

// WhereTrue は真偽値列が true である条件を追加したSpecを返す。
func (s Spec) WhereTrue(column string) Spec {
	return s.WhereOp(column, OpEq, true)
}

// WhereOp は任意の比較演算子による条件を追加したSpecを返す。
func (s Spec) WhereOp(column string, op Op, value any) Spec {
	s.predicates = append(slices.Clip(s.predicates), Predicate{Column: column, Op: op, Value: value})
	return s
}

// OrderByDesc は指定列の降順ソートを追加したSpecを返す。
func (s Spec) OrderByDesc(columns ...string) Spec {
	return s.orderBy(true, columns)
}

// OrderBy は指定列の昇順ソートを追加したSpecを返す。
func (s Spec) OrderBy(columns ...string) Spec {
	return s.orderBy(false, columns)
}

func (s Spec) orderBy(desc bool, columns []string) Spec {
	orders := slices.Clip(s.orders)
	for _, c := range columns {
		orders = append(orders, Order{Column: c, Desc: desc})
	}
	s.orders = orders
	return s
}

// Limit は取得件数の上限を設定したSpecを返す。0以下は上限なし。
func (s Spec) Limit(n int) Spec {
	if n < 0 {
		n = 0
	}
	s.limit = n
	return s
}

// CachingGet はキャッシュキーを付与したSpecを返す。
// 空文字を渡すとキャッシュを経由しない。
func (s Spec) CachingGet(key string) Spec {
	s.cacheKey = key
	return s
}

// Columns は取得列のコピーを返す。空の場合は全列。
func (s Spec) Columns() []string { return slices.Clone(s.columns) }

// IsDistinct は重複除外が指定されているかを返す。
func (s Spec) IsDistinct() bool { return s.distinct }

// Predicates は条件のコピーを返す。
func (s Spec) Predicates() []Predicate { return slices.Clone(s.predicates) }

// Orders は並び順のコピーを返す。
func (s Spec) Orders() []Order { return slices.Clone(s.orders) }

// MaxRows は件数上限を返す。0は上限なし。
func (s Spec) MaxRows() int { return s.limit }

// CacheKey は付与されたキャッシュキーを返す。
func (s Spec) CacheKey() string { return s.cacheKey }
