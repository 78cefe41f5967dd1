package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// SelectSQL はSpecをPostgreSQLのSELECT文とプレースホルダ引数に変換する。
// テーブル名・列名はpq.QuoteIdentifierでクォートする。
func (s Spec) SelectSQL(table string) (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT ")
	if s.distinct {
		b.WriteString("DISTINCT ")
	}
	if len(s.columns) == 0 {
		b.WriteString("*")
	} else {
		for i, c := range s.columns {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(pq.QuoteIdentifier(c))
		}
	}
	b.WriteString(" FROM ")
	b.WriteString(pq.QuoteIdentifier(table))

	args := s.writeWhere(&b)

	if len(s.orders) > 0 {
		b.WriteString(" ORDER BY ")
		for i, o := range s.orders {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(pq.QuoteIdentifier(o.Column))
			if o.Desc {
				b.WriteString(" DESC")
			}
		}
	}
	if s.limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(s.limit))
	}
	return b.String(), args
}

// CountSQL はSpecの条件に一致する行数を数えるSELECT文に変換する。
// 並び順と件数上限は無視する。
func (s Spec) CountSQL(table string) (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT COUNT(*) FROM ")
	b.WriteString(pq.QuoteIdentifier(table))
	args := s.writeWhere(&b)
	return b.String(), args
}

func (s Spec) writeWhere(b *strings.Builder) []any {
	if len(s.predicates) == 0 {
		return nil
	}
	args := make([]any, 0, len(s.predicates))
	b.WriteString(" WHERE ")
	for i, p := range s.predicates {
		if i > 0 {
			b.WriteString(" AND ")
		}
		args = append(args, p.Value)
		fmt.Fprintf(b, "%s %s $%d", pq.QuoteIdentifier(p.Column), p.Op, len(args))
	}
	return args
}
