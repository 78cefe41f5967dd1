// Package dateparse は管理画面やAPIから渡される日付文字列を解釈する。
package dateparse

import (
	"fmt"
	"strings"
	"time"
)

// layouts は受け付ける書式。先頭から順に試す。
var layouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"2006/01/02 15:04:05",
	time.RFC3339,
}

// Parser は日付文字列をtime.Timeに変換する。
// タイムゾーンを含まない書式はLocationで解釈する。
type Parser struct {
	Location *time.Location
}

// New はlocで解釈するParserを生成する。locがnilの場合はUTCを使う。
func New(loc *time.Location) *Parser {
	if loc == nil {
		loc = time.UTC
	}
	return &Parser{Location: loc}
}

// Parse は文字列を日付として解釈する。いずれの書式にも一致しない場合はエラーを返す。
func (p *Parser) Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("日付が空です")
	}

	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("日付の書式が不正です: %q", s)
}

// Parse はUTCで日付文字列を解釈する。
func Parse(s string) (time.Time, error) {
	return New(time.UTC).Parse(s)
}
