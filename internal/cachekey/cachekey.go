// Package cachekey はコンテンツ取得クエリのキャッシュキーを生成する。
//
// キーの形式:
//
//	sitecache:count:<len>:<table>:<siteID>:<channelID>
//	sitecache:list:<len>:<table>:<siteID>:<|channelID|>
//	sitecache:entity:<len>:<table>:<contentID>
//
// テーブル名はバイト長を前置して埋め込むため、テーブル名に区切り文字が
// 含まれていても異なる組が同じキーになることはない。
package cachekey

import (
	"strconv"
	"strings"
)

const prefix = "sitecache"

// Shape はキャッシュキーが表すクエリの形を表す。
type Shape string

const (
	ShapeCount   Shape = "count"
	ShapeList    Shape = "list"
	ShapeEntity  Shape = "entity"
	ShapeUnknown Shape = "unknown"
)

// CountKey はサイト・チャンネル単位の件数キャッシュキーを返す。
func CountKey(tableName string, siteID, channelID int) string {
	return build(ShapeCount, tableName, siteID, channelID)
}

// EntityKey はコンテンツ1件のキャッシュキーを返す。
func EntityKey(tableName string, contentID int) string {
	return build(ShapeEntity, tableName, contentID)
}

// ListKey はサイト・チャンネル単位のサマリー一覧キャッシュキーを返す。
// チャンネルIDは絶対値に正規化する。負のチャンネルIDは正の値と同じ一覧を指す。
func ListKey(tableName string, siteID, channelID int) string {
	return build(ShapeList, tableName, siteID, abs(channelID))
}

// ShapeOf はキーの形を返す。このパッケージで生成したキーでない場合はShapeUnknown。
func ShapeOf(key string) Shape {
	rest, ok := strings.CutPrefix(key, prefix+":")
	if !ok {
		return ShapeUnknown
	}
	shape, _, ok := strings.Cut(rest, ":")
	if !ok {
		return ShapeUnknown
	}
	switch Shape(shape) {
	case ShapeCount, ShapeList, ShapeEntity:
		return Shape(shape)
	default:
		return ShapeUnknown
	}
}

func build(shape Shape, tableName string, ids ...int) string {
	var b strings.Builder
	b.Grow(len(prefix) + len(shape) + len(tableName) + 8 + len(ids)*8)
	b.WriteString(prefix)
	b.WriteByte(':')
	b.WriteString(string(shape))
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(len(tableName)))
	b.WriteByte(':')
	b.WriteString(tableName)
	for _, id := range ids {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(id))
	}
	return b.String()
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
