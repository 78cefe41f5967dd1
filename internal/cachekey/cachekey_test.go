package cachekey

import (
	"fmt"
	"testing"
)

// TestListKey_SignNormalized はチャンネルIDの符号に関わらず同じ一覧キーになることを検証する。
func TestListKey_SignNormalized(t *testing.T) {
	for _, channelID := range []int{0, 1, 5, 42, 1 << 30} {
		pos := ListKey("cms_contents", 1, channelID)
		neg := ListKey("cms_contents", 1, -channelID)
		if pos != neg {
			t.Errorf("ListKey(%d) = %q, ListKey(%d) = %q, want equal", channelID, pos, -channelID, neg)
		}
	}
}

// TestCountKey_SignPreserved は件数キーではチャンネルIDの符号が区別されることを検証する。
func TestCountKey_SignPreserved(t *testing.T) {
	if CountKey("cms_contents", 1, 5) == CountKey("cms_contents", 1, -5) {
		t.Error("CountKey should distinguish negative channel ids")
	}
}

func TestKeys_Deterministic(t *testing.T) {
	if CountKey("t", 1, 2) != CountKey("t", 1, 2) {
		t.Error("CountKey is not deterministic")
	}
	if ListKey("t", 1, 2) != ListKey("t", 1, 2) {
		t.Error("ListKey is not deterministic")
	}
	if EntityKey("t", 3) != EntityKey("t", 3) {
		t.Error("EntityKey is not deterministic")
	}
}

func TestKeys_Format(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"count", CountKey("cms_contents", 1, 5), "sitecache:count:12:cms_contents:1:5"},
		{"list", ListKey("cms_contents", 1, -5), "sitecache:list:12:cms_contents:1:5"},
		{"entity", EntityKey("cms_contents", 10), "sitecache:entity:12:cms_contents:10"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s key = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

// TestKeys_NoCollisions は異なる組・異なる形のキーが衝突しないことを検証する。
// 区切り文字を含むテーブル名で組の境界をずらしても衝突しないこと。
func TestKeys_NoCollisions(t *testing.T) {
	tables := []string{"", "a", "a:1", "a:1:2", "1", "cms_contents", "cms:contents"}
	ids := []int{0, 1, 2, 12, 21, -3}

	seen := make(map[string]string)
	record := func(key, desc string) {
		t.Helper()
		if prev, ok := seen[key]; ok && prev != desc {
			t.Fatalf("collision on %q: %s vs %s", key, prev, desc)
		}
		seen[key] = desc
	}

	for _, table := range tables {
		for _, site := range ids {
			for _, ch := range ids {
				record(CountKey(table, site, ch), fmt.Sprintf("count(%q,%d,%d)", table, site, ch))
				chAbs := ch
				if chAbs < 0 {
					chAbs = -chAbs
				}
				record(ListKey(table, site, ch), fmt.Sprintf("list(%q,%d,%d)", table, site, chAbs))
			}
			record(EntityKey(table, site), fmt.Sprintf("entity(%q,%d)", table, site))
		}
	}
}

func TestShapeOf(t *testing.T) {
	tests := []struct {
		key  string
		want Shape
	}{
		{CountKey("t", 1, 2), ShapeCount},
		{ListKey("t", 1, 2), ShapeList},
		{EntityKey("t", 3), ShapeEntity},
		{EntityKey("count:x", 3), ShapeEntity},
		{"sitecache:other:1:t:1", ShapeUnknown},
		{"sitecache", ShapeUnknown},
		{"random", ShapeUnknown},
	}
	for _, tt := range tests {
		if got := ShapeOf(tt.key); got != tt.want {
			t.Errorf("ShapeOf(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}
