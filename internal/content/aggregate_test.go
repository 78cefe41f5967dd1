package content

import (
	"context"
	"errors"
	"maps"
	"slices"
	"testing"

	"github.com/hitoshi/sitecache/internal/cachekey"
	"github.com/hitoshi/sitecache/internal/model"
)

// seedTree は子孫D1（サマリー[5,3]）とD2（サマリー[9]）を持つチャンネル1を用意する。
func seedTree(f *fixture, order []int) {
	root := &model.Channel{ID: 1, SiteID: 1}
	d1 := &model.Channel{ID: 21, SiteID: 1, ParentID: 1}
	d2 := &model.Channel{ID: 22, SiteID: 1, ParentID: 1, TableName: "cms_contents_d2"}

	f.exec.Insert(table,
		&model.Content{ID: 5, SiteID: 1, ChannelID: 21, Taxis: 2},
		&model.Content{ID: 3, SiteID: 1, ChannelID: 21, Taxis: 1},
	)
	f.exec.Insert("cms_contents_d2", &model.Content{ID: 9, SiteID: 1, ChannelID: 22, Taxis: 1})

	f.channels.findByIDFn = channelsByID(root, d1, d2)
	f.channels.getChannelIDsFn = func(_ context.Context, siteID, channelID int, scope model.ScopeType) ([]int, error) {
		if siteID != 1 || channelID != 1 || scope != model.ScopeAll {
			return nil, errors.New("unexpected arguments")
		}
		return order, nil
	}
}

// 集約結果の順序がチャンネルの列挙順に従うことを検証
func TestGetSummaries_AllContents_FollowsEnumerationOrder(t *testing.T) {
	tests := []struct {
		name  string
		order []int
		want  []int
	}{
		{"D1が先", []int{1, 21, 22}, []int{5, 3, 9}},
		{"D2が先", []int{1, 22, 21}, []int{9, 5, 3}},
	}

	for _, tt := range tests {
		for _, concurrency := range []int{1, 4} {
			t.Run(tt.name, func(t *testing.T) {
				f := newFixture(Options{Concurrency: concurrency})
				seedTree(f, tt.order)

				got, err := f.svc.GetSummaries(context.Background(), siteS1, &model.Channel{ID: 1, SiteID: 1}, true)
				if err != nil {
					t.Fatalf("GetSummaries returned error: %v", err)
				}
				if !slices.Equal(summaryIDs(got), tt.want) {
					t.Errorf("concurrency=%d: ids = %v, want %v", concurrency, summaryIDs(got), tt.want)
				}
			})
		}
	}
}

// 同じチャンネルが2回列挙された場合は重複して含まれることを検証
func TestGetSummaries_AllContents_NoDeduplication(t *testing.T) {
	f := newFixture(Options{Concurrency: 2})
	seedTree(f, []int{21, 21})

	got, err := f.svc.GetSummaries(context.Background(), siteS1, &model.Channel{ID: 1, SiteID: 1}, true)
	if err != nil {
		t.Fatalf("GetSummaries returned error: %v", err)
	}
	if want := []int{5, 3, 5, 3}; !slices.Equal(summaryIDs(got), want) {
		t.Errorf("ids = %v, want %v", summaryIDs(got), want)
	}
}

// 存在しないチャンネルは何も寄与しないことを検証
func TestGetSummaries_AllContents_MissingChannelSkipped(t *testing.T) {
	f := newFixture(Options{})
	seedTree(f, []int{404, 22})

	got, err := f.svc.GetSummaries(context.Background(), siteS1, &model.Channel{ID: 1, SiteID: 1}, true)
	if err != nil {
		t.Fatalf("GetSummaries returned error: %v", err)
	}
	if want := []int{9}; !slices.Equal(summaryIDs(got), want) {
		t.Errorf("ids = %v, want %v", summaryIDs(got), want)
	}
}

// チャンネルツリーのエラーがそのまま返ることを検証
func TestGetSummaries_AllContents_TreeError(t *testing.T) {
	f := newFixture(Options{})
	boom := errors.New("tree unavailable")
	f.channels.getChannelIDsFn = func(context.Context, int, int, model.ScopeType) ([]int, error) {
		return nil, boom
	}

	_, err := f.svc.GetSummaries(context.Background(), siteS1, channelC5, true)
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

// 2回実行してもキャッシュ内容が変わらず、2回目はクエリを発行しないことを検証
func TestCacheAllListsAndCounts_Idempotent(t *testing.T) {
	f := newFixture(Options{Concurrency: 3})
	seedC5(f)
	ctx := context.Background()
	channels := []*model.Channel{channelC5, {ID: 6, SiteID: 1}}

	if err := f.svc.CacheAllListsAndCounts(ctx, siteS1, channels); err != nil {
		t.Fatalf("CacheAllListsAndCounts returned error: %v", err)
	}
	first := f.store.snapshot()
	calls := f.exec.TotalCalls()

	if err := f.svc.CacheAllListsAndCounts(ctx, siteS1, channels); err != nil {
		t.Fatalf("CacheAllListsAndCounts returned error: %v", err)
	}

	if !maps.Equal(first, f.store.snapshot()) {
		t.Error("cache contents changed on second run")
	}
	if f.exec.TotalCalls() != calls {
		t.Errorf("storage calls = %d, want %d", f.exec.TotalCalls(), calls)
	}
	if calls != 2 {
		t.Errorf("first run storage calls = %d, want 1 per channel", calls)
	}
	if f.metrics.primed["list"] != 2 || f.metrics.primed["count"] != 2 {
		t.Errorf("primed = %v, want list=2 count=2", f.metrics.primed)
	}
}

// 投入した件数キーがCountの結果と一致することを検証
func TestCacheAllListsAndCounts_PopulatesBothKeys(t *testing.T) {
	f := newFixture(Options{})
	seedC5(f)
	ctx := context.Background()

	if err := f.svc.CacheAllListsAndCounts(ctx, siteS1, []*model.Channel{channelC5}); err != nil {
		t.Fatalf("CacheAllListsAndCounts returned error: %v", err)
	}
	calls := f.exec.TotalCalls()

	n, err := f.svc.Count(ctx, siteS1, channelC5)
	if err != nil {
		t.Fatalf("Count returned error: %v", err)
	}
	summaries, err := f.svc.GetSummaries(ctx, siteS1, channelC5, false)
	if err != nil {
		t.Fatalf("GetSummaries returned error: %v", err)
	}

	if n != 3 {
		t.Errorf("Count = %d, want 3", n)
	}
	if want := []int{11, 10, 12}; !slices.Equal(summaryIDs(summaries), want) {
		t.Errorf("ids = %v, want %v", summaryIDs(summaries), want)
	}
	if f.exec.TotalCalls() != calls {
		t.Error("reads after priming should be served from cache")
	}
}

// リストキーだけが存在する場合もチャンネル全体をスキップすることを検証
func TestCacheAllListsAndCounts_SkipsWhenEitherKeyExists(t *testing.T) {
	f := newFixture(Options{})
	seedC5(f)
	ctx := context.Background()

	listKey := cachekey.ListKey(table, 1, 5)
	countKey := cachekey.CountKey(table, 1, 5)
	if err := f.store.Put(ctx, listKey, []byte(`[]`)); err != nil {
		t.Fatal(err)
	}

	if err := f.svc.CacheAllListsAndCounts(ctx, siteS1, []*model.Channel{channelC5}); err != nil {
		t.Fatalf("CacheAllListsAndCounts returned error: %v", err)
	}

	if f.exec.TotalCalls() != 0 {
		t.Errorf("storage calls = %d, want 0", f.exec.TotalCalls())
	}
	if _, ok := f.store.snapshot()[countKey]; ok {
		t.Error("count key should not be populated when list key exists")
	}
	if got := f.store.snapshot()[listKey]; got != "[]" {
		t.Errorf("list key = %q, want untouched", got)
	}
}

// 先頭ページのエンティティが投入されることを検証
func TestCacheAllEntities_PrimesFirstPage(t *testing.T) {
	f := newFixture(Options{})
	seedC5(f)
	ctx := context.Background()

	if err := f.svc.CacheAllEntities(ctx, siteS1, []*model.Channel{channelC5}); err != nil {
		t.Fatalf("CacheAllEntities returned error: %v", err)
	}

	snapshot := f.store.snapshot()
	// PageSize=2 のため 11, 10 のみ
	for _, id := range []int{11, 10} {
		if _, ok := snapshot[cachekey.EntityKey(table, id)]; !ok {
			t.Errorf("entity %d should be cached", id)
		}
	}
	if _, ok := snapshot[cachekey.EntityKey(table, 12)]; ok {
		t.Error("entity 12 is beyond the page size and should not be cached")
	}
	if f.metrics.primed["entity"] != 2 {
		t.Errorf("primed entity = %d, want 2", f.metrics.primed["entity"])
	}

	calls := f.exec.Calls("content")
	c, err := f.svc.GetEntity(ctx, table, 11)
	if err != nil || c == nil || c.ID != 11 {
		t.Fatalf("GetEntity(11) = %+v, %v", c, err)
	}
	if f.exec.Calls("content") != calls {
		t.Error("primed entity should be served from cache")
	}
}

// 先頭のエンティティがキャッシュ済みの場合はスキップすることを検証
func TestCacheAllEntities_SkipsWhenFirstCached(t *testing.T) {
	f := newFixture(Options{})
	seedC5(f)
	ctx := context.Background()

	if _, err := f.svc.GetEntity(ctx, table, 11); err != nil {
		t.Fatal(err)
	}

	if err := f.svc.CacheAllEntities(ctx, siteS1, []*model.Channel{channelC5}); err != nil {
		t.Fatalf("CacheAllEntities returned error: %v", err)
	}
	if f.exec.Calls("contents") != 0 {
		t.Errorf("contents calls = %d, want 0", f.exec.Calls("contents"))
	}
}

// 空のチャンネルは何もしないことを検証
func TestCacheAllEntities_EmptyChannel(t *testing.T) {
	f := newFixture(Options{})
	ctx := context.Background()

	if err := f.svc.CacheAllEntities(ctx, siteS1, []*model.Channel{{ID: 99, SiteID: 1}}); err != nil {
		t.Fatalf("CacheAllEntities returned error: %v", err)
	}
	if f.exec.Calls("contents") != 0 {
		t.Errorf("contents calls = %d, want 0", f.exec.Calls("contents"))
	}
}

// 途中のエラーが返ることを検証
func TestCacheAllEntities_ErrorPropagates(t *testing.T) {
	f := newFixture(Options{Concurrency: 2})
	seedC5(f)
	boom := errors.New("query failed")
	f.exec.FailWith(boom)

	err := f.svc.CacheAllEntities(context.Background(), siteS1, []*model.Channel{channelC5, {ID: 6, SiteID: 1}})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}
