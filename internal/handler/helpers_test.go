package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/sitecache/internal/model"
)

// --- モック定義 ---

// mockSiteFinder はSiteFinderのモック実装。
type mockSiteFinder struct {
	findByIDFn func(ctx context.Context, id int) (*model.Site, error)
}

func (m *mockSiteFinder) FindByID(ctx context.Context, id int) (*model.Site, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

// mockChannelFinder はChannelFinderのモック実装。
type mockChannelFinder struct {
	findByIDFn func(ctx context.Context, id int) (*model.Channel, error)
}

func (m *mockChannelFinder) FindByID(ctx context.Context, id int) (*model.Channel, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

// mockContentService はContentServiceInterfaceのモック実装。
type mockContentService struct {
	countFn                 func(ctx context.Context, site *model.Site, channel *model.Channel) (int, error)
	getSummariesFn          func(ctx context.Context, site *model.Site, channel *model.Channel, isAllContents bool) ([]model.ContentSummary, error)
	getContentIDsFn         func(ctx context.Context, site *model.Site, channel *model.Channel) ([]int, error)
	getContentIDsCheckedFn  func(ctx context.Context, site *model.Site, channel *model.Channel) ([]int, error)
	getContentIDsFilteredFn func(ctx context.Context, site *model.Site, channel *model.Channel, isPeriods bool, dateFrom, dateTo string, checked *bool) ([]int, error)
	getContentFn            func(ctx context.Context, site *model.Site, channelID, contentID int) (*model.Content, error)
	getRecentChannelIDsFn   func(ctx context.Context, site *model.Site, hours int) ([]int, error)
}

func (m *mockContentService) Count(ctx context.Context, site *model.Site, channel *model.Channel) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx, site, channel)
	}
	return 0, nil
}

func (m *mockContentService) GetSummaries(ctx context.Context, site *model.Site, channel *model.Channel, isAllContents bool) ([]model.ContentSummary, error) {
	if m.getSummariesFn != nil {
		return m.getSummariesFn(ctx, site, channel, isAllContents)
	}
	return nil, nil
}

func (m *mockContentService) GetContentIDs(ctx context.Context, site *model.Site, channel *model.Channel) ([]int, error) {
	if m.getContentIDsFn != nil {
		return m.getContentIDsFn(ctx, site, channel)
	}
	return nil, nil
}

func (m *mockContentService) GetContentIDsChecked(ctx context.Context, site *model.Site, channel *model.Channel) ([]int, error) {
	if m.getContentIDsCheckedFn != nil {
		return m.getContentIDsCheckedFn(ctx, site, channel)
	}
	return nil, nil
}

func (m *mockContentService) GetContentIDsFiltered(ctx context.Context, site *model.Site, channel *model.Channel, isPeriods bool, dateFrom, dateTo string, checked *bool) ([]int, error) {
	if m.getContentIDsFilteredFn != nil {
		return m.getContentIDsFilteredFn(ctx, site, channel, isPeriods, dateFrom, dateTo, checked)
	}
	return nil, nil
}

func (m *mockContentService) GetContent(ctx context.Context, site *model.Site, channelID, contentID int) (*model.Content, error) {
	if m.getContentFn != nil {
		return m.getContentFn(ctx, site, channelID, contentID)
	}
	return nil, nil
}

func (m *mockContentService) GetChannelIDsCheckedByRecentEdit(ctx context.Context, site *model.Site, hours int) ([]int, error) {
	if m.getRecentChannelIDsFn != nil {
		return m.getRecentChannelIDsFn(ctx, site, hours)
	}
	return nil, nil
}

// mockHealthChecker はHealthCheckerのモック実装。
type mockHealthChecker struct {
	pingFn func(ctx context.Context) error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

// --- テストヘルパー ---

// testSite はテスト用の既定サイト。
var testSite = &model.Site{ID: 1, SiteName: "main", TableName: "cms_contents", PageSize: 20}

// siteFinderFor は指定サイトのみを返すSiteFinderを生成する。
func siteFinderFor(sites ...*model.Site) *mockSiteFinder {
	return &mockSiteFinder{
		findByIDFn: func(ctx context.Context, id int) (*model.Site, error) {
			for _, s := range sites {
				if s.ID == id {
					return s, nil
				}
			}
			return nil, nil
		},
	}
}

// channelFinderFor は指定チャンネルのみを返すChannelFinderを生成する。
func channelFinderFor(channels ...*model.Channel) *mockChannelFinder {
	return &mockChannelFinder{
		findByIDFn: func(ctx context.Context, id int) (*model.Channel, error) {
			for _, c := range channels {
				if c.ID == id {
					return c, nil
				}
			}
			return nil, nil
		},
	}
}

// newTestRouter はモックを注入したルーターを生成する。
func newTestRouter(svc ContentServiceInterface, channels ...*model.Channel) http.Handler {
	return NewRouter(&RouterDeps{
		Sites:          siteFinderFor(testSite),
		Channels:       channelFinderFor(channels...),
		ContentService: svc,
	})
}

// serve はルーターにGETリクエストを送りレスポンスを返す。
func serve(h http.Handler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// decodeJSON はレスポンスボディをdstにデコードするヘルパー。
func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(dst); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}
