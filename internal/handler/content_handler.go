package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/sitecache/internal/middleware"
	"github.com/hitoshi/sitecache/internal/model"
)

// defaultRecentHours はrecent-channelsのhours未指定時の既定値。
const defaultRecentHours = 1

// SiteFinder はサイトを取得するインターフェース。
type SiteFinder interface {
	FindByID(ctx context.Context, id int) (*model.Site, error)
}

// ChannelFinder はチャンネルを取得するインターフェース。
type ChannelFinder interface {
	FindByID(ctx context.Context, id int) (*model.Channel, error)
}

// ContentServiceInterface はコンテンツハンドラーが必要とするサービスインターフェース。
type ContentServiceInterface interface {
	Count(ctx context.Context, site *model.Site, channel *model.Channel) (int, error)
	GetSummaries(ctx context.Context, site *model.Site, channel *model.Channel, isAllContents bool) ([]model.ContentSummary, error)
	GetContentIDs(ctx context.Context, site *model.Site, channel *model.Channel) ([]int, error)
	GetContentIDsChecked(ctx context.Context, site *model.Site, channel *model.Channel) ([]int, error)
	GetContentIDsFiltered(ctx context.Context, site *model.Site, channel *model.Channel, isPeriods bool, dateFrom, dateTo string, checked *bool) ([]int, error)
	GetContent(ctx context.Context, site *model.Site, channelID, contentID int) (*model.Content, error)
	GetChannelIDsCheckedByRecentEdit(ctx context.Context, site *model.Site, hours int) ([]int, error)
}

// ContentHandler はコンテンツ参照APIのHTTPハンドラー。
type ContentHandler struct {
	sites    SiteFinder
	channels ChannelFinder
	service  ContentServiceInterface
}

// NewContentHandler はContentHandlerを生成する。
func NewContentHandler(sites SiteFinder, channels ChannelFinder, service ContentServiceInterface) *ContentHandler {
	return &ContentHandler{
		sites:    sites,
		channels: channels,
		service:  service,
	}
}

// --- レスポンス型 ---

type countResponse struct {
	Count int `json:"count"`
}

type summariesResponse struct {
	Summaries []model.ContentSummary `json:"summaries"`
}

type contentIDsResponse struct {
	IDs []int `json:"ids"`
}

type channelIDsResponse struct {
	ChannelIDs []int `json:"channel_ids"`
}

// Count はチャンネルのコンテンツ件数を返す。
// GET /api/sites/{siteID}/channels/{channelID}/count
func (h *ContentHandler) Count(w http.ResponseWriter, r *http.Request) {
	site, channel, ok := h.resolveSiteChannel(w, r)
	if !ok {
		return
	}

	n, err := h.service.Count(r.Context(), site, channel)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, countResponse{Count: n})
}

// Summaries はチャンネルのサマリー一覧を返す。
// all=trueの場合は配下の全チャンネルを集約する。
// GET /api/sites/{siteID}/channels/{channelID}/summaries?all=true
func (h *ContentHandler) Summaries(w http.ResponseWriter, r *http.Request) {
	site, channel, ok := h.resolveSiteChannel(w, r)
	if !ok {
		return
	}

	all, ok := parseBoolQuery(w, r, "all")
	if !ok {
		return
	}

	summaries, err := h.service.GetSummaries(r.Context(), site, channel, all != nil && *all)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, summariesResponse{Summaries: nonNil(summaries)})
}

// ContentIDs はチャンネルのコンテンツIDを返す。
// 条件なし、またはchecked=trueのみの場合はキャッシュ済みサマリーから導出し、
// それ以外の条件はキャッシュを経由しない絞り込みクエリで取得する。
// GET /api/sites/{siteID}/channels/{channelID}/content-ids?checked=&periods=&from=&to=
func (h *ContentHandler) ContentIDs(w http.ResponseWriter, r *http.Request) {
	site, channel, ok := h.resolveSiteChannel(w, r)
	if !ok {
		return
	}

	checked, ok := parseBoolQuery(w, r, "checked")
	if !ok {
		return
	}
	periods, ok := parseBoolQuery(w, r, "periods")
	if !ok {
		return
	}
	isPeriods := periods != nil && *periods

	var (
		ids []int
		err error
	)
	switch {
	case checked == nil && !isPeriods:
		ids, err = h.service.GetContentIDs(r.Context(), site, channel)
	case checked != nil && *checked && !isPeriods:
		ids, err = h.service.GetContentIDsChecked(r.Context(), site, channel)
	default:
		q := r.URL.Query()
		ids, err = h.service.GetContentIDsFiltered(r.Context(), site, channel, isPeriods, q.Get("from"), q.Get("to"), checked)
	}
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, contentIDsResponse{IDs: nonNil(ids)})
}

// Content はコンテンツ1件を返す。
// GET /api/sites/{siteID}/channels/{channelID}/contents/{contentID}
func (h *ContentHandler) Content(w http.ResponseWriter, r *http.Request) {
	site, ok := h.resolveSite(w, r)
	if !ok {
		return
	}
	channelID, ok := parseIDParam(w, r, "channelID")
	if !ok {
		return
	}
	contentID, ok := parseIDParam(w, r, "contentID")
	if !ok {
		return
	}

	content, err := h.service.GetContent(r.Context(), site, channelID, contentID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if content == nil || content.SiteID != site.ID || content.ChannelID != channelID {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewContentNotFoundError(contentID))
		return
	}

	writeJSON(w, http.StatusOK, content)
}

// RecentChannels は直近hours時間に承認済みコンテンツが編集されたチャンネルIDを返す。
// GET /api/sites/{siteID}/recent-channels?hours=N
func (h *ContentHandler) RecentChannels(w http.ResponseWriter, r *http.Request) {
	site, ok := h.resolveSite(w, r)
	if !ok {
		return
	}

	hours := defaultRecentHours
	if v := r.URL.Query().Get("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidParameterError("hours", v))
			return
		}
		hours = n
	}

	ids, err := h.service.GetChannelIDsCheckedByRecentEdit(r.Context(), site, hours)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, channelIDsResponse{ChannelIDs: nonNil(ids)})
}

// resolveSite はURLパラメータのsiteIDからサイトを取得する。
// 取得できなかった場合はエラーレスポンスを書き込みfalseを返す。
func (h *ContentHandler) resolveSite(w http.ResponseWriter, r *http.Request) (*model.Site, bool) {
	siteID, ok := parseIDParam(w, r, "siteID")
	if !ok {
		return nil, false
	}

	site, err := h.sites.FindByID(r.Context(), siteID)
	if err != nil {
		handleServiceError(w, r, err)
		return nil, false
	}
	if site == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewSiteNotFoundError(siteID))
		return nil, false
	}
	return site, true
}

// resolveSiteChannel はサイトとそのサイトに属するチャンネルを取得する。
func (h *ContentHandler) resolveSiteChannel(w http.ResponseWriter, r *http.Request) (*model.Site, *model.Channel, bool) {
	site, ok := h.resolveSite(w, r)
	if !ok {
		return nil, nil, false
	}

	channelID, ok := parseIDParam(w, r, "channelID")
	if !ok {
		return nil, nil, false
	}

	channel, err := h.channels.FindByID(r.Context(), channelID)
	if err != nil {
		handleServiceError(w, r, err)
		return nil, nil, false
	}
	// 他サイトのチャンネルは存在しないものとして扱う
	if channel == nil || channel.SiteID != site.ID {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewChannelNotFoundError(channelID))
		return nil, nil, false
	}
	return site, channel, true
}

// parseIDParam は正の整数のURLパラメータを解析する。
func parseIDParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v := chi.URLParam(r, name)
	id, err := strconv.Atoi(v)
	if err != nil || id <= 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidParameterError(name, v))
		return 0, false
	}
	return id, true
}

// parseBoolQuery は真偽値のクエリパラメータを解析する。
// 未指定の場合はnilを返す。
func parseBoolQuery(w http.ResponseWriter, r *http.Request, name string) (*bool, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidParameterError(name, v))
		return nil, false
	}
	return &b, true
}

// nonNil はJSONでnullではなく空配列を返すためにnilスライスを置き換える。
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
