// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/shoppingfeed/internal/middleware"
	"github.com/hitoshi/shoppingfeed/internal/model"
)

// FeedQuerier はフィード配信ハンドラーが必要とするサービスインターフェース。
type FeedQuerier interface {
	// GetFeed はショップURLのドメインに一致するショップのフィードを返す。見つからない場合はnil。
	GetFeed(ctx context.Context, handle, shopURL string) (*model.GoogleShoppingFeed, error)
	// ServePrimary はプライマリショップのフィードを返す。見つからない場合はnil。
	ServePrimary(ctx context.Context, handle, storefrontURL string) (*model.GoogleShoppingFeed, error)
}

// FeedHandler は生成済みフィード配信のHTTPハンドラー。
type FeedHandler struct {
	service       FeedQuerier
	storefrontURL string
}

// NewFeedHandler はFeedHandlerを生成する。
// storefrontURLが空の場合はリクエストのスキームとホストからBASE_URLの置換先を決める。
func NewFeedHandler(service FeedQuerier, storefrontURL string) *FeedHandler {
	return &FeedHandler{
		service:       service,
		storefrontURL: strings.TrimRight(storefrontURL, "/"),
	}
}

// feedResponse はフィードのAPIレスポンス。
type feedResponse struct {
	ShopID    string    `json:"shopId"`
	Handle    string    `json:"handle"`
	XML       string    `json:"xml"`
	CreatedAt time.Time `json:"createdAt"`
}

// ServeXML はプライマリショップのフィードXMLを返す。
// GET /google-shopping-feed*
func (h *FeedHandler) ServeXML(w http.ResponseWriter, r *http.Request) {
	handle := strings.TrimPrefix(r.URL.Path, "/")

	storefront := h.storefrontURL
	if storefront == "" {
		storefront = requestOrigin(r)
	}

	feed, err := h.service.ServePrimary(r.Context(), handle, storefront)
	if err != nil {
		slog.Error("failed to serve feed",
			slog.String("handle", handle),
			slog.String("error", err.Error()),
		)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if feed == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, feed.XML)
}

// GetFeed はショップURLとハンドルでフィードを取得する。
// GET /api/google-shopping-feeds?handle=&shopUrl=
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	handle := strings.TrimSpace(q.Get("handle"))
	if handle == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidHandleError())
		return
	}

	feed, err := h.service.GetFeed(r.Context(), handle, q.Get("shopUrl"))
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if feed == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewFeedNotFoundError(handle))
		return
	}

	writeJSON(w, http.StatusOK, feedResponse{
		ShopID:    feed.ShopID,
		Handle:    feed.Handle,
		XML:       feed.XML,
		CreatedAt: feed.CreatedAt,
	})
}

// requestOrigin はリクエストのスキームとホストから "https://host" 形式のURLを組み立てる。
func requestOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}
