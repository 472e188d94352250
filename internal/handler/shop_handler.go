package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/shoppingfeed/internal/middleware"
	"github.com/hitoshi/shoppingfeed/internal/model"
	"github.com/hitoshi/shoppingfeed/internal/repository"
	"github.com/hitoshi/shoppingfeed/internal/worker/queue"
)

// FeedScheduler はフィード再生成ジョブの登録インターフェース。
// regen.Schedulerが実装する。
type FeedScheduler interface {
	// GenerateNow はショップのフィードを即時に1回生成するジョブを登録する。
	GenerateNow(ctx context.Context, shopID, userID string) error
	// UpdateTaskForShop はショップの繰り返し再生成ジョブを現在の設定で登録し直す。
	UpdateTaskForShop(ctx context.Context, shopID string) error
}

// ShopFinder はショップの存在確認に使うインターフェース。
type ShopFinder interface {
	FindByID(ctx context.Context, id string) (*model.Shop, error)
}

// ShopHandler はショップ単位のフィード操作（即時生成・設定）のHTTPハンドラー。
type ShopHandler struct {
	shops     ShopFinder
	settings  repository.SettingsRepository
	scheduler FeedScheduler
	validate  *validator.Validate
}

// NewShopHandler はShopHandlerを生成する。
func NewShopHandler(shops ShopFinder, settings repository.SettingsRepository, scheduler FeedScheduler) *ShopHandler {
	return &ShopHandler{
		shops:     shops,
		settings:  settings,
		scheduler: scheduler,
		validate:  newSettingsValidator(),
	}
}

// generateResponse は即時生成のAPIレスポンス。
type generateResponse struct {
	WasJobScheduled bool `json:"wasJobScheduled"`
}

// settingsRequest は設定更新リクエストのボディ。空の項目は変更しない。
type settingsRequest struct {
	RefreshPeriod   string `json:"refreshPeriod" validate:"omitempty,refresh_period"`
	ShippingCountry string `json:"shippingCountry" validate:"omitempty,len=2,alpha"`
}

// settingsResponse はショップ設定のAPIレスポンス。
type settingsResponse struct {
	RefreshPeriod   string `json:"refreshPeriod"`
	ShippingCountry string `json:"shippingCountry"`
}

func newSettingsValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterValidation("refresh_period", func(fl validator.FieldLevel) bool {
		_, err := queue.ParseSchedule(fl.Field().String())
		return err == nil
	})
	return v
}

// GenerateFeedsNow はショップのフィード即時生成ジョブを登録する。
// 生成完了時にリクエストしたユーザーへ通知される。
// POST /api/shops/{shopID}/google-shopping-feeds/generate
func (h *ShopHandler) GenerateFeedsNow(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	shopID, ok := h.requireShop(w, r)
	if !ok {
		return
	}

	if err := h.scheduler.GenerateNow(r.Context(), shopID, userID); err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, generateResponse{WasJobScheduled: true})
}

// GetSettings はショップのフィード設定を返す。
// GET /api/shops/{shopID}/google-shopping-feeds/settings
func (h *ShopHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	shopID, ok := h.requireShop(w, r)
	if !ok {
		return
	}

	settings, err := h.settings.AppSettings(r.Context(), shopID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSettingsResponse(settings))
}

// UpdateSettings はショップのフィード設定を更新する。
// 更新間隔が変わった場合は繰り返し再生成ジョブを登録し直す。
// PUT /api/shops/{shopID}/google-shopping-feeds/settings
func (h *ShopHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}
	req.RefreshPeriod = strings.TrimSpace(req.RefreshPeriod)
	req.ShippingCountry = strings.ToUpper(strings.TrimSpace(req.ShippingCountry))

	if err := h.validate.Struct(req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidSettingsError(err.Error()))
		return
	}

	shopID, ok := h.requireShop(w, r)
	if !ok {
		return
	}

	current, err := h.settings.AppSettings(r.Context(), shopID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	updated := current
	if req.RefreshPeriod != "" {
		updated.RefreshPeriod = req.RefreshPeriod
	}
	if req.ShippingCountry != "" {
		updated.ShippingCountry = req.ShippingCountry
	}

	if err := h.settings.UpdateSettings(r.Context(), shopID, updated); err != nil {
		middleware.WriteError(w, err)
		return
	}

	if updated.RefreshPeriod != current.RefreshPeriod {
		if err := h.scheduler.UpdateTaskForShop(r.Context(), shopID); err != nil {
			slog.Error("failed to reschedule feed regeneration",
				slog.String("shop_id", shopID),
				slog.String("error", err.Error()),
			)
			middleware.WriteError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, toSettingsResponse(updated))
}

// requireShop はURLパラメータのショップが存在することを確認する。
// 存在しない場合はエラーレスポンスを書き込み、falseを返す。
func (h *ShopHandler) requireShop(w http.ResponseWriter, r *http.Request) (string, bool) {
	shopID := chi.URLParam(r, "shopID")

	shop, err := h.shops.FindByID(r.Context(), shopID)
	if err != nil {
		middleware.WriteError(w, err)
		return "", false
	}
	if shop == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewShopNotFoundError(shopID))
		return "", false
	}
	return shop.ID, true
}

func toSettingsResponse(s model.ShopSettings) settingsResponse {
	return settingsResponse{
		RefreshPeriod:   s.RefreshPeriod,
		ShippingCountry: s.ShippingCountry,
	}
}
