package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/shoppingfeed/internal/model"
	"github.com/hitoshi/shoppingfeed/internal/repository"
)

// NotificationTypeFeedGenerated は手動生成完了時の通知種別。
const NotificationTypeFeedGenerated = "googleShoppingFeedGenerated"

const (
	notificationMessage = "Google Shopping feed refresh is complete"
	notificationURL     = "/" + model.FeedHandleIndex
)

// GenerationMetrics はフィード生成のメトリクス記録インターフェース。
type GenerationMetrics interface {
	RecordGeneration(result string)
	RecordGenerationLatency(duration time.Duration)
	RecordItemsRendered(count int)
}

// 生成結果のラベル
const (
	ResultRegenerated = "regenerated"
	ResultSkipped     = "skipped"
	ResultFailed      = "failed"
)

// Transformer は商品をフィードアイテムに変換するインターフェース。
type Transformer interface {
	Transform(p *model.CatalogProduct) []model.FeedItemRecord
}

// Generator はショップ単位でフィードを生成し、FeedStoreへ保存する。
// 1回の生成は自己完結しており、ショップ間で状態を共有しない。
type Generator struct {
	shopRepo         repository.ShopRepository
	catalogRepo      repository.CatalogRepository
	shippingRepo     repository.ShippingRepository
	settingsRepo     repository.SettingsRepository
	feedRepo         repository.FeedRepository
	notificationRepo repository.NotificationRepository
	transformer      Transformer
	metrics          GenerationMetrics
	logger           *slog.Logger
	now              func() time.Time
	validateFeed     func(doc *model.GoogleShoppingFeed) error
}

// NewGenerator はGeneratorを生成する。
func NewGenerator(
	shopRepo repository.ShopRepository,
	catalogRepo repository.CatalogRepository,
	shippingRepo repository.ShippingRepository,
	settingsRepo repository.SettingsRepository,
	feedRepo repository.FeedRepository,
	notificationRepo repository.NotificationRepository,
	transformer Transformer,
	metrics GenerationMetrics,
	logger *slog.Logger,
) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		shopRepo:         shopRepo,
		catalogRepo:      catalogRepo,
		shippingRepo:     shippingRepo,
		settingsRepo:     settingsRepo,
		feedRepo:         feedRepo,
		notificationRepo: notificationRepo,
		transformer:      transformer,
		metrics:          metrics,
		logger:           logger,
		now:              time.Now,
		validateFeed:     ValidateFeed,
	}
}

// Generate は指定ショップのフィードを順に生成する。
// notifyUserIDが指定されていれば、全ショップの生成完了後にそのユーザーへ通知する。
// 最初に失敗したショップでエラーを返し、以降のショップは処理しない。
func (g *Generator) Generate(ctx context.Context, shopIDs []string, notifyUserID string) error {
	if len(shopIDs) == 0 {
		return model.ErrNoShopIDs
	}

	start := g.now()
	for _, shopID := range shopIDs {
		if _, err := g.GenerateForShop(ctx, shopID); err != nil {
			return err
		}
	}

	g.logger.Info("Google Shoppingフィードの生成処理が完了しました",
		slog.Int("shops", len(shopIDs)),
		slog.Duration("took", g.now().Sub(start)),
	)

	if notifyUserID != "" {
		n := &model.Notification{
			AccountID: notifyUserID,
			Type:      NotificationTypeFeedGenerated,
			Message:   notificationMessage,
			URL:       notificationURL,
		}
		if err := g.notificationRepo.Create(ctx, n); err != nil {
			return fmt.Errorf("生成完了通知の作成に失敗しました: %w", err)
		}
	}

	return nil
}

// GenerateForShop は1ショップ分のフィードを生成する。
// 保存済みフィードが最新であれば何も書き込まずfalseを返す。
func (g *Generator) GenerateForShop(ctx context.Context, shopID string) (bool, error) {
	start := g.now()

	regenerated, items, err := g.generate(ctx, shopID, start)
	if err != nil {
		g.record(ResultFailed)
		return false, err
	}
	if !regenerated {
		g.record(ResultSkipped)
		g.logger.Debug("フィードは最新のため再生成をスキップしました", slog.String("shop_id", shopID))
		return false, nil
	}

	took := g.now().Sub(start)
	g.record(ResultRegenerated)
	if g.metrics != nil {
		g.metrics.RecordGenerationLatency(took)
		g.metrics.RecordItemsRendered(items)
	}
	g.logger.Info("Google Shoppingフィードを再生成しました",
		slog.String("shop_id", shopID),
		slog.Int("items", items),
		slog.Duration("took", took),
	)
	return true, nil
}

// generate はフィードを組み立てて保存する。startはフィードの作成日時として記録され、
// 生成中に更新された商品は次回の鮮度判定で検出される。
func (g *Generator) generate(ctx context.Context, shopID string, start time.Time) (bool, int, error) {
	shop, err := g.shopRepo.FindByID(ctx, shopID)
	if err != nil {
		return false, 0, fmt.Errorf("ショップ %s の取得に失敗しました: %w", shopID, err)
	}
	if shop == nil {
		return false, 0, fmt.Errorf("%w: %s", model.ErrShopNotFound, shopID)
	}

	existing, err := g.feedRepo.FindFeed(ctx, shopID, model.FeedHandleIndex)
	if err != nil {
		return false, 0, err
	}
	latest, err := g.catalogRepo.LatestUpdatedAt(ctx, shopID)
	if err != nil {
		return false, 0, err
	}
	if !NeedsRegeneration(existing, latest) {
		return false, 0, nil
	}

	products, err := g.catalogRepo.ListVisibleProducts(ctx, shopID)
	if err != nil {
		return false, 0, err
	}
	providers, err := g.shippingRepo.ListEnabledProviders(ctx, shopID)
	if err != nil {
		return false, 0, err
	}
	settings, err := g.settingsRepo.AppSettings(ctx, shopID)
	if err != nil {
		return false, 0, err
	}

	var items []model.FeedItemRecord
	for _, p := range products {
		items = append(items, g.transformer.Transform(p)...)
	}

	xmlDoc, err := RenderXML(shop, items, EnabledShippingMethods(providers), settings.ShippingCountry)
	if err != nil {
		return false, 0, err
	}

	doc := &model.GoogleShoppingFeed{
		ShopID:    shopID,
		Handle:    model.FeedHandleIndex,
		XML:       xmlDoc,
		CreatedAt: start,
	}
	if err := g.validateFeed(doc); err != nil {
		return false, 0, err
	}
	if err := g.feedRepo.ReplaceFeed(ctx, doc); err != nil {
		return false, 0, err
	}

	return true, len(items), nil
}

func (g *Generator) record(result string) {
	if g.metrics != nil {
		g.metrics.RecordGeneration(result)
	}
}
