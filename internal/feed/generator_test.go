package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/shoppingfeed/internal/model"
)

type generatorFixture struct {
	gen           *Generator
	catalog       *mockCatalogRepo
	feeds         *mockFeedRepo
	notifications *mockNotificationRepo
	metrics       *mockMetrics
	clock         time.Time
}

func newGeneratorFixture(t *testing.T) *generatorFixture {
	t.Helper()

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	shop := &model.Shop{ID: "shop-1", Name: "Demo", ShopType: model.ShopTypePrimary, Domains: []string{"shop.example"}}
	catalog := &mockCatalogRepo{products: map[string][]*model.CatalogProduct{
		"shop-1": {
			{
				ID: "p1", ShopID: "shop-1", Title: "Widget", SKU: "ABC", Vendor: "Acme", Slug: "widget",
				IsVisible: true, UpdatedAt: base.Add(-time.Hour),
				SupportedFulfillmentTypes: []model.FulfillmentType{model.FulfillmentTypeShipping},
				Pricing:                   model.PricingMap{{CurrencyCode: "USD", Price: ptr(9.99)}},
				Variants:                  []*model.VariantNode{{ID: "v1", SKU: "ABC-1"}},
			},
			{ID: "p2", ShopID: "shop-1", Title: "Hidden", IsVisible: false, UpdatedAt: base.Add(-time.Hour)},
		},
	}}
	shipping := &mockShippingRepo{providers: map[string][]model.ShippingProvider{
		"shop-1": {{ID: "sp", Enabled: true, Methods: []model.ShippingMethod{
			{Label: "Flat", Rate: 4, Enabled: true, FulfillmentTypes: []model.FulfillmentType{model.FulfillmentTypeShipping}},
		}}},
	}}
	settings := &mockSettingsRepo{settings: map[string]model.ShopSettings{
		"shop-1": {RefreshPeriod: model.DefaultRefreshPeriod, ShippingCountry: "JP"},
	}}

	f := &generatorFixture{
		catalog:       catalog,
		feeds:         newMockFeedRepo(),
		notifications: &mockNotificationRepo{},
		metrics:       &mockMetrics{},
		clock:         base,
	}
	f.gen = NewGenerator(
		newMockShopRepo(shop),
		catalog,
		shipping,
		settings,
		f.feeds,
		f.notifications,
		newTestTransformer(),
		f.metrics,
		slog.New(slog.NewJSONHandler(io.Discard, nil)),
	)
	f.gen.now = func() time.Time { return f.clock }
	return f
}

// 保存済みフィードがない場合に生成・保存されることを検証
func TestGenerator_GenerateForShop_CreatesFeed(t *testing.T) {
	f := newGeneratorFixture(t)

	regenerated, err := f.gen.GenerateForShop(context.Background(), "shop-1")
	if err != nil {
		t.Fatalf("GenerateForShop: %v", err)
	}
	if !regenerated {
		t.Fatal("regenerated = false, want true")
	}

	stored, _ := f.feeds.FindFeed(context.Background(), "shop-1", model.FeedHandleIndex)
	if stored == nil {
		t.Fatal("feed was not stored")
	}
	if !stored.CreatedAt.Equal(f.clock) {
		t.Errorf("CreatedAt = %v, want %v", stored.CreatedAt, f.clock)
	}
	for _, want := range []string{"<g:id>ABC</g:id>", "<g:id>ABC-1</g:id>", "<g:item_group_id>ABC</g:item_group_id>", "<g:country>JP</g:country>"} {
		if !strings.Contains(stored.XML, want) {
			t.Errorf("stored XML does not contain %s", want)
		}
	}
	if strings.Contains(stored.XML, "Hidden") {
		t.Error("invisible product must not be rendered")
	}
	if f.metrics.items != 2 {
		t.Errorf("items rendered = %d, want 2", f.metrics.items)
	}
}

// カタログに変更がなければ2回目は書き込まず、変更後の再生成はバイト単位で同一になることを検証
func TestGenerator_GenerateForShop_SkipsWhenFresh(t *testing.T) {
	f := newGeneratorFixture(t)
	ctx := context.Background()

	if _, err := f.gen.GenerateForShop(ctx, "shop-1"); err != nil {
		t.Fatalf("first GenerateForShop: %v", err)
	}
	first, _ := f.feeds.FindFeed(ctx, "shop-1", model.FeedHandleIndex)

	f.clock = f.clock.Add(time.Hour)
	regenerated, err := f.gen.GenerateForShop(ctx, "shop-1")
	if err != nil {
		t.Fatalf("second GenerateForShop: %v", err)
	}
	if regenerated {
		t.Error("regenerated = true for unchanged catalog, want false")
	}
	if f.feeds.replaceCalls != 1 {
		t.Errorf("replaceCalls = %d, want 1", f.feeds.replaceCalls)
	}

	// 内容を変えずに更新日時だけ進めると再生成されるが、XMLは同一
	f.catalog.products["shop-1"][0].UpdatedAt = f.clock.Add(time.Minute)
	f.clock = f.clock.Add(time.Hour)
	regenerated, err = f.gen.GenerateForShop(ctx, "shop-1")
	if err != nil {
		t.Fatalf("third GenerateForShop: %v", err)
	}
	if !regenerated {
		t.Error("regenerated = false after catalog update, want true")
	}
	third, _ := f.feeds.FindFeed(ctx, "shop-1", model.FeedHandleIndex)
	if first.XML != third.XML {
		t.Error("regenerated XML differs for identical catalog content")
	}

	want := []string{ResultRegenerated, ResultSkipped, ResultRegenerated}
	if strings.Join(f.metrics.results, ",") != strings.Join(want, ",") {
		t.Errorf("metrics results = %v, want %v", f.metrics.results, want)
	}
}

func TestGenerator_GenerateForShop_ShopNotFound(t *testing.T) {
	f := newGeneratorFixture(t)

	_, err := f.gen.GenerateForShop(context.Background(), "missing")
	if !errors.Is(err, model.ErrShopNotFound) {
		t.Fatalf("err = %v, want ErrShopNotFound", err)
	}
	if f.feeds.replaceCalls != 0 {
		t.Errorf("replaceCalls = %d, want 0", f.feeds.replaceCalls)
	}
	if len(f.metrics.results) != 1 || f.metrics.results[0] != ResultFailed {
		t.Errorf("metrics results = %v, want [failed]", f.metrics.results)
	}
}

// 検証に失敗したドキュメントは保存されず、エラーがそのまま返ることを検証
func TestGenerator_GenerateForShop_InvalidDocumentNotStored(t *testing.T) {
	f := newGeneratorFixture(t)
	f.gen.validateFeed = func(doc *model.GoogleShoppingFeed) error {
		broken := *doc
		broken.XML = ""
		return ValidateFeed(&broken)
	}

	regenerated, err := f.gen.GenerateForShop(context.Background(), "shop-1")
	if !errors.Is(err, model.ErrInvalidFeedDocument) {
		t.Fatalf("err = %v, want ErrInvalidFeedDocument", err)
	}
	if regenerated {
		t.Error("regenerated = true, want false")
	}
	if f.feeds.replaceCalls != 0 {
		t.Errorf("replaceCalls = %d, want 0", f.feeds.replaceCalls)
	}
	if stored, _ := f.feeds.FindFeed(context.Background(), "shop-1", model.FeedHandleIndex); stored != nil {
		t.Error("invalid feed must not be stored")
	}
	if len(f.metrics.results) != 1 || f.metrics.results[0] != ResultFailed {
		t.Errorf("metrics results = %v, want [failed]", f.metrics.results)
	}
}

func TestGenerator_Generate_RequiresShopIDs(t *testing.T) {
	f := newGeneratorFixture(t)

	if err := f.gen.Generate(context.Background(), nil, ""); !errors.Is(err, model.ErrNoShopIDs) {
		t.Errorf("err = %v, want ErrNoShopIDs", err)
	}
}

// 通知先ユーザーが指定された場合のみ通知が作成されることを検証
func TestGenerator_Generate_Notification(t *testing.T) {
	f := newGeneratorFixture(t)
	ctx := context.Background()

	if err := f.gen.Generate(ctx, []string{"shop-1"}, ""); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(f.notifications.created) != 0 {
		t.Errorf("notifications = %d, want 0 for scheduled run", len(f.notifications.created))
	}

	if err := f.gen.Generate(ctx, []string{"shop-1"}, "user-1"); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(f.notifications.created) != 1 {
		t.Fatalf("notifications = %d, want 1", len(f.notifications.created))
	}
	n := f.notifications.created[0]
	if n.AccountID != "user-1" || n.Type != NotificationTypeFeedGenerated || n.URL != "/google-shopping-feed.xml" {
		t.Errorf("notification = %+v", n)
	}
	if n.Message != "Google Shopping feed refresh is complete" {
		t.Errorf("notification message = %q", n.Message)
	}
}

// 失敗したショップがあれば通知しないことを検証
func TestGenerator_Generate_NoNotificationOnFailure(t *testing.T) {
	f := newGeneratorFixture(t)

	err := f.gen.Generate(context.Background(), []string{"shop-1", "missing"}, "user-1")
	if !errors.Is(err, model.ErrShopNotFound) {
		t.Fatalf("err = %v, want ErrShopNotFound", err)
	}
	if len(f.notifications.created) != 0 {
		t.Errorf("notifications = %d, want 0", len(f.notifications.created))
	}
}
