package feed

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/shoppingfeed/internal/model"
)

// --- テスト用インメモリモック ---

type mockShopRepo struct {
	shops map[string]*model.Shop
	err   error
}

func newMockShopRepo(shops ...*model.Shop) *mockShopRepo {
	m := &mockShopRepo{shops: make(map[string]*model.Shop)}
	for _, s := range shops {
		m.shops[s.ID] = s
	}
	return m
}

func (m *mockShopRepo) FindByID(_ context.Context, id string) (*model.Shop, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.shops[id], nil
}

func (m *mockShopRepo) FindPrimary(_ context.Context) (*model.Shop, error) {
	for _, s := range m.shops {
		if s.IsPrimary() {
			return s, nil
		}
	}
	return nil, nil
}

func (m *mockShopRepo) FindByDomain(_ context.Context, domain string) (*model.Shop, error) {
	for _, s := range m.shops {
		for _, d := range s.Domains {
			if d == domain {
				return s, nil
			}
		}
	}
	return nil, nil
}

func (m *mockShopRepo) ListIDs(_ context.Context) ([]string, error) {
	ids := make([]string, 0, len(m.shops))
	for id := range m.shops {
		ids = append(ids, id)
	}
	return ids, nil
}

type mockCatalogRepo struct {
	products  map[string][]*model.CatalogProduct
	listCalls int
}

func (m *mockCatalogRepo) ListVisibleProducts(_ context.Context, shopID string) ([]*model.CatalogProduct, error) {
	m.listCalls++
	var out []*model.CatalogProduct
	for _, p := range m.products[shopID] {
		if p.IsVisible && !p.IsDeleted {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockCatalogRepo) LatestUpdatedAt(_ context.Context, shopID string) (*time.Time, error) {
	var latest *time.Time
	for _, p := range m.products[shopID] {
		if latest == nil || p.UpdatedAt.After(*latest) {
			ts := p.UpdatedAt
			latest = &ts
		}
	}
	return latest, nil
}

type mockShippingRepo struct {
	providers map[string][]model.ShippingProvider
}

func (m *mockShippingRepo) ListEnabledProviders(_ context.Context, shopID string) ([]model.ShippingProvider, error) {
	return m.providers[shopID], nil
}

type mockSettingsRepo struct {
	settings map[string]model.ShopSettings
	updates  int
}

func (m *mockSettingsRepo) AppSettings(_ context.Context, shopID string) (model.ShopSettings, error) {
	if s, ok := m.settings[shopID]; ok {
		return s, nil
	}
	return model.DefaultShopSettings(), nil
}

func (m *mockSettingsRepo) UpdateSettings(_ context.Context, shopID string, s model.ShopSettings) error {
	if m.settings == nil {
		m.settings = make(map[string]model.ShopSettings)
	}
	m.settings[shopID] = s
	m.updates++
	return nil
}

type mockFeedRepo struct {
	mu           sync.Mutex
	feeds        map[string]*model.GoogleShoppingFeed
	replaceCalls int
}

func newMockFeedRepo() *mockFeedRepo {
	return &mockFeedRepo{feeds: make(map[string]*model.GoogleShoppingFeed)}
}

func (m *mockFeedRepo) FindFeed(_ context.Context, shopID, handle string) (*model.GoogleShoppingFeed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.feeds[shopID+"/"+handle]
	if !ok {
		return nil, nil
	}
	cp := *f
	return &cp, nil
}

func (m *mockFeedRepo) ReplaceFeed(_ context.Context, feed *model.GoogleShoppingFeed) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaceCalls++
	cp := *feed
	m.feeds[feed.ShopID+"/"+feed.Handle] = &cp
	return nil
}

type mockNotificationRepo struct {
	created []*model.Notification
}

func (m *mockNotificationRepo) Create(_ context.Context, n *model.Notification) error {
	m.created = append(m.created, n)
	return nil
}

type mockMetrics struct {
	results []string
	served  []bool
	items   int
}

func (m *mockMetrics) RecordGeneration(result string) { m.results = append(m.results, result) }
func (m *mockMetrics) RecordGenerationLatency(_ time.Duration) {}
func (m *mockMetrics) RecordItemsRendered(count int) { m.items += count }
func (m *mockMetrics) RecordFeedServed(found bool) { m.served = append(m.served, found) }
