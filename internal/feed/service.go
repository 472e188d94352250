// Package feed はGoogle Shoppingフィードの生成と配信のドメインロジックを提供する。
package feed

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/idna"

	"github.com/hitoshi/shoppingfeed/internal/model"
	"github.com/hitoshi/shoppingfeed/internal/repository"
)

// ServeMetrics はフィード配信のメトリクス記録インターフェース。
type ServeMetrics interface {
	RecordFeedServed(found bool)
}

// FeedService は保存済みフィードの取得とプレースホルダ置換を行うサービス層。
type FeedService struct {
	shopRepo repository.ShopRepository
	feedRepo repository.FeedRepository
	apiRoot  string
	metrics  ServeMetrics
}

// NewFeedService はFeedServiceの新しいインスタンスを生成する。
// apiRootURLはMEDIA_BASE_URLの置換先（このAPI自身のルートURL）。
func NewFeedService(
	shopRepo repository.ShopRepository,
	feedRepo repository.FeedRepository,
	apiRootURL string,
	metrics ServeMetrics,
) *FeedService {
	return &FeedService{
		shopRepo: shopRepo,
		feedRepo: feedRepo,
		apiRoot:  strings.TrimRight(apiRootURL, "/"),
		metrics:  metrics,
	}
}

// GetFeed はshopURLのホスト名に一致するドメインを持つショップのフィードを返す。
// ショップまたはフィードが見つからない場合はnilを返す。
// 返されるフィードのXMLはプレースホルダ置換済み。
func (s *FeedService) GetFeed(ctx context.Context, handle, shopURL string) (*model.GoogleShoppingFeed, error) {
	shopURL = strings.TrimSpace(shopURL)
	hosts, err := StorefrontHostname(shopURL)
	if err != nil {
		return nil, model.NewInvalidShopURLError(err.Error())
	}

	var shop *model.Shop
	for _, candidate := range hosts {
		shop, err = s.shopRepo.FindByDomain(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if shop != nil {
			break
		}
	}
	if shop == nil {
		s.record(false)
		return nil, nil
	}

	return s.load(ctx, shop.ID, handle, shopURL)
}

// ServePrimary はプライマリショップのフィードを返す。
// プライマリショップまたはフィードが存在しない場合はnilを返す。
func (s *FeedService) ServePrimary(ctx context.Context, handle, storefrontURL string) (*model.GoogleShoppingFeed, error) {
	primary, err := s.shopRepo.FindPrimary(ctx)
	if err != nil {
		return nil, err
	}
	if primary == nil {
		s.record(false)
		return nil, nil
	}
	return s.load(ctx, primary.ID, handle, strings.TrimSpace(storefrontURL))
}

func (s *FeedService) load(ctx context.Context, shopID, handle, storefrontURL string) (*model.GoogleShoppingFeed, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		s.record(false)
		return nil, nil
	}

	stored, err := s.feedRepo.FindFeed(ctx, shopID, handle)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		s.record(false)
		return nil, nil
	}

	resolved := *stored
	resolved.XML = ResolvePlaceholders(stored.XML, storefrontURL, s.apiRoot)
	s.record(true)
	return &resolved, nil
}

func (s *FeedService) record(found bool) {
	if s.metrics != nil {
		s.metrics.RecordFeedServed(found)
	}
}

// ResolvePlaceholders は文書全体のプレースホルダをリテラル置換する。
// MEDIA_BASE_URLはBASE_URLを部分文字列として含むため、長いトークンから順に1パスで置換する。
func ResolvePlaceholders(xmlDoc, storefrontURL, apiRootURL string) string {
	r := strings.NewReplacer(
		PlaceholderMediaBaseURL, apiRootURL,
		PlaceholderBaseURL, storefrontURL,
	)
	return r.Replace(xmlDoc)
}

// StorefrontHostname はストアフロントURLからドメイン照合用のホスト名候補を返す。
// 小文字化したホスト名と、国際化ドメインの場合はそのASCII（Punycode）表記を含む。
// スキームのないURL（"shop.example"）も受け付ける。
func StorefrontHostname(shopURL string) ([]string, error) {
	if shopURL == "" {
		return nil, fmt.Errorf("shop url is empty")
	}

	raw := shopURL
	if !strings.Contains(raw, "://") {
		raw = "//" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("shop url is invalid: %w", err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return nil, fmt.Errorf("shop url has no hostname")
	}

	candidates := []string{host}
	ascii, err := idna.Lookup.ToASCII(host)
	if err == nil && ascii != host {
		candidates = append(candidates, ascii)
	}
	if unicode, err := idna.Lookup.ToUnicode(host); err == nil && unicode != host && unicode != ascii {
		candidates = append(candidates, unicode)
	}
	return candidates, nil
}
