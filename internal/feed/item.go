package feed

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/hitoshi/shoppingfeed/internal/model"
)

// maxAdditionalImages はアイテムあたりの追加画像URLの上限。
const maxAdditionalImages = 10

// PlaceholderBaseURL はストアフロントURLのプレースホルダ。配信時に置換される。
const PlaceholderBaseURL = "BASE_URL"

// PlaceholderMediaBaseURL はメディア配信元（APIルート）URLのプレースホルダ。配信時に置換される。
const PlaceholderMediaBaseURL = "MEDIA_BASE_URL"

// MarkupStripper はリッチテキストのマークアップ除去のインターフェース。
type MarkupStripper interface {
	StripMarkup(rich string) string
}

// ItemTransformer はカタログ商品とそのリーフバリアントをフィードアイテムに変換する。
// 純粋な計算のみでブロックしない。
type ItemTransformer struct {
	stripper        MarkupStripper
	defaultCurrency string
}

// NewItemTransformer はItemTransformerを生成する。
// defaultCurrencyが価格マップに存在する場合はその通貨を優先し、
// 存在しない場合は通貨コードの辞書順で最初の通貨を使う。
func NewItemTransformer(stripper MarkupStripper, defaultCurrency string) *ItemTransformer {
	return &ItemTransformer{
		stripper:        stripper,
		defaultCurrency: strings.ToUpper(strings.TrimSpace(defaultCurrency)),
	}
}

// Transform は商品1件をフィードアイテムの列に変換する。
// 先頭が親商品、続いてFindDeepestVariantsの順にリーフバリアントが並ぶ。
func (t *ItemTransformer) Transform(p *model.CatalogProduct) []model.FeedItemRecord {
	description := t.stripper.StripMarkup(p.Description)

	leaves := FindDeepestVariants(p.Variants)
	records := make([]model.FeedItemRecord, 0, len(leaves)+1)
	records = append(records, t.productRecord(p, description))

	groupID := firstNonEmpty(p.SKU, p.ID)
	for _, v := range leaves {
		records = append(records, t.variantRecord(p, v, description, groupID))
	}

	return records
}

func (t *ItemTransformer) productRecord(p *model.CatalogProduct, description string) model.FeedItemRecord {
	primary := p.PrimaryImage.LargeURL()
	price, currency := SelectPrice(p.Pricing, t.defaultCurrency)

	return model.FeedItemRecord{
		ID:                        firstNonEmpty(p.SKU, p.ID),
		Title:                     p.Title,
		Description:               description,
		Price:                     price,
		Currency:                  currency,
		PrimaryImageURL:           primary,
		ImageURLs:                 AdditionalImageURLs(p.Media, primary),
		IsSoldOut:                 p.IsSoldOut,
		SKU:                       p.SKU,
		Barcode:                   p.Barcode,
		Vendor:                    p.Vendor,
		URL:                       productURL(p.Slug),
		SupportedFulfillmentTypes: p.SupportedFulfillmentTypes,
	}
}

func (t *ItemTransformer) variantRecord(p *model.CatalogProduct, v *model.VariantNode, description, groupID string) model.FeedItemRecord {
	primary := firstNonEmpty(v.PrimaryImage.LargeURL(), p.PrimaryImage.LargeURL())
	// 自身の価格を持たないバリアントは親商品の価格を使う
	price, currency := SelectPrice(v.Pricing, t.defaultCurrency)
	if price == "" {
		price, currency = SelectPrice(p.Pricing, t.defaultCurrency)
	}

	return model.FeedItemRecord{
		ID:                        firstNonEmpty(v.SKU, v.ID),
		ItemGroupID:               groupID,
		Title:                     firstNonEmpty(v.Title, p.Title),
		Description:               description,
		Price:                     price,
		Currency:                  currency,
		PrimaryImageURL:           primary,
		ImageURLs:                 AdditionalImageURLs(v.Media, primary),
		IsSoldOut:                 v.IsSoldOut,
		SKU:                       v.SKU,
		Barcode:                   firstNonEmpty(v.Barcode, p.Barcode),
		Vendor:                    firstNonEmpty(v.Vendor, p.Vendor),
		URL:                       variantURL(p.Slug, v.ID),
		SupportedFulfillmentTypes: p.SupportedFulfillmentTypes,
		VariantAttributes:         ExtractVariantAttributes(v),
	}
}

// SelectPrice は価格マップから掲載価格を "<数値> <通貨コード>" 形式で返す。
// 固定価格を優先し、なければ価格帯の最小値を使う。
// 通貨はdefaultCurrencyがあればそれを、なければ通貨コードの辞書順で最初のものを選ぶ。
// 使える価格がない場合は空文字列を返す。
func SelectPrice(pricing model.PricingMap, defaultCurrency string) (price string, currency string) {
	cp, ok := selectCurrency(pricing, defaultCurrency)
	if !ok {
		return "", ""
	}

	var amount *float64
	switch {
	case cp.Price != nil:
		amount = cp.Price
	case cp.MinPrice != nil:
		amount = cp.MinPrice
	default:
		return "", cp.CurrencyCode
	}

	return fmt.Sprintf("%.2f %s", *amount, cp.CurrencyCode), cp.CurrencyCode
}

func selectCurrency(pricing model.PricingMap, defaultCurrency string) (model.CurrencyPricing, bool) {
	if len(pricing) == 0 {
		return model.CurrencyPricing{}, false
	}
	if defaultCurrency != "" {
		if cp, ok := pricing.Lookup(defaultCurrency); ok {
			return cp, true
		}
	}

	codes := make([]string, 0, len(pricing))
	for _, cp := range pricing {
		if cp.CurrencyCode != "" {
			codes = append(codes, cp.CurrencyCode)
		}
	}
	if len(codes) == 0 {
		return model.CurrencyPricing{}, false
	}
	sort.Strings(codes)
	return pricing.Lookup(codes[0])
}

// AdditionalImageURLs はメディア一覧からプライマリ画像を除いたURLを元の順序で最大10件返す。
func AdditionalImageURLs(media []model.ImageInfo, primaryURL string) []string {
	urls := make([]string, 0, maxAdditionalImages)
	for i := range media {
		u := media[i].LargeURL()
		if u == "" || u == primaryURL {
			continue
		}
		urls = append(urls, u)
		if len(urls) == maxAdditionalImages {
			break
		}
	}
	return urls
}

// ExtractVariantAttributes はバリアントの属性ラベル（size, color, pattern, material, gender）を
// 大文字小文字を区別せずに構造化属性へ変換する。それ以外のラベルは無視してnilを返す。
func ExtractVariantAttributes(v *model.VariantNode) *model.VariantAttributes {
	if v == nil || v.OptionTitle == "" {
		return nil
	}

	attrs := &model.VariantAttributes{}
	switch strings.ToLower(strings.TrimSpace(v.AttributeLabel)) {
	case "size":
		attrs.Size = v.OptionTitle
	case "color":
		attrs.Color = v.OptionTitle
	case "pattern":
		attrs.Pattern = v.OptionTitle
	case "material":
		attrs.Material = v.OptionTitle
	case "gender":
		attrs.Gender = v.OptionTitle
	default:
		return nil
	}
	return attrs
}

func productURL(slug string) string {
	return PlaceholderBaseURL + "/product/" + url.PathEscape(slug)
}

func variantURL(slug, variantID string) string {
	return productURL(slug) + "/" + url.PathEscape(variantID)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
