package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// CatalogProduct はカタログに公開された商品を表す。
type CatalogProduct struct {
	ID                        string            `json:"_id"`
	ShopID                    string            `json:"shopId"`
	Title                     string            `json:"title"`
	Description               string            `json:"description"` // リッチテキスト（HTMLを含みうる）
	Barcode                   string            `json:"barcode"`
	SKU                       string            `json:"sku"`
	Vendor                    string            `json:"vendor"`
	Slug                      string            `json:"slug"`
	IsVisible                 bool              `json:"isVisible"`
	IsDeleted                 bool              `json:"isDeleted"`
	IsSoldOut                 bool              `json:"isSoldOut"`
	SupportedFulfillmentTypes []FulfillmentType `json:"supportedFulfillmentTypes"`
	PrimaryImage              *ImageInfo        `json:"primaryImage,omitempty"`
	Media                     []ImageInfo       `json:"media"`
	Pricing                   PricingMap        `json:"pricing"`
	Variants                  []*VariantNode    `json:"variants"`
	UpdatedAt                 time.Time         `json:"updatedAt"`
}

// VariantNode はバリアント/オプションツリーのノードを表す。
// Optionsが空のノードがリーフ（販売単位）となる。
type VariantNode struct {
	ID             string         `json:"_id"`
	Title          string         `json:"title"`
	SKU            string         `json:"sku"`
	Barcode        string         `json:"barcode"`
	Vendor         string         `json:"vendor"`
	IsSoldOut      bool           `json:"isSoldOut"`
	AttributeLabel string         `json:"attributeLabel"`
	OptionTitle    string         `json:"optionTitle"`
	Pricing        PricingMap     `json:"pricing"`
	PrimaryImage   *ImageInfo     `json:"primaryImage,omitempty"`
	Media          []ImageInfo    `json:"media"`
	Options        []*VariantNode `json:"options,omitempty"`
}

// IsLeaf は子オプションを持たないノードかどうかを返す。
func (v *VariantNode) IsLeaf() bool {
	return len(v.Options) == 0
}

// ImageInfo は画像のサイズ別URLを保持する。フィードにはlargeを使用する。
type ImageInfo struct {
	URLs ImageURLs `json:"URLs"`
}

// ImageURLs はサイズ別の画像URL。
type ImageURLs struct {
	Large     string `json:"large"`
	Medium    string `json:"medium,omitempty"`
	Small     string `json:"small,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// LargeURL はlarge画像のURLを返す。nilの場合は空文字列を返す。
func (i *ImageInfo) LargeURL() string {
	if i == nil {
		return ""
	}
	return i.URLs.Large
}

// CurrencyPricing は通貨ごとの価格情報。
// Priceが固定価格、MinPriceは価格帯の最小値。
type CurrencyPricing struct {
	CurrencyCode string   `json:"-"`
	Price        *float64 `json:"price,omitempty"`
	MinPrice     *float64 `json:"minPrice,omitempty"`
	MaxPrice     *float64 `json:"maxPrice,omitempty"`
}

// PricingMap は通貨コードをキーとする価格マップ。
// JSON上はオブジェクトだが、キーの出現順を保持するためスライスで表現する。
type PricingMap []CurrencyPricing

// Lookup は指定通貨の価格情報を返す。
func (p PricingMap) Lookup(code string) (CurrencyPricing, bool) {
	for _, cp := range p {
		if cp.CurrencyCode == code {
			return cp, true
		}
	}
	return CurrencyPricing{}, false
}

// UnmarshalJSON はJSONオブジェクトをキー順を保持したままデコードする。
func (p *PricingMap) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*p = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("pricing must be a JSON object")
	}

	var out PricingMap
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected pricing key %v", keyTok)
		}
		var cp CurrencyPricing
		if err := dec.Decode(&cp); err != nil {
			return fmt.Errorf("pricing[%s]: %w", key, err)
		}
		cp.CurrencyCode = key
		out = append(out, cp)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*p = out
	return nil
}

// MarshalJSON はキー順を保持したJSONオブジェクトとしてエンコードする。
func (p PricingMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, cp := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(cp.CurrencyCode)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(cp)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
