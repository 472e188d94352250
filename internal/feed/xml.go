package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/hitoshi/shoppingfeed/internal/model"
)

// GoogleNamespace はGoogle Shopping拡張の名前空間URI。
const GoogleNamespace = "http://base.google.com/ns/1.0"

// rssDocument 以下の構造体はフィードXMLの文法をそのまま表す。
// encoding/xmlは "g:title" のようなコロン付きの名前をそのまま要素名として出力する。
type rssDocument struct {
	XMLName    xml.Name   `xml:"rss"`
	Version    string     `xml:"version,attr"`
	GNamespace string     `xml:"xmlns:g,attr"`
	Channel    rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title,omitempty"`
	Link        string    `xml:"link"`
	Description string    `xml:"description,omitempty"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title                string        `xml:"g:title,omitempty"`
	Link                 string        `xml:"g:link"`
	Description          string        `xml:"g:description,omitempty"`
	ImageLink            string        `xml:"g:image_link,omitempty"`
	Price                string        `xml:"g:price,omitempty"`
	Condition            string        `xml:"g:condition"`
	ID                   string        `xml:"g:id"`
	MPN                  string        `xml:"g:mpn,omitempty"`
	GTIN                 string        `xml:"g:gtin,omitempty"`
	Brand                string        `xml:"g:brand,omitempty"`
	Availability         string        `xml:"g:availability"`
	AdditionalImageLinks []string      `xml:"g:additional_image_link"`
	Shipping             []rssShipping `xml:"g:shipping"`
	ItemGroupID          string        `xml:"g:item_group_id,omitempty"`
	Size                 string        `xml:"g:size,omitempty"`
	Color                string        `xml:"g:color,omitempty"`
	Pattern              string        `xml:"g:pattern,omitempty"`
	Material             string        `xml:"g:material,omitempty"`
	Gender               string        `xml:"g:gender,omitempty"`
}

type rssShipping struct {
	Country string `xml:"g:country"`
	Service string `xml:"g:service"`
	Price   string `xml:"g:price"`
}

const (
	conditionNew           = "new"
	availabilityInStock    = "in stock"
	availabilityOutOfStock = "out of stock"
)

// RenderXML はフィードアイテムとショップ情報からGoogle Shopping用のRSS 2.0文書を生成する。
// 全てのテキストはencoding/xmlによってここで1回だけエスケープされる。
// リンクと画像URLのプレースホルダ（BASE_URL / MEDIA_BASE_URL）は未解決のまま出力する。
// 同じ入力に対しては常にバイト単位で同一の出力を返す。
func RenderXML(shop *model.Shop, items []model.FeedItemRecord, methods []model.ShippingMethod, shippingCountry string) (string, error) {
	doc := rssDocument{
		Version:    "2.0",
		GNamespace: GoogleNamespace,
		Channel: rssChannel{
			Link:  PlaceholderBaseURL,
			Items: make([]rssItem, 0, len(items)),
		},
	}
	if shop != nil {
		doc.Channel.Title = shop.Name
		doc.Channel.Description = shop.Description
	}

	for i := range items {
		doc.Channel.Items = append(doc.Channel.Items, toRSSItem(&items[i], methods, shippingCountry))
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("フィードXMLのエンコードに失敗: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("フィードXMLのエンコードに失敗: %w", err)
	}
	buf.WriteByte('\n')

	return buf.String(), nil
}

func toRSSItem(item *model.FeedItemRecord, methods []model.ShippingMethod, shippingCountry string) rssItem {
	out := rssItem{
		Title:        item.Title,
		Link:         item.URL,
		Description:  item.Description,
		Price:        item.Price,
		Condition:    conditionNew,
		ID:           item.ID,
		MPN:          item.SKU,
		GTIN:         item.Barcode,
		Brand:        item.Vendor,
		Availability: availabilityInStock,
		ItemGroupID:  item.ItemGroupID,
	}
	if item.IsSoldOut {
		out.Availability = availabilityOutOfStock
	}
	if item.PrimaryImageURL != "" {
		out.ImageLink = mediaURL(item.PrimaryImageURL)
	}
	for _, u := range item.ImageURLs {
		out.AdditionalImageLinks = append(out.AdditionalImageLinks, mediaURL(u))
	}

	for _, m := range ApplicableShippingMethods(methods, item.SupportedFulfillmentTypes) {
		out.Shipping = append(out.Shipping, rssShipping{
			Country: shippingCountry,
			Service: m.Label,
			Price:   shippingPrice(m, item.Currency),
		})
	}

	if attrs := item.VariantAttributes; !attrs.IsEmpty() {
		out.Size = attrs.Size
		out.Color = attrs.Color
		out.Pattern = attrs.Pattern
		out.Material = attrs.Material
		out.Gender = attrs.Gender
	}

	return out
}

// mediaURL は相対パスのメディアURLにMEDIA_BASE_URLを前置する。絶対URLはそのまま返す。
func mediaURL(u string) string {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	return PlaceholderMediaBaseURL + u
}

func shippingPrice(m model.ShippingMethod, itemCurrency string) string {
	currency := firstNonEmpty(m.Currency, itemCurrency)
	if currency == "" {
		return fmt.Sprintf("%.2f", m.Rate)
	}
	return fmt.Sprintf("%.2f %s", m.Rate, currency)
}
