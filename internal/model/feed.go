package model

import "time"

// FeedHandleIndex は生成されるインデックスフィードのハンドル。
const FeedHandleIndex = "google-shopping-feed.xml"

// GoogleShoppingFeed は生成・保存されたフィードドキュメントを表す。
// (ShopID, Handle) で一意。再生成のたびに全体が置き換えられる。
// XMLにはBASE_URL / MEDIA_BASE_URL のプレースホルダが未解決のまま含まれる。
type GoogleShoppingFeed struct {
	ShopID    string    `json:"shopId" validate:"required"`
	Handle    string    `json:"handle" validate:"required"`
	XML       string    `json:"xml" validate:"required"`
	CreatedAt time.Time `json:"createdAt" validate:"required"`
}

// FeedItemRecord は1商品または1リーフバリアント分のフィードアイテム。
// フィールドはプレーンテキストで保持し、XMLエスケープはシリアライズ時に1回だけ行う。
type FeedItemRecord struct {
	ID                        string
	ItemGroupID               string
	Title                     string
	Description               string
	Price                     string
	Currency                  string
	PrimaryImageURL           string
	ImageURLs                 []string
	IsSoldOut                 bool
	SKU                       string
	Barcode                   string
	Vendor                    string
	URL                       string
	SupportedFulfillmentTypes []FulfillmentType
	VariantAttributes         *VariantAttributes
}

// VariantAttributes はGoogle Shoppingが認識するバリアント属性。
type VariantAttributes struct {
	Size     string
	Color    string
	Pattern  string
	Material string
	Gender   string
}

// IsEmpty はいずれの属性も設定されていない場合にtrueを返す。
func (a *VariantAttributes) IsEmpty() bool {
	return a == nil || *a == VariantAttributes{}
}
