// Package model はドメインモデルを定義する。
package model

// ShopTypePrimary はストアフロントのデフォルト（プライマリ）ショップを示す。
const ShopTypePrimary = "primary"

// Shop はフィード生成対象のショップを表す。
// 1回の生成処理中はイミュータブルとして扱う。
type Shop struct {
	ID          string
	Name        string
	Description string
	ShopType    string
	Domains     []string
}

// IsPrimary はプライマリショップかどうかを返す。
func (s *Shop) IsPrimary() bool {
	return s.ShopType == ShopTypePrimary
}

// FulfillmentType は商品の受け渡し方法を表すタグ。
type FulfillmentType string

const (
	FulfillmentTypeShipping FulfillmentType = "shipping"
	FulfillmentTypePickup   FulfillmentType = "pickup"
	FulfillmentTypeDigital  FulfillmentType = "digital"
)

// ShippingProvider はショップに属する配送プロバイダを表す。
type ShippingProvider struct {
	ID      string
	ShopID  string
	Name    string
	Enabled bool
	Methods []ShippingMethod
}

// ShippingMethod は配送プロバイダが提供する配送方法を表す。
type ShippingMethod struct {
	ID               string            `json:"_id"`
	Label            string            `json:"label"`
	Rate             float64           `json:"rate"`
	Currency         string            `json:"currency,omitempty"`
	Enabled          bool              `json:"enabled"`
	FulfillmentTypes []FulfillmentType `json:"fulfillmentTypes"`
}

// ShopSettings はフィード生成に関するショップ単位の設定。
type ShopSettings struct {
	// RefreshPeriod は再生成ジョブの繰り返し間隔（例: "every 24 hours"）。
	RefreshPeriod string
	// ShippingCountry は送料を掲載する国コード。
	ShippingCountry string
}

const (
	// DefaultRefreshPeriod はRefreshPeriod未設定時のデフォルト値。
	DefaultRefreshPeriod = "every 24 hours"
	// DefaultShippingCountry はShippingCountry未設定時のデフォルト値。
	DefaultShippingCountry = "US"
)

// DefaultShopSettings はデフォルト値で埋めたShopSettingsを返す。
func DefaultShopSettings() ShopSettings {
	return ShopSettings{
		RefreshPeriod:   DefaultRefreshPeriod,
		ShippingCountry: DefaultShippingCountry,
	}
}

// Notification はユーザーへのUI通知を表す。
type Notification struct {
	ID        string
	AccountID string
	Type      string
	Message   string
	URL       string
}
