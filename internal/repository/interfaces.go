// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/shoppingfeed/internal/model"
)

// ShopRepository はショップデータの参照インターフェース。
type ShopRepository interface {
	// FindByID は指定IDのショップを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Shop, error)

	// FindPrimary はプライマリショップを取得する。見つからない場合はnilを返す。
	FindPrimary(ctx context.Context) (*model.Shop, error)

	// FindByDomain は登録ドメインに一致するショップを取得する。見つからない場合はnilを返す。
	FindByDomain(ctx context.Context, domain string) (*model.Shop, error)

	// ListIDs は全ショップのIDを返す。
	ListIDs(ctx context.Context) ([]string, error)
}

// CatalogRepository はカタログ商品の参照インターフェース。
type CatalogRepository interface {
	// ListVisibleProducts はショップの公開中かつ未削除の商品を取得する。
	ListVisibleProducts(ctx context.Context, shopID string) ([]*model.CatalogProduct, error)

	// LatestUpdatedAt はショップ内で最も新しい商品更新日時を返す。商品がない場合はnilを返す。
	LatestUpdatedAt(ctx context.Context, shopID string) (*time.Time, error)
}

// ShippingRepository は配送設定の参照インターフェース。
type ShippingRepository interface {
	// ListEnabledProviders はショップの有効な配送プロバイダを登録順に返す。
	ListEnabledProviders(ctx context.Context, shopID string) ([]model.ShippingProvider, error)
}

// FeedRepository は生成済みフィードの永続化インターフェース（FeedStore）。
type FeedRepository interface {
	// FindFeed は(shopID, handle)のフィードを取得する。見つからない場合はnilを返す。
	FindFeed(ctx context.Context, shopID, handle string) (*model.GoogleShoppingFeed, error)

	// ReplaceFeed は(shopID, handle)のフィードを丸ごと置き換える（存在しなければ作成する）。
	// 部分更新は行わない。
	ReplaceFeed(ctx context.Context, feed *model.GoogleShoppingFeed) error
}

// SettingsRepository はショップ単位のフィード設定の永続化インターフェース。
type SettingsRepository interface {
	// AppSettings はショップの設定を返す。未設定の項目はデフォルト値で補う。
	AppSettings(ctx context.Context, shopID string) (model.ShopSettings, error)

	// UpdateSettings はショップの設定を保存する。
	UpdateSettings(ctx context.Context, shopID string, settings model.ShopSettings) error
}

// NotificationRepository はユーザー通知の永続化インターフェース。
type NotificationRepository interface {
	// Create は通知を作成する。
	Create(ctx context.Context, n *model.Notification) error
}

// JobRepository はバックグラウンドジョブの永続化インターフェース。
type JobRepository interface {
	// CancelAndInsert は(type, data)が完全一致する未完了ジョブをキャンセルしたうえで、
	// 新しいジョブを同一トランザクションで登録する。キャンセルした件数を返す。
	CancelAndInsert(ctx context.Context, job *model.Job) (int64, error)

	// CancelMatching は(type, data)が完全一致する未完了ジョブをキャンセルする。
	CancelMatching(ctx context.Context, jobType string, data model.JobData) (int64, error)

	// ClaimDue は実行時刻を過ぎた待機中ジョブをFOR UPDATE SKIP LOCKEDで取得し、実行中にする。
	// staleBeforeより前から実行中のまま放置されたジョブも再取得の対象とする。
	ClaimDue(ctx context.Context, types []string, limit int, staleBefore time.Time) ([]*model.Job, error)

	// UpdateState は実行中ジョブの状態を更新する。
	// 実行中にキャンセルされた等でジョブが実行中でない場合はfalseを返す。
	UpdateState(ctx context.Context, job *model.Job) (bool, error)

	// DeleteFinishedBefore は終了済みジョブのうちbeforeより前に更新されたものを削除する。
	DeleteFinishedBefore(ctx context.Context, before time.Time) (int64, error)
}
