package feed

import (
	"time"

	"github.com/hitoshi/shoppingfeed/internal/model"
)

// NeedsRegeneration はフィードの再生成が必要かどうかを判定する。
// 保存済みフィードがない場合、またはショップのカタログに保存済みフィードの作成日時より
// 厳密に新しい更新がある場合にtrueを返す。
// latestCatalogUpdateはショップ内で最も新しい商品更新日時（商品がなければnil）。
func NeedsRegeneration(existing *model.GoogleShoppingFeed, latestCatalogUpdate *time.Time) bool {
	if existing == nil {
		return true
	}
	if latestCatalogUpdate == nil {
		return false
	}
	return latestCatalogUpdate.After(existing.CreatedAt)
}
