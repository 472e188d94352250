package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hitoshi/shoppingfeed/internal/model"
)

// PostgresCatalogRepo はPostgreSQLを使用したカタログリポジトリ。
// 商品本体（バリアントツリーを含む）はJSONBカラムに保存されている。
type PostgresCatalogRepo struct {
	db *sql.DB
}

// NewPostgresCatalogRepo はPostgresCatalogRepoを生成する。
func NewPostgresCatalogRepo(db *sql.DB) *PostgresCatalogRepo {
	return &PostgresCatalogRepo{db: db}
}

// ListVisibleProducts はショップの公開中かつ未削除の商品を取得する。
func (r *PostgresCatalogRepo) ListVisibleProducts(ctx context.Context, shopID string) ([]*model.CatalogProduct, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, shop_id, product, is_visible, is_deleted, updated_at
		 FROM catalog_products
		 WHERE shop_id = $1 AND is_visible = true AND is_deleted = false
		 ORDER BY id`,
		shopID,
	)
	if err != nil {
		return nil, fmt.Errorf("カタログ商品の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var products []*model.CatalogProduct
	for rows.Next() {
		var (
			id, rowShopID        string
			raw                  []byte
			isVisible, isDeleted bool
			updatedAt            time.Time
		)
		if err := rows.Scan(&id, &rowShopID, &raw, &isVisible, &isDeleted, &updatedAt); err != nil {
			return nil, fmt.Errorf("カタログ商品の読み取りに失敗しました: %w", err)
		}

		p := &model.CatalogProduct{}
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, fmt.Errorf("カタログ商品 %s のデコードに失敗しました: %w", id, err)
		}
		// 列の値を正とする
		p.ID = id
		p.ShopID = rowShopID
		p.IsVisible = isVisible
		p.IsDeleted = isDeleted
		p.UpdatedAt = updatedAt

		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("カタログ商品の走査に失敗しました: %w", err)
	}

	return products, nil
}

// LatestUpdatedAt はショップ内で最も新しい商品更新日時を返す。商品がない場合はnilを返す。
func (r *PostgresCatalogRepo) LatestUpdatedAt(ctx context.Context, shopID string) (*time.Time, error) {
	var latest sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT MAX(updated_at) FROM catalog_products WHERE shop_id = $1`,
		shopID,
	).Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("カタログ更新日時の取得に失敗しました: %w", err)
	}
	if !latest.Valid {
		return nil, nil
	}
	return &latest.Time, nil
}

// compile-time interface check
var _ CatalogRepository = (*PostgresCatalogRepo)(nil)
