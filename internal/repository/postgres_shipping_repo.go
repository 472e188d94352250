package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/shoppingfeed/internal/model"
)

// PostgresShippingRepo はPostgreSQLを使用した配送設定リポジトリ。
type PostgresShippingRepo struct {
	db *sql.DB
}

// NewPostgresShippingRepo はPostgresShippingRepoを生成する。
func NewPostgresShippingRepo(db *sql.DB) *PostgresShippingRepo {
	return &PostgresShippingRepo{db: db}
}

// ListEnabledProviders はショップの有効な配送プロバイダを登録順に返す。
// 配送方法はJSONB配列として保存されており、順序を保持してデコードする。
func (r *PostgresShippingRepo) ListEnabledProviders(ctx context.Context, shopID string) ([]model.ShippingProvider, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, shop_id, name, enabled, methods
		 FROM shipping_providers
		 WHERE shop_id = $1 AND enabled = true
		 ORDER BY position ASC, id ASC`,
		shopID,
	)
	if err != nil {
		return nil, fmt.Errorf("配送プロバイダの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var providers []model.ShippingProvider
	for rows.Next() {
		var p model.ShippingProvider
		var methods []byte
		if err := rows.Scan(&p.ID, &p.ShopID, &p.Name, &p.Enabled, &methods); err != nil {
			return nil, fmt.Errorf("配送プロバイダの読み取りに失敗しました: %w", err)
		}
		if len(methods) > 0 {
			if err := json.Unmarshal(methods, &p.Methods); err != nil {
				return nil, fmt.Errorf("配送方法 %s のデコードに失敗しました: %w", p.ID, err)
			}
		}
		providers = append(providers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("配送プロバイダの走査に失敗しました: %w", err)
	}

	return providers, nil
}

// compile-time interface check
var _ ShippingRepository = (*PostgresShippingRepo)(nil)
