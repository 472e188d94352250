package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/shoppingfeed/internal/model"
)

// PostgresSettingsRepo はPostgreSQLを使用したショップ設定リポジトリ。
type PostgresSettingsRepo struct {
	db *sql.DB
}

// NewPostgresSettingsRepo はPostgresSettingsRepoを生成する。
func NewPostgresSettingsRepo(db *sql.DB) *PostgresSettingsRepo {
	return &PostgresSettingsRepo{db: db}
}

// AppSettings はショップの設定を返す。行がない、または値が空の項目はデフォルト値で補う。
func (r *PostgresSettingsRepo) AppSettings(ctx context.Context, shopID string) (model.ShopSettings, error) {
	settings := model.DefaultShopSettings()
	var refreshPeriod, shippingCountry sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT google_shopping_feed_refresh_period, google_shopping_shipping_country
		 FROM shop_settings WHERE shop_id = $1`,
		shopID,
	).Scan(&refreshPeriod, &shippingCountry)

	if err == sql.ErrNoRows {
		return settings, nil
	}
	if err != nil {
		return settings, fmt.Errorf("ショップ設定の取得に失敗しました: %w", err)
	}

	if v := nullStringValue(refreshPeriod); v != "" {
		settings.RefreshPeriod = v
	}
	if v := nullStringValue(shippingCountry); v != "" {
		settings.ShippingCountry = v
	}
	return settings, nil
}

// UpdateSettings はショップの設定をUPSERTする。
func (r *PostgresSettingsRepo) UpdateSettings(ctx context.Context, shopID string, settings model.ShopSettings) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO shop_settings (shop_id, google_shopping_feed_refresh_period, google_shopping_shipping_country, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (shop_id) DO UPDATE SET
		    google_shopping_feed_refresh_period = EXCLUDED.google_shopping_feed_refresh_period,
		    google_shopping_shipping_country = EXCLUDED.google_shopping_shipping_country,
		    updated_at = now()`,
		shopID, nullString(settings.RefreshPeriod), nullString(settings.ShippingCountry),
	)
	if err != nil {
		return fmt.Errorf("ショップ設定の保存に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SettingsRepository = (*PostgresSettingsRepo)(nil)
