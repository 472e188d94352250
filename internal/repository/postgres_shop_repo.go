package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/shoppingfeed/internal/model"
)

// PostgresShopRepo はPostgreSQLを使用したショップリポジトリ。
type PostgresShopRepo struct {
	db *sql.DB
}

// NewPostgresShopRepo はPostgresShopRepoを生成する。
func NewPostgresShopRepo(db *sql.DB) *PostgresShopRepo {
	return &PostgresShopRepo{db: db}
}

const shopColumns = `id, name, description, shop_type, domains`

func scanShop(row *sql.Row) (*model.Shop, error) {
	shop := &model.Shop{}
	var description, shopType sql.NullString
	var domains pq.StringArray

	if err := row.Scan(&shop.ID, &shop.Name, &description, &shopType, &domains); err != nil {
		return nil, err
	}

	shop.Description = nullStringValue(description)
	shop.ShopType = nullStringValue(shopType)
	shop.Domains = []string(domains)
	return shop, nil
}

// FindByID は指定IDのショップを取得する。見つからない場合はnilを返す。
func (r *PostgresShopRepo) FindByID(ctx context.Context, id string) (*model.Shop, error) {
	shop, err := scanShop(r.db.QueryRowContext(ctx,
		`SELECT `+shopColumns+` FROM shops WHERE id = $1`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ショップの取得に失敗しました: %w", err)
	}
	return shop, nil
}

// FindPrimary はプライマリショップを取得する。見つからない場合はnilを返す。
func (r *PostgresShopRepo) FindPrimary(ctx context.Context) (*model.Shop, error) {
	shop, err := scanShop(r.db.QueryRowContext(ctx,
		`SELECT `+shopColumns+` FROM shops WHERE shop_type = $1 ORDER BY id LIMIT 1`,
		model.ShopTypePrimary,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("プライマリショップの取得に失敗しました: %w", err)
	}
	return shop, nil
}

// FindByDomain は登録ドメインに一致するショップを取得する。見つからない場合はnilを返す。
func (r *PostgresShopRepo) FindByDomain(ctx context.Context, domain string) (*model.Shop, error) {
	shop, err := scanShop(r.db.QueryRowContext(ctx,
		`SELECT `+shopColumns+` FROM shops WHERE $1 = ANY(domains) ORDER BY id LIMIT 1`,
		domain,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ドメインによるショップの検索に失敗しました: %w", err)
	}
	return shop, nil
}

// ListIDs は全ショップのIDを返す。
func (r *PostgresShopRepo) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM shops ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("ショップ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ショップIDの読み取りに失敗しました: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ショップ一覧の走査に失敗しました: %w", err)
	}
	return ids, nil
}

// compile-time interface check
var _ ShopRepository = (*PostgresShopRepo)(nil)
