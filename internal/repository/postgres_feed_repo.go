package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/shoppingfeed/internal/model"
)

// PostgresFeedRepo はPostgreSQLを使用した生成済みフィードのリポジトリ。
type PostgresFeedRepo struct {
	db *sql.DB
}

// NewPostgresFeedRepo はPostgresFeedRepoを生成する。
func NewPostgresFeedRepo(db *sql.DB) *PostgresFeedRepo {
	return &PostgresFeedRepo{db: db}
}

// FindFeed は(shopID, handle)のフィードを取得する。見つからない場合はnilを返す。
func (r *PostgresFeedRepo) FindFeed(ctx context.Context, shopID, handle string) (*model.GoogleShoppingFeed, error) {
	feed := &model.GoogleShoppingFeed{}

	err := r.db.QueryRowContext(ctx,
		`SELECT shop_id, handle, xml, created_at
		 FROM google_shopping_feeds
		 WHERE shop_id = $1 AND handle = $2`,
		shopID, handle,
	).Scan(&feed.ShopID, &feed.Handle, &feed.XML, &feed.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}

	return feed, nil
}

// ReplaceFeed は(shopID, handle)のフィードを丸ごと置き換える。
// 同一ショップの再生成が並行しても、最後の書き込みで全体が揃う（冪等）。
func (r *PostgresFeedRepo) ReplaceFeed(ctx context.Context, feed *model.GoogleShoppingFeed) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO google_shopping_feeds (shop_id, handle, xml, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (shop_id, handle) DO UPDATE SET
		    xml = EXCLUDED.xml,
		    created_at = EXCLUDED.created_at`,
		feed.ShopID, feed.Handle, feed.XML, feed.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("フィードの保存に失敗しました: %w", err)
	}
	return nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ FeedRepository = (*PostgresFeedRepo)(nil)
