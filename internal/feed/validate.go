package feed

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/shoppingfeed/internal/model"
)

// validate は構造体タグによる検証器。スレッドセーフでキャッシュを持つため共有する。
var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateFeed は保存前のフィードドキュメントを検証する。
// 全フィールドが揃っていること、XMLがRSSとしてパースできることを確認する。
// 違反した場合は model.ErrInvalidFeedDocument をラップしたエラーを返す。
func ValidateFeed(doc *model.GoogleShoppingFeed) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", model.ErrInvalidFeedDocument)
	}
	if err := validate.Struct(doc); err != nil {
		return fmt.Errorf("%w: %v", model.ErrInvalidFeedDocument, err)
	}

	parsed, err := gofeed.NewParser().ParseString(doc.XML)
	if err != nil {
		return fmt.Errorf("%w: xml is not a well-formed feed: %v", model.ErrInvalidFeedDocument, err)
	}
	if parsed.FeedType != "rss" {
		return fmt.Errorf("%w: unexpected feed type %q", model.ErrInvalidFeedDocument, parsed.FeedType)
	}

	return nil
}
