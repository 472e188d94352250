package feed

import (
	"testing"
	"time"

	"github.com/hitoshi/shoppingfeed/internal/model"
)

func TestNeedsRegeneration(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	existing := &model.GoogleShoppingFeed{ShopID: "shop-1", Handle: model.FeedHandleIndex, XML: "<rss/>", CreatedAt: created}

	at := func(d time.Duration) *time.Time {
		ts := created.Add(d)
		return &ts
	}

	tests := []struct {
		name     string
		existing *model.GoogleShoppingFeed
		latest   *time.Time
		want     bool
	}{
		{"保存済みフィードなし", nil, nil, true},
		{"保存済みフィードなし・商品あり", nil, at(-time.Hour), true},
		{"商品なし", existing, nil, false},
		{"作成後に更新あり", existing, at(time.Second), true},
		{"作成と同時刻の更新は再生成しない", existing, at(0), false},
		{"作成前の更新のみ", existing, at(-time.Minute), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NeedsRegeneration(tt.existing, tt.latest); got != tt.want {
				t.Errorf("NeedsRegeneration() = %v, want %v", got, tt.want)
			}
		})
	}
}
