package queue

import (
	"time"

	"github.com/hitoshi/shoppingfeed/internal/model"
)

// maxBackoff はリトライ待機時間の上限（12時間）。
const maxBackoff = 12 * time.Hour

// CalculateBackoff はattempt回目（1始まり）の失敗後に待機する時間を返す。
// 指数バックオフの場合は wait * 2^(attempt-1)、それ以外は常にwait。最大12時間。
func CalculateBackoff(policy model.RetryPolicy, attempt int) time.Duration {
	delay := policy.Wait
	if delay <= 0 {
		return 0
	}
	if policy.Backoff != model.BackoffExponential {
		return min(delay, maxBackoff)
	}
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// ShouldRetry はattempt回目の失敗後にまだリトライできるかを返す。
func ShouldRetry(policy model.RetryPolicy, attempt int) bool {
	return attempt <= policy.Retries
}
