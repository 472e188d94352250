package model

import "time"

// JobStatus はバックグラウンドジョブの状態を表す。
type JobStatus string

const (
	// JobStatusWaiting は実行待ち（リトライ待ち・次回スケジュール待ちを含む）。
	JobStatusWaiting JobStatus = "waiting"
	// JobStatusRunning は実行中。
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted は正常終了。
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed はリトライを使い切った終端状態。
	JobStatusFailed JobStatus = "failed"
	// JobStatusCancelled はキャンセル済み。
	JobStatusCancelled JobStatus = "cancelled"
)

// BackoffExponential は指数バックオフを示すリトライ方式。
const BackoffExponential = "exponential"

// JobData はジョブ対象を識別するデータ。キャンセル時の一致判定にも使う。
type JobData struct {
	ShopID       string `json:"shopId"`
	NotifyUserID string `json:"notifyUserId,omitempty"`
}

// RetryPolicy はジョブ失敗時のリトライ方針。
type RetryPolicy struct {
	Retries int
	Wait    time.Duration
	Backoff string
}

// Job はジョブキューに保存されるジョブを表す。
type Job struct {
	ID        string
	Type      string
	Data      JobData
	Retry     RetryPolicy
	Schedule  string // 空の場合は1回限りのジョブ
	Status    JobStatus
	Attempts  int
	NextRunAt time.Time
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsRecurring は繰り返しスケジュールを持つジョブかどうかを返す。
func (j *Job) IsRecurring() bool {
	return j.Schedule != ""
}
