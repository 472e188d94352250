// Package queue はPostgreSQLをバックエンドとするバックグラウンドジョブキューを提供する。
// ジョブ種別ごとのワーカー登録、1回限り/繰り返しジョブの登録、キャンセル、
// リトライ（指数バックオフ）を扱う。
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/shoppingfeed/internal/model"
	"github.com/hitoshi/shoppingfeed/internal/repository"
)

// ジョブ処理結果（メトリクスのoutcomeラベル）
const (
	OutcomeCompleted   = "completed"
	OutcomeRescheduled = "rescheduled"
	OutcomeRetry       = "retry"
	OutcomeFailed      = "failed"
	OutcomeCancelled   = "cancelled"
)

const (
	defaultMaxConcurrency = 10
	defaultStaleAfter     = 10 * time.Minute
)

// ErrUnknownJobType は登録されていないジョブ種別が指定されたことを示す。
var ErrUnknownJobType = errors.New("ワーカーが登録されていないジョブ種別です")

// Metrics はジョブ処理結果を記録するインターフェース。
type Metrics interface {
	RecordJob(jobType, outcome string)
}

// Worker はジョブ種別ごとの処理を表す。
type Worker struct {
	Type string
	// WorkTimeout は1回の実行に許される時間。0以下の場合は無制限。
	WorkTimeout time.Duration
	Work        func(ctx context.Context, job *model.Job) error
}

// ScheduleOptions はScheduleJobに渡すジョブ定義。
type ScheduleOptions struct {
	Type  string
	Data  model.JobData
	Retry model.RetryPolicy
	// Schedule が空の場合は1回限りのジョブとして登録する。
	Schedule string
}

// Queue はジョブの登録と実行を行う。
// ポーリングのたびに実行時刻を過ぎたジョブを取得し、
// semaphoreパターンで最大並列数を制御しながら実行する。
type Queue struct {
	repo           repository.JobRepository
	logger         *slog.Logger
	metrics        Metrics
	maxConcurrency int

	// StaleAfter は実行中のまま放置されたジョブを再取得するまでの時間。
	StaleAfter time.Duration

	mu      sync.RWMutex
	workers map[string]*Worker

	now func() time.Time
}

// NewQueue はQueueの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値10を使用する。
func NewQueue(repo repository.JobRepository, logger *slog.Logger, metrics Metrics, maxConcurrency int) *Queue {
	if maxConcurrency <= 0 {
		maxConcurrency = defaultMaxConcurrency
	}
	return &Queue{
		repo:           repo,
		logger:         logger,
		metrics:        metrics,
		maxConcurrency: maxConcurrency,
		StaleAfter:     defaultStaleAfter,
		workers:        make(map[string]*Worker),
		now:            time.Now,
	}
}

// AddWorker はジョブ種別に対するワーカーを登録する。同じ種別は後から登録したものが優先される。
func (q *Queue) AddWorker(w Worker) error {
	if w.Type == "" || w.Work == nil {
		return fmt.Errorf("ワーカーの種別と処理は必須です")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.workers[w.Type] = &w
	return nil
}

func (q *Queue) worker(jobType string) *Worker {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.workers[jobType]
}

func (q *Queue) workerTypes() []string {
	q.mu.RLock()
	defer q.mu.RUnlock()
	types := make([]string, 0, len(q.workers))
	for t := range q.workers {
		types = append(types, t)
	}
	return types
}

// ScheduleJob はジョブを登録する。(type, data)が完全一致する未完了ジョブは置き換えられる。
// 繰り返しジョブも初回は即時に実行される。
func (q *Queue) ScheduleJob(ctx context.Context, opts ScheduleOptions) (*model.Job, error) {
	if opts.Type == "" {
		return nil, fmt.Errorf("ジョブ種別は必須です")
	}
	if opts.Schedule != "" {
		if _, err := ParseSchedule(opts.Schedule); err != nil {
			return nil, err
		}
	}

	job := &model.Job{
		ID:        uuid.New().String(),
		Type:      opts.Type,
		Data:      opts.Data,
		Retry:     opts.Retry,
		Schedule:  opts.Schedule,
		Status:    model.JobStatusWaiting,
		NextRunAt: q.now(),
	}

	cancelled, err := q.repo.CancelAndInsert(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("ジョブの登録に失敗しました: %w", err)
	}

	q.logger.Info("ジョブを登録しました",
		slog.String("job_id", job.ID),
		slog.String("job_type", job.Type),
		slog.String("shop_id", job.Data.ShopID),
		slog.String("schedule", job.Schedule),
		slog.Int64("replaced_count", cancelled),
	)
	return job, nil
}

// CancelJobs は(type, data)が完全一致する未完了ジョブをキャンセルする。
// 同じ種別でもdataが異なるジョブには影響しない。
func (q *Queue) CancelJobs(ctx context.Context, jobType string, data model.JobData) (int64, error) {
	cancelled, err := q.repo.CancelMatching(ctx, jobType, data)
	if err != nil {
		return 0, fmt.Errorf("ジョブのキャンセルに失敗しました: %w", err)
	}
	if cancelled > 0 {
		q.logger.Info("ジョブをキャンセルしました",
			slog.String("job_type", jobType),
			slog.String("shop_id", data.ShopID),
			slog.Int64("cancelled_count", cancelled),
		)
	}
	return cancelled, nil
}

// Start は指定間隔のティッカーでジョブのポーリングを開始する。
// コンテキストがキャンセルされるまで実行を継続する。
func (q *Queue) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	q.logger.Info("ジョブキューを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", q.maxConcurrency),
		slog.Any("job_types", q.workerTypes()),
	)

	// 起動直後に1回実行
	if err := q.RunOnce(ctx); err != nil {
		q.logger.Error("ジョブサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			q.logger.Info("ジョブキューを停止しました")
			return
		case <-ticker.C:
			if err := q.RunOnce(ctx); err != nil {
				q.logger.Error("ジョブサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は実行時刻を過ぎたジョブを1回取得し、並列で実行する。
func (q *Queue) RunOnce(ctx context.Context) error {
	types := q.workerTypes()
	if len(types) == 0 {
		return nil
	}

	jobs, err := q.repo.ClaimDue(ctx, types, q.maxConcurrency, q.now().Add(-q.StaleAfter))
	if err != nil {
		return fmt.Errorf("実行対象ジョブの取得に失敗しました: %w", err)
	}
	if len(jobs) == 0 {
		return nil
	}

	start := time.Now()
	sem := make(chan struct{}, q.maxConcurrency)
	var wg sync.WaitGroup

	for _, job := range jobs {
		wg.Add(1)
		sem <- struct{}{}

		go func(j *model.Job) {
			defer wg.Done()
			defer func() { <-sem }()
			q.process(ctx, j)
		}(job)
	}

	wg.Wait()

	q.logger.Info("ジョブサイクルが完了しました",
		slog.Int("job_count", len(jobs)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// process は1件のジョブを実行し、結果に応じて状態を更新する。
func (q *Queue) process(ctx context.Context, job *model.Job) {
	w := q.worker(job.Type)
	if w == nil {
		q.fail(ctx, job, fmt.Errorf("%w: %s", ErrUnknownJobType, job.Type))
		return
	}

	err := q.runWork(ctx, w, job)

	// シャットダウンで中断したジョブは実行中のまま残し、再起動後に再取得させる
	if ctx.Err() != nil {
		q.logger.Warn("シャットダウンによりジョブを中断しました",
			slog.String("job_id", job.ID),
			slog.String("job_type", job.Type),
		)
		return
	}

	if err != nil {
		q.fail(ctx, job, err)
		return
	}
	q.done(ctx, job)
}

// runWork はワーカーをタイムアウト付きで実行する。パニックはエラーとして扱う。
func (q *Queue) runWork(ctx context.Context, w *Worker, job *model.Job) error {
	workCtx, cancel := ctx, context.CancelFunc(func() {})
	if w.WorkTimeout > 0 {
		workCtx, cancel = context.WithTimeout(ctx, w.WorkTimeout)
	}
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errCh <- fmt.Errorf("ジョブの実行中にパニックが発生しました: %v", r)
			}
		}()
		errCh <- w.Work(workCtx, job)
	}()

	select {
	case err := <-errCh:
		return err
	case <-workCtx.Done():
		return fmt.Errorf("ジョブがタイムアウトしました（%s）: %w", w.WorkTimeout, workCtx.Err())
	}
}

// done は成功したジョブを完了にする。繰り返しジョブは次回実行時刻で待機状態に戻す。
func (q *Queue) done(ctx context.Context, job *model.Job) {
	now := q.now()
	outcome := OutcomeCompleted

	if job.IsRecurring() {
		sched, err := ParseSchedule(job.Schedule)
		if err != nil {
			q.fail(ctx, job, err)
			return
		}
		job.Status = model.JobStatusWaiting
		job.NextRunAt = sched.Next(now)
		job.Attempts = 0
		job.LastError = ""
		outcome = OutcomeRescheduled
	} else {
		job.Status = model.JobStatusCompleted
	}

	if !q.updateState(ctx, job) {
		return
	}
	q.record(job.Type, outcome)

	q.logger.Info("ジョブが完了しました",
		slog.String("job_id", job.ID),
		slog.String("job_type", job.Type),
		slog.String("shop_id", job.Data.ShopID),
		slog.Time("next_run_at", job.NextRunAt),
	)
}

// fail は失敗したジョブをリトライ待ちにする。リトライ上限に達した場合は失敗で終了させ、
// 繰り返しジョブであれば次回分を新しく登録する。
func (q *Queue) fail(ctx context.Context, job *model.Job, cause error) {
	now := q.now()
	job.Attempts++
	job.LastError = cause.Error()

	if ShouldRetry(job.Retry, job.Attempts) {
		backoff := CalculateBackoff(job.Retry, job.Attempts)
		job.Status = model.JobStatusWaiting
		job.NextRunAt = now.Add(backoff)

		if !q.updateState(ctx, job) {
			return
		}
		q.record(job.Type, OutcomeRetry)
		q.logger.Warn("ジョブが失敗しました。リトライします",
			slog.String("job_id", job.ID),
			slog.String("job_type", job.Type),
			slog.String("shop_id", job.Data.ShopID),
			slog.Int("attempts", job.Attempts),
			slog.Duration("backoff", backoff),
			slog.String("error", cause.Error()),
		)
		return
	}

	job.Status = model.JobStatusFailed
	if !q.updateState(ctx, job) {
		return
	}
	q.record(job.Type, OutcomeFailed)
	q.logger.Error("ジョブがリトライ上限に達しました",
		slog.String("job_id", job.ID),
		slog.String("job_type", job.Type),
		slog.String("shop_id", job.Data.ShopID),
		slog.Int("attempts", job.Attempts),
		slog.String("error", cause.Error()),
	)

	if job.IsRecurring() {
		q.rearm(ctx, job, now)
	}
}

// rearm は失敗で終了した繰り返しジョブの次回分を登録する。
func (q *Queue) rearm(ctx context.Context, job *model.Job, now time.Time) {
	sched, err := ParseSchedule(job.Schedule)
	if err != nil {
		return
	}
	next := &model.Job{
		ID:        uuid.New().String(),
		Type:      job.Type,
		Data:      job.Data,
		Retry:     job.Retry,
		Schedule:  job.Schedule,
		Status:    model.JobStatusWaiting,
		NextRunAt: sched.Next(now),
	}
	if _, err := q.repo.CancelAndInsert(ctx, next); err != nil {
		q.logger.Error("繰り返しジョブの再登録に失敗しました",
			slog.String("job_type", job.Type),
			slog.String("shop_id", job.Data.ShopID),
			slog.String("error", err.Error()),
		)
	}
}

// updateState はジョブ状態を保存する。実行中にキャンセルされていた場合はfalseを返す。
func (q *Queue) updateState(ctx context.Context, job *model.Job) bool {
	ok, err := q.repo.UpdateState(ctx, job)
	if err != nil {
		q.logger.Error("ジョブ状態の更新に失敗しました",
			slog.String("job_id", job.ID),
			slog.String("job_type", job.Type),
			slog.String("error", err.Error()),
		)
		return false
	}
	if !ok {
		q.record(job.Type, OutcomeCancelled)
		q.logger.Info("実行中にキャンセルされたジョブの結果を破棄しました",
			slog.String("job_id", job.ID),
			slog.String("job_type", job.Type),
		)
		return false
	}
	return true
}

func (q *Queue) record(jobType, outcome string) {
	if q.metrics != nil {
		q.metrics.RecordJob(jobType, outcome)
	}
}
