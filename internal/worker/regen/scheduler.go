// Package regen はショップごとのフィード再生成ジョブの登録と実行を提供する。
package regen

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/shoppingfeed/internal/model"
	"github.com/hitoshi/shoppingfeed/internal/repository"
	"github.com/hitoshi/shoppingfeed/internal/worker/queue"
)

// JobType はフィード再生成ジョブの種別。
const JobType = "googleShoppingFeeds/generate"

// DefaultWorkTimeout は1回の生成に許される時間。
const DefaultWorkTimeout = 180 * time.Second

// startupConcurrency は起動時にジョブを登録する際の並列数。
const startupConcurrency = 8

// DefaultRetry は再生成ジョブのリトライ方針（5回、60秒、指数バックオフ）。
var DefaultRetry = model.RetryPolicy{
	Retries: 5,
	Wait:    60 * time.Second,
	Backoff: model.BackoffExponential,
}

// JobQueue はジョブキューの操作インターフェース。
type JobQueue interface {
	AddWorker(w queue.Worker) error
	ScheduleJob(ctx context.Context, opts queue.ScheduleOptions) (*model.Job, error)
	CancelJobs(ctx context.Context, jobType string, data model.JobData) (int64, error)
}

// FeedGenerator はフィード生成の実行インターフェース。
type FeedGenerator interface {
	Generate(ctx context.Context, shopIDs []string, notifyUserID string) error
}

// Scheduler はショップごとの再生成ジョブを管理する。
// 同じショップに対するキャンセルと登録はショップ単位のロックで直列化する。
type Scheduler struct {
	queue        JobQueue
	generator    FeedGenerator
	shopRepo     repository.ShopRepository
	settingsRepo repository.SettingsRepository
	logger       *slog.Logger

	// WorkTimeout は1回の生成に許される時間（デフォルト180秒）。
	WorkTimeout time.Duration

	locks sync.Map // shopID -> *sync.Mutex
}

// NewScheduler はSchedulerを生成する。
func NewScheduler(
	q JobQueue,
	generator FeedGenerator,
	shopRepo repository.ShopRepository,
	settingsRepo repository.SettingsRepository,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		queue:        q,
		generator:    generator,
		shopRepo:     shopRepo,
		settingsRepo: settingsRepo,
		logger:       logger,
		WorkTimeout:  DefaultWorkTimeout,
	}
}

func (s *Scheduler) lock(shopID string) func() {
	v, _ := s.locks.LoadOrStore(shopID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// UpdateTaskForShop はショップの繰り返し再生成ジョブを現在の更新間隔で登録し直す。
// 同じショップの既存の繰り返しジョブはキャンセルされる。
func (s *Scheduler) UpdateTaskForShop(ctx context.Context, shopID string) error {
	unlock := s.lock(shopID)
	defer unlock()

	settings, err := s.settingsRepo.AppSettings(ctx, shopID)
	if err != nil {
		return fmt.Errorf("ショップ設定の取得に失敗しました: %w", err)
	}

	data := model.JobData{ShopID: shopID}
	if _, err := s.queue.CancelJobs(ctx, JobType, data); err != nil {
		return err
	}

	if _, err := s.queue.ScheduleJob(ctx, queue.ScheduleOptions{
		Type:     JobType,
		Data:     data,
		Retry:    DefaultRetry,
		Schedule: settings.RefreshPeriod,
	}); err != nil {
		return err
	}

	s.logger.Info("フィード再生成ジョブを登録しました",
		slog.String("shop_id", shopID),
		slog.String("refresh_period", settings.RefreshPeriod),
	)
	return nil
}

// GenerateNow はショップのフィードを即時に1回生成するジョブを登録する。
// 完了時にuserIDのユーザーへ通知する。
func (s *Scheduler) GenerateNow(ctx context.Context, shopID, userID string) error {
	unlock := s.lock(shopID)
	defer unlock()

	data := model.JobData{ShopID: shopID, NotifyUserID: userID}
	if _, err := s.queue.CancelJobs(ctx, JobType, data); err != nil {
		return err
	}

	if _, err := s.queue.ScheduleJob(ctx, queue.ScheduleOptions{
		Type:  JobType,
		Data:  data,
		Retry: DefaultRetry,
	}); err != nil {
		return err
	}

	s.logger.Info("フィードの即時生成ジョブを登録しました",
		slog.String("shop_id", shopID),
		slog.String("user_id", userID),
	)
	return nil
}

// Work は1件の再生成ジョブを処理する。対象は常に1ショップ。
func (s *Scheduler) Work(ctx context.Context, job *model.Job) error {
	if job.Data.ShopID == "" {
		return fmt.Errorf("ジョブにショップIDがありません: %s", job.ID)
	}
	return s.generator.Generate(ctx, []string{job.Data.ShopID}, job.Data.NotifyUserID)
}

// Start はワーカーを登録し、全ショップの繰り返し再生成ジョブを登録する。
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.queue.AddWorker(queue.Worker{
		Type:        JobType,
		WorkTimeout: s.WorkTimeout,
		Work:        s.Work,
	}); err != nil {
		return fmt.Errorf("ワーカーの登録に失敗しました: %w", err)
	}

	shopIDs, err := s.shopRepo.ListIDs(ctx)
	if err != nil {
		return fmt.Errorf("ショップ一覧の取得に失敗しました: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(startupConcurrency)
	for _, id := range shopIDs {
		g.Go(func() error {
			return s.UpdateTaskForShop(gctx, id)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("再生成ジョブの登録に失敗しました: %w", err)
	}

	s.logger.Info("フィード再生成スケジューラを開始しました",
		slog.Int("shop_count", len(shopIDs)),
	)
	return nil
}
