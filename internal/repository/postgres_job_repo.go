package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/shoppingfeed/internal/model"
)

// PostgresJobRepo はPostgreSQLを使用したジョブキューリポジトリ。
// 複数プロセスから同時にポーリングされても、同じジョブが二重に実行されないよう
// FOR UPDATE SKIP LOCKEDで取得する。
type PostgresJobRepo struct {
	db *sql.DB
}

// NewPostgresJobRepo はPostgresJobRepoを生成する。
func NewPostgresJobRepo(db *sql.DB) *PostgresJobRepo {
	return &PostgresJobRepo{db: db}
}

const jobColumns = `id, type, shop_id, notify_user_id, retry_limit, retry_wait_ms, retry_backoff,
		schedule, status, attempts, next_run_at, last_error, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*model.Job, error) {
	job := &model.Job{}
	var waitMS int64
	var backoff, schedule, lastError sql.NullString

	if err := row.Scan(
		&job.ID, &job.Type, &job.Data.ShopID, &job.Data.NotifyUserID,
		&job.Retry.Retries, &waitMS, &backoff,
		&schedule, &job.Status, &job.Attempts, &job.NextRunAt, &lastError,
		&job.CreatedAt, &job.UpdatedAt,
	); err != nil {
		return nil, err
	}

	job.Retry.Wait = time.Duration(waitMS) * time.Millisecond
	job.Retry.Backoff = nullStringValue(backoff)
	job.Schedule = nullStringValue(schedule)
	job.LastError = nullStringValue(lastError)
	return job, nil
}

// CancelAndInsert は(type, shop_id, notify_user_id)が完全一致する未完了ジョブをキャンセルしたうえで、
// 新しいジョブを同一トランザクションで登録する。
// 同じキーに対する同時登録はアドバイザリロックで直列化する。
func (r *PostgresJobRepo) CancelAndInsert(ctx context.Context, job *model.Job) (int64, error) {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = model.JobStatusWaiting
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1 || ':' || $2))`,
		job.Type, job.Data.ShopID,
	); err != nil {
		return 0, fmt.Errorf("ジョブロックの取得に失敗しました: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE background_jobs SET status = 'cancelled', updated_at = now()
		 WHERE type = $1 AND shop_id = $2 AND notify_user_id = $3
		   AND status IN ('waiting', 'running')`,
		job.Type, job.Data.ShopID, job.Data.NotifyUserID,
	)
	if err != nil {
		return 0, fmt.Errorf("既存ジョブのキャンセルに失敗しました: %w", err)
	}
	cancelled, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("キャンセル件数の取得に失敗しました: %w", err)
	}

	err = tx.QueryRowContext(ctx,
		`INSERT INTO background_jobs (id, type, shop_id, notify_user_id, retry_limit, retry_wait_ms,
		    retry_backoff, schedule, status, attempts, next_run_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, $10, now(), now())
		 RETURNING created_at, updated_at`,
		job.ID, job.Type, job.Data.ShopID, job.Data.NotifyUserID,
		job.Retry.Retries, job.Retry.Wait.Milliseconds(), nullString(job.Retry.Backoff),
		nullString(job.Schedule), job.Status, job.NextRunAt,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return 0, fmt.Errorf("ジョブの登録に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return cancelled, nil
}

// CancelMatching は(type, shop_id, notify_user_id)が完全一致する未完了ジョブをキャンセルする。
func (r *PostgresJobRepo) CancelMatching(ctx context.Context, jobType string, data model.JobData) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE background_jobs SET status = 'cancelled', updated_at = now()
		 WHERE type = $1 AND shop_id = $2 AND notify_user_id = $3
		   AND status IN ('waiting', 'running')`,
		jobType, data.ShopID, data.NotifyUserID,
	)
	if err != nil {
		return 0, fmt.Errorf("ジョブのキャンセルに失敗しました: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("キャンセル件数の取得に失敗しました: %w", err)
	}
	return n, nil
}

// ClaimDue は実行時刻を過ぎた待機中ジョブを取得し、実行中にする。
// staleBeforeより前から実行中のままのジョブ（プロセス停止で取り残されたもの）も再取得する。
func (r *PostgresJobRepo) ClaimDue(ctx context.Context, types []string, limit int, staleBefore time.Time) ([]*model.Job, error) {
	rows, err := r.db.QueryContext(ctx,
		`UPDATE background_jobs SET status = 'running', updated_at = now()
		 WHERE id IN (
		    SELECT id FROM background_jobs
		    WHERE type = ANY($1)
		      AND ((status = 'waiting' AND next_run_at <= now())
		        OR (status = 'running' AND updated_at < $3))
		    ORDER BY next_run_at ASC
		    LIMIT $2
		    FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+jobColumns,
		pq.Array(types), limit, staleBefore,
	)
	if err != nil {
		return nil, fmt.Errorf("実行対象ジョブの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("実行対象ジョブの読み取りに失敗しました: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("実行対象ジョブの走査に失敗しました: %w", err)
	}

	return jobs, nil
}

// UpdateState は実行中ジョブの状態を更新する。
// 実行中にキャンセルされたジョブは更新せずfalseを返す。
func (r *PostgresJobRepo) UpdateState(ctx context.Context, job *model.Job) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE background_jobs SET
		    status = $2,
		    attempts = $3,
		    next_run_at = $4,
		    last_error = $5,
		    updated_at = now()
		 WHERE id = $1 AND status = 'running'`,
		job.ID,
		job.Status,
		job.Attempts,
		job.NextRunAt,
		nullString(job.LastError),
	)
	if err != nil {
		return false, fmt.Errorf("ジョブ状態の更新に失敗しました: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("更新件数の取得に失敗しました: %w", err)
	}
	return n > 0, nil
}

// DeleteFinishedBefore は終了済みジョブのうちbeforeより前に更新されたものを削除する。
func (r *PostgresJobRepo) DeleteFinishedBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM background_jobs
		 WHERE status IN ('completed', 'failed', 'cancelled') AND updated_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("終了済みジョブの削除に失敗しました: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ JobRepository = (*PostgresJobRepo)(nil)
