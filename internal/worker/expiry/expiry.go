// Package expiry はプレミアム購読の期限切れを反映するバッチジョブを提供する。
// subscription_endを過ぎた購読のis_premiumを0に戻す。
// subscription_planとsubscription_endは履歴として残す。
package expiry

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/grosync/internal/metrics"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

const expireQuery = `UPDATE users SET is_premium = 0
WHERE is_premium = 1 AND subscription_end > 0 AND subscription_end < $1`

// ExpiryJob は期限切れ購読の失効ジョブ。
// 冪等な更新のため、何度実行しても結果は変わらない。
type ExpiryJob struct {
	db      Executor
	logger  *slog.Logger
	metrics metrics.MetricsCollector
	now     func() time.Time
}

// NewExpiryJob は新しいExpiryJobを生成する。
func NewExpiryJob(db Executor, logger *slog.Logger, collector metrics.MetricsCollector) *ExpiryJob {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &ExpiryJob{
		db:      db,
		logger:  logger,
		metrics: collector,
		now:     time.Now,
	}
}

// Run は現在時刻より前に終了した購読を失効させる。
// 失効対象がない場合でもエラーにならない。
func (j *ExpiryJob) Run(ctx context.Context) error {
	start := j.now()
	cutoff := start.UnixMilli()

	result, err := j.db.ExecContext(ctx, expireQuery, cutoff)
	if err != nil {
		j.logger.Error("購読失効ジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("購読失効の実行に失敗: %w", err)
	}

	expiredCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("失効件数の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("失効件数の取得に失敗: %w", err)
	}

	j.metrics.RecordPremiumEvent(metrics.PremiumExpired, int(expiredCount))

	j.logger.Info("購読失効ジョブが完了しました",
		slog.Int64("expired_count", expiredCount),
		slog.Int64("cutoff", cutoff),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// Start は起動直後に1回、その後interval間隔でRunを実行する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *ExpiryJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("購読失効ワーカーを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行。エラーはRun内でログ出力済み
	_ = j.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("購読失効ワーカーを停止しました")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
