// Package sweep は期限切れセッションの自動削除ジョブを提供する。
// expires_atを超過したuser_sessions行を定期バッチで削除する。
// セッションの失効判定は参照時にも行われるため、このジョブは
// ストレージの肥大化を防ぐためのハウスキーピングである。
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SessionDeleter は期限切れセッションの削除を抽象化するインターフェース。
type SessionDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// SweepObserver は削除件数をメトリクスに記録するインターフェース。
type SweepObserver interface {
	RecordSessionsSwept(count int64)
}

// DefaultInterval はスイープ実行のデフォルト間隔。
const DefaultInterval = 1 * time.Hour

// Sweeper は期限切れセッションの定期削除ジョブ。
// 冪等な削除処理であり、削除対象がなくてもエラーにならない。
type Sweeper struct {
	sessions SessionDeleter
	logger   *slog.Logger
	observer SweepObserver // nilの場合は記録しない
}

// NewSweeper は新しいSweeperを生成する。observerはnilでもよい。
func NewSweeper(sessions SessionDeleter, logger *slog.Logger, observer SweepObserver) *Sweeper {
	return &Sweeper{
		sessions: sessions,
		logger:   logger,
		observer: observer,
	}
}

// Start は指定間隔のティッカーでスイープを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("セッションスイープを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("セッションスイープの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("セッションスイープを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("セッションスイープの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は期限切れセッションを1回削除する。
func (s *Sweeper) RunOnce(ctx context.Context) error {
	start := time.Now()

	deletedCount, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		return fmt.Errorf("期限切れセッションの削除に失敗: %w", err)
	}

	if s.observer != nil {
		s.observer.RecordSessionsSwept(deletedCount)
	}

	duration := time.Since(start)
	s.logger.Info("セッションスイープが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
