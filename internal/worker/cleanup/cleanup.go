// Package cleanup は孤立画像アセットのGCジョブを提供する。
// どの物件からも参照されていないアセットストア上のオブジェクトを
// 定期バッチで削除する。アップロード直後でまだ物件に紐付く前の
// オブジェクトを誤削除しないよう、猶予期間内のオブジェクトは対象外とする。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/propman/internal/assetstore"
)

// ReferencedImageLister は物件から参照中の画像キー一覧の取得インターフェース。
// repository.PropertyRepositoryが実装する。
type ReferencedImageLister interface {
	ListReferencedImageIDs(ctx context.Context) ([]string, error)
}

// AssetsCleanedRecorder は削除した孤立アセット数のメトリクス記録インターフェース。
type AssetsCleanedRecorder interface {
	RecordAssetsCleaned(count int)
}

// DefaultGracePeriod はアップロードから削除対象になるまでのデフォルト猶予期間。
const DefaultGracePeriod = 24 * time.Hour

// CleanupJob は孤立画像アセットの自動削除ジョブ。
// 定期実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	store       assetstore.AssetStore
	repo        ReferencedImageLister
	logger      *slog.Logger
	metrics     AssetsCleanedRecorder // nil可
	GracePeriod time.Duration         // アップロードからの猶予期間（デフォルト: 24時間）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの猶予期間は24時間。metricsはnilでもよい。
func NewCleanupJob(store assetstore.AssetStore, repo ReferencedImageLister, logger *slog.Logger, metrics AssetsCleanedRecorder) *CleanupJob {
	return &CleanupJob{
		store:       store,
		repo:        repo,
		logger:      logger,
		metrics:     metrics,
		GracePeriod: DefaultGracePeriod,
	}
}

// Run は孤立アセットを削除する。
// 物件から参照中のキー集合を取得し、アセットストア上のオブジェクトのうち
// 参照されておらず、かつ猶予期間を超過したものを削除する。
// 個々のオブジェクトの削除失敗はログに記録して続行する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	referenced, err := j.repo.ListReferencedImageIDs(ctx)
	if err != nil {
		j.logger.Error("参照中画像キーの取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("参照中画像キーの取得に失敗: %w", err)
	}

	referencedSet := make(map[string]struct{}, len(referenced))
	for _, key := range referenced {
		referencedSet[key] = struct{}{}
	}

	objects, err := j.store.List(ctx)
	if err != nil {
		j.logger.Error("アセットストアの走査に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("アセットストアの走査に失敗: %w", err)
	}

	cutoff := time.Now().Add(-j.GracePeriod)
	removedCount := 0
	skippedRecent := 0

	for _, obj := range objects {
		if _, ok := referencedSet[obj.Key]; ok {
			continue
		}
		if obj.LastModified.After(cutoff) {
			// アップロード直後でまだ物件に紐付いていない可能性がある
			skippedRecent++
			continue
		}

		if err := j.store.Remove(ctx, obj.Key); err != nil {
			j.logger.Error("孤立アセットの削除に失敗しました",
				slog.String("key", obj.Key),
				slog.String("error", err.Error()),
			)
			continue
		}
		removedCount++
	}

	if j.metrics != nil && removedCount > 0 {
		j.metrics.RecordAssetsCleaned(removedCount)
	}

	duration := time.Since(start)
	j.logger.Info("孤立アセットクリーンアップジョブが完了しました",
		slog.Int("scanned_count", len(objects)),
		slog.Int("referenced_count", len(referenced)),
		slog.Int("removed_count", removedCount),
		slog.Int("skipped_recent_count", skippedRecent),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
