// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/propman/internal/model"
)

// PropertyRepository は物件リスティングの永続化インターフェース。
// サービス層にはこのインターフェースを注入し、テストではフェイク実装を
// 使用する（グローバルなクライアントは持たない）。
type PropertyRepository interface {
	// Create は物件を作成する。
	Create(ctx context.Context, p *model.Property) error

	// Update はtitle・location・price・description・imageを全置換する。
	// slug・is_published・created_atは変更しない。
	// 対象が存在しない場合は何もせずfalseを返す。
	Update(ctx context.Context, p *model.Property) (bool, error)

	// Delete は指定IDの物件を削除し、削除した行を返す。
	// 対象が存在しない場合はnilを返す（エラーにしない）。
	Delete(ctx context.Context, id string) (*model.Property, error)

	// FindByID は指定IDの物件を取得する。見つからない場合はnilを返す。
	// 公開状態は問わない（編集パスで使用する）。
	FindByID(ctx context.Context, id string) (*model.Property, error)

	// FindBySlug は指定スラッグの公開済み物件を取得する。
	// スラッグは一意性が保証されないため、同一スラッグが複数ある場合は
	// 作成日時が最新のものを返す。見つからない場合はnilを返す。
	FindBySlug(ctx context.Context, slug string) (*model.Property, error)

	// ListPublished は公開済み物件を作成日時降順でoffsetからlimit件返す。
	ListPublished(ctx context.Context, offset, limit int) ([]*model.Property, error)

	// CountPublished は公開済み物件の総数を返す。
	CountPublished(ctx context.Context) (int, error)

	// ListRecent は公開済み物件を作成日時降順で先頭からlimit件返す。
	ListRecent(ctx context.Context, limit int) ([]*model.Property, error)

	// ListReferencedImageIDs は物件から参照されている画像アセットIDの
	// 一覧を返す（アセットGCで使用する）。
	ListReferencedImageIDs(ctx context.Context) ([]string, error)
}
