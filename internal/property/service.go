package property

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/propman/internal/model"
	"github.com/hitoshi/propman/internal/pagination"
	"github.com/hitoshi/propman/internal/repository"
	"github.com/hitoshi/propman/internal/richtext"
)

// ListPageSize は一覧ページの1ページあたりの表示件数。
const ListPageSize = 6

// DefaultRecentLimit は新着一覧（ページネーションなし）のデフォルト件数。
const DefaultRecentLimit = 12

// maxRecentLimit は新着一覧で許可する最大件数。
const maxRecentLimit = 50

// summaryBlocks は一覧サマリーに含める説明文ブロック数。
const summaryBlocks = 2

// TextSanitizer は自由入力テキストの無害化インターフェース。
// security.ContentSanitizerが実装する。
type TextSanitizer interface {
	Sanitize(s string) string
}

// Service は物件リスティングの作成・更新・削除・照会を提供する。
// 説明文はリッチテキスト正規化（キー保証）を通してから永続化する。
type Service struct {
	repo      repository.PropertyRepository
	sanitizer TextSanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.PropertyRepository, sanitizer TextSanitizer) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
	}
}

// CreateInput は物件作成の入力。
type CreateInput struct {
	Title       string
	Location    string
	Price       int
	Description []model.Block
	ImageID     string
}

// UpdateInput は物件更新の入力。title/location/price/description/imageを
// 全置換する。slugとisPublishedは対象外。
type UpdateInput struct {
	Title       string
	Location    string
	Price       int
	Description []model.Block
	ImageID     string
}

// ListResult は一覧照会の結果。物件サマリーとページウィンドウの
// 表示メタデータを含む。
type ListResult struct {
	Properties  []*model.Property
	Window      pagination.Window
	ShownFrom   int
	ShownTo     int
	PageNumbers []pagination.PageItem
}

// Create は物件を新規作成する。
// 必須フィールドを検証し、タイトルからスラッグを導出し、
// isPublished=trueで保存する。説明文が空の場合は正規化により
// 空スパン1つのデフォルトブロックになる。
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Property, error) {
	title, location, err := s.validateFields(in.Title, in.Location, in.Price)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p := &model.Property{
		ID:          uuid.NewString(),
		Title:       title,
		Slug:        model.Slug{Current: GenerateSlug(title)},
		Location:    location,
		Price:       in.Price,
		Description: richtext.EnsureKeys(s.sanitizeBlocks(in.Description)),
		ImageID:     in.ImageID,
		IsPublished: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		slog.Error("物件の作成に失敗しました",
			slog.String("property_id", p.ID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewStoreError()
	}

	return p, nil
}

// Update は物件のtitle/location/price/description/imageを全置換する。
// slug・isPublished・createdAtには触れない。対象が存在しない場合は
// PROPERTY_NOT_FOUNDを返す。
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) error {
	title, location, err := s.validateFields(in.Title, in.Location, in.Price)
	if err != nil {
		return err
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		slog.Error("物件の取得に失敗しました",
			slog.String("property_id", id),
			slog.String("error", err.Error()),
		)
		return model.NewStoreError()
	}
	if existing == nil {
		return model.NewPropertyNotFoundError(id)
	}

	updated := *existing
	updated.Title = title
	updated.Location = location
	updated.Price = in.Price
	updated.Description = richtext.EnsureKeys(s.sanitizeBlocks(in.Description))
	updated.ImageID = in.ImageID
	updated.UpdatedAt = time.Now().UTC()

	ok, err := s.repo.Update(ctx, &updated)
	if err != nil {
		slog.Error("物件の更新に失敗しました",
			slog.String("property_id", id),
			slog.String("error", err.Error()),
		)
		return model.NewStoreError()
	}
	if !ok {
		// FindByIDとの間に削除が割り込んだ場合。楽観ロックは行わない。
		return model.NewPropertyNotFoundError(id)
	}

	return nil
}

// Delete は物件を即時削除し、削除した物件を返す。
// 対象が存在しない場合（二重削除を含む）はPROPERTY_NOT_FOUNDを返す。
func (s *Service) Delete(ctx context.Context, id string) (*model.Property, error) {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		slog.Error("物件の削除に失敗しました",
			slog.String("property_id", id),
			slog.String("error", err.Error()),
		)
		return nil, model.NewStoreError()
	}
	if deleted == nil {
		return nil, model.NewPropertyNotFoundError(id)
	}
	return deleted, nil
}

// GetBySlug はスラッグで公開済み物件を取得する。
// 見つからない場合はnilを返す（ハンドラー側で404にする）。
func (s *Service) GetBySlug(ctx context.Context, slug string) (*model.Property, error) {
	p, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		slog.Error("物件の検索に失敗しました",
			slog.String("slug", slug),
			slog.String("error", err.Error()),
		)
		return nil, model.NewStoreError()
	}
	return p, nil
}

// List は公開済み物件の1ページ分をウィンドウメタデータ付きで返す。
// pageは1以上であること（HTTP境界でクランプ済みの前提）。
// サマリーの説明文は先頭2ブロックに切り詰める。
func (s *Service) List(ctx context.Context, page int) (*ListResult, error) {
	total, err := s.repo.CountPublished(ctx)
	if err != nil {
		slog.Error("物件総数の取得に失敗しました", slog.String("error", err.Error()))
		return nil, model.NewStoreError()
	}

	w := pagination.Paginate(page, ListPageSize, total)

	props, err := s.repo.ListPublished(ctx, w.StartIndex, w.PageSize)
	if err != nil {
		slog.Error("物件一覧の取得に失敗しました",
			slog.Int("page", page),
			slog.String("error", err.Error()),
		)
		return nil, model.NewStoreError()
	}

	summaries := make([]*model.Property, len(props))
	for i, p := range props {
		summary := *p
		if len(summary.Description) > summaryBlocks {
			summary.Description = summary.Description[:summaryBlocks]
		}
		summaries[i] = &summary
	}

	from, to := w.ShownRange(len(summaries))

	return &ListResult{
		Properties:  summaries,
		Window:      w,
		ShownFrom:   from,
		ShownTo:     to,
		PageNumbers: pagination.PageNumbers(page, w.TotalPages),
	}, nil
}

// Recent は公開済み物件の新着limit件を返す。
// limitが0以下の場合はデフォルト12件、上限は50件。
func (s *Service) Recent(ctx context.Context, limit int) ([]*model.Property, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	props, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		slog.Error("新着物件の取得に失敗しました", slog.String("error", err.Error()))
		return nil, model.NewStoreError()
	}
	return props, nil
}

// validateFields は必須フィールドを検証し、無害化済みの
// タイトルと所在地を返す。
func (s *Service) validateFields(title, location string, price int) (string, string, error) {
	title = strings.TrimSpace(s.sanitizer.Sanitize(title))
	location = strings.TrimSpace(s.sanitizer.Sanitize(location))

	if title == "" {
		return "", "", model.NewMissingFieldError("title")
	}
	if location == "" {
		return "", "", model.NewMissingFieldError("location")
	}
	if price == 0 {
		return "", "", model.NewMissingFieldError("price")
	}
	if price < 0 {
		return "", "", model.NewInvalidPriceError(price)
	}

	return title, location, nil
}

// sanitizeBlocks は説明文の全スパンテキストを無害化したコピーを返す。
// スパン以外のインラインオブジェクトには触れない。
func (s *Service) sanitizeBlocks(blocks []model.Block) []model.Block {
	if len(blocks) == 0 {
		return blocks
	}
	out := make([]model.Block, len(blocks))
	for i, b := range blocks {
		nb := b
		if len(b.Children) > 0 {
			children := make([]model.Child, len(b.Children))
			for j, c := range b.Children {
				nc := c
				if nc.IsSpan() {
					nc.Text = s.sanitizer.Sanitize(nc.Text)
				}
				children[j] = nc
			}
			nb.Children = children
		}
		out[i] = nb
	}
	return out
}
