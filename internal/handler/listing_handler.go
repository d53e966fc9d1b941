package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/propman/internal/model"
	"github.com/hitoshi/propman/internal/pagination"
	"github.com/hitoshi/propman/internal/property"
)

// ListingServiceInterface はリスティングハンドラーが必要とするサービスインターフェース。
type ListingServiceInterface interface {
	// Create は物件を新規作成する。
	Create(ctx context.Context, in property.CreateInput) (*model.Property, error)
	// Update は物件のtitle/location/price/description/imageを全置換する。
	Update(ctx context.Context, id string, in property.UpdateInput) error
	// Delete は物件を削除し、削除した物件を返す。
	Delete(ctx context.Context, id string) (*model.Property, error)
	// GetBySlug はスラッグで公開済み物件を取得する。未検出時はnilを返す。
	GetBySlug(ctx context.Context, slug string) (*model.Property, error)
	// List は公開済み物件の1ページ分をウィンドウメタデータ付きで返す。
	List(ctx context.Context, page int) (*property.ListResult, error)
	// Recent は公開済み物件の新着limit件を返す。
	Recent(ctx context.Context, limit int) ([]*model.Property, error)
}

// ListingMetricsRecorder は物件操作のメトリクス記録インターフェース。
type ListingMetricsRecorder interface {
	RecordListingCreated()
	RecordListingUpdated()
	RecordListingDeleted()
}

// ListingHandler は物件リスティングのHTTPハンドラー。
type ListingHandler struct {
	service ListingServiceInterface
	metrics ListingMetricsRecorder
}

// NewListingHandler はListingHandlerを生成する。metricsはnilでもよい。
func NewListingHandler(service ListingServiceInterface, metrics ListingMetricsRecorder) *ListingHandler {
	return &ListingHandler{
		service: service,
		metrics: metrics,
	}
}

// listingRequest は物件の作成・更新リクエストのボディ。
type listingRequest struct {
	Title       string        `json:"title"`
	Location    string        `json:"location"`
	Price       int           `json:"price"`
	Description []model.Block `json:"description"`
	ImageID     string        `json:"imageAssetId"`
}

// createListingResponse は物件作成のAPIレスポンス。
type createListingResponse struct {
	Success  bool            `json:"success"`
	Document *model.Property `json:"document"`
}

// updateListingResponse は物件更新のAPIレスポンス。
type updateListingResponse struct {
	Message string `json:"message"`
}

// deleteListingResponse は物件削除のAPIレスポンス。
type deleteListingResponse struct {
	Success    bool            `json:"success"`
	DeletedDoc *model.Property `json:"deletedDoc"`
}

// paginationResponse は一覧ページのウィンドウメタデータ。
// pageNumbersはページ番号（数値）と省略記号（文字列"..."）の混在リスト。
type paginationResponse struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalCount  int   `json:"totalCount"`
	HasPrevPage bool  `json:"hasPrevPage"`
	HasNextPage bool  `json:"hasNextPage"`
	ShownFrom   int   `json:"shownFrom"`
	ShownTo     int   `json:"shownTo"`
	PageNumbers []any `json:"pageNumbers"`
}

// listListingsResponse は物件一覧のAPIレスポンス。
type listListingsResponse struct {
	Properties []*model.Property  `json:"properties"`
	Pagination paginationResponse `json:"pagination"`
}

// recentListingsResponse は新着物件一覧のAPIレスポンス。
type recentListingsResponse struct {
	Properties []*model.Property `json:"properties"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// CreateListing は物件作成を処理する。
// POST /api/listings
func (h *ListingHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	var req listingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	doc, err := h.service.Create(r.Context(), property.CreateInput{
		Title:       req.Title,
		Location:    req.Location,
		Price:       req.Price,
		Description: req.Description,
		ImageID:     req.ImageID,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordListingCreated()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(createListingResponse{
		Success:  true,
		Document: doc,
	})
}

// UpdateListing は物件更新を処理する。
// PUT /api/listings/{id}
func (h *ListingHandler) UpdateListing(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req listingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	err := h.service.Update(r.Context(), id, property.UpdateInput{
		Title:       req.Title,
		Location:    req.Location,
		Price:       req.Price,
		Description: req.Description,
		ImageID:     req.ImageID,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordListingUpdated()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updateListingResponse{
		Message: "物件を更新しました。",
	})
}

// DeleteListing は物件削除を処理する。削除した物件をレスポンスに含める。
// DELETE /api/listings/{id}
func (h *ListingHandler) DeleteListing(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	deleted, err := h.service.Delete(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordListingDeleted()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(deleteListingResponse{
		Success:    true,
		DeletedDoc: deleted,
	})
}

// ListListings は公開済み物件の一覧ページを処理する。
// GET /api/listings?page=N
func (h *ListingHandler) ListListings(w http.ResponseWriter, r *http.Request) {
	page := parsePageParam(r.URL.Query().Get("page"))

	result, err := h.service.List(r.Context(), page)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	props := result.Properties
	if props == nil {
		props = []*model.Property{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(listListingsResponse{
		Properties: props,
		Pagination: paginationResponse{
			CurrentPage: result.Window.CurrentPage,
			TotalPages:  result.Window.TotalPages,
			TotalCount:  result.Window.TotalCount,
			HasPrevPage: result.Window.HasPrevPage,
			HasNextPage: result.Window.HasNextPage,
			ShownFrom:   result.ShownFrom,
			ShownTo:     result.ShownTo,
			PageNumbers: toPageNumbers(result.PageNumbers),
		},
	})
}

// RecentListings は新着物件一覧を処理する。
// GET /api/listings/recent?limit=N
func (h *ListingHandler) RecentListings(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	props, err := h.service.Recent(r.Context(), limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if props == nil {
		props = []*model.Property{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(recentListingsResponse{Properties: props})
}

// GetPropertyBySlug はスラッグによる物件詳細取得を処理する。
// GET /api/properties/{slug}
func (h *ListingHandler) GetPropertyBySlug(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	p, err := h.service.GetBySlug(r.Context(), slug)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if p == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewPropertyNotFoundError(slug))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(p)
}

// --- ヘルパー関数 ---

// parsePageParam はpageクエリパラメータを解析する。
// 未指定・非数値・1未満はすべて1に丸める。
func parsePageParam(raw string) int {
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// toPageNumbers はページ番号リストをJSON表現に変換する。
// 省略記号は文字列"..."として出力する。
func toPageNumbers(items []pagination.PageItem) []any {
	out := make([]any, len(items))
	for i, item := range items {
		if item.Ellipsis {
			out[i] = "..."
		} else {
			out[i] = item.Page
		}
	}
	return out
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeMissingField, model.ErrCodeInvalidRequest, model.ErrCodeInvalidPrice:
		return http.StatusBadRequest
	case model.ErrCodeInvalidURL, model.ErrCodeNoFile:
		return http.StatusBadRequest
	case model.ErrCodePropertyNotFound:
		return http.StatusNotFound
	case model.ErrCodeSSRFBlocked:
		return http.StatusForbidden
	case model.ErrCodeFetchFailed:
		return http.StatusBadGateway
	case model.ErrCodeUploadFailed, model.ErrCodeStoreError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
