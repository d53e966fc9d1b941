package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/hitoshi/propman/internal/assetstore"
	"github.com/hitoshi/propman/internal/model"
	"github.com/hitoshi/propman/internal/security"
)

// UploadMetricsRecorder は画像アップロードのメトリクス記録インターフェース。
type UploadMetricsRecorder interface {
	RecordUploadLatency(duration time.Duration)
	RecordUploadBytes(size int64)
}

// UploadHandler は画像アップロードのHTTPハンドラー。
// マルチパートフォームの直接アップロードと、URL指定の取り込みに対応する。
type UploadHandler struct {
	store         assetstore.AssetStore
	guard         security.SSRFGuardService
	metrics       UploadMetricsRecorder
	maxUploadSize int64
	fetchTimeout  time.Duration
}

// NewUploadHandler はUploadHandlerを生成する。metricsはnilでもよい。
func NewUploadHandler(store assetstore.AssetStore, guard security.SSRFGuardService, metrics UploadMetricsRecorder, maxUploadSize int64, fetchTimeout time.Duration) *UploadHandler {
	return &UploadHandler{
		store:         store,
		guard:         guard,
		metrics:       metrics,
		maxUploadSize: maxUploadSize,
		fetchTimeout:  fetchTimeout,
	}
}

// uploadFromURLRequest はURL指定アップロードのリクエストボディ。
type uploadFromURLRequest struct {
	URL string `json:"url"`
}

// uploadResponse は画像アップロードのAPIレスポンス。
type uploadResponse struct {
	Asset *assetstore.Asset `json:"asset"`
}

// UploadImage はマルチパートフォームの画像アップロードを処理する。
// POST /api/upload（フィールド名: image）
func (h *UploadHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     model.ErrCodeInvalidRequest,
			Message:  "マルチパートフォームの解析に失敗しました。",
			Category: "validation",
			Action:   "multipart/form-data形式でimageフィールドに画像を添付してください。サイズ上限にも注意してください。",
		})
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewNoFileError())
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		writeAPIErrorResponse(w, http.StatusBadRequest, newInvalidFileTypeError(contentType))
		return
	}

	start := time.Now()
	asset, err := h.store.Upload(r.Context(), file, header.Size, header.Filename, contentType)
	if err != nil {
		handleServiceError(w, model.NewUploadFailedError())
		return
	}

	if h.metrics != nil {
		h.metrics.RecordUploadLatency(time.Since(start))
		h.metrics.RecordUploadBytes(asset.Size)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(uploadResponse{Asset: asset})
}

// UploadImageFromURL はURL指定の画像取り込みを処理する。
// SSRF防止のため、URLの静的検証とsafeurlクライアントによる取得を行う。
// POST /api/upload/url
func (h *UploadHandler) UploadImageFromURL(w http.ResponseWriter, r *http.Request) {
	var req uploadFromURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError("URLが空です"))
		return
	}

	if err := h.guard.ValidateURL(req.URL); err != nil {
		// ブロック対象（プライベートIP・localhost等）は403、書式不正は400
		if strings.Contains(err.Error(), "blocked") {
			writeAPIErrorResponse(w, http.StatusForbidden, model.NewSSRFBlockedError())
		} else {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError(err.Error()))
		}
		return
	}

	client := h.guard.NewSafeClient(h.fetchTimeout, h.maxUploadSize)

	fetchReq, err := http.NewRequestWithContext(r.Context(), http.MethodGet, req.URL, nil)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError(err.Error()))
		return
	}

	resp, err := client.Do(fetchReq)
	if err != nil {
		// DNS再バインディング等でDialer層がブロックした場合もここに到達する
		if strings.Contains(err.Error(), "blocked") || strings.Contains(err.Error(), "not allowed") {
			writeAPIErrorResponse(w, http.StatusForbidden, model.NewSSRFBlockedError())
			return
		}
		writeAPIErrorResponse(w, http.StatusBadGateway, model.NewFetchFailedError("リクエストの送信に失敗しました"))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		writeAPIErrorResponse(w, http.StatusBadGateway,
			model.NewFetchFailedError(fmt.Sprintf("ステータスコード %d が返されました", resp.StatusCode)))
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		writeAPIErrorResponse(w, http.StatusBadRequest, newInvalidFileTypeError(contentType))
		return
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, h.maxUploadSize+1))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadGateway, model.NewFetchFailedError("レスポンスボディの読み込みに失敗しました"))
		return
	}
	if int64(len(data)) > h.maxUploadSize {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "FILE_TOO_LARGE",
			Message:  fmt.Sprintf("画像サイズが上限（%dバイト）を超えています。", h.maxUploadSize),
			Category: "validation",
			Action:   "より小さい画像のURLを指定してください。",
		})
		return
	}

	start := time.Now()
	asset, err := h.store.Upload(r.Context(), bytes.NewReader(data), int64(len(data)), filenameFromURL(req.URL), contentType)
	if err != nil {
		handleServiceError(w, model.NewUploadFailedError())
		return
	}

	if h.metrics != nil {
		h.metrics.RecordUploadLatency(time.Since(start))
		h.metrics.RecordUploadBytes(asset.Size)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(uploadResponse{Asset: asset})
}

// filenameFromURL はURLのパス末尾からファイル名を取り出す。
// パスが空の場合は"image"を返す。
func filenameFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "image"
	}
	name := path.Base(parsed.Path)
	if name == "." || name == "/" || name == "" {
		return "image"
	}
	return name
}

// newInvalidFileTypeError は画像以外のコンテンツタイプに対するエラーを生成する。
func newInvalidFileTypeError(contentType string) *model.APIError {
	return &model.APIError{
		Code:     "INVALID_FILE_TYPE",
		Message:  fmt.Sprintf("画像ファイルではありません: %s", contentType),
		Category: "validation",
		Action:   "JPEG・PNG・WebP等の画像ファイルを指定してください。",
	}
}
