// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, listing, upload, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeMissingField     = "MISSING_FIELD"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeInvalidPrice     = "INVALID_PRICE"
	ErrCodePropertyNotFound = "PROPERTY_NOT_FOUND"
	ErrCodeNoFile           = "NO_FILE"
	ErrCodeUploadFailed     = "UPLOAD_FAILED"
	ErrCodeInvalidURL       = "INVALID_URL"
	ErrCodeSSRFBlocked      = "SSRF_BLOCKED"
	ErrCodeFetchFailed      = "FETCH_FAILED"
	ErrCodeStoreError       = "STORE_ERROR"
)

// NewMissingFieldError は必須フィールド欠落エラーを生成する。
func NewMissingFieldError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeMissingField,
		Message:  fmt.Sprintf("必須フィールドが指定されていません: %s", field),
		Category: "validation",
		Action:   "タイトル・所在地・価格をすべて入力してください。",
	}
}

// NewInvalidRequestError はリクエストボディ不正エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewInvalidPriceError は価格不正エラーを生成する。
func NewInvalidPriceError(price int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPrice,
		Message:  fmt.Sprintf("無効な価格です: %d", price),
		Category: "validation",
		Action:   "価格は1以上の整数（最小通貨単位）で指定してください。",
	}
}

// NewPropertyNotFoundError は物件未検出エラーを生成する。
func NewPropertyNotFoundError(idOrSlug string) *APIError {
	return &APIError{
		Code:     ErrCodePropertyNotFound,
		Message:  fmt.Sprintf("指定された物件が見つかりません: %s", idOrSlug),
		Category: "listing",
		Action:   "物件IDまたはスラッグを確認してください。",
	}
}

// NewNoFileError はアップロードファイル欠落エラーを生成する。
func NewNoFileError() *APIError {
	return &APIError{
		Code:     ErrCodeNoFile,
		Message:  "ファイルがアップロードされていません。",
		Category: "validation",
		Action:   "imageフィールドに画像ファイルを添付してください。",
	}
}

// NewUploadFailedError は画像アップロード失敗エラーを生成する。
func NewUploadFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeUploadFailed,
		Message:  "画像のアップロードに失敗しました。",
		Category: "upload",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewFetchFailedError は画像取得失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("画像URLの取得に失敗しました: %s", reason),
		Category: "upload",
		Action:   "URLが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}

// NewStoreError はデータストア操作失敗エラーを生成する。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func NewStoreError() *APIError {
	return &APIError{
		Code:     ErrCodeStoreError,
		Message:  "データストアの操作に失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
