// Package assetstore は画像アセットの保管インターフェースを提供する。
package assetstore

import (
	"context"
	"io"
	"time"
)

// Asset はアップロード済み画像アセットのメタデータ。
type Asset struct {
	ID          string    `json:"_id"`
	Key         string    `json:"key"`
	URL         string    `json:"url"`
	ContentType string    `json:"mimeType"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// StoredObject はストア内オブジェクトの一覧エントリ。
// アセットGCの走査で使用する。
type StoredObject struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// AssetStore は画像アセットの保管インターフェース。
// 実装はMinIOStore。テストではフェイク実装を使用する。
type AssetStore interface {
	// Upload は画像を保存し、生成したアセットのメタデータを返す。
	// オブジェクトキーは衝突しないよう一意に生成される。
	Upload(ctx context.Context, r io.Reader, size int64, filename, contentType string) (*Asset, error)

	// Remove は指定キーのオブジェクトを削除する。
	// 存在しないキーの削除はエラーにしない。
	Remove(ctx context.Context, key string) error

	// List はストア内の全オブジェクトを返す。
	List(ctx context.Context) ([]StoredObject, error)
}
