package assetstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// objectPrefix はアップロード画像のオブジェクトキー接頭辞。
const objectPrefix = "images/"

// MinIOStore はMinIO（S3互換ストレージ）を使用したアセットストア。
type MinIOStore struct {
	client        *minio.Client
	bucket        string
	publicBaseURL string
}

// MinIOConfig はMinIOStoreの接続設定。
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool

	// PublicBaseURL はアセットの公開URL生成に使用するベースURL。
	// 空の場合はクライアントのエンドポイントURLを使用する。
	PublicBaseURL string
}

// NewMinIOStore はMinIOStoreを生成し、バケットがなければ作成する。
func NewMinIOStore(ctx context.Context, cfg MinIOConfig) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("MinIOクライアントの生成に失敗しました: %w", err)
	}

	if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
		// 既存バケットの場合はMakeBucketが失敗するため、存在確認にフォールバックする
		exists, existsErr := client.BucketExists(ctx, cfg.Bucket)
		if existsErr != nil || !exists {
			return nil, fmt.Errorf("バケットの作成・確認に失敗しました: %w", err)
		}
	}

	publicBaseURL := strings.TrimSuffix(cfg.PublicBaseURL, "/")
	if publicBaseURL == "" {
		publicBaseURL = client.EndpointURL().String()
	}

	slog.Info("アセットストアを初期化しました",
		slog.String("endpoint", cfg.Endpoint),
		slog.String("bucket", cfg.Bucket),
	)

	return &MinIOStore{
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: publicBaseURL,
	}, nil
}

// Upload は画像を保存し、生成したアセットのメタデータを返す。
func (s *MinIOStore) Upload(ctx context.Context, r io.Reader, size int64, filename, contentType string) (*Asset, error) {
	key := newObjectKey(filename)

	info, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("オブジェクトのアップロードに失敗しました: %w", err)
	}

	asset := &Asset{
		ID:          "image-" + strings.TrimSuffix(path.Base(key), filepath.Ext(key)),
		Key:         key,
		URL:         fmt.Sprintf("%s/%s/%s", s.publicBaseURL, s.bucket, key),
		ContentType: contentType,
		Size:        info.Size,
		UploadedAt:  time.Now().UTC(),
	}

	slog.Info("画像をアップロードしました",
		slog.String("key", key),
		slog.Int64("size", info.Size),
		slog.String("content_type", contentType),
	)

	return asset, nil
}

// Remove は指定キーのオブジェクトを削除する。
func (s *MinIOStore) Remove(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("オブジェクトの削除に失敗しました: %w", err)
	}
	return nil
}

// List はストア内の全オブジェクトを返す。
func (s *MinIOStore) List(ctx context.Context) ([]StoredObject, error) {
	var objects []StoredObject
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    objectPrefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("オブジェクト一覧の取得に失敗しました: %w", obj.Err)
		}
		objects = append(objects, StoredObject{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}
	return objects, nil
}

// newObjectKey は元ファイル名の拡張子を保持した一意のオブジェクトキーを生成する。
func newObjectKey(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return objectPrefix + uuid.NewString() + ext
}

// compile-time interface check
var _ AssetStore = (*MinIOStore)(nil)
