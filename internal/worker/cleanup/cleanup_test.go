package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/propman/internal/assetstore"
)

// mockStore はAssetStoreのモック実装。
type mockStore struct {
	objects     []assetstore.StoredObject
	listErr     error
	removeErr   error
	removedKeys []string
}

func (m *mockStore) Upload(ctx context.Context, r io.Reader, size int64, filename, contentType string) (*assetstore.Asset, error) {
	return nil, nil
}

func (m *mockStore) Remove(ctx context.Context, key string) error {
	if m.removeErr != nil {
		return m.removeErr
	}
	m.removedKeys = append(m.removedKeys, key)
	return nil
}

func (m *mockStore) List(ctx context.Context) ([]assetstore.StoredObject, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.objects, nil
}

// mockLister はReferencedImageListerのモック実装。
type mockLister struct {
	keys []string
	err  error
}

func (m *mockLister) ListReferencedImageIDs(ctx context.Context) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.keys, nil
}

// mockRecorder はAssetsCleanedRecorderのモック実装。
type mockRecorder struct {
	counts []int
}

func (m *mockRecorder) RecordAssetsCleaned(count int) {
	m.counts = append(m.counts, count)
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// oldObject は猶予期間を超過したオブジェクトを生成するヘルパー。
func oldObject(key string) assetstore.StoredObject {
	return assetstore.StoredObject{
		Key:          key,
		Size:         1024,
		LastModified: time.Now().Add(-48 * time.Hour),
	}
}

// recentObject はアップロード直後のオブジェクトを生成するヘルパー。
func recentObject(key string) assetstore.StoredObject {
	return assetstore.StoredObject{
		Key:          key,
		Size:         1024,
		LastModified: time.Now().Add(-1 * time.Hour),
	}
}

func TestNewCleanupJob_ReturnsNonNil(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockStore{}, &mockLister{}, newTestLogger(&buf), nil)

	if job == nil {
		t.Fatal("NewCleanupJob は nil を返してはならない")
	}
}

func TestNewCleanupJob_SetsDefaultGracePeriod(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockStore{}, &mockLister{}, newTestLogger(&buf), nil)

	if job.GracePeriod != 24*time.Hour {
		t.Errorf("GracePeriod = %v, want 24h", job.GracePeriod)
	}
}

func TestCleanupJob_Run_RemovesOrphans(t *testing.T) {
	var buf bytes.Buffer
	store := &mockStore{
		objects: []assetstore.StoredObject{
			oldObject("images/referenced.png"),
			oldObject("images/orphan-1.png"),
			oldObject("images/orphan-2.jpg"),
		},
	}
	lister := &mockLister{keys: []string{"images/referenced.png"}}
	job := NewCleanupJob(store, lister, newTestLogger(&buf), nil)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}

	if len(store.removedKeys) != 2 {
		t.Fatalf("removedKeys = %v, want 2 entries", store.removedKeys)
	}
	for _, key := range store.removedKeys {
		if key == "images/referenced.png" {
			t.Error("参照中のオブジェクトが削除された")
		}
	}
}

func TestCleanupJob_Run_SkipsRecentOrphans(t *testing.T) {
	var buf bytes.Buffer
	store := &mockStore{
		objects: []assetstore.StoredObject{
			recentObject("images/just-uploaded.png"),
			oldObject("images/old-orphan.png"),
		},
	}
	job := NewCleanupJob(store, &mockLister{}, newTestLogger(&buf), nil)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}

	// 猶予期間内のオブジェクトは未参照でも削除しない
	if len(store.removedKeys) != 1 || store.removedKeys[0] != "images/old-orphan.png" {
		t.Errorf("removedKeys = %v, want [images/old-orphan.png]", store.removedKeys)
	}
}

func TestCleanupJob_Run_CustomGracePeriod(t *testing.T) {
	var buf bytes.Buffer
	store := &mockStore{
		objects: []assetstore.StoredObject{
			recentObject("images/one-hour-old.png"),
		},
	}
	job := NewCleanupJob(store, &mockLister{}, newTestLogger(&buf), nil)
	job.GracePeriod = 30 * time.Minute // カスタム猶予期間

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}

	// 1時間前のオブジェクトは30分の猶予期間を超過しているため削除される
	if len(store.removedKeys) != 1 {
		t.Errorf("removedKeys = %v, want 1 entry", store.removedKeys)
	}
}

func TestCleanupJob_Run_RecordsMetrics(t *testing.T) {
	var buf bytes.Buffer
	store := &mockStore{
		objects: []assetstore.StoredObject{
			oldObject("images/orphan-1.png"),
			oldObject("images/orphan-2.png"),
			oldObject("images/orphan-3.png"),
		},
	}
	rec := &mockRecorder{}
	job := NewCleanupJob(store, &mockLister{}, newTestLogger(&buf), rec)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}

	if len(rec.counts) != 1 || rec.counts[0] != 3 {
		t.Errorf("recorded counts = %v, want [3]", rec.counts)
	}
}

func TestCleanupJob_Run_NoMetricsWhenNothingRemoved(t *testing.T) {
	var buf bytes.Buffer
	store := &mockStore{
		objects: []assetstore.StoredObject{oldObject("images/referenced.png")},
	}
	lister := &mockLister{keys: []string{"images/referenced.png"}}
	rec := &mockRecorder{}
	job := NewCleanupJob(store, lister, newTestLogger(&buf), rec)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}

	if len(rec.counts) != 0 {
		t.Errorf("recorded counts = %v, want empty", rec.counts)
	}
}

func TestCleanupJob_Run_ReturnsErrorOnListerFailure(t *testing.T) {
	var buf bytes.Buffer
	lister := &mockLister{err: errors.New("connection refused")}
	job := NewCleanupJob(&mockStore{}, lister, newTestLogger(&buf), nil)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("参照キー取得失敗時に Run() は nil でないエラーを返すべき")
	}
	if !strings.Contains(buf.String(), "ERROR") {
		t.Errorf("エラー時にERRORレベルのログが記録されていない。ログ出力: %s", buf.String())
	}
}

func TestCleanupJob_Run_ReturnsErrorOnStoreListFailure(t *testing.T) {
	var buf bytes.Buffer
	store := &mockStore{listErr: errors.New("storage unavailable")}
	job := NewCleanupJob(store, &mockLister{}, newTestLogger(&buf), nil)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("ストア走査失敗時に Run() は nil でないエラーを返すべき")
	}
}

func TestCleanupJob_Run_ContinuesOnRemoveFailure(t *testing.T) {
	var buf bytes.Buffer
	store := &mockStore{
		objects: []assetstore.StoredObject{
			oldObject("images/orphan-1.png"),
			oldObject("images/orphan-2.png"),
		},
		removeErr: errors.New("access denied"),
	}
	rec := &mockRecorder{}
	job := NewCleanupJob(store, &mockLister{}, newTestLogger(&buf), rec)

	// 個々の削除失敗はジョブ全体のエラーにしない
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}

	if len(rec.counts) != 0 {
		t.Errorf("削除に失敗したオブジェクトはメトリクスに計上されるべきでない: %v", rec.counts)
	}
	if !strings.Contains(buf.String(), "ERROR") {
		t.Errorf("削除失敗時にERRORレベルのログが記録されていない。ログ出力: %s", buf.String())
	}
}

func TestCleanupJob_Run_Idempotent_EmptyStore(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockStore{}, &mockLister{}, newTestLogger(&buf), nil)

	// 1回目の実行
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("1回目の Run() がエラーを返した: %v", err)
	}

	// 2回目の実行（冪等性: 削除対象がなくてもエラーにならない）
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("2回目の Run() がエラーを返した: %v", err)
	}
}

func TestCleanupJob_Run_LogsRemovedCount(t *testing.T) {
	var buf bytes.Buffer
	store := &mockStore{
		objects: []assetstore.StoredObject{
			oldObject("images/orphan-1.png"),
			oldObject("images/orphan-2.png"),
		},
	}
	job := NewCleanupJob(store, &mockLister{}, newTestLogger(&buf), nil)

	_ = job.Run(context.Background())

	var entry map[string]interface{}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	found := false
	for _, line := range lines {
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if count, ok := entry["removed_count"]; ok {
			if count == float64(2) {
				found = true
				break
			}
		}
	}
	if !found {
		t.Errorf("ログに removed_count=2 が記録されていない。ログ出力: %s", buf.String())
	}
}

func TestCleanupJob_Run_LogsExecutionTime(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockStore{}, &mockLister{}, newTestLogger(&buf), nil)

	_ = job.Run(context.Background())

	var entry map[string]interface{}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	found := false
	for _, line := range lines {
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if _, ok := entry["duration_ms"]; ok {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("ログに duration_ms が記録されていない。ログ出力: %s", buf.String())
	}
}
