package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/propman/internal/model"
)

// PostgresPropertyRepo はPostgreSQLを使用した物件リポジトリ。
// 説明文のリッチテキストはjsonbカラムに格納する。
type PostgresPropertyRepo struct {
	db *sql.DB
}

// NewPostgresPropertyRepo はPostgresPropertyRepoを生成する。
func NewPostgresPropertyRepo(db *sql.DB) *PostgresPropertyRepo {
	return &PostgresPropertyRepo{db: db}
}

const propertyColumns = `id, title, slug, location, price, description, image_id,
	        is_published, created_at, updated_at`

// Create は物件を作成する。
func (r *PostgresPropertyRepo) Create(ctx context.Context, p *model.Property) error {
	description, err := marshalDescription(p.Description)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO properties (id, title, slug, location, price, description, image_id,
		                         is_published, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.Title, p.Slug.Current, p.Location, p.Price, description,
		nullString(p.ImageID), p.IsPublished, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("物件の作成に失敗しました: %w", err)
	}
	return nil
}

// Update はtitle・location・price・description・imageを全置換する。
// slug・is_published・created_atは変更しない。
// 対象が存在しない場合はfalseを返す。
func (r *PostgresPropertyRepo) Update(ctx context.Context, p *model.Property) (bool, error) {
	description, err := marshalDescription(p.Description)
	if err != nil {
		return false, err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE properties SET
		    title = $2, location = $3, price = $4, description = $5,
		    image_id = $6, updated_at = $7
		 WHERE id = $1`,
		p.ID, p.Title, p.Location, p.Price, description,
		nullString(p.ImageID), p.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("物件の更新に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("物件の更新結果の確認に失敗しました: %w", err)
	}
	return affected > 0, nil
}

// Delete は指定IDの物件を削除し、削除した行を返す。
// 対象が存在しない場合はnilを返す。
func (r *PostgresPropertyRepo) Delete(ctx context.Context, id string) (*model.Property, error) {
	row := r.db.QueryRowContext(ctx,
		`DELETE FROM properties WHERE id = $1
		 RETURNING `+propertyColumns,
		id,
	)

	p, err := scanProperty(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("物件の削除に失敗しました: %w", err)
	}
	return p, nil
}

// FindByID は指定IDの物件を取得する。見つからない場合はnilを返す。
func (r *PostgresPropertyRepo) FindByID(ctx context.Context, id string) (*model.Property, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+propertyColumns+`
		 FROM properties WHERE id = $1`,
		id,
	)

	p, err := scanProperty(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("物件の取得に失敗しました: %w", err)
	}
	return p, nil
}

// FindBySlug は指定スラッグの公開済み物件を取得する。
// スラッグは一意制約を持たないため、重複時は作成日時が最新の行を返す。
func (r *PostgresPropertyRepo) FindBySlug(ctx context.Context, slug string) (*model.Property, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+propertyColumns+`
		 FROM properties
		 WHERE slug = $1 AND is_published = true
		 ORDER BY created_at DESC
		 LIMIT 1`,
		slug,
	)

	p, err := scanProperty(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("スラッグによる物件の検索に失敗しました: %w", err)
	}
	return p, nil
}

// ListPublished は公開済み物件を作成日時降順でoffsetからlimit件返す。
func (r *PostgresPropertyRepo) ListPublished(ctx context.Context, offset, limit int) ([]*model.Property, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+propertyColumns+`
		 FROM properties
		 WHERE is_published = true
		 ORDER BY created_at DESC
		 OFFSET $1 LIMIT $2`,
		offset, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("物件一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectProperties(rows)
}

// CountPublished は公開済み物件の総数を返す。
func (r *PostgresPropertyRepo) CountPublished(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM properties WHERE is_published = true`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("物件総数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// ListRecent は公開済み物件を作成日時降順で先頭からlimit件返す。
func (r *PostgresPropertyRepo) ListRecent(ctx context.Context, limit int) ([]*model.Property, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+propertyColumns+`
		 FROM properties
		 WHERE is_published = true
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("新着物件の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectProperties(rows)
}

// ListReferencedImageIDs は物件から参照されている画像アセットIDの一覧を返す。
func (r *PostgresPropertyRepo) ListReferencedImageIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT image_id FROM properties WHERE image_id IS NOT NULL`,
	)
	if err != nil {
		return nil, fmt.Errorf("参照中画像IDの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("参照中画像IDの行読み取りに失敗しました: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("参照中画像IDの走査に失敗しました: %w", err)
	}

	return ids, nil
}

// rowScanner はsql.Rowとsql.Rowsの共通Scanインターフェース。
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanProperty は1行を物件に読み取る。
func scanProperty(row rowScanner) (*model.Property, error) {
	p := &model.Property{}
	var slug string
	var description []byte
	var imageID sql.NullString

	if err := row.Scan(
		&p.ID, &p.Title, &slug, &p.Location, &p.Price,
		&description, &imageID,
		&p.IsPublished, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	p.Slug = model.Slug{Current: slug}
	p.ImageID = nullStringValue(imageID)
	if err := json.Unmarshal(description, &p.Description); err != nil {
		return nil, fmt.Errorf("説明文の読み取りに失敗しました: %w", err)
	}

	return p, nil
}

// collectProperties はクエリ結果の全行を物件スライスに読み取る。
func collectProperties(rows *sql.Rows) ([]*model.Property, error) {
	var props []*model.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("物件行の読み取りに失敗しました: %w", err)
		}
		props = append(props, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("物件一覧の走査に失敗しました: %w", err)
	}
	return props, nil
}

// marshalDescription は説明文ブロックをjsonbカラム用に直列化する。
// nilは空配列として格納する。
func marshalDescription(blocks []model.Block) ([]byte, error) {
	if blocks == nil {
		blocks = []model.Block{}
	}
	data, err := json.Marshal(blocks)
	if err != nil {
		return nil, fmt.Errorf("説明文の直列化に失敗しました: %w", err)
	}
	return data, nil
}

// nullString は空文字列をNULLに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はNULL許容文字列から値を取り出す。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ PropertyRepository = (*PostgresPropertyRepo)(nil)
