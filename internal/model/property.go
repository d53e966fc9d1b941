// Package model はドメインモデルを定義する。
package model

import "time"

// Slug はタイトルから導出されるURL識別子を表す。
// 作成時に1回だけ生成され、編集時に再導出されることはない。
type Slug struct {
	Current string `json:"current"`
}

// Property は物件リスティングを表す。
// IDは作成時に割り当てられ、以後不変。Slugも作成時にタイトルから
// 導出された後は変更されない。IsPublishedがtrueの物件のみが
// 公開側の一覧・詳細クエリの対象になる。
type Property struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	Slug        Slug      `json:"slug"`
	Location    string    `json:"location"`
	Price       int       `json:"price"` // 最小通貨単位の非負整数（小数なし）
	Description []Block   `json:"description"`
	ImageID     string    `json:"imageAssetId,omitempty"` // アセットストア上のオブジェクトキー
	IsPublished bool      `json:"isPublished"`
	CreatedAt   time.Time `json:"_createdAt"`
	UpdatedAt   time.Time `json:"_updatedAt"`
}
