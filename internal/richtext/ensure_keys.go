// Package richtext はリッチテキストブロックの正規化機能を提供する。
//
// 物件の説明文は型タグ付きブロックの列として保存される。編集エディタが
// ラウンドトリップできるよう、全ブロックと全子要素はドキュメント内で
// 一意な非空キーと必須の構造フィールドを持つ必要がある。EnsureKeysは
// その不変条件を保証する純粋関数で、キー済み入力に対しては冪等に動作する。
package richtext

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/hitoshi/propman/internal/model"
)

// NewKey は衝突耐性のあるランダムキーを生成する。
// カウンタではなくUUIDv4を使用するため、独立した2回の呼び出しが
// 通常運用下で衝突することはない。
func NewKey() string {
	return uuid.NewString()
}

// EnsureKeys はブロック列を正規化して返す。入力は変更しない。
//
//   - 入力が空またはnilの場合、空スパン1つを子に持つデフォルトブロックを
//     1つだけ生成して返す（キーはすべて新規生成）。
//   - 各ブロック: キーが無ければ新規生成、_typeは"block"に強制、
//     styleは"normal"、markDefsは空列をデフォルトとする。
//   - スパン子要素: キーが無ければ新規生成、textは空文字列、
//     marksは空集合をデフォルトとする。
//   - スパン以外のインラインオブジェクト: キーが無ければ新規生成し、
//     その他のフィールドは変更せずそのまま保持する。
//
// 既存のキーを書き換えることはないため、自身の出力に再適用しても
// 結果は変化しない。
func EnsureKeys(blocks []model.Block) []model.Block {
	if len(blocks) == 0 {
		return []model.Block{defaultBlock()}
	}

	out := make([]model.Block, len(blocks))
	for i, block := range blocks {
		b := block
		if b.Key == "" {
			b.Key = NewKey()
		}
		b.Type = model.BlockType
		if b.Style == "" {
			b.Style = model.DefaultStyle
		}
		if b.MarkDefs == nil {
			b.MarkDefs = []json.RawMessage{}
		}

		children := make([]model.Child, len(block.Children))
		for j, child := range block.Children {
			c := child
			if c.Key == "" {
				c.Key = NewKey()
			}
			if c.IsSpan() && c.Marks == nil {
				c.Marks = []string{}
			}
			// スパン以外の子要素はキー付与のみ。Extraは共有されるが
			// EnsureKeysはExtraを書き換えないため安全。
			children[j] = c
		}
		b.Children = children

		out[i] = b
	}
	return out
}

// defaultBlock は空ドキュメント用のデフォルトブロックを生成する。
func defaultBlock() model.Block {
	return model.Block{
		Key:      NewKey(),
		Type:     model.BlockType,
		Style:    model.DefaultStyle,
		MarkDefs: []json.RawMessage{},
		Children: []model.Child{
			{
				Key:   NewKey(),
				Type:  model.SpanType,
				Text:  "",
				Marks: []string{},
			},
		},
	}
}
