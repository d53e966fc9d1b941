package model

import (
	"encoding/json"
	"fmt"
	"sort"
)

// リッチテキストの型タグ。
const (
	// BlockType はブロック要素の型タグ。
	BlockType = "block"
	// SpanType はテキストスパンの型タグ。
	SpanType = "span"
	// DefaultStyle はブロックのデフォルトスタイル。
	DefaultStyle = "normal"
)

// Block はリッチテキスト本文を構成する段落・見出し単位を表す。
// 編集ラウンドトリップのため、全ブロックと全子要素は
// ドキュメント内で一意な非空キーを持つ（richtext.EnsureKeysが保証する）。
type Block struct {
	Key      string            `json:"_key,omitempty"`
	Type     string            `json:"_type"`
	Style    string            `json:"style,omitempty"`
	MarkDefs []json.RawMessage `json:"markDefs"`
	Children []Child           `json:"children"`
}

// Child はブロックのインライン子要素を表すタグ付きユニオン。
// _typeフィールドで判別され、"span"はテキストスパン、それ以外は
// インラインオブジェクトとして扱う。インラインオブジェクトの
// span以外のフィールドはExtraにそのまま保持され、
// シリアライズ時に変更なしで復元される。
type Child struct {
	Key  string
	Type string

	// スパン専用フィールド。Type != SpanType の場合は使用しない。
	Text  string
	Marks []string

	// インラインオブジェクトの未知フィールド。キー/型以外を保持する。
	Extra map[string]json.RawMessage
}

// IsSpan はこの子要素がテキストスパンかどうかを返す。
func (c Child) IsSpan() bool {
	return c.Type == SpanType
}

// UnmarshalJSON は_typeタグで判別してChildを復元する。
// スパンはtext/marksを型付きフィールドに取り込み、
// それ以外の子要素は全フィールドをExtraに保持する。
func (c *Child) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("リッチテキスト子要素の解析に失敗しました: %w", err)
	}

	if v, ok := raw["_key"]; ok {
		if err := json.Unmarshal(v, &c.Key); err != nil {
			return fmt.Errorf("_keyの解析に失敗しました: %w", err)
		}
		delete(raw, "_key")
	}
	if v, ok := raw["_type"]; ok {
		if err := json.Unmarshal(v, &c.Type); err != nil {
			return fmt.Errorf("_typeの解析に失敗しました: %w", err)
		}
		delete(raw, "_type")
	}

	if c.Type == SpanType {
		if v, ok := raw["text"]; ok {
			if err := json.Unmarshal(v, &c.Text); err != nil {
				return fmt.Errorf("textの解析に失敗しました: %w", err)
			}
			delete(raw, "text")
		}
		if v, ok := raw["marks"]; ok {
			if err := json.Unmarshal(v, &c.Marks); err != nil {
				return fmt.Errorf("marksの解析に失敗しました: %w", err)
			}
			delete(raw, "marks")
		}
		// スパンの場合、残りのフィールドは破棄せず保持する
	}

	if len(raw) > 0 {
		c.Extra = raw
	}
	return nil
}

// MarshalJSON はChildをJSONオブジェクトに直列化する。
// キーの出力順は決定的（_key, _type, 固有フィールド, Extraのキー昇順）。
func (c Child) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(c.Extra)+4)
	for k, v := range c.Extra {
		out[k] = v
	}
	if c.Key != "" {
		out["_key"] = mustRaw(c.Key)
	}
	out["_type"] = mustRaw(c.Type)
	if c.IsSpan() {
		out["text"] = mustRaw(c.Text)
		marks := c.Marks
		if marks == nil {
			marks = []string{}
		}
		out["marks"] = mustRaw(marks)
	}

	keys := make([]string, 0, len(out))
	for k := range out {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf := []byte{'{'}
	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf = append(buf, kb...)
		buf = append(buf, ':')
		buf = append(buf, out[k]...)
	}
	buf = append(buf, '}')
	return buf, nil
}

// mustRaw は値をjson.RawMessageに変換する。
// 文字列・スライスのみに使用するため失敗しない。
func mustRaw(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("richtext: marshal failed: %v", err))
	}
	return b
}
