// Package property は物件リスティングのドメインサービスを提供する。
package property

import (
	"strings"
	"unicode"
)

// GenerateSlug はタイトルからURL安全なスラッグを導出する。
//
// 小文字化した上で、単語構成文字（ASCII英数字とアンダースコア）・
// 空白・ハイフン以外の文字を除去し、先頭末尾の空白を落としてから
// 空白の連続を1つのハイフンに置き換える。決定的かつ全域的
// （失敗しない）だが、リスティング間の一意性は保証しない。
// 記号のみのタイトルは空文字列になることがあり、呼び出し側は
// それを許容する。
func GenerateSlug(title string) string {
	lower := strings.ToLower(title)

	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}

	// Fieldsが先頭末尾の空白除去と連続空白の分割を兼ねる
	return strings.Join(strings.Fields(b.String()), "-")
}
