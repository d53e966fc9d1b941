package security

import "testing"

// TestSanitize_StripsTags はHTMLタグがすべて除去されることを検証する。
func TestSanitize_StripsTags(t *testing.T) {
	s := NewContentSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"プレーンテキストはそのまま", "Modern Villa", "Modern Villa"},
		{"scriptタグ除去", `<script>alert("xss")</script>Beach House`, "Beach House"},
		{"imgタグ除去", `House <img src="x" onerror="alert(1)">`, "House "},
		{"aタグ除去（テキストは残る）", `<a href="https://evil.example">Tokyo</a>`, "Tokyo"},
		{"強調タグ除去（テキストは残る）", "<strong>Luxury</strong> Apartment", "Luxury Apartment"},
		{"空文字列", "", ""},
		{"日本語テキスト", "渋谷駅から徒歩5分", "渋谷駅から徒歩5分"},
		{"アンパサンドは保持", "Ben & Jerry's House", "Ben & Jerry's House"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestSanitize_Idempotent は同一入力に対して常に同一出力を返すことを検証する。
func TestSanitize_Idempotent(t *testing.T) {
	s := NewContentSanitizer()

	input := `<b>Ocean</b> View & "Garden"`
	first := s.Sanitize(input)
	second := s.Sanitize(first)
	if first != second {
		t.Errorf("Sanitize is not idempotent: first=%q, second=%q", first, second)
	}
}
