package security

import (
	"testing"
)

// TestStripMarkup はタグ除去と文字参照デコードの組み合わせを検証する。
func TestStripMarkup(t *testing.T) {
	stripper := NewMarkupStripper()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "空文字列は空文字列を返す",
			input: "",
			want:  "",
		},
		{
			name:  "空白のみは空文字列を返す",
			input: "   \n\t ",
			want:  "",
		},
		{
			name:  "プレーンテキストはそのまま",
			input: "Soft cotton shirt",
			want:  "Soft cotton shirt",
		},
		{
			name:  "インライン要素は除去され単語は連結されない",
			input: "<p>Hello <strong>World</strong></p>",
			want:  "Hello World",
		},
		{
			name:  "ブロック要素の境界に空白が入る",
			input: "<p>First</p><p>Second</p><ul><li>A</li><li>B</li></ul>",
			want:  "First Second A B",
		},
		{
			name:  "brで区切られた行が連結されない",
			input: "line1<br>line2<br/>line3",
			want:  "line1 line2 line3",
		},
		{
			name:  "scriptとstyleは内容ごと除去される",
			input: "<script>alert('x')</script><style>p{color:red}</style>Text",
			want:  "Text",
		},
		{
			name:  "文字参照はデコードされる",
			input: "Tom &amp; Jerry &lt;3",
			want:  "Tom & Jerry <3",
		},
		{
			name:  "エスケープされた文字参照は1段階だけデコードされる",
			input: "literal &amp;lt; entity",
			want:  "literal &lt; entity",
		},
		{
			name:  "属性値は出力に残らない",
			input: `<a href="https://example.com" onclick="evil()">link</a>`,
			want:  "link",
		},
		{
			name:  "連続する空白は1つにまとめられる",
			input: "  many \n\n  spaces\there ",
			want:  "many spaces here",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := stripper.StripMarkup(tt.input)
			if got != tt.want {
				t.Errorf("StripMarkup(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestStripMarkup_Idempotent は同一入力に対して常に同一出力を返すことを検証する。
func TestStripMarkup_Idempotent(t *testing.T) {
	stripper := NewMarkupStripper()
	input := "<div><h1>Title</h1><p>Body &amp; more</p></div>"

	first := stripper.StripMarkup(input)
	second := stripper.StripMarkup(input)
	if first != second {
		t.Errorf("出力が一致しない: %q != %q", first, second)
	}
}

func TestMarkupStripper_ImplementsInterface(t *testing.T) {
	var _ MarkupStripperService = NewMarkupStripper()
}
