// Package security はアプリケーションのセキュリティ機能を提供する。
//
// MarkupStripper は商品説明などのリッチテキストから全てのマークアップを除去し、
// フィードに掲載できるプレーンテキストへ変換する。
// bluemondayのStrictPolicy（全タグ拒否）を使用する。
package security

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// MarkupStripperService はリッチテキストからマークアップを除去する機能のインターフェース。
type MarkupStripperService interface {
	// StripMarkup は全てのHTMLタグを除去し、文字参照をデコードしたプレーンテキストを返す。
	// 結果はXMLエスケープされていない。エスケープはシリアライズ時に1回だけ行う。
	StripMarkup(rich string) string
}

// blockTagPattern はテキストの区切りとなるブロック要素のタグにマッチする。
// タグ除去で単語が連結されないよう、直前に空白を挿入するために使う。
var blockTagPattern = regexp.MustCompile(`(?i)<(/?)(p|div|br|li|ul|ol|h[1-6]|tr|td|th|table|blockquote|section|article|hr)\b`)

// markupStripper はMarkupStripperServiceの実装。
// bluemondayのポリシーはスレッドセーフなので共有して使う。
type markupStripper struct {
	policy *bluemonday.Policy
}

// NewMarkupStripper はMarkupStripperServiceの新しいインスタンスを生成する。
// script, styleなどの要素は内容ごと除去される（bluemondayのデフォルト動作）。
func NewMarkupStripper() *markupStripper {
	return &markupStripper{
		policy: bluemonday.StrictPolicy(),
	}
}

// StripMarkup は全てのHTMLタグを除去したプレーンテキストを返す。
// 手順: ブロック境界に空白挿入 → タグ除去 → 文字参照のデコード → 空白の正規化。
func (s *markupStripper) StripMarkup(rich string) string {
	if strings.TrimSpace(rich) == "" {
		return ""
	}

	spaced := blockTagPattern.ReplaceAllString(rich, " <$1$2")
	stripped := s.policy.Sanitize(spaced)

	// bluemondayは出力テキストをHTMLエスケープするため、ここで一度デコードする。
	// "&amp;lt;" のような二重エスケープは html.UnescapeString 1回で "&lt;" に戻る。
	plain := html.UnescapeString(stripped)

	return strings.Join(strings.Fields(plain), " ")
}
