// Package security はアプリケーションのセキュリティ機能を提供する。
//
// 外部レシピAPIが返すHTML（summary, instructions）のサニタイズと、
// 献立に保存する画像URLおよび外部API呼び出し先の検証を扱う。
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// HTMLSanitizer はHTML断片をサニタイズするインターフェース。
type HTMLSanitizer interface {
	// Sanitize は許可リスト外のタグと属性を除去したHTMLを返す。
	// 空文字列の入力には空文字列を返す。
	Sanitize(rawHTML string) string
}

// RecipeSanitizer はレシピ本文向けのbluemondayポリシーを保持する。
// ポリシーはスレッドセーフで、複数リクエストから共有できる。
type RecipeSanitizer struct {
	policy *bluemonday.Policy
}

// NewRecipeSanitizer はRecipeSanitizerを生成する。
// ポリシーの内容:
//   - 許可タグ: p, br, ul, ol, li, b, strong, i, em, a
//   - aタグ: https/httpの絶対URLのみ、target="_blank" と rel="noopener noreferrer" を付与
//   - script, iframe, style, img と on*イベント属性は除去
func NewRecipeSanitizer() *RecipeSanitizer {
	p := bluemonday.NewPolicy()

	// レシピ概要は<b>と<a>、手順は<ol><li>で返ってくる
	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"b", "strong", "i", "em",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("https", "http")
	p.AllowRelativeURLs(false)
	p.RequireParseableURLs(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &RecipeSanitizer{policy: p}
}

// Sanitize はHTMLコンテンツをサニタイズして安全なHTMLを返す。
func (s *RecipeSanitizer) Sanitize(rawHTML string) string {
	if rawHTML == "" {
		return ""
	}
	return s.policy.Sanitize(rawHTML)
}

var _ HTMLSanitizer = (*RecipeSanitizer)(nil)
