package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はプレイヤーが入力した表示名などの自由記述を
// プレーンテキストに正規化する。
type TextSanitizer interface {
	// SanitizeText はHTMLタグを全て除去し、エンティティを元の文字に戻して前後の空白を除く。
	// 同一入力に対して常に同一出力を返す。
	SanitizeText(s string) string
}

type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
// bluemondayのStrictPolicyを使い、タグを一切許可しない。
func NewTextSanitizer() TextSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// maxSanitizePasses はエンティティの多重エンコードを剥がす最大回数。
const maxSanitizePasses = 4

// SanitizeText はタグを除去したプレーンテキストを返す。
// StrictPolicyは&や<をエスケープして返すため保存用にアンエスケープするが、
// アンエスケープで新たなタグが現れないよう、結果が変化しなくなるまで除去を繰り返す。
// 保存値はJSONで返すのでHTMLエスケープはクライアントの責務とする。
func (s *textSanitizer) SanitizeText(in string) string {
	if in == "" {
		return ""
	}

	text := html.UnescapeString(in)
	for i := 0; i < maxSanitizePasses; i++ {
		next := html.UnescapeString(s.policy.Sanitize(text))
		if next == text {
			return strings.TrimSpace(text)
		}
		text = next
	}
	// 収束しない入力はエスケープしたまま返す
	return strings.TrimSpace(s.policy.Sanitize(text))
}
