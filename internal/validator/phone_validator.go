package validator

import (
	"regexp"
	"strings"
)

// 数字以外を落とした後の形式チェック用
var digitsRe = regexp.MustCompile(`^[0-9]{7,15}$`)

// NormalizePhone は「whatsapp:+254712345678」「0712 345 678」等の表記ゆれを
// 裸の数字列に揃える。国コードの解決はしない（候補生成はNumberVariants側）。
func NormalizePhone(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "whatsapp:")

	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsPhoneLike は正規化後の番号が電話番号らしいかをチェック。
func IsPhoneLike(s string) bool {
	return digitsRe.MatchString(NormalizePhone(s))
}

// NumberVariants は同じ番号のありうる保存形式を優先順に返す。
// 「+254712…」と「0712…」は同じ加盟店に解決されないといけない。
func NumberVariants(s string) []string {
	n := NormalizePhone(s)
	if n == "" {
		return nil
	}

	variants := []string{n}

	// 「0712…」→「254712…」
	if strings.HasPrefix(n, "0") {
		variants = append(variants, "254"+n[1:])
	}

	// 「254712…」→「0712…」
	if strings.HasPrefix(n, "254") && len(n) > 3 {
		variants = append(variants, "0"+n[3:])
	}

	return variants
}
