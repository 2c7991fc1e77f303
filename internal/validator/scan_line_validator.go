package validator

import (
	"regexp"
	"strings"
)

// 商品コードの形式。5〜20文字の英数字・スペース・_・#・°・'・.
var productCodeRe = regexp.MustCompile(`^[0-9A-Za-z _#°'.]{5,20}$`)

// 集約前の生スキャン明細
type ScanLine struct {
	Code     string  `json:"code"`
	Quantity float64 `json:"quantity"`
	Manual   bool    `json:"manual"`
}

// 行番号付きの検証エラー。どの行を直せばいいか返すため。
type LineError struct {
	Index   int    `json:"index"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// コードの正規化。前後の空白を落として大文字に揃える。
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// 全行を検証して、問題のある行だけを返す。
// 1行でもエラーがあればリクエスト全体を弾く（usecase側）。
func ValidateScanLines(lines []ScanLine) []LineError {
	var errs []LineError

	for i, ln := range lines {
		code := NormalizeCode(ln.Code)

		if code == "" {
			errs = append(errs, LineError{Index: i, Field: "code", Message: "code required"})
		} else if !productCodeRe.MatchString(code) {
			errs = append(errs, LineError{Index: i, Field: "code", Message: "invalid code format"})
		}

		if ln.Quantity < 0 {
			errs = append(errs, LineError{Index: i, Field: "quantity", Message: "quantity must be >= 0"})
		}
	}

	return errs
}
