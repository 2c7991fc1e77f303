package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "SKU_A", NormalizeCode(" sku_a "))
	assert.Equal(t, "4901234567890", NormalizeCode("4901234567890"))
	assert.Equal(t, "", NormalizeCode("   "))
}

func TestValidateScanLines_Valid(t *testing.T) {
	errs := ValidateScanLines([]ScanLine{
		{Code: "SKU_A", Quantity: 1},
		{Code: "4901234567890", Quantity: 0},       //0個は在庫なしの報告として正当
		{Code: "COTE D'OR 86", Quantity: 2.5},      //記号あり・端数あり
		{Code: "ref_90.5", Quantity: 3, Manual: true},
	})
	assert.Empty(t, errs)
}

func TestValidateScanLines_BadCodes(t *testing.T) {
	errs := ValidateScanLines([]ScanLine{
		{Code: "abcd", Quantity: 1},                      //短すぎ
		{Code: "123456789012345678901", Quantity: 1},     //長すぎ
		{Code: "SKU-A", Quantity: 1},                     //ハイフンは不可
		{Code: "", Quantity: 1},                          //空
	})

	assert.Equal(t, 4, len(errs))
	for i, e := range errs {
		assert.Equal(t, i, e.Index)
		assert.Equal(t, "code", e.Field)
	}
}

func TestValidateScanLines_NegativeQuantity(t *testing.T) {
	errs := ValidateScanLines([]ScanLine{
		{Code: "SKU_A", Quantity: -1},
	})

	if assert.Equal(t, 1, len(errs)) {
		assert.Equal(t, "quantity", errs[0].Field)
		assert.Equal(t, 0, errs[0].Index)
	}
}

func TestValidateScanLines_ReportsEveryBadLine(t *testing.T) {
	errs := ValidateScanLines([]ScanLine{
		{Code: "SKU_A", Quantity: 1},
		{Code: "bad", Quantity: -2}, //コードと数量の両方が不正
		{Code: "SKU_B", Quantity: 1},
	})

	assert.Equal(t, 2, len(errs))
	for _, e := range errs {
		assert.Equal(t, 1, e.Index)
	}
}
