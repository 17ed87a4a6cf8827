package model

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// price × (100 − discount) / 100 を整数に丸める。
// 結果は常にprice以下（小数の価格を切り上げた場合はpriceを返す）。
func DiscountedPrice(price decimal.Decimal, discountPercentage int) decimal.Decimal {
	d := ClampDiscount(discountPercentage)
	r := price.Mul(decimal.NewFromInt(int64(100 - d))).Div(hundred).Round(0)
	if r.GreaterThan(price) {
		return price
	}
	return r
}

func ClampDiscount(discountPercentage int) int {
	if discountPercentage < 0 {
		return 0
	}
	if discountPercentage > 100 {
		return 100
	}
	return discountPercentage
}

// ゲートウェイに渡す最小単位（paise）
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}
