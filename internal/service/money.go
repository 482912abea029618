package service

import "github.com/shopspring/decimal"

// ToMinorUnits переводит сумму в центы. Round округляет половину от нуля,
// для положительных цен это round-half-up
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromMinorUnits переводит центы обратно в сумму
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// PlatformFee — комиссия площадки в минорных единицах
func PlatformFee(total int64, percent decimal.Decimal) int64 {
	return decimal.NewFromInt(total).Mul(percent).Div(decimal.NewFromInt(100)).Round(0).IntPart()
}

// SplitAmount делит total на n частей так, что сумма частей равна total.
// Остаток раздаётся по центу первым частям
func SplitAmount(total int64, n int) []int64 {
	if n <= 0 {
		return nil
	}
	parts := make([]int64, n)
	base := total / int64(n)
	rem := total % int64(n)
	for i := range parts {
		parts[i] = base
		if int64(i) < rem {
			parts[i]++
		}
	}
	return parts
}
