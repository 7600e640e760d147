package round

import "github.com/shopspring/decimal"

// Resolve deriva o veredito de preço a partir do par abertura/fechamento
func Resolve(open, close decimal.Decimal) Winner {
	switch close.Cmp(open) {
	case 1:
		return WinnerGreen
	case -1:
		return WinnerRed
	default:
		return WinnerDraw
	}
}

// IsUnilateral é verdadeiro quando só um dos pools recebeu contribuição.
// Quando verdadeiro, prevalece sobre o veredito de preço.
func IsUnilateral(poolGreen, poolRed decimal.Decimal) bool {
	return (poolGreen.IsZero() && poolRed.IsPositive()) ||
		(poolRed.IsZero() && poolGreen.IsPositive())
}
