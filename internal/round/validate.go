package round

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// ValidateFeeRate aceita taxas em [0, 1). Taxa 1 zera o pool de distribuição.
func ValidateFeeRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThanOrEqual(one) {
		return fmt.Errorf("%w: fee rate %s outside [0, 1)", ErrInvalidConfig, rate)
	}
	return nil
}

// ValidateFraction aceita frações em [0, 1]
func ValidateFraction(name string, v decimal.Decimal) error {
	if v.IsNegative() || v.GreaterThan(one) {
		return fmt.Errorf("%w: %s %s outside [0, 1]", ErrInvalidConfig, name, v)
	}
	return nil
}

// ValidateWindow exige janela de minutos inteiros: o oráculo só rotula
// timeframes em minutos, horas ou dias.
func ValidateWindow(window time.Duration) error {
	if window < time.Minute || window%time.Minute != 0 {
		return fmt.Errorf("%w: round window %s must be a whole number of minutes", ErrInvalidConfig, window)
	}
	return nil
}
