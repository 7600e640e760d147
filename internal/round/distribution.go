package round

import "github.com/shopspring/decimal"

// AmountPlaces é a precisão usada para multiplicadores, pagamentos e valores líquidos
const AmountPlaces = 8

// Distribution é o resultado do cálculo pari-mutuel de uma rodada
type Distribution struct {
	Liquidity       decimal.Decimal // L = pool verde + pool vermelho
	Fee             decimal.Decimal // L * feeRate
	Pool            decimal.Decimal // D = L + bonus - fee
	MultiplierGreen decimal.NullDecimal
	MultiplierRed   decimal.NullDecimal
}

// Distribute calcula o pool de distribuição e o multiplicador de cada lado.
// Multiplicador de um lado com pool zero fica indefinido (Valid=false).
// D nunca fica negativo, mesmo com taxa fora de [0, 1).
func Distribute(poolGreen, poolRed, bonus, feeRate decimal.Decimal) Distribution {
	l := poolGreen.Add(poolRed)
	fee := l.Mul(feeRate)
	pool := l.Add(bonus).Sub(fee)
	if pool.IsNegative() {
		pool = decimal.Zero
	}
	d := Distribution{
		Liquidity: l,
		Fee:       fee,
		Pool:      pool,
	}
	d.MultiplierGreen = d.multiplier(poolGreen)
	d.MultiplierRed = d.multiplier(poolRed)
	return d
}

func (d Distribution) multiplier(sidePool decimal.Decimal) decimal.NullDecimal {
	if !sidePool.IsPositive() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d.Pool.DivRound(sidePool, AmountPlaces))
}

// Payout retorna net * D / poolDoLado, equivalente a net * multiplicador sem perder precisão
func (d Distribution) Payout(net, sidePool decimal.Decimal) decimal.Decimal {
	if !sidePool.IsPositive() {
		return decimal.Zero
	}
	return net.Mul(d.Pool).DivRound(sidePool, AmountPlaces)
}

// LiveMultipliers é usado pela API de leitura para exibir os multiplicadores de uma rodada aberta
func LiveMultipliers(r Round) (green, red decimal.NullDecimal) {
	d := Distribute(r.PoolGreen, r.PoolRed, r.BonusBoost, r.FeeRate)
	return d.MultiplierGreen, d.MultiplierRed
}
