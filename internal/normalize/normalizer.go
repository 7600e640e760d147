package normalize

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/updown-rounds/internal/round"
)

var (
	ErrSwapFailed       = errors.New("swap failed")
	ErrUnsupportedAsset = errors.New("unsupported asset")
)

// Conversion é o resultado de uma troca para a moeda de cotação
type Conversion struct {
	QuoteAmount decimal.Decimal
	Ref         string
}

// Converter troca um ativo qualquer pela moeda de cotação
type Converter interface {
	Convert(ctx context.Context, asset string, amount decimal.Decimal) (Conversion, error)
}

type Config struct {
	QuoteAssets   []string        // ativos aceitos sem troca (ex: USDC, USDT)
	StableFeeRate decimal.Decimal // taxa da plataforma sobre ativos de cotação
	SwapFeeRate   decimal.Decimal // taxa sobre ativos que passam pela troca
}

func DefaultConfig() Config {
	return Config{
		QuoteAssets:   []string{"USDC", "USDT"},
		StableFeeRate: decimal.RequireFromString("0.03"),
		SwapFeeRate:   decimal.RequireFromString("0.06"),
	}
}

// Result carrega o valor líquido que entra no pool e a proveniência do pagamento
type Result struct {
	PaidAsset  string
	PaidAmount decimal.Decimal
	Gross      decimal.Decimal // em moeda de cotação, antes da taxa
	Fee        decimal.Decimal
	Net        decimal.Decimal
	SwapRef    string
}

// Normalizer converte o pagamento do usuário em valor líquido na moeda de cotação
type Normalizer struct {
	log  *zap.Logger
	cfg  Config
	swap Converter // nil = só ativos de cotação
}

func New(log *zap.Logger, cfg Config, swap Converter) *Normalizer {
	return &Normalizer{log: log, cfg: cfg, swap: swap}
}

func (n *Normalizer) isQuote(asset string) bool {
	for _, q := range n.cfg.QuoteAssets {
		if strings.EqualFold(q, asset) {
			return true
		}
	}
	return false
}

// Normalize aplica a taxa por classe de ativo: net = gross - gross*taxa, arredondado a 8 casas
func (n *Normalizer) Normalize(ctx context.Context, asset string, amount decimal.Decimal) (Result, error) {
	asset = strings.ToUpper(strings.TrimSpace(asset))
	if asset == "" || !amount.IsPositive() {
		return Result{}, fmt.Errorf("%w: paid asset and positive amount required", round.ErrInvalidWager)
	}

	res := Result{PaidAsset: asset, PaidAmount: amount}
	rate := n.cfg.StableFeeRate
	if n.isQuote(asset) {
		res.Gross = amount
	} else {
		if n.swap == nil {
			return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedAsset, asset)
		}
		conv, err := n.swap.Convert(ctx, asset, amount)
		if err != nil {
			n.log.Warn("swap failed", zap.String("asset", asset), zap.String("amount", amount.String()), zap.Error(err))
			if !errors.Is(err, ErrSwapFailed) {
				err = fmt.Errorf("%w: %v", ErrSwapFailed, err)
			}
			return Result{}, err
		}
		if !conv.QuoteAmount.IsPositive() {
			return Result{}, fmt.Errorf("%w: swap returned %s", ErrSwapFailed, conv.QuoteAmount)
		}
		res.Gross = conv.QuoteAmount
		res.SwapRef = conv.Ref
		rate = n.cfg.SwapFeeRate
	}

	res.Gross = res.Gross.Round(round.AmountPlaces)
	res.Fee = res.Gross.Mul(rate).Round(round.AmountPlaces)
	res.Net = res.Gross.Sub(res.Fee)
	if !res.Net.IsPositive() {
		return Result{}, fmt.Errorf("%w: net amount after fee is not positive", round.ErrInvalidWager)
	}
	return res, nil
}
