// Package money implements deterministic fixed-point ETB arithmetic: VAT,
// gateway grossing, and gift commission splits (spec.md §4.1).
package money

import (
	"errors"
	"fmt"
	"math"
	"math/big"
)

// ETB is a fixed-point Ethiopian Birr amount in cents (2 fractional digits).
// All arithmetic avoids floating point; rates are applied via big.Int
// basis-point multiplication with HALF_UP rounding, mirroring the
// int64-atomic-units-plus-big.Int-for-overflow-safety approach this
// service's ancestor used for multi-asset money.
type ETB int64

var (
	// ErrInvalidGatewayRate occurs when the gateway rate would divide by <=0.
	ErrInvalidGatewayRate = errors.New("money: gateway rate must be < 1")
	// ErrNegativeAmount occurs when an amount that must be non-negative is negative.
	ErrNegativeAmount = errors.New("money: negative amount not allowed")
)

// FromFloat converts a decimal ETB amount (e.g. config-supplied 100.00) to cents.
func FromFloat(v float64) ETB {
	return ETB(math.Round(v * 100))
}

// Float64 returns the amount as a float, for display/logging only — never
// for further arithmetic.
func (e ETB) Float64() float64 {
	return float64(e) / 100
}

// String renders the amount with 2 fractional digits.
func (e ETB) String() string {
	neg := e < 0
	v := int64(e)
	if neg {
		v = -v
	}
	s := fmt.Sprintf("%d.%02d", v/100, v%100)
	if neg {
		return "-" + s
	}
	return s
}

// rateToBasisPoints converts a decimal rate (0.15) to integer basis points (1500).
func rateToBasisPoints(rate float64) int64 {
	return int64(math.Round(rate * 10000))
}

// mulRateHalfUp multiplies an ETB amount by a decimal rate, rounding HALF_UP
// to the nearest cent using big.Int to avoid overflow on the intermediate product.
func mulRateHalfUp(amount ETB, rate float64) ETB {
	bp := rateToBasisPoints(rate)
	product := new(big.Int).Mul(big.NewInt(int64(amount)), big.NewInt(bp))
	divisor := big.NewInt(10000)

	if product.Sign() >= 0 {
		product.Add(product, big.NewInt(5000))
	} else {
		product.Sub(product, big.NewInt(5000))
	}
	product.Div(product, divisor)
	return ETB(product.Int64())
}

// divRateHalfUp computes amount / (1 - rate), rounding HALF_UP to the nearest cent.
func divRateHalfUp(amount ETB, rate float64) (ETB, error) {
	if rate >= 1 {
		return 0, ErrInvalidGatewayRate
	}
	// amount * 10000 / (10000 - bp), HALF_UP
	bp := rateToBasisPoints(rate)
	denom := big.NewInt(10000 - bp)
	if denom.Sign() <= 0 {
		return 0, ErrInvalidGatewayRate
	}
	numerator := new(big.Int).Mul(big.NewInt(int64(amount)), big.NewInt(10000))

	half := new(big.Int).Div(denom, big.NewInt(2))
	if numerator.Sign() >= 0 {
		numerator.Add(numerator, half)
	} else {
		numerator.Sub(numerator, half)
	}
	numerator.Div(numerator, denom)
	return ETB(numerator.Int64()), nil
}

// GrossTopupPrice computes the customer-facing total for a coin package so
// that, after VAT and the provider's gateway cut, the platform nets exactly
// targetNet. base = targetNet; vat = round2(base*vatRate);
// total = round2((base+vat+gwFixed)/(1-gwRate)).
func GrossTopupPrice(targetNet ETB, vatRate, gwRate float64, gwFixed ETB) (base, vat, total ETB, err error) {
	if targetNet < 0 {
		return 0, 0, 0, ErrNegativeAmount
	}
	base = targetNet
	vat = mulRateHalfUp(base, vatRate)
	total, err = divRateHalfUp(base+vat+gwFixed, gwRate)
	if err != nil {
		return 0, 0, 0, err
	}
	return base, vat, total, nil
}

// GiftSplit is the full commission breakdown of one gift send (spec.md §3).
type GiftSplit struct {
	CommissionGross ETB
	VATOnCommission ETB
	CommissionNet   ETB
	CreatorPayout   ETB
}

// SplitGift computes the platform/creator split of a gift's reference value.
func SplitGift(value ETB, commissionRate, vatRate float64) (GiftSplit, error) {
	if value < 0 {
		return GiftSplit{}, ErrNegativeAmount
	}
	commissionGross := mulRateHalfUp(value, commissionRate)
	vatOnCommission := mulRateHalfUp(commissionGross, vatRate)
	commissionNet := commissionGross - vatOnCommission
	creatorPayout := value - commissionGross
	return GiftSplit{
		CommissionGross: commissionGross,
		VATOnCommission: vatOnCommission,
		CommissionNet:   commissionNet,
		CreatorPayout:   creatorPayout,
	}, nil
}
