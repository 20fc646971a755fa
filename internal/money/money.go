// Package money implements the fixed-point arithmetic the reserve ledger is
// built on. Every monetary quantity in this module is a signed 64-bit
// integer — sats or cents — never a float and never shopspring/decimal.
// Repeated multiplication of floating-point money is exactly the drift
// source this module exists to remove; decimal.Decimal is reserved for the
// approximate, informational margin-headroom estimate in internal/risk,
// which is explicitly not part of the ledger's exact conservation
// invariants.
package money

import "math/big"

// SatsPerBTC is the fixed-point scale of the sats unit: 1 BTC = 1e8 sats.
const SatsPerBTC = 100_000_000

// RatioScale is the implicit denominator of a Ratio: a Ratio's Num is parts
// per 1e6, giving at least 1e-6 resolution as required for allocation
// targets and drift thresholds.
const RatioScale = 1_000_000

// Sats is a quantity of BTC in its smallest unit.
type Sats int64

// USDCents is a quantity of USD in its smallest unit.
type USDCents int64

// Price is the BTC spot price expressed as whole USD cents per whole BTC
// (e.g. $50,000.00/BTC is Price(50_000_00)). This is an equivalent
// fixed-point representation to the micro-USD-per-BTC form the data model
// allows, chosen because the ledger arithmetic is phrased directly in
// terms of cents per BTC.
type Price int64

// Ratio is a bounded rational with an implicit denominator of RatioScale,
// e.g. Ratio{Num: 400_000} represents 0.40.
type Ratio struct {
	Num int64
}

// NewRatio builds a Ratio from a numerator already scaled by RatioScale.
func NewRatio(num int64) Ratio { return Ratio{Num: num} }

// Float64 returns the ratio as a float64, for logging and telemetry only —
// never for ledger arithmetic.
func (r Ratio) Float64() float64 { return float64(r.Num) / float64(RatioScale) }

// Sub returns r - other as a Ratio (may be negative).
func (r Ratio) Sub(other Ratio) Ratio { return Ratio{Num: r.Num - other.Num} }

// Abs returns the absolute value of the ratio.
func (r Ratio) Abs() Ratio {
	if r.Num < 0 {
		return Ratio{Num: -r.Num}
	}
	return r
}

// GreaterThan reports whether r > other.
func (r Ratio) GreaterThan(other Ratio) bool { return r.Num > other.Num }

// mulDivFloor computes floor(a * b / d) without overflowing int64 for the
// magnitudes this module deals in (sats up to ~2.1e15, prices up to ~1e10).
// big.Int is used rather than a hand-rolled 128-bit multiply because
// exactness, not speed, is what the ledger math requires — there is no
// hot loop here, only per-tick arithmetic.
func mulDivFloor(a, b, d int64) int64 {
	if d == 0 {
		panic("money: division by zero in mulDivFloor")
	}
	num := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	den := big.NewInt(d)
	q := new(big.Int)
	m := new(big.Int)
	q.QuoRem(num, den, m)
	// QuoRem truncates toward zero; floor requires adjusting down when the
	// remainder is nonzero and the operands' signs differ.
	if m.Sign() != 0 && (num.Sign() < 0) != (den.Sign() < 0) {
		q.Sub(q, big.NewInt(1))
	}
	return q.Int64()
}

// BTCValueUSDCents converts a sats amount to its USD value at the given
// price: btc_sats * price / 1e8.
func BTCValueUSDCents(sats Sats, price Price) USDCents {
	return USDCents(mulDivFloor(int64(sats), int64(price), SatsPerBTC))
}

// SatsForUSD converts a USD amount to sats at the given price (floor
// division), the BuyBTC conversion: btc_sats = usd * 1e8 / price.
func SatsForUSD(usd USDCents, price Price) Sats {
	return Sats(mulDivFloor(int64(usd), SatsPerBTC, int64(price)))
}

// USDForSats converts a sats amount to USD at the given price (floor
// division), the SellBTC conversion: usd = btc * price / 1e8.
func USDForSats(sats Sats, price Price) USDCents {
	return BTCValueUSDCents(sats, price)
}

// MulRatioUSD computes floor(usd * ratio), used to split totals by a
// target ratio without leaving the integer domain.
func MulRatioUSD(usd USDCents, r Ratio) USDCents {
	return USDCents(mulDivFloor(int64(usd), r.Num, RatioScale))
}

// MulRatioSats computes floor(sats * ratio) analogously to MulRatioUSD.
func MulRatioSats(sats Sats, r Ratio) Sats {
	return Sats(mulDivFloor(int64(sats), r.Num, RatioScale))
}

// RatioOf computes numerator/denominator as a Ratio at RatioScale
// resolution (banker's rounding to the nearest 1e-6), used for
// usd_ratio = usd_reserves / total_reserves.
func RatioOf(numerator, denominator int64) Ratio {
	if denominator == 0 {
		return Ratio{}
	}
	scaled := new(big.Int).Mul(big.NewInt(numerator), big.NewInt(RatioScale))
	den := big.NewInt(denominator)
	q, r := new(big.Int).QuoRem(scaled, den, new(big.Int))
	// Round half to even (banker's rounding) on the residual.
	twice := new(big.Int).Mul(r.Abs(r), big.NewInt(2))
	cmp := twice.Cmp(den.Abs(den))
	if cmp > 0 || (cmp == 0 && q.Bit(0) == 1) {
		if numerator < 0 != (denominator < 0) {
			q.Sub(q, big.NewInt(1))
		} else {
			q.Add(q, big.NewInt(1))
		}
	}
	return Ratio{Num: q.Int64()}
}
