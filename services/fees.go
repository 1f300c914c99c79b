package services

import (
	"github.com/shopspring/decimal"

	"github.com/tailorhub/tailorhub-api/apperr"
)

// FeeBreakdown splits an order total between the platform, the payment
// gateway and the tailor. The three parts always sum to OrderTotal.
type FeeBreakdown struct {
	OrderTotal  int64 `json:"order_total"`
	PlatformFee int64 `json:"platform_fee"`
	GatewayFee  int64 `json:"gateway_fee"`
	TailorNet   int64 `json:"tailor_net"`
}

// ComputeFees rounds each fee half-to-even to the smallest currency unit and
// gives the remainder to the tailor.
func ComputeFees(orderTotal int64, commissionRate, gatewayFeeRate decimal.Decimal) (FeeBreakdown, error) {
	if orderTotal < 0 {
		return FeeBreakdown{}, apperr.New(apperr.KindInvalidFeeConfiguration, "order total %d is negative", orderTotal)
	}
	if commissionRate.IsNegative() || gatewayFeeRate.IsNegative() {
		return FeeBreakdown{}, apperr.New(apperr.KindInvalidFeeConfiguration,
			"fee rates must be non-negative (commission %s, gateway %s)", commissionRate, gatewayFeeRate)
	}

	total := decimal.NewFromInt(orderTotal)
	platform := total.Mul(commissionRate).RoundBank(0).IntPart()
	gateway := total.Mul(gatewayFeeRate).RoundBank(0).IntPart()
	net := orderTotal - platform - gateway
	if net < 0 {
		return FeeBreakdown{}, apperr.New(apperr.KindInvalidFeeConfiguration,
			"fees %d exceed order total %d", platform+gateway, orderTotal)
	}

	return FeeBreakdown{
		OrderTotal:  orderTotal,
		PlatformFee: platform,
		GatewayFee:  gateway,
		TailorNet:   net,
	}, nil
}

// FeeCalculator applies the configured rates.
type FeeCalculator struct {
	CommissionRate decimal.Decimal
	GatewayFeeRate decimal.Decimal
}

// NewFeeCalculator creates a calculator with fixed rates
func NewFeeCalculator(commissionRate, gatewayFeeRate decimal.Decimal) *FeeCalculator {
	return &FeeCalculator{CommissionRate: commissionRate, GatewayFeeRate: gatewayFeeRate}
}

// Compute returns the breakdown of orderTotal under the configured rates.
func (f *FeeCalculator) Compute(orderTotal int64) (FeeBreakdown, error) {
	return ComputeFees(orderTotal, f.CommissionRate, f.GatewayFeeRate)
}
