package fee

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// RateSource looks up a per-service platform fee override (nil when none is set).
type RateSource interface {
	ServiceFeePercent(ctx context.Context, serviceID int64) (*float64, error)
}

type Calculator struct {
	defaultPercent decimal.Decimal
	rates          RateSource
	log            *zap.Logger
}

func NewCalculator(defaultPercent float64, rates RateSource, log *zap.Logger) *Calculator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Calculator{
		defaultPercent: decimal.NewFromFloat(defaultPercent),
		rates:          rates,
		log:            log,
	}
}

// Fee is round-half-up(gross * percent / 100) in minor units.
func Fee(gross int64, percent decimal.Decimal) int64 {
	return decimal.NewFromInt(gross).Mul(percent).Div(hundred).Round(0).IntPart()
}

// Compute applies override when it is a valid percentage, the default otherwise.
func (c *Calculator) Compute(gross int64, override *float64) int64 {
	pct := c.defaultPercent
	if override != nil && *override >= 0 && *override <= 100 {
		pct = decimal.NewFromFloat(*override)
	}
	return Fee(gross, pct)
}

// Split returns the platform fee and the provider's net amount.
func (c *Calculator) Split(gross int64, override *float64) (platformFee, net int64) {
	platformFee = c.Compute(gross, override)
	return platformFee, gross - platformFee
}

// PlatformFee resolves the service override (if any) and computes the fee.
// Lookup failures fall back to the default rate.
func (c *Calculator) PlatformFee(ctx context.Context, gross int64, serviceID *int64) int64 {
	if serviceID == nil || c.rates == nil {
		return c.Compute(gross, nil)
	}
	pct, err := c.rates.ServiceFeePercent(ctx, *serviceID)
	if err != nil {
		c.log.Warn("fee override lookup failed, using default rate",
			zap.Int64("service_id", *serviceID), zap.Error(err))
		return c.Compute(gross, nil)
	}
	return c.Compute(gross, pct)
}

// Display formats a minor-unit amount as "65.00 USD".
func Display(amount int64, currency string) string {
	return decimal.New(amount, -2).StringFixed(2) + " " + strings.ToUpper(currency)
}
