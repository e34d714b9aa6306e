package billing

import "os"

type SubscriptionPackage string

const (
	ProMonthly SubscriptionPackage = "PRO_MONTHLY"
	ProYearly  SubscriptionPackage = "PRO_YEARLY"
)

type TopupPackage string

const (
	TopupStarter TopupPackage = "STARTER"
	TopupGrowth  TopupPackage = "GROWTH"
	TopupPro     TopupPackage = "PRO"
)

const topupExpiryDays = 90

type SubscriptionPackageConfig struct {
	BasePriceID      string  `json:"base_price_id"`
	OveragePriceID   string  `json:"overage_price_id"`
	MonthlyAllowance int64   `json:"monthly_allowance"`
	OverageUnitPrice float64 `json:"overage_unit_price"`
	Name             string  `json:"name"`
	Interval         string  `json:"interval"`
	Price            float64 `json:"price"`
}

type TopupPackageConfig struct {
	PriceID     string  `json:"price_id"`
	Credits     int64   `json:"credits"`
	Price       float64 `json:"price"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	ExpiryDays  int     `json:"expiry_days"`
}

// Catalog maps package keys to their Stripe prices and credit quantities.
type Catalog struct {
	Subscriptions map[SubscriptionPackage]SubscriptionPackageConfig
	Topups        map[TopupPackage]TopupPackageConfig
}

// DefaultCatalog builds the production catalog, resolving Stripe price IDs
// from the environment. Called after env files are loaded.
func DefaultCatalog() Catalog {
	return Catalog{
		Subscriptions: map[SubscriptionPackage]SubscriptionPackageConfig{
			ProMonthly: {
				BasePriceID:      os.Getenv("STRIPE_PRICE_PRO_MONTHLY_EUR"),
				OveragePriceID:   os.Getenv("STRIPE_PRICE_PRO_OVERAGE_EUR"),
				MonthlyAllowance: 1000,
				OverageUnitPrice: 0.06,
				Name:             "Monthly Subscription",
				Interval:         "monthly",
				Price:            60.00,
			},
			ProYearly: {
				BasePriceID:      os.Getenv("STRIPE_PRICE_PRO_YEARLY_EUR"),
				OveragePriceID:   os.Getenv("STRIPE_PRICE_PRO_OVERAGE_EUR"),
				MonthlyAllowance: 1000,
				OverageUnitPrice: 0.06,
				Name:             "Yearly Subscription",
				Interval:         "yearly",
				Price:            600.00,
			},
		},
		Topups: map[TopupPackage]TopupPackageConfig{
			TopupStarter: {
				PriceID:     os.Getenv("STRIPE_PRICE_TOPUP_STARTER_EUR"),
				Credits:     200,
				Price:       15.00,
				Name:        "Starter Wallet",
				Description: "200 credits",
				ExpiryDays:  topupExpiryDays,
			},
			TopupGrowth: {
				PriceID:     os.Getenv("STRIPE_PRICE_TOPUP_GROWTH_EUR"),
				Credits:     700,
				Price:       49.00,
				Name:        "Growth Topup",
				Description: "700 credits",
				ExpiryDays:  topupExpiryDays,
			},
			TopupPro: {
				PriceID:     os.Getenv("STRIPE_PRICE_TOPUP_PRO_EUR"),
				Credits:     1600,
				Price:       100.00,
				Name:        "Pro Topup",
				Description: "1600 credits",
				ExpiryDays:  topupExpiryDays,
			},
		},
	}
}

// IntervalForPriceID derives the billing interval from a subscription base
// price ID, defaulting to monthly when the price is unknown.
func (c Catalog) IntervalForPriceID(priceID string) string {
	if priceID != "" {
		for _, pkg := range c.Subscriptions {
			if pkg.BasePriceID == priceID {
				return pkg.Interval
			}
		}
	}
	return "monthly"
}

// TopupForPriceID finds the top-up package sold under the given price ID.
func (c Catalog) TopupForPriceID(priceID string) (TopupPackageConfig, bool) {
	if priceID == "" {
		return TopupPackageConfig{}, false
	}
	for _, pkg := range c.Topups {
		if pkg.PriceID == priceID {
			return pkg, true
		}
	}
	return TopupPackageConfig{}, false
}
