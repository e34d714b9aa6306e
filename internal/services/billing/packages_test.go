package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog(t *testing.T) Catalog {
	t.Helper()

	t.Setenv("STRIPE_PRICE_PRO_MONTHLY_EUR", "price_monthly")
	t.Setenv("STRIPE_PRICE_PRO_YEARLY_EUR", "price_yearly")
	t.Setenv("STRIPE_PRICE_PRO_OVERAGE_EUR", "price_overage")
	t.Setenv("STRIPE_PRICE_TOPUP_STARTER_EUR", "price_starter")
	t.Setenv("STRIPE_PRICE_TOPUP_GROWTH_EUR", "price_growth")
	t.Setenv("STRIPE_PRICE_TOPUP_PRO_EUR", "price_pro")

	return DefaultCatalog()
}

func TestDefaultCatalogPackages(t *testing.T) {
	catalog := testCatalog(t)

	monthly := catalog.Subscriptions[ProMonthly]
	assert.Equal(t, int64(1000), monthly.MonthlyAllowance)
	assert.Equal(t, 0.06, monthly.OverageUnitPrice)
	assert.Equal(t, "monthly", monthly.Interval)

	yearly := catalog.Subscriptions[ProYearly]
	assert.Equal(t, "yearly", yearly.Interval)

	starter := catalog.Topups[TopupStarter]
	assert.Equal(t, int64(200), starter.Credits)
	assert.Equal(t, 15.00, starter.Price)
	assert.Equal(t, 90, starter.ExpiryDays)

	growth := catalog.Topups[TopupGrowth]
	assert.Equal(t, int64(700), growth.Credits)
	assert.Equal(t, 49.00, growth.Price)

	pro := catalog.Topups[TopupPro]
	assert.Equal(t, int64(1600), pro.Credits)
	assert.Equal(t, 100.00, pro.Price)
}

func TestIntervalForPriceID(t *testing.T) {
	catalog := testCatalog(t)

	assert.Equal(t, "monthly", catalog.IntervalForPriceID("price_monthly"))
	assert.Equal(t, "yearly", catalog.IntervalForPriceID("price_yearly"))
	// Unknown or empty prices fall back to monthly.
	assert.Equal(t, "monthly", catalog.IntervalForPriceID("price_unknown"))
	assert.Equal(t, "monthly", catalog.IntervalForPriceID(""))
}

func TestTopupForPriceID(t *testing.T) {
	catalog := testCatalog(t)

	pkg, ok := catalog.TopupForPriceID("price_growth")
	require.True(t, ok)
	assert.Equal(t, int64(700), pkg.Credits)

	_, ok = catalog.TopupForPriceID("price_unknown")
	assert.False(t, ok)

	_, ok = catalog.TopupForPriceID("")
	assert.False(t, ok)
}
