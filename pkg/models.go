package pkg

import "github.com/geoinfer/metering/internal/models"

type (
	ServerConfig   = models.ServerConfig
	DatabaseConfig = models.DatabaseConfig
	BillingConfig  = models.BillingConfig
	StripeConfig   = models.StripeConfig
	CacheConfig    = models.CacheConfig

	CreditGrant          = models.CreditGrant
	TopUp                = models.TopUp
	UsageRecord          = models.UsageRecord
	Subscription         = models.Subscription
	UsagePeriod          = models.UsagePeriod
	ConsumeCreditsParams = models.ConsumeCreditsParams
	CreditsSummary       = models.CreditsSummary
)
