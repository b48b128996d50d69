package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TokensGranted counts tokens credited to balances by source
	TokensGranted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_tokens_granted_total",
			Help: "Total number of tokens credited to user balances",
		},
		[]string{"source"},
	)

	// TokensSpent counts tokens debited from balances
	TokensSpent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_tokens_spent_total",
			Help: "Total number of tokens debited from user balances",
		},
	)

	// DuplicateGrants counts purchase credits skipped as already processed
	DuplicateGrants = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_duplicate_grants_total",
			Help: "Total number of purchase credits skipped as duplicates",
		},
	)

	// CouponRedemptions counts coupon redemption attempts by outcome
	CouponRedemptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_coupon_redemptions_total",
			Help: "Total number of coupon redemption attempts",
		},
		[]string{"outcome"},
	)

	// DailyClaims counts daily reward claim attempts by outcome
	DailyClaims = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_daily_claims_total",
			Help: "Total number of daily reward claim attempts",
		},
		[]string{"outcome"},
	)

	// TierClaims counts tier reward claim attempts by tier and outcome
	TierClaims = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_tier_claims_total",
			Help: "Total number of tier reward claim attempts",
		},
		[]string{"tier", "outcome"},
	)

	// UploadFiles tracks accepted file counts per upload job
	UploadFiles = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ledger_upload_files",
			Help:    "Number of accepted files per upload job",
			Buckets: []float64{1, 2, 5, 10, 20, 50},
		},
	)

	// UploadDuration tracks image pipeline processing time
	UploadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ledger_upload_duration_seconds",
			Help:    "Upload processing duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ErrorsTotal counts errors by component
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)
