package credentials

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	syncsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dtoolcfg_remote_identities_created_total",
		Help: "Number of remote identities created on the object-storage endpoint.",
	})

	issuesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dtoolcfg_access_keys_issued_total",
		Help: "Number of S3 access keys issued.",
	})

	revocationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dtoolcfg_access_keys_revoked_total",
		Help: "Number of S3 access keys revoked.",
	})
)
