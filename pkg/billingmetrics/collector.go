package billingmetrics

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/freightbill/pkg/logger"
	"github.com/dmitrymomot/freightbill/pkg/subscription"
)

const namespace = "freightbill"

// Collector publishes snapshots as Prometheus gauges.
type Collector struct {
	agg    *Aggregator
	logger *slog.Logger

	tenants         *prometheus.GaugeVec
	mrr             *prometheus.GaugeVec
	arr             *prometheus.GaugeVec
	trialsExpiring  prometheus.Gauge
	pastDue         prometheus.Gauge
	failedPayments  prometheus.Gauge
	trialConversion prometheus.Gauge
}

// NewCollector creates the gauges and registers them with reg.
func NewCollector(agg *Aggregator, reg prometheus.Registerer, l *slog.Logger) (*Collector, error) {
	if agg == nil {
		panic("billingmetrics: Aggregator is required")
	}
	if l == nil {
		l = slog.Default()
	}
	c := &Collector{
		agg:    agg,
		logger: l,
		tenants: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tenants_by_status",
			Help:      "Tenants by current subscription status.",
		}, []string{"status"}),
		mrr: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mrr_minor_units",
			Help:      "Monthly recurring revenue in minor currency units.",
		}, []string{"currency"}),
		arr: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "arr_minor_units",
			Help:      "Annual recurring revenue in minor currency units.",
		}, []string{"currency"}),
		trialsExpiring: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "trials_expiring",
			Help:      "Trials ending within the lookahead window.",
		}),
		pastDue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "past_due_accounts",
			Help:      "Subscriptions with a failed charge.",
		}),
		failedPayments: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "failed_payments",
			Help:      "Failed payments within the reporting window.",
		}),
		trialConversion: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "trial_conversion_percent",
			Help:      "Share of trials converted to paid subscriptions.",
		}),
	}

	if reg != nil {
		for _, m := range []prometheus.Collector{c.tenants, c.mrr, c.arr, c.trialsExpiring, c.pastDue, c.failedPayments, c.trialConversion} {
			if err := reg.Register(m); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

// Refresh recomputes the snapshot and updates the gauges. On error the
// previous values are kept.
func (c *Collector) Refresh(ctx context.Context) (Snapshot, error) {
	s, err := c.agg.Snapshot(ctx)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to refresh billing metrics",
			logger.Component("billingmetrics"),
			logger.Error(err),
		)
		return Snapshot{}, errors.Join(ErrRefreshFailed, err)
	}
	c.Set(s)
	return s, nil
}

// Set publishes s. Known statuses always get a series so dashboards see zeros.
func (c *Collector) Set(s Snapshot) {
	for _, st := range subscription.Statuses {
		c.tenants.WithLabelValues(string(st)).Set(float64(s.ByStatus[st]))
	}
	c.mrr.Reset()
	for currency, v := range s.MRR {
		c.mrr.WithLabelValues(currency).Set(float64(v))
	}
	c.arr.Reset()
	for currency, v := range s.ARR {
		c.arr.WithLabelValues(currency).Set(float64(v))
	}
	c.trialsExpiring.Set(float64(len(s.TrialsExpiring)))
	c.pastDue.Set(float64(len(s.PastDue)))
	c.failedPayments.Set(float64(len(s.FailedPayments)))
	c.trialConversion.Set(s.TrialConversion)
}
