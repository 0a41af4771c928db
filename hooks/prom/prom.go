// Package prom counts tagcache events with Prometheus counters.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/tagcache"
)

type Hooks struct {
	selfHeals     *prometheus.CounterVec
	providerErrs  *prometheus.CounterVec
	setRejected   prometheus.Counter
	snapshotErrs  prometheus.Counter
	tagBumpErrors prometheus.Counter
}

var _ tagcache.Hooks = (*Hooks)(nil)

// New creates the counters under namespace and registers them with reg.
func New(namespace string, reg prometheus.Registerer) (*Hooks, error) {
	h := &Hooks{
		selfHeals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tagcache",
			Name:      "self_heals_total",
			Help:      "Entries deleted on read, by reason.",
		}, []string{"reason"}),
		providerErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tagcache",
			Name:      "provider_errors_total",
			Help:      "Byte store failures, by operation.",
		}, []string{"op"}),
		setRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tagcache",
			Name:      "set_rejected_total",
			Help:      "Writes the byte store dropped under pressure.",
		}),
		snapshotErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tagcache",
			Name:      "tag_snapshot_errors_total",
			Help:      "Failed tag version reads.",
		}),
		tagBumpErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tagcache",
			Name:      "tag_bump_errors_total",
			Help:      "Tags that could not be invalidated.",
		}),
	}
	for _, c := range []prometheus.Collector{h.selfHeals, h.providerErrs, h.setRejected, h.snapshotErrs, h.tagBumpErrors} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Hooks) SelfHeal(_ string, reason string) { h.selfHeals.WithLabelValues(reason).Inc() }
func (h *Hooks) ProviderError(op string, _ error) { h.providerErrs.WithLabelValues(op).Inc() }
func (h *Hooks) ProviderSetRejected(string)       { h.setRejected.Inc() }
func (h *Hooks) TagSnapshotError(int, error)      { h.snapshotErrs.Inc() }
func (h *Hooks) TagBumpError(string, error)       { h.tagBumpErrors.Inc() }

// Multi fans every event out to each of hs in order.
type Multi []tagcache.Hooks

var _ tagcache.Hooks = Multi(nil)

func (m Multi) SelfHeal(k, r string) {
	for _, h := range m {
		h.SelfHeal(k, r)
	}
}

func (m Multi) ProviderError(op string, err error) {
	for _, h := range m {
		h.ProviderError(op, err)
	}
}

func (m Multi) ProviderSetRejected(k string) {
	for _, h := range m {
		h.ProviderSetRejected(k)
	}
}

func (m Multi) TagSnapshotError(n int, err error) {
	for _, h := range m {
		h.TagSnapshotError(n, err)
	}
}

func (m Multi) TagBumpError(t string, err error) {
	for _, h := range m {
		h.TagBumpError(t, err)
	}
}
