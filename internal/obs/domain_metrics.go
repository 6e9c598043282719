package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// OrdersTotal counts order placement outcomes per sales channel.
	OrdersTotal *prometheus.CounterVec
	// OrderAmount records order grand totals in FCFA.
	OrderAmount *prometheus.HistogramVec
	// OfferRedemptionTotal counts offer preview and settlement outcomes.
	OfferRedemptionTotal *prometheus.CounterVec
	// DiscountGrantedTotal accumulates granted discount amounts in FCFA.
	DiscountGrantedTotal prometheus.Counter
	// CatalogCacheTotal counts catalog cache lookups by result.
	CatalogCacheTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		OrdersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Count of order placement outcomes by channel.",
		}, []string{"channel", "result"})
		OrderAmount = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_amount_fcfa",
			Help:      "Order grand totals in FCFA.",
			Buckets:   []float64{1000, 2500, 5000, 10000, 20000, 50000, 100000, 250000},
		}, []string{"channel"})
		OfferRedemptionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "offer_redemption_total",
			Help:      "Count of offer preview and settlement outcomes.",
		}, []string{"stage", "result"})
		DiscountGrantedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discount_granted_fcfa_total",
			Help:      "Total discount amount granted across settled orders in FCFA.",
		})
		CatalogCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_cache_total",
			Help:      "Catalog cache lookups by result.",
		}, []string{"result"})

		mustRegisterCollector(reg, OrdersTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				OrdersTotal = v
			}
		})
		mustRegisterCollector(reg, OrderAmount, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				OrderAmount = v
			}
		})
		mustRegisterCollector(reg, OfferRedemptionTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				OfferRedemptionTotal = v
			}
		})
		mustRegisterCollector(reg, DiscountGrantedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				DiscountGrantedTotal = v
			}
		})
		mustRegisterCollector(reg, CatalogCacheTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CatalogCacheTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
