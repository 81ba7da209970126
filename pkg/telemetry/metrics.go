package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names
const (
	MetricCyclesTotal         = "ladder_maker_cycles_total"
	MetricCycleFailuresTotal  = "ladder_maker_cycle_failures_total"
	MetricOffersCancelled     = "ladder_maker_offers_cancelled_total"
	MetricOffersCreated       = "ladder_maker_offers_created_total"
	MetricStopLossTrips       = "ladder_maker_stop_loss_trips_total"
	MetricSequenceRetries     = "ladder_maker_sequence_retries_total"
	MetricCycleDuration       = "ladder_maker_cycle_duration_ms"
	MetricOffersResting       = "ladder_maker_offers_resting"
	MetricReferencePriceGauge = "ladder_maker_reference_price"
)

// MetricsHolder holds initialized instruments
type MetricsHolder struct {
	CyclesTotal        metric.Int64Counter
	CycleFailuresTotal metric.Int64Counter
	OffersCancelled    metric.Int64Counter
	OffersCreated      metric.Int64Counter
	StopLossTrips      metric.Int64Counter
	SequenceRetries    metric.Int64Counter
	CycleDuration      metric.Float64Histogram
	OffersResting      metric.Int64ObservableGauge
	ReferencePrice     metric.Float64ObservableGauge

	// State for observable gauges, keyed by pair
	mu          sync.RWMutex
	restingMap  map[string]int64
	refPriceMap map[string]float64
}

var (
	globalMetrics *MetricsHolder
	initOnce      sync.Once
)

// GetGlobalMetrics returns the singleton metrics holder
func GetGlobalMetrics() *MetricsHolder {
	initOnce.Do(func() {
		globalMetrics = &MetricsHolder{
			restingMap:  make(map[string]int64),
			refPriceMap: make(map[string]float64),
		}
	})
	return globalMetrics
}

// InitMetrics initializes instruments using the meter
func (m *MetricsHolder) InitMetrics(meter metric.Meter) error {
	var err error

	m.CyclesTotal, err = meter.Int64Counter(MetricCyclesTotal, metric.WithDescription("Total reconciliation cycles run"))
	if err != nil {
		return err
	}

	m.CycleFailuresTotal, err = meter.Int64Counter(MetricCycleFailuresTotal, metric.WithDescription("Total per-configuration cycle failures"))
	if err != nil {
		return err
	}

	m.OffersCancelled, err = meter.Int64Counter(MetricOffersCancelled, metric.WithDescription("Total offers cancelled"))
	if err != nil {
		return err
	}

	m.OffersCreated, err = meter.Int64Counter(MetricOffersCreated, metric.WithDescription("Total offers created"))
	if err != nil {
		return err
	}

	m.StopLossTrips, err = meter.Int64Counter(MetricStopLossTrips, metric.WithDescription("Total stop-loss band breaches"))
	if err != nil {
		return err
	}

	m.SequenceRetries, err = meter.Int64Counter(MetricSequenceRetries, metric.WithDescription("Total stale-sequence reload retries"))
	if err != nil {
		return err
	}

	m.CycleDuration, err = meter.Float64Histogram(MetricCycleDuration, metric.WithDescription("Duration of one reconciliation cycle"), metric.WithUnit("ms"))
	if err != nil {
		return err
	}

	m.OffersResting, err = meter.Int64ObservableGauge(MetricOffersResting, metric.WithDescription("Resting offers per pair after the last cycle"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for pair, val := range m.restingMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("pair", pair)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	m.ReferencePrice, err = meter.Float64ObservableGauge(MetricReferencePriceGauge, metric.WithDescription("Last observed reference price per pair"),
		metric.WithFloat64Callback(func(ctx context.Context, obs metric.Float64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for pair, val := range m.refPriceMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("pair", pair)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	return nil
}

// SetRestingOffers updates the resting-offer gauge for a pair.
func (m *MetricsHolder) SetRestingOffers(pair string, count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restingMap[pair] = count
}

// SetReferencePrice updates the reference price gauge for a pair.
func (m *MetricsHolder) SetReferencePrice(pair string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refPriceMap[pair] = price
}
