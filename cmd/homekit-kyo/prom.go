package main

import (
	"strconv"

	kyo "github.com/caarlos0/homekit-kyo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var armStateGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace:   "homekit_kyo",
	Subsystem:   "alarm",
	Name:        "state",
	Help:        "",
	ConstLabels: map[string]string{},
})

var zoneGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace:   "homekit_kyo",
	Subsystem:   "alarm",
	Name:        "zone",
	Help:        "",
	ConstLabels: map[string]string{},
}, []string{"zone", "state"})

var partitionGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace:   "homekit_kyo",
	Subsystem:   "alarm",
	Name:        "partition",
	Help:        "",
	ConstLabels: map[string]string{},
}, []string{"partition", "state"})

var outputGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace:   "homekit_kyo",
	Subsystem:   "alarm",
	Name:        "output",
	Help:        "",
	ConstLabels: map[string]string{},
}, []string{"output"})

var systemGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace:   "homekit_kyo",
	Subsystem:   "alarm",
	Name:        "system",
	Help:        "",
	ConstLabels: map[string]string{},
}, []string{"name"})

var infoGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace:   "homekit_kyo",
	Subsystem:   "alarm",
	Name:        "info",
	Help:        "",
	ConstLabels: map[string]string{},
}, []string{"name", "value"})

var requestCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace:   "homekit_kyo",
	Subsystem:   "client",
	Name:        "requests_total",
	Help:        "",
	ConstLabels: map[string]string{},
}, []string{"op"})

var requestErrorCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace:   "homekit_kyo",
	Subsystem:   "client",
	Name:        "request_errors_total",
	Help:        "",
	ConstLabels: map[string]string{},
}, []string{"op"})

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace:   "homekit_kyo",
	Subsystem:   "client",
	Name:        "request_duration_seconds",
	Help:        "",
	ConstLabels: map[string]string{},
	Buckets:     []float64{.01, .025, .05, .1, .25, .5, 1, 2},
}, []string{"op"})

// metrics mirrors every published boolean into a gauge.
type metrics struct{}

func (metrics) Publish(e kyo.Event) {
	n := strconv.Itoa(e.Index + 1)
	v := boolAs[float64](e.Value)
	switch e.Field {
	case kyo.FieldZone, kyo.FieldZoneTamper, kyo.FieldZoneBypass,
		kyo.FieldZoneAlarmMemory, kyo.FieldZoneTamperMemory:
		zoneGauge.WithLabelValues(n, e.Field.String()).Set(v)
	case kyo.FieldPartitionAlarm, kyo.FieldPartitionArmedTotal, kyo.FieldPartitionArmedPartial,
		kyo.FieldPartitionArmedPartialDelay0, kyo.FieldPartitionDisarmed:
		partitionGauge.WithLabelValues(n, e.Field.String()).Set(v)
	case kyo.FieldOutput:
		outputGauge.WithLabelValues(n).Set(v)
	case kyo.FieldFirmwareVersion, kyo.FieldModel:
		infoGauge.WithLabelValues(e.Field.String(), e.Text).Set(1)
	default:
		if !e.Field.IsText() {
			systemGauge.WithLabelValues(e.Field.String()).Set(v)
		}
	}
}

func observe(r kyo.Result) {
	requestCounter.WithLabelValues(r.Op).Inc()
	requestDuration.WithLabelValues(r.Op).Observe(r.Duration.Seconds())
	if r.Err != nil {
		requestErrorCounter.WithLabelValues(r.Op).Inc()
	}
}
