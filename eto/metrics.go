package eto

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// instruments caches created instruments by name. Creating an instrument
// twice with the same name is legal but wasteful.
var instruments = struct {
	sync.Mutex
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
}{}

func resetInstrumentCache() {
	instruments.Lock()
	defer instruments.Unlock()
	instruments.counters = map[string]metric.Int64Counter{}
	instruments.histograms = map[string]metric.Float64Histogram{}
}

func metricsEnabled() bool {
	return globalCfg.EnableMetrics && globalMeter != nil
}

type CounterBuilder struct {
	name  string
	attrs []attribute.KeyValue
	unit  string
	desc  string
}

func MetricCounter(name string) *CounterBuilder {
	return &CounterBuilder{name: name, unit: "1"}
}

func (b *CounterBuilder) Attr(key string, val any) *CounterBuilder {
	b.attrs = append(b.attrs, anyToAttr(key, val))
	return b
}

func (b *CounterBuilder) Attrs(attrs ...attribute.KeyValue) *CounterBuilder {
	b.attrs = append(b.attrs, attrs...)
	return b
}

func (b *CounterBuilder) Unit(unit string) *CounterBuilder {
	if unit != "" {
		b.unit = unit
	}
	return b
}

func (b *CounterBuilder) Description(desc string) *CounterBuilder {
	b.desc = desc
	return b
}

// Add is a no-op while metrics are disabled.
func (b *CounterBuilder) Add(ctx context.Context, value int64) {
	if !metricsEnabled() {
		return
	}

	instruments.Lock()
	c, ok := instruments.counters[b.name]
	if !ok {
		var err error
		c, err = globalMeter.Int64Counter(b.name, metric.WithUnit(b.unit), metric.WithDescription(b.desc))
		if err != nil {
			instruments.Unlock()
			return
		}
		instruments.counters[b.name] = c
	}
	instruments.Unlock()

	c.Add(ctx, value, metric.WithAttributes(b.attrs...))
}

type HistogramBuilder struct {
	name  string
	attrs []attribute.KeyValue
	unit  string
	desc  string
}

func MetricHistogram(name string) *HistogramBuilder {
	return &HistogramBuilder{name: name, unit: "ms"}
}

func (b *HistogramBuilder) Attr(key string, val any) *HistogramBuilder {
	b.attrs = append(b.attrs, anyToAttr(key, val))
	return b
}

func (b *HistogramBuilder) Attrs(attrs ...attribute.KeyValue) *HistogramBuilder {
	b.attrs = append(b.attrs, attrs...)
	return b
}

func (b *HistogramBuilder) Unit(unit string) *HistogramBuilder {
	if unit != "" {
		b.unit = unit
	}
	return b
}

func (b *HistogramBuilder) Description(desc string) *HistogramBuilder {
	b.desc = desc
	return b
}

func (b *HistogramBuilder) Record(ctx context.Context, value float64) {
	if !metricsEnabled() {
		return
	}

	instruments.Lock()
	h, ok := instruments.histograms[b.name]
	if !ok {
		var err error
		h, err = globalMeter.Float64Histogram(b.name, metric.WithUnit(b.unit), metric.WithDescription(b.desc))
		if err != nil {
			instruments.Unlock()
			return
		}
		instruments.histograms[b.name] = h
	}
	instruments.Unlock()

	h.Record(ctx, value, metric.WithAttributes(b.attrs...))
}

// anyToAttr maps the common scalar kinds onto typed attributes; anything else is stringified.
func anyToAttr(key string, val any) attribute.KeyValue {
	switch v := val.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}
