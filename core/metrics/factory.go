package metrics

import (
	"fmt"

	"github.com/kilianp07/microgrid-dispatch/core/factory"
)

// Sinks lists the available MetricsSink implementations by type name.
// Adapters register themselves from their package init.
var Sinks = factory.NewRegistry[MetricsSink]()

// NewMetricsSink builds one sink per entry. Several entries are combined
// into a MultiSink and an empty list yields a NopSink.
func NewMetricsSink(cfgs []factory.ModuleConfig) (MetricsSink, error) {
	sinks := make([]MetricsSink, 0, len(cfgs))
	for i, c := range cfgs {
		s, err := Sinks.Create(c)
		if err != nil {
			return nil, fmt.Errorf("sink %d (%s): %w", i, c.Type, err)
		}
		sinks = append(sinks, s)
	}
	switch len(sinks) {
	case 0:
		return NopSink{}, nil
	case 1:
		return sinks[0], nil
	default:
		return NewMultiSink(sinks...), nil
	}
}
