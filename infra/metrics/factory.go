package metrics

import (
	"github.com/kilianp07/microgrid-dispatch/core/factory"
	coremetrics "github.com/kilianp07/microgrid-dispatch/core/metrics"
)

// init registers built-in metrics sinks.
func init() {
	coremetrics.Sinks.MustRegister("nop", func(map[string]any) (coremetrics.MetricsSink, error) {
		return coremetrics.NopSink{}, nil
	})

	coremetrics.Sinks.MustRegister("prometheus", func(map[string]any) (coremetrics.MetricsSink, error) {
		return NewPromSink()
	})

	coremetrics.Sinks.MustRegister("influx", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c InfluxConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewInfluxSinkWithFallback(c), nil
	})
}
