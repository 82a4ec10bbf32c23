package metrics

import (
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

// Gauges supplies current engine state sizes.
type Gauges struct {
	UnacknowledgedAlerts func() int
	Scenarios            func() int
	Devices              func() int
}

func registerGauges(g Gauges, logger *log.Logger) {
	register := func(name, help string, fn func() int) {
		if fn == nil {
			return
		}
		gauge := prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: metricPrefix + name,
				Help: help,
			},
			func() float64 {
				return sample(fn, name, logger)
			},
		)
		if err := prometheus.Register(gauge); err != nil && logger != nil {
			logger.Printf("metrics register %s failed: %v", name, err)
		}
	}
	register("alerts_unacknowledged", "Unacknowledged device alerts", g.UnacknowledgedAlerts)
	register("scenarios", "Stored event chain scenarios", g.Scenarios)
	register("devices_tracked", "Devices with a health record", g.Devices)
}

func sample(fn func() int, name string, logger *log.Logger) (value float64) {
	defer func() {
		if r := recover(); r != nil {
			if logger != nil {
				logger.Printf("metrics gauge %s failed: %v", name, r)
			}
			value = 0
		}
	}()
	count := fn()
	if count < 0 {
		return 0
	}
	return float64(count)
}
