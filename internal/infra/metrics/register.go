package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// ServiceLabel is the value of the service label on every transcoder series.
const ServiceLabel = "transcoder"

var (
	once       sync.Once
	collectors []prometheus.Collector
)

// register is called from init() in each metrics file.
func register(cs ...prometheus.Collector) {
	collectors = append(collectors, cs...)
}

// MustRegister registers the transcoder collectors with the default registry
// once, tagged with service=transcoder.
func MustRegister() {
	once.Do(func() {
		MustRegisterWith(prometheus.DefaultRegisterer)
	})
}

// MustRegisterWith registers the transcoder collectors on reg. Tests use it
// with a private registry.
func MustRegisterWith(reg prometheus.Registerer) {
	if len(collectors) == 0 {
		return
	}
	prometheus.WrapRegistererWith(prometheus.Labels{"service": ServiceLabel}, reg).MustRegister(collectors...)
}
