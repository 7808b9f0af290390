package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MaskingCollector bundles Prometheus metrics for the action-masking
// core and provides a ready-to-use /metrics handler.
type MaskingCollector struct {
	gatherer prometheus.Gatherer

	ActionSpaceSize prometheus.Gauge
	ValidActions    prometheus.Gauge
	Notifications   *prometheus.CounterVec
	DeltaSize       *prometheus.HistogramVec
	GrowthTotal     prometheus.Counter

	ScenarioOrders    prometheus.Gauge
	ScenarioTrucks    prometheus.Gauge
	ScenarioDrones    prometheus.Gauge
	ScenarioNodes     prometheus.Gauge
	ScenarioMicroHubs prometheus.Gauge
}

// NewMaskingCollector registers masking Prometheus metrics against the
// provided registerer, defaulting to the global Prometheus registry when nil.
func NewMaskingCollector(reg prometheus.Registerer) (*MaskingCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	spaceSize, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "masking_action_space_size",
		Help: "Current number of concrete actions in the bijection.",
	}), "masking_action_space_size")
	if err != nil {
		return nil, err
	}
	valid, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "masking_valid_actions",
		Help: "Current number of True bits in the validity mask.",
	}), "masking_valid_actions")
	if err != nil {
		return nil, err
	}

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "masking_notifications_total",
		Help: "Total number of processed entity change notifications, labeled by entity type.",
	}, []string{"entity_type"})
	notifications, err = registerCounterVec(reg, notifications, "masking_notifications_total")
	if err != nil {
		return nil, err
	}

	deltaSize := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "masking_delta_size",
		Help:    "Number of mask bits flipped per notification.",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"entity_type"})
	deltaSize, err = registerHistogramVec(reg, deltaSize, "masking_delta_size")
	if err != nil {
		return nil, err
	}

	growth, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "masking_space_growth_total",
		Help: "Cumulative number of actions appended by mid-episode entity registration.",
	}), "masking_space_growth_total")
	if err != nil {
		return nil, err
	}

	orders, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scenario_orders",
		Help: "Current number of orders in ScenarioState.",
	}), "scenario_orders")
	if err != nil {
		return nil, err
	}
	trucks, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scenario_trucks",
		Help: "Current number of trucks in ScenarioState.",
	}), "scenario_trucks")
	if err != nil {
		return nil, err
	}
	drones, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scenario_drones",
		Help: "Current number of drones in ScenarioState.",
	}), "scenario_drones")
	if err != nil {
		return nil, err
	}
	nodes, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scenario_nodes",
		Help: "Current number of network nodes in ScenarioState.",
	}), "scenario_nodes")
	if err != nil {
		return nil, err
	}
	hubs, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scenario_micro_hubs",
		Help: "Current number of micro hubs in ScenarioState.",
	}), "scenario_micro_hubs")
	if err != nil {
		return nil, err
	}

	return &MaskingCollector{
		gatherer:          gatherer,
		ActionSpaceSize:   spaceSize,
		ValidActions:      valid,
		Notifications:     notifications,
		DeltaSize:         deltaSize,
		GrowthTotal:       growth,
		ScenarioOrders:    orders,
		ScenarioTrucks:    trucks,
		ScenarioDrones:    drones,
		ScenarioNodes:     nodes,
		ScenarioMicroHubs: hubs,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *MaskingCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *MaskingCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// SetActionSpace satisfies the masking metrics recorder interface so the
// masking service can drive gauge values directly.
func (c *MaskingCollector) SetActionSpace(size, valid int) {
	if c == nil {
		return
	}
	if c.ActionSpaceSize != nil {
		c.ActionSpaceSize.Set(float64(size))
	}
	if c.ValidActions != nil {
		c.ValidActions.Set(float64(valid))
	}
}

// ObserveNotification records one processed change notification and the
// size of the resulting mask delta.
func (c *MaskingCollector) ObserveNotification(entityType string, deltaSize int) {
	if c == nil {
		return
	}
	if c.Notifications != nil {
		c.Notifications.WithLabelValues(entityType).Inc()
	}
	if c.DeltaSize != nil {
		c.DeltaSize.WithLabelValues(entityType).Observe(float64(deltaSize))
	}
}

// AddGrowth records actions appended by entity registration.
func (c *MaskingCollector) AddGrowth(actions int) {
	if c == nil || c.GrowthTotal == nil {
		return
	}
	c.GrowthTotal.Add(float64(actions))
}

// SetScenarioCounts satisfies the ScenarioMetricsRecorder interface so the
// ScenarioState can drive gauge values directly from its mutators.
func (c *MaskingCollector) SetScenarioCounts(orders, trucks, drones, nodes, hubs int) {
	if c == nil {
		return
	}
	if c.ScenarioOrders != nil {
		c.ScenarioOrders.Set(float64(orders))
	}
	if c.ScenarioTrucks != nil {
		c.ScenarioTrucks.Set(float64(trucks))
	}
	if c.ScenarioDrones != nil {
		c.ScenarioDrones.Set(float64(drones))
	}
	if c.ScenarioNodes != nil {
		c.ScenarioNodes.Set(float64(nodes))
	}
	if c.ScenarioMicroHubs != nil {
		c.ScenarioMicroHubs.Set(float64(hubs))
	}
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
