package driver

import (
	"github.com/uxav/AVnetCore-sub001/internal/av"
	"github.com/uxav/AVnetCore-sub001/internal/catalog"
)

// ActiveUseWriter records source active-use telemetry.
// *influxdb.Client implements it.
type ActiveUseWriter interface {
	WriteSourceActiveUse(sourceID uint, count int)
}

// MetricsHook is an av.ActiveUseHook that records every count change.
type MetricsHook struct {
	w ActiveUseWriter
}

var _ av.ActiveUseHook = (*MetricsHook)(nil)

// NewMetricsHook creates a hook writing to w.
func NewMetricsHook(w ActiveUseWriter) *MetricsHook {
	return &MetricsHook{w: w}
}

// OnActiveUseCountChange implements av.ActiveUseHook.
func (m *MetricsHook) OnActiveUseCountChange(src *av.Source, count int) error {
	m.w.WriteSourceActiveUse(src.ID(), count)
	return nil
}

// Factory hands the same driver to every room and, when metrics are
// enabled, a MetricsHook to every source. It implements
// catalog.HookFactory.
type Factory struct {
	Driver  *MQTTDriver
	Metrics ActiveUseWriter
}

var _ catalog.HookFactory = Factory{}

// RoomHooks implements catalog.HookFactory.
func (f Factory) RoomHooks(catalog.Room) av.RoomHooks {
	if f.Driver == nil {
		return nil
	}
	return f.Driver
}

// ActiveUseHook implements catalog.HookFactory.
func (f Factory) ActiveUseHook(catalog.Source) av.ActiveUseHook {
	if f.Metrics == nil {
		return nil
	}
	return NewMetricsHook(f.Metrics)
}
