package podbridge

import (
	"github.com/jpalmerr/podbridge/internal/coordinator"
	"github.com/jpalmerr/podbridge/internal/server"
	"github.com/jpalmerr/podbridge/internal/store"
)

// storePublisher mirrors entity values into the store behind the HTTP API.
type storePublisher struct {
	store store.Store
}

func (p storePublisher) Register(dev *coordinator.Device) error {
	for _, e := range dev.Entities {
		p.store.Update(toEntityState(e, coordinator.Value{}))
	}
	return nil
}

func (p storePublisher) Update(e *coordinator.Entity, v coordinator.Value) {
	p.store.Update(toEntityState(e, v))
}

func toEntityState(e *coordinator.Entity, v coordinator.Value) store.EntityState {
	return store.EntityState{
		UniqueID:    e.UniqueID,
		Name:        e.Name,
		DeviceID:    e.Device.ID,
		Side:        e.Device.Side.String(),
		Field:       string(e.Field),
		Unit:        e.Unit,
		DeviceClass: e.DeviceClass,
		Binary:      e.Binary,
		Value:       v.Raw,
		State:       v.State(e.Binary),
		Available:   v.Available,
		UpdatedAt:   v.UpdatedAt,
	}
}

// deviceSource lists the coordinator's devices for GET /api/devices.
type deviceSource struct {
	coord *coordinator.Coordinator
}

func (d deviceSource) DeviceInfos() []server.DeviceInfo {
	devices := d.coord.Devices()
	out := make([]server.DeviceInfo, 0, len(devices))
	for _, dev := range devices {
		st := d.coord.State(dev.Side)
		info := server.DeviceInfo{
			ID:           dev.ID,
			Name:         dev.Name,
			Side:         dev.Side.String(),
			Manufacturer: dev.Manufacturer,
			Model:        dev.Model,
			Availability: st.Availability.String(),
			UpdatedAt:    st.UpdatedAt,
		}
		for _, e := range dev.Entities {
			info.Entities = append(info.Entities, e.UniqueID)
		}
		out = append(out, info)
	}
	return out
}
