package engine

import health "homewatch/internal/health/domain"

// DeviceStatusObserved is published for device_status events.
type DeviceStatusObserved struct {
	DeviceID string
	Status   health.Status
}

// CallOutRequested is published for call_out events when a gateway is configured.
type CallOutRequested struct {
	Message string
	Level   int
}
