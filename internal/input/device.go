package input

// DeviceRegistry is the host's view of attached input devices.
type DeviceRegistry interface {
	// DeviceIDs lists attached devices in discovery order.
	DeviceIDs() []int

	// Sources returns the device's bitmask, or false if the device is unknown.
	Sources(deviceID int) (Source, bool)
}

// NoTouchScreen is returned by TouchScreenDeviceID when no device qualifies.
const NoTouchScreen = -1

// Lookup queries the registry for a device's capabilities.
// A nil registry or an unknown device yields Absent.
func Lookup(reg DeviceRegistry, deviceID int) Capabilities {
	if reg == nil {
		return Absent()
	}
	mask, ok := reg.Sources(deviceID)
	if !ok {
		return Absent()
	}
	return Known(mask)
}

// TouchScreenDeviceID returns the first touch-screen device in discovery
// order, or NoTouchScreen.
func TouchScreenDeviceID(reg DeviceRegistry) int {
	if reg == nil {
		return NoTouchScreen
	}
	for _, id := range reg.DeviceIDs() {
		if Lookup(reg, id).Has(SourceTouchscreen) {
			return id
		}
	}
	return NoTouchScreen
}

// StaticRegistry is a fixed DeviceRegistry, used by scenarios and the CLI.
type StaticRegistry struct {
	order   []int
	sources map[int]Source
}

// NewStaticRegistry creates an empty registry.
func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{sources: make(map[int]Source)}
}

// Attach adds or replaces a device. New devices go to the end of the order.
func (r *StaticRegistry) Attach(deviceID int, mask Source) {
	if _, ok := r.sources[deviceID]; !ok {
		r.order = append(r.order, deviceID)
	}
	r.sources[deviceID] = mask
}

// Detach removes a device.
func (r *StaticRegistry) Detach(deviceID int) {
	if _, ok := r.sources[deviceID]; !ok {
		return
	}
	delete(r.sources, deviceID)
	for i, id := range r.order {
		if id == deviceID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// DeviceIDs implements DeviceRegistry.
func (r *StaticRegistry) DeviceIDs() []int {
	out := make([]int, len(r.order))
	copy(out, r.order)
	return out
}

// Sources implements DeviceRegistry.
func (r *StaticRegistry) Sources(deviceID int) (Source, bool) {
	mask, ok := r.sources[deviceID]
	return mask, ok
}
