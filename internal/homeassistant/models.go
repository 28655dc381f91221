package homeassistant

type deviceBlock struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

type availabilityEntry struct {
	Topic string `json:"topic"`
}

// discoveryConfig is the retained payload on <discovery>/<component>/<uid>/config.
type discoveryConfig struct {
	UniqueID          string              `json:"unique_id"`
	ObjectID          string              `json:"object_id"`
	Name              string              `json:"name"`
	StateTopic        string              `json:"state_topic"`
	Availability      []availabilityEntry `json:"availability"`
	AvailabilityMode  string              `json:"availability_mode"`
	DeviceClass       string              `json:"device_class,omitempty"`
	UnitOfMeasurement string              `json:"unit_of_measurement,omitempty"`
	StateClass        string              `json:"state_class,omitempty"`
	PayloadOn         string              `json:"payload_on,omitempty"`
	PayloadOff        string              `json:"payload_off,omitempty"`
	Device            deviceBlock         `json:"device"`
}
