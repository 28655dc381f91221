package coordinator

import "github.com/jpalmerr/podbridge/internal/pod"

// Definition describes one sensor exposed on a device.
type Definition struct {
	// Key is the stable snake_case suffix of the entity's unique id.
	Key string

	// Name is the human readable sensor name, without the side prefix.
	Name string

	// Field is the upstream JSON key the value comes from.
	Field pod.Field

	Unit        string
	DeviceClass string

	// Binary marks on/off sensors.
	Binary bool
}

// SideDefinitions are the sensors created for each physical side.
var SideDefinitions = []Definition{
	{
		Key:         "current_temp_f",
		Name:        "Current Temperature (F)",
		Field:       pod.FieldCurrentTemperatureF,
		Unit:        "°F",
		DeviceClass: "temperature",
	},
	{
		Key:         "target_temp_f",
		Name:        "Target Temperature (F)",
		Field:       pod.FieldTargetTemperatureF,
		Unit:        "°F",
		DeviceClass: "temperature",
	},
	{
		Key:   "seconds_remaining",
		Name:  "Seconds Remaining",
		Field: pod.FieldSecondsRemaining,
		Unit:  "s",
	},
	{
		Key:    "is_alarm_vibrating",
		Name:   "Alarm Vibrating",
		Field:  pod.FieldIsAlarmVibrating,
		Binary: true,
	},
	{
		Key:    "is_on",
		Name:   "Device On",
		Field:  pod.FieldIsOn,
		Binary: true,
	},
}

// HubDefinitions are the device-wide sensors.
var HubDefinitions = []Definition{
	{
		Key:    "is_priming",
		Name:   "Is Priming",
		Field:  pod.FieldIsPriming,
		Binary: true,
	},
	{
		Key:    "water_level",
		Name:   "Water Level",
		Field:  pod.FieldWaterLevel,
		Binary: true,
	},
	{
		Key:   "sensor_label",
		Name:  "Sensor Label",
		Field: pod.FieldSensorLabel,
	},
}
