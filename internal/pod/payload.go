package pod

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/guregu/null"
)

// Side identifies which half of the bed a value belongs to.
//
// [SideHub] is not a physical side; it groups the fields that describe the
// pod as a whole.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
	SideHub   Side = "hub"
)

// Sides lists the physical bed sides in publication order.
var Sides = []Side{SideLeft, SideRight}

// String returns the string representation of the side.
func (s Side) String() string {
	return string(s)
}

// Field is the upstream JSON key of a consumed value.
type Field string

// per-side fields
const (
	FieldCurrentTemperatureF Field = "currentTemperatureF"
	FieldTargetTemperatureF  Field = "targetTemperatureF"
	FieldSecondsRemaining    Field = "secondsRemaining"
	FieldIsAlarmVibrating    Field = "isAlarmVibrating"
	FieldIsOn                Field = "isOn"
)

// hub fields
const (
	FieldIsPriming   Field = "isPriming"
	FieldWaterLevel  Field = "waterLevel"
	FieldSensorLabel Field = "sensorLabel"
)

// SideFields lists the fields read for each physical side.
var SideFields = []Field{
	FieldCurrentTemperatureF,
	FieldTargetTemperatureF,
	FieldSecondsRemaining,
	FieldIsAlarmVibrating,
	FieldIsOn,
}

// HubFields lists the device-wide fields read from the top-level object.
var HubFields = []Field{
	FieldIsPriming,
	FieldWaterLevel,
	FieldSensorLabel,
}

// RawPayload is the top-level JSON object returned by the status endpoint,
// keyed by field name with values left undecoded.
type RawPayload map[string]json.RawMessage

// ErrNotObject is returned by [DecodePayload] when the body is valid JSON
// but not an object.
var ErrNotObject = errors.New("status payload is not a JSON object")

// DecodePayload parses a response body into a [RawPayload].
//
// Only the top level is decoded here; individual fields are interpreted by
// [Split] so that one bad field cannot reject the whole document.
func DecodePayload(body []byte) (RawPayload, error) {
	var raw RawPayload
	if err := json.Unmarshal(body, &raw); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, ErrNotObject
		}
		return nil, fmt.Errorf("invalid status JSON: %w", err)
	}
	// a literal null decodes into a nil map without error
	if raw == nil {
		return nil, ErrNotObject
	}
	return raw, nil
}

// SideStatus holds the typed values of one bed side.
//
// Each field carries its own validity flag. An invalid field was missing or
// could not be coerced and must be reported as unavailable.
type SideStatus struct {
	CurrentTemperatureF null.Float `json:"currentTemperatureF"`
	TargetTemperatureF  null.Float `json:"targetTemperatureF"`
	SecondsRemaining    null.Int   `json:"secondsRemaining"`
	IsAlarmVibrating    null.Bool  `json:"isAlarmVibrating"`
	IsOn                null.Bool  `json:"isOn"`
}

// Value returns the value of a per-side field and whether it is valid.
//
// Numeric fields are returned as float64 or int64, flags as bool.
func (s SideStatus) Value(f Field) (any, bool) {
	switch f {
	case FieldCurrentTemperatureF:
		return s.CurrentTemperatureF.Float64, s.CurrentTemperatureF.Valid
	case FieldTargetTemperatureF:
		return s.TargetTemperatureF.Float64, s.TargetTemperatureF.Valid
	case FieldSecondsRemaining:
		return s.SecondsRemaining.Int64, s.SecondsRemaining.Valid
	case FieldIsAlarmVibrating:
		return s.IsAlarmVibrating.Bool, s.IsAlarmVibrating.Valid
	case FieldIsOn:
		return s.IsOn.Bool, s.IsOn.Valid
	default:
		return nil, false
	}
}

// validCount reports how many fields decoded successfully.
func (s SideStatus) validCount() int {
	n := 0
	for _, f := range SideFields {
		if _, ok := s.Value(f); ok {
			n++
		}
	}
	return n
}

// HubStatus holds the device-wide values of the pod.
type HubStatus struct {
	IsPriming   null.Bool   `json:"isPriming"`
	WaterLevel  null.Bool   `json:"waterLevel"`
	SensorLabel null.String `json:"sensorLabel"`
}

// Value returns the value of a hub field and whether it is valid.
func (h HubStatus) Value(f Field) (any, bool) {
	switch f {
	case FieldIsPriming:
		return h.IsPriming.Bool, h.IsPriming.Valid
	case FieldWaterLevel:
		return h.WaterLevel.Bool, h.WaterLevel.Valid
	case FieldSensorLabel:
		return h.SensorLabel.String, h.SensorLabel.Valid
	default:
		return nil, false
	}
}

// FieldMissing reports a consumed field that could not produce a value.
//
// It is never fatal: only the named field degrades.
type FieldMissing struct {
	Side  Side
	Field Field
	// Err is the coercion failure, nil if the key was absent or null.
	Err error
}

// Error implements the error interface.
func (m FieldMissing) Error() string {
	if m.Err != nil {
		return fmt.Sprintf("%s.%s: %v", m.Side, m.Field, m.Err)
	}
	return fmt.Sprintf("%s.%s: field missing", m.Side, m.Field)
}

// Unwrap returns the underlying coercion error.
func (m FieldMissing) Unwrap() error {
	return m.Err
}
