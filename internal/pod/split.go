package pod

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/guregu/null"
)

// errAbsent marks a key that is missing or explicitly null.
var errAbsent = errors.New("absent")

// Snapshot is one status payload split into its sides and hub.
//
// A nil side pointer means the side is absent for this cycle: its object was
// missing, was not an object, or produced no valid field at all.
type Snapshot struct {
	Left  *SideStatus
	Right *SideStatus
	Hub   HubStatus

	// Missing lists every consumed field that did not produce a value,
	// including the fields of absent sides.
	Missing []FieldMissing
}

// Side returns the status of the given physical side, or nil if absent.
func (s Snapshot) Side(side Side) *SideStatus {
	switch side {
	case SideLeft:
		return s.Left
	case SideRight:
		return s.Right
	default:
		return nil
	}
}

// Split maps a raw payload onto per-side and hub values.
//
// Sides are read from the nested "left" and "right" objects, hub values
// from the top level. Every field is decoded independently.
func Split(raw RawPayload) Snapshot {
	var snap Snapshot
	snap.Left = splitSide(SideLeft, raw[string(SideLeft)], &snap.Missing)
	snap.Right = splitSide(SideRight, raw[string(SideRight)], &snap.Missing)
	snap.Hub = splitHub(raw, &snap.Missing)
	return snap
}

func splitSide(side Side, data json.RawMessage, missing *[]FieldMissing) *SideStatus {
	var obj map[string]json.RawMessage
	if len(data) == 0 || json.Unmarshal(data, &obj) != nil || obj == nil {
		for _, f := range SideFields {
			*missing = append(*missing, FieldMissing{Side: side, Field: f})
		}
		return nil
	}

	note := func(f Field, err error) {
		if err == nil {
			return
		}
		m := FieldMissing{Side: side, Field: f}
		if !errors.Is(err, errAbsent) {
			m.Err = err
		}
		*missing = append(*missing, m)
	}

	var st SideStatus
	var err error
	st.CurrentTemperatureF, err = decodeFloat(obj[string(FieldCurrentTemperatureF)])
	note(FieldCurrentTemperatureF, err)
	st.TargetTemperatureF, err = decodeFloat(obj[string(FieldTargetTemperatureF)])
	note(FieldTargetTemperatureF, err)
	st.SecondsRemaining, err = decodeCount(obj[string(FieldSecondsRemaining)])
	note(FieldSecondsRemaining, err)
	st.IsAlarmVibrating, err = decodeBool(obj[string(FieldIsAlarmVibrating)])
	note(FieldIsAlarmVibrating, err)
	st.IsOn, err = decodeBool(obj[string(FieldIsOn)])
	note(FieldIsOn, err)

	if st.validCount() == 0 {
		return nil
	}
	return &st
}

func splitHub(raw RawPayload, missing *[]FieldMissing) HubStatus {
	note := func(f Field, err error) {
		if err == nil {
			return
		}
		m := FieldMissing{Side: SideHub, Field: f}
		if !errors.Is(err, errAbsent) {
			m.Err = err
		}
		*missing = append(*missing, m)
	}

	var hub HubStatus
	var err error
	hub.IsPriming, err = decodeBool(raw[string(FieldIsPriming)])
	note(FieldIsPriming, err)
	hub.WaterLevel, err = decodeBool(raw[string(FieldWaterLevel)])
	note(FieldWaterLevel, err)
	hub.SensorLabel, err = decodeLabel(raw[string(FieldSensorLabel)])
	note(FieldSensorLabel, err)
	return hub
}

// isAbsent reports whether a raw value is missing or JSON null.
func isAbsent(data json.RawMessage) bool {
	return len(data) == 0 || string(data) == "null"
}

func decodeFloat(data json.RawMessage) (null.Float, error) {
	if isAbsent(data) {
		return null.Float{}, errAbsent
	}
	var f null.Float
	if err := json.Unmarshal(data, &f); err != nil {
		return null.Float{}, fmt.Errorf("not a number: %w", err)
	}
	if !f.Valid {
		return null.Float{}, errAbsent
	}
	// numeric strings go through ParseFloat, which also accepts "NaN" and "Inf"
	if math.IsNaN(f.Float64) || math.IsInf(f.Float64, 0) {
		return null.Float{}, fmt.Errorf("not a finite number: %s", data)
	}
	return f, nil
}

// decodeCount accepts any non-negative integral number that fits in an
// int64, including 1200.0.
func decodeCount(data json.RawMessage) (null.Int, error) {
	f, err := decodeFloat(data)
	if err != nil {
		return null.Int{}, err
	}
	// float64(math.MaxInt64) rounds up to 2^63, which no longer fits
	if f.Float64 < 0 || f.Float64 >= math.MaxInt64 || f.Float64 != math.Trunc(f.Float64) {
		return null.Int{}, fmt.Errorf("not a non-negative integer: %v", f.Float64)
	}
	return null.IntFrom(int64(f.Float64)), nil
}

// decodeBool accepts JSON booleans and the "true"/"false" strings some
// firmware versions send.
func decodeBool(data json.RawMessage) (null.Bool, error) {
	if isAbsent(data) {
		return null.Bool{}, errAbsent
	}
	var b null.Bool
	if err := json.Unmarshal(data, &b); err == nil {
		if !b.Valid {
			return null.Bool{}, errAbsent
		}
		return b, nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return null.Bool{}, fmt.Errorf("not a boolean: %s", data)
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return null.Bool{}, fmt.Errorf("not a boolean: %q", s)
	}
	return null.BoolFrom(parsed), nil
}

// decodeLabel strips the extra quoting the service wraps around the label.
func decodeLabel(data json.RawMessage) (null.String, error) {
	if isAbsent(data) {
		return null.String{}, errAbsent
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return null.String{}, fmt.Errorf("not a string: %s", data)
	}
	return null.StringFrom(strings.Trim(s, `"`)), nil
}
