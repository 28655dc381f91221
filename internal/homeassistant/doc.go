// Package homeassistant publishes pod devices to Home Assistant over MQTT.
//
// Every entity gets a retained discovery config under
// <discovery>/sensor/<uid>/config or <discovery>/binary_sensor/<uid>/config,
// a retained state topic <prefix>/<uid>/state and an availability topic
// <prefix>/<uid>/availability carrying "online" or "offline". The bridge
// itself reports on <prefix>/status, with an "offline" last will.
package homeassistant
