// Package coordinator turns poll results into per-side sensor state.
//
// It owns the latest status of each bed side and the hub, the availability of
// each side, and the fixed set of devices and entities registered with the
// host platform. Publishers receive every entity's value after each cycle.
//
// The main components are:
//
//   - [Coordinator]: applies [poller.Result]s and answers value reads
//   - [Device]: one registered device per side, plus the hub
//   - [Entity]: a single sensor reading through its coordinator
//   - [Publisher]: sink for registrations and value updates
//
// Users of the podbridge library should not need to interact with this
// package directly.
package coordinator
