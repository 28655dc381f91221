// Package pod interprets the JSON document served by the pod's local status
// endpoint.
//
// The upstream schema is owned by the companion service and is treated as
// loosely typed: every consumed field is optional and decoded on its own.
// [Split] is the only place that knows how the payload is keyed, so schema
// drift stays a one-function change.
//
// The main components are:
//
//   - [RawPayload]: undecoded top-level JSON object returned by the fetcher
//   - [SideStatus]: typed values for one side of the bed
//   - [HubStatus]: device-wide values (priming, water level, sensor label)
//   - [Snapshot]: result of splitting one payload into sides and hub
//   - [FieldMissing]: a consumed field that was absent, null or mistyped
package pod
