// Package poller fetches the pod's status document on a fixed schedule.
//
// This package is internal to podbridge. It owns the network side of a poll
// cycle and nothing else: mapping the payload onto sensors is the
// coordinator's job.
//
// The main components are:
//
//   - [Client]: HTTP client wrapper with per-request timeout and size limit
//   - [FetchError]: classified fetch failure (unreachable, timeout, bad response)
//   - [Scheduler]: strictly serialized poll loop with a reschedulable interval
//   - [Result]: outcome of a single poll cycle
//
// Users of the podbridge library should not need to interact with this
// package directly. Configuration is done through the main podbridge package.
package poller
