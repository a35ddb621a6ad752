// Package sim provides the deterministic discrete-event engine that simulates
// fault propagation across a publish/subscribe graph of cooperating nodes.
//
// # Reading Guide
//
// Start with these three files to understand the simulation kernel:
//   - node.go: per-node state machine (watchdogs, last-received values, callbacks)
//   - bus.go: the delayed message-delivery schedule
//   - executor.go: the tick loop that drives injection, delivery, loops and snapshots
//
// # Architecture
//
// The engine is fully single-threaded and advances one integer tick at a time.
// Nodes never hold references to each other; the derived edge structure uses
// declaration indices, so cyclic graphs carry no cyclic ownership. A single
// seeded Sampler (rng.go) is the only shared state, threaded explicitly into
// publish sampling so that identical inputs produce byte-identical outputs.
//
// Fault injection (fault.go) is an overlay over the publish and receive paths:
// publish-side faults drop or override a counted number of publications,
// receive-side faults delay or discard inbound deliveries, and loop/crash
// faults suppress a node's own activity. Faults come either from an external
// config installed at its injection tick, or from a subscription callback
// reacting to invalid or lost input.
//
// Per-tick observables are recorded by the FeatureRecorder (features.go) as a
// fixed-width integer vector per node; the recorder also emits the derived
// edge index and the run's fault label for downstream dataset assembly.
package sim
