// Package harness hosts one application in process and drives the relation
// lifecycle around it, the way a unit test of a charm-style application
// would: relations are added, remote units join, the remote application
// writes data, leadership moves, the application is upgraded and relations
// are torn down.
//
// Every lifecycle call is dispatched synchronously through the trigger
// engine against an in-memory store, with a deterministic clock and trigger
// IDs, so traces are identical across runs.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: consumer_available
//	description: "Consumer accepts a provider offering the exact version"
//	app: webapp
//	role: consumer
//	relation:
//	  name: service
//	  interface: service
//	capabilities:
//	  v: "1.0.0"
//	leader: true
//	steps:
//	  - action: add_relation
//	    relation: svc
//	    remote_app: provider
//	  - action: add_unit
//	    relation: svc
//	    unit: provider/0
//	  - action: update_data
//	    relation: svc
//	    payload:
//	      provides: { v: "1.0.0" }
//	      ready: true
//	      config: provider_config
//	assertions:
//	  - type: event_order
//	    kinds: [available]
//	  - type: event_config
//	    config: provider_config
//
// Step actions: add_relation, add_unit, update_data, set_ready,
// set_capabilities, set_config, set_required, set_leader, upgrade and
// remove_relation.
//
// # Assertion Types
//
//   - event_count: number of events, optionally by relation and kind
//   - event_order: exact sequence of event kinds
//   - event_config: fields of an Available event (last by default)
//   - payload: fields of the provider_data the application published
//   - payload_absent: nothing was published on a relation
//   - error_logs: number of error-level log lines
//   - state: the consumer's state for a relation
//
// # Golden Traces
//
// Each run records a trace of triggers, publishes and events. RunWithGolden
// compares it, as canonical JSON, with testdata/scenarios/golden/<name>.golden.
package harness
