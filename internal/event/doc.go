// Package event defines the closed set of events a Consumer emits for a
// relation instance and the emitter that delivers them to observers.
//
// # Main Types
//
//   - [Event]: sealed interface implemented only by [Available], [Invalid] and [Broken]
//   - [Emitter]: synchronous typed subscription table with panic-safe dispatch
//   - [Log]: application-owned ordered record of received events
//
// Observers register with [Emitter.OnAvailable], [Emitter.OnInvalid] and
// [Emitter.OnBroken] to receive concrete types without type switches, or with
// [Emitter.SubscribeAll] to see every event in emission order.
package event
