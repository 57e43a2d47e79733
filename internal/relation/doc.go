// Package relation implements capability negotiation between a Provider and a
// Consumer application over a shared relation bus.
//
// The Provider publishes a single JSON field, provider_data, holding the
// capabilities it offers, a ready flag and an opaque config token. Only the
// elected leader of the providing application may write it; leadership is
// re-checked on every write through a [LeadershipGate].
//
// The Consumer decodes the peer's provider_data whenever it changes (or when
// asked to re-evaluate after an upgrade), matches it against the capabilities
// it requires, and emits exactly one event per relation instance per trigger:
//
//	Unset -> Available | Invalid -> ... -> Broken (terminal)
//
// Version matching is exact string equality. Absent or undecodable data is
// treated as Invalid.
package relation
