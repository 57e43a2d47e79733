// Package engine dispatches lifecycle triggers to registered handlers.
//
// A trigger (relation-joined, relation-changed, relation-broken, upgrade,
// leader-elected) is stamped with an ID and a logical sequence number and then
// handed to every registered handler in registration order. One trigger is
// processed completely before the next one starts, either synchronously via
// [Engine.Dispatch] or through the FIFO queue drained by [Engine.Run].
//
// Handlers never run concurrently with each other. Components behind them
// (Provider, Consumer) therefore hold no locks of their own.
package engine
