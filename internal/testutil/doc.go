// Package testutil holds deterministic helpers shared by the scenario harness
// and package tests: a resettable logical clock and a slog handler that
// records what was logged.
package testutil
