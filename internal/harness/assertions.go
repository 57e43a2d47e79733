package harness

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/balbirthomas/operator/internal/event"
	"github.com/balbirthomas/operator/internal/ir"
	"github.com/balbirthomas/operator/internal/relation"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEntry
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, entry := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s %s\n", i+1, entry.Type, entry.Kind, entry.Relation)
		}
	}
	return buf.String()
}

// AssertionContext gives assertions access to the harness after a run and to
// the relation ids bound to scenario aliases.
type AssertionContext struct {
	Ctx       context.Context
	Harness   *Harness
	Relations map[string]int
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error
		if actx == nil || actx.Harness == nil {
			err = fmt.Errorf("assertion[%d]: %s requires a harness", i, assertion.Type)
		} else {
			err = evaluateAssertion(result, assertion, actx)
		}
		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}

func evaluateAssertion(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertEventCount:
		return assertEventCount(result.Trace, a, actx)
	case AssertEventOrder:
		return assertEventOrder(result.Trace, a, actx)
	case AssertEventConfig:
		return assertEventConfig(a, actx)
	case AssertPayload:
		return assertPayload(a, actx)
	case AssertPayloadAbsent:
		return assertPayloadAbsent(a, actx)
	case AssertErrorLogs:
		return assertErrorLogs(a, actx)
	case AssertState:
		return assertState(a, actx)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// filteredEvents returns the recorded events on the assertion's relation
// (all relations when unset) in emission order.
func filteredEvents(a Assertion, actx *AssertionContext) []event.Event {
	var out []event.Event
	for _, ev := range actx.Harness.Events() {
		if a.Relation != "" && ev.Relation().ID != actx.Relations[a.Relation] {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func assertEventCount(trace []TraceEntry, a Assertion, actx *AssertionContext) error {
	events := filteredEvents(a, actx)
	count := len(events)
	if a.Kind != "" {
		kind, _ := event.ParseKind(a.Kind)
		count = 0
		for _, ev := range events {
			if ev.Kind() == kind {
				count++
			}
		}
	}
	if count == *a.Count {
		return nil
	}

	what := "events"
	if a.Kind != "" {
		what = a.Kind + " events"
	}
	return &AssertionError{
		Type:     AssertEventCount,
		Expected: fmt.Sprintf("%d %s%s", *a.Count, what, onRelation(a)),
		Actual:   fmt.Sprintf("%d %s", count, what),
		Trace:    trace,
	}
}

func assertEventOrder(trace []TraceEntry, a Assertion, actx *AssertionContext) error {
	var actual []string
	for _, ev := range filteredEvents(a, actx) {
		actual = append(actual, ev.Kind().Short())
	}
	expected := make([]string, len(a.Kinds))
	for i, k := range a.Kinds {
		kind, _ := event.ParseKind(k)
		expected[i] = kind.Short()
	}

	if strings.Join(actual, ",") == strings.Join(expected, ",") {
		return nil
	}
	return &AssertionError{
		Type:     AssertEventOrder,
		Expected: fmt.Sprintf("[%s]%s", strings.Join(expected, ", "), onRelation(a)),
		Actual:   fmt.Sprintf("[%s]", strings.Join(actual, ", ")),
		Trace:    trace,
	}
}

func assertEventConfig(a Assertion, actx *AssertionContext) error {
	events := filteredEvents(a, actx)
	index := -1
	if a.Index != nil {
		index = *a.Index
	}
	pos := index
	if pos < 0 {
		pos += len(events)
	}
	if pos < 0 || pos >= len(events) {
		return &AssertionError{
			Type:     AssertEventConfig,
			Expected: fmt.Sprintf("an event at index %d%s", index, onRelation(a)),
			Actual:   fmt.Sprintf("%d events", len(events)),
		}
	}

	available, ok := events[pos].(event.Available)
	if !ok {
		return &AssertionError{
			Type:     AssertEventConfig,
			Expected: fmt.Sprintf("available event at index %d", index),
			Actual:   fmt.Sprintf("%s event", events[pos].Kind().Short()),
		}
	}
	return compareFields(AssertEventConfig, a, available.Config, available.Ready, available.Provides)
}

func assertPayload(a Assertion, actx *AssertionContext) error {
	relID := actx.Relations[a.Relation]
	payload, ok, err := actx.Harness.ProviderPayload(actx.Ctx, relID)
	if err != nil {
		return fmt.Errorf("payload: %w", err)
	}
	if !ok {
		return &AssertionError{
			Type:     AssertPayload,
			Expected: fmt.Sprintf("%s on relation %q", ir.ProviderDataField, a.Relation),
			Actual:   "no payload published",
		}
	}
	return compareFields(AssertPayload, a, payload.Config, payload.Ready, payload.Provides)
}

func assertPayloadAbsent(a Assertion, actx *AssertionContext) error {
	relID := actx.Relations[a.Relation]
	data, err := actx.Harness.RelationData(actx.Ctx, relID, actx.Harness.App())
	if err != nil {
		return fmt.Errorf("payload_absent: %w", err)
	}
	raw, ok := data[ir.ProviderDataField]
	if !ok {
		return nil
	}
	return &AssertionError{
		Type:     AssertPayloadAbsent,
		Expected: fmt.Sprintf("no %s on relation %q", ir.ProviderDataField, a.Relation),
		Actual:   raw,
	}
}

func assertErrorLogs(a Assertion, actx *AssertionContext) error {
	count := actx.Harness.ErrorLogCount()
	if count == *a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertErrorLogs,
		Expected: fmt.Sprintf("%d error log lines", *a.Count),
		Actual:   fmt.Sprintf("%d error log lines", count),
	}
}

func assertState(a Assertion, actx *AssertionContext) error {
	if actx.Harness.Consumer() == nil {
		return fmt.Errorf("state: no consumer hosted")
	}
	state := actx.Harness.Consumer().State(actx.Relations[a.Relation])
	if state.String() == a.State {
		return nil
	}
	return &AssertionError{
		Type:     AssertState,
		Expected: fmt.Sprintf("%s on relation %q", a.State, a.Relation),
		Actual:   state.String(),
	}
}

func compareFields(kind string, a Assertion, config string, ready bool, provides map[string]string) error {
	var diffs []string
	if a.Config != nil && *a.Config != config {
		diffs = append(diffs, fmt.Sprintf("config %q, want %q", config, *a.Config))
	}
	if a.Ready != nil && *a.Ready != ready {
		diffs = append(diffs, fmt.Sprintf("ready %t, want %t", ready, *a.Ready))
	}
	if a.Provides != nil && !maps.Equal(a.Provides, provides) {
		diffs = append(diffs, fmt.Sprintf("provides %v, want %v", provides, a.Provides))
	}
	if len(diffs) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     kind,
		Expected: "matching fields" + onRelation(a),
		Actual:   strings.Join(diffs, "; "),
	}
}

func onRelation(a Assertion) string {
	if a.Relation == "" {
		return ""
	}
	return fmt.Sprintf(" on relation %q", a.Relation)
}

func parseState(s string) (relation.State, bool) {
	for _, st := range []relation.State{relation.StateUnset, relation.StateAvailable, relation.StateInvalid, relation.StateBroken} {
		if st.String() == s {
			return st, true
		}
	}
	return 0, false
}
