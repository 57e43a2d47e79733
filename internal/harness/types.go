package harness

// Trace entry types.
const (
	TraceTypeTrigger = "trigger"
	TraceTypePublish = "publish"
	TraceTypeEvent   = "event"
)

// TraceEntry is one observable step of a harness run: a dispatched trigger,
// a write to the local application's relation bucket, or an emitted event.
type TraceEntry struct {
	Type string `json:"type"`

	// Seq is the sequence number of the latest trigger. Publishes made
	// directly through the Provider between triggers share it.
	Seq int64 `json:"seq"`

	// Kind is the trigger kind or event kind (short form).
	Kind string `json:"kind,omitempty"`

	// Relation is "name:id", empty for application-wide triggers.
	Relation string `json:"relation,omitempty"`

	// Data holds entry attributes: the written field and value for publishes,
	// event data for Available.
	Data map[string]any `json:"data,omitempty"`
}

// Result is the outcome of running a scenario.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	Trace []TraceEntry `json:"trace"`

	// Errors holds assertion failure messages.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result with an empty trace.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEntry{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
