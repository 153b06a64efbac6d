package harness

// StatusOK is the trace status of a successful step.
const StatusOK = "OK"

// TraceEvent records one executed flow step.
type TraceEvent struct {
	Seq       int64    `json:"seq"`
	Operation string   `json:"operation"`
	Args      []string `json:"args"`
	TxID      string   `json:"tx_id"`

	// Status is StatusOK or the error code of the failure.
	Status string `json:"status"`

	// Message is the failure message; empty on success.
	Message string `json:"message,omitempty"`

	// Payload is the decoded JSON payload, or the raw payload as a string
	// when it is not JSON. Nil when the operation returned nothing.
	Payload any `json:"payload,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains the flow steps in execution order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step to the trace.
func (r *Result) AddTrace(event TraceEvent) {
	r.Trace = append(r.Trace, event)
}
