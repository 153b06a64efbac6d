package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/roach88/healthpass/internal/chaincode"
	"github.com/roach88/healthpass/internal/config"
	"github.com/roach88/healthpass/internal/ledger"
	"github.com/roach88/healthpass/internal/passport"
	"github.com/roach88/healthpass/internal/testutil"
)

// Harness executes one scenario.
type Harness struct {
	ledger    *ledger.Ledger
	chaincode *chaincode.Chaincode
	logger    *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs on fresh storage for isolation. Deterministic helpers
// ensure reproducible results.
//
// Execution flow:
// 1. Open fresh storage for the scenario's backend
// 2. Execute setup steps (each must succeed)
// 3. Execute flow steps with expect validation
// 4. Evaluate assertions against the trace and the ledger
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	backend, err := openBackend(scenario.Backend)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s backend: %w", scenario.Backend, err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	l := ledger.New(backend,
		ledger.WithTxIDSource(testutil.NewTxIDSequence(scenario.TxPrefix).Next),
		ledger.WithClock(testutil.NewDeterministicClock().Now),
		ledger.WithLogger(logger),
	)
	defer l.Close()

	h := &Harness{
		ledger:    l,
		chaincode: chaincode.New(logger),
		logger:    logger,
	}

	if err := h.executeSetup(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	result := NewResult()
	h.executeFlow(ctx, scenario.Flow, result)

	for _, msg := range EvaluateAssertions(ctx, result, scenario.Assertions, l) {
		result.AddError(msg)
	}

	return result, nil
}

func openBackend(name string) (ledger.Backend, error) {
	switch name {
	case "", config.BackendMemory:
		return ledger.NewMemory(), nil
	case config.BackendSQLite:
		return ledger.OpenSQLite(":memory:")
	case config.BackendLevelDB:
		return ledger.OpenLevelDBMemory()
	}
	return nil, fmt.Errorf("unknown backend %q", name)
}

// executeSetup runs all setup steps. They are not traced.
func (h *Harness) executeSetup(ctx context.Context, setup []Step) error {
	for i, step := range setup {
		if _, err := h.chaincode.Execute(ctx, h.ledger, step.Invoke, step.Args); err != nil {
			return fmt.Errorf("setup step %d (%s): %w", i, step.Invoke, err)
		}
	}
	return nil
}

// executeFlow runs all flow steps, traces them and validates expect
// clauses.
func (h *Harness) executeFlow(ctx context.Context, flow []Step, result *Result) {
	for i, step := range flow {
		res, err := h.chaincode.Execute(ctx, h.ledger, step.Invoke, step.Args)

		event := TraceEvent{
			Seq:       int64(i + 1),
			Operation: step.Invoke,
			Args:      step.Args,
			TxID:      res.TxID,
			Status:    statusOf(err),
			Payload:   decodePayload(res.Payload),
		}
		if event.Args == nil {
			event.Args = []string{}
		}
		if err != nil {
			event.Message = err.Error()
		}
		result.AddTrace(event)

		expected := &Expect{Code: StatusOK}
		if step.Expect != nil {
			expected = step.Expect
		}
		if event.Status != expected.Code {
			result.AddError(fmt.Sprintf("flow[%d] %s: expected %s, got %s (%s)",
				i, step.Invoke, expected.Code, event.Status, event.Message))
		} else if expected.Payload != nil {
			if err := matchSubset(expected.Payload, event.Payload, "payload"); err != nil {
				result.AddError(fmt.Sprintf("flow[%d] %s: %v", i, step.Invoke, err))
			}
		}

		h.logger.Info("flow step completed",
			"step", i,
			"operation", step.Invoke,
			"tx_id", res.TxID,
			"status", event.Status,
		)
	}
}

// statusOf returns StatusOK, the error code of a typed failure, or ERROR.
func statusOf(err error) string {
	if err == nil {
		return StatusOK
	}
	if code := passport.CodeOf(err); code != "" {
		return string(code)
	}
	return "ERROR"
}

// decodePayload turns a payload into canonical-JSON-compatible values.
// Integral numbers become int64; other numbers stay as their literal text.
func decodePayload(payload []byte) any {
	if len(payload) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return string(payload)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return string(payload)
	}
	return normalize(v)
}

func normalize(v any) any {
	switch val := v.(type) {
	case json.Number:
		if n, err := strconv.ParseInt(string(val), 10, 64); err == nil {
			return n
		}
		return string(val)
	case []any:
		for i := range val {
			val[i] = normalize(val[i])
		}
		return val
	case map[string]any:
		for k := range val {
			val[k] = normalize(val[k])
		}
		return val
	}
	return v
}
