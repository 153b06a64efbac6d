package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/healthpass/internal/ledger"
	"github.com/roach88/healthpass/internal/passport"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %v -> %s\n", event.Seq, event.Operation, event.Args, event.Status)
		}
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages. State assertions read the ledger through fresh transactions
// that are never committed.
func EvaluateAssertions(ctx context.Context, result *Result, assertions []Assertion, l *ledger.Ledger) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertFinalState:
			err = assertFinalState(ctx, l, a)
		case AssertHistoryCount:
			err = assertHistoryCount(ctx, l, a)
		case AssertIndexContains:
			err = assertIndexContains(ctx, l, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

// assertTraceCount checks the operation appears exactly Count times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Operation == a.Operation {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%s invoked %d times", a.Operation, a.Count),
			Actual:   fmt.Sprintf("%d times", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceOrder checks operations appear in order. Intervening steps are
// allowed.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, event := range trace {
		if next < len(a.Operations) && event.Operation == a.Operations[next] {
			next++
		}
	}
	if next < len(a.Operations) {
		return &AssertionError{
			Type:     AssertTraceOrder,
			Expected: fmt.Sprintf("operations in order: %v", a.Operations),
			Actual:   fmt.Sprintf("%s not found after %v", a.Operations[next], a.Operations[:next]),
			Trace:    trace,
		}
	}
	return nil
}

func assertFinalState(ctx context.Context, l *ledger.Ledger, a Assertion) error {
	r, err := passport.NewStore(l.Begin()).Get(ctx, a.ID)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("passport %s", a.ID),
			Actual:   err.Error(),
		}
	}
	data, err := passport.Encode(r)
	if err != nil {
		return err
	}
	if err := matchSubset(a.Expect, decodePayload(data), a.ID); err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%v", a.Expect),
			Actual:   err.Error(),
		}
	}
	return nil
}

func assertHistoryCount(ctx context.Context, l *ledger.Ledger, a Assertion) error {
	entries, err := passport.NewStore(l.Begin()).History(ctx, a.ID)
	if err != nil {
		return err
	}
	if len(entries) != a.Count {
		return &AssertionError{
			Type:     AssertHistoryCount,
			Expected: fmt.Sprintf("%d history entries for %s", a.Count, a.ID),
			Actual:   fmt.Sprintf("%d", len(entries)),
		}
	}
	return nil
}

func assertIndexContains(ctx context.Context, l *ledger.Ledger, a Assertion) error {
	ids, err := passport.CountryID.IDs(ctx, l.Begin(), a.Country)
	if err != nil {
		return err
	}
	if !slices.Equal(ids, a.IDs) {
		return &AssertionError{
			Type:     AssertIndexContains,
			Expected: fmt.Sprintf("%s index for %q = %v", passport.CountryIDIndex, a.Country, a.IDs),
			Actual:   fmt.Sprintf("%v", ids),
		}
	}
	return nil
}

// matchSubset compares an expectation parsed from YAML with a decoded
// payload. Maps match when every expected key matches; lists must have the
// same length and match element-wise.
func matchSubset(expected, actual any, path string) error {
	switch exp := expected.(type) {
	case map[string]any:
		act, ok := actual.(map[string]any)
		if !ok {
			return fmt.Errorf("%s: expected object, got %T", path, actual)
		}
		for k, v := range exp {
			got, ok := act[k]
			if !ok {
				return fmt.Errorf("%s.%s: missing", path, k)
			}
			if err := matchSubset(v, got, path+"."+k); err != nil {
				return err
			}
		}
		return nil
	case []any:
		act, ok := actual.([]any)
		if !ok {
			return fmt.Errorf("%s: expected list, got %T", path, actual)
		}
		if len(act) != len(exp) {
			return fmt.Errorf("%s: expected %d elements, got %d", path, len(exp), len(act))
		}
		for i := range exp {
			if err := matchSubset(exp[i], act[i], fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		return nil
	case int:
		if n, ok := actual.(int64); ok && n == int64(exp) {
			return nil
		}
	default:
		if expected == actual {
			return nil
		}
	}
	return fmt.Errorf("%s: expected %v, got %v", path, expected, actual)
}
