package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, src string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(src))
	require.NoError(t, err)
	return s
}

func TestRun_UnexpectedStatusFails(t *testing.T) {
	s := mustParse(t, `
name: wrong_expectation
description: "read of a missing passport is expected to succeed"
flow:
  - invoke: read
    args: [ghost]
`)
	result, err := Run(t.Context(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected OK, got NOT_FOUND")
}

func TestRun_PayloadMismatchFails(t *testing.T) {
	s := mustParse(t, `
name: payload_mismatch
description: "payload subset comparison reports the failing path"
setup:
  - invoke: create
    args: [p1, Ana, Lopez, "1990-01-01", "https://docs.example/p1", S-1, MX, abc]
flow:
  - invoke: read
    args: [p1]
    expect:
      code: OK
      payload: { country: CA }
`)
	result, err := Run(t.Context(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "payload.country: expected CA, got MX")
}

func TestRun_SetupFailureIsAnError(t *testing.T) {
	s := mustParse(t, `
name: broken_setup
description: "setup must succeed"
setup:
  - invoke: read
    args: [ghost]
flow:
  - invoke: read
    args: [ghost]
    expect: { code: NOT_FOUND }
`)
	_, err := Run(t.Context(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup step 0 (read)")
}

func TestRun_FailedAssertions(t *testing.T) {
	s := mustParse(t, `
name: failed_assertions
description: "every failing assertion is reported"
flow:
  - invoke: create
    args: [p1, Ana, Lopez, "1990-01-01", "https://docs.example/p1", S-1, MX, abc]
assertions:
  - type: trace_count
    operation: create
    count: 2
  - type: trace_order
    operations: [read, create]
  - type: final_state
    id: p1
    expect: { validationState: VALID }
  - type: final_state
    id: ghost
    expect: { country: MX }
  - type: history_count
    id: p1
    count: 3
  - type: index_contains
    country: MX
    ids: []
`)
	result, err := Run(t.Context(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 6)
	assert.Contains(t, result.Errors[0], "create invoked 2 times")
	assert.Contains(t, result.Errors[1], "read not found")
	assert.Contains(t, result.Errors[2], "p1.validationState: expected VALID, got NOT_VALIDATED")
	assert.Contains(t, result.Errors[3], "NOT_FOUND")
	assert.Contains(t, result.Errors[4], "3 history entries for p1")
	assert.Contains(t, result.Errors[5], "[p1]")
}

func TestDecodePayload(t *testing.T) {
	assert.Nil(t, decodePayload(nil))
	assert.Equal(t, "not json", decodePayload([]byte("not json")))
	assert.Equal(t, "{} trailing", decodePayload([]byte("{} trailing")))
	assert.Equal(t, map[string]any{"n": int64(3), "f": "1.5", "ok": true}, decodePayload([]byte(`{"n":3,"f":1.5,"ok":true}`)))
	assert.Equal(t, []any{}, decodePayload([]byte("[]")))
}

func TestMatchSubset(t *testing.T) {
	actual := map[string]any{"id": "p1", "n": int64(2), "tags": []any{"a", "b"}}

	assert.NoError(t, matchSubset(map[string]any{"id": "p1"}, actual, "$"))
	assert.NoError(t, matchSubset(map[string]any{"n": 2}, actual, "$"))
	assert.NoError(t, matchSubset(map[string]any{"tags": []any{"a", "b"}}, actual, "$"))

	assert.ErrorContains(t, matchSubset(map[string]any{"missing": "x"}, actual, "$"), "$.missing: missing")
	assert.ErrorContains(t, matchSubset(map[string]any{"tags": []any{"a"}}, actual, "$"), "expected 1 elements, got 2")
	assert.ErrorContains(t, matchSubset([]any{}, actual, "$"), "expected list")
	assert.ErrorContains(t, matchSubset(map[string]any{"id": "p2"}, actual, "$"), "$.id: expected p2, got p1")
}
