// Package harness runs YAML scenarios against the chaincode and compares
// their traces with golden files.
//
// # Scenario Format
//
//	name: passport_lifecycle
//	description: "What this scenario validates"
//	backend: memory            # memory (default), sqlite or leveldb
//	tx_prefix: tx              # prefix of the deterministic tx ids
//	setup:
//	  - invoke: create
//	    args: [p0, Ana, Lopez, 1990-01-01, https://docs.example/p0, S-0, MX, h0]
//	flow:
//	  - invoke: setValidationState
//	    args: [p0, "", VALID]
//	    expect:
//	      code: OK
//	  - invoke: read
//	    args: [ghost]
//	    expect:
//	      code: NOT_FOUND
//	assertions:
//	  - type: final_state
//	    id: p0
//	    expect: { validationState: VALID }
//	  - type: history_count
//	    id: p0
//	    count: 2
//
// Setup steps must succeed and are not traced. Flow steps are traced and
// checked against their expect clause; a step without one must succeed.
//
// # Assertion Types
//
//   - trace_count: operation appears exactly count times in the trace
//   - trace_order: operations appear in the trace in this order
//   - final_state: the decoded record at id contains the expect fields
//   - history_count: id has exactly count history entries
//   - index_contains: the country index lists exactly ids
//
// # Deterministic Testing
//
// Every scenario runs on fresh storage with sequential tx ids
// (testutil.TxIDSequence) and a stepping clock (testutil.DeterministicClock),
// so the same scenario always yields a byte-identical trace.
package harness
