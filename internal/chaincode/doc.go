// Package chaincode maps named operations with positional string arguments
// onto the passport store.
//
// Dispatch runs one operation against a ledger.State. Execute wraps it in
// a ledger transaction that commits on success and aborts on failure.
// Invoke and Init return shim-style Responses for callers that want a
// status code instead of an error.
package chaincode
