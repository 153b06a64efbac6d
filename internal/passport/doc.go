// Package passport implements the health passport record store on top of
// a ledger.State.
//
// A Record lives at its id. Creation also writes a presence entry in the
// "country~id" composite index. The two writes are issued one after the
// other; if the index write fails the primary record stays visible without
// its index entry until the enclosing transaction is aborted by the caller.
//
// The store holds no state of its own between calls. Every operation is a
// function of the ledger view it was given and its arguments.
package passport
