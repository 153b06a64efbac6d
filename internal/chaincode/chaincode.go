package chaincode

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/healthpass/internal/ledger"
	"github.com/roach88/healthpass/internal/passport"
)

// Response status codes.
const (
	OK    int32 = 200
	ERROR int32 = 500
)

// Response is the outcome of an invocation as seen by the invocation layer.
type Response struct {
	Status  int32  `json:"status"`
	Message string `json:"message,omitempty"`
	Payload []byte `json:"payload,omitempty"`
}

// Success returns an OK response carrying payload.
func Success(payload []byte) Response {
	return Response{Status: OK, Payload: payload}
}

// Error returns an ERROR response carrying msg.
func Error(msg string) Response {
	return Response{Status: ERROR, Message: msg}
}

// ResponseFor converts a Dispatch or Execute outcome into a Response.
func ResponseFor(payload []byte, err error) Response {
	if err != nil {
		return Error(err.Error())
	}
	return Success(payload)
}

// Chaincode dispatches operations to the passport store.
type Chaincode struct {
	logger *slog.Logger
}

// New creates a Chaincode. A nil logger means slog.Default().
func New(logger *slog.Logger) *Chaincode {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chaincode{logger: logger}
}

// Init is the instantiation hook. There is no state to seed.
func (c *Chaincode) Init(ctx context.Context, state ledger.State) Response {
	c.logger.Info("chaincode instantiated", "tx_id", state.TxID())
	return Success(nil)
}

// Invoke runs fn against state and reports the outcome as a Response.
func (c *Chaincode) Invoke(ctx context.Context, state ledger.State, fn string, args []string) Response {
	return ResponseFor(c.Dispatch(ctx, state, fn, args))
}

// Dispatch looks fn up in the dispatch table, checks the argument count and
// runs the handler against state.
//
// An unknown fn fails with UNKNOWN_OPERATION and a wrong argument count with
// INVALID_ARGUMENT; in both cases state is not touched.
func (c *Chaincode) Dispatch(ctx context.Context, state ledger.State, fn string, args []string) ([]byte, error) {
	op := Operation(fn)
	h, ok := handlers[op]
	if !ok {
		c.logger.Warn("unknown operation", "operation", fn)
		return nil, passport.NewUnknownOperation(fn)
	}
	if len(args) != len(h.args) {
		return nil, passport.NewInvalidArgument(
			"operation %s expects %d argument(s) %v, got %d", op, len(h.args), h.args, len(args))
	}

	c.logger.Debug("invoking operation",
		"operation", fn,
		"tx_id", state.TxID(),
	)

	store := passport.NewStore(state, passport.WithLogger(c.logger))
	payload, err := h.run(ctx, store, args)
	if err != nil {
		c.logger.Info("operation failed",
			"operation", fn,
			"tx_id", state.TxID(),
			"code", string(passport.CodeOf(err)),
			"error", err,
		)
		return nil, err
	}
	return payload, nil
}

// Result is the outcome of a committed invocation.
type Result struct {
	TxID    string
	Payload []byte
}

// Execute runs fn in a fresh transaction on l. The transaction commits when
// the operation succeeds; on any failure its writes are discarded.
func (c *Chaincode) Execute(ctx context.Context, l *ledger.Ledger, fn string, args []string) (Result, error) {
	tx := l.Begin()
	payload, err := c.Dispatch(ctx, tx, fn, args)
	if err != nil {
		tx.Abort()
		return Result{TxID: tx.TxID()}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Result{TxID: tx.TxID()}, fmt.Errorf("%s: %w", fn, err)
	}
	return Result{TxID: tx.TxID(), Payload: payload}, nil
}
