package chaincode

import (
	"cmp"
	"context"
	"slices"

	"github.com/roach88/healthpass/internal/passport"
)

// Operation names an invocable operation.
type Operation string

const (
	OpCreate              Operation = "create"
	OpRead                Operation = "read"
	OpSetValidationState  Operation = "setValidationState"
	OpSetVaccinationState Operation = "setVaccinationState"
	OpGetHistory          Operation = "getHistory"
	OpQueryByCountry      Operation = "queryByCountry"
)

type handlerFunc func(ctx context.Context, store *passport.Store, args []string) ([]byte, error)

type handler struct {
	args []string
	run  handlerFunc
}

// handlers is the complete dispatch table. Names not listed here are
// rejected before any handler runs.
var handlers = map[Operation]handler{
	OpCreate: {
		args: []string{"id", "firstName", "lastName", "dob", "sourceReference", "subjectNumber", "country", "externalHash"},
		run:  runCreate,
	},
	OpRead: {
		args: []string{"id"},
		run:  runRead,
	},
	OpSetValidationState: {
		args: []string{"id", "_", "newState"},
		run:  runSetValidationState,
	},
	OpSetVaccinationState: {
		args: []string{"id", "_", "newState"},
		run:  runSetVaccinationState,
	},
	OpGetHistory: {
		args: []string{"id"},
		run:  runGetHistory,
	},
	OpQueryByCountry: {
		args: []string{"country"},
		run:  runQueryByCountry,
	},
}

func runCreate(ctx context.Context, store *passport.Store, args []string) ([]byte, error) {
	return nil, store.Create(ctx, passport.Record{
		ID:              args[0],
		FirstName:       args[1],
		LastName:        args[2],
		DOB:             args[3],
		SourceReference: args[4],
		SubjectNumber:   args[5],
		Country:         args[6],
		ExternalHash:    args[7],
	})
}

func runRead(ctx context.Context, store *passport.Store, args []string) ([]byte, error) {
	return store.Read(ctx, args[0])
}

// args[1] is a reserved slot with no meaning; it is accepted and ignored.
func runSetValidationState(ctx context.Context, store *passport.Store, args []string) ([]byte, error) {
	return nil, store.SetValidationState(ctx, args[0], passport.ValidationState(args[2]))
}

func runSetVaccinationState(ctx context.Context, store *passport.Store, args []string) ([]byte, error) {
	return nil, store.SetVaccinationState(ctx, args[0], passport.VaccinationState(args[2]))
}

func runGetHistory(ctx context.Context, store *passport.Store, args []string) ([]byte, error) {
	entries, err := store.History(ctx, args[0])
	if err != nil {
		return nil, err
	}
	return passport.MarshalHistory(entries)
}

func runQueryByCountry(ctx context.Context, store *passport.Store, args []string) ([]byte, error) {
	records, err := store.QueryByCountry(ctx, args[0])
	if err != nil {
		return nil, err
	}
	return passport.MarshalRecords(records)
}

// OperationInfo describes one entry of the dispatch table.
type OperationInfo struct {
	Name Operation `json:"name"`
	Args []string  `json:"args"`
}

// Operations lists the dispatch table sorted by name.
func Operations() []OperationInfo {
	out := make([]OperationInfo, 0, len(handlers))
	for name, h := range handlers {
		out = append(out, OperationInfo{Name: name, Args: slices.Clone(h.args)})
	}
	slices.SortFunc(out, func(a, b OperationInfo) int { return cmp.Compare(a.Name, b.Name) })
	return out
}
