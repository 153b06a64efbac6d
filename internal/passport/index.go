package passport

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/healthpass/internal/ledger"
)

// CountryIDIndex is the name of the country index.
const CountryIDIndex = "country~id"

// presenceMarker is the value of every index entry. Only existence matters.
var presenceMarker = []byte{0x00}

// IndexSpec declares a composite secondary index: its name and the ordered
// record attributes that make up its key.
type IndexSpec struct {
	Name  string
	Attrs func(Record) []string
}

// CountryID indexes records by (country, id).
var CountryID = IndexSpec{
	Name:  CountryIDIndex,
	Attrs: func(r Record) []string { return []string{r.Country, r.ID} },
}

// Key derives the index key of r.
func (ix IndexSpec) Key(state ledger.State, r Record) (string, error) {
	key, err := state.CreateCompositeKey(ix.Name, ix.Attrs(r))
	if err != nil {
		return "", indexKeyError(ix.Name, err)
	}
	return key, nil
}

// Write stores the presence marker at key. Writing an existing entry again
// is not an error.
func (ix IndexSpec) Write(ctx context.Context, state ledger.State, key string) error {
	if err := state.PutState(ctx, key, presenceMarker); err != nil {
		return fmt.Errorf("write index %s: %w", ix.Name, err)
	}
	return nil
}

// IDs returns the last attribute of every entry whose key starts with
// leading, in key order. For CountryID with a country, that is the ids of
// the records created in that country.
func (ix IndexSpec) IDs(ctx context.Context, state ledger.State, leading ...string) ([]string, error) {
	it, err := state.GetStateByPartialCompositeKey(ctx, ix.Name, leading)
	if err != nil {
		return nil, indexKeyError(ix.Name, err)
	}
	defer it.Close()

	ids := []string{}
	for it.HasNext() {
		kv, err := it.Next()
		if err != nil {
			return nil, fmt.Errorf("scan index %s: %w", ix.Name, err)
		}
		_, attrs, err := state.SplitCompositeKey(kv.Key)
		if err != nil {
			return nil, fmt.Errorf("scan index %s: %w", ix.Name, err)
		}
		if len(attrs) == 0 {
			continue
		}
		ids = append(ids, attrs[len(attrs)-1])
	}
	return ids, nil
}

func indexKeyError(name string, err error) error {
	if errors.Is(err, ledger.ErrInvalidCompositeKey) {
		return &Error{
			Code:    CodeInvalidArgument,
			Message: fmt.Sprintf("invalid %s index attribute", name),
			Err:     err,
		}
	}
	return fmt.Errorf("index %s: %w", name, err)
}
