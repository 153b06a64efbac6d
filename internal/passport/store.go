package passport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/roach88/healthpass/internal/ledger"
)

// Store runs passport operations against one ledger view. It is cheap to
// build and is meant to live for a single invocation.
type Store struct {
	state   ledger.State
	indexes []IndexSpec
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger. Nil means slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithIndexes replaces the indexes maintained on Create. The default is
// CountryID alone.
func WithIndexes(indexes ...IndexSpec) Option {
	return func(s *Store) { s.indexes = indexes }
}

// NewStore creates a Store over state.
func NewStore(state ledger.State, opts ...Option) *Store {
	s := &Store{
		state:   state,
		indexes: []IndexSpec{CountryID},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new passport with both states at their initial values
// and writes its index entries. The states carried by r are ignored.
//
// Fails with ALREADY_EXISTS if any value is present at r.ID. The primary
// write and each index write are separate calls; a failing index write is
// returned as is and the primary write is not undone here.
func (s *Store) Create(ctx context.Context, r Record) error {
	if err := validateID(r.ID); err != nil {
		return err
	}
	if err := r.checkUTF8(); err != nil {
		return err
	}
	if fields := r.unnormalizedKeys(); len(fields) > 0 {
		s.logger.Warn("key fields are not in NFC, stored as given",
			"id", r.ID,
			"fields", fields,
		)
	}

	existing, err := s.state.GetState(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("create %q: %w", r.ID, err)
	}
	if len(existing) > 0 {
		return alreadyExists(r.ID)
	}

	r.ValidationState = NotValidated
	r.VaccinationState = NotVaccinated

	// Derive index keys before writing anything so a bad attribute fails
	// with no ledger write issued.
	keys := make([]string, len(s.indexes))
	for i, ix := range s.indexes {
		if keys[i], err = ix.Key(s.state, r); err != nil {
			return err
		}
	}

	data, err := Encode(r)
	if err != nil {
		return err
	}
	if err := s.state.PutState(ctx, r.ID, data); err != nil {
		return fmt.Errorf("create %q: %w", r.ID, err)
	}
	for i, ix := range s.indexes {
		if err := ix.Write(ctx, s.state, keys[i]); err != nil {
			s.logger.Warn("index write failed after primary write",
				"id", r.ID,
				"index", ix.Name,
				"error", err,
			)
			return fmt.Errorf("create %q: %w", r.ID, err)
		}
	}

	s.logger.Debug("passport created",
		"id", r.ID,
		"country", r.Country,
		"tx_id", s.state.TxID(),
	)
	return nil
}

// Read returns the stored payload of id as is.
func (s *Store) Read(ctx context.Context, id string) ([]byte, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	data, err := s.state.GetState(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", id, err)
	}
	if len(data) == 0 {
		return nil, notFound(id)
	}
	return data, nil
}

// Get reads and decodes id.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	data, err := s.Read(ctx, id)
	if err != nil {
		return Record{}, err
	}
	r, err := Decode(data)
	if err != nil {
		return Record{}, malformed(id, errors.Unwrap(err))
	}
	return r, nil
}

// SetValidationState rewrites the whole record of id with a new validation
// state. Values outside the four defined states are stored as given.
func (s *Store) SetValidationState(ctx context.Context, id string, state ValidationState) error {
	if err := checkState("validation state", string(state)); err != nil {
		return err
	}
	if !state.Known() {
		s.logger.Warn("storing unrecognized validation state", "id", id, "state", string(state))
	}
	return s.update(ctx, id, func(r *Record) { r.ValidationState = state })
}

// SetVaccinationState rewrites the whole record of id with a new
// vaccination state. Values outside the four defined states are stored as
// given.
func (s *Store) SetVaccinationState(ctx context.Context, id string, state VaccinationState) error {
	if err := checkState("vaccination state", string(state)); err != nil {
		return err
	}
	if !state.Known() {
		s.logger.Warn("storing unrecognized vaccination state", "id", id, "state", string(state))
	}
	return s.update(ctx, id, func(r *Record) { r.VaccinationState = state })
}

// update is read-modify-write over the full record.
func (s *Store) update(ctx context.Context, id string, mutate func(*Record)) error {
	r, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	mutate(&r)
	data, err := Encode(r)
	if err != nil {
		return err
	}
	if err := s.state.PutState(ctx, id, data); err != nil {
		return fmt.Errorf("update %q: %w", id, err)
	}
	s.logger.Debug("passport updated",
		"id", id,
		"validation_state", string(r.ValidationState),
		"vaccination_state", string(r.VaccinationState),
		"tx_id", s.state.TxID(),
	)
	return nil
}

// History replays every committed version of id, oldest first. An id that
// was never written has an empty history.
func (s *Store) History(ctx context.Context, id string) ([]HistoryEntry, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	it, err := s.state.GetHistoryForKey(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("history %q: %w", id, err)
	}
	return Replay(it)
}

// QueryByCountry returns the records indexed under country, ordered by id.
func (s *Store) QueryByCountry(ctx context.Context, country string) ([]Record, error) {
	ids, err := CountryID.IDs(ctx, s.state, country)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(ids))
	for _, id := range ids {
		r, err := s.Get(ctx, id)
		if IsNotFound(err) {
			s.logger.Warn("index entry without passport", "country", country, "id", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

// validateID rejects ids that cannot name a passport. Keys starting with
// U+0000 belong to the composite key namespace.
func validateID(id string) error {
	if id == "" {
		return NewInvalidArgument("passport id must not be empty")
	}
	if strings.HasPrefix(id, "\x00") {
		return NewInvalidArgument("passport id must not start with U+0000")
	}
	return nil
}

// checkState rejects a state string that cannot be stored as JSON.
func checkState(name, state string) error {
	if !utf8.ValidString(state) {
		return NewInvalidArgument("%s is not valid UTF-8", name)
	}
	return nil
}
