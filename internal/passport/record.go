package passport

import (
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/healthpass/internal/canonical"
)

// ValidationState tracks document validation.
type ValidationState string

const (
	NotValidated ValidationState = "NOT_VALIDATED"
	InValidation ValidationState = "IN_VALIDATION"
	Invalid      ValidationState = "INVALID"
	Valid        ValidationState = "VALID"
)

// Known reports whether s is one of the four defined states.
func (s ValidationState) Known() bool {
	switch s {
	case NotValidated, InValidation, Invalid, Valid:
		return true
	}
	return false
}

// VaccinationState tracks the subject's vaccination progress.
type VaccinationState string

const (
	NotVaccinated   VaccinationState = "NOT_VACCINATED"
	FirstDose       VaccinationState = "FIRST_DOSE"
	FullyVaccinated VaccinationState = "FULLY_VACCINATED"
	Reinforcement   VaccinationState = "REINFORCEMENT"
)

// Known reports whether s is one of the four defined states.
func (s VaccinationState) Known() bool {
	switch s {
	case NotVaccinated, FirstDose, FullyVaccinated, Reinforcement:
		return true
	}
	return false
}

// Record is a health passport. ID is the ledger key; every field except the
// two states is fixed at creation.
type Record struct {
	ID               string           `json:"id"`
	FirstName        string           `json:"firstName"`
	LastName         string           `json:"lastName"`
	DOB              string           `json:"dob"`
	SourceReference  string           `json:"sourceReference"`
	SubjectNumber    string           `json:"subjectNumber"`
	Country          string           `json:"country"`
	ExternalHash     string           `json:"externalHash"`
	ValidationState  ValidationState  `json:"validationState"`
	VaccinationState VaccinationState `json:"vaccinationState"`
}

// checkUTF8 fails with INVALID_ARGUMENT naming the first field of r, in
// canonical key order, that is not valid UTF-8.
func (r Record) checkUTF8() error {
	fields := r.fields()
	for _, name := range canonical.SortedKeys(fields) {
		if !utf8.ValidString(fields[name].(string)) {
			return &Error{
				Code:    CodeInvalidArgument,
				Message: fmt.Sprintf("%s is not valid UTF-8", name),
				ID:      validID(r.ID),
			}
		}
	}
	return nil
}

// unnormalizedKeys lists the fields of r that end up in ledger keys (id and
// country) and are not in Unicode NFC. They are stored as given, so later
// lookups must use the same form.
func (r Record) unnormalizedKeys() []string {
	var out []string
	if !norm.NFC.IsNormalString(r.ID) {
		out = append(out, "id")
	}
	if !norm.NFC.IsNormalString(r.Country) {
		out = append(out, "country")
	}
	return out
}

// validID returns id when it can be printed in an error, "" otherwise.
func validID(id string) string {
	if utf8.ValidString(id) {
		return id
	}
	return ""
}

func (r Record) fields() map[string]any {
	return map[string]any{
		"id":               r.ID,
		"firstName":        r.FirstName,
		"lastName":         r.LastName,
		"dob":              r.DOB,
		"sourceReference":  r.SourceReference,
		"subjectNumber":    r.SubjectNumber,
		"country":          r.Country,
		"externalHash":     r.ExternalHash,
		"validationState":  string(r.ValidationState),
		"vaccinationState": string(r.VaccinationState),
	}
}
