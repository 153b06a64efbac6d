package passport

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/roach88/healthpass/internal/canonical"
)

// Encode returns the canonical JSON form of r. All ten fields are always
// present and strings are written as given, so equal records encode to
// identical bytes. A field that is not valid UTF-8 fails with
// INVALID_ARGUMENT.
func Encode(r Record) ([]byte, error) {
	data, err := canonical.Marshal(r.fields())
	if err != nil {
		return nil, &Error{
			Code:    CodeInvalidArgument,
			Message: "passport cannot be encoded",
			ID:      validID(r.ID),
			Err:     err,
		}
	}
	return data, nil
}

// Decode parses a stored passport. Absent fields decode as empty strings
// and unknown fields are ignored. Input that is not a JSON object, or that
// carries a field of the wrong type, fails with MALFORMED_RECORD.
func Decode(data []byte) (Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Record{}, malformed("", errors.New("not a JSON object"))
	}
	var r Record
	if err := json.Unmarshal(trimmed, &r); err != nil {
		return Record{}, malformed("", err)
	}
	return r, nil
}
