package jsonx

import (
	"encoding/json"
	"io"
)

// ParseJSONObject decodes one JSON value from src into dst, rejecting
// unknown object fields.
//
// - Malformed JSON => *json.SyntaxError, io.EOF, io.ErrUnexpectedEOF
// - Incorrect data type => *json.UnmarshalTypeError
// - Unknown object fields => error from encoding/json (no dedicated type)
func ParseJSONObject[T any](src io.Reader, dst *T) error {
	dec := json.NewDecoder(src)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return err
	}

	return nil
}
