package ipfocuser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Status is the controller's status document. Fields the controller did not
// send are nil.
type Status struct {
	AbsolutePosition *float64 `json:"absolutePosition"`
	MaxPosition      *float64 `json:"maxPosition"`
	MinPosition      *float64 `json:"minPosition"`
}

// ParseStatus decodes a status reply. Unknown fields are ignored. On error
// the returned Status is empty, so nothing is applied from a broken reply.
func ParseStatus(body []byte) (Status, error) {
	var st Status

	// Unmarshal validates the whole body, so trailing data is a syntax error.
	if err := json.Unmarshal(body, &st); err != nil {
		return Status{}, toParseError(err, int64(len(body)))
	}

	// null decodes without error.
	if t := bytes.TrimSpace(body); t[0] != '{' {
		return Status{}, &ParseError{Offset: 0, Msg: "expected an object, got " + string(t)}
	}

	for name, v := range map[string]*float64{
		"absolutePosition": st.AbsolutePosition,
		"maxPosition":      st.MaxPosition,
		"minPosition":      st.MinPosition,
	} {
		if v != nil && *v < 0 {
			return Status{}, &ParseError{Offset: int64(len(body)), Msg: fmt.Sprintf("%s is negative: %g", name, *v)}
		}
	}

	return st, nil
}

// toParseError locates a decoding failure. Errors without a position, such
// as a truncated body, are reported at the end of the body.
func toParseError(err error, end int64) *ParseError {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &ParseError{Offset: syntaxErr.Offset, Msg: syntaxErr.Error(), Err: err}
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		msg := fmt.Sprintf("expected an object with numeric fields, got %s", typeErr.Value)
		if typeErr.Field != "" {
			msg = fmt.Sprintf("%s must be a number, got %s", typeErr.Field, typeErr.Value)
		}
		return &ParseError{Offset: typeErr.Offset, Msg: msg, Err: err}
	}

	return &ParseError{Offset: end, Msg: err.Error(), Err: err}
}
