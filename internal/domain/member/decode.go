package member

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Response keys the upstream uses to wrap member lists.
const (
	KeyMembers = "members"
	KeyData    = "data"
)

// DecodeError reports a body that is not one of the accepted list shapes.
type DecodeError struct {
	Got string // "object", "string", "empty", ...
	Err error
}

func (e *DecodeError) Error() string {
	return "Invalid response format: expected array of members"
}

// Unwrap exposes the underlying JSON error, if any.
func (e *DecodeError) Unwrap() error { return e.Err }

// Detail describes what was received, for logs.
func (e *DecodeError) Detail() string {
	if e.Err != nil {
		return fmt.Sprintf("got %s: %v", e.Got, e.Err)
	}
	return "got " + e.Got
}

// DecodeList normalizes a response body into a list. A bare JSON array is
// accepted as is; an object is searched for the first of keys whose value is
// an array. Anything else is a *DecodeError.
// POST: on success the returned slice is non-nil
func DecodeList[T any](body []byte, keys ...string) ([]T, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, &DecodeError{Got: "empty"}
	}
	switch body[0] {
	case '[':
		return decodeArray[T](body)
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(body, &obj); err != nil {
			return nil, &DecodeError{Got: "object", Err: err}
		}
		for _, k := range keys {
			v, ok := obj[k]
			if !ok {
				continue
			}
			v = bytes.TrimSpace(v)
			if len(v) > 0 && v[0] == '[' {
				return decodeArray[T](v)
			}
		}
		return nil, &DecodeError{Got: "object"}
	default:
		return nil, &DecodeError{Got: shapeOf(body)}
	}
}

func decodeArray[T any](body []byte) ([]T, error) {
	var list []T
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, &DecodeError{Got: "array", Err: err}
	}
	if list == nil {
		list = []T{}
	}
	return list, nil
}

func shapeOf(body []byte) string {
	switch {
	case body[0] == '"':
		return "string"
	case bytes.Equal(body, []byte("null")):
		return "null"
	case bytes.Equal(body, []byte("true")), bytes.Equal(body, []byte("false")):
		return "boolean"
	case json.Valid(body):
		return "number"
	default:
		return "non-JSON"
	}
}
