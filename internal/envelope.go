package internal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	pkgerrs "github.com/jamesprial/go-reddit-session/pkg/errors"
)

// wrapperKey is the result-wrapper key Reddit uses when api_type=json is set.
const wrapperKey = "json"

type resultWrapper struct {
	Errors []json.RawMessage `json:"errors"`
	Data   json.RawMessage   `json:"data"`
}

// Unwrap normalizes a response body into v or an *errors.APIError.
//
// Bodies that are not JSON objects are decoded into v as they are. Objects
// with a "json" wrapper holding errors and data fail on the first error or
// yield data. Objects with a top-level "error" fail. Anything else is
// decoded into v unchanged. A nil v only checks for errors.
func Unwrap(body []byte, v any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}

	if trimmed[0] != '{' {
		return decodeInto(trimmed, v)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return &pkgerrs.TransportError{Operation: "decode response", Err: err}
	}

	if raw, ok := fields[wrapperKey]; ok {
		if wrapper, ok := parseWrapper(raw); ok {
			if len(wrapper.Errors) > 0 {
				return &pkgerrs.APIError{
					Message: displayText(wrapper.Errors[0]),
					Details: wrapper.Errors[0],
				}
			}
			return decodeInto(wrapper.Data, v)
		}
	}

	if raw, ok := fields["error"]; ok && !isNull(raw) {
		apiErr := &pkgerrs.APIError{
			Message: displayText(raw),
			Details: trimmed,
		}
		if desc, ok := fields["error_description"]; ok && !isNull(desc) {
			apiErr.Description = displayText(desc)
		} else if msg, ok := fields["message"]; ok && !isNull(msg) {
			apiErr.Description = displayText(msg)
		}
		return apiErr
	}

	return decodeInto(trimmed, v)
}

// parseWrapper accepts the wrapper only when it carries an errors list and a
// data slot; other objects under the key are left to the later checks.
func parseWrapper(raw json.RawMessage) (resultWrapper, bool) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return resultWrapper{}, false
	}
	_, hasErrors := probe["errors"]
	if !hasErrors {
		return resultWrapper{}, false
	}

	var wrapper resultWrapper
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return resultWrapper{}, false
	}
	return wrapper, true
}

// displayText renders a JSON value for an error message. Strings are used as
// they are; anything else is shown as its compact JSON text.
func displayText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return strings.TrimSpace(string(raw))
	}
	return buf.String()
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func decodeInto(data []byte, v any) error {
	if v == nil {
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("null")
	}
	if raw, ok := v.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], data...)
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &pkgerrs.TransportError{Operation: "decode response", Err: fmt.Errorf("decoding into %T: %w", v, err)}
	}
	return nil
}
