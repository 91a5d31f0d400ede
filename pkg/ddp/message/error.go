package message

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// authErrorCodes are the codes that mean the session lacks valid credentials.
var authErrorCodes = map[int]struct{}{
	401: {},
	403: {},
}

// ProtocolError is an error reported by the server, either as a top-level
// error frame or embedded in a result or nosub frame.
type ProtocolError struct {
	Code             int
	HasCode          bool
	Reason           string
	Details          string
	OffendingMessage string
}

// NewProtocolError builds a ProtocolError from an embedded error object. The
// code is read from the "error" key and may be a number or a numeric string.
// A nil map yields an error that is not valid.
func NewProtocolError(obj map[string]any) *ProtocolError {
	e := &ProtocolError{}
	if obj == nil {
		return e
	}

	e.Code, e.HasCode = parseCode(obj[AttrError])
	e.Reason, _ = obj[AttrReason].(string)
	e.Details, _ = obj[AttrDetails].(string)
	e.OffendingMessage, _ = obj[AttrOffendingMessage].(string)
	return e
}

// IsValid reports whether the error object had a code or a reason.
func (e *ProtocolError) IsValid() bool {
	return e != nil && (e.HasCode || e.Reason != "")
}

// IsAuthError reports whether the code is 401 or 403.
func (e *ProtocolError) IsAuthError() bool {
	if e == nil || !e.HasCode {
		return false
	}
	_, ok := authErrorCodes[e.Code]
	return ok
}

func (e *ProtocolError) Error() string {
	if e == nil {
		return "unknown error"
	}
	text := e.Reason
	if text == "" {
		text = e.Details
	}
	if text == "" {
		text = "unknown error"
	}
	if e.HasCode {
		return fmt.Sprintf("%s [%d]", text, e.Code)
	}
	return text
}

// parseCode accepts a whole number that fits in an int, or a string of
// decimal digits.
func parseCode(v any) (int, bool) {
	switch code := v.(type) {
	case float64:
		// math.MinInt is a power of two, so both bounds are exact.
		if code != math.Trunc(code) || code < float64(math.MinInt) || code >= -float64(math.MinInt) {
			return 0, false
		}
		return int(code), true
	case int:
		return code, true
	case int64:
		return intFrom64(code)
	case json.Number:
		n, err := code.Int64()
		if err != nil {
			return 0, false
		}
		return intFrom64(n)
	case string:
		if !isDigits(code) {
			return 0, false
		}
		n, err := strconv.Atoi(code)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func intFrom64(n int64) (int, bool) {
	if n < math.MinInt || n > math.MaxInt {
		return 0, false
	}
	return int(n), true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
